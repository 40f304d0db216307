package models

// Provenance records which signal sources actually contributed to a result's
// score. It is the mechanism for surfacing degraded state to callers; degraded
// requests never fail, they are tagged.
type Provenance string

const (
	// ProvenanceSemantic means only the semantic signal resolved (cold-start
	// user, or the item has no latent factor row).
	ProvenanceSemantic Provenance = "semantic"
	// ProvenanceSemanticCF means both semantic and collaborative signals resolved.
	ProvenanceSemanticCF Provenance = "semantic+cf"
	// ProvenancePopularity means the result came from the popularity prior
	// (empty query, or no semantic candidates were available).
	ProvenancePopularity Provenance = "popularity-fallback"
)

// Recommendation is a single ranked result.
type Recommendation struct {
	BookID        int64      `json:"book_id"`
	Title         string     `json:"title"`
	Authors       string     `json:"authors"`
	SemanticScore float64    `json:"semantic_score"`
	CFScore       float64    `json:"cf_score"`
	PopScore      float64    `json:"pop_score"`
	FusedScore    float64    `json:"fused_score"`
	Provenance    Provenance `json:"provenance"`
	Rank          int        `json:"rank"`
}

// RecommendResponse is the response for a recommendation request.
type RecommendResponse struct {
	Results   []*Recommendation `json:"results"`
	Total     int               `json:"total"`
	QueryTime int64             `json:"query_time_ms"`
	Query     string            `json:"query"`
	UserID    *int64            `json:"user_id,omitempty"`
}
