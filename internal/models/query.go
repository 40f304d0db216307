package models

import "fmt"

// RecommendQuery is a recommendation request. UserID is optional: nil means an
// anonymous caller, and an ID unknown to the factor model is a cold-start user,
// not an error.
type RecommendQuery struct {
	Query  string `json:"query"`
	UserID *int64 `json:"user_id,omitempty"`
	TopK   int    `json:"top_k,omitempty"`
}

// Validate rejects a negative TopK and caps it at maxK (0 = no cap).
// TopK == 0 is valid and means "no results wanted"; it must not be defaulted
// here because callers distinguish an absent parameter from an explicit zero.
func (q *RecommendQuery) Validate(maxK int) error {
	if q.TopK < 0 {
		return fmt.Errorf("top_k must be >= 0, got %d", q.TopK)
	}
	if maxK > 0 && q.TopK > maxK {
		q.TopK = maxK
	}
	return nil
}
