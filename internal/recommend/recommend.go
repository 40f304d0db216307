// Package recommend fuses semantic similarity, collaborative filtering, and
// popularity into one ranked list. Semantic similarity retrieves and anchors
// the candidate set; latent factor scores personalize it when the user is
// known; popularity is the fallback when neither produces a signal. Missing
// signals degrade the blend, they never fail a request.
package recommend

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/bookrs/internal/artifact"
	"github.com/hyperjump/bookrs/internal/cf"
	"github.com/hyperjump/bookrs/internal/models"
	"github.com/hyperjump/bookrs/internal/popularity"
	"github.com/hyperjump/bookrs/internal/semantic"
)

// ErrNoCandidates means no signal source produced anything: the query was
// empty or matched nothing, and the popularity table is empty too.
var ErrNoCandidates = errors.New("no candidates from any signal source")

// Config holds the fusion weights and retrieval bounds.
type Config struct {
	// SemanticWeight and CFWeight blend the two active signals.
	SemanticWeight float64
	CFWeight       float64
	// PopWeight adds the popularity prior into the blend. Zero keeps
	// popularity as fallback only.
	PopWeight float64
	// CandidateFloor is the minimum number of semantic candidates retrieved
	// before fusion, so reranking has room to move books into the top K.
	CandidateFloor int
	// DefaultTopK applies when a caller does not say how many results it
	// wants; MaxTopK caps what it may ask for.
	DefaultTopK int
	MaxTopK     int
}

// DefaultConfig returns the served weights: semantic-dominant with a
// personalization nudge, popularity as fallback only.
func DefaultConfig() Config {
	return Config{
		SemanticWeight: 0.7,
		CFWeight:       0.3,
		PopWeight:      0,
		CandidateFloor: 50,
		DefaultTopK:    10,
		MaxTopK:        100,
	}
}

// Fuse blends the per-signal scores with the configured weights.
func (c Config) Fuse(sem, cfScore, pop float64) float64 {
	return c.SemanticWeight*sem + c.CFWeight*cfScore + c.PopWeight*pop
}

// Stats is a snapshot of the engine's request counters.
type Stats struct {
	Requests           int64 `json:"requests"`
	SemanticOnly       int64 `json:"semantic_only"`
	WithCF             int64 `json:"with_cf"`
	PopularityFallback int64 `json:"popularity_fallback"`
	Errors             int64 `json:"errors"`
}

// Engine serves recommendation requests against the current artifact bundle.
type Engine struct {
	store  *artifact.Store
	scorer *semantic.Scorer
	cfg    Config
	logger *zap.Logger

	requests           atomic.Int64
	semanticOnly       atomic.Int64
	withCF             atomic.Int64
	popularityFallback atomic.Int64
	errorCount         atomic.Int64
}

// NewEngine wires the engine. A nil logger disables logging.
func NewEngine(store *artifact.Store, scorer *semantic.Scorer, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, scorer: scorer, cfg: cfg, logger: logger}
}

// Recommend runs one query. The whole request reads a single bundle snapshot,
// so an artifact reload mid-request can never mix old and new matrices.
func (e *Engine) Recommend(ctx context.Context, q models.RecommendQuery) (*models.RecommendResponse, error) {
	e.requests.Add(1)
	start := time.Now()

	if err := q.Validate(e.cfg.MaxTopK); err != nil {
		e.errorCount.Add(1)
		return nil, err
	}

	resp := &models.RecommendResponse{
		Results: []*models.Recommendation{},
		Query:   q.Query,
		UserID:  q.UserID,
	}
	if q.TopK == 0 {
		resp.QueryTime = time.Since(start).Milliseconds()
		return resp, nil
	}

	b := e.store.Current()

	n := q.TopK
	if n < e.cfg.CandidateFloor {
		n = e.cfg.CandidateFloor
	}
	candidates, err := e.scorer.TopN(ctx, b, q.Query, n)
	if err != nil {
		e.errorCount.Add(1)
		return nil, err
	}

	var results []*models.Recommendation
	if len(candidates) == 0 {
		results, err = e.fallback(b, q.TopK)
		if err != nil {
			e.errorCount.Add(1)
			return nil, err
		}
		e.popularityFallback.Add(1)
	} else {
		results = e.fuse(b, q, candidates)
	}

	if len(results) > q.TopK {
		results = results[:q.TopK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}

	resp.Results = results
	resp.Total = len(results)
	resp.QueryTime = time.Since(start).Milliseconds()

	e.logger.Debug("recommend",
		zap.String("query", q.Query),
		zap.Int("top_k", q.TopK),
		zap.Int("results", resp.Total),
		zap.Int64("query_time_ms", resp.QueryTime))
	return resp, nil
}

// fuse blends the candidate scores and reranks. Personalization only applies
// when the user has a factor row; a cold user gets purely semantic ranking.
func (e *Engine) fuse(b *artifact.Bundle, q models.RecommendQuery, candidates []semantic.Match) []*models.Recommendation {
	personalize := q.UserID != nil && cf.UserKnown(b, *q.UserID)
	if personalize {
		e.withCF.Add(1)
	} else {
		e.semanticOnly.Add(1)
	}

	results := make([]*models.Recommendation, 0, len(candidates))
	for _, c := range candidates {
		rec := &models.Recommendation{
			BookID:        c.BookID,
			SemanticScore: c.Score,
			Provenance:    models.ProvenanceSemantic,
		}
		if personalize {
			score, sig := cf.Score(b, *q.UserID, c.BookID)
			if sig == cf.SignalOK {
				rec.CFScore = score
				rec.Provenance = models.ProvenanceSemanticCF
			}
		}
		if pop, ok := b.PopScore(c.BookID); ok {
			rec.PopScore = pop
		}
		rec.FusedScore = e.cfg.Fuse(rec.SemanticScore, rec.CFScore, rec.PopScore)
		if meta, ok := b.Book(c.BookID); ok {
			rec.Title = meta.Title
			rec.Authors = meta.Authors
		}
		results = append(results, rec)
	}

	// Candidates arrive sorted by semantic score with ascending-id ties, so a
	// stable sort on the fused score keeps that order for equal blends.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].FusedScore != results[j].FusedScore {
			return results[i].FusedScore > results[j].FusedScore
		}
		return results[i].BookID < results[j].BookID
	})
	return results
}

// fallback serves the popularity head when the query produced no candidates.
func (e *Engine) fallback(b *artifact.Bundle, k int) ([]*models.Recommendation, error) {
	top := popularity.TopK(b, k)
	if len(top) == 0 {
		return nil, ErrNoCandidates
	}
	results := make([]*models.Recommendation, 0, len(top))
	for _, entry := range top {
		rec := &models.Recommendation{
			BookID:     entry.BookID,
			PopScore:   entry.PopScore,
			FusedScore: entry.PopScore,
			Provenance: models.ProvenancePopularity,
		}
		if meta, ok := b.Book(entry.BookID); ok {
			rec.Title = meta.Title
			rec.Authors = meta.Authors
		}
		results = append(results, rec)
	}
	return results, nil
}

// Stats returns a snapshot of the request counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Requests:           e.requests.Load(),
		SemanticOnly:       e.semanticOnly.Load(),
		WithCF:             e.withCF.Load(),
		PopularityFallback: e.popularityFallback.Load(),
		Errors:             e.errorCount.Load(),
	}
}

// Bundle exposes the current artifact snapshot for status reporting.
func (e *Engine) Bundle() *artifact.Bundle {
	return e.store.Current()
}
