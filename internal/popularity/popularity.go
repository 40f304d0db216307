// Package popularity ranks books by a weighted rating that pulls sparsely
// rated books toward the catalog mean, so a single five-star rating cannot
// outrank a well-established favorite.
package popularity

import (
	"sort"

	"github.com/hyperjump/bookrs/internal/artifact"
	"github.com/hyperjump/bookrs/internal/models"
	"github.com/hyperjump/bookrs/pkg/utils"
)

// MinVotesQuantile places the vote threshold m at this quantile of the
// per-book rating counts.
const MinVotesQuantile = 0.90

// TopK returns the k most popular books from the bundle's precomputed table.
// The table is sorted at load time, so this is a slice of the head.
func TopK(b *artifact.Bundle, k int) []artifact.PopularityEntry {
	if k <= 0 || len(b.Popularity) == 0 {
		return nil
	}
	if k > len(b.Popularity) {
		k = len(b.Popularity)
	}
	out := make([]artifact.PopularityEntry, k)
	copy(out, b.Popularity[:k])
	return out
}

// Build computes a popularity table from aggregate rating stats using the
// weighted rating
//
//	score = v/(v+m) * R + m/(v+m) * C
//
// where v is the book's rating count, R its mean rating, m the vote count at
// MinVotesQuantile, and C the mean of all per-book mean ratings. A book with
// no ratings scores C. The result is sorted by score descending, ties by
// ascending book id.
func Build(stats []models.RatingStat) []artifact.PopularityEntry {
	if len(stats) == 0 {
		return nil
	}

	counts := make([]float64, 0, len(stats))
	sumAvg := 0.0
	for _, s := range stats {
		counts = append(counts, float64(s.NumRatings))
		sumAvg += s.AvgRating
	}
	m := utils.Quantile(counts, MinVotesQuantile)
	c := sumAvg / float64(len(stats))

	out := make([]artifact.PopularityEntry, 0, len(stats))
	for _, s := range stats {
		v := float64(s.NumRatings)
		score := c
		if v+m > 0 {
			score = v/(v+m)*s.AvgRating + m/(v+m)*c
		}
		out = append(out, artifact.PopularityEntry{
			BookID:     s.BookID,
			AvgRating:  s.AvgRating,
			NumRatings: s.NumRatings,
			PopScore:   utils.Round4(score),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].PopScore != out[j].PopScore {
			return out[i].PopScore > out[j].PopScore
		}
		return out[i].BookID < out[j].BookID
	})
	return out
}
