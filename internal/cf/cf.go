// Package cf scores user-book pairs with the ALS latent factor matrices.
// The score is the raw dot product of the user and item latent vectors,
// matching what the factorization was trained to approximate; it is not
// normalized to a fixed range.
package cf

import (
	"math"

	"github.com/hyperjump/bookrs/internal/artifact"
)

// Signal reports why a pair did or did not receive a factor score.
type Signal int

const (
	// SignalOK means both the user and the book have factor rows.
	SignalOK Signal = iota
	// SignalUnknownUser means the user was not in the training set.
	SignalUnknownUser
	// SignalUnknownItem means the book was not in the training set.
	SignalUnknownItem
)

// UserKnown reports whether userID has a latent vector in the bundle.
func UserKnown(b *artifact.Bundle, userID int64) bool {
	_, ok := b.UserMap.Forward(userID)
	return ok
}

// Score returns the latent dot product for the pair. On an unknown user or
// book the score is 0 and the signal says which side was missing; absence of
// training data is an expected condition, not an error.
func Score(b *artifact.Bundle, userID, bookID int64) (float64, Signal) {
	urow, ok := b.UserMap.Forward(userID)
	if !ok {
		return 0, SignalUnknownUser
	}
	irow, ok := b.ItemMap.Forward(bookID)
	if !ok {
		return 0, SignalUnknownItem
	}

	uvec := b.UserFactors.Row(urow)
	ivec := b.ItemFactors.Row(irow)

	dot := 0.0
	for i := range uvec {
		dot += float64(uvec[i]) * float64(ivec[i])
	}
	if math.IsNaN(dot) || math.IsInf(dot, 0) {
		return 0, SignalOK
	}
	return dot, SignalOK
}
