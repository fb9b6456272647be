package types

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// Configuration errors
	ErrEmptyLevelSpec     = errors.New("hierarchy level spec cannot be empty")
	ErrEmptyDelimiters    = errors.New("delimiter set cannot be empty")
	ErrInvalidTokenBudget = errors.New("token budget must be positive")
	ErrInvalidOverlap     = errors.New("overlap percent must be in [0, 1)")
	ErrInvalidDepth       = errors.New("hierarchy depth must be >= 1")

	// Data-contract errors
	ErrMalformedSection  = errors.New("malformed section record")
	ErrMalformedPosition = errors.New("malformed position tag")
	ErrEmptyContent      = errors.New("content cannot be empty")

	// Scoring errors
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrCandidateMismatch = errors.New("candidate vectors and weights differ in length")
)

// InvariantError reports an upstream logic bug. It is raised with panic and
// must never be silently recovered inside a chunking stage.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated in %s: %s", e.Op, e.Detail)
}
