package trl

// A SpaceKind enumerates the supported kinds of
// observation and action spaces.
type SpaceKind int

const (
	// Box is a continuous space with optional
	// per-dimension bounds.
	Box SpaceKind = iota

	// Discrete is a finite space of Dim choices, encoded
	// as one-hot vectors.
	Discrete
)

// A Space describes the layout of observations or actions
// for an environment.
type Space struct {
	Kind SpaceKind

	// Dim is the vector length: the number of dimensions
	// for Box spaces, or the number of choices for
	// Discrete spaces.
	Dim int

	// Low and High bound each dimension of a Box space.
	// Either may be nil for unbounded dimensions, and both
	// are nil for Discrete spaces.
	Low, High []float64
}

// BoxSpace creates an unbounded continuous space with the
// given number of dimensions.
func BoxSpace(dim int) *Space {
	return &Space{Kind: Box, Dim: dim}
}

// DiscreteSpace creates a discrete space with n choices.
func DiscreteSpace(n int) *Space {
	return &Space{Kind: Discrete, Dim: n}
}
