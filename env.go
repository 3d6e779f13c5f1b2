package trl

import "github.com/unixpickle/anyvec"

// Env is an instance of an RL environment.
type Env interface {
	Reset() (observation anyvec.Vector, err error)
	Step(action anyvec.Vector) (observation anyvec.Vector,
		reward float64, done bool, err error)
	ObservationSpace() *Space
	ActionSpace() *Space
}

// A Renderer is an Env that can draw its current state to
// a screen or file.
type Renderer interface {
	Render(mode string) error
}

// A Closer is an Env that holds resources which must be
// released once the environment is no longer needed.
type Closer interface {
	Close() error
}

// An EnvMaker constructs one environment slot seeded with
// the given value.
//
// Makers are called once per parallel slot with
// consecutive seeds, so that slots produce independent
// trajectories.
type EnvMaker func(seed int64) (Env, error)
