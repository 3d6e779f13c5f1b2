package trl

import (
	"fmt"
	"sync"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// Info carries auxiliary diagnostics for one slot of a
// vectorized step.
type Info map[string]interface{}

// A VecEnv steps a batch of environment slots in
// lockstep.
//
// Calls are blocking and batch-return: Step does not
// come back until every slot has produced a transition.
// A VecEnv is meant to be driven by a single caller with
// no overlapping in-flight calls; implementations add no
// locking of their own.
type VecEnv interface {
	// NumEnvs returns the number of parallel slots.
	NumEnvs() int

	// Reset starts a fresh episode in every slot and
	// returns one initial observation per slot.
	Reset() ([]anyvec.Vector, error)

	// Step applies one action per slot and returns the
	// resulting observations, rewards, done flags, and
	// per-slot diagnostics.
	Step(actions []anyvec.Vector) (obs []anyvec.Vector, rewards []float64,
		dones []bool, infos []Info, err error)

	// Render draws every slot that supports rendering.
	Render(mode string) error

	// Close releases the underlying environments.
	Close() error

	ObservationSpace() *Space
	ActionSpace() *Space
}

// LocalVecEnv is a VecEnv which runs each slot on its own
// goroutine within the calling process.
//
// When a slot's episode finishes, the slot is reset
// immediately and the fresh episode's first observation
// is returned in its place. The done flag still reports
// the boundary, and the step's Info carries
// "episode_reward" and "episode_steps" totals for the
// episode that just ended.
type LocalVecEnv struct {
	envs []Env

	episodeRewards []float64
	episodeSteps   []int
}

// NewLocalVecEnv creates a LocalVecEnv over the given
// slots. It panics if no environments are supplied.
func NewLocalVecEnv(envs ...Env) *LocalVecEnv {
	if len(envs) == 0 {
		panic("need at least one environment")
	}
	return &LocalVecEnv{
		envs:           envs,
		episodeRewards: make([]float64, len(envs)),
		episodeSteps:   make([]int, len(envs)),
	}
}

// NumEnvs returns the number of parallel slots.
func (l *LocalVecEnv) NumEnvs() int {
	return len(l.envs)
}

// Reset starts a fresh episode in every slot.
func (l *LocalVecEnv) Reset() (obs []anyvec.Vector, err error) {
	defer essentials.AddCtxTo("reset vectorized environments", &err)
	obs = make([]anyvec.Vector, len(l.envs))
	errs := make([]error, len(l.envs))
	var wg sync.WaitGroup
	for i, e := range l.envs {
		wg.Add(1)
		go func(i int, e Env) {
			defer wg.Done()
			obs[i], errs[i] = e.Reset()
		}(i, e)
	}
	wg.Wait()
	for i := range l.envs {
		if errs[i] != nil {
			return nil, errs[i]
		}
		l.episodeRewards[i] = 0
		l.episodeSteps[i] = 0
	}
	return obs, nil
}

// Step applies one action per slot concurrently.
func (l *LocalVecEnv) Step(actions []anyvec.Vector) (obs []anyvec.Vector,
	rewards []float64, dones []bool, infos []Info, err error) {
	defer essentials.AddCtxTo("step vectorized environments", &err)
	if len(actions) != len(l.envs) {
		return nil, nil, nil, nil, fmt.Errorf("got %d actions for %d environments",
			len(actions), len(l.envs))
	}

	obs = make([]anyvec.Vector, len(l.envs))
	rewards = make([]float64, len(l.envs))
	dones = make([]bool, len(l.envs))
	infos = make([]Info, len(l.envs))
	errs := make([]error, len(l.envs))

	var wg sync.WaitGroup
	for i, e := range l.envs {
		wg.Add(1)
		go func(i int, e Env) {
			defer wg.Done()
			o, rew, done, err := e.Step(actions[i])
			if err != nil {
				errs[i] = err
				return
			}
			l.episodeRewards[i] += rew
			l.episodeSteps[i]++
			if done {
				infos[i] = Info{
					"episode_reward": l.episodeRewards[i],
					"episode_steps":  l.episodeSteps[i],
				}
				l.episodeRewards[i] = 0
				l.episodeSteps[i] = 0
				o, errs[i] = e.Reset()
			}
			obs[i] = o
			rewards[i] = rew
			dones[i] = done
		}(i, e)
	}
	wg.Wait()

	for _, e := range errs {
		if e != nil {
			return nil, nil, nil, nil, e
		}
	}
	return obs, rewards, dones, infos, nil
}

// Render draws every slot that implements Renderer.
func (l *LocalVecEnv) Render(mode string) (err error) {
	defer essentials.AddCtxTo("render vectorized environments", &err)
	for _, e := range l.envs {
		if r, ok := e.(Renderer); ok {
			if err := r.Render(mode); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every slot that implements Closer,
// returning the first error it encounters.
func (l *LocalVecEnv) Close() (err error) {
	defer essentials.AddCtxTo("close vectorized environments", &err)
	for _, e := range l.envs {
		if c, ok := e.(Closer); ok {
			if closeErr := c.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}
	}
	return err
}

// ObservationSpace returns the per-slot observation
// space.
func (l *LocalVecEnv) ObservationSpace() *Space {
	return l.envs[0].ObservationSpace()
}

// ActionSpace returns the per-slot action space.
func (l *LocalVecEnv) ActionSpace() *Space {
	return l.envs[0].ActionSpace()
}
