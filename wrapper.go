package trl

import (
	"errors"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// Config configures a NormalizedEnv.
//
// Every field is resolved once at construction time.
type Config struct {
	// NumEnvs is the number of parallel training slots.
	//
	// A zero NumEnvs creates an evaluation-only wrapper:
	// no training environments are built, the initial
	// reset is skipped, and only the *Test methods and
	// space accessors may be used.
	NumEnvs int

	// MaxEpisodeLen truncates episodes after this many
	// steps. Zero disables truncation.
	MaxEpisodeLen int

	// Gamma is the discount factor for return-style
	// reward normalization.
	Gamma float64

	// NormObs enables running mean/variance
	// normalization of observations.
	NormObs bool

	// ClipObs clamps normalized observations to
	// [-ClipObs, ClipObs] when positive.
	ClipObs float64

	// NormRewards enables scaling rewards by the running
	// standard deviation of the discounted return.
	NormRewards bool

	// ClipRewards clamps normalized rewards to
	// [-ClipRewards, ClipRewards] when positive.
	ClipRewards float64

	// Seed is the base seed; slot i is seeded Seed+i.
	Seed int64
}

// NormalizedEnv composes observation and reward
// normalizers around a vectorized environment and exposes
// separate training and evaluation entry points.
//
// It is synchronous and single-caller, like the VecEnvs
// underneath it: a hang in the environments propagates as
// a hang here, and concurrent callers need external
// locking.
type NormalizedEnv struct {
	cfg Config

	envs     VecEnv
	envsTest VecEnv

	obsNorm Normalizer
	rewNorm Normalizer

	lastObs []anyvec.Vector
}

// New builds cfg.NumEnvs environment slots with maker and
// wraps them in a NormalizedEnv.
//
// Each slot is wrapped in a MaxStepsEnv when
// cfg.MaxEpisodeLen is set, and the slots run in a
// LocalVecEnv which doubles as the evaluation handle.
// Construction performs an initial reset, so it is an
// expensive, non-idempotent acquisition; Close releases
// the environments again.
func New(cfg Config, maker EnvMaker) (w *NormalizedEnv, err error) {
	defer essentials.AddCtxTo("create environments", &err)
	var vecEnv VecEnv
	if cfg.NumEnvs > 0 {
		envs := make([]Env, cfg.NumEnvs)
		for i := range envs {
			env, err := maker(cfg.Seed + int64(i))
			if err != nil {
				return nil, err
			}
			if cfg.MaxEpisodeLen > 0 {
				env = &MaxStepsEnv{Env: env, MaxSteps: cfg.MaxEpisodeLen}
			}
			envs[i] = env
		}
		vecEnv = NewLocalVecEnv(envs...)
	}
	return NewWithVecEnvs(cfg, vecEnv, vecEnv)
}

// NewWithVecEnvs wraps pre-built training and evaluation
// VecEnvs. The two may be the same instance.
//
// A nil train handle creates an evaluation-only wrapper;
// in that case test must not be nil and no initial reset
// is performed.
func NewWithVecEnvs(cfg Config, train, test VecEnv) (w *NormalizedEnv, err error) {
	defer essentials.AddCtxTo("create normalized environment", &err)
	if train == nil && test == nil {
		return nil, errors.New("no environments supplied")
	}

	live := train
	if live == nil {
		live = test
	}

	obsNorm := Normalizer(Identity{})
	if cfg.NormObs {
		obsNorm = NewMovingAvg(NormalizerConfig{
			Shape:  live.ObservationSpace().Dim,
			Center: true,
			Scale:  true,
			Gamma:  0,
			Clip:   cfg.ClipObs,
		})
	}
	rewNorm := Normalizer(Identity{})
	if cfg.NormRewards {
		rewNorm = NewMovingAvg(NormalizerConfig{
			Shape:  1,
			Center: false,
			Scale:  true,
			Gamma:  cfg.Gamma,
			Clip:   cfg.ClipRewards,
		})
	}

	w = &NormalizedEnv{
		cfg:      cfg,
		envs:     train,
		envsTest: test,
		obsNorm:  obsNorm,
		rewNorm:  rewNorm,
	}
	if train != nil {
		if _, err := w.Reset(); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Reset returns both normalizers to their zero state,
// starts fresh episodes in every training slot, and
// returns the normalized initial observations.
func (n *NormalizedEnv) Reset() (obs []anyvec.Vector, err error) {
	defer essentials.AddCtxTo("reset normalized environment", &err)
	if n.envs == nil {
		return nil, errors.New("no training environments")
	}

	n.obsNorm.Reset(nil)
	n.rewNorm.Reset(nil)

	rawObs, err := n.envs.Reset()
	if err != nil {
		return nil, err
	}
	n.lastObs = n.normalizeObs(rawObs, true)
	return n.lastObs, nil
}

// Step forwards one action per training slot, normalizes
// the resulting observations and rewards (updating the
// running statistics), and resets per-slot normalizer
// state for slots whose episode just finished.
//
// The done flags and infos come back from the underlying
// VecEnv untouched.
func (n *NormalizedEnv) Step(actions []anyvec.Vector) (obs []anyvec.Vector,
	rewards []float64, dones []bool, infos []Info, err error) {
	defer essentials.AddCtxTo("step normalized environment", &err)
	if n.envs == nil {
		return nil, nil, nil, nil, errors.New("no training environments")
	}
	if n.lastObs == nil {
		return nil, nil, nil, nil, errors.New("step before reset")
	}

	rawObs, rawRewards, dones, infos, err := n.envs.Step(actions)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	obs = n.normalizeObs(rawObs, true)
	rewards = n.normalizeRewards(rawRewards, true)

	n.obsNorm.Reset(dones)
	n.rewNorm.Reset(dones)

	n.lastObs = obs
	return obs, rewards, dones, infos, nil
}

// StepTest steps the evaluation environments.
//
// Observations are normalized without updating the
// running statistics, so evaluation cannot perturb
// training. Rewards come back raw, since evaluation
// reports actual task performance.
func (n *NormalizedEnv) StepTest(actions []anyvec.Vector) (obs []anyvec.Vector,
	rewards []float64, dones []bool, infos []Info, err error) {
	defer essentials.AddCtxTo("step evaluation environment", &err)
	rawObs, rewards, dones, infos, err := n.envsTest.Step(actions)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	obs = n.normalizeObs(rawObs, false)
	return obs, rewards, dones, infos, nil
}

// ResetTest starts fresh episodes in the evaluation
// environments and returns the initial observations,
// normalized without updating the running statistics.
//
// The normalizers' accumulated statistics are left alone.
func (n *NormalizedEnv) ResetTest() (obs []anyvec.Vector, err error) {
	defer essentials.AddCtxTo("reset evaluation environment", &err)
	rawObs, err := n.envsTest.Reset()
	if err != nil {
		return nil, err
	}
	return n.normalizeObs(rawObs, false), nil
}

// RenderTest renders the evaluation environments.
func (n *NormalizedEnv) RenderTest(mode string) error {
	return n.envsTest.Render(mode)
}

// LastObs returns the most recent normalized training
// observations, or nil before the first reset.
func (n *NormalizedEnv) LastObs() []anyvec.Vector {
	return n.lastObs
}

// ObservationNormalizer returns the observation
// normalizer.
func (n *NormalizedEnv) ObservationNormalizer() Normalizer {
	return n.obsNorm
}

// RewardNormalizer returns the reward normalizer.
func (n *NormalizedEnv) RewardNormalizer() Normalizer {
	return n.rewNorm
}

// ObservationSpace returns the per-slot observation
// space, read from the training handle when it exists and
// from the evaluation handle otherwise.
func (n *NormalizedEnv) ObservationSpace() *Space {
	return n.liveEnv().ObservationSpace()
}

// ActionSpace returns the per-slot action space, with the
// same fallback as ObservationSpace.
func (n *NormalizedEnv) ActionSpace() *Space {
	return n.liveEnv().ActionSpace()
}

// NumEnvs returns the number of parallel training slots.
func (n *NormalizedEnv) NumEnvs() int {
	if n.envs == nil {
		return 0
	}
	return n.envs.NumEnvs()
}

// Close releases the underlying environments, both
// training and evaluation handles.
func (n *NormalizedEnv) Close() (err error) {
	defer essentials.AddCtxTo("close normalized environment", &err)
	if n.envs != nil {
		err = n.envs.Close()
	}
	if n.envsTest != nil && n.envsTest != n.envs {
		if testErr := n.envsTest.Close(); testErr != nil && err == nil {
			err = testErr
		}
	}
	return err
}

func (n *NormalizedEnv) liveEnv() VecEnv {
	if n.envs != nil {
		return n.envs
	}
	return n.envsTest
}

func (n *NormalizedEnv) normalizeObs(rawObs []anyvec.Vector, update bool) []anyvec.Vector {
	rows := make([][]float64, len(rawObs))
	var c anyvec.Creator
	for i, o := range rawObs {
		c = o.Creator()
		rows[i] = c.Float64Slice(o.Data())
	}
	normed := n.obsNorm.Transform(rows, update)
	out := make([]anyvec.Vector, len(normed))
	for i, row := range normed {
		out[i] = anyvec.Make(c, row)
	}
	return out
}

func (n *NormalizedEnv) normalizeRewards(raw []float64, update bool) []float64 {
	rows := make([][]float64, len(raw))
	for i, r := range raw {
		rows[i] = []float64{r}
	}
	normed := n.rewNorm.Transform(rows, update)
	out := make([]float64, len(normed))
	for i, row := range normed {
		out[i] = row[0]
	}
	return out
}
