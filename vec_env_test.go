package trl

import (
	"testing"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

// scriptedEnv is a deterministic environment with
// controllable behavior, making it ideal for testing the
// vectorized layers.
//
// Observations are BaseObs scaled by the in-episode
// timestep (starting at 1), and the reward at timestep t
// is RewardScale*t.
type scriptedEnv struct {
	Creator     anyvec.Creator
	BaseObs     []float64
	RewardScale float64
	EpLen       int

	timestep int
	resets   int
	renders  []string
	closed   bool
}

func (s *scriptedEnv) Reset() (anyvec.Vector, error) {
	s.resets++
	s.timestep = 1
	return s.obsVec(), nil
}

func (s *scriptedEnv) Step(action anyvec.Vector) (obs anyvec.Vector, rew float64,
	done bool, err error) {
	obs = s.obsVec()
	rew = s.RewardScale * float64(s.timestep)
	done = s.timestep == s.EpLen
	s.timestep++
	return
}

func (s *scriptedEnv) obsVec() anyvec.Vector {
	obs := make([]float64, len(s.BaseObs))
	for i, x := range s.BaseObs {
		obs[i] = x * float64(s.timestep)
	}
	return anyvec.Make(s.Creator, obs)
}

func (s *scriptedEnv) ObservationSpace() *Space {
	return BoxSpace(len(s.BaseObs))
}

func (s *scriptedEnv) ActionSpace() *Space {
	return BoxSpace(1)
}

func (s *scriptedEnv) Render(mode string) error {
	s.renders = append(s.renders, mode)
	return nil
}

func (s *scriptedEnv) Close() error {
	s.closed = true
	return nil
}

func testActions(c anyvec.Creator, n int) []anyvec.Vector {
	actions := make([]anyvec.Vector, n)
	for i := range actions {
		actions[i] = anyvec.Make(c, []float64{0})
	}
	return actions
}

func TestLocalVecEnvStep(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	short := &scriptedEnv{Creator: c, BaseObs: []float64{1, 2}, RewardScale: 1, EpLen: 2}
	long := &scriptedEnv{Creator: c, BaseObs: []float64{-1, 3}, RewardScale: 0.5, EpLen: 5}
	vecEnv := NewLocalVecEnv(short, long)

	if _, err := vecEnv.Reset(); err != nil {
		t.Fatal(err)
	}

	// First step: neither episode ends.
	_, rewards, dones, infos, err := vecEnv.Step(testActions(c, 2))
	if err != nil {
		t.Fatal(err)
	}
	if rewards[0] != 1 || rewards[1] != 0.5 {
		t.Errorf("bad rewards: %v", rewards)
	}
	if dones[0] || dones[1] {
		t.Errorf("bad dones: %v", dones)
	}
	if infos[0] != nil || infos[1] != nil {
		t.Errorf("bad infos: %v", infos)
	}

	// Second step: the short episode ends and the slot is
	// reset on the fly.
	obs, rewards, dones, infos, err := vecEnv.Step(testActions(c, 2))
	if err != nil {
		t.Fatal(err)
	}
	if !dones[0] || dones[1] {
		t.Errorf("bad dones: %v", dones)
	}
	if rewards[0] != 2 {
		t.Errorf("bad reward at boundary: %v", rewards[0])
	}
	if short.resets != 2 {
		t.Errorf("finished slot should have reset, resets=%d", short.resets)
	}
	if long.resets != 1 {
		t.Errorf("running slot should not have reset, resets=%d", long.resets)
	}
	if infos[0] == nil {
		t.Fatal("expected episode info at boundary")
	}
	if infos[0]["episode_reward"].(float64) != 3 {
		t.Errorf("bad episode reward: %v", infos[0]["episode_reward"])
	}
	if infos[0]["episode_steps"].(int) != 2 {
		t.Errorf("bad episode steps: %v", infos[0]["episode_steps"])
	}

	// The returned observation for the finished slot
	// belongs to the fresh episode (timestep 1).
	data := c.Float64Slice(obs[0].Data())
	if data[0] != 1 || data[1] != 2 {
		t.Errorf("expected fresh-episode observation, got %v", data)
	}
}

func TestLocalVecEnvActionMismatch(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	vecEnv := NewLocalVecEnv(
		&scriptedEnv{Creator: c, BaseObs: []float64{1}, EpLen: 3},
		&scriptedEnv{Creator: c, BaseObs: []float64{1}, EpLen: 3},
	)
	if _, err := vecEnv.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, _, _, _, err := vecEnv.Step(testActions(c, 1)); err == nil {
		t.Error("expected error for mismatched action count")
	}
}

func TestLocalVecEnvRenderClose(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	envs := []*scriptedEnv{
		{Creator: c, BaseObs: []float64{1}, EpLen: 3},
		{Creator: c, BaseObs: []float64{2}, EpLen: 3},
	}
	vecEnv := NewLocalVecEnv(envs[0], envs[1])

	if err := vecEnv.Render("human"); err != nil {
		t.Fatal(err)
	}
	if err := vecEnv.Close(); err != nil {
		t.Fatal(err)
	}
	for i, e := range envs {
		if len(e.renders) != 1 || e.renders[0] != "human" {
			t.Errorf("env %d: bad renders: %v", i, e.renders)
		}
		if !e.closed {
			t.Errorf("env %d: not closed", i)
		}
	}
}
