package trl

import (
	"testing"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestMaxStepsEnvTruncation(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	env := &MaxStepsEnv{
		Env:      &scriptedEnv{Creator: c, BaseObs: []float64{1}, EpLen: 10},
		MaxSteps: 4,
	}

	// The step counter must restart with every reset.
	for episode := 0; episode < 2; episode++ {
		if _, err := env.Reset(); err != nil {
			t.Fatal(err)
		}
		for step := 1; step <= 4; step++ {
			_, _, done, err := env.Step(anyvec.Make(c, []float64{0}))
			if err != nil {
				t.Fatal(err)
			}
			if expected := step == 4; done != expected {
				t.Errorf("episode %d step %d: done should be %v but got %v",
					episode, step, expected, done)
			}
		}
	}
}

func TestMaxStepsEnvNaturalDone(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	env := &MaxStepsEnv{
		Env:      &scriptedEnv{Creator: c, BaseObs: []float64{1}, EpLen: 2},
		MaxSteps: 5,
	}

	if _, err := env.Reset(); err != nil {
		t.Fatal(err)
	}
	for step := 1; step <= 2; step++ {
		_, _, done, err := env.Step(anyvec.Make(c, []float64{0}))
		if err != nil {
			t.Fatal(err)
		}
		if expected := step == 2; done != expected {
			t.Errorf("step %d: done should be %v but got %v", step, expected, done)
		}
	}
}
