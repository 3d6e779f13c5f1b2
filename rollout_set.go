package trl

import (
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/lazyseq"
)

// A RolloutSet is a batch of recorded transitions from a
// vectorized rollout.
type RolloutSet struct {
	// Inputs contains the normalized observations fed to
	// the agent at each timestep.
	Inputs lazyseq.Tape

	// Actions contains the actions taken by the agent at
	// each timestep.
	Actions lazyseq.Tape

	// Rewards contains the rewards at each timestep,
	// normalized the same way the training loop saw them.
	Rewards Rewards
}

// PackRolloutSets joins multiple RolloutSets into one
// larger set.
func PackRolloutSets(c anyvec.Creator, rs []*RolloutSet) *RolloutSet {
	res := &RolloutSet{}

	fieldGetters := []func(r *RolloutSet) *lazyseq.Tape{
		func(r *RolloutSet) *lazyseq.Tape {
			return &r.Inputs
		},
		func(r *RolloutSet) *lazyseq.Tape {
			return &r.Actions
		},
	}
	for _, getter := range fieldGetters {
		var tapes []lazyseq.Tape
		for _, r := range rs {
			tapes = append(tapes, *getter(r))
		}
		*getter(res) = lazyseq.PackTape(c, tapes)
	}

	rewards := make([]Rewards, len(rs))
	for i, r := range rs {
		rewards[i] = r.Rewards
	}
	res.Rewards = PackRewards(rewards)

	return res
}

// NumSteps counts the total number of timesteps across
// every slot.
func (r *RolloutSet) NumSteps() int {
	var count int
	for _, seq := range r.Rewards {
		count += len(seq)
	}
	return count
}
