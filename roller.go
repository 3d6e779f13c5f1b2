package trl

import (
	"errors"

	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/lazyseq"
)

// TapeMaker is a function which generates a tape and a
// channel for writing to that tape.
//
// See lazyseq.ReferenceTape for an example.
type TapeMaker func(c anyvec.Creator) (tape lazyseq.Tape,
	writer chan<- *anyseq.Batch)

// An Agent maps a packed batch of observations to a
// packed batch of actions, one action per batch entry.
type Agent interface {
	Act(obs anyvec.Vector, batchSize int) (anyvec.Vector, error)
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc func(obs anyvec.Vector, batchSize int) (anyvec.Vector, error)

// Act calls a.
func (a AgentFunc) Act(obs anyvec.Vector, batchSize int) (anyvec.Vector, error) {
	return a(obs, batchSize)
}

// VecRoller runs an Agent through a NormalizedEnv for a
// fixed horizon and saves the results to RolloutSets.
//
// Because the vectorized environments reset finished
// slots on the fly, every slot contributes exactly
// NumSteps transitions, possibly spanning several
// episodes.
type VecRoller struct {
	Env   *NormalizedEnv
	Agent Agent

	// NumSteps is the rollout horizon per slot.
	NumSteps int

	// These functions are called to produce tapes when
	// building a RolloutSet.
	//
	// You can set these in order to use special storage
	// techniques (e.g. compression or on-disk storage).
	//
	// For nil fields, lazyseq.ReferenceTape is used.
	MakeInputTape  TapeMaker
	MakeActionTape TapeMaker
}

// Rollout produces a RolloutSet with one fixed-horizon
// rollout per environment slot.
func (v *VecRoller) Rollout() (rollouts *RolloutSet, err error) {
	defer essentials.AddCtxTo("rollout vectorized environments", &err)

	if v.NumSteps <= 0 {
		return nil, errors.New("horizon must be positive")
	}

	obs, err := v.Env.Reset()
	if err != nil {
		return nil, err
	}
	numSlots := len(obs)
	c := obs[0].Creator()

	inputs, inputCh := makeTape(c, v.MakeInputTape)
	actions, actionCh := makeTape(c, v.MakeActionTape)
	defer func() {
		close(inputCh)
		close(actionCh)
	}()

	present := make([]bool, numSlots)
	for i := range present {
		present[i] = true
	}
	rewards := make(Rewards, numSlots)

	for t := 0; t < v.NumSteps; t++ {
		packedObs := c.Concat(obs...)
		inputCh <- &anyseq.Batch{Present: present, Packed: packedObs}

		packedActions, err := v.Agent.Act(packedObs, numSlots)
		if err != nil {
			return nil, err
		}
		if packedActions.Len()%numSlots != 0 {
			return nil, errors.New("batch size must divide action count")
		}
		actionCh <- &anyseq.Batch{Present: present, Packed: packedActions}

		chunkSize := packedActions.Len() / numSlots
		slotActions := make([]anyvec.Vector, numSlots)
		for i := range slotActions {
			slotActions[i] = packedActions.Slice(i*chunkSize, (i+1)*chunkSize)
		}

		var rewardBatch []float64
		obs, rewardBatch, _, _, err = v.Env.Step(slotActions)
		if err != nil {
			return nil, err
		}
		for i, r := range rewardBatch {
			rewards[i] = append(rewards[i], r)
		}
	}

	return &RolloutSet{
		Inputs:  inputs,
		Actions: actions,
		Rewards: rewards,
	}, nil
}

func makeTape(c anyvec.Creator, maker TapeMaker) (lazyseq.Tape, chan<- *anyseq.Batch) {
	if maker != nil {
		return maker(c)
	} else {
		return lazyseq.ReferenceTape(c)
	}
}
