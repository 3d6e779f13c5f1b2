package trl

import (
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/lazyseq"
	"gonum.org/v1/gonum/stat"
)

// Rewards stores the immediate rewards for a batch of
// rollouts, one sequence per slot.
type Rewards [][]float64

// PackRewards concatenates batches of rewards.
func PackRewards(batches []Rewards) Rewards {
	var res Rewards
	for _, b := range batches {
		res = append(res, b...)
	}
	return res
}

// Tape converts the rewards to a lazyseq.Tape, with one
// batch per timestep.
//
// A slot stays present in a timestep's batch for as long
// as its sequence has rewards left.
func (r Rewards) Tape(c anyvec.Creator) lazyseq.Tape {
	resTape, writer := lazyseq.ReferenceTape(c)

	for t := 0; true; t++ {
		var packed []float64
		present := make([]bool, len(r))
		for i, seq := range r {
			if t < len(seq) {
				present[i] = true
				packed = append(packed, seq[t])
			}
		}
		if len(packed) == 0 {
			break
		}
		writer <- &anyseq.Batch{
			Present: present,
			Packed:  anyvec.Make(c, packed),
		}
	}

	close(writer)
	return resTape
}

// Totals sums each sequence of rewards.
func (r Rewards) Totals() []float64 {
	res := make([]float64, len(r))
	for i, seq := range r {
		for _, x := range seq {
			res[i] += x
		}
	}
	return res
}

// Mean computes the mean total reward across the
// sequences.
func (r Rewards) Mean() float64 {
	return stat.Mean(r.Totals(), nil)
}

// Variance computes the population variance of the total
// rewards across the sequences.
func (r Rewards) Variance() float64 {
	totals := r.Totals()
	mean := stat.Mean(totals, nil)
	var sum float64
	for _, x := range totals {
		diff := x - mean
		sum += diff * diff
	}
	return sum / float64(len(totals))
}

// Reduce keeps the sequences for which present is true,
// setting all the other sequences to nil.
func (r Rewards) Reduce(present []bool) Rewards {
	res := make(Rewards, len(r))
	for i, p := range present {
		if p {
			res[i] = r[i]
		}
	}
	return res
}
