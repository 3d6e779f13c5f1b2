package trl

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/floats"
)

// varianceEpsilon is added to variance estimates before
// taking a square root, preventing division by a
// near-zero standard deviation.
const varianceEpsilon = 1e-8

// NormalizerConfig configures a MovingAvg normalizer.
//
// All fields are resolved at construction time; changing
// them afterwards has no effect.
type NormalizerConfig struct {
	// Shape is the per-slot sample dimensionality.
	// Scalar quantities such as rewards use 1.
	Shape int

	// Center subtracts the running mean estimate.
	Center bool

	// Scale divides by the running standard deviation
	// estimate.
	Scale bool

	// Gamma is a discount factor in [0, 1).
	//
	// When non-zero, each slot keeps a discounted
	// accumulator ret = gamma*ret + sample and the shared
	// moments track the accumulator rather than the raw
	// samples, giving return-style normalization.
	// A zero Gamma tracks the raw samples.
	Gamma float64

	// Clip, when positive, clamps every element of the
	// transformed sample to [-Clip, Clip].
	Clip float64
}

// A Normalizer transforms batches of samples, one row per
// parallel environment slot.
type Normalizer interface {
	// Transform returns the normalized batch.
	//
	// If update is true, the running statistics absorb
	// the batch before the transform is applied.
	// Otherwise the normalizer state is left untouched,
	// which is how evaluation-time samples stay out of
	// the training-time statistics.
	Transform(rows [][]float64, update bool) [][]float64

	// Reset clears transient per-slot state for every
	// slot whose done flag is true.
	//
	// A nil done resets everything, including the shared
	// moment estimates. A non-nil done never touches the
	// shared moments: statistics persist across episode
	// boundaries for the whole training run.
	Reset(done []bool)
}

// Identity is a Normalizer which passes every sample
// through unchanged and keeps no state.
type Identity struct{}

// Transform returns rows unchanged.
func (Identity) Transform(rows [][]float64, update bool) [][]float64 {
	return rows
}

// Reset does nothing.
func (Identity) Reset(done []bool) {}

// MovingAvg is a Normalizer which maintains running
// mean/variance moments of its input stream (or of
// per-slot discounted accumulators of it) and uses them
// to center, scale, and clip new samples.
type MovingAvg struct {
	cfg     NormalizerConfig
	moments *RunningMoments

	// One discounted accumulator per slot, grown lazily
	// to the batch width seen in Transform.
	ret [][]float64
}

// NewMovingAvg creates a normalizer with zeroed
// statistics.
//
// It panics if the configuration is malformed.
func NewMovingAvg(cfg NormalizerConfig) *MovingAvg {
	if cfg.Shape <= 0 {
		panic("shape must be positive")
	}
	if cfg.Gamma < 0 || cfg.Gamma >= 1 {
		panic("gamma must be in [0, 1)")
	}
	if cfg.Clip < 0 {
		panic("clip must not be negative")
	}
	return &MovingAvg{
		cfg:     cfg,
		moments: NewRunningMoments(cfg.Shape),
	}
}

// Config returns the configuration the normalizer was
// created with.
func (m *MovingAvg) Config() NormalizerConfig {
	return m.cfg
}

// Moments returns the shared moment accumulators.
func (m *MovingAvg) Moments() *RunningMoments {
	return m.moments
}

// Transform normalizes a batch of samples.
//
// Before any updating call has been made the statistics
// are empty, and the transform falls back to the
// identity (aside from clipping).
func (m *MovingAvg) Transform(rows [][]float64, update bool) [][]float64 {
	if update {
		m.growTo(len(rows))
		for i, row := range rows {
			if len(row) != m.cfg.Shape {
				panic("sample dimension mismatch")
			}
			floats.Scale(m.cfg.Gamma, m.ret[i])
			floats.Add(m.ret[i], row)
			m.moments.Push(m.ret[i])
		}
	}

	haveStats := m.moments.Count() > 0
	var mean, invStd []float64
	if haveStats {
		mean = m.moments.Mean()
		invStd = make([]float64, m.cfg.Shape)
		for i, v := range m.moments.Variance() {
			invStd[i] = 1 / math.Sqrt(v+varianceEpsilon)
		}
	}

	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != m.cfg.Shape {
			panic("sample dimension mismatch")
		}
		res := append([]float64{}, row...)
		if haveStats {
			if m.cfg.Center {
				floats.Sub(res, mean)
			}
			if m.cfg.Scale {
				floats.Mul(res, invStd)
			}
		}
		if m.cfg.Clip > 0 {
			for j, x := range res {
				res[j] = math.Max(-m.cfg.Clip, math.Min(m.cfg.Clip, x))
			}
		}
		out[i] = res
	}
	return out
}

// Reset clears per-slot accumulators for finished slots,
// or all state when done is nil.
func (m *MovingAvg) Reset(done []bool) {
	if done == nil {
		m.moments.Reset()
		for _, ret := range m.ret {
			zeroSlice(ret)
		}
		return
	}
	for i, d := range done {
		if d && i < len(m.ret) {
			zeroSlice(m.ret[i])
		}
	}
}

// Data serializes the normalizer state, including the
// shared moments and per-slot accumulators.
func (m *MovingAvg) Data() (data []byte, err error) {
	defer essentials.AddCtxTo("serialize normalizer", &err)
	snapshot := movingAvgSnapshot{
		Count: m.moments.count,
		Mean:  m.moments.Mean(),
		M2:    append([]float64{}, m.moments.m2...),
		Ret:   m.ret,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snapshot); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SetData restores state previously produced by Data.
//
// The configuration itself is not serialized; restoring
// into a normalizer with a different Shape fails.
func (m *MovingAvg) SetData(data []byte) (err error) {
	defer essentials.AddCtxTo("deserialize normalizer", &err)
	var snapshot movingAvgSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snapshot); err != nil {
		return err
	}
	if len(snapshot.Mean) != m.cfg.Shape || len(snapshot.M2) != m.cfg.Shape {
		return fmt.Errorf("shape mismatch: have %d dimensions, data has %d",
			m.cfg.Shape, len(snapshot.Mean))
	}
	m.moments.count = snapshot.Count
	copy(m.moments.mean, snapshot.Mean)
	copy(m.moments.m2, snapshot.M2)
	m.ret = snapshot.Ret
	return nil
}

type movingAvgSnapshot struct {
	Count int
	Mean  []float64
	M2    []float64
	Ret   [][]float64
}

func (m *MovingAvg) growTo(numSlots int) {
	for len(m.ret) < numSlots {
		m.ret = append(m.ret, make([]float64, m.cfg.Shape))
	}
}

func zeroSlice(s []float64) {
	for i := range s {
		s[i] = 0
	}
}
