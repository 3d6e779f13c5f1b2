package trl

// RunningMoments maintains streaming per-dimension mean
// and variance estimates over a sequence of samples.
//
// It uses the incremental update from Welford '62, so the
// estimates stay accurate even for long streams where a
// naive sum-of-squares approach would cancel
// catastrophically.
type RunningMoments struct {
	count int
	mean  []float64
	m2    []float64
}

// NewRunningMoments creates zeroed accumulators for
// dim-dimensional samples.
func NewRunningMoments(dim int) *RunningMoments {
	if dim <= 0 {
		panic("dimension must be positive")
	}
	return &RunningMoments{
		mean: make([]float64, dim),
		m2:   make([]float64, dim),
	}
}

// Dim returns the sample dimensionality.
func (r *RunningMoments) Dim() int {
	return len(r.mean)
}

// Count returns the number of samples absorbed since the
// last Reset.
func (r *RunningMoments) Count() int {
	return r.count
}

// Push folds one sample into the estimates.
//
// The very first sample sets the mean directly and leaves
// the variance at zero.
//
// It panics if the sample length does not match Dim.
func (r *RunningMoments) Push(sample []float64) {
	if len(sample) != len(r.mean) {
		panic("sample dimension mismatch")
	}
	r.count++
	if r.count == 1 {
		copy(r.mean, sample)
		return
	}
	for i, x := range sample {
		oldMean := r.mean[i]
		r.mean[i] += (x - oldMean) / float64(r.count)
		r.m2[i] += (x - oldMean) * (x - r.mean[i])
	}
}

// Mean returns a copy of the current mean estimate.
func (r *RunningMoments) Mean() []float64 {
	return append([]float64{}, r.mean...)
}

// Variance returns a copy of the current population
// variance estimate.
//
// Entries are clamped at zero, since floating-point
// cancellation in the update could otherwise leave a
// slightly negative value behind.
func (r *RunningMoments) Variance() []float64 {
	out := make([]float64, len(r.m2))
	if r.count == 0 {
		return out
	}
	for i, m2 := range r.m2 {
		v := m2 / float64(r.count)
		if v < 0 {
			v = 0
		}
		out[i] = v
	}
	return out
}

// Reset returns the accumulators to their zero state.
func (r *RunningMoments) Reset() {
	r.count = 0
	for i := range r.mean {
		r.mean[i] = 0
		r.m2[i] = 0
	}
}
