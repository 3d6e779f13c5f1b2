// Package trl provides the environment-side plumbing for
// trust-region policy optimization experiments: running
// mean/variance normalizers for observations and returns,
// a vectorized environment facade that applies them, and
// rollout collection over the normalized batches.
package trl
