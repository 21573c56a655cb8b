package sampling

// Welford accumulates a running mean using Welford's online algorithm,
// matching the WGSL tonemap module's progressive accumulation recurrence:
// mean_n = mean_{n-1} + (x_n - mean_{n-1}) / n. Accumulating this way
// instead of summing-then-dividing keeps precision stable across the
// thousands of samples a long-running render accumulates.
type Welford struct {
	count int
	mean  float32
}

// Add folds one new sample into the running mean.
func (w *Welford) Add(x float32) {
	w.count++
	w.mean += (x - w.mean) / float32(w.count)
}

// Mean returns the current running mean; zero before any sample is
// added.
func (w *Welford) Mean() float32 {
	return w.mean
}

// Count returns the number of samples folded in so far.
func (w *Welford) Count() int {
	return w.count
}

// Reset clears the accumulator, matching the accumulation-buffer clear
// the core.Accumulator triggers on camera/scene/tonemap changes.
func (w *Welford) Reset() {
	w.count = 0
	w.mean = 0
}
