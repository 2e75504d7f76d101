package metrics

// Mean is a sample-weighted running average, used for per-epoch loss.
type Mean struct {
	sum   float64
	count int
}

// Add folds in a batch mean computed over n samples.
func (m *Mean) Add(value float64, n int) {
	if n <= 0 {
		return
	}
	m.sum += value * float64(n)
	m.count += n
}

// Value returns the running mean, or zero before any samples.
func (m *Mean) Value() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

// BinaryAccuracy counts thresholded predictions that match their labels.
type BinaryAccuracy struct {
	correct int
	total   int
}

// Add records correct hits out of n predictions.
func (a *BinaryAccuracy) Add(correct, n int) {
	a.correct += correct
	a.total += n
}

// Value returns the fraction of correct predictions.
func (a *BinaryAccuracy) Value() float64 {
	if a.total == 0 {
		return 0
	}
	return float64(a.correct) / float64(a.total)
}
