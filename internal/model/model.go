package model

// Batch represents a minibatch of padded token sequences and binary labels.
type Batch struct {
	Inputs [][]int
	Labels []int
}

// StepResult summarizes one pass over a batch.
type StepResult struct {
	Loss    float64 // mean loss over the batch
	Correct int
	Count   int
}

// Accuracy returns the fraction of correctly classified examples.
func (r StepResult) Accuracy() float64 {
	if r.Count == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Count)
}

// Model defines the training functionality the trainer relies on.
type Model interface {
	TrainStep(batch Batch) (StepResult, error)
	EvaluateBatch(batch Batch) (StepResult, error)
}
