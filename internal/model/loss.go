package model

import "math"

// Loss and metric names accepted by Compile.
const (
	LossBinaryCrossentropy = "binary_crossentropy"
	MetricAccuracy         = "accuracy"
)

// binaryCrossentropyLogit returns the cross-entropy of a sigmoid output given
// its logit z, and the gradient of that loss with respect to z.
func binaryCrossentropyLogit(z float64, label int) (loss, grad float64) {
	y := float64(label)
	loss = math.Max(z, 0) - z*y + math.Log1p(math.Exp(-math.Abs(z)))
	grad = sigmoid(z) - y
	return loss, grad
}

// predictedLabel thresholds a probability at 0.5.
func predictedLabel(p float64) int {
	if p > 0.5 {
		return 1
	}
	return 0
}
