package metrics

import (
	"fmt"
	"time"
)

// Epoch holds the results of one pass over the training set.
type Epoch struct {
	Epoch    int
	Loss     float64
	Acc      float64
	ValLoss  float64
	ValAcc   float64
	HasVal   bool
	Duration time.Duration
}

// String formats the epoch the way the training log prints it.
func (e Epoch) String() string {
	s := fmt.Sprintf("epoch=%d loss=%.4f acc=%.4f", e.Epoch, e.Loss, e.Acc)
	if e.HasVal {
		s += fmt.Sprintf(" val_loss=%.4f val_acc=%.4f", e.ValLoss, e.ValAcc)
	}
	return s + fmt.Sprintf(" elapsed=%s", e.Duration.Round(time.Millisecond))
}

// History is the ordered list of epochs of a fit.
type History struct {
	Epochs []Epoch
}

// Append records an epoch.
func (h *History) Append(e Epoch) {
	h.Epochs = append(h.Epochs, e)
}

// Last returns the most recent epoch.
func (h *History) Last() (Epoch, bool) {
	if len(h.Epochs) == 0 {
		return Epoch{}, false
	}
	return h.Epochs[len(h.Epochs)-1], true
}

// Best returns the epoch with the highest validation accuracy, falling back
// to training accuracy when no validation data was used.
func (h *History) Best() (Epoch, bool) {
	if len(h.Epochs) == 0 {
		return Epoch{}, false
	}
	best := h.Epochs[0]
	for _, e := range h.Epochs[1:] {
		if score(e) > score(best) {
			best = e
		}
	}
	return best, true
}

func score(e Epoch) float64 {
	if e.HasVal {
		return e.ValAcc
	}
	return e.Acc
}
