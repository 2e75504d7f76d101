package model

import "fmt"

// Variant names of the three experiment configurations.
const (
	VariantLSTM        = "lstm"
	VariantLSTMDropout = "lstm-dropout"
	VariantCNNLSTM     = "cnn-lstm"
)

// Hyper holds the hyperparameters shared by every variant.
type Hyper struct {
	VocabSize    int
	MaxLen       int
	EmbeddingDim int
	LSTMUnits    int
	Filters      int
	KernelSize   int
	PoolSize     int
	Dropout      float64
}

// DefaultHyper returns the reference hyperparameters.
func DefaultHyper() Hyper {
	return Hyper{
		VocabSize:    5000,
		MaxLen:       500,
		EmbeddingDim: 32,
		LSTMUnits:    100,
		Filters:      32,
		KernelSize:   3,
		PoolSize:     2,
		Dropout:      0.2,
	}
}

// Layers returns the layer stack of a variant.
func (h Hyper) Layers(variant string) ([]Layer, error) {
	switch variant {
	case VariantLSTM:
		return []Layer{
			NewEmbedding(h.VocabSize, h.EmbeddingDim),
			NewLSTM(h.LSTMUnits),
			NewDense(1, Sigmoid),
		}, nil
	case VariantLSTMDropout:
		return []Layer{
			NewEmbedding(h.VocabSize, h.EmbeddingDim),
			NewDropout(h.Dropout),
			NewLSTM(h.LSTMUnits),
			NewDropout(h.Dropout),
			NewDense(1, Sigmoid),
		}, nil
	case VariantCNNLSTM:
		return []Layer{
			NewEmbedding(h.VocabSize, h.EmbeddingDim),
			NewConv1D(h.Filters, h.KernelSize, PaddingSame, ReLU),
			NewMaxPool1D(h.PoolSize),
			NewLSTM(h.LSTMUnits),
			NewDense(1, Sigmoid),
		}, nil
	default:
		return nil, fmt.Errorf("model: unknown variant %q", variant)
	}
}

// Build assembles the named variant with weights drawn from seed.
func Build(variant string, h Hyper, seed int64) (*Network, error) {
	layers, err := h.Layers(variant)
	if err != nil {
		return nil, err
	}
	net := NewNetwork(variant, h.MaxLen, seed)
	if err := net.Add(layers...); err != nil {
		return nil, fmt.Errorf("build %s: %w", variant, err)
	}
	return net, nil
}
