package model

import "fmt"

// Shape describes one example's activation. Steps is zero for flat vectors.
type Shape struct {
	Steps    int
	Features int
}

// IsSequence reports whether the shape has a time axis.
func (s Shape) IsSequence() bool { return s.Steps > 0 }

// Size returns the number of values in the shape.
func (s Shape) Size() int {
	if s.Steps > 0 {
		return s.Steps * s.Features
	}
	return s.Features
}

// String formats the shape with a leading batch axis.
func (s Shape) String() string {
	if s.Steps > 0 {
		return fmt.Sprintf("(None, %d, %d)", s.Steps, s.Features)
	}
	return fmt.Sprintf("(None, %d)", s.Features)
}

// Tensor is a row-major steps x features activation of a single example.
type Tensor struct {
	Shape
	Data []float64
}

// NewTensor allocates a zero tensor.
func NewTensor(s Shape) *Tensor {
	return &Tensor{Shape: s, Data: make([]float64, s.Size())}
}

// Row returns the features of step t. Flat tensors have a single row.
func (t *Tensor) Row(step int) []float64 {
	return t.Data[step*t.Features : (step+1)*t.Features]
}

// rows returns the number of rows in the tensor.
func (t *Tensor) rows() int {
	if t.Steps > 0 {
		return t.Steps
	}
	return 1
}

// tokensTensor stores token ids in a single-feature sequence tensor.
func tokensTensor(ids []int) *Tensor {
	t := NewTensor(Shape{Steps: len(ids), Features: 1})
	for i, id := range ids {
		t.Data[i] = float64(id)
	}
	return t
}
