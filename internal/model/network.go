package model

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// ErrNotCompiled is returned when training or evaluating before Compile.
var ErrNotCompiled = errors.New("model: network is not compiled")

// CompileOptions selects the loss, optimizer and metrics of a network.
type CompileOptions struct {
	Loss         string
	Optimizer    string
	Metrics      []string
	LearningRate float64
	// ClipNorm bounds the global gradient norm; zero disables clipping.
	ClipNorm float64
}

// Network is a sequential stack of layers over a padded token sequence,
// ending in a single sigmoid unit.
type Network struct {
	Name string

	input  Shape
	layers []Layer
	names  []string
	shapes []Shape
	params []*Param
	kinds  map[string]int

	seed      int64
	rng       *rand.Rand
	workers   int
	optimizer Optimizer
	clipNorm  float64
	steps     int

	workerGrads []Gradients
	total       Gradients
}

// NewNetwork starts a network that reads sequences of maxLen token ids.
func NewNetwork(name string, maxLen int, seed int64) *Network {
	return &Network{
		Name:    name,
		input:   Shape{Steps: maxLen, Features: 1},
		kinds:   make(map[string]int),
		seed:    seed,
		rng:     rand.New(rand.NewSource(seed)),
		workers: runtime.NumCPU(),
	}
}

// Add builds layers against the current output shape and appends them.
func (n *Network) Add(layers ...Layer) error {
	for _, l := range layers {
		if len(n.layers) == 0 {
			if _, ok := l.(*Embedding); !ok {
				return fmt.Errorf("model: first layer must be an Embedding, got %s", l.Kind())
			}
		}
		out, err := l.Build(n.OutputShape(), n.rng)
		if err != nil {
			return fmt.Errorf("model: add %s: %w", l.Kind(), err)
		}
		n.layers = append(n.layers, l)
		n.names = append(n.names, n.layerName(l.Kind()))
		n.shapes = append(n.shapes, out)
		n.params = append(n.params, l.Params()...)
	}
	return nil
}

func (n *Network) layerName(kind string) string {
	var base string
	switch kind {
	case "MaxPooling1D":
		base = "max_pooling1d"
	default:
		base = strings.ToLower(kind)
	}
	idx := n.kinds[base]
	n.kinds[base]++
	if idx == 0 {
		return base
	}
	return base + "_" + strconv.Itoa(idx)
}

// OutputShape returns the shape produced by the last layer added.
func (n *Network) OutputShape() Shape {
	if len(n.shapes) == 0 {
		return n.input
	}
	return n.shapes[len(n.shapes)-1]
}

// Layers returns the layers in order.
func (n *Network) Layers() []Layer { return n.layers }

// Params returns every trainable parameter.
func (n *Network) Params() []*Param { return n.params }

// CountParams returns the number of trainable values.
func (n *Network) CountParams() int {
	total := 0
	for _, p := range n.params {
		total += len(p.Data)
	}
	return total
}

// SetWorkers bounds the goroutines used per batch.
func (n *Network) SetWorkers(workers int) {
	if workers <= 0 {
		workers = 1
	}
	n.workers = workers
	n.workerGrads = nil
}

// Compile validates the output head and prepares the optimizer.
func (n *Network) Compile(opts CompileOptions) error {
	if opts.Loss != LossBinaryCrossentropy {
		return fmt.Errorf("model: unsupported loss %q", opts.Loss)
	}
	for _, m := range opts.Metrics {
		if m != MetricAccuracy {
			return fmt.Errorf("model: unsupported metric %q", m)
		}
	}
	head, ok := n.head()
	if !ok || head.Units != 1 || head.Activation != Sigmoid {
		return errors.New("model: binary_crossentropy needs a final Dense(1, sigmoid) layer")
	}
	opt, err := NewOptimizer(opts.Optimizer, opts.LearningRate)
	if err != nil {
		return err
	}
	if opts.ClipNorm < 0 {
		return fmt.Errorf("model: clip norm must be >= 0, got %g", opts.ClipNorm)
	}
	n.optimizer = opt
	n.clipNorm = opts.ClipNorm
	n.total = NewGradients(n.params)
	return nil
}

func (n *Network) head() (*Dense, bool) {
	if len(n.layers) == 0 {
		return nil, false
	}
	d, ok := n.layers[len(n.layers)-1].(*Dense)
	return d, ok
}

func (n *Network) vocabSize() int {
	return n.layers[0].(*Embedding).VocabSize
}

// Summary prints a per-layer table of output shapes and parameter counts.
func (n *Network) Summary(w io.Writer) {
	line := strings.Repeat("_", 65)
	fmt.Fprintf(w, "Model: %q\n", n.Name)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "%-29s%-26s%s\n", "Layer (type)", "Output Shape", "Param #")
	fmt.Fprintln(w, strings.Repeat("=", 65))
	for i, l := range n.layers {
		count := 0
		for _, p := range l.Params() {
			count += len(p.Data)
		}
		fmt.Fprintf(w, "%-29s%-26s%d\n", fmt.Sprintf("%s (%s)", n.names[i], l.Kind()), n.shapes[i], count)
		if i < len(n.layers)-1 {
			fmt.Fprintln(w, line)
		}
	}
	fmt.Fprintln(w, strings.Repeat("=", 65))
	total := n.CountParams()
	fmt.Fprintf(w, "Total params: %s\n", thousands(total))
	fmt.Fprintf(w, "Trainable params: %s\n", thousands(total))
	fmt.Fprintln(w, "Non-trainable params: 0")
	fmt.Fprintln(w, line)
}

func thousands(v int) string {
	s := strconv.Itoa(v)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func (n *Network) validate(b Batch) error {
	if len(n.layers) == 0 {
		return errors.New("model: network has no layers")
	}
	if len(b.Inputs) == 0 {
		return errors.New("model: empty batch")
	}
	if len(b.Labels) != len(b.Inputs) {
		return fmt.Errorf("model: %d inputs but %d labels", len(b.Inputs), len(b.Labels))
	}
	vocab := n.vocabSize()
	for i, seq := range b.Inputs {
		if len(seq) != n.input.Steps {
			return fmt.Errorf("model: input %d has length %d, want %d", i, len(seq), n.input.Steps)
		}
		for _, id := range seq {
			if id < 0 || id >= vocab {
				return fmt.Errorf("model: input %d has token id %d outside [0, %d)", i, id, vocab)
			}
		}
		if l := b.Labels[i]; l != 0 && l != 1 {
			return fmt.Errorf("model: label %d of input %d is not binary", l, i)
		}
	}
	return nil
}

// forward runs one example and returns the sigmoid probability, the logit and
// the per-layer caches.
func (n *Network) forward(ids []int, pass *Pass) (float64, float64, []any) {
	caches := make([]any, len(n.layers))
	x := tokensTensor(ids)
	for i, l := range n.layers {
		x, caches[i] = l.Forward(x, pass)
	}
	dc := caches[len(caches)-1].(*denseCache)
	return x.Data[0], dc.logits[0], caches
}

func (n *Network) backward(dLogit float64, caches []any, grads Gradients) {
	last := len(n.layers) - 1
	head := n.layers[last].(*Dense)
	dy := head.backwardLogits([]float64{dLogit}, caches[last].(*denseCache), grads)
	for i := last - 1; i >= 0 && dy != nil; i-- {
		dy = n.layers[i].Backward(dy, caches[i], grads)
	}
}

// exampleRNG derives a dropout stream that depends only on the seed, the step
// and the example position, so results do not depend on worker scheduling.
func (n *Network) exampleRNG(step, idx int) *rand.Rand {
	x := uint64(n.seed)*0x9E3779B97F4A7C15 ^ uint64(step)*0xBF58476D1CE4E5B9 ^ uint64(idx)*0x94D049BB133111EB
	x ^= x >> 31
	return rand.New(rand.NewSource(int64(x)))
}

// chunks splits [0, count) into at most workers contiguous ranges.
func chunks(count, workers int) [][2]int {
	if workers > count {
		workers = count
	}
	size := (count + workers - 1) / workers
	var out [][2]int
	for start := 0; start < count; start += size {
		end := start + size
		if end > count {
			end = count
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

// TrainStep runs forward and backward passes over the batch in parallel,
// averages the gradients and applies one optimizer update.
func (n *Network) TrainStep(b Batch) (StepResult, error) {
	if n.optimizer == nil {
		return StepResult{}, ErrNotCompiled
	}
	if err := n.validate(b); err != nil {
		return StepResult{}, err
	}
	n.steps++
	step := n.steps

	ranges := chunks(len(b.Inputs), n.workers)
	for len(n.workerGrads) < len(ranges) {
		n.workerGrads = append(n.workerGrads, NewGradients(n.params))
	}
	losses := make([]float64, len(ranges))
	correct := make([]int, len(ranges))

	var wg sync.WaitGroup
	for w, r := range ranges {
		wg.Add(1)
		go func(w int, r [2]int) {
			defer wg.Done()
			grads := n.workerGrads[w]
			grads.Zero()
			for i := r[0]; i < r[1]; i++ {
				pass := &Pass{Training: true, RNG: n.exampleRNG(step, i)}
				prob, logit, caches := n.forward(b.Inputs[i], pass)
				loss, dLogit := binaryCrossentropyLogit(logit, b.Labels[i])
				losses[w] += loss
				if predictedLabel(prob) == b.Labels[i] {
					correct[w]++
				}
				n.backward(dLogit, caches, grads)
			}
		}(w, r)
	}
	wg.Wait()

	n.total.Zero()
	res := StepResult{Count: len(b.Inputs)}
	for w := range ranges {
		n.total.Add(n.workerGrads[w])
		res.Loss += losses[w]
		res.Correct += correct[w]
	}
	scale := 1 / float64(len(b.Inputs))
	n.total.Scale(scale)
	res.Loss *= scale
	if n.clipNorm > 0 {
		clipGlobalNorm(n.total, n.clipNorm)
	}
	n.optimizer.Step(n.params, n.total)
	return res, nil
}

// EvaluateBatch computes loss and accuracy without dropout or updates.
func (n *Network) EvaluateBatch(b Batch) (StepResult, error) {
	if n.optimizer == nil {
		return StepResult{}, ErrNotCompiled
	}
	if err := n.validate(b); err != nil {
		return StepResult{}, err
	}
	probs, logits := n.infer(b.Inputs)
	res := StepResult{Count: len(b.Inputs)}
	for i, p := range probs {
		loss, _ := binaryCrossentropyLogit(logits[i], b.Labels[i])
		res.Loss += loss
		if predictedLabel(p) == b.Labels[i] {
			res.Correct++
		}
	}
	res.Loss /= float64(len(b.Inputs))
	return res, nil
}

// Predict returns the positive-class probability of each padded sequence.
func (n *Network) Predict(inputs [][]int) ([]float64, error) {
	labels := make([]int, len(inputs))
	if err := n.validate(Batch{Inputs: inputs, Labels: labels}); err != nil {
		return nil, err
	}
	probs, _ := n.infer(inputs)
	return probs, nil
}

func (n *Network) infer(inputs [][]int) ([]float64, []float64) {
	probs := make([]float64, len(inputs))
	logits := make([]float64, len(inputs))
	var wg sync.WaitGroup
	for _, r := range chunks(len(inputs), n.workers) {
		wg.Add(1)
		go func(r [2]int) {
			defer wg.Done()
			pass := &Pass{}
			for i := r[0]; i < r[1]; i++ {
				probs[i], logits[i], _ = n.forward(inputs[i], pass)
			}
		}(r)
	}
	wg.Wait()
	return probs, logits
}
