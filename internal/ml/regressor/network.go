package regressor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
)

// NetworkFormat identifies the JSON weight format written by MarshalJSON.
const NetworkFormat = "carboncast.mlp/v1"

// NetworkParams configures the feed-forward network.
type NetworkParams struct {
	Hidden       []int
	Dropout      []float64 // per hidden layer; missing entries mean no dropout
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         uint64
}

// DefaultNetworkParams matches the production ensemble: 32→16→8→1 with dropout
// 0.2 after the first two hidden layers, 50 epochs of batch 32, Adam at 1e-3.
func DefaultNetworkParams() NetworkParams {
	return NetworkParams{
		Hidden:       []int{32, 16, 8},
		Dropout:      []float64{0.2, 0.2},
		Epochs:       50,
		BatchSize:    32,
		LearningRate: 0.001,
		Seed:         42,
	}
}

// Dense is a fully connected layer. W is Out×In, row-major.
type Dense struct {
	In      int       `json:"in"`
	Out     int       `json:"out"`
	W       []float64 `json:"weights"`
	B       []float64 `json:"biases"`
	ReLU    bool      `json:"relu"`
	Dropout float64   `json:"dropout,omitempty"`
}

// Network is a ReLU multilayer perceptron with a linear output unit.
type Network struct {
	Layers []Dense
}

// EpochStats records the mean losses of one training pass.
type EpochStats struct {
	Epoch   int
	Loss    float64
	ValLoss float64
}

// FitNetwork trains on (xs, ys) with mean squared error and Adam. The
// validation pair is only evaluated for the returned history.
func FitNetwork(ctx context.Context, xs, ys, valX, valY []float64, p NetworkParams) (*Network, []EpochStats, error) {
	if err := checkTrainingData(xs, ys); err != nil {
		return nil, nil, err
	}
	if p.BatchSize <= 0 {
		p.BatchSize = 32
	}
	rng := rand.New(rand.NewPCG(p.Seed, p.Seed))
	net := newNetwork(rng, p)
	opt := newAdam(net, p.LearningRate)
	grads := net.zeroLike()
	tape := net.newTape()

	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}

	history := make([]EpochStats, 0, p.Epochs)
	for epoch := range p.Epochs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var epochLoss float64
		batches := 0
		for start := 0; start < len(order); start += p.BatchSize {
			end := min(start+p.BatchSize, len(order))
			grads.reset()
			var batchLoss float64
			scale := 2 / float64(end-start)
			for _, idx := range order[start:end] {
				out := net.forward(tape, xs[idx], rng)
				diff := out - ys[idx]
				batchLoss += diff * diff
				net.backward(tape, grads, diff*scale)
			}
			opt.step(net, grads)
			epochLoss += batchLoss / float64(end-start)
			batches++
		}

		stats := EpochStats{Epoch: epoch + 1, Loss: epochLoss / float64(batches)}
		if len(valX) > 0 {
			stats.ValLoss = net.mse(valX, valY)
		}
		history = append(history, stats)
	}
	return net, history, nil
}

func newNetwork(rng *rand.Rand, p NetworkParams) *Network {
	sizes := append([]int{1}, p.Hidden...)
	sizes = append(sizes, 1)
	net := &Network{Layers: make([]Dense, len(sizes)-1)}
	for l := range net.Layers {
		in, out := sizes[l], sizes[l+1]
		limit := math.Sqrt(6 / float64(in+out))
		d := Dense{In: in, Out: out, W: make([]float64, in*out), B: make([]float64, out), ReLU: l < len(net.Layers)-1}
		for i := range d.W {
			d.W[i] = (rng.Float64()*2 - 1) * limit
		}
		if l < len(p.Dropout) {
			d.Dropout = p.Dropout[l]
		}
		net.Layers[l] = d
	}
	return net
}

func (m *Network) Kind() Kind { return KindNeural }

// Predict runs inference; dropout is inactive.
func (m *Network) Predict(x float64) float64 {
	act := []float64{x}
	for _, d := range m.Layers {
		next := make([]float64, d.Out)
		for o := range d.Out {
			z := d.B[o]
			row := d.W[o*d.In : (o+1)*d.In]
			for i, a := range act {
				z += row[i] * a
			}
			if d.ReLU && z < 0 {
				z = 0
			}
			next[o] = z
		}
		act = next
	}
	return act[0]
}

func (m *Network) Fitted() bool { return m != nil && len(m.Layers) > 0 }

func (m *Network) mse(xs, ys []float64) float64 {
	var total float64
	for i, x := range xs {
		d := m.Predict(x) - ys[i]
		total += d * d
	}
	return total / float64(len(xs))
}

// tape holds per-sample activations for backpropagation.
type tape struct {
	input float64
	pre   [][]float64 // pre-activation per layer
	post  [][]float64 // post-activation, post-dropout per layer
	mask  [][]float64 // dropout multipliers per layer
	delta [][]float64
}

func (m *Network) newTape() *tape {
	t := &tape{}
	for _, d := range m.Layers {
		t.pre = append(t.pre, make([]float64, d.Out))
		t.post = append(t.post, make([]float64, d.Out))
		t.mask = append(t.mask, make([]float64, d.Out))
		t.delta = append(t.delta, make([]float64, d.Out))
	}
	return t
}

func (t *tape) layerInput(l int) []float64 {
	if l == 0 {
		return []float64{t.input}
	}
	return t.post[l-1]
}

// forward runs a training pass with inverted dropout.
func (m *Network) forward(t *tape, x float64, rng *rand.Rand) float64 {
	t.input = x
	for l, d := range m.Layers {
		in := t.layerInput(l)
		keep := 1 - d.Dropout
		for o := range d.Out {
			z := d.B[o]
			row := d.W[o*d.In : (o+1)*d.In]
			for i, a := range in {
				z += row[i] * a
			}
			t.pre[l][o] = z
			a := z
			if d.ReLU && a < 0 {
				a = 0
			}
			mask := 1.0
			if d.Dropout > 0 {
				if rng.Float64() < d.Dropout {
					mask = 0
				} else {
					mask = 1 / keep
				}
			}
			t.mask[l][o] = mask
			t.post[l][o] = a * mask
		}
	}
	return t.post[len(m.Layers)-1][0]
}

// backward accumulates gradients for one sample given dLoss/dOutput.
func (m *Network) backward(t *tape, g *Network, dOut float64) {
	last := len(m.Layers) - 1
	t.delta[last][0] = dOut * t.mask[last][0]
	for l := last; l >= 0; l-- {
		d := m.Layers[l]
		gd := g.Layers[l]
		in := t.layerInput(l)
		for o := range d.Out {
			delta := t.delta[l][o]
			gd.B[o] += delta
			row := gd.W[o*d.In : (o+1)*d.In]
			for i, a := range in {
				row[i] += delta * a
			}
		}
		if l == 0 {
			continue
		}
		prev := m.Layers[l-1]
		for i := range prev.Out {
			var sum float64
			for o := range d.Out {
				sum += d.W[o*d.In+i] * t.delta[l][o]
			}
			if prev.ReLU && t.pre[l-1][i] <= 0 {
				sum = 0
			}
			t.delta[l-1][i] = sum * t.mask[l-1][i]
		}
	}
}

func (m *Network) zeroLike() *Network {
	z := &Network{Layers: make([]Dense, len(m.Layers))}
	for l, d := range m.Layers {
		z.Layers[l] = Dense{In: d.In, Out: d.Out, W: make([]float64, len(d.W)), B: make([]float64, len(d.B))}
	}
	return z
}

func (m *Network) reset() {
	for _, d := range m.Layers {
		clear(d.W)
		clear(d.B)
	}
}

// adam implements the Adam optimizer with Keras' default constants.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  *Network
}

func newAdam(net *Network, lr float64) *adam {
	return &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-7, m: net.zeroLike(), v: net.zeroLike()}
}

func (a *adam) step(net, grads *Network) {
	a.t++
	lrT := a.lr * math.Sqrt(1-math.Pow(a.beta2, float64(a.t))) / (1 - math.Pow(a.beta1, float64(a.t)))
	for l := range net.Layers {
		a.update(net.Layers[l].W, grads.Layers[l].W, a.m.Layers[l].W, a.v.Layers[l].W, lrT)
		a.update(net.Layers[l].B, grads.Layers[l].B, a.m.Layers[l].B, a.v.Layers[l].B, lrT)
	}
}

func (a *adam) update(params, grads, m, v []float64, lrT float64) {
	for i, g := range grads {
		m[i] = a.beta1*m[i] + (1-a.beta1)*g
		v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
		params[i] -= lrT * m[i] / (math.Sqrt(v[i]) + a.eps)
	}
}

type networkFile struct {
	Format string  `json:"format"`
	Layers []Dense `json:"layers"`
}

// MarshalJSON writes the network's own weight format.
func (m *Network) MarshalJSON() ([]byte, error) {
	return json.Marshal(networkFile{Format: NetworkFormat, Layers: m.Layers})
}

// Validate checks that the layers chain from one input to one output.
func (m *Network) Validate() error { return validateLayers(m.Layers) }

func validateLayers(layers []Dense) error {
	if len(layers) == 0 {
		return fmt.Errorf("regressor: network has no layers")
	}
	if layers[0].In != 1 {
		return fmt.Errorf("regressor: first layer takes %d inputs, want 1", layers[0].In)
	}
	if last := layers[len(layers)-1]; last.Out != 1 {
		return fmt.Errorf("regressor: last layer has %d outputs, want 1", last.Out)
	}
	for i, d := range layers {
		if d.In <= 0 || d.Out <= 0 {
			return fmt.Errorf("regressor: layer %d has empty shape %dx%d", i, d.In, d.Out)
		}
		if len(d.W) != d.In*d.Out || len(d.B) != d.Out {
			return fmt.Errorf("regressor: layer %d has inconsistent shape", i)
		}
		if i > 0 && layers[i-1].Out != d.In {
			return fmt.Errorf("regressor: layer %d input does not match previous output", i)
		}
	}
	return nil
}

// UnmarshalJSON reads the format written by MarshalJSON and checks that the
// layers chain from one input to one output.
func (m *Network) UnmarshalJSON(data []byte) error {
	var f networkFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if f.Format != NetworkFormat {
		return fmt.Errorf("regressor: unsupported network format %q", f.Format)
	}
	if err := validateLayers(f.Layers); err != nil {
		return err
	}
	m.Layers = f.Layers
	return nil
}
