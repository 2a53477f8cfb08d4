// Package dataset generates reproducible synthetic training data per sector
// and splits it into train/validation/test partitions.
package dataset

import (
	"math"
	"math/rand/v2"

	"carboncast/pkg/domain"
)

const (
	DefaultSamples = 5000
	DefaultSeed    = 42

	growthMin       = 1.05
	growthMax       = 1.20
	improvementMax  = 0.15
	noiseStdPercent = 0.05
)

// Record is one labeled sample.
type Record struct {
	Input           float64
	FutureFootprint float64
}

// Dataset is a column-oriented set of records.
type Dataset struct {
	Inputs  []float64
	Targets []float64
}

// Len returns the number of records.
func (d Dataset) Len() int {
	return len(d.Inputs)
}

// Record returns the i-th record.
func (d Dataset) Record(i int) Record {
	return Record{Input: d.Inputs[i], FutureFootprint: d.Targets[i]}
}

// NewRand returns the deterministic source every generator and splitter uses.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// Generate draws n samples for sector. Each column is drawn in full before the
// next (inputs, growth, improvement, noise) so the sequence only depends on
// seed and n.
func Generate(sector domain.Sector, n int, seed uint64) Dataset {
	if n <= 0 {
		return Dataset{}
	}
	rng := NewRand(seed)
	lo, hi := sector.InputRange()
	factor := sector.EmissionFactor()

	inputs := make([]float64, n)
	current := make([]float64, n)
	for i := range inputs {
		inputs[i] = lo + rng.Float64()*(hi-lo)
		current[i] = inputs[i] * factor
	}

	growth := make([]float64, n)
	for i := range growth {
		growth[i] = growthMin + rng.Float64()*(growthMax-growthMin)
	}

	improvement := make([]float64, n)
	for i := range improvement {
		improvement[i] = rng.Float64() * improvementMax * current[i]
	}

	targets := make([]float64, n)
	for i := range targets {
		noise := rng.NormFloat64() * noiseStdPercent * current[i]
		targets[i] = math.Max(0, current[i]*growth[i]-improvement[i]+noise)
	}

	return Dataset{Inputs: inputs, Targets: targets}
}

// Split shuffles ds with seed and returns (rest, held) where held receives
// ceil(heldFraction * n) records.
func Split(ds Dataset, heldFraction float64, seed uint64) (rest, held Dataset) {
	n := ds.Len()
	nHeld := int(math.Ceil(heldFraction * float64(n)))
	if nHeld > n {
		nHeld = n
	}
	perm := NewRand(seed).Perm(n)

	held = subset(ds, perm[:nHeld])
	rest = subset(ds, perm[nHeld:])
	return rest, held
}

func subset(ds Dataset, idx []int) Dataset {
	out := Dataset{
		Inputs:  make([]float64, len(idx)),
		Targets: make([]float64, len(idx)),
	}
	for i, j := range idx {
		out.Inputs[i] = ds.Inputs[j]
		out.Targets[i] = ds.Targets[j]
	}
	return out
}

// Partitions holds the three splits used by training.
type Partitions struct {
	Train      Dataset
	Validation Dataset
	Test       Dataset
}

// Partition splits ds 70/30, then the 30 in half, giving 70/15/15.
func Partition(ds Dataset, seed uint64) Partitions {
	train, temp := Split(ds, 0.3, seed)
	val, test := Split(temp, 0.5, seed)
	return Partitions{Train: train, Validation: val, Test: test}
}
