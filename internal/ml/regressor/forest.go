package regressor

import (
	"context"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForestParams configures a random forest.
type ForestParams struct {
	Trees    int
	MaxDepth int
	Seed     uint64
}

// DefaultForestParams matches the production ensemble: 100 trees, depth 10.
func DefaultForestParams() ForestParams {
	return ForestParams{Trees: 100, MaxDepth: 10, Seed: 42}
}

// Forest averages bootstrap-trained regression trees.
type Forest struct {
	Trees []Tree
}

// FitForest grows p.Trees trees, each on a bootstrap resample of (xs, ys),
// splitting on squared error. Each tree draws from its own seeded source, so
// the result does not depend on scheduling.
func FitForest(ctx context.Context, xs, ys []float64, p ForestParams) (*Forest, error) {
	if err := checkTrainingData(xs, ys); err != nil {
		return nil, err
	}
	if p.Trees <= 0 {
		p.Trees = 1
	}

	trees := make([]Tree, p.Trees)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := range trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(p.Seed, uint64(t)))
			bx, by := bootstrap(rng, xs, ys)
			bx, by = sortByInput(bx, by)
			b := &treeBuilder{
				xs:       bx,
				vs:       by,
				maxDepth: p.MaxDepth,
				minSplit: 2,
				minChild: 1,
				score:    func(sum, n float64) float64 { return sum * sum / n },
				leaf:     func(sum, n float64) float64 { return sum / n },
			}
			trees[t] = b.grow()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Forest{Trees: trees}, nil
}

func bootstrap(rng *rand.Rand, xs, ys []float64) ([]float64, []float64) {
	n := len(xs)
	bx := make([]float64, n)
	by := make([]float64, n)
	for i := range n {
		j := rng.IntN(n)
		bx[i] = xs[j]
		by[i] = ys[j]
	}
	return bx, by
}

func (m *Forest) Kind() Kind { return KindRandomForest }

func (m *Forest) Predict(x float64) float64 {
	if len(m.Trees) == 0 {
		return 0
	}
	var total float64
	for _, t := range m.Trees {
		total += t.Predict(x)
	}
	return total / float64(len(m.Trees))
}

func (m *Forest) Fitted() bool { return m != nil && len(m.Trees) > 0 }

func (m *Forest) Validate() error { return validateTrees(m.Trees) }
