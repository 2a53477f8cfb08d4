package regressor

import (
	"fmt"
	"math"
	"sort"
)

// Node is one node of a flattened binary tree. Inputs x <= Threshold go Left.
type Node struct {
	Threshold float64
	Left      int32
	Right     int32
	Value     float64
	Leaf      bool
}

// Tree is a regression tree over a single feature, root at index 0.
type Tree struct {
	Nodes []Node
}

// Predict walks the tree for x.
func (t Tree) Predict(x float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := int32(0)
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Validate checks that every split points forward to an existing node, which
// bounds Predict to len(Nodes) steps. Trees built by treeBuilder always pass.
func (t Tree) Validate() error {
	n := len(t.Nodes)
	for i, nd := range t.Nodes {
		if nd.Leaf {
			continue
		}
		if !forwardChild(i, nd.Left, n) || !forwardChild(i, nd.Right, n) {
			return fmt.Errorf("regressor: node %d has invalid children %d/%d in a tree of %d nodes", i, nd.Left, nd.Right, n)
		}
	}
	return nil
}

func forwardChild(parent int, child int32, n int) bool {
	return int(child) > parent && int(child) < n
}

func validateTrees(trees []Tree) error {
	for i, t := range trees {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// treeBuilder grows a tree over inputs sorted ascending. Because there is one
// feature, every node covers a contiguous range of the sorted samples and
// candidate splits are scored from running sums.
type treeBuilder struct {
	xs       []float64 // sorted inputs
	vs       []float64 // per-sample statistic aligned with xs
	maxDepth int
	minSplit int
	minChild float64

	// score rates one side of a split from its sum and count; higher is better.
	score func(sum, n float64) float64
	// leaf turns a node's sum and count into its output.
	leaf func(sum, n float64) float64
	// onLeaf, when set, is told which sorted range landed in each leaf.
	onLeaf func(lo, hi int, value float64)

	nodes []Node
}

func (b *treeBuilder) grow() Tree {
	b.nodes = b.nodes[:0]
	if len(b.xs) > 0 {
		b.build(0, len(b.xs), 0)
	}
	nodes := make([]Node, len(b.nodes))
	copy(nodes, b.nodes)
	return Tree{Nodes: nodes}
}

func (b *treeBuilder) build(lo, hi, depth int) int32 {
	idx := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{})

	var sum float64
	for i := lo; i < hi; i++ {
		sum += b.vs[i]
	}
	n := float64(hi - lo)

	split := -1
	if depth < b.maxDepth && hi-lo >= b.minSplit {
		parent := b.score(sum, n)
		bestGain := 1e-12 * math.Max(1, math.Abs(parent))
		var left float64
		for i := lo + 1; i < hi; i++ {
			left += b.vs[i-1]
			if b.xs[i] == b.xs[i-1] {
				continue
			}
			nl := float64(i - lo)
			nr := n - nl
			if nl < b.minChild || nr < b.minChild {
				continue
			}
			gain := b.score(left, nl) + b.score(sum-left, nr) - parent
			if gain > bestGain {
				bestGain = gain
				split = i
			}
		}
	}

	if split < 0 {
		value := b.leaf(sum, n)
		b.nodes[idx] = Node{Leaf: true, Value: value}
		if b.onLeaf != nil {
			b.onLeaf(lo, hi, value)
		}
		return idx
	}

	threshold := b.xs[split-1] + (b.xs[split]-b.xs[split-1])/2
	if threshold >= b.xs[split] {
		threshold = b.xs[split-1]
	}
	l := b.build(lo, split, depth+1)
	r := b.build(split, hi, depth+1)
	b.nodes[idx] = Node{Threshold: threshold, Left: l, Right: r}
	return idx
}

// sortByInput returns copies of xs and ys ordered by ascending x.
func sortByInput(xs, ys []float64) ([]float64, []float64) {
	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return xs[order[a]] < xs[order[b]] })

	sx := make([]float64, len(xs))
	sy := make([]float64, len(ys))
	for i, j := range order {
		sx[i] = xs[j]
		sy[i] = ys[j]
	}
	return sx, sy
}
