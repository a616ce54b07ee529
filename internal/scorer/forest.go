package scorer

import (
	"fmt"
	"math"
)

// ForestTree is one isolation tree, stored as a flat node array with
// the root at index 0.
type ForestTree struct {
	Nodes []ForestNode `json:"nodes"`
}

// ForestNode is a single split or leaf. Leaves carry Feature -1 and the
// count of training samples that reached them.
type ForestNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Size      int     `json:"size"`
}

const eulerGamma = 0.5772156649015329

// averagePathLength is the expected path length of an unsuccessful
// search in a binary tree over n samples. It normalizes isolation
// depths and extends the path at leaves that hold more than one sample.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		nf := float64(n)
		return 2*(math.Log(nf-1)+eulerGamma) - 2*(nf-1)/nf
	}
}

type isolationForest struct {
	trees  []ForestTree
	offset float64
	norm   float64
}

func newIsolationForest(spec ModelSpec, features int) (Model, error) {
	if len(spec.Trees) == 0 {
		return nil, fmt.Errorf("%w: isolation forest has no trees", ErrInvalidArtifact)
	}
	if spec.MaxSamples < 2 {
		return nil, fmt.Errorf("%w: isolation forest max_samples %d", ErrInvalidArtifact, spec.MaxSamples)
	}
	for ti, tree := range spec.Trees {
		if len(tree.Nodes) == 0 {
			return nil, fmt.Errorf("%w: tree %d is empty", ErrInvalidArtifact, ti)
		}
		for ni, node := range tree.Nodes {
			if node.Feature >= features {
				return nil, fmt.Errorf("%w: tree %d node %d splits on feature %d of %d", ErrInvalidArtifact, ti, ni, node.Feature, features)
			}
			if node.Feature >= 0 &&
				(node.Left < 0 || node.Left >= len(tree.Nodes) ||
					node.Right < 0 || node.Right >= len(tree.Nodes)) {
				return nil, fmt.Errorf("%w: tree %d node %d has out-of-range children", ErrInvalidArtifact, ti, ni)
			}
		}
	}
	return &isolationForest{
		trees:  spec.Trees,
		offset: spec.Offset,
		norm:   averagePathLength(spec.MaxSamples),
	}, nil
}

// Score folds the mean isolation depth through 2^(-h/c) and shifts it
// by the trained offset. Points that isolate on short paths score
// higher.
func (f *isolationForest) Score(vec []float64) float64 {
	var total float64
	for i := range f.trees {
		total += f.trees[i].pathLength(vec)
	}
	mean := total / float64(len(f.trees))
	return f.offset + math.Exp2(-mean/f.norm)
}

func (t *ForestTree) pathLength(vec []float64) float64 {
	var depth float64
	i := 0
	for {
		node := &t.Nodes[i]
		if node.Feature < 0 {
			return depth + averagePathLength(node.Size)
		}
		depth++
		if vec[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}
