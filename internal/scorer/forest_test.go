package scorer

import (
	"math"
	"testing"
)

func TestAveragePathLength(t *testing.T) {
	cases := []struct {
		n    int
		want float64
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 2*(math.Log(2)+eulerGamma) - 4.0/3},
	}
	for _, tc := range cases {
		if got := averagePathLength(tc.n); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("averagePathLength(%d) = %v, want %v", tc.n, got, tc.want)
		}
	}
}

// The test forest uses max_samples 2 so the depth normalizer is exactly
// 1 and scores come out as exact powers of two.
func testForestSpec() ModelSpec {
	return ModelSpec{
		Type:       ModelIsolationForest,
		MaxSamples: 2,
		Trees: []ForestTree{
			{Nodes: []ForestNode{
				{Feature: 0, Threshold: 0.5, Left: 1, Right: 2},
				{Feature: -1, Size: 1},
				{Feature: 0, Threshold: 1.5, Left: 3, Right: 4},
				{Feature: -1, Size: 1},
				{Feature: -1, Size: 2},
			}},
		},
	}
}

func TestIsolationForestScore(t *testing.T) {
	model, err := buildModel(testForestSpec(), 1)
	if err != nil {
		t.Fatalf("buildModel: %v", err)
	}

	cases := []struct {
		name string
		vec  []float64
		want float64
	}{
		// depth 1, singleton leaf: h=1, 2^-1
		{"shallow isolation", []float64{0.2}, 0.5},
		// depth 2, singleton leaf: h=2, 2^-2
		{"deeper isolation", []float64{1.0}, 0.25},
		// depth 2 plus c(2)=1 leaf correction: h=3, 2^-3
		{"crowded leaf", []float64{2.0}, 0.125},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := model.Score(tc.vec); got != tc.want {
				t.Errorf("Score(%v) = %v, want %v", tc.vec, got, tc.want)
			}
		})
	}

	// Shorter paths must always outscore longer ones.
	if model.Score([]float64{0.2}) <= model.Score([]float64{2.0}) {
		t.Error("easily isolated point should score higher than a crowded one")
	}
}

func TestIsolationForestAveragesTrees(t *testing.T) {
	spec := testForestSpec()
	// A single-leaf tree contributes h = 0 + c(2) = 1 for every input.
	spec.Trees = append(spec.Trees, ForestTree{Nodes: []ForestNode{{Feature: -1, Size: 2}}})

	model, err := buildModel(spec, 1)
	if err != nil {
		t.Fatalf("buildModel: %v", err)
	}

	// Mean of depths 1 and 1 is 1: 2^-1.
	if got := model.Score([]float64{0.2}); got != 0.5 {
		t.Errorf("Score = %v, want 0.5", got)
	}
	// Mean of depths 3 and 1 is 2: 2^-2.
	if got := model.Score([]float64{2.0}); got != 0.25 {
		t.Errorf("Score = %v, want 0.25", got)
	}
}

func TestIsolationForestOffset(t *testing.T) {
	spec := testForestSpec()
	spec.Offset = -0.5

	model, err := buildModel(spec, 1)
	if err != nil {
		t.Fatalf("buildModel: %v", err)
	}
	if got := model.Score([]float64{0.2}); got != 0 {
		t.Errorf("Score = %v, want 0 after offset", got)
	}
}

func TestIsolationForestValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ModelSpec)
	}{
		{"no trees", func(s *ModelSpec) { s.Trees = nil }},
		{"empty tree", func(s *ModelSpec) { s.Trees = []ForestTree{{}} }},
		{"max_samples too small", func(s *ModelSpec) { s.MaxSamples = 1 }},
		{"feature out of range", func(s *ModelSpec) { s.Trees[0].Nodes[0].Feature = 5 }},
		{"child out of range", func(s *ModelSpec) { s.Trees[0].Nodes[0].Right = 99 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := testForestSpec()
			tc.mutate(&spec)
			if _, err := buildModel(spec, 1); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLinearModelScore(t *testing.T) {
	model, err := buildModel(ModelSpec{Type: ModelLinear, Weights: []float64{2, -1}, Bias: 0.5}, 2)
	if err != nil {
		t.Fatalf("buildModel: %v", err)
	}
	if got := model.Score([]float64{3, 4}); got != 2.5 {
		t.Errorf("Score = %v, want 2.5", got)
	}
}

func TestBuildModelUnknownType(t *testing.T) {
	_, err := buildModel(ModelSpec{Type: "gradient_boost"}, 1)
	if err == nil {
		t.Fatal("expected error for unknown model type")
	}
}
