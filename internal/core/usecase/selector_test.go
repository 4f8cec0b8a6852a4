package usecase

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/kirillkom/giftsense/internal/core/domain"
)

func testPool(n int) ([]string, [][]float64) {
	rng := rand.New(rand.NewSource(42))
	ids := make([]string, n)
	vecs := make([][]float64, n)
	for i := 0; i < n; i++ {
		ids[i] = string(rune('a' + i))
		vecs[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
	}
	return ids, vecs
}

func TestBuildSelectionTreeLeavesInvariant(t *testing.T) {
	for _, n := range []int{3, 5, 8, 13} {
		ids, vecs := testPool(n)
		tree := BuildSelectionTree(ids, vecs, 0)

		leaves := tree.Leaves()
		if len(leaves) != n {
			t.Fatalf("n=%d: expected %d leaves, got %d", n, n, len(leaves))
		}
		sorted := append([]string(nil), leaves...)
		sort.Strings(sorted)
		expected := append([]string(nil), ids...)
		sort.Strings(expected)
		for i := range sorted {
			if sorted[i] != expected[i] {
				t.Fatalf("n=%d: leaves %v do not cover pool %v", n, leaves, ids)
			}
		}
	}
}

func TestBuildSelectionTreeSeedReshuffles(t *testing.T) {
	ids, vecs := testPool(9)
	base := BuildSelectionTree(ids, vecs, 0)
	reshuffled := BuildSelectionTree(ids, vecs, 7)

	if len(base.Leaves()) != len(reshuffled.Leaves()) {
		t.Fatalf("reshuffle changed leaf count")
	}
}

func TestWalkOverrunFailsWithNavigation(t *testing.T) {
	ids, vecs := testPool(4)
	tree := BuildSelectionTree(ids, vecs, 0)

	node, err := tree.Walk([]int{0})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if node == nil {
		t.Fatalf("expected node after one step")
	}

	_, err = tree.Walk([]int{0, 1, 0, 1, 0, 1, 0, 1, 0, 1})
	if err == nil {
		t.Fatalf("expected overrun error")
	}
	if !domain.IsKind(err, domain.ErrNavigation) {
		t.Fatalf("expected navigation error, got %v", err)
	}
}

func TestWalkEmptyTree(t *testing.T) {
	var tree *SelectionTree
	if _, err := tree.Walk(nil); !domain.IsKind(err, domain.ErrNavigation) {
		t.Fatalf("expected navigation error, got %v", err)
	}
}

func TestSelectNextItemEmptyPool(t *testing.T) {
	if _, ok := SelectNextItem(nil, nil, []float64{1, 0}, nil, SelectNextParams{}); ok {
		t.Fatalf("expected no selection from empty pool")
	}
}

func TestSelectNextItemPrefersUncertain(t *testing.T) {
	items := map[string]domain.Item{
		"aligned":    {ID: "aligned", Vector: []float64{1, 0}},
		"orthogonal": {ID: "orthogonal", Vector: []float64{0, 1}},
	}
	taste := []float64{1, 0}

	id, ok := SelectNextItem([]string{"aligned", "orthogonal"}, items, taste, nil, SelectNextParams{})
	if !ok {
		t.Fatalf("expected a selection")
	}
	if id != "orthogonal" {
		t.Fatalf("expected the uncertain item, got %s", id)
	}
}

func TestSelectNextItemDiversityPenalty(t *testing.T) {
	items := map[string]domain.Item{
		"shown": {ID: "shown", Vector: []float64{0, 1}},
		"near":  {ID: "near", Vector: []float64{0.05, 0.999}},
		"far":   {ID: "far", Vector: []float64{0.05, -0.999}},
	}
	taste := []float64{1, 0}

	id, ok := SelectNextItem([]string{"near", "far"}, items, taste, []string{"shown"},
		SelectNextParams{LambdaDiversity: 0.5, RecentWindow: 5})
	if !ok {
		t.Fatalf("expected a selection")
	}
	if id != "far" {
		t.Fatalf("expected diversity penalty to push away from recent, got %s", id)
	}
}
