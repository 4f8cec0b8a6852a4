package usecase

import (
	"errors"
	"math"
	"math/rand"

	"github.com/kirillkom/giftsense/internal/core/domain"
	"github.com/kirillkom/giftsense/internal/core/vector"
)

// TreeNode is one node of a selection tree. Leaves carry a single item id;
// internal nodes carry the pivot pair whose similarities determined the
// split.
type TreeNode struct {
	LeafID string
	PivotI string
	PivotJ string

	left  *TreeNode
	right *TreeNode
}

// IsLeaf reports whether the node holds a single item.
func (n *TreeNode) IsLeaf() bool { return n != nil && n.left == nil && n.right == nil }

// SelectionTree is a binary tree over an item pool built from pairwise
// cosine similarities. It must be rebuilt whenever the pool or its
// embeddings change.
type SelectionTree struct {
	Root *TreeNode
}

// BuildSelectionTree partitions poolIDs by greedily searching pivot pairs
// that balance the two sides. seed != 0 shuffles the pivot search order so
// a "neither matches" reshuffle can surface different pairs; the partition
// rule itself stays deterministic. embeddings is indexed parallel to
// poolIDs.
func BuildSelectionTree(poolIDs []string, embeddings [][]float64, seed int64) *SelectionTree {
	idx := make([]int, len(poolIDs))
	for i := range idx {
		idx[i] = i
	}
	var rng *rand.Rand
	if seed != 0 {
		rng = rand.New(rand.NewSource(seed))
	}
	return &SelectionTree{Root: buildSubtree(idx, poolIDs, embeddings, rng)}
}

func buildSubtree(pool []int, ids []string, embeddings [][]float64, rng *rand.Rand) *TreeNode {
	switch len(pool) {
	case 0:
		return nil
	case 1:
		return &TreeNode{LeafID: ids[pool[0]]}
	case 2:
		a, b := pool[0], pool[1]
		return &TreeNode{
			PivotI: ids[a],
			PivotJ: ids[b],
			left:   &TreeNode{LeafID: ids[a]},
			right:  &TreeNode{LeafID: ids[b]},
		}
	}

	order := pool
	if rng != nil {
		order = make([]int, len(pool))
		copy(order, pool)
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	bestI, bestJ := -1, -1
	var bestLeft, bestRight []int
	bestBalance := math.MaxInt

search:
	for ii, i := range order {
		for _, j := range order[ii+1:] {
			left, right := splitByPivots(pool, i, j, embeddings)
			balance := abs(len(left) - len(right))
			if balance < bestBalance {
				bestI, bestJ = i, j
				bestLeft, bestRight = left, right
				bestBalance = balance
				if balance == 0 {
					break search
				}
			}
		}
	}

	// Degenerate split: everything landed on one side. Fall back to an
	// alternating partition to guarantee progress.
	if bestI < 0 || len(bestLeft) == 0 || len(bestRight) == 0 {
		return alternatingSplit(pool, ids, embeddings, rng)
	}

	return &TreeNode{
		PivotI: ids[bestI],
		PivotJ: ids[bestJ],
		left:   buildSubtree(bestLeft, ids, embeddings, rng),
		right:  buildSubtree(bestRight, ids, embeddings, rng),
	}
}

// splitByPivots sends a pool member left iff it is strictly more similar
// to pivot i than to pivot j. Equal similarity goes right; this exact
// tie-break is preserved for output compatibility.
func splitByPivots(pool []int, i, j int, embeddings [][]float64) (left, right []int) {
	for _, id := range pool {
		si := vector.Cosine(embeddings[id], embeddings[i])
		sj := vector.Cosine(embeddings[id], embeddings[j])
		if si > sj {
			left = append(left, id)
		} else {
			right = append(right, id)
		}
	}
	return left, right
}

func alternatingSplit(pool []int, ids []string, embeddings [][]float64, rng *rand.Rand) *TreeNode {
	var left, right []int
	for k, id := range pool {
		if k%2 == 0 {
			left = append(left, id)
		} else {
			right = append(right, id)
		}
	}
	return &TreeNode{
		PivotI: ids[left[0]],
		PivotJ: ids[right[0]],
		left:   buildSubtree(left, ids, embeddings, rng),
		right:  buildSubtree(right, ids, embeddings, rng),
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Walk follows decision bits from the root: 0 goes left, 1 goes right.
// Overrunning the tree depth fails with ErrNavigation; the caller resets
// its bit path and retries from the root.
func (t *SelectionTree) Walk(bits []int) (*TreeNode, error) {
	if t == nil || t.Root == nil {
		return nil, domain.WrapError(domain.ErrNavigation, "walk tree", errors.New("empty tree"))
	}
	node := t.Root
	for _, b := range bits {
		var next *TreeNode
		if b == 0 {
			next = node.left
		} else {
			next = node.right
		}
		if next == nil {
			return nil, domain.WrapError(domain.ErrNavigation, "walk tree",
				errors.New("decision bits exceed tree depth"))
		}
		node = next
	}
	return node, nil
}

// Leaves returns the leaf item ids in left-to-right order.
func (t *SelectionTree) Leaves() []string {
	var out []string
	var visit func(n *TreeNode)
	visit = func(n *TreeNode) {
		if n == nil {
			return
		}
		if n.IsLeaf() {
			out = append(out, n.LeafID)
			return
		}
		visit(n.left)
		visit(n.right)
	}
	visit(t.Root)
	return out
}

// SelectNextParams tunes the exploration/diversity trade-off of
// SelectNextItem.
type SelectNextParams struct {
	LambdaDiversity float64
	RecentWindow    int
	// SampleK > 0 subsamples large candidate pools to bound cost.
	SampleK int
	Rand    *rand.Rand
}

// SelectNextItem picks the candidate the taste vector is most uncertain
// about, penalized by similarity to recently shown items. Returns false
// when the candidate pool is empty or nothing resolves.
func SelectNextItem(candidateIDs []string, itemsByID map[string]domain.Item, taste []float64, shownIDs []string, p SelectNextParams) (string, bool) {
	if len(candidateIDs) == 0 {
		return "", false
	}

	candidates := candidateIDs
	if p.SampleK > 0 && len(candidates) > p.SampleK {
		rng := p.Rand
		if rng == nil {
			rng = rand.New(rand.NewSource(rand.Int63()))
		}
		shuffled := make([]string, len(candidates))
		copy(shuffled, candidates)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		candidates = shuffled[:p.SampleK]
	}

	var recentVecs [][]float64
	if p.RecentWindow > 0 {
		start := len(shownIDs) - p.RecentWindow
		if start < 0 {
			start = 0
		}
		for _, sid := range shownIDs[start:] {
			if item, ok := itemsByID[sid]; ok && len(item.Vector) > 0 {
				recentVecs = append(recentVecs, item.Vector)
			}
		}
	}

	bestID := ""
	bestScore := math.Inf(-1)
	for _, cid := range candidates {
		item, ok := itemsByID[cid]
		if !ok {
			continue
		}

		info := 1.0 - math.Abs(vector.Cosine(taste, item.Vector))
		penalty := 0.0
		if len(recentVecs) > 0 {
			maxSim := math.Inf(-1)
			for _, rv := range recentVecs {
				if sim := vector.Cosine(item.Vector, rv); sim > maxSim {
					maxSim = sim
				}
			}
			penalty = p.LambdaDiversity * maxSim
		}

		if score := info - penalty; score > bestScore {
			bestScore = score
			bestID = cid
		}
	}

	if bestID == "" {
		return "", false
	}
	return bestID, true
}
