package usecase

import (
	"sort"
	"strings"

	"github.com/kirillkom/giftsense/internal/core/domain"
	"github.com/kirillkom/giftsense/internal/core/vector"
)

// VariantParams tunes FindVariants. Axes entries take the form
// "prefix:left|right" (e.g. "style:casual|premium"); candidates on the
// opposite side of an axis from the reference get a small boost so the
// variants contrast rather than repeat.
type VariantParams struct {
	MinTagOverlap float64
	MaxCosine     float64
	Axes          []string
	Limit         int
}

const axisContrastBoost = 0.02

// Variant is a candidate item similar in theme to a reference but visually
// distinct from it.
type Variant struct {
	ItemID  string  `json:"item_id"`
	Overlap float64 `json:"overlap"`
	Cosine  float64 `json:"cosine"`
}

// FindVariants returns items sharing the reference's tag theme (Jaccard
// overlap at or above MinTagOverlap) while staying visually apart from it
// (cosine at or below MaxCosine). Results are ordered by boosted overlap
// descending, then cosine ascending.
func FindVariants(ref domain.Item, pool []domain.Item, p VariantParams) []Variant {
	refTags := tagSet(ref.Tags)

	type scored struct {
		v     Variant
		boost float64
	}
	var out []scored
	for _, cand := range pool {
		if cand.ID == ref.ID {
			continue
		}
		overlap := jaccard(refTags, tagSet(cand.Tags))
		if overlap < p.MinTagOverlap {
			continue
		}
		cos := vector.Cosine(ref.Vector, cand.Vector)
		if cos > p.MaxCosine {
			continue
		}
		boost := 0.0
		for _, axis := range p.Axes {
			if onOppositeSides(refTags, tagSet(cand.Tags), axis) {
				boost += axisContrastBoost
			}
		}
		out = append(out, scored{
			v:     Variant{ItemID: cand.ID, Overlap: overlap, Cosine: cos},
			boost: boost,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		si := out[i].v.Overlap + out[i].boost
		sj := out[j].v.Overlap + out[j].boost
		if si != sj {
			return si > sj
		}
		return out[i].v.Cosine < out[j].v.Cosine
	})

	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	variants := make([]Variant, len(out))
	for i, s := range out {
		variants[i] = s.v
	}
	return variants
}

func tagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if n := strings.ToLower(strings.TrimSpace(t)); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// onOppositeSides reports whether one item carries the left tag of an axis
// and the other the right tag.
func onOppositeSides(a, b map[string]struct{}, axis string) bool {
	_, sides, ok := strings.Cut(axis, ":")
	if !ok {
		return false
	}
	left, right, ok := strings.Cut(sides, "|")
	if !ok {
		return false
	}
	left = strings.ToLower(strings.TrimSpace(left))
	right = strings.ToLower(strings.TrimSpace(right))

	_, aL := a[left]
	_, aR := a[right]
	_, bL := b[left]
	_, bR := b[right]
	return (aL && bR) || (aR && bL)
}
