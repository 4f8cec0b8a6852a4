package usecase

import (
	"sort"
	"strings"

	"github.com/kirillkom/giftsense/internal/core/domain"
)

const (
	rerankBaseScore   = 0.45
	rerankOverlapGain = 0.4
	rerankPenalty     = 0.2
	rerankPassGate    = 0.45
	maxReasonWords    = 18

	// DefaultKeepTop bounds the shortlist length.
	DefaultKeepTop = 6
)

// HeuristicRerank scores retrieved items against the taste tags, budget and
// age prior, producing an explainable shortlist. The shortlist is never
// empty while there are candidates: when nothing clears the pass gate the
// top-scored failures are kept so the caller can still surface something.
func HeuristicRerank(ranked []domain.RankedItem, tasteTags []string, budget domain.Budget, agePrior []string, keepTop int) []domain.RerankResult {
	if keepTop <= 0 {
		keepTop = DefaultKeepTop
	}
	if len(ranked) == 0 {
		return []domain.RerankResult{}
	}

	tasteSet := make(map[string]struct{}, len(tasteTags))
	for _, t := range tasteTags {
		if n := strings.ToLower(strings.TrimSpace(t)); n != "" {
			tasteSet[n] = struct{}{}
		}
	}

	results := make([]domain.RerankResult, 0, len(ranked))
	for _, ri := range ranked {
		item := ri.Item

		itemTags := make(map[string]struct{}, len(item.Tags))
		for _, t := range item.Tags {
			itemTags[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
		}

		var matched []string
		ratio := 0.5
		if len(tasteSet) > 0 {
			for t := range tasteSet {
				if _, ok := itemTags[t]; ok {
					matched = append(matched, t)
				}
			}
			sort.Strings(matched)
			ratio = float64(len(matched)) / float64(len(tasteSet))
		}

		score := rerankBaseScore + rerankOverlapGain*ratio

		inBudget := true
		if item.Price != nil && !budget.Contains(*item.Price) {
			inBudget = false
			score -= rerankPenalty
		}

		ageOK := true
		if len(agePrior) > 0 && len(item.AgeFit) > 0 && !agesOverlap(item.AgeFit, agePrior) {
			ageOK = false
			score -= rerankPenalty
		}

		if score < 0 {
			score = 0
		} else if score > 1 {
			score = 1
		}

		results = append(results, domain.RerankResult{
			SKU:    item.SKU,
			Score:  score,
			AgeFit: ageOK,
			Passed: inBudget && ageOK && score >= rerankPassGate,
			Reason: buildReason(matched, item.Price, inBudget, ageOK),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	shortlist := make([]domain.RerankResult, 0, keepTop)
	for _, r := range results {
		if r.Passed {
			shortlist = append(shortlist, r)
			if len(shortlist) == keepTop {
				break
			}
		}
	}
	if len(shortlist) == 0 {
		if len(results) > keepTop {
			results = results[:keepTop]
		}
		shortlist = results
	}
	return shortlist
}

func buildReason(matched []string, price *float64, inBudget, ageOK bool) string {
	var parts []string
	if len(matched) > 0 {
		top := matched
		if len(top) > 2 {
			top = top[:2]
		}
		parts = append(parts, "Matches "+strings.Join(top, ", "))
	} else {
		parts = append(parts, "Broad appeal")
	}
	if price != nil {
		if inBudget {
			parts = append(parts, "in budget")
		} else {
			parts = append(parts, "over budget")
		}
	}
	if !ageOK {
		parts = append(parts, "age mismatch")
	}
	reason := strings.Join(parts, ", ")

	words := strings.Fields(reason)
	if len(words) > maxReasonWords {
		reason = strings.Join(words[:maxReasonWords], " ")
	}
	return reason
}

// ChooseFinalBest picks the highest-scored of the first three shortlist
// entries. Returns nil when the shortlist is empty.
func ChooseFinalBest(shortlist []domain.RerankResult) *domain.FinalPick {
	if len(shortlist) == 0 {
		return nil
	}
	window := shortlist
	if len(window) > 3 {
		window = window[:3]
	}
	best := window[0]
	for _, r := range window[1:] {
		if r.Score > best.Score {
			best = r
		}
	}
	why := strings.TrimRight(strings.TrimSpace(best.Reason), ".,;:")
	return &domain.FinalPick{BestSKU: best.SKU, Why: why}
}
