package usecase

import (
	"errors"
	"math"
	"sort"

	"github.com/kirillkom/giftsense/internal/core/domain"
	"github.com/kirillkom/giftsense/internal/core/vector"
)

// DefaultRecencyTau is the exponential decay horizon, in recency-index
// steps, applied to choice events.
const DefaultRecencyTau = 8.0

// prepareEvents returns events sorted by recency index. Producers that
// stream events without indices (all zero) get arrival order assigned.
func prepareEvents(events []domain.ChoiceEvent) []domain.ChoiceEvent {
	if len(events) == 0 {
		return nil
	}
	allZero := true
	for _, ev := range events {
		if ev.RecencyIndex != 0 {
			allZero = false
			break
		}
	}
	out := make([]domain.ChoiceEvent, len(events))
	copy(out, events)
	if allZero {
		for i := range out {
			out[i].RecencyIndex = i
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RecencyIndex < out[j].RecencyIndex
	})
	return out
}

func decayWeight(kind domain.ChoiceKind, latest, idx int, tau float64) float64 {
	base := kind.BaseWeight()
	if base == 0 {
		return 0
	}
	if tau < 1e-6 {
		tau = 1e-6
	}
	return base * math.Exp(-float64(latest-idx)/tau)
}

// BuildTasteVector aggregates weighted, time-decayed choices into a unit
// taste vector. dim <= 0 means "infer from the first resolvable event";
// when nothing resolves and dim is unknown the call fails with ErrConfig.
// Events referencing unknown item ids are skipped.
func BuildTasteVector(itemsByID map[string]domain.Item, events []domain.ChoiceEvent, dim int, tau float64) ([]float64, error) {
	prepared := prepareEvents(events)
	if len(prepared) == 0 {
		if dim <= 0 {
			return nil, domain.WrapError(domain.ErrConfig, "build taste vector",
				errors.New("no events supplied and embedding dimension unknown"))
		}
		return make([]float64, dim), nil
	}

	if dim <= 0 {
		for _, ev := range prepared {
			if item, ok := itemsByID[ev.ItemID]; ok && len(item.Vector) > 0 {
				dim = len(item.Vector)
				break
			}
		}
		if dim <= 0 {
			return nil, domain.WrapError(domain.ErrConfig, "build taste vector",
				errors.New("could not infer embedding dimension from events"))
		}
	}

	latest := prepared[len(prepared)-1].RecencyIndex
	acc := make([]float64, dim)
	for _, ev := range prepared {
		item, ok := itemsByID[ev.ItemID]
		if !ok || len(item.Vector) != dim {
			continue
		}
		w := decayWeight(ev.Kind, latest, ev.RecencyIndex, tau)
		if w == 0 {
			continue
		}
		for i, x := range item.Vector {
			acc[i] += w * x
		}
	}

	return vector.Normalize(acc), nil
}

// AggregateTagPreferences accumulates the same decayed weights per tag of
// each event's item. Used for diagnostics and as the TF-IDF fallback input.
func AggregateTagPreferences(itemsByID map[string]domain.Item, events []domain.ChoiceEvent, tau float64) map[string]float64 {
	prepared := prepareEvents(events)
	if len(prepared) == 0 {
		return map[string]float64{}
	}

	latest := prepared[len(prepared)-1].RecencyIndex
	weights := make(map[string]float64)
	for _, ev := range prepared {
		item, ok := itemsByID[ev.ItemID]
		if !ok {
			continue
		}
		w := decayWeight(ev.Kind, latest, ev.RecencyIndex, tau)
		if w == 0 {
			continue
		}
		for _, tag := range item.Tags {
			weights[tag] += w
		}
	}
	return weights
}

// TopTagsFromEvents returns up to topK tags by accumulated weight,
// descending, ties broken by first-seen order across the sorted events.
func TopTagsFromEvents(itemsByID map[string]domain.Item, events []domain.ChoiceEvent, topK int, tau float64) []string {
	weights := AggregateTagPreferences(itemsByID, events, tau)
	if len(weights) == 0 || topK <= 0 {
		return nil
	}

	firstSeen := make(map[string]int, len(weights))
	order := 0
	for _, ev := range prepareEvents(events) {
		item, ok := itemsByID[ev.ItemID]
		if !ok {
			continue
		}
		for _, tag := range item.Tags {
			if _, seen := firstSeen[tag]; !seen {
				firstSeen[tag] = order
				order++
			}
		}
	}

	tags := make([]string, 0, len(weights))
	for tag := range weights {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		wi, wj := weights[tags[i]], weights[tags[j]]
		if wi != wj {
			return wi > wj
		}
		return firstSeen[tags[i]] < firstSeen[tags[j]]
	})

	if len(tags) > topK {
		tags = tags[:topK]
	}
	return tags
}
