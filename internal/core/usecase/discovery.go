package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/giftsense/internal/core/domain"
	"github.com/kirillkom/giftsense/internal/core/ports"
)

// DefaultTopTags bounds the tag profile handed to query composition.
const DefaultTopTags = 8

// DiscoveryUseCase serves the interactive swipe loop: taste profiles,
// next-item selection and query planning.
type DiscoveryUseCase struct {
	items    ports.ItemStore
	composer *Composer
	tau      float64
}

func NewDiscoveryUseCase(items ports.ItemStore, composer *Composer, tau float64) *DiscoveryUseCase {
	if tau <= 0 {
		tau = DefaultRecencyTau
	}
	return &DiscoveryUseCase{items: items, composer: composer, tau: tau}
}

// TasteOptions overrides the configured defaults for one request. Zero
// values mean "use the configured default" (tau) or "infer" (dim).
type TasteOptions struct {
	Dim int
	Tau float64
}

// TasteProfile is the full diagnostic output of taste aggregation.
type TasteProfile struct {
	Taste   []float64          `json:"taste"`
	Weights map[string]float64 `json:"tag_weights"`
	Tags    []string           `json:"tags"`
}

// ComputeTaste resolves the events' items and returns the unit taste
// vector together with per-tag weights and the strongest taste tags.
func (uc *DiscoveryUseCase) ComputeTaste(ctx context.Context, events []domain.ChoiceEvent, opts TasteOptions) (TasteProfile, error) {
	tau := opts.Tau
	if tau <= 0 {
		tau = uc.tau
	}

	itemsByID, err := uc.resolveEventItems(ctx, events)
	if err != nil {
		return TasteProfile{}, err
	}
	taste, err := BuildTasteVector(itemsByID, events, opts.Dim, tau)
	if err != nil {
		return TasteProfile{}, err
	}
	return TasteProfile{
		Taste:   taste,
		Weights: AggregateTagPreferences(itemsByID, events, tau),
		Tags:    TopTagsFromEvents(itemsByID, events, DefaultTopTags, tau),
	}, nil
}

// Variants finds semantic cousins of an item across the whole pool.
func (uc *DiscoveryUseCase) Variants(ctx context.Context, itemID string, p VariantParams) ([]Variant, error) {
	ref, err := uc.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("fetch reference item: %w", err)
	}
	ids, err := uc.items.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list item pool: %w", err)
	}
	itemsByID, err := uc.items.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch items: %w", err)
	}
	pool := make([]domain.Item, 0, len(itemsByID))
	for _, id := range ids {
		if item, ok := itemsByID[id]; ok {
			pool = append(pool, item)
		}
	}
	return FindVariants(*ref, pool, p), nil
}

// NextSelection picks the item to show next. An empty candidate list means
// "whole pool minus already shown".
func (uc *DiscoveryUseCase) NextSelection(ctx context.Context, candidateIDs []string, events []domain.ChoiceEvent, shownIDs []string, params SelectNextParams) (string, error) {
	if len(candidateIDs) == 0 {
		all, err := uc.items.ListIDs(ctx)
		if err != nil {
			return "", fmt.Errorf("list item pool: %w", err)
		}
		shown := make(map[string]struct{}, len(shownIDs))
		for _, id := range shownIDs {
			shown[id] = struct{}{}
		}
		for _, id := range all {
			if _, ok := shown[id]; !ok {
				candidateIDs = append(candidateIDs, id)
			}
		}
	}

	need := make([]string, 0, len(candidateIDs)+len(shownIDs)+len(events))
	need = append(need, candidateIDs...)
	need = append(need, shownIDs...)
	for _, ev := range events {
		need = append(need, ev.ItemID)
	}
	itemsByID, err := uc.items.GetByIDs(ctx, need)
	if err != nil {
		return "", fmt.Errorf("fetch items: %w", err)
	}

	taste, err := BuildTasteVector(itemsByID, events, 0, uc.tau)
	if err != nil {
		// Cold start: no usable signal yet, select on diversity alone.
		taste = nil
	}

	id, ok := SelectNextItem(candidateIDs, itemsByID, taste, shownIDs, params)
	if !ok {
		return "", domain.WrapError(domain.ErrNotFound, "select next item",
			fmt.Errorf("no candidate resolvable from pool of %d", len(candidateIDs)))
	}
	return id, nil
}

// PlanQueries derives the taste tag profile from events and composes the
// full deterministic query plan.
func (uc *DiscoveryUseCase) PlanQueries(ctx context.Context, events []domain.ChoiceEvent, hints domain.Hints, budget domain.Budget) (domain.QueryPlan, error) {
	itemsByID, err := uc.resolveEventItems(ctx, events)
	if err != nil {
		return domain.QueryPlan{}, err
	}
	tags := TopTagsFromEvents(itemsByID, events, DefaultTopTags, uc.tau)
	return uc.composer.BuildPlan(tags, nil, hints, budget), nil
}

func (uc *DiscoveryUseCase) resolveEventItems(ctx context.Context, events []domain.ChoiceEvent) (map[string]domain.Item, error) {
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ItemID)
	}
	itemsByID, err := uc.items.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch event items: %w", err)
	}
	return itemsByID, nil
}
