package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/giftsense/internal/core/domain"
	"github.com/kirillkom/giftsense/internal/core/vector"
)

func newDiscoveryFixture(t *testing.T) (*DiscoveryUseCase, *itemStoreFake) {
	t.Helper()
	items := &itemStoreFake{items: orthogonalItems()}
	return NewDiscoveryUseCase(items, mustComposer(t), 0), items
}

func TestComputeTaste(t *testing.T) {
	uc, _ := newDiscoveryFixture(t)
	events := []domain.ChoiceEvent{
		{ItemID: "p1", Kind: domain.ChoiceSuperLike, RecencyIndex: 0},
		{ItemID: "p3", Kind: domain.ChoiceDislike, RecencyIndex: 1},
	}

	profile, err := uc.ComputeTaste(context.Background(), events, TasteOptions{})
	if err != nil {
		t.Fatalf("ComputeTaste() error = %v", err)
	}
	if n := vector.Norm(profile.Taste); n < 0.999 || n > 1.001 {
		t.Fatalf("expected unit taste vector, got norm %f", n)
	}
	if len(profile.Tags) == 0 || profile.Tags[0] == "bold" {
		t.Fatalf("expected liked tags to lead, got %v", profile.Tags)
	}
	if w, ok := profile.Weights["retro"]; !ok || w <= 0 {
		t.Fatalf("expected positive retro weight, got %v", profile.Weights)
	}
}

func TestComputeTasteHonorsExplicitDim(t *testing.T) {
	uc, _ := newDiscoveryFixture(t)
	events := []domain.ChoiceEvent{{ItemID: "missing", Kind: domain.ChoiceLike}}

	profile, err := uc.ComputeTaste(context.Background(), events, TasteOptions{Dim: 4})
	if err != nil {
		t.Fatalf("ComputeTaste() error = %v", err)
	}
	if len(profile.Taste) != 4 {
		t.Fatalf("expected 4-dim zero vector, got %v", profile.Taste)
	}
}

func TestVariantsAcrossPool(t *testing.T) {
	uc, _ := newDiscoveryFixture(t)

	variants, err := uc.Variants(context.Background(), "p1", VariantParams{
		MinTagOverlap: 0,
		MaxCosine:     0.99,
		Limit:         5,
	})
	if err != nil {
		t.Fatalf("Variants() error = %v", err)
	}
	for _, v := range variants {
		if v.ItemID == "p1" {
			t.Fatalf("reference item must not be its own variant")
		}
	}
}

func TestVariantsUnknownReference(t *testing.T) {
	uc, _ := newDiscoveryFixture(t)

	_, err := uc.Variants(context.Background(), "missing", VariantParams{})
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNextSelectionExcludesShown(t *testing.T) {
	uc, _ := newDiscoveryFixture(t)
	events := []domain.ChoiceEvent{{ItemID: "p1", Kind: domain.ChoiceLike}}

	id, err := uc.NextSelection(context.Background(), nil, events, []string{"p1"}, SelectNextParams{})
	if err != nil {
		t.Fatalf("NextSelection() error = %v", err)
	}
	if id == "p1" {
		t.Fatalf("expected shown item excluded, got %s", id)
	}
}

func TestNextSelectionEmptyPool(t *testing.T) {
	uc := NewDiscoveryUseCase(&itemStoreFake{items: map[string]domain.Item{}}, mustComposer(t), 0)

	_, err := uc.NextSelection(context.Background(), nil, nil, nil, SelectNextParams{})
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPlanQueriesFromEvents(t *testing.T) {
	uc, _ := newDiscoveryFixture(t)
	events := []domain.ChoiceEvent{
		{ItemID: "p1", Kind: domain.ChoiceSuperLike, RecencyIndex: 0},
	}

	plan, err := uc.PlanQueries(context.Background(), events, domain.Hints{}, domain.Budget{})
	if err != nil {
		t.Fatalf("PlanQueries() error = %v", err)
	}
	if len(plan.Tokens) != 1 || plan.Tokens[0] != "retro" {
		t.Fatalf("expected retro token (warm is not in the vocabulary), got %v", plan.Tokens)
	}
	if len(plan.Buckets) == 0 {
		t.Fatalf("expected bucketed queries")
	}
}
