package usecase

import (
	"testing"

	"github.com/kirillkom/giftsense/internal/core/domain"
	"github.com/kirillkom/giftsense/internal/core/vector"
)

func orthogonalItems() map[string]domain.Item {
	return map[string]domain.Item{
		"p1": {ID: "p1", Vector: []float64{1, 0, 0}, Tags: []string{"retro", "warm"}},
		"p2": {ID: "p2", Vector: []float64{0, 1, 0}, Tags: []string{"modern"}},
		"p3": {ID: "p3", Vector: []float64{0, 0, 1}, Tags: []string{"bold"}},
	}
}

func TestBuildTasteVectorRecencyMonotonicity(t *testing.T) {
	items := map[string]domain.Item{
		"a": {ID: "a", Vector: []float64{1, 0}},
		"b": {ID: "b", Vector: []float64{0, 1}},
	}
	events := []domain.ChoiceEvent{
		{ItemID: "a", Kind: domain.ChoiceLike, RecencyIndex: 0},
		{ItemID: "b", Kind: domain.ChoiceLike, RecencyIndex: 1},
	}

	taste, err := BuildTasteVector(items, events, 0, DefaultRecencyTau)
	if err != nil {
		t.Fatalf("BuildTasteVector() error = %v", err)
	}
	if taste[1] <= taste[0] {
		t.Fatalf("expected more recent like to dominate, got %v", taste)
	}
}

func TestBuildTasteVectorEndToEndScenario(t *testing.T) {
	items := orthogonalItems()
	events := []domain.ChoiceEvent{
		{ItemID: "p1", Kind: domain.ChoiceSuperLike, RecencyIndex: 0},
		{ItemID: "p2", Kind: domain.ChoiceLike, RecencyIndex: 1},
		{ItemID: "p3", Kind: domain.ChoiceDislike, RecencyIndex: 2},
	}

	taste, err := BuildTasteVector(items, events, 0, DefaultRecencyTau)
	if err != nil {
		t.Fatalf("BuildTasteVector() error = %v", err)
	}

	cosP1 := vector.Cosine(taste, items["p1"].Vector)
	for _, id := range []string{"p2", "p3"} {
		if cos := vector.Cosine(taste, items[id].Vector); cos >= cosP1 {
			t.Fatalf("expected taste to align most with p1, cos(p1)=%f cos(%s)=%f", cosP1, id, cos)
		}
	}

	tags := TopTagsFromEvents(items, events, 2, DefaultRecencyTau)
	if len(tags) != 2 {
		t.Fatalf("expected 2 top tags, got %v", tags)
	}
	got := map[string]bool{tags[0]: true, tags[1]: true}
	if !got["retro"] || !got["warm"] {
		t.Fatalf("expected retro and warm as top tags, got %v", tags)
	}
}

func TestBuildTasteVectorSkipsUnknownAndMismatched(t *testing.T) {
	items := map[string]domain.Item{
		"a": {ID: "a", Vector: []float64{1, 0}},
		"b": {ID: "b", Vector: []float64{1, 2, 3}},
	}
	events := []domain.ChoiceEvent{
		{ItemID: "a", Kind: domain.ChoiceLike, RecencyIndex: 0},
		{ItemID: "b", Kind: domain.ChoiceLike, RecencyIndex: 1},
		{ItemID: "missing", Kind: domain.ChoiceLike, RecencyIndex: 2},
	}

	taste, err := BuildTasteVector(items, events, 0, DefaultRecencyTau)
	if err != nil {
		t.Fatalf("BuildTasteVector() error = %v", err)
	}
	if len(taste) != 2 {
		t.Fatalf("expected dim inferred from first resolvable event, got %d", len(taste))
	}
	if n := vector.Norm(taste); n < 0.999 || n > 1.001 {
		t.Fatalf("expected unit norm, got %f", n)
	}
}

func TestBuildTasteVectorNoEventsKnownDim(t *testing.T) {
	taste, err := BuildTasteVector(nil, nil, 4, DefaultRecencyTau)
	if err != nil {
		t.Fatalf("BuildTasteVector() error = %v", err)
	}
	for _, x := range taste {
		if x != 0 {
			t.Fatalf("expected zero vector, got %v", taste)
		}
	}
}

func TestBuildTasteVectorNoEventsUnknownDim(t *testing.T) {
	_, err := BuildTasteVector(nil, nil, 0, DefaultRecencyTau)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestTopTagsDislikedTagNotPromoted(t *testing.T) {
	items := orthogonalItems()
	events := []domain.ChoiceEvent{
		{ItemID: "p1", Kind: domain.ChoiceSuperLike, RecencyIndex: 0},
		{ItemID: "p3", Kind: domain.ChoiceDislike, RecencyIndex: 1},
	}

	weights := AggregateTagPreferences(items, events, DefaultRecencyTau)
	if weights["bold"] >= 0 {
		t.Fatalf("expected disliked tag to carry negative weight, got %f", weights["bold"])
	}

	tags := TopTagsFromEvents(items, events, 2, DefaultRecencyTau)
	for _, tag := range tags[:1] {
		if tag == "bold" {
			t.Fatalf("expected bold not to rank first, got %v", tags)
		}
	}
}

func TestPrepareEventsAssignsArrivalOrder(t *testing.T) {
	events := []domain.ChoiceEvent{
		{ItemID: "a", Kind: domain.ChoiceLike},
		{ItemID: "b", Kind: domain.ChoiceLike},
		{ItemID: "c", Kind: domain.ChoiceLike},
	}
	prepared := prepareEvents(events)
	for i, ev := range prepared {
		if ev.RecencyIndex != i {
			t.Fatalf("expected arrival order indices, got %+v", prepared)
		}
	}
	if events[1].RecencyIndex != 0 {
		t.Fatalf("expected input slice untouched")
	}
}
