package usecase

import (
	"testing"

	"github.com/kirillkom/giftsense/internal/core/domain"
)

func TestRankByTasteCosineToyCase(t *testing.T) {
	items := []domain.CatalogueItem{
		{SKU: "a", Vector: []float64{1, 0}},
		{SKU: "b", Vector: []float64{0, 1}},
	}
	ranked := RankByTaste(items, []float64{1, 0}, nil, 10)

	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked items, got %d", len(ranked))
	}
	if ranked[0].Item.SKU != "a" {
		t.Fatalf("expected a first, got %s", ranked[0].Item.SKU)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Fatalf("expected strictly higher score for aligned item: %f vs %f", ranked[0].Score, ranked[1].Score)
	}
}

func TestRankByTasteTextFallback(t *testing.T) {
	items := []domain.CatalogueItem{
		{SKU: "match", Title: "Retro vinyl record player", Tags: []string{"retro", "music"}},
		{SKU: "other", Title: "Stainless steel water bottle", Tags: []string{"outdoor"}},
	}
	// No embeddings anywhere: the ranker must fall back to text similarity.
	ranked := RankByTaste(items, nil, []string{"retro", "music"}, 10)

	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked items, got %d", len(ranked))
	}
	if ranked[0].Item.SKU != "match" {
		t.Fatalf("expected lexical match first, got %s", ranked[0].Item.SKU)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Fatalf("expected strictly higher fallback score: %f vs %f", ranked[0].Score, ranked[1].Score)
	}
}

func TestRankByTasteMismatchedDimsFallBack(t *testing.T) {
	items := []domain.CatalogueItem{
		{SKU: "a", Title: "retro poster", Vector: []float64{1, 0, 0}},
		{SKU: "b", Title: "plain mug", Vector: []float64{0, 1}},
	}
	ranked := RankByTaste(items, []float64{1, 0}, []string{"retro"}, 10)

	if ranked[0].Item.SKU != "a" {
		t.Fatalf("expected text fallback to rank retro first, got %s", ranked[0].Item.SKU)
	}
}

func TestRankByTasteTopK(t *testing.T) {
	items := []domain.CatalogueItem{
		{SKU: "a", Vector: []float64{1, 0}},
		{SKU: "b", Vector: []float64{0.5, 0.5}},
		{SKU: "c", Vector: []float64{0, 1}},
	}
	if got := RankByTaste(items, []float64{1, 0}, nil, 2); len(got) != 2 {
		t.Fatalf("expected topK=2 results, got %d", len(got))
	}
	if got := RankByTaste(items, []float64{1, 0}, nil, 0); len(got) != 0 {
		t.Fatalf("expected empty result for topK=0, got %d", len(got))
	}
}

func TestFilterBudgetAndAge(t *testing.T) {
	budget := domain.Budget{Low: f64(30), High: f64(60)}
	items := []domain.RankedItem{
		{Item: domain.CatalogueItem{SKU: "in", Price: f64(50)}},
		{Item: domain.CatalogueItem{SKU: "over", Price: f64(80)}},
		{Item: domain.CatalogueItem{SKU: "nopriced"}},
		{Item: domain.CatalogueItem{SKU: "teen", Price: f64(40), AgeFit: []string{"teen"}}},
		{Item: domain.CatalogueItem{SKU: "adult", Price: f64(40), AgeFit: []string{"adult"}}},
	}

	got := FilterBudgetAndAge(items, budget, []string{"adult"})

	kept := make(map[string]bool, len(got))
	for _, ri := range got {
		kept[ri.Item.SKU] = true
	}
	if !kept["in"] || !kept["nopriced"] || !kept["adult"] {
		t.Fatalf("expected in, nopriced and adult kept, got %v", kept)
	}
	if kept["over"] || kept["teen"] {
		t.Fatalf("expected over and teen dropped, got %v", kept)
	}
}
