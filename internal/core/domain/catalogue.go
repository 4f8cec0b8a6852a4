package domain

import "strings"

// Budget is a price range in AUD. Either bound may be absent.
type Budget struct {
	Low  *float64 `json:"low,omitempty"`
	High *float64 `json:"high,omitempty"`
}

// Contains reports whether price satisfies both present bounds.
func (b Budget) Contains(price float64) bool {
	if b.Low != nil && price < *b.Low {
		return false
	}
	if b.High != nil && price > *b.High {
		return false
	}
	return true
}

func (b Budget) IsZero() bool {
	return b.Low == nil && b.High == nil
}

// CatalogueItem is a product record returned by the catalogue search
// service, already normalized from its loosely-typed wire shape. The core
// treats it as an immutable value during ranking.
type CatalogueItem struct {
	SKU        string    `json:"sku"`
	Title      string    `json:"title"`
	Price      *float64  `json:"price,omitempty"`
	URL        string    `json:"url,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Categories []string  `json:"categories,omitempty"`
	ShortDesc  string    `json:"short_desc,omitempty"`
	AgeFit     []string  `json:"age_fit,omitempty"`
	Vector     []float64 `json:"vector,omitempty"`
}

// CombinedText concatenates the text fields used by the TF-IDF ranking
// fallback.
func (c CatalogueItem) CombinedText() string {
	parts := make([]string, 0, 5)
	if c.Title != "" {
		parts = append(parts, c.Title)
	}
	if len(c.Tags) > 0 {
		parts = append(parts, strings.Join(c.Tags, " "))
	}
	if c.ShortDesc != "" {
		parts = append(parts, c.ShortDesc)
	}
	if len(c.AgeFit) > 0 {
		parts = append(parts, strings.Join(c.AgeFit, " "))
	}
	if len(c.Categories) > 0 {
		parts = append(parts, strings.Join(c.Categories, " "))
	}
	return strings.Join(parts, " ")
}

// RankedItem pairs a catalogue item with its ranking score.
type RankedItem struct {
	Item  CatalogueItem `json:"item"`
	Score float64       `json:"score"`
}

// RerankResult is the explainable outcome of the heuristic reranker.
type RerankResult struct {
	SKU    string  `json:"sku"`
	Score  float64 `json:"score"`
	AgeFit bool    `json:"age_fit"`
	Passed bool    `json:"passed"`
	Reason string  `json:"reason"`
}

// FinalPick names the single best shortlisted item with its rationale.
type FinalPick struct {
	BestSKU string `json:"best_sku"`
	Why     string `json:"why"`
}
