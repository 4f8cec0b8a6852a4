package usecase

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/kirillkom/giftsense/internal/core/domain"
	"github.com/kirillkom/giftsense/internal/core/vector"
)

// RankByTaste orders catalogue items by affinity to the taste profile.
// When every item carries an embedding of the taste dimension the score is
// plain cosine similarity; otherwise it falls back to lexical TF-IDF over
// the items' combined text against a pseudo-document built from the top
// taste tags. topK <= 0 returns an empty slice.
func RankByTaste(items []domain.CatalogueItem, taste []float64, tasteTags []string, topK int) []domain.RankedItem {
	if topK <= 0 || len(items) == 0 {
		return []domain.RankedItem{}
	}

	scores := make([]float64, len(items))
	if embeddingsUsable(items, taste) {
		for i, it := range items {
			scores[i] = vector.Cosine(taste, it.Vector)
		}
	} else {
		scores = tfidfScores(items, strings.Join(tasteTags, " "))
	}

	ranked := make([]domain.RankedItem, len(items))
	for i, it := range items {
		ranked[i] = domain.RankedItem{Item: it, Score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

func embeddingsUsable(items []domain.CatalogueItem, taste []float64) bool {
	if len(taste) == 0 {
		return false
	}
	for _, it := range items {
		if len(it.Vector) != len(taste) {
			return false
		}
	}
	return true
}

var wordRe = regexp.MustCompile(`\b\w\w+\b`)

// tfidfScores fits a word 1-2 gram TF-IDF model over the item texts plus
// the taste pseudo-document (smooth idf: ln((1+n)/(1+df)) + 1, rows L2
// normalized) and scores each item by the dot product of its row with the
// pseudo-document row.
func tfidfScores(items []domain.CatalogueItem, tasteDoc string) []float64 {
	docs := make([][]string, 0, len(items)+1)
	for _, it := range items {
		docs = append(docs, ngrams(it.CombinedText()))
	}
	docs = append(docs, ngrams(tasteDoc))

	df := make(map[string]int)
	for _, terms := range docs {
		seen := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for t, d := range df {
		idf[t] = math.Log((1+n)/(1+float64(d))) + 1
	}

	rows := make([]map[string]float64, len(docs))
	for i, terms := range docs {
		tf := make(map[string]float64, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		var norm float64
		for t, c := range tf {
			w := c * idf[t]
			tf[t] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for t := range tf {
				tf[t] /= norm
			}
		}
		rows[i] = tf
	}

	tasteRow := rows[len(rows)-1]
	scores := make([]float64, len(items))
	for i := range items {
		var dot float64
		for t, w := range rows[i] {
			dot += w * tasteRow[t]
		}
		scores[i] = dot
	}
	return scores
}

func ngrams(text string) []string {
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return nil
	}
	out := make([]string, 0, 2*len(words))
	out = append(out, words...)
	for i := 0; i+1 < len(words); i++ {
		out = append(out, words[i]+" "+words[i+1])
	}
	return out
}

// FilterBudgetAndAge drops items that provably violate the budget or the
// age prior. Missing prices and empty age-fit lists never exclude an item.
func FilterBudgetAndAge(items []domain.RankedItem, budget domain.Budget, agePrior []string) []domain.RankedItem {
	out := make([]domain.RankedItem, 0, len(items))
	for _, ri := range items {
		if ri.Item.Price != nil && !budget.Contains(*ri.Item.Price) {
			continue
		}
		if len(agePrior) > 0 && len(ri.Item.AgeFit) > 0 && !agesOverlap(ri.Item.AgeFit, agePrior) {
			continue
		}
		out = append(out, ri)
	}
	return out
}

func agesOverlap(fit, prior []string) bool {
	set := make(map[string]struct{}, len(prior))
	for _, p := range prior {
		set[strings.ToLower(strings.TrimSpace(p))] = struct{}{}
	}
	for _, f := range fit {
		if _, ok := set[strings.ToLower(strings.TrimSpace(f))]; ok {
			return true
		}
	}
	return false
}
