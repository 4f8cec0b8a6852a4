package catalogue

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/giftsense/internal/core/domain"
)

// Catalogue backends disagree on envelope and field names. listKeys are
// tried in order, at the top level and one level down under "response".
var listKeys = []string{"results", "items", "data", "products", "records"}

var (
	skuKeys   = []string{"id", "product_id", "sku", "uid"}
	titleKeys = []string{"title", "name", "product_title", "productName"}
	priceKeys = []string{"price", "sale_price", "amount", "price_value", "final_price"}
	urlKeys   = []string{"url", "product_url", "link", "permalink", "canonical_url"}
	tagKeys   = []string{"tags", "labels"}
	descKeys  = []string{"short_desc", "short_description", "description", "desc"}
	ageKeys   = []string{"age_fit", "age_groups"}
	vecKeys   = []string{"vector", "embedding"}
)

// NormalizeItems converts a loosely-typed search response into catalogue
// items. Records without a resolvable sku or title are skipped.
func NormalizeItems(raw map[string]any) []domain.CatalogueItem {
	records := extractRecords(raw)
	items := make([]domain.CatalogueItem, 0, len(records))
	for _, rec := range records {
		item, ok := normalizeRecord(rec)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items
}

func extractRecords(raw map[string]any) []map[string]any {
	if raw == nil {
		return nil
	}
	if recs := recordsAtLevel(raw); recs != nil {
		return recs
	}
	if nested, ok := raw["response"].(map[string]any); ok {
		return recordsAtLevel(nested)
	}
	return nil
}

func recordsAtLevel(level map[string]any) []map[string]any {
	for _, key := range listKeys {
		list, ok := level[key].([]any)
		if !ok {
			continue
		}
		records := make([]map[string]any, 0, len(list))
		for _, entry := range list {
			if rec, ok := entry.(map[string]any); ok {
				records = append(records, rec)
			}
		}
		return records
	}
	return nil
}

func normalizeRecord(rec map[string]any) (domain.CatalogueItem, bool) {
	sku := firstString(rec, skuKeys)
	title := firstString(rec, titleKeys)
	if sku == "" && title == "" {
		return domain.CatalogueItem{}, false
	}
	if sku == "" {
		sku = title
	}

	item := domain.CatalogueItem{
		SKU:       sku,
		Title:     title,
		URL:       firstString(rec, urlKeys),
		ShortDesc: firstString(rec, descKeys),
		Price:     firstPrice(rec, priceKeys),
		AgeFit:    firstStringList(rec, ageKeys),
		Vector:    firstFloatList(rec, vecKeys),
	}

	item.Tags = firstStringList(rec, tagKeys)
	item.Categories = extractCategories(rec)
	return item, true
}

func extractCategories(rec map[string]any) []string {
	if cats := toStringList(rec["categories"]); len(cats) > 0 {
		return cats
	}
	if cat, ok := rec["category"].(string); ok && strings.TrimSpace(cat) != "" {
		return []string{strings.TrimSpace(cat)}
	}
	return nil
}

func firstString(rec map[string]any, keys []string) string {
	for _, key := range keys {
		switch v := rec[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		}
	}
	return ""
}

var priceDigitsRe = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

func firstPrice(rec map[string]any, keys []string) *float64 {
	for _, key := range keys {
		switch v := rec[key].(type) {
		case float64:
			price := v
			return &price
		case int:
			price := float64(v)
			return &price
		case string:
			// "AUD 59.95", "$59.95", "59,95" and similar.
			cleaned := strings.ReplaceAll(v, ",", ".")
			if m := priceDigitsRe.FindString(cleaned); m != "" {
				if price, err := strconv.ParseFloat(m, 64); err == nil {
					return &price
				}
			}
		}
	}
	return nil
}

func firstStringList(rec map[string]any, keys []string) []string {
	for _, key := range keys {
		if list := toStringList(rec[key]); len(list) > 0 {
			return list
		}
	}
	return nil
}

func toStringList(v any) []string {
	switch list := v.(type) {
	case []any:
		out := make([]string, 0, len(list))
		for _, entry := range list {
			if s, ok := entry.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case []string:
		return list
	case string:
		if s := strings.TrimSpace(list); s != "" {
			return []string{s}
		}
	}
	return nil
}

func firstFloatList(rec map[string]any, keys []string) []float64 {
	for _, key := range keys {
		list, ok := rec[key].([]any)
		if !ok {
			continue
		}
		out := make([]float64, 0, len(list))
		for _, entry := range list {
			f, ok := entry.(float64)
			if !ok {
				return nil
			}
			out = append(out, f)
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}
