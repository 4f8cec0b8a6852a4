package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/giftsense/internal/core/domain"
)

// Composer builds demographic-safe catalogue queries from canonical
// tokens. Output is a pure function of (tags, hints, manifest); any
// generative rewrite is layered on top by the caller and never replaces
// this path.
type Composer struct {
	vocab *Vocabulary
}

func NewComposer(vocab *Vocabulary) *Composer {
	return &Composer{vocab: vocab}
}

// Compose canonicalizes raw tags and emits a single query when enough
// tokens survive, falling back to a category query, else no query at all.
func (c *Composer) Compose(rawTags []string, budget domain.Budget) domain.QueryPlan {
	tokens, debug := c.vocab.FilterTokens(rawTags)

	rules := c.vocab.Rules()
	if len(tokens) > rules.MaxTokens {
		tokens = tokens[:rules.MaxTokens]
		// Debug must describe the query actually emitted.
		debug.Tokens = tokens
	}
	categories := c.vocab.ExpandCategories(tokens, nil)

	plan := domain.QueryPlan{
		Tokens:     tokens,
		Categories: categories,
		Debug:      debug,
	}

	if len(tokens) >= rules.MinTokens {
		query := strings.Join(tokens, " ") + " gift ideas"
		if budget.High != nil {
			query += fmt.Sprintf(" under %.0f AUD", *budget.High)
		}
		plan.Query = c.vocab.Sanitize(query)
		return plan
	}

	if len(categories) > 0 {
		plan.Query = c.vocab.Sanitize(strings.Join(categories, " "))
	}
	return plan
}

// coupleTokens are the only tokens allowed to imply a couple recipient.
var coupleTokens = map[string]struct{}{
	"couple": {}, "ring": {}, "wedding": {}, "anniversary": {},
}

var stylePhrases = map[string]string{
	"casual":     "casual",
	"minimalist": "plain",
	"practical":  "practical",
	"retro":      "retro",
	"90s":        "90s twist",
	"premium":    "premium",
}

var cohortPhrases = map[string]string{
	"Gen Z":      "with a Gen Z vibe",
	"Millennial": "with Millennial nostalgia",
	"Gen X":      "with Gen X sensibility",
	"Boomer":     "classic",
}

var recipientPhrases = map[string]string{
	"me":     "for me",
	"man":    "for men",
	"woman":  "for women",
	"teen":   "for teens",
	"kid":    "for kids",
	"couple": "for couples",
	"family": "for families",
}

var queryPalettes = map[string]struct{}{
	"black": {}, "blue": {}, "neutral": {}, "earthy": {},
}

var themeTokens = map[string]struct{}{
	"philosophy": {}, "art": {}, "tech": {}, "nature": {}, "design": {}, "book": {},
}

// ComposeMulti emits one query per matched bucket (at most five, never
// zero), filled only from allow-listed tokens and explicitly supplied
// hints. Every query passes Sanitize before it leaves.
func (c *Composer) ComposeMulti(tokens, categories []string, hints domain.Hints, budget domain.Budget) []domain.BucketQuery {
	recipient := strings.ToLower(strings.TrimSpace(hints.Recipient))
	if recipient == "" {
		recipient = "me"
	}
	if recipient == "me" {
		for _, t := range tokens {
			if _, ok := coupleTokens[t]; ok {
				recipient = "couple"
				break
			}
		}
	}

	cohort := hints.Cohort
	if cohort == "" {
		cohort = c.vocab.CohortForTokens(tokens)
	}

	stylesPhrase, practicalPhrase := stylesToPhrases(hints.Styles)
	palettePhrase := paletteToPhrase(hints.Palettes)
	cohortTwist := cohortPhrases[cohort]
	themes := themesFromTokens(tokens)
	recipientPhrase, ok := recipientPhrases[recipient]
	if !ok {
		recipientPhrase = "for me"
	}

	hi := "$100"
	if budget.High != nil {
		hi = fmt.Sprintf("$%.0f", *budget.High)
	}

	buckets := chooseBuckets(tokens, categories, recipient)

	out := make([]domain.BucketQuery, 0, len(buckets))
	for _, b := range buckets {
		var q string
		switch b {
		case domain.BucketFashion:
			q = join(orDefault(stylesPhrase, "casual"), palettePhrase, "clothes", recipientPhrase, cohortTwist, "under", hi)
		case domain.BucketBooks:
			q = join("books and ideas on", themes, recipientPhrase, cohortTwist, "under", hi)
		case domain.BucketTech:
			q = join("tech and gadgets", orDefault(practicalPhrase, "that are plain and practical"), recipientPhrase, cohortTwist, "under", hi)
		case domain.BucketOutdoors:
			q = join(palettePhrase, "outdoor gear and apparel", recipientPhrase, cohortTwist, "under", hi)
		case domain.BucketHome:
			q = join(palettePhrase, "home items", orDefault(practicalPhrase, "that are plain and practical"), recipientPhrase, cohortTwist, "under", hi)
		case domain.BucketEntertainment:
			q = join(orDefault(stylesPhrase, "casual"), palettePhrase, "entertainment and experiences", recipientPhrase, cohortTwist, "under", hi)
		}
		out = append(out, domain.BucketQuery{Bucket: b, Query: c.vocab.Sanitize(q)})
	}
	return out
}

func chooseBuckets(tokens, categories []string, recipient string) []domain.Bucket {
	has := func(cat string) bool {
		for _, c := range categories {
			if c == cat {
				return true
			}
		}
		return false
	}
	anyToken := func(wanted ...string) bool {
		for _, t := range tokens {
			for _, w := range wanted {
				if t == w {
					return true
				}
			}
		}
		return false
	}

	var buckets []domain.Bucket
	if has("Fashion") || anyToken("casual", "retro", "90s", "minimalist") {
		buckets = append(buckets, domain.BucketFashion)
	}
	if has("Books") || anyToken("book", "books", "philosophy", "art", "tech", "design") {
		buckets = append(buckets, domain.BucketBooks)
	}
	if has("Tech") || anyToken("tech") {
		buckets = append(buckets, domain.BucketTech)
	}
	if has("Outdoors") || anyToken("outdoor", "nature", "hiking", "camping", "summer", "sun", "beach") {
		buckets = append(buckets, domain.BucketOutdoors)
	}
	if has("Home") || anyToken("window", "home", "cozy") {
		buckets = append(buckets, domain.BucketHome)
	}
	if has("Entertainment") || anyToken("gaming", "records", "music", "entertainment") {
		buckets = append(buckets, domain.BucketEntertainment)
	}

	if len(buckets) == 0 {
		buckets = []domain.Bucket{domain.BucketTech, domain.BucketBooks}
	}

	seen := make(map[domain.Bucket]struct{}, len(buckets))
	deduped := buckets[:0]
	for _, b := range buckets {
		if _, dup := seen[b]; dup {
			continue
		}
		seen[b] = struct{}{}
		deduped = append(deduped, b)
	}

	if recipient == "couple" {
		for _, b := range []domain.Bucket{domain.BucketHome, domain.BucketFashion, domain.BucketEntertainment} {
			if _, ok := seen[b]; !ok {
				deduped = append(deduped, b)
				seen[b] = struct{}{}
			}
		}
		priority := []domain.Bucket{
			domain.BucketHome, domain.BucketFashion, domain.BucketEntertainment,
			domain.BucketTech, domain.BucketBooks, domain.BucketOutdoors,
		}
		ordered := make([]domain.Bucket, 0, len(deduped))
		for _, b := range priority {
			if _, ok := seen[b]; ok {
				ordered = append(ordered, b)
			}
		}
		deduped = ordered
	}

	if len(deduped) > 5 {
		deduped = deduped[:5]
	}
	if len(deduped) == 0 {
		deduped = []domain.Bucket{domain.BucketTech, domain.BucketBooks}
	}
	return deduped
}

func stylesToPhrases(styles []string) (string, string) {
	if len(styles) == 0 {
		return "", ""
	}
	mapped := make([]string, 0, len(styles))
	seen := make(map[string]struct{}, len(styles))
	for _, s := range styles {
		phrase, ok := stylePhrases[strings.ToLower(s)]
		if !ok {
			phrase = strings.ToLower(s)
		}
		if _, dup := seen[phrase]; dup {
			continue
		}
		seen[phrase] = struct{}{}
		mapped = append(mapped, phrase)
	}
	sort.Strings(mapped)

	practical := ""
	if _, ok := seen["practical"]; ok {
		practical = "that are practical"
	} else if _, ok := seen["plain"]; ok {
		practical = "that are plain and practical"
	}
	return strings.Join(mapped, " "), practical
}

func paletteToPhrase(palettes []string) string {
	var keep []string
	for _, p := range palettes {
		if _, ok := queryPalettes[strings.ToLower(p)]; ok {
			keep = append(keep, strings.ToLower(p))
		}
	}
	if len(keep) == 0 {
		return ""
	}
	return "in " + strings.Join(keep, " and ")
}

func themesFromTokens(tokens []string) string {
	var keep []string
	seen := make(map[string]struct{})
	for _, t := range tokens {
		if _, ok := themeTokens[t]; !ok {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		keep = append(keep, t)
	}
	if len(keep) == 0 {
		return "philosophy and tech"
	}
	sort.Strings(keep)
	return strings.Join(keep, " and ")
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func join(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(strings.Fields(strings.Join(kept, " ")), " ")
}

// BuildPlan runs the full deterministic composition: canonicalize, expand
// categories (couples pull in occasion categories), single query plus
// bucketed multi-queries.
func (c *Composer) BuildPlan(rawTags []string, baseCategories []string, hints domain.Hints, budget domain.Budget) domain.QueryPlan {
	plan := c.Compose(rawTags, budget)
	plan.Categories = c.vocab.ExpandCategories(plan.Tokens, baseCategories)

	recipient := strings.ToLower(strings.TrimSpace(hints.Recipient))
	if recipient == "" {
		for _, t := range plan.Tokens {
			if _, ok := coupleTokens[t]; ok {
				recipient = "couple"
				break
			}
		}
	}
	if recipient == "couple" {
		plan.Categories = c.vocab.ExpandCategories(plan.Tokens,
			append(append([]string(nil), baseCategories...), "Occasion", "Jewellery", "Home"))
	}

	plan.Buckets = c.ComposeMulti(plan.Tokens, plan.Categories, hints, budget)
	return plan
}
