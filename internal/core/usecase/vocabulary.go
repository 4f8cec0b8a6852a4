package usecase

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kirillkom/giftsense/internal/core/domain"
)

// DropReason explains why a raw tag produced no token.
type DropReason string

const (
	DropNone      DropReason = ""
	DropForbidden DropReason = "dropped_forbidden"
	DropUnknown   DropReason = "dropped_not_allowed"
)

var nonWordRe = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeTag(s string) string {
	return strings.TrimSpace(nonWordRe.ReplaceAllString(strings.ToLower(s), " "))
}

// Vocabulary is the compiled, read-only form of a query manifest. It is a
// strict allow-list: anything not explicitly known is dropped, never
// passed through.
type Vocabulary struct {
	allowed         map[string]struct{}
	forbidden       map[string]struct{}
	aliasToCanon    map[string]string
	tagToCategories map[string][]string
	productSeeds    map[string][]string
	categorySeeds   map[string][]string
	tokenCohorts    map[string]string
	rules           domain.QueryRules

	forbiddenPatterns []*regexp.Regexp
}

// NewVocabulary compiles a manifest. Empty allow-lists or inverted token
// rules fail with ErrConfig so callers never run with a partially built
// filter.
func NewVocabulary(m domain.Manifest) (*Vocabulary, error) {
	if len(m.AllowedTokens) == 0 {
		return nil, domain.WrapError(domain.ErrConfig, "compile vocabulary",
			errors.New("manifest has no allowed tokens"))
	}
	rules := m.QueryRules
	if rules.MinTokens <= 0 {
		rules.MinTokens = 2
	}
	if rules.MaxTokens <= 0 {
		rules.MaxTokens = 6
	}
	if rules.MaxTokens < rules.MinTokens {
		return nil, domain.WrapError(domain.ErrConfig, "compile vocabulary",
			fmt.Errorf("query rules inverted: min=%d max=%d", rules.MinTokens, rules.MaxTokens))
	}

	v := &Vocabulary{
		allowed:         make(map[string]struct{}, len(m.AllowedTokens)),
		forbidden:       make(map[string]struct{}, len(m.ForbiddenTokens)),
		aliasToCanon:    make(map[string]string),
		tagToCategories: make(map[string][]string, len(m.TagToCategories)),
		productSeeds:    make(map[string][]string, len(m.ProductSeeds)),
		categorySeeds:   make(map[string][]string, len(m.CategorySeeds)),
		tokenCohorts:    make(map[string]string, len(m.TokenCohorts)),
		rules:           rules,
	}

	for _, t := range m.AllowedTokens {
		if n := normalizeTag(t); n != "" {
			v.allowed[n] = struct{}{}
		}
	}
	for _, t := range m.ForbiddenTokens {
		n := strings.TrimSpace(strings.ToLower(t))
		if n == "" {
			continue
		}
		v.forbidden[n] = struct{}{}
	}
	for canon, aliases := range m.Synonyms {
		c := normalizeTag(canon)
		if c == "" {
			continue
		}
		v.aliasToCanon[c] = c
		for _, a := range aliases {
			if n := normalizeTag(a); n != "" {
				v.aliasToCanon[n] = c
			}
		}
	}
	for tag, cats := range m.TagToCategories {
		if n := normalizeTag(tag); n != "" {
			v.tagToCategories[n] = append([]string(nil), cats...)
		}
	}
	for token, seeds := range m.ProductSeeds {
		if n := normalizeTag(token); n != "" {
			v.productSeeds[n] = append([]string(nil), seeds...)
		}
	}
	for cat, seeds := range m.CategorySeeds {
		v.categorySeeds[cat] = append([]string(nil), seeds...)
	}
	for token, cohort := range m.TokenCohorts {
		if n := normalizeTag(token); n != "" {
			v.tokenCohorts[n] = cohort
		}
	}

	v.compileForbiddenPatterns()
	return v, nil
}

// compileForbiddenPatterns builds word-boundary matchers, longest term
// first so multi-word phrases win over their parts.
func (v *Vocabulary) compileForbiddenPatterns() {
	terms := make([]string, 0, len(v.forbidden))
	for t := range v.forbidden {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})

	v.forbiddenPatterns = make([]*regexp.Regexp, 0, len(terms))
	for _, term := range terms {
		parts := strings.Fields(term)
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		pattern := `(?i)\b` + strings.Join(parts, `\s+`) + `\b`
		v.forbiddenPatterns = append(v.forbiddenPatterns, regexp.MustCompile(pattern))
	}
}

// Rules returns the token-count bounds for composed queries.
func (v *Vocabulary) Rules() domain.QueryRules { return v.rules }

// Canonicalize maps a raw tag to its allow-listed token, or reports why it
// was dropped. This is the core safety invariant: no demographic, age or
// gender term can survive into a generated query.
func (v *Vocabulary) Canonicalize(raw string) (string, DropReason) {
	t := normalizeTag(raw)
	if t == "" {
		return "", DropUnknown
	}
	if _, bad := v.forbidden[t]; bad {
		return "", DropForbidden
	}
	if _, ok := v.allowed[t]; ok {
		return t, DropNone
	}
	if canon, ok := v.aliasToCanon[t]; ok {
		if _, bad := v.forbidden[canon]; bad {
			return "", DropForbidden
		}
		if _, allowed := v.allowed[canon]; allowed {
			return canon, DropNone
		}
	}
	return "", DropUnknown
}

// FilterTokens canonicalizes raw tags, deduplicating while preserving
// order, and reports every drop for explainability.
func (v *Vocabulary) FilterTokens(rawTags []string) ([]string, domain.ComposeDebug) {
	debug := domain.ComposeDebug{
		RawTags:          append([]string(nil), rawTags...),
		Tokens:           []string{},
		DroppedForbidden: []string{},
		DroppedUnknown:   []string{},
	}
	seen := make(map[string]struct{}, len(rawTags))
	for _, raw := range rawTags {
		token, reason := v.Canonicalize(raw)
		switch reason {
		case DropForbidden:
			debug.DroppedForbidden = append(debug.DroppedForbidden, raw)
			continue
		case DropUnknown:
			debug.DroppedUnknown = append(debug.DroppedUnknown, raw)
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		debug.Tokens = append(debug.Tokens, token)
	}
	return debug.Tokens, debug
}

// ExpandCategories unions the manifest categories of each token with any
// externally supplied base categories, sorted for determinism.
func (v *Vocabulary) ExpandCategories(tokens, baseCategories []string) []string {
	set := make(map[string]struct{}, len(baseCategories))
	for _, c := range baseCategories {
		if c != "" {
			set[c] = struct{}{}
		}
	}
	for _, token := range tokens {
		for _, c := range v.tagToCategories[normalizeTag(token)] {
			if c != "" {
				set[c] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ProductSeeds expands tokens and categories into concrete product terms,
// deduplicated in order and capped at maxTerms.
func (v *Vocabulary) ProductSeeds(tokens, categories []string, maxTerms int) []string {
	var raw []string
	for _, t := range tokens {
		raw = append(raw, v.productSeeds[normalizeTag(t)]...)
	}
	for _, c := range categories {
		raw = append(raw, v.categorySeeds[c]...)
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, maxTerms)
	for _, s := range raw {
		n := normalizeTag(s)
		if n == "" {
			continue
		}
		if _, bad := v.forbidden[n]; bad {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
		if maxTerms > 0 && len(out) >= maxTerms {
			break
		}
	}
	return out
}

// CohortForTokens returns the first cohort hint matching a token, if any.
func (v *Vocabulary) CohortForTokens(tokens []string) string {
	for _, t := range tokens {
		if cohort, ok := v.tokenCohorts[normalizeTag(t)]; ok {
			return cohort
		}
	}
	return ""
}

// Sanitize strips forbidden demographic terms via word-boundary matching
// and tidies whitespace. Applied to every emitted query as defense in
// depth, including anything returned by a rewrite service.
func (v *Vocabulary) Sanitize(q string) string {
	if q == "" {
		return ""
	}
	cleaned := q
	for _, re := range v.forbiddenPatterns {
		cleaned = re.ReplaceAllString(cleaned, " ")
	}
	cleaned = giftCardRe.ReplaceAllString(cleaned, "")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	cleaned = danglingPunctRe.ReplaceAllString(cleaned, "$1")
	return cleaned
}

var (
	// Keep "gift ideas" but strip gift-card drift.
	giftCardRe      = regexp.MustCompile(`(?i)\bgift\s*-?cards?\b`)
	danglingPunctRe = regexp.MustCompile(`\s+([.,;:!?])`)
)
