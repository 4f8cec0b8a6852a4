package domain

// QueryRules bounds the token count of a composed query.
type QueryRules struct {
	MinTokens int `json:"min_tokens" yaml:"min_tokens"`
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
}

// Manifest is the externally versioned query vocabulary. It is loaded once
// per process by the caller and read-only at query time.
type Manifest struct {
	AllowedTokens   []string            `json:"allowed_tokens" yaml:"allowed_tokens"`
	ForbiddenTokens []string            `json:"forbidden_tokens" yaml:"forbidden_tokens"`
	Synonyms        map[string][]string `json:"synonyms" yaml:"synonyms"`
	TagToCategories map[string][]string `json:"tag_to_categories" yaml:"tag_to_categories"`
	QueryRules      QueryRules          `json:"query_rules" yaml:"query_rules"`

	// Deterministic product-seed expansion used by the multi-query
	// composer and the reranker diagnostics.
	ProductSeeds  map[string][]string `json:"product_seeds,omitempty" yaml:"product_seeds,omitempty"`
	CategorySeeds map[string][]string `json:"category_seeds,omitempty" yaml:"category_seeds,omitempty"`
	TokenCohorts  map[string]string   `json:"token_cohorts,omitempty" yaml:"token_cohorts,omitempty"`
}

// Bucket is one of the fixed product domains used to diversify searches.
type Bucket string

const (
	BucketFashion       Bucket = "Fashion"
	BucketBooks         Bucket = "Books"
	BucketTech          Bucket = "Tech"
	BucketOutdoors      Bucket = "Outdoors"
	BucketHome          Bucket = "Home"
	BucketEntertainment Bucket = "Entertainment"
)

// BucketQuery is one bucketed natural-language query.
type BucketQuery struct {
	Bucket Bucket `json:"bucket"`
	Query  string `json:"query"`
}

// ComposeDebug records what the vocabulary filter kept and dropped; it is
// the required explainability surface for query composition.
type ComposeDebug struct {
	RawTags          []string `json:"raw_tags"`
	Tokens           []string `json:"tokens"`
	DroppedForbidden []string `json:"dropped_forbidden"`
	DroppedUnknown   []string `json:"dropped_not_allowed"`
}

// QueryPlan is the deterministic composition result for one request.
type QueryPlan struct {
	Query      string        `json:"query,omitempty"`
	Tokens     []string      `json:"tokens"`
	Categories []string      `json:"categories"`
	Buckets    []BucketQuery `json:"buckets,omitempty"`
	Debug      ComposeDebug  `json:"debug"`
}

// Hints carries the optional, explicitly supplied flavor signals for the
// multi-query composer. Values never come from uncontrolled text.
type Hints struct {
	Recipient string   `json:"recipient,omitempty"`
	Styles    []string `json:"styles,omitempty"`
	Palettes  []string `json:"palettes,omitempty"`
	Cohort    string   `json:"cohort,omitempty"`
}
