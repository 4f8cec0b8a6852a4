package domain

// Item is a photo or product shown during the swipe flow. Vectors come
// from the embedding provider and are read-only inside the core.
type Item struct {
	ID     string    `json:"id"`
	Vector []float64 `json:"vector,omitempty"`
	Tags   []string  `json:"tags,omitempty"`

	// Optional metadata axes used only as query flavor hints.
	Style   []string `json:"style,omitempty"`
	Palette []string `json:"palette,omitempty"`
	Cohort  string   `json:"cohort,omitempty"`
}

// ChoiceKind is the user's reaction to a shown item.
type ChoiceKind string

const (
	ChoiceSuperLike ChoiceKind = "super_like"
	ChoiceLike      ChoiceKind = "like"
	ChoiceDislike   ChoiceKind = "dislike"
)

// BaseWeight returns the contribution weight for a choice kind. Unknown
// kinds weigh zero and are skipped by the aggregator.
func (k ChoiceKind) BaseWeight() float64 {
	switch k {
	case ChoiceSuperLike:
		return 1.5
	case ChoiceLike:
		return 1.0
	case ChoiceDislike:
		return -0.5
	default:
		return 0
	}
}

// ChoiceEvent is one user decision. RecencyIndex orders events; when the
// producer omits it, the aggregator assigns arrival order.
type ChoiceEvent struct {
	ItemID       string     `json:"item_id"`
	Kind         ChoiceKind `json:"kind"`
	RecencyIndex int        `json:"recency_index"`
}
