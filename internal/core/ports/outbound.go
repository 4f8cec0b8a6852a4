package ports

import (
	"context"

	"github.com/kirillkom/giftsense/internal/core/domain"
)

// ItemStore reads swipe-item metadata. Absent ids are tolerated by every
// caller, so GetByIDs returns only what it can resolve.
type ItemStore interface {
	GetByID(ctx context.Context, id string) (*domain.Item, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Item, error)
	ListIDs(ctx context.Context) ([]string, error)
	UpsertBatch(ctx context.Context, items []domain.Item) error
}

// CatalogueSearcher runs one natural-language query against the external
// catalogue and returns normalized product records.
type CatalogueSearcher interface {
	Search(ctx context.Context, query string, budget domain.Budget, categories []string, limit int) ([]domain.CatalogueItem, error)
}

// QueryRewriter optionally rewrites a query line from an allow-list of
// terms. Implementations may return ("", nil) to decline; callers must
// sanitize whatever comes back and fall back to the deterministic query.
type QueryRewriter interface {
	Rewrite(ctx context.Context, allowedTerms []string, cohort string, budget domain.Budget) (string, error)
}

// SessionRepository persists recommendation sessions and their results.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	UpdateStatus(ctx context.Context, id string, status domain.SessionStatus, errMessage string) error
	SaveResult(ctx context.Context, id string, rec domain.Recommendation) error
	GetResult(ctx context.Context, id string) (*domain.Recommendation, error)
}

// MessageQueue publishes/consumes recommendation jobs.
type MessageQueue interface {
	PublishSessionQueued(ctx context.Context, sessionID string) error
	SubscribeSessionQueued(ctx context.Context, handler func(context.Context, string) error) error
}
