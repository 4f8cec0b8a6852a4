package catalogue

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/giftsense/internal/core/domain"
	"github.com/kirillkom/giftsense/internal/infrastructure/resilience"
)

// Client talks to the external product search service. Calls are rate
// limited and wrapped with retry and a circuit breaker; transient failures
// surface as ErrTemporary so the pipeline can distinguish them from an
// empty catalogue.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	exec       *resilience.Executor
}

type Option func(*Client)

// WithRateLimit caps outbound searches at rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			if burst <= 0 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func WithResilience(cfg resilience.Config) Option {
	return func(c *Client) {
		c.exec = resilience.NewExecutor(cfg)
	}
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		exec:       resilience.NewExecutor(resilience.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs one query and returns normalized catalogue items.
func (c *Client) Search(ctx context.Context, query string, budget domain.Budget, categories []string, limit int) ([]domain.CatalogueItem, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "catalogue search",
			fmt.Errorf("empty query"))
	}
	if limit <= 0 {
		limit = 20
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	payload := map[string]any{
		"query": query,
		"limit": limit,
	}
	if len(categories) > 0 {
		payload["categories"] = categories
	}
	if budget.Low != nil {
		payload["price_min"] = *budget.Low
	}
	if budget.High != nil {
		payload["price_max"] = *budget.High
	}

	var raw map[string]any
	err := c.exec.Execute(ctx, "catalogue_search", func(ctx context.Context) error {
		raw = nil
		return c.postJSON(ctx, "/api/search", payload, &raw, "search")
	}, classifyCatalogueError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("catalogue search", err)
	}

	return NormalizeItems(raw), nil
}
