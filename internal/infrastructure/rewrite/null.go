// Package rewrite provides implementations of the optional query
// rewriter. The pipeline never depends on a rewriter being present or
// truthful: its output is sanitized and overlaid on the deterministic
// queries, never substituted for them.
package rewrite

import (
	"context"

	"github.com/kirillkom/giftsense/internal/core/domain"
)

// Null declines every rewrite. Used when no language model is configured.
type Null struct{}

func NewNull() *Null { return &Null{} }

func (*Null) Rewrite(context.Context, []string, string, domain.Budget) (string, error) {
	return "", nil
}
