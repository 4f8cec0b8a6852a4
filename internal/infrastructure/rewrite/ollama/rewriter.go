// Package ollama rewrites search queries with a locally hosted language
// model. The model only ever sees allow-listed terms, and callers sanitize
// whatever comes back before it reaches the catalogue.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/giftsense/internal/core/domain"
)

type Rewriter struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func New(baseURL, model string) *Rewriter {
	return &Rewriter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Rewrite asks the model for one natural search line built from the
// allowed terms. Errors and empty outputs are fine: the caller drops the
// rewrite and keeps the deterministic queries.
func (r *Rewriter) Rewrite(ctx context.Context, allowedTerms []string, cohort string, budget domain.Budget) (string, error) {
	if len(allowedTerms) == 0 {
		return "", nil
	}

	payload := map[string]any{
		"model":  r.model,
		"prompt": buildRewritePrompt(allowedTerms, cohort, budget),
		"stream": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal rewrite request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create rewrite request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama rewrite request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("ollama rewrite status: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode rewrite response: %w", err)
	}
	return firstLine(response.Response), nil
}

func buildRewritePrompt(allowedTerms []string, cohort string, budget domain.Budget) string {
	var b strings.Builder
	b.WriteString("Write one short product search query for an online gift catalogue.\n")
	b.WriteString("Use only these terms, in any order, plus plain connecting words:\n")
	b.WriteString(strings.Join(allowedTerms, ", "))
	b.WriteString("\n")
	if cohort != "" {
		fmt.Fprintf(&b, "Audience cohort: %s.\n", cohort)
	}
	if budget.High != nil {
		fmt.Fprintf(&b, "Price cap: %.0f AUD.\n", *budget.High)
	}
	b.WriteString("Never mention gender, age or other personal attributes.\n")
	b.WriteString("Return only the query line, no quotes, no markdown.")
	return b.String()
}

func firstLine(raw string) string {
	line := strings.TrimSpace(raw)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.Trim(line, `"' `)
	const maxLen = 200
	if len(line) > maxLen {
		line = line[:maxLen]
	}
	return strings.TrimSpace(line)
}
