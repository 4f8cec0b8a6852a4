package domain

import "time"

type SessionStatus string

const (
	SessionQueued  SessionStatus = "queued"
	SessionRunning SessionStatus = "running"
	SessionReady   SessionStatus = "ready"
	SessionFailed  SessionStatus = "failed"
)

// Outcome distinguishes an empty retrieval from an emptied one, so callers
// can decide whether to relax constraints.
type Outcome string

const (
	OutcomeOK                 Outcome = "ok"
	OutcomeNoResults          Outcome = "no_results"
	OutcomeConstraintsRelaxed Outcome = "constraints_relaxed"
)

// Session is one queued recommendation request.
type Session struct {
	ID        string        `json:"id"`
	Events    []ChoiceEvent `json:"events"`
	Budget    Budget        `json:"budget"`
	AgePrior  []string      `json:"age_prior,omitempty"`
	Hints     Hints         `json:"hints"`
	Status    SessionStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Recommendation is the persisted pipeline result for a session.
type Recommendation struct {
	Outcome     Outcome        `json:"outcome"`
	Plan        QueryPlan      `json:"plan"`
	Retrieved   int            `json:"retrieved"`
	RewriteUsed bool           `json:"rewrite_used"`
	Shortlist   []RerankResult `json:"shortlist"`
	Best        *FinalPick     `json:"best,omitempty"`
}
