package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/giftsense/internal/core/domain"
	"github.com/kirillkom/giftsense/internal/core/usecase"
	"github.com/kirillkom/giftsense/internal/observability/metrics"
)

type Router struct {
	discoveryUC *usecase.DiscoveryUseCase
	recommendUC *usecase.RecommendGiftsUseCase

	selectParams usecase.SelectNextParams

	service string
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	discoveryUC *usecase.DiscoveryUseCase,
	recommendUC *usecase.RecommendGiftsUseCase,
	selectParams usecase.SelectNextParams,
	service string,
	m *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		discoveryUC:  discoveryUC,
		recommendUC:  recommendUC,
		selectParams: selectParams,
		service:      service,
		metrics:      m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/taste", rt.computeTaste)
	mux.HandleFunc("/v1/selection/next", rt.nextSelection)
	mux.HandleFunc("/v1/queries", rt.planQueries)
	mux.HandleFunc("/v1/variants", rt.findVariants)
	mux.HandleFunc("/v1/recommendations", rt.enqueueRecommendation)
	mux.HandleFunc("/v1/recommendations/sync", rt.runRecommendation)
	mux.HandleFunc("/v1/recommendations/", rt.getRecommendation)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) computeTaste(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Events []domain.ChoiceEvent `json:"events"`
		Dim    int                  `json:"dim"`
		Tau    float64              `json:"tau"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Events) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "events are required"})
		return
	}

	profile, err := rt.discoveryUC.ComputeTaste(r.Context(), req.Events, usecase.TasteOptions{
		Dim: req.Dim,
		Tau: req.Tau,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (rt *Router) nextSelection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		CandidateIDs []string             `json:"candidate_ids"`
		Events       []domain.ChoiceEvent `json:"events"`
		ShownIDs     []string             `json:"shown_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	itemID, err := rt.discoveryUC.NextSelection(r.Context(), req.CandidateIDs, req.Events, req.ShownIDs, rt.selectParams)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordSelection(rt.service)
	}
	writeJSON(w, http.StatusOK, map[string]string{"item_id": itemID})
}

func (rt *Router) planQueries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Events []domain.ChoiceEvent `json:"events"`
		Hints  domain.Hints         `json:"hints"`
		Budget domain.Budget        `json:"budget"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Events) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "events are required"})
		return
	}

	plan, err := rt.discoveryUC.PlanQueries(r.Context(), req.Events, req.Hints, req.Budget)
	if err != nil {
		writeError(w, err)
		return
	}

	rt.recordDrops(plan)
	writeJSON(w, http.StatusOK, plan)
}

func (rt *Router) findVariants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		ItemID        string   `json:"item_id"`
		MinTagOverlap float64  `json:"min_tag_overlap"`
		MaxCosine     float64  `json:"max_cosine"`
		Axes          []string `json:"axes"`
		Limit         int      `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ItemID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item_id is required"})
		return
	}

	variants, err := rt.discoveryUC.Variants(r.Context(), req.ItemID, usecase.VariantParams{
		MinTagOverlap: req.MinTagOverlap,
		MaxCosine:     req.MaxCosine,
		Axes:          req.Axes,
		Limit:         req.Limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"variants": variants})
}

type recommendationRequest struct {
	Events   []domain.ChoiceEvent `json:"events"`
	Budget   domain.Budget        `json:"budget"`
	AgePrior []string             `json:"age_prior"`
	Hints    domain.Hints         `json:"hints"`
}

func (rt *Router) enqueueRecommendation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req recommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	session, err := rt.recommendUC.Enqueue(r.Context(), req.Events, req.Budget, req.AgePrior, req.Hints)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, session)
}

func (rt *Router) runRecommendation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req recommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Events) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "events are required"})
		return
	}

	start := time.Now()
	rec, err := rt.recommendUC.Run(r.Context(), req.Events, req.Budget, req.AgePrior, req.Hints)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordPipelineRun(rt.service, string(rec.Outcome), rec.Retrieved, time.Since(start))
		if rec.RewriteUsed {
			rt.metrics.RecordRewriteUsed(rt.service)
		}
	}
	rt.recordDrops(rec.Plan)
	writeJSON(w, http.StatusOK, rec)
}

func (rt *Router) getRecommendation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/recommendations/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session id is required"})
		return
	}

	session, rec, err := rt.recommendUC.Result(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"session": session,
	}
	if rec != nil {
		resp["recommendation"] = rec
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) recordDrops(plan domain.QueryPlan) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordDroppedTokens(rt.service, "dropped_forbidden", len(plan.Debug.DroppedForbidden))
	rt.metrics.RecordDroppedTokens(rt.service, "dropped_not_allowed", len(plan.Debug.DroppedUnknown))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
