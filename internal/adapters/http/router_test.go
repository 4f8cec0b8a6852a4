package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/giftsense/internal/core/domain"
	"github.com/kirillkom/giftsense/internal/core/usecase"
)

type itemStoreFake struct {
	items map[string]domain.Item
}

func (f *itemStoreFake) GetByID(_ context.Context, id string) (*domain.Item, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get item", errors.New(id))
	}
	return &item, nil
}

func (f *itemStoreFake) GetByIDs(_ context.Context, ids []string) (map[string]domain.Item, error) {
	out := make(map[string]domain.Item)
	for _, id := range ids {
		if item, ok := f.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (f *itemStoreFake) ListIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.items))
	for id := range f.items {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *itemStoreFake) UpsertBatch(_ context.Context, _ []domain.Item) error {
	return nil
}

type catalogueFake struct {
	results []domain.CatalogueItem
	err     error
}

func (f *catalogueFake) Search(_ context.Context, _ string, _ domain.Budget, _ []string, _ int) ([]domain.CatalogueItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type sessionRepoFake struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	results  map[string]domain.Recommendation
}

func newSessionRepoFake() *sessionRepoFake {
	return &sessionRepoFake{
		sessions: make(map[string]*domain.Session),
		results:  make(map[string]domain.Recommendation),
	}
}

func (f *sessionRepoFake) Create(_ context.Context, session *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *sessionRepoFake) GetByID(_ context.Context, id string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get session", errors.New(id))
	}
	copied := *session
	return &copied, nil
}

func (f *sessionRepoFake) UpdateStatus(_ context.Context, id string, status domain.SessionStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update status", errors.New(id))
	}
	session.Status = status
	session.Error = errMessage
	session.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *sessionRepoFake) SaveResult(_ context.Context, id string, rec domain.Recommendation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return domain.WrapError(domain.ErrNotFound, "save result", errors.New(id))
	}
	f.results[id] = rec
	return nil
}

func (f *sessionRepoFake) GetResult(_ context.Context, id string) (*domain.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.results[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get result", errors.New(id))
	}
	return &rec, nil
}

type queueFake struct {
	mu        sync.Mutex
	published []string
}

func (f *queueFake) PublishSessionQueued(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, sessionID)
	return nil
}

func (f *queueFake) SubscribeSessionQueued(_ context.Context, _ func(context.Context, string) error) error {
	return nil
}

func testVocabulary(t *testing.T) *usecase.Vocabulary {
	t.Helper()
	vocab, err := usecase.NewVocabulary(domain.Manifest{
		AllowedTokens:   []string{"retro", "cozy", "vintage", "tech", "book"},
		ForbiddenTokens: []string{"girl"},
		TagToCategories: map[string][]string{
			"retro": {"Retro"},
			"cozy":  {"Homeware"},
		},
		QueryRules: domain.QueryRules{MinTokens: 2, MaxTokens: 6},
	})
	if err != nil {
		t.Fatalf("NewVocabulary() error = %v", err)
	}
	return vocab
}

type routerFixture struct {
	handler  http.Handler
	sessions *sessionRepoFake
	queue    *queueFake
}

func newRouterFixture(t *testing.T, catalogue *catalogueFake) routerFixture {
	t.Helper()

	items := &itemStoreFake{items: map[string]domain.Item{
		"p1": {ID: "p1", Vector: []float64{1, 0, 0}, Tags: []string{"retro", "cozy"}},
		"p2": {ID: "p2", Vector: []float64{0, 1, 0}, Tags: []string{"tech"}},
		"p3": {ID: "p3", Vector: []float64{0, 0, 1}, Tags: []string{"book"}},
	}}
	vocab := testVocabulary(t)
	composer := usecase.NewComposer(vocab)
	sessions := newSessionRepoFake()
	queue := &queueFake{}

	discoveryUC := usecase.NewDiscoveryUseCase(items, composer, 8)
	recommendUC := usecase.NewRecommendGiftsUseCase(
		items, catalogue, nil, sessions, queue, composer, vocab, usecase.RecommendConfig{},
	)

	router := NewRouter(discoveryUC, recommendUC, usecase.SelectNextParams{}, "giftsense-api", nil)
	return routerFixture{handler: router.Handler(), sessions: sessions, queue: queue}
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func likeEvents() []map[string]any {
	return []map[string]any{
		{"item_id": "p1", "kind": "super_like"},
		{"item_id": "p2", "kind": "dislike"},
	}
}

func TestHealthzEndpoint(t *testing.T) {
	fx := newRouterFixture(t, &catalogueFake{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header to be set")
	}
}

func TestComputeTasteReturnsProfile(t *testing.T) {
	fx := newRouterFixture(t, &catalogueFake{})

	res := postJSON(t, fx.handler, "/v1/taste", map[string]any{"events": likeEvents()})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp struct {
		Taste []float64 `json:"taste"`
		Tags  []string  `json:"tags"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Taste) != 3 {
		t.Fatalf("expected 3-dim taste vector, got %v", resp.Taste)
	}
	found := false
	for _, tag := range resp.Tags {
		if tag == "retro" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected retro in taste tags, got %v", resp.Tags)
	}
}

func TestComputeTasteRejectsEmptyEvents(t *testing.T) {
	fx := newRouterFixture(t, &catalogueFake{})

	res := postJSON(t, fx.handler, "/v1/taste", map[string]any{"events": []any{}})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestComputeTasteRejectsInvalidJSON(t *testing.T) {
	fx := newRouterFixture(t, &catalogueFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/taste", bytes.NewBufferString("{"))
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestNextSelectionPicksUnshownCandidate(t *testing.T) {
	fx := newRouterFixture(t, &catalogueFake{})

	res := postJSON(t, fx.handler, "/v1/selection/next", map[string]any{
		"events":    likeEvents(),
		"shown_ids": []string{"p1", "p2"},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["item_id"] != "p3" {
		t.Fatalf("expected p3 as the only unshown candidate, got %q", resp["item_id"])
	}
}

func TestPlanQueriesReturnsSanitizedPlan(t *testing.T) {
	fx := newRouterFixture(t, &catalogueFake{})

	res := postJSON(t, fx.handler, "/v1/queries", map[string]any{"events": likeEvents()})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var plan domain.QueryPlan
	if err := json.NewDecoder(res.Body).Decode(&plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if plan.Query == "" {
		t.Fatalf("expected a composed query, got empty plan: %+v", plan)
	}
	for _, token := range plan.Tokens {
		if token == "girl" {
			t.Fatalf("forbidden token leaked into plan: %v", plan.Tokens)
		}
	}
}

func TestFindVariantsExcludesReference(t *testing.T) {
	fx := newRouterFixture(t, &catalogueFake{})

	res := postJSON(t, fx.handler, "/v1/variants", map[string]any{
		"item_id":    "p1",
		"max_cosine": 0.99,
		"limit":      5,
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp struct {
		Variants []struct {
			ItemID string `json:"item_id"`
		} `json:"variants"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, v := range resp.Variants {
		if v.ItemID == "p1" {
			t.Fatalf("reference item returned as its own variant")
		}
	}
}

func TestFindVariantsRequiresItemID(t *testing.T) {
	fx := newRouterFixture(t, &catalogueFake{})

	res := postJSON(t, fx.handler, "/v1/variants", map[string]any{"limit": 3})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestEnqueueRecommendationReturnsQueuedSession(t *testing.T) {
	fx := newRouterFixture(t, &catalogueFake{})

	res := postJSON(t, fx.handler, "/v1/recommendations", map[string]any{"events": likeEvents()})
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}

	var session domain.Session
	if err := json.NewDecoder(res.Body).Decode(&session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.ID == "" || session.Status != domain.SessionQueued {
		t.Fatalf("unexpected session: %+v", session)
	}
	if len(fx.queue.published) != 1 || fx.queue.published[0] != session.ID {
		t.Fatalf("expected session published to queue, got %v", fx.queue.published)
	}
}

func TestEnqueueRecommendationRejectsEmptyEvents(t *testing.T) {
	fx := newRouterFixture(t, &catalogueFake{})

	res := postJSON(t, fx.handler, "/v1/recommendations", map[string]any{"events": []any{}})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetRecommendationUnknownSession(t *testing.T) {
	fx := newRouterFixture(t, &catalogueFake{})

	req := httptest.NewRequest(http.MethodGet, "/v1/recommendations/missing", nil)
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestGetRecommendationIncludesReadyResult(t *testing.T) {
	fx := newRouterFixture(t, &catalogueFake{})

	now := time.Now().UTC()
	session := &domain.Session{ID: "s1", Status: domain.SessionQueued, CreatedAt: now, UpdatedAt: now}
	if err := fx.sessions.Create(context.Background(), session); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := fx.sessions.SaveResult(context.Background(), "s1", domain.Recommendation{Outcome: domain.OutcomeOK}); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	if err := fx.sessions.UpdateStatus(context.Background(), "s1", domain.SessionReady, ""); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/recommendations/s1", nil)
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp struct {
		Session        domain.Session         `json:"session"`
		Recommendation *domain.Recommendation `json:"recommendation"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Session.Status != domain.SessionReady {
		t.Fatalf("expected ready status, got %q", resp.Session.Status)
	}
	if resp.Recommendation == nil || resp.Recommendation.Outcome != domain.OutcomeOK {
		t.Fatalf("expected ok recommendation, got %+v", resp.Recommendation)
	}
}

func TestRunRecommendationSyncReturnsShortlist(t *testing.T) {
	price := 49.0
	fx := newRouterFixture(t, &catalogueFake{results: []domain.CatalogueItem{
		{SKU: "g1", Title: "Retro record player", Price: &price, Tags: []string{"retro"}},
	}})

	res := postJSON(t, fx.handler, "/v1/recommendations/sync", map[string]any{"events": likeEvents()})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var rec domain.Recommendation
	if err := json.NewDecoder(res.Body).Decode(&rec); err != nil {
		t.Fatalf("decode recommendation: %v", err)
	}
	if rec.Outcome != domain.OutcomeOK {
		t.Fatalf("expected ok outcome, got %q", rec.Outcome)
	}
	if rec.Best == nil || rec.Best.BestSKU != "g1" {
		t.Fatalf("expected g1 as best pick, got %+v", rec.Best)
	}
}

func TestRunRecommendationSyncCatalogueOutage(t *testing.T) {
	fx := newRouterFixture(t, &catalogueFake{err: errors.New("connection refused")})

	res := postJSON(t, fx.handler, "/v1/recommendations/sync", map[string]any{"events": likeEvents()})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", res.Code, res.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	fx := newRouterFixture(t, &catalogueFake{})

	req := httptest.NewRequest(http.MethodGet, "/v1/taste", nil)
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}
