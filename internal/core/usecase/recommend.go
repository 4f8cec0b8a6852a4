package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/giftsense/internal/core/domain"
	"github.com/kirillkom/giftsense/internal/core/ports"
)

// RecommendConfig tunes the retrieval pipeline.
type RecommendConfig struct {
	TopK        int
	KeepTop     int
	SearchLimit int
	RecencyTau  float64
}

func (c RecommendConfig) withDefaults() RecommendConfig {
	if c.TopK <= 0 {
		c.TopK = 24
	}
	if c.KeepTop <= 0 {
		c.KeepTop = DefaultKeepTop
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 20
	}
	if c.RecencyTau <= 0 {
		c.RecencyTau = DefaultRecencyTau
	}
	return c
}

// RecommendGiftsUseCase runs the full pipeline: events to taste profile to
// safe queries to catalogue retrieval to ranked, explained shortlist. It
// also owns the queued-session lifecycle around it.
type RecommendGiftsUseCase struct {
	items     ports.ItemStore
	catalogue ports.CatalogueSearcher
	rewriter  ports.QueryRewriter
	sessions  ports.SessionRepository
	queue     ports.MessageQueue
	composer  *Composer
	vocab     *Vocabulary
	cfg       RecommendConfig
}

func NewRecommendGiftsUseCase(
	items ports.ItemStore,
	catalogue ports.CatalogueSearcher,
	rewriter ports.QueryRewriter,
	sessions ports.SessionRepository,
	queue ports.MessageQueue,
	composer *Composer,
	vocab *Vocabulary,
	cfg RecommendConfig,
) *RecommendGiftsUseCase {
	return &RecommendGiftsUseCase{
		items:     items,
		catalogue: catalogue,
		rewriter:  rewriter,
		sessions:  sessions,
		queue:     queue,
		composer:  composer,
		vocab:     vocab,
		cfg:       cfg.withDefaults(),
	}
}

// Enqueue persists a session and publishes it for asynchronous processing.
func (uc *RecommendGiftsUseCase) Enqueue(ctx context.Context, events []domain.ChoiceEvent, budget domain.Budget, agePrior []string, hints domain.Hints) (*domain.Session, error) {
	if len(events) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "enqueue session",
			errors.New("no choice events supplied"))
	}

	now := time.Now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		Events:    events,
		Budget:    budget,
		AgePrior:  agePrior,
		Hints:     hints,
		Status:    domain.SessionQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := uc.queue.PublishSessionQueued(ctx, session.ID); err != nil {
		return nil, fmt.Errorf("publish session event: %w", err)
	}
	return session, nil
}

// ProcessByID runs the pipeline for a queued session and persists the
// outcome, mirroring the queued/running/ready/failed lifecycle.
func (uc *RecommendGiftsUseCase) ProcessByID(ctx context.Context, sessionID string) error {
	session, err := uc.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("fetch session by id: %w", err)
	}

	if err := uc.sessions.UpdateStatus(ctx, sessionID, domain.SessionRunning, ""); err != nil {
		return fmt.Errorf("set status=running: %w", err)
	}

	rec, err := uc.Run(ctx, session.Events, session.Budget, session.AgePrior, session.Hints)
	if err != nil {
		if failErr := uc.sessions.UpdateStatus(ctx, sessionID, domain.SessionFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.sessions.SaveResult(ctx, sessionID, rec); err != nil {
		if failErr := uc.sessions.UpdateStatus(ctx, sessionID, domain.SessionFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return fmt.Errorf("save result: %w", err)
	}

	if err := uc.sessions.UpdateStatus(ctx, sessionID, domain.SessionReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

// Result returns the session and, when ready, its recommendation.
func (uc *RecommendGiftsUseCase) Result(ctx context.Context, sessionID string) (*domain.Session, *domain.Recommendation, error) {
	session, err := uc.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch session by id: %w", err)
	}
	if session.Status != domain.SessionReady {
		return session, nil, nil
	}
	rec, err := uc.sessions.GetResult(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch session result: %w", err)
	}
	return session, rec, nil
}

// Run executes the pipeline synchronously.
func (uc *RecommendGiftsUseCase) Run(ctx context.Context, events []domain.ChoiceEvent, budget domain.Budget, agePrior []string, hints domain.Hints) (domain.Recommendation, error) {
	taste, tags, err := uc.profile(ctx, events)
	if err != nil {
		return domain.Recommendation{}, err
	}

	plan := uc.composer.BuildPlan(tags, nil, hints, budget)
	queries, rewriteUsed := uc.collectQueries(ctx, plan, hints, budget)

	retrieved, err := uc.search(ctx, queries, plan.Categories, budget)
	if err != nil {
		return domain.Recommendation{}, err
	}
	if len(retrieved) == 0 {
		return domain.Recommendation{Outcome: domain.OutcomeNoResults, Plan: plan}, nil
	}

	ranked := RankByTaste(retrieved, taste, tags, uc.cfg.TopK)

	filtered := FilterBudgetAndAge(ranked, budget, agePrior)
	outcome := domain.OutcomeOK
	if len(filtered) == 0 {
		// Hard constraints emptied the pool: relax them rather than
		// return nothing, and say so.
		filtered = ranked
		outcome = domain.OutcomeConstraintsRelaxed
	}

	shortlist := HeuristicRerank(filtered, tags, budget, agePrior, uc.cfg.KeepTop)

	return domain.Recommendation{
		Outcome:     outcome,
		Plan:        plan,
		Retrieved:   len(retrieved),
		RewriteUsed: rewriteUsed,
		Shortlist:   shortlist,
		Best:        ChooseFinalBest(shortlist),
	}, nil
}

func (uc *RecommendGiftsUseCase) profile(ctx context.Context, events []domain.ChoiceEvent) ([]float64, []string, error) {
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ItemID)
	}
	itemsByID, err := uc.items.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch event items: %w", err)
	}

	taste, err := BuildTasteVector(itemsByID, events, 0, uc.cfg.RecencyTau)
	if err != nil {
		// No resolvable embeddings; ranking falls back to text similarity.
		taste = nil
	}
	tags := TopTagsFromEvents(itemsByID, events, DefaultTopTags, uc.cfg.RecencyTau)
	return taste, tags, nil
}

// collectQueries takes the deterministic bucket queries and, when a
// rewriter is configured, overlays one sanitized rewritten line. The
// rewrite never replaces the deterministic plan and is dropped entirely on
// error or when sanitization empties it.
func (uc *RecommendGiftsUseCase) collectQueries(ctx context.Context, plan domain.QueryPlan, hints domain.Hints, budget domain.Budget) ([]string, bool) {
	queries := make([]string, 0, len(plan.Buckets)+2)
	seen := make(map[string]struct{})
	add := func(q string) bool {
		if q == "" {
			return false
		}
		if _, dup := seen[q]; dup {
			return false
		}
		seen[q] = struct{}{}
		queries = append(queries, q)
		return true
	}

	for _, bq := range plan.Buckets {
		add(bq.Query)
	}
	add(plan.Query)

	rewriteUsed := false
	if uc.rewriter != nil && len(plan.Tokens) > 0 {
		cohort := hints.Cohort
		if cohort == "" {
			cohort = uc.vocab.CohortForTokens(plan.Tokens)
		}
		line, err := uc.rewriter.Rewrite(ctx, plan.Tokens, cohort, budget)
		if err == nil {
			rewriteUsed = add(uc.vocab.Sanitize(line))
		}
	}
	return queries, rewriteUsed
}

func (uc *RecommendGiftsUseCase) search(ctx context.Context, queries, categories []string, budget domain.Budget) ([]domain.CatalogueItem, error) {
	var (
		out     []domain.CatalogueItem
		seen    = make(map[string]struct{})
		lastErr error
		failed  int
	)
	for _, q := range queries {
		items, err := uc.catalogue.Search(ctx, q, budget, categories, uc.cfg.SearchLimit)
		if err != nil {
			failed++
			lastErr = err
			continue
		}
		for _, it := range items {
			if it.SKU == "" {
				continue
			}
			if _, dup := seen[it.SKU]; dup {
				continue
			}
			seen[it.SKU] = struct{}{}
			out = append(out, it)
		}
	}

	if len(out) == 0 && failed > 0 && failed == len(queries) {
		return nil, domain.WrapError(domain.ErrTemporary, "catalogue search", lastErr)
	}
	return out, nil
}
