package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/giftsense/internal/config"
	"github.com/kirillkom/giftsense/internal/core/ports"
	"github.com/kirillkom/giftsense/internal/core/usecase"
	"github.com/kirillkom/giftsense/internal/infrastructure/catalogue"
	"github.com/kirillkom/giftsense/internal/infrastructure/manifest"
	"github.com/kirillkom/giftsense/internal/infrastructure/queue/nats"
	"github.com/kirillkom/giftsense/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/giftsense/internal/infrastructure/rewrite"
	"github.com/kirillkom/giftsense/internal/infrastructure/rewrite/ollama"
)

type App struct {
	Config config.Config

	Queue       ports.MessageQueue
	Items       ports.ItemStore
	Sessions    ports.SessionRepository
	DiscoveryUC *usecase.DiscoveryUseCase
	RecommendUC *usecase.RecommendGiftsUseCase

	SelectParams usecase.SelectNextParams

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	items := postgres.NewItemRepository(db)
	if err := items.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure items schema: %w", err)
	}
	sessions := postgres.NewSessionRepository(db)
	if err := sessions.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure sessions schema: %w", err)
	}

	m, err := manifest.Load(cfg.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	vocab, err := usecase.NewVocabulary(m)
	if err != nil {
		return nil, fmt.Errorf("build vocabulary: %w", err)
	}
	composer := usecase.NewComposer(vocab)

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	searcher := catalogue.New(
		cfg.CatalogueURL,
		cfg.CatalogueAPIKey,
		catalogue.WithRateLimit(cfg.CatalogueRateRPS, cfg.CatalogueRateBurst),
		catalogue.WithTimeout(time.Duration(cfg.CatalogueTimeoutMS)*time.Millisecond),
	)

	var rewriter ports.QueryRewriter = rewrite.NewNull()
	if cfg.RewriteEnabled {
		rewriter = ollama.New(cfg.OllamaURL, cfg.OllamaModel)
	}

	discoveryUC := usecase.NewDiscoveryUseCase(items, composer, cfg.RecencyTau)
	recommendUC := usecase.NewRecommendGiftsUseCase(
		items,
		searcher,
		rewriter,
		sessions,
		queue,
		composer,
		vocab,
		usecase.RecommendConfig{
			TopK:        cfg.TopK,
			KeepTop:     cfg.KeepTop,
			SearchLimit: cfg.SearchLimit,
			RecencyTau:  cfg.RecencyTau,
		},
	)

	return &App{
		Config: cfg,

		Queue:       queue,
		Items:       items,
		Sessions:    sessions,
		DiscoveryUC: discoveryUC,
		RecommendUC: recommendUC,

		SelectParams: usecase.SelectNextParams{
			LambdaDiversity: cfg.LambdaDiversity,
			RecentWindow:    cfg.RecentWindow,
			SampleK:         cfg.SelectorSampleK,
		},

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
