package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/hybrid-retriever/internal/config"
	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/core/ports"
	"github.com/kirillkom/hybrid-retriever/internal/core/usecase"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/encyclopedia/wikipedia"
	graphadapter "github.com/kirillkom/hybrid-retriever/internal/infrastructure/graph/neo4j"
	keywordstore "github.com/kirillkom/hybrid-retriever/internal/infrastructure/keyword/postgres"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/llm/ollama"
	natsqueue "github.com/kirillkom/hybrid-retriever/internal/infrastructure/queue/nats"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/resilience"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/hybrid-retriever/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Metrics *metrics.RetrievalMetrics

	Retriever ports.Retriever

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{
		Config:  cfg,
		Metrics: metrics.NewRetrievalMetrics("retrieval-api"),
	}

	tuning, err := config.LoadFusionTuning(cfg.FusionTuningPath)
	if err != nil {
		return nil, fmt.Errorf("load fusion tuning: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	adapters := make([]ports.SourceAdapter, 0, 4)

	if cfg.VectorEnabled {
		embedder := ollama.NewEmbedder(ollama.NewWithExecutor(cfg.OllamaURL, cfg.OllamaEmbedModel, executor))
		adapters = append(adapters, qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, embedder))
	}

	if cfg.GraphEnabled {
		graph, err := graphadapter.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase, cfg.Neo4jFulltextIndex)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init graph adapter: %w", err)
		}
		app.closeFns = append(app.closeFns, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = graph.Close(closeCtx)
		})
		adapters = append(adapters, graph)
	}

	if cfg.KeywordEnabled {
		db, err := keywordstore.OpenDB(cfg.PostgresDSN)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.closeFns = append(app.closeFns, func() { _ = db.Close() })

		repo := keywordstore.NewRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			app.Close()
			return nil, fmt.Errorf("ensure keyword schema: %w", err)
		}
		adapters = append(adapters, repo)
	}

	if cfg.EncyclopedicEnabled {
		adapters = append(adapters, wikipedia.New(cfg.WikipediaAPIURL, cfg.WikipediaRPS))
	}

	if len(adapters) == 0 {
		app.Close()
		return nil, fmt.Errorf("no retrieval sources enabled")
	}

	var publisher ports.OutcomePublisher
	if cfg.NATSEnabled {
		queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init outcome publisher: %w", err)
		}
		app.closeFns = append(app.closeFns, queue.Close)
		publisher = queue
	}

	app.Retriever = usecase.NewRetrieveUseCase(adapters, publisher, usecase.RetrieveConfig{
		DefaultStrategy:     cfg.FusionStrategy,
		MaxResults:          cfg.MaxResults,
		CandidatesPerSource: cfg.CandidatesPerSource,
		PerSourceTimeout:    time.Duration(cfg.PerSourceTimeoutMS) * time.Millisecond,
		KeywordSaturation:   tuning.KeywordSaturation,
		SourceWeights:       sourceWeights(tuning.Weights),
		MultiSourceBoost:    tuning.MultiSourceBoost,
		RRFK:                tuning.RRFK,
	})

	return app, nil
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

func sourceWeights(named map[string]float64) map[domain.Source]float64 {
	out := make(map[domain.Source]float64, len(named))
	for name, weight := range named {
		source, err := domain.ParseSource(name)
		if err != nil {
			continue
		}
		out[source] = weight
	}
	return out
}
