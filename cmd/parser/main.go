package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/civiclens/civiclens-go/pkg/config"
	"github.com/civiclens/civiclens-go/pkg/eventstore"
	"github.com/civiclens/civiclens-go/pkg/extraction"
	"github.com/civiclens/civiclens-go/pkg/gazetteer"
	"github.com/civiclens/civiclens-go/pkg/models"
	"github.com/civiclens/civiclens-go/pkg/orchestrator"
	"github.com/civiclens/civiclens-go/pkg/ratelimit"
	"github.com/civiclens/civiclens-go/pkg/resolver"
	AI "github.com/civiclens/civiclens-go/pipelines/AI"
	storage "github.com/civiclens/civiclens-go/pipelines/Storage"
	"github.com/civiclens/civiclens-go/utils"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (empty = defaults)")
	once := flag.Bool("once", false, "run one parse sweep and exit, ignoring parse_schedule")
	flag.Parse()

	if err := run(*configPath, *once); err != nil {
		fmt.Fprintf(os.Stderr, "civiclens-parser: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := utils.NewLogger()
	log.SetLevel(utils.ParseLogLevel(cfg.LogLevel))
	log.SetFormat(cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := eventstore.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	orch, err := buildPipeline(ctx, cfg, store, log)
	if err != nil {
		return err
	}

	if once || cfg.ParseSchedule == "" {
		parsed, err := orch.ProcessPending(ctx, cfg.BatchSize)
		if err != nil {
			return err
		}
		log.Info("sweep finished", utils.Int("parsed", parsed))
		return nil
	}

	sched := orchestrator.NewScheduler(orch, cfg.BatchSize, log.WithComponent("scheduler"))
	if err := sched.Start(ctx, cfg.ParseSchedule); err != nil {
		return err
	}
	<-ctx.Done()
	log.Info("shutting down")
	sched.Stop()
	return nil
}

// buildPipeline assembles the parse pipeline from configuration: embedding
// service, vector backend, gazetteer index, resolver, rate limiter,
// extractors, consensus engine, orchestrator.
func buildPipeline(ctx context.Context, cfg *config.Config, store eventstore.Store, log *utils.Logger) (*orchestrator.Orchestrator, error) {
	embedder, err := storage.NewEmbeddingService(storage.EmbeddingConfig{
		Provider:   storage.EmbeddingProvider(cfg.Embedding.Provider),
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding service: %w", err)
	}

	backend, err := storage.NewVectorBackend(ctx, storage.BackendConfig{
		Type: storage.BackendType(cfg.VectorBackend),
		Qdrant: storage.QdrantConfig{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
		},
	}, embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector backend: %w", err)
	}

	entries, err := gazetteer.LoadCSV(cfg.GazetteerPath)
	if err != nil {
		return nil, err
	}
	index, err := gazetteer.Build(ctx, entries, embedder, backend, log.WithComponent("gazetteer"))
	if err != nil {
		return nil, err
	}

	res, err := resolver.New(index, cfg.TopK, cfg.MinLocationScore, log.WithComponent("resolver"))
	if err != nil {
		return nil, err
	}

	limits := make(map[string]ratelimit.BackendLimit, len(cfg.Backends))
	for _, b := range cfg.Backends {
		limits[b.Name] = ratelimit.BackendLimit{RPM: b.RPM, Burst: b.Burst}
	}
	limiter := ratelimit.New(limits)

	extractors := []extraction.Extractor{extraction.NewRuleExtractor()}
	for _, b := range cfg.Backends {
		source, err := voteSourceForBackend(b.Name)
		if err != nil {
			return nil, err
		}
		client, err := AI.NewLLMClient(AI.LLMClientConfig{
			Provider:  AI.LLMProvider(b.Provider),
			APIKeyEnv: b.APIKeyEnv,
			BaseURL:   b.BaseURL,
			Model:     b.Model,
			Timeout:   b.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create backend %q: %w", b.Name, err)
		}
		ex, err := extraction.NewLLMExtractor(source, b.Name, client, limiter,
			cfg.PermitTimeoutDuration(), log.WithComponent("extractor"))
		if err != nil {
			return nil, err
		}
		extractors = append(extractors, ex)
	}

	engine := extraction.NewEngine(extractors, cfg.ConsensusTimeoutDuration(), log.WithComponent("consensus"))

	return orchestrator.New(engine, res, store, limiter, cfg.Workers, log.WithComponent("orchestrator")), nil
}

func voteSourceForBackend(name string) (models.VoteSource, error) {
	switch name {
	case string(models.SourceLLMPrimary):
		return models.SourceLLMPrimary, nil
	case string(models.SourceLLMSecondary):
		return models.SourceLLMSecondary, nil
	default:
		return "", fmt.Errorf("backend name must be %q or %q, got %q",
			models.SourceLLMPrimary, models.SourceLLMSecondary, name)
	}
}
