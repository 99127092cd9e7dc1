// Package app wires the application together: configuration, logging,
// database pool, model providers, the chunk index, and the conversation
// graph. Every entry point (CLI and HTTP server) goes through Setup.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/briefing/db"
	"github.com/koopa0/briefing/internal/config"
	"github.com/koopa0/briefing/internal/graph"
	"github.com/koopa0/briefing/internal/index"
	"github.com/koopa0/briefing/internal/llm"
	"github.com/koopa0/briefing/internal/log"
	"github.com/koopa0/briefing/internal/observability"
	"github.com/koopa0/briefing/internal/retrieval"
)

// App holds the initialized application components.
type App struct {
	Config *config.Config
	Logger log.Logger
	Genkit *genkit.Genkit
	Pool   *pgxpool.Pool
	Store  *index.Store
	Models *llm.Registry
	Graph  *graph.Graph

	cleanups []func(context.Context) error
}

// Setup creates and initializes the application. Returns an App with
// embedded cleanup; call Close to release resources.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	a := &App{Config: cfg}

	a.Logger = log.New(log.Config{
		Level: parseLogLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(context.Background()); err != nil {
				a.Logger.Warn("cleanup after failed setup", "error", err)
			}
		}
	}()

	if cfg.TracingEnabled {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.OTLPEndpoint,
			ServiceName: "briefing",
		}, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
		a.cleanups = append(a.cleanups, shutdown)
	}

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	pool, err := providePool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool
	a.cleanups = append(a.cleanups, func(context.Context) error {
		pool.Close()
		return nil
	})

	store, err := index.New(pool, provideEmbedder(g, cfg), a.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating index store: %w", err)
	}
	a.Store = store

	retriever, err := retrieval.NewHybrid(store, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating retriever: %w", err)
	}

	client, err := llm.NewClient(llm.ClientConfig{
		Genkit:          g,
		Backend:         cfg.Backend(),
		MaxOutputTokens: cfg.LLMMaxTokens,
		Logger:          a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}
	a.Models = llm.NewRegistry()
	a.Models.Register(cfg.Backend(), client)

	conv, err := graph.NewConversation(graph.Config{
		Retriever: retriever,
		Models:    a.Models,
		Logger:    a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("building conversation graph: %w", err)
	}
	a.Graph = conv

	return a, nil
}

// Close releases application resources in reverse initialization order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanups = nil
	return errors.Join(errs...)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// provideGenkit initializes Genkit with the configured model provider.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		plugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(plugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration.
		plugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		plugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}

	default: // googleai
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
	}
	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, "openai/"+cfg.EmbedderModel)
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// providePool runs migrations and opens the PostgreSQL connection pool.
func providePool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}
