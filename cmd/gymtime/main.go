// Command gymtime is the voice workout tracking server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/gymtime/gymtime/internal/auth"
	"github.com/gymtime/gymtime/internal/config"
	"github.com/gymtime/gymtime/internal/lexicon"
	"github.com/gymtime/gymtime/internal/observe"
	"github.com/gymtime/gymtime/internal/parser"
	"github.com/gymtime/gymtime/internal/resilience"
	"github.com/gymtime/gymtime/internal/server"
	"github.com/gymtime/gymtime/internal/store/postgres"
	"github.com/gymtime/gymtime/pkg/provider/embeddings"
	oaembed "github.com/gymtime/gymtime/pkg/provider/embeddings/openai"
	"github.com/gymtime/gymtime/pkg/provider/llm"
	"github.com/gymtime/gymtime/pkg/provider/llm/anyllm"
	oallm "github.com/gymtime/gymtime/pkg/provider/llm/openai"
	"github.com/gymtime/gymtime/pkg/provider/stt"
	oastt "github.com/gymtime/gymtime/pkg/provider/stt/openai"
	"github.com/gymtime/gymtime/pkg/provider/stt/whisper"
)

const defaultEmbeddingDimensions = 1536

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "gymtime: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "gymtime: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("gymtime starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	obsShutdown, err := observe.InitProvider(ctx, "gymtime")
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obsShutdown(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	llmProvider, err := buildLLM(cfg.Providers.LLM)
	if err != nil {
		slog.Error("failed to build llm provider", "err", err)
		return 1
	}
	sttProvider, err := buildSTT(cfg.Providers.STT)
	if err != nil {
		slog.Error("failed to build stt provider", "err", err)
		return 1
	}
	embedder, err := buildEmbeddings(cfg.Providers.Embeddings)
	if err != nil {
		slog.Error("failed to build embeddings provider", "err", err)
		return 1
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	dims := cfg.Storage.EmbeddingDimensions
	if dims <= 0 {
		dims = defaultEmbeddingDimensions
	}
	st, err := postgres.NewStore(ctx, cfg.Storage.PostgresDSN, dims)
	if err != nil {
		slog.Error("failed to connect to postgres", "err", err)
		return 1
	}
	defer st.Close()

	// ── Parser ────────────────────────────────────────────────────────────────
	parserOpts := []parser.Option{parser.WithLogger(logger)}
	if !cfg.Lexicon.Disabled {
		names := append(append([]string{}, lexicon.DefaultCatalog...), cfg.Lexicon.ExtraExercises...)
		parserOpts = append(parserOpts, parser.WithLexicon(lexicon.New(names)))
	}
	p := parser.New(llmProvider, auth.ContextProvider{}, parserOpts...)

	// ── Server ────────────────────────────────────────────────────────────────
	srv, err := server.New(cfg.Server, server.Deps{
		Auth:      auth.NewTokenAuthenticator(cfg.Auth.Tokens),
		Parser:    p,
		STT:       sttProvider,
		Workouts:  st,
		Summaries: st,
		Embedder:  embedder,
		Logger:    logger,
		Ready: map[string]func(ctx context.Context) error{
			"postgres": st.Ping,
		},
	})
	if err != nil {
		slog.Error("failed to initialise server", "err", err)
		return 1
	}

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildLLM constructs the completion provider named in entry, wrapped in a
// breaker-protected failover chain. "openai" uses the native SDK client; every
// other name goes through any-llm-go.
func buildLLM(entry config.ProviderEntry) (llm.Provider, error) {
	primary, err := newLLM(entry)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
	}
	failover := resilience.NewLLMFailover(primary, entry.Name, resilience.BreakerConfig{})
	if entry.Fallback != nil {
		standby, err := newLLM(*entry.Fallback)
		if err != nil {
			return nil, fmt.Errorf("create llm fallback %q: %w", entry.Fallback.Name, err)
		}
		failover.AddFallback(entry.Fallback.Name, standby)
		slog.Info("provider created", "kind", "llm-fallback", "name", entry.Fallback.Name)
	}
	slog.Info("provider created", "kind", "llm", "name", entry.Name)
	return failover, nil
}

func newLLM(entry config.ProviderEntry) (llm.Provider, error) {
	if entry.Name == "openai" {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	}

	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(entry.Name, entry.Model, opts...)
}

// buildSTT constructs the transcription provider named in entry, with the
// same failover treatment as the LLM. An empty name disables voice capture;
// the HTTP parse endpoint still works.
func buildSTT(entry config.ProviderEntry) (stt.Provider, error) {
	if entry.Name == "" {
		slog.Warn("no stt provider configured; the voice endpoint is disabled")
		return nil, nil
	}
	primary, err := newSTT(entry)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
	}
	failover := resilience.NewSTTFailover(primary, entry.Name, resilience.BreakerConfig{})
	if entry.Fallback != nil {
		standby, err := newSTT(*entry.Fallback)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback %q: %w", entry.Fallback.Name, err)
		}
		failover.AddFallback(entry.Fallback.Name, standby)
		slog.Info("provider created", "kind", "stt-fallback", "name", entry.Fallback.Name)
	}
	slog.Info("provider created", "kind", "stt", "name", entry.Name)
	return failover, nil
}

func newSTT(entry config.ProviderEntry) (stt.Provider, error) {
	switch entry.Name {
	case "whisper":
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)

	case "whisper-native":
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)

	case "openai":
		var opts []oastt.Option
		if entry.Model != "" {
			opts = append(opts, oastt.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oastt.WithBaseURL(entry.BaseURL))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, oastt.WithLanguage(lang))
		}
		return oastt.New(entry.APIKey, opts...)

	default:
		return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
	}
}

// buildEmbeddings constructs the embeddings provider, or returns nil when none
// is configured; the summary index is then skipped.
func buildEmbeddings(entry config.ProviderEntry) (embeddings.Provider, error) {
	if entry.Name == "" {
		slog.Warn("no embeddings provider configured; session summary search is disabled")
		return nil, nil
	}
	if entry.Name != "openai" {
		return nil, fmt.Errorf("unknown embeddings provider %q", entry.Name)
	}
	var opts []oaembed.Option
	if entry.BaseURL != "" {
		opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
	}
	p, err := oaembed.New(entry.APIKey, entry.Model, opts...)
	if err != nil {
		return nil, fmt.Errorf("create embeddings provider %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "embeddings", "name", entry.Name)
	return p, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         gymtime — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	fmt.Printf("║  Auth tokens     : %-19d ║\n", len(cfg.Auth.Tokens))
	if cfg.Lexicon.Disabled {
		fmt.Printf("║  Lexicon         : %-19s ║\n", "(disabled)")
	} else {
		fmt.Printf("║  Lexicon extras  : %-19d ║\n", len(cfg.Lexicon.ExtraExercises))
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
