package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/aqueduct"
	"github.com/aretw0/aqueduct/internal/config"
	"github.com/aretw0/aqueduct/internal/logging"
	"github.com/aretw0/aqueduct/internal/observability"
	"github.com/aretw0/aqueduct/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/aqueduct/pkg/adapters/redis"
	"github.com/aretw0/aqueduct/pkg/backend"
	"github.com/aretw0/aqueduct/pkg/constraints"
	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/aretw0/aqueduct/pkg/palette"
	"github.com/aretw0/aqueduct/pkg/persistence/middleware"
	"github.com/aretw0/aqueduct/pkg/ports"
	"github.com/aretw0/aqueduct/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// app holds the process-wide wiring shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	hooks    domain.LifecycleHooks

	store  ports.SnapshotStore
	locker ports.DistributedLocker
	cache  ports.ResponseCache
	close  []func() error
}

// newApp loads configuration and opens storage. Flags override the file.
func newApp(cmd *cobra.Command, withMetrics bool) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if ws, _ := cmd.Flags().GetString("workspace"); ws != "" {
		cfg.Workspace = ws
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	a := &app{
		cfg:    cfg,
		logger: logging.NewWithFormat(cfg.Log.Format, logging.ParseLevel(cfg.Log.Level)),
	}
	slog.SetDefault(a.logger)

	if withMetrics {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m, err := observability.NewMetrics(a.registry)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		a.hooks = m.Hooks(a.logger)
	}

	if err := a.openStorage(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStorage() error {
	st := a.cfg.Storage
	switch st.Driver {
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     st.RedisAddr,
			Password: st.RedisPassword,
			DB:       st.RedisDB,
		})
		a.store = redisAdapter.NewFromClient(client, redisAdapter.WithPrefix(st.Prefix), redisAdapter.WithTTL(st.TTL))
		a.locker = redisAdapter.NewLocker(client, st.Prefix)
		a.cache = redisAdapter.NewCache(client, st.Prefix)
		a.close = append(a.close, client.Close)
		a.logger.Debug("storage opened", "driver", "redis", "addr", st.RedisAddr)
	default:
		a.store = memory.NewStore()
		a.locker = memory.NewLocker()
		a.cache = memory.NewCache()
		a.logger.Debug("storage opened", "driver", "memory")
	}

	if st.EncryptionKey == "" {
		return nil
	}
	cfg := middleware.EncryptionConfig{}
	var err error
	if cfg.ActiveKey, err = middleware.ParseKey(st.EncryptionKey); err != nil {
		return fmt.Errorf("storage.encryption_key: %w", err)
	}
	for _, k := range st.EncryptionFallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return fmt.Errorf("storage.encryption_fallback_keys: %w", err)
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, key)
	}
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	if err != nil {
		return err
	}
	a.store = middleware.Chain(a.store, mw)
	return nil
}

// Close releases storage connections.
func (a *app) Close() error {
	var errs []error
	for _, fn := range a.close {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}

func (a *app) palette() (*palette.Palette, error) {
	if a.cfg.Palette == "" {
		return palette.Default(), nil
	}
	return palette.Load(a.cfg.Palette)
}

func (a *app) rules() (*constraints.RuleSet, error) {
	if a.cfg.Rules == "" {
		return constraints.Default(), nil
	}
	return constraints.Load(a.cfg.Rules)
}

// dispatcher routes gpt* models to OpenAI and gemini* models to Gemini, or
// every model to a scripted answer when static_response is set.
func (a *app) dispatcher() (*backend.Dispatcher, error) {
	bc := a.cfg.Backend
	opts := []backend.Option{
		backend.WithTimeout(bc.Timeout),
		backend.WithBreaker(bc.BreakerThreshold, bc.BreakerCooldown),
		backend.WithLogger(a.logger),
		backend.WithHooks(a.hooks),
	}
	if bc.CacheTTL > 0 {
		opts = append(opts, backend.WithCache(a.cache, bc.CacheTTL))
	}

	if bc.StaticResponse != "" {
		data, err := os.ReadFile(bc.StaticResponse)
		if err != nil {
			return nil, fmt.Errorf("static response: %w", err)
		}
		static := backend.NewStatic(string(data)).Factory()
		opts = append(opts,
			backend.WithNamedProvider("gpt", "static", static),
			backend.WithNamedProvider("gemini", "static", static),
		)
		return backend.NewDispatcher(opts...), nil
	}

	opts = append(opts,
		backend.WithNamedProvider("gpt", "openai", backend.OpenAI(bc.OpenAIAPIKey, bc.OpenAIBaseURL)),
		backend.WithNamedProvider("gemini", "gemini", backend.Gemini(bc.GeminiAPIKey)),
	)
	return backend.NewDispatcher(opts...), nil
}

// openWorkspace builds the workspace named by the config. With --graph the
// graph comes from a file and nothing is persisted.
func (a *app) openWorkspace(cmd *cobra.Command) (*aqueduct.Workspace, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pal, err := a.palette()
	if err != nil {
		return nil, err
	}
	rules, err := a.rules()
	if err != nil {
		return nil, err
	}
	gen, err := a.dispatcher()
	if err != nil {
		return nil, err
	}

	opts := []aqueduct.Option{
		aqueduct.WithLogger(a.logger),
		aqueduct.WithPalette(pal),
		aqueduct.WithRules(rules),
		aqueduct.WithGenerator(gen),
		aqueduct.WithLifecycleHooks(a.hooks),
	}

	if file, _ := cmd.Flags().GetString("graph"); file != "" {
		snap, err := readSnapshot(file)
		if err != nil {
			return nil, err
		}
		opts = append(opts, aqueduct.WithInitialGraph(snap))
	} else {
		opts = append(opts, aqueduct.WithSessions(a.sessions()))
	}

	return aqueduct.New(ctx, a.cfg.Workspace, opts...)
}

func (a *app) sessions() *session.Manager {
	return session.NewManager(a.store,
		session.WithLocker(a.locker),
		session.WithLogger(a.logger),
	)
}

func readSnapshot(path string) (domain.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Snapshot{}, err
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// withWorkspace opens the app and the workspace, runs fn and closes both.
func withWorkspace(cmd *cobra.Command, fn func(a *app, ws *aqueduct.Workspace) error) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ws, err := a.openWorkspace(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(a, ws)
}
