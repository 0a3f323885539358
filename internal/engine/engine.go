package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"watchtower/internal/engine/api"
	"watchtower/internal/engine/check"
	"watchtower/internal/engine/dispatch"
	"watchtower/internal/engine/policy"
	"watchtower/internal/engine/runner"
	"watchtower/internal/engine/state"
	"watchtower/pkg/infra"
	"watchtower/pkg/mail"
)

// ErrStateInit marks an unrecoverable state-store initialization failure,
// reported to the operator with a distinct exit code.
var ErrStateInit = errors.New("state store initialization failed")

// Engine holds the full wiring for one monitoring process: the check
// registry, state store, suppression policy, dispatcher with its channels,
// the runner, and the status API. No process-wide singletons.
type Engine struct {
	cfg      AppConfig
	specs    []check.Spec
	store    state.Store
	runner   *runner.Runner
	channels []dispatch.Channel
	server   *http.Server
	logger   *zap.Logger
}

// New builds an engine from config. Configuration problems (bad specs,
// unregistered kinds, no channels) come back as plain errors; state-store
// failures are wrapped in ErrStateInit so main can exit with the right code.
func New(cfg AppConfig, logger *zap.Logger) (*Engine, error) {
	specs, err := LoadSpecs(cfg.Server.ChecksFile)
	if err != nil {
		return nil, fmt.Errorf("engine.New: %w", err)
	}

	registry := check.NewRegistry()
	registry.Register(check.KindHTTP, check.NewHTTPCheck())
	registry.Register(check.KindTCP, check.NewTCPCheck())

	store, err := newStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("engine.New: %w: %w", ErrStateInit, err)
	}
	active := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		active[spec.Key] = struct{}{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err = store.Prune(ctx, active); err != nil {
		logger.Warn("failed to prune stale state records", zap.Error(err))
	}
	cancel()

	channels, err := newChannels(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("engine.New: %w", err)
	}

	pol := policy.NewPolicy(store, policy.Config{
		Cooldown:       cfg.Policy.Cooldown,
		TwoStrike:      cfg.Policy.TwoStrike,
		NotifyRecovery: cfg.Policy.NotifyRecovery,
		CriticalAfter:  cfg.Policy.CriticalAfter,
	}, logger)
	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		BaseDelay:   cfg.Dispatch.BaseDelay,
		MaxDelay:    cfg.Dispatch.MaxDelay,
	}, logger)

	run, err := runner.NewRunner(registry, specs, pol, dispatcher, channels, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("engine.New: %w", err)
	}

	router := api.NewRouter(api.NewHandler(specs, store), logger)
	return &Engine{
		cfg:      cfg,
		specs:    specs,
		store:    store,
		runner:   run,
		channels: channels,
		server: &http.Server{
			Addr:    cfg.Server.ListenAddr,
			Handler: router,
		},
		logger: logger,
	}, nil
}

func newStore(cfg AppConfig, logger *zap.Logger) (state.Store, error) {
	switch cfg.State.Backend {
	case "file":
		return state.NewFileStore(cfg.State.FilePath, logger)
	case "redis":
		client, err := infra.NewRedisConnection(infra.RedisConfig{
			Host: cfg.Redis.Host,
			Port: cfg.Redis.Port,
		})
		if err != nil {
			return nil, err
		}
		return state.NewRedisStore(client, cfg.State.Prefix, logger), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}

func newChannels(cfg AppConfig) ([]dispatch.Channel, error) {
	var channels []dispatch.Channel
	if cfg.Webhook.URL != "" {
		channels = append(channels,
			dispatch.NewWebhookChannel("webhook", cfg.Webhook.URL, cfg.Dispatch.RequestTimeout))
	}
	if len(cfg.Mail.To) > 0 {
		sender := mail.NewMailSender(cfg.Mail.From, cfg.Mail.Password, cfg.Mail.Host, cfg.Mail.Port)
		channels = append(channels, dispatch.NewMailChannel("mail", sender, cfg.Mail.To))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		writer := infra.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		channels = append(channels, dispatch.NewKafkaChannel("kafka", writer))
	}
	if len(channels) == 0 {
		return nil, errors.New("no alert channels configured")
	}
	return channels, nil
}

// Run starts the status API and the check loops, then blocks until ctx is
// cancelled. Shutdown is cooperative and bounded by the configured grace
// period.
func (e *Engine) Run(ctx context.Context) {
	go func() {
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("status api stopped", zap.Error(err))
		}
	}()
	e.logger.Info("engine started",
		zap.Int("checks", len(e.specs)),
		zap.Int("channels", len(e.channels)),
		zap.String("listen_addr", e.cfg.Server.ListenAddr))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.runner.Start(runCtx)

	<-ctx.Done()
	e.logger.Info("shutting down engine")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), e.cfg.Server.ShutdownGrace)
	defer shutdownCancel()
	if err := e.server.Shutdown(shutdownCtx); err != nil {
		e.logger.Warn("status api shutdown failed", zap.Error(err))
	}
	e.runner.Wait(e.cfg.Server.ShutdownGrace)
	if err := e.store.Close(); err != nil {
		e.logger.Warn("failed to close state store", zap.Error(err))
	}
	e.logger.Info("engine exiting")
}
