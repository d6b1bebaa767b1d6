package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/analyzer"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/bot"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/collector"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/config"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/dedup"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/infrastructure/dingtalk"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/infrastructure/feishu"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/infrastructure/github"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/infrastructure/hackernews"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/infrastructure/llm"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/infrastructure/storage"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/logging"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/notify"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/ports"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/usecase"
)

// App owns the composed object graph and exposes the operations the CLI
// surfaces.
type App struct {
	cfg      config.Config
	registry *collector.Registry
	store    ports.SeenStore
	analyzer *analyzer.Analyzer
	logger   *slog.Logger
}

// New validates the configuration and wires every component.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	registry := collector.NewRegistry()
	if cfg.Collectors.GitHub.Enabled {
		registry.Register(github.NewCollector(httpClient, cfg.Collectors.GitHub.FetchReadme,
			logging.Component(logger, "github")))
	}
	if cfg.Collectors.HackerNews.Enabled {
		registry.Register(hackernews.NewCollector(httpClient, cfg.Collectors.HackerNews.StoryType,
			logging.Component(logger, "hackernews")))
	}

	store, err := openSeenStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	var completer ports.ChatCompleter
	if cfg.Analyzer.Enabled && cfg.Analyzer.APIKey != "" {
		completer = llm.New(cfg.Analyzer)
	} else if cfg.Analyzer.Enabled {
		logger.Warn("analyzer enabled without api key, falling back to basic analysis")
	}

	return &App{
		cfg:      cfg,
		registry: registry,
		store:    store,
		analyzer: analyzer.New(completer, cfg.Analyzer, logging.Component(logger, "analyzer")),
		logger:   logger,
	}, nil
}

// Close releases the seen store.
func (a *App) Close() error {
	return a.store.Close()
}

// RunOnce executes a single pipeline cycle. With dryRun set, rendered
// payloads are logged instead of delivered.
func (a *App) RunOnce(ctx context.Context, dryRun bool) (domain.RunSummary, error) {
	return a.pipeline(dryRun).Run(ctx)
}

// RunSchedule blocks, running the pipeline on the configured cron cadence.
func (a *App) RunSchedule(ctx context.Context) error {
	scheduler, err := usecase.NewScheduler(a.pipeline(false), a.cfg.Schedule,
		logging.Component(a.logger, "scheduler"))
	if err != nil {
		return err
	}
	return scheduler.Start(ctx)
}

// RunChat blocks, serving the interactive Feishu bot.
func (a *App) RunChat(ctx context.Context) error {
	feishuCfg := a.cfg.Notifiers.Feishu
	if feishuCfg.AppID == "" || feishuCfg.AppSecret == "" {
		return &domain.ConfigurationError{
			Field:  "notifiers.feishu",
			Reason: "appId and appSecret required for chat mode",
		}
	}
	session := bot.NewSession(feishuCfg.AppID, feishuCfg.AppSecret, a.analyzer,
		logging.Component(a.logger, "bot"))
	return session.Run(ctx)
}

// TestCollector fetches from one source and returns the raw items without
// touching the seen store or the notifiers.
func (a *App) TestCollector(ctx context.Context, name string) ([]domain.RawItem, error) {
	c, err := a.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	return c.Collect(ctx, a.cfg.FilterSpec())
}

// TestNotify pushes a test message through every enabled notifier.
func (a *App) TestNotify(ctx context.Context) error {
	return a.dispatcher(false).SendTest(ctx)
}

func (a *App) pipeline(dryRun bool) *usecase.Pipeline {
	return usecase.NewPipeline(
		a.registry,
		dedup.New(a.store),
		a.analyzer,
		a.dispatcher(dryRun),
		a.cfg.FilterSpec(),
		a.cfg.Analyzer.Workers,
		logging.Component(a.logger, "pipeline"),
	)
}

func (a *App) dispatcher(dryRun bool) *notify.Dispatcher {
	var senders []ports.Sender
	if cfg := a.cfg.Notifiers.Feishu; cfg.Enabled && cfg.WebhookURL != "" {
		senders = append(senders, feishu.New(cfg.WebhookURL))
	}
	if cfg := a.cfg.Notifiers.Dingtalk; cfg.Enabled {
		senders = append(senders, dingtalk.New(cfg.WebhookURL, cfg.Secret))
	}
	return notify.NewDispatcher(senders, dryRun, logging.Component(a.logger, "notify"))
}

func openSeenStore(cfg config.StorageConfig) (ports.SeenStore, error) {
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	if cfg.Path == "" {
		return dedup.NewMemoryStore(retention, cfg.Capacity), nil
	}
	store, err := storage.Open(cfg.Path, retention, cfg.Capacity)
	if err != nil {
		return nil, fmt.Errorf("open seen store: %w", err)
	}
	return store, nil
}
