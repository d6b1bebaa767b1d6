package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
)

var envExpr = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Config holds all settings consumed across the application.
type Config struct {
	Collectors CollectorsConfig `yaml:"collectors"`
	Analyzer   AnalyzerConfig   `yaml:"analyzer"`
	Notifiers  NotifiersConfig  `yaml:"notifiers"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CollectorsConfig groups per-source collector settings.
type CollectorsConfig struct {
	GitHub     GitHubConfig     `yaml:"github"`
	HackerNews HackerNewsConfig `yaml:"hackernews"`
}

// GitHubConfig drives the trending collector and the run filter spec.
type GitHubConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Languages        []string `yaml:"languages"`
	Since            string   `yaml:"since"`
	Limit            int      `yaml:"limit"`
	Keywords         []string `yaml:"keywords"`
	ExcludedKeywords []string `yaml:"excludedKeywords"`
	FetchReadme      bool     `yaml:"fetchReadme"`
}

// HackerNewsConfig selects the story listing to collect.
type HackerNewsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	StoryType string `yaml:"storyType"`
}

// AnalyzerConfig defines how to contact the chat-completion backend.
type AnalyzerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	APIKey           string `yaml:"apiKey"`
	APIBase          string `yaml:"apiBase"`
	Model            string `yaml:"model"`
	Workers          int    `yaml:"workers"`
	MaxAttempts      int    `yaml:"maxAttempts"`
	BreakerThreshold int    `yaml:"breakerThreshold"`
	TimeoutSeconds   int    `yaml:"timeoutSeconds"`
}

// NotifiersConfig groups outbound platform settings.
type NotifiersConfig struct {
	Feishu   FeishuConfig   `yaml:"feishu"`
	Dingtalk DingtalkConfig `yaml:"dingtalk"`
}

// FeishuConfig wires the webhook and the WebSocket bot credentials.
type FeishuConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhookUrl"`
	AppID      string `yaml:"appId"`
	AppSecret  string `yaml:"appSecret"`
}

// DingtalkConfig wires the webhook; Secret enables signed requests.
type DingtalkConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhookUrl"`
	Secret     string `yaml:"secret"`
}

// ScheduleConfig defines the recurring pipeline cadence.
type ScheduleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone"`
}

// StorageConfig describes the durable seen-item store. An empty path keeps
// the seen set in memory only.
type StorageConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retentionDays"`
	Capacity      int    `yaml:"capacity"`
}

// LoggingConfig sets the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML config from path, falling back to the default search
// locations when path is empty. A .env file next to the process is applied
// first so ${VAR} references in the YAML resolve.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path == "" {
		path = findDefaultPath()
	}
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	raw = substituteEnv(raw)
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate reports fatal misconfiguration as a ConfigurationError.
func (c Config) Validate() error {
	if c.Collectors.GitHub.Limit <= 0 {
		return &domain.ConfigurationError{Field: "collectors.github.limit", Reason: "must be positive"}
	}
	switch domain.Window(c.Collectors.GitHub.Since) {
	case domain.WindowDaily, domain.WindowWeekly, domain.WindowMonthly:
	default:
		return &domain.ConfigurationError{Field: "collectors.github.since", Reason: "must be daily, weekly or monthly"}
	}
	if c.Notifiers.Feishu.Enabled && c.Notifiers.Feishu.WebhookURL == "" && c.Notifiers.Feishu.AppID == "" {
		return &domain.ConfigurationError{Field: "notifiers.feishu", Reason: "webhookUrl or appId required when enabled"}
	}
	if c.Notifiers.Dingtalk.Enabled && c.Notifiers.Dingtalk.WebhookURL == "" {
		return &domain.ConfigurationError{Field: "notifiers.dingtalk.webhookUrl", Reason: "required when enabled"}
	}
	if c.Schedule.Enabled && c.Schedule.Cron == "" {
		return &domain.ConfigurationError{Field: "schedule.cron", Reason: "required when schedule is enabled"}
	}
	return nil
}

// FilterSpec assembles the per-run selection parameters.
func (c Config) FilterSpec() domain.FilterSpec {
	return domain.FilterSpec{
		Languages:        c.Collectors.GitHub.Languages,
		Keywords:         c.Collectors.GitHub.Keywords,
		ExcludedKeywords: c.Collectors.GitHub.ExcludedKeywords,
		Since:            domain.Window(c.Collectors.GitHub.Since),
		Limit:            c.Collectors.GitHub.Limit,
	}
}

func substituteEnv(raw []byte) []byte {
	return envExpr.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := envExpr.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

func findDefaultPath() string {
	candidates := []string{"config.yaml", "config.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".intelligence-agent", "config.yaml"))
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func defaultConfig() Config {
	return Config{
		Collectors: CollectorsConfig{
			GitHub: GitHubConfig{
				Enabled:   true,
				Languages: []string{"python", "typescript", "go", "rust"},
				Since:     "daily",
				Limit:     10,
			},
			HackerNews: HackerNewsConfig{
				Enabled:   true,
				StoryType: "top",
			},
		},
		Analyzer: AnalyzerConfig{
			Enabled:          true,
			Model:            "gpt-4o-mini",
			Workers:          4,
			MaxAttempts:      3,
			BreakerThreshold: 3,
			TimeoutSeconds:   30,
		},
		Schedule: ScheduleConfig{
			Cron:     "0 9 * * *",
			Timezone: "UTC",
		},
		Storage: StorageConfig{
			Path:          "seen.db",
			RetentionDays: 30,
			Capacity:      5000,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
