package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Reddit     RedditConfig     `yaml:"reddit"`
	DataSource DataSourceConfig `yaml:"data_source"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Database   struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Pipeline struct {
		DataDir string `yaml:"data_dir" validate:"required"`
	} `yaml:"pipeline"`
	Schedule struct {
		PipelineCron string `yaml:"pipeline_cron" validate:"required"`
	} `yaml:"schedule"`
	Telegram TelegramConfig `yaml:"telegram"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Server   struct {
		Addr string `yaml:"addr" validate:"required"`
	} `yaml:"server"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Proxy string `yaml:"proxy"`
}

// RedditConfig configures the social fetch client.
type RedditConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	UserAgent    string   `yaml:"user_agent" validate:"required"`
	Subreddits   []string `yaml:"subreddits" validate:"min=1,dive,required"`
	LimitPerSub  int      `yaml:"limit_per_sub"`
	CommentLimit int      `yaml:"comment_limit" validate:"gte=0,lte=100"`
}

// DataSourceConfig selects and tunes the market-data source. An empty BaseURL
// selects Yahoo Finance.
type DataSourceConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Suffixes    []string      `yaml:"suffixes"`
	MinInterval time.Duration `yaml:"min_interval" validate:"gte=0"`
}

// SummarizerConfig configures the LLM provider used by the backfill.
type SummarizerConfig struct {
	Provider    string        `yaml:"provider"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature" validate:"lte=2"`
	MaxTokens   int           `yaml:"max_tokens" validate:"gt=0"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic" validate:"required"`
	ClientID string   `yaml:"client_id"`
}

const (
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

var defaultModels = map[string]string{
	ProviderClaude: "claude-sonnet-4-20250514",
	ProviderGemini: "gemini-2.5-flash",
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("REDDIT_CLIENT_ID"); v != "" {
		c.Reddit.ClientID = v
	}
	if v := os.Getenv("REDDIT_CLIENT_SECRET"); v != "" {
		c.Reddit.ClientSecret = v
	}
	if v := os.Getenv("DATA_SOURCE_BASE_URL"); v != "" {
		c.DataSource.BaseURL = v
	}
	if v := os.Getenv("DATA_SOURCE_API_KEY"); v != "" {
		c.DataSource.APIKey = v
	}
	if v := os.Getenv("SUMMARIZER_PROVIDER"); v != "" {
		c.Summarizer.Provider = v
	}
	// Provider keys only apply to their own provider.
	switch strings.ToLower(c.Summarizer.Provider) {
	case ProviderGemini:
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			c.Summarizer.APIKey = v
		}
	case ProviderClaude, "":
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			c.Summarizer.APIKey = v
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Pipeline.DataDir = v
	}
	if v := os.Getenv("CRON_PIPELINE"); v != "" {
		c.Schedule.PipelineCron = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("REDDIT_LIMIT_PER_SUB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Reddit.LimitPerSub = n
		}
	}
}

func (c *Config) applyDefaults() {
	if len(c.Reddit.Subreddits) == 0 {
		c.Reddit.Subreddits = []string{"pennystocks", "wallstreetbets", "smallstreetbets", "RobinHoodPennyStocks"}
	}
	if c.Reddit.LimitPerSub == 0 {
		c.Reddit.LimitPerSub = 20
	}
	if c.Reddit.CommentLimit == 0 {
		c.Reddit.CommentLimit = 10
	}
	if c.Reddit.UserAgent == "" {
		c.Reddit.UserAgent = "pennyai:v0.1"
	}
	if c.DataSource.MinInterval == 0 {
		c.DataSource.MinInterval = 500 * time.Millisecond
	}
	c.Summarizer.Provider = strings.ToLower(c.Summarizer.Provider)
	if c.Summarizer.Provider == "" {
		c.Summarizer.Provider = ProviderClaude
	}
	if c.Summarizer.Model == "" {
		c.Summarizer.Model = defaultModels[c.Summarizer.Provider]
	}
	if c.Summarizer.MaxTokens == 0 {
		c.Summarizer.MaxTokens = 1024
	}
	if c.Summarizer.Timeout == 0 {
		c.Summarizer.Timeout = 60 * time.Second
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/pennyai.db"
	}
	if c.Pipeline.DataDir == "" {
		c.Pipeline.DataDir = "data"
	}
	if c.Schedule.PipelineCron == "" {
		c.Schedule.PipelineCron = "0 0 */6 * * *"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "pennyai.verdicts"
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "pennyai"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks settings every command relies on.
func (c *Config) Validate() error {
	if c.Reddit.LimitPerSub <= 0 {
		return fmt.Errorf("reddit.limit_per_sub must be positive")
	}
	if _, ok := defaultModels[c.Summarizer.Provider]; !ok {
		return fmt.Errorf("summarizer.provider %q is not supported", c.Summarizer.Provider)
	}
	if c.Summarizer.Temperature < 0 {
		return fmt.Errorf("summarizer.temperature must not be negative")
	}
	if c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required")
	}
	if err := validateSuffixes(c.DataSource.Suffixes); err != nil {
		return err
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// validateSuffixes requires a configured list to try the bare ticker first
// and to name each suffix once. An empty list selects the defaults.
func validateSuffixes(suffixes []string) error {
	if len(suffixes) == 0 {
		return nil
	}
	if suffixes[0] != "" {
		return fmt.Errorf("data_source.suffixes must start with the empty suffix, got %q", suffixes[0])
	}
	seen := make(map[string]bool, len(suffixes))
	for _, sfx := range suffixes {
		if seen[sfx] {
			return fmt.Errorf("data_source.suffixes lists %q more than once", sfx)
		}
		seen[sfx] = true
	}
	return nil
}

// ValidateFetch checks the settings needed to call the Reddit API.
func (c *Config) ValidateFetch() error {
	if c.Reddit.ClientID == "" {
		return fmt.Errorf("reddit.client_id is required")
	}
	if c.Reddit.ClientSecret == "" {
		return fmt.Errorf("reddit.client_secret is required")
	}
	return nil
}

// ValidateSummarizer checks the settings needed to run the backfill.
func (c *Config) ValidateSummarizer() error {
	if c.Summarizer.APIKey == "" {
		return fmt.Errorf("summarizer.api_key is required for provider %s", c.Summarizer.Provider)
	}
	return nil
}

// TelegramEnabled reports whether run notifications should be sent.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// KafkaEnabled reports whether verdict events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
