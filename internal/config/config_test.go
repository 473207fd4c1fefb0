package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"pennystocks", "wallstreetbets", "smallstreetbets", "RobinHoodPennyStocks"}, cfg.Reddit.Subreddits)
	assert.Equal(t, 20, cfg.Reddit.LimitPerSub)
	assert.Equal(t, 10, cfg.Reddit.CommentLimit)
	assert.Equal(t, ProviderClaude, cfg.Summarizer.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Summarizer.Model)
	assert.Equal(t, 60*time.Second, cfg.Summarizer.Timeout)
	assert.Equal(t, "data/pennyai.db", cfg.Database.SQLitePath)
	assert.Equal(t, "pennyai.verdicts", cfg.Kafka.Topic)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.False(t, cfg.TelegramEnabled())
	assert.False(t, cfg.KafkaEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
reddit:
  client_id: yaml-id
  subreddits: [pennystocks]
  limit_per_sub: 5
data_source:
  suffixes: ["", ".TO"]
  min_interval: 250ms
summarizer:
  provider: Gemini
  temperature: 0.2
kafka:
  brokers: [localhost:9092]
`)
	t.Setenv("REDDIT_CLIENT_ID", "env-id")
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("ANTHROPIC_API_KEY", "claude-key")
	t.Setenv("SQLITE_PATH", "/tmp/p.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-id", cfg.Reddit.ClientID)
	assert.Equal(t, []string{"pennystocks"}, cfg.Reddit.Subreddits)
	assert.Equal(t, 5, cfg.Reddit.LimitPerSub)
	assert.Equal(t, []string{"", ".TO"}, cfg.DataSource.Suffixes)
	assert.Equal(t, 250*time.Millisecond, cfg.DataSource.MinInterval)
	assert.Equal(t, ProviderGemini, cfg.Summarizer.Provider)
	assert.Equal(t, "gem-key", cfg.Summarizer.APIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.Summarizer.Model)
	assert.InDelta(t, 0.2, cfg.Summarizer.Temperature, 1e-6)
	assert.Equal(t, "/tmp/p.db", cfg.Database.SQLitePath)
	assert.True(t, cfg.KafkaEnabled())
}

func TestLoad_KafkaBrokersFromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "reddit: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	cfg.Summarizer.Provider = "groq"
	assert.ErrorContains(t, cfg.Validate(), "not supported")
	cfg.Summarizer.Provider = ProviderClaude

	cfg.Telegram.BotToken = "token"
	assert.ErrorContains(t, cfg.Validate(), "set together")
	cfg.Telegram.ChatID = "42"
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.TelegramEnabled())

	assert.ErrorContains(t, cfg.ValidateFetch(), "client_id")
	cfg.Reddit.ClientID, cfg.Reddit.ClientSecret = "id", "secret"
	assert.NoError(t, cfg.ValidateFetch())

	cfg.Summarizer.APIKey = ""
	assert.ErrorContains(t, cfg.ValidateSummarizer(), "api_key")
}

func TestValidate_FieldConstraints(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	cfg.Summarizer.MaxTokens = -1
	assert.ErrorContains(t, cfg.Validate(), "MaxTokens")
	cfg.Summarizer.MaxTokens = 512

	cfg.Summarizer.Temperature = 3
	assert.ErrorContains(t, cfg.Validate(), "Temperature")
	cfg.Summarizer.Temperature = 0.5

	cfg.Reddit.Subreddits = []string{"pennystocks", ""}
	assert.ErrorContains(t, cfg.Validate(), "Subreddits")
	cfg.Reddit.Subreddits = []string{"pennystocks"}

	assert.NoError(t, cfg.Validate())
}

func TestValidate_Suffixes(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	cfg.DataSource.Suffixes = nil
	assert.NoError(t, cfg.Validate())

	cfg.DataSource.Suffixes = []string{".TO", ""}
	assert.ErrorContains(t, cfg.Validate(), "must start with the empty suffix")

	cfg.DataSource.Suffixes = []string{".TO"}
	assert.ErrorContains(t, cfg.Validate(), "must start with the empty suffix")

	cfg.DataSource.Suffixes = []string{"", ".TO", ".TO"}
	assert.ErrorContains(t, cfg.Validate(), "more than once")

	cfg.DataSource.Suffixes = []string{"", ".TO", ".V"}
	assert.NoError(t, cfg.Validate())
}
