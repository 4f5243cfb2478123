package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/kokoro/pkg/cli/config"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
	"github.com/secmon-lab/kokoro/pkg/utils/logging"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600)).Required()
	return path
}

func TestPersona_Configure(t *testing.T) {
	t.Run("default persona when no path is given", func(t *testing.T) {
		p, err := config.NewPersonaForTest("").Configure(t.Context())
		gt.NoError(t, err).Required()
		gt.String(t, p.Name).Equal("Nyako")
		gt.Array(t, p.Directives).Length(1)
	})

	t.Run("load persona file", func(t *testing.T) {
		path := writeFile(t, "persona.toml", `
[persona]
name = "Tama"
description = "a lazy cat"
directives = [
  "You are Tama.",
  "Answer briefly.",
]
`)
		p, err := config.NewPersonaForTest(path).Configure(t.Context())
		gt.NoError(t, err).Required()
		gt.String(t, p.Name).Equal("Tama")
		gt.String(t, p.Description).Equal("a lazy cat")
		gt.Array(t, p.Directives).Equal([]string{"You are Tama.", "Answer briefly."})
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.NewPersonaForTest(filepath.Join(t.TempDir(), "none.toml")).Configure(t.Context())
		gt.Error(t, err).Is(config.ErrConfigNotFound)
	})

	t.Run("broken toml", func(t *testing.T) {
		path := writeFile(t, "persona.toml", "[persona\nname = ")
		_, err := config.NewPersonaForTest(path).Configure(t.Context())
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("unknown field", func(t *testing.T) {
		path := writeFile(t, "persona.toml", "[persona]\nname = \"Tama\"\ndirectives = [\"x\"]\nmood = \"sleepy\"\n")
		_, err := config.NewPersonaForTest(path).Configure(t.Context())
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("name is required", func(t *testing.T) {
		path := writeFile(t, "persona.toml", "[persona]\ndirectives = [\"x\"]\n")
		_, err := config.NewPersonaForTest(path).Configure(t.Context())
		gt.Error(t, err).Is(config.ErrMissingName)
	})

	t.Run("directives are required", func(t *testing.T) {
		path := writeFile(t, "persona.toml", "[persona]\nname = \"Tama\"\n")
		_, err := config.NewPersonaForTest(path).Configure(t.Context())
		gt.Error(t, err).Is(config.ErrMissingDirectives)
	})

	t.Run("empty directive", func(t *testing.T) {
		path := writeFile(t, "persona.toml", "[persona]\nname = \"Tama\"\ndirectives = [\"a\", \"\"]\n")
		_, err := config.NewPersonaForTest(path).Configure(t.Context())
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

func TestAgent_Configure(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := config.NewAgentForTest().Configure()
		gt.NoError(t, err).Required()
		gt.Number(t, cfg.RecentWindow).Equal(10)
		gt.Number(t, cfg.RetrieveLimit).Equal(10)
		gt.Value(t, cfg.GenerateTimeout).Equal(time.Minute)
		gt.Number(t, cfg.MaxGenerateRetries).Equal(0)
		gt.Number(t, cfg.AffectScale).Equal(0.1)
		gt.Number(t, cfg.AffinityScale).Equal(10.0)
	})

	t.Run("retry cap", func(t *testing.T) {
		a := config.NewAgentForTest()
		a.SetMaxGenerateRetries(3)
		cfg, err := a.Configure()
		gt.NoError(t, err).Required()
		gt.Number(t, cfg.MaxGenerateRetries).Equal(3)
	})

	t.Run("negative retry cap", func(t *testing.T) {
		a := config.NewAgentForTest()
		a.SetMaxGenerateRetries(-1)
		_, err := a.Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("zero recent window", func(t *testing.T) {
		a := config.NewAgentForTest()
		a.SetRecentWindow(0)
		_, err := a.Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("interval", func(t *testing.T) {
		gt.Value(t, config.NewAgentForTest().AggregationInterval()).Equal(15 * time.Minute)
	})
}

func TestLLM_Configure(t *testing.T) {
	t.Run("openai", func(t *testing.T) {
		cfg := config.NewLLMForTest(config.ProviderOpenAI, "sk-test")
		client, err := cfg.Configure(t.Context())
		gt.NoError(t, err).Required()
		gt.Value(t, client).NotNil()
		gt.String(t, cfg.APIKey()).Equal("sk-test")
	})

	t.Run("openai without key", func(t *testing.T) {
		_, err := config.NewLLMForTest(config.ProviderOpenAI, "").Configure(t.Context())
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("gemini without project", func(t *testing.T) {
		cfg := config.NewLLMForTest(config.ProviderGemini, "sk-test")
		_, err := cfg.Configure(t.Context())
		gt.Error(t, err).Is(config.ErrInvalidConfig)
		gt.String(t, cfg.APIKey()).Equal("")
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := config.NewLLMForTest("claude", "").Configure(t.Context())
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("flags", func(t *testing.T) {
		cfg := config.NewLLMForTest("", "")
		gt.Array(t, cfg.Flags()).Length(8)
		gt.Array(t, config.NewGeminiForTest("", "").Flags()).Length(2)
	})
}

func TestSlack_Configure(t *testing.T) {
	t.Run("disabled without token", func(t *testing.T) {
		cfg := config.NewSlackForTest("", "")
		svc, err := cfg.Configure()
		gt.NoError(t, err)
		gt.Value(t, svc).Nil()
		gt.Bool(t, cfg.IsConfigured()).False()
	})

	t.Run("signing secret without token", func(t *testing.T) {
		_, err := config.NewSlackForTest("", "secret").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("configured", func(t *testing.T) {
		cfg := config.NewSlackForTest("xoxb-test", "secret")
		svc, err := cfg.Configure()
		gt.NoError(t, err).Required()
		gt.Value(t, svc).NotNil()
		gt.Bool(t, cfg.IsWebhookConfigured()).True()
		gt.String(t, cfg.SigningSecret()).Equal("secret")
	})
}

func TestRepository_Configure(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		repo, err := config.NewRepositoryForTest("memory", "").Configure(t.Context())
		gt.NoError(t, err).Required()
		gt.NoError(t, repo.Close())
	})

	t.Run("firestore requires project", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("firestore", "").Configure(t.Context())
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("sqlite", "").Configure(t.Context())
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

func TestLogger_Configure(t *testing.T) {
	origLogging := logging.Default()
	origSlog := slog.Default()
	t.Cleanup(func() {
		logging.SetDefault(origLogging)
		slog.SetDefault(origSlog)
	})

	t.Run("json to file redacts secrets", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "kokoro.log")
		closer, err := config.NewLoggerForTest("debug", "json", path).Configure()
		gt.NoError(t, err).Required()

		logging.Default().Info("credential", "cred", &model.MasterCredential{
			Version: 1,
			APIKey:  "sk-very-secret",
		})
		closer()

		raw, err := os.ReadFile(path)
		gt.NoError(t, err).Required()
		gt.String(t, string(raw)).Contains("credential")
		gt.String(t, string(raw)).NotContains("sk-very-secret")
	})

	t.Run("console", func(t *testing.T) {
		closer, err := config.NewLoggerForTest("info", "console", "stderr").Configure()
		gt.NoError(t, err).Required()
		closer()
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := config.NewLoggerForTest("verbose", "json", "stdout").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := config.NewLoggerForTest("info", "xml", "stdout").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

func TestSentry_ConfigureWithoutDSN(t *testing.T) {
	var s config.Sentry
	flush, err := s.Configure()
	gt.NoError(t, err).Required()
	flush()
}
