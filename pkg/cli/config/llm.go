package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/service/llm"
	"github.com/urfave/cli/v3"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// LLM selects the generation and embedding backend
type LLM struct {
	provider string
	Gemini   Gemini
	OpenAI   OpenAI
}

func (x *LLM) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-provider",
			Usage:       "LLM backend [openai|gemini]",
			Category:    "LLM",
			Value:       ProviderOpenAI,
			Sources:     cli.EnvVars("KOKORO_LLM_PROVIDER"),
			Destination: &x.provider,
		},
	}
	flags = append(flags, x.Gemini.Flags()...)
	flags = append(flags, x.OpenAI.Flags()...)
	return flags
}

func (x *LLM) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("provider", x.provider)}
	switch x.provider {
	case ProviderGemini:
		attrs = append(attrs, slog.Any("gemini", slog.GroupValue(x.Gemini.LogAttrs()...)))
	case ProviderOpenAI:
		attrs = append(attrs, slog.Any("openai", slog.GroupValue(x.OpenAI.LogAttrs()...)))
	}
	return attrs
}

// Provider returns the selected backend name
func (x *LLM) Provider() string {
	return x.provider
}

// APIKey returns the key that authenticates the generation backend, or an
// empty string when the backend uses ambient credentials
func (x *LLM) APIKey() string {
	if x.provider == ProviderOpenAI {
		return x.OpenAI.APIKey()
	}
	return ""
}

func (x *LLM) Configure(ctx context.Context) (llm.Client, error) {
	switch x.provider {
	case ProviderGemini:
		return x.Gemini.Configure(ctx)
	case ProviderOpenAI:
		return x.OpenAI.Configure()
	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "unknown llm provider", goerr.V("provider", x.provider))
	}
}
