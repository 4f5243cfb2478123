package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/openai/openai-go/option"
	"github.com/secmon-lab/kokoro/pkg/service/llm"
	"github.com/urfave/cli/v3"
)

// OpenAI holds configuration for the OpenAI (or compatible) client
type OpenAI struct {
	apiKey         string
	baseURL        string
	chatModel      string
	embeddingModel string
	temperature    float64
}

func (x *OpenAI) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Category:    "LLM",
			Sources:     cli.EnvVars("KOKORO_OPENAI_API_KEY", "OPENAI_API_KEY"),
			Destination: &x.apiKey,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "Base URL of an OpenAI compatible endpoint",
			Category:    "LLM",
			Sources:     cli.EnvVars("KOKORO_OPENAI_BASE_URL"),
			Destination: &x.baseURL,
		},
		&cli.StringFlag{
			Name:        "openai-chat-model",
			Usage:       "Chat completion model",
			Category:    "LLM",
			Value:       llm.DefaultOpenAIChatModel,
			Sources:     cli.EnvVars("KOKORO_OPENAI_CHAT_MODEL"),
			Destination: &x.chatModel,
		},
		&cli.StringFlag{
			Name:        "openai-embedding-model",
			Usage:       "Embedding model",
			Category:    "LLM",
			Value:       llm.DefaultOpenAIEmbeddingModel,
			Sources:     cli.EnvVars("KOKORO_OPENAI_EMBEDDING_MODEL"),
			Destination: &x.embeddingModel,
		},
		&cli.FloatFlag{
			Name:        "openai-temperature",
			Usage:       "Sampling temperature of replies",
			Category:    "LLM",
			Value:       llm.DefaultOpenAITemperature,
			Sources:     cli.EnvVars("KOKORO_OPENAI_TEMPERATURE"),
			Destination: &x.temperature,
		},
	}
}

func (x *OpenAI) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("api_key.len", len(x.apiKey)),
		slog.String("base_url", x.baseURL),
		slog.String("chat_model", x.chatModel),
		slog.String("embedding_model", x.embeddingModel),
		slog.Float64("temperature", x.temperature),
	}
}

// APIKey returns the configured key, recorded as the master credential
func (x *OpenAI) APIKey() string {
	return x.apiKey
}

func (x *OpenAI) Configure() (llm.Client, error) {
	if x.apiKey == "" {
		return nil, goerr.Wrap(ErrInvalidConfig, "openai-api-key is required for the openai provider")
	}

	opts := []llm.OpenAIOption{
		llm.WithOpenAITemperature(x.temperature),
	}
	if x.chatModel != "" {
		opts = append(opts, llm.WithOpenAIChatModel(x.chatModel))
	}
	if x.embeddingModel != "" {
		opts = append(opts, llm.WithOpenAIEmbeddingModel(x.embeddingModel))
	}

	var reqOpts []option.RequestOption
	if x.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(x.baseURL))
	}

	client, err := llm.NewOpenAI(x.apiKey, opts, reqOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create OpenAI client")
	}
	return client, nil
}
