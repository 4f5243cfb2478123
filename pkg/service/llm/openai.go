package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/invopop/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
)

const (
	DefaultOpenAIChatModel      = openai.ChatModelGPT4oMini
	DefaultOpenAIEmbeddingModel = openai.EmbeddingModelTextEmbedding3Small
	DefaultOpenAITemperature    = 0.9
)

// OpenAI implements Client with the OpenAI chat completion and embedding APIs.
// Roles map one to one onto chat messages.
type OpenAI struct {
	client         openai.Client
	chatModel      string
	embeddingModel string
	temperature    float64
	dimension      int
	affectSchema   *jsonschema.Schema
}

var _ Client = &OpenAI{}

type OpenAIOption func(*OpenAI)

func WithOpenAIChatModel(name string) OpenAIOption {
	return func(o *OpenAI) {
		o.chatModel = name
	}
}

func WithOpenAIEmbeddingModel(name string) OpenAIOption {
	return func(o *OpenAI) {
		o.embeddingModel = name
	}
}

func WithOpenAITemperature(t float64) OpenAIOption {
	return func(o *OpenAI) {
		o.temperature = t
	}
}

func WithOpenAIEmbeddingDimension(dim int) OpenAIOption {
	return func(o *OpenAI) {
		o.dimension = dim
	}
}

// NewOpenAI creates a client authenticated with apiKey. Extra request
// options, e.g. a base URL for a compatible endpoint, are passed through.
func NewOpenAI(apiKey string, opts []OpenAIOption, reqOpts ...option.RequestOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, goerr.New("OpenAI API key is required")
	}

	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	o := &OpenAI{
		client:         openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, reqOpts...)...),
		chatModel:      DefaultOpenAIChatModel,
		embeddingModel: DefaultOpenAIEmbeddingModel,
		temperature:    DefaultOpenAITemperature,
		dimension:      model.EmbeddingDimension,
		affectSchema:   reflector.Reflect(&affectResponse{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:      o.embeddingModel,
		Dimensions: openai.Int(int64(o.dimension)),
	})
	if err != nil {
		return nil, classifyOpenAIError(err, "failed to create embedding")
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, goerr.Wrap(ErrEmptyEmbedding, "no embedding returned", goerr.V("model", o.embeddingModel))
	}
	return toFloat32(resp.Data[0].Embedding), nil
}

func (o *OpenAI) ScoreAffect(ctx context.Context, text string) (model.EmotionDelta, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.chatModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(affectSystemPrompt),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "affect_score",
					Schema: o.affectSchema,
					Strict: openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return model.EmotionDelta{}, classifyOpenAIError(err, "failed to score affect")
	}
	if len(resp.Choices) == 0 {
		return model.EmotionDelta{}, goerr.Wrap(ErrEmptyResponse, "no affect score returned")
	}
	return parseAffect(resp.Choices[0].Message.Content)
}

func (o *OpenAI) Generate(ctx context.Context, entries []model.ContextEntry) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(entries))
	for _, e := range entries {
		switch e.Role {
		case model.RoleSystem:
			messages = append(messages, openai.SystemMessage(e.Content))
		case model.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(e.Content))
		default:
			messages = append(messages, openai.UserMessage(e.Content))
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       o.chatModel,
		Messages:    messages,
		Temperature: openai.Float(o.temperature),
	})
	if err != nil {
		return "", classifyOpenAIError(err, "failed to create chat completion")
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", goerr.Wrap(ErrEmptyResponse, "no text generated", goerr.V("model", o.chatModel))
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyOpenAIError tags gateway and request timeouts with ErrTimeout so
// the turn pipeline can tell them apart from fatal API errors
func classifyOpenAIError(err error, msg string) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return goerr.Wrap(ErrTimeout, msg,
				goerr.V("status", apiErr.StatusCode),
				goerr.V("cause", err.Error()))
		}
		return goerr.Wrap(err, msg, goerr.V("status", apiErr.StatusCode))
	}
	return goerr.Wrap(err, msg)
}
