package llm

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
)

// Gollem implements Client on top of any gollem.LLMClient, e.g. Gemini
type Gollem struct {
	llmClient gollem.LLMClient
	dimension int
}

var _ Client = &Gollem{}

type GollemOption func(*Gollem)

// WithGollemEmbeddingDimension overrides the requested embedding size
func WithGollemEmbeddingDimension(dim int) GollemOption {
	return func(g *Gollem) {
		g.dimension = dim
	}
}

// NewGollem wraps llmClient
func NewGollem(llmClient gollem.LLMClient, opts ...GollemOption) (*Gollem, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	g := &Gollem{
		llmClient: llmClient,
		dimension: model.EmbeddingDimension,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Gollem) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := g.llmClient.GenerateEmbedding(ctx, g.dimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, goerr.Wrap(ErrEmptyEmbedding, "no embedding returned")
	}
	return toFloat32(embeddings[0]), nil
}

func (g *Gollem) ScoreAffect(ctx context.Context, text string) (model.EmotionDelta, error) {
	session, err := g.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(affectSchema()),
		gollem.WithSessionSystemPrompt(affectSystemPrompt),
	)
	if err != nil {
		return model.EmotionDelta{}, goerr.Wrap(err, "failed to create affect session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(text))
	if err != nil {
		return model.EmotionDelta{}, goerr.Wrap(err, "failed to score affect")
	}
	if resp == nil || len(resp.Texts) == 0 {
		return model.EmotionDelta{}, goerr.Wrap(ErrEmptyResponse, "no affect score returned")
	}

	return parseAffect(resp.Texts[0])
}

// Generate installs the leading system entries as the session system prompt
// and passes every remaining entry, in order, as a role-labelled text input.
func (g *Gollem) Generate(ctx context.Context, entries []model.ContextEntry) (string, error) {
	systemPrompt, inputs := splitForGollem(entries)
	if len(inputs) == 0 {
		return "", goerr.New("no input entries for generation")
	}

	opts := []gollem.SessionOption{}
	if systemPrompt != "" {
		opts = append(opts, gollem.WithSessionSystemPrompt(systemPrompt))
	}

	session, err := g.llmClient.NewSession(ctx, opts...)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create generation session")
	}

	resp, err := session.GenerateContent(ctx, inputs...)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content")
	}
	if resp == nil || len(resp.Texts) == 0 {
		return "", goerr.Wrap(ErrEmptyResponse, "no text generated")
	}

	return strings.Join(resp.Texts, ""), nil
}

func splitForGollem(entries []model.ContextEntry) (string, []gollem.Input) {
	var system []string
	i := 0
	for ; i < len(entries) && entries[i].Role == model.RoleSystem; i++ {
		system = append(system, entries[i].Content)
	}

	inputs := make([]gollem.Input, 0, len(entries)-i)
	for _, e := range entries[i:] {
		inputs = append(inputs, gollem.Text("["+string(e.Role)+"] "+e.Content))
	}
	return strings.Join(system, "\n\n"), inputs
}

func affectSchema() *gollem.Parameter {
	axis := func(desc string) *gollem.Parameter {
		return &gollem.Parameter{Type: gollem.TypeNumber, Description: desc}
	}
	return &gollem.Parameter{
		Title:       "AffectScore",
		Description: "Emotional impact of a message on five axes, each from -10 to 10",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"anger":   axis("Impact on anger"),
			"disgust": axis("Impact on disgust"),
			"fear":    axis("Impact on fear"),
			"joy":     axis("Impact on joy"),
			"sadness": axis("Impact on sadness"),
		},
		Required: []string{"anger", "disgust", "fear", "joy", "sadness"},
	}
}
