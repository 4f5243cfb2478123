package llm

import (
	_ "embed"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
)

//go:embed prompt/affect.md
var affectSystemPrompt string

const affectScoreLimit = 10.0

// affectResponse is the JSON shape requested from affect scoring backends
type affectResponse struct {
	Anger   float64 `json:"anger" jsonschema:"required,minimum=-10,maximum=10"`
	Disgust float64 `json:"disgust" jsonschema:"required,minimum=-10,maximum=10"`
	Fear    float64 `json:"fear" jsonschema:"required,minimum=-10,maximum=10"`
	Joy     float64 `json:"joy" jsonschema:"required,minimum=-10,maximum=10"`
	Sadness float64 `json:"sadness" jsonschema:"required,minimum=-10,maximum=10"`
}

// parseAffect decodes a scoring response and clamps each axis to [-10, 10].
// Models sometimes wrap JSON in a markdown fence, which is stripped first.
func parseAffect(raw string) (model.EmotionDelta, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var resp affectResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return model.EmotionDelta{}, goerr.Wrap(err, "failed to parse affect response", goerr.V("response", raw))
	}

	delta := model.EmotionDelta{
		Anger:   resp.Anger,
		Disgust: resp.Disgust,
		Fear:    resp.Fear,
		Joy:     resp.Joy,
		Sadness: resp.Sadness,
	}
	return delta.Clamp(-affectScoreLimit, affectScoreLimit), nil
}
