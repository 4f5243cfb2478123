package usecase

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
)

//go:embed prompt/persona.md
var defaultPersonaPrompt string

//go:embed prompt/session.md
var sessionNoteTmpl string

var sessionNoteTemplate = template.Must(template.New("session").Parse(sessionNoteTmpl))

const noteTimeLayout = "2006-01-02 15:04:05"

// DefaultPersona is installed when no persona file is configured
func DefaultPersona() *model.Persona {
	return &model.Persona{
		Name:        "Nyako",
		Description: "cat-eared maid",
		Directives:  []string{strings.TrimSpace(defaultPersonaPrompt)},
	}
}

type sessionNoteData struct {
	Startup      string
	Previous     string
	FirstStartup bool
}

// buildSessionNote renders the startup note. A zero previous time means
// the conversation has never been interacted with.
func buildSessionNote(startup, previous time.Time) (string, error) {
	data := sessionNoteData{
		Startup:      startup.Format(noteTimeLayout),
		FirstStartup: previous.IsZero(),
	}
	if !previous.IsZero() {
		data.Previous = previous.Format(noteTimeLayout)
	}

	var sb strings.Builder
	if err := sessionNoteTemplate.Execute(&sb, data); err != nil {
		return "", goerr.Wrap(err, "failed to render session note")
	}
	return strings.TrimSpace(sb.String()), nil
}

func buildExcerptNote(m *model.Message) string {
	return fmt.Sprintf("A past conversation excerpt (%s): %s", m.Role, m.Text)
}

func buildEmotionNote(description string) string {
	return "Your simulated emotion right now:\n" + description + "\nContinue the conversation following this emotion."
}
