package cli_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/kokoro/pkg/cli"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
	"github.com/secmon-lab/kokoro/pkg/repository/memory"
	"github.com/secmon-lab/kokoro/pkg/usecase"
)

type echoLLM struct{}

func (echoLLM) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 4)
	for i, r := range text {
		v[i%4] += float32(r)
	}
	v[0]++
	return v, nil
}

func (echoLLM) ScoreAffect(_ context.Context, _ string) (model.EmotionDelta, error) {
	return model.EmotionDelta{}, nil
}

func (echoLLM) Generate(_ context.Context, entries []model.ContextEntry) (string, error) {
	return "meow: " + entries[len(entries)-1].Content, nil
}

func disableColor(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = orig })
}

func TestRunChat(t *testing.T) {
	disableColor(t)
	repo := memory.New()
	uc := usecase.New(repo, echoLLM{})

	in := strings.NewReader("hello\n\n!prefix\nexit\nnot read\n")
	var out bytes.Buffer

	gt.NoError(t, cli.RunChat(t.Context(), uc.Chat, in, &out, "alice")).Required()

	text := out.String()
	gt.String(t, text).Contains("alice> ")
	gt.String(t, text).Contains(`meow: alice: "hello"`)
	gt.String(t, text).Contains("prefix: !")
	gt.String(t, text).NotContains("not read")

	n, err := repo.Message().Count(t.Context(), "console")
	gt.NoError(t, err).Required()
	// persona directive + user + assistant
	gt.Number(t, n).Equal(3)
}

func TestRunChat_EOF(t *testing.T) {
	disableColor(t)
	uc := usecase.New(memory.New(), echoLLM{})
	var out bytes.Buffer

	gt.NoError(t, cli.RunChat(t.Context(), uc.Chat, strings.NewReader(""), &out, "bob"))
	gt.String(t, out.String()).Equal("bob> ")
}
