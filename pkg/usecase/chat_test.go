package usecase_test

import (
	"context"
	"math"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
	"github.com/secmon-lab/kokoro/pkg/usecase"
)

func chatMessage(text string) *usecase.ChatMessage {
	return &usecase.ChatMessage{
		ChannelID: string(convID),
		UserID:    "U1",
		UserName:  "alice",
		Text:      text,
	}
}

func runCommand(t *testing.T, env *testEnv, text string) string {
	t.Helper()
	resp, err := env.uc.Chat.HandleMessage(context.Background(), chatMessage(text))
	gt.NoError(t, err).Required()
	gt.Value(t, resp).NotNil().Required()
	return resp.Text
}

func TestChat_HandleMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("mention gets a threaded reply", func(t *testing.T) {
		env := newTestEnv()
		msg := chatMessage("hi")
		msg.MentionsBot = true

		resp, err := env.uc.Chat.HandleMessage(ctx, msg)
		gt.NoError(t, err).Required()
		gt.Value(t, resp).NotNil().Required()
		gt.Value(t, resp.Text).Equal("reply nya")
		gt.Bool(t, resp.InThread).True()

		recent, err := env.repo.Message().ListRecent(ctx, convID, 1)
		gt.NoError(t, err).Required()
		gt.Value(t, recent[0].Role).Equal(model.RoleAssistant)

		entries := env.llm.last()
		gt.Value(t, entries[len(entries)-1]).Equal(model.UserEntry(`alice: "hi"`))
	})

	t.Run("ratio 1 answers in the channel", func(t *testing.T) {
		env := newTestEnv()
		runCommand(t, env, "!response-ratio 1")

		resp, err := env.uc.Chat.HandleMessage(ctx, chatMessage("hello everyone"))
		gt.NoError(t, err).Required()
		gt.Value(t, resp).NotNil().Required()
		gt.Bool(t, resp.InThread).False()
	})

	t.Run("ratio 0 only listens", func(t *testing.T) {
		env := newTestEnv()
		runCommand(t, env, "!response-ratio 0")

		resp, err := env.uc.Chat.HandleMessage(ctx, chatMessage("hello everyone"))
		gt.NoError(t, err).Required()
		gt.Value(t, resp).Nil()
		gt.Value(t, env.uc.Stats().ListenOnlyTurns).Equal(int64(1))
		gt.Array(t, env.llm.calls()).Length(0)
	})

	t.Run("bot messages are ignored", func(t *testing.T) {
		env := newTestEnv()
		msg := chatMessage("beep")
		msg.FromBot = true

		resp, err := env.uc.Chat.HandleMessage(ctx, msg)
		gt.NoError(t, err).Required()
		gt.Value(t, resp).Nil()

		count, err := env.repo.Message().Count(ctx, convID)
		gt.NoError(t, err).Required()
		gt.Value(t, count).Equal(0)
	})

	t.Run("messages addressed to someone else are ignored", func(t *testing.T) {
		env := newTestEnv()
		msg := chatMessage("<@U2> can you check this?")
		msg.MentionsOthers = true

		resp, err := env.uc.Chat.HandleMessage(ctx, msg)
		gt.NoError(t, err).Required()
		gt.Value(t, resp).Nil()

		count, err := env.repo.Message().Count(ctx, convID)
		gt.NoError(t, err).Required()
		gt.Value(t, count).Equal(0)
	})
}

func TestChat_Commands(t *testing.T) {
	ctx := context.Background()

	t.Run("help lists commands", func(t *testing.T) {
		env := newTestEnv()
		out := runCommand(t, env, "!help")
		gt.String(t, out).Contains("!affinity [@user] [set v|add v]")
		gt.String(t, out).Contains("!response-ratio")
	})

	t.Run("unknown command", func(t *testing.T) {
		env := newTestEnv()
		out := runCommand(t, env, "!dance")
		gt.String(t, out).Contains("unknown command")
	})

	t.Run("response ratio validation", func(t *testing.T) {
		env := newTestEnv()
		out := runCommand(t, env, "!response-ratio 2")
		gt.String(t, out).Contains("usage: !response-ratio")

		out = runCommand(t, env, "!response-ratio")
		gt.Value(t, out).Equal("response-ratio: 0.2")
	})

	t.Run("prefix is persisted", func(t *testing.T) {
		env := newTestEnv()
		gt.Value(t, runCommand(t, env, "!prefix ?")).Equal("prefix set to ?")
		gt.String(t, runCommand(t, env, "?help")).Contains("?prefix")

		stored, err := env.repo.ChannelSettings().Get(ctx, string(convID))
		gt.NoError(t, err).Required()
		gt.Value(t, stored.Prefix).Equal("?")

		// a restarted process reads the stored prefix
		restarted := env.build()
		resp, err := restarted.Chat.HandleMessage(ctx, chatMessage("?prefix"))
		gt.NoError(t, err).Required()
		gt.Value(t, resp.Text).Equal("prefix: ?")
	})

	t.Run("affinity get set add", func(t *testing.T) {
		env := newTestEnv()
		gt.String(t, runCommand(t, env, "!affinity set 0.5")).Contains("0.500")
		gt.String(t, runCommand(t, env, "!affinity <@U2> add 0.25")).Contains("0.250")
		gt.String(t, runCommand(t, env, "!affinity")).Contains("affinity of U1: 0.500 (friend)")

		v, err := env.uc.Affinity(ctx, convID, "U2")
		gt.NoError(t, err).Required()
		gt.Number(t, math.Abs(v-0.25)).Less(1e-9)

		gt.String(t, runCommand(t, env, "!affinity set much")).Contains("usage")
	})

	t.Run("non finite numbers are rejected", func(t *testing.T) {
		env := newTestEnv()
		gt.NoError(t, env.uc.SetAffinity(ctx, convID, "U1", 0.5)).Required()

		for _, arg := range []string{"NaN", "nan", "Inf", "-Inf", "+Inf"} {
			gt.String(t, runCommand(t, env, "!response-ratio "+arg)).Contains("usage")
			gt.String(t, runCommand(t, env, "!affinity set "+arg)).Contains("usage")
			gt.String(t, runCommand(t, env, "!affinity add "+arg)).Contains("usage")
		}

		settings, err := env.uc.Chat.Settings(ctx, string(convID))
		gt.NoError(t, err).Required()
		gt.Value(t, settings.ResponseRatio).Equal(0.2)

		v, err := env.uc.Affinity(ctx, convID, "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, v).Equal(0.5)
	})

	t.Run("debug", func(t *testing.T) {
		env := newTestEnv()
		gt.Value(t, runCommand(t, env, "!debug console on")).Equal("debug console: on")

		settings, err := env.uc.Chat.Settings(ctx, string(convID))
		gt.NoError(t, err).Required()
		gt.Bool(t, settings.DebugConsole).True()

		desc, err := env.uc.EmotionDescription(ctx, convID)
		gt.NoError(t, err).Required()
		gt.Value(t, runCommand(t, env, "!debug emotion")).Equal(desc)

		gt.String(t, runCommand(t, env, "!debug console maybe")).Contains("usage")
	})

	t.Run("initial prompt", func(t *testing.T) {
		env := newTestEnv()
		gt.Value(t, runCommand(t, env, "!initial-prompt")).Equal(testPersona.Directives[0])
		gt.Value(t, runCommand(t, env, "!initial-prompt You are a pirate.")).Equal("initial prompt updated")

		prompt, err := env.uc.InitialPrompt(ctx, convID)
		gt.NoError(t, err).Required()
		gt.Value(t, prompt).Equal("You are a pirate.")
	})
}

func TestParseMention(t *testing.T) {
	id, ok := usecase.ParseMention("<@U123>")
	gt.Bool(t, ok).True()
	gt.Value(t, id).Equal("U123")

	id, ok = usecase.ParseMention("<@U123|alice>")
	gt.Bool(t, ok).True()
	gt.Value(t, id).Equal("U123")

	id, ok = usecase.ParseMention("@bob")
	gt.Bool(t, ok).True()
	gt.Value(t, id).Equal("bob")

	_, ok = usecase.ParseMention("set")
	gt.Bool(t, ok).False()
}

func TestFormatSpeech(t *testing.T) {
	gt.Value(t, usecase.FormatSpeech("alice", "hi")).Equal(`alice: "hi"`)
	gt.Value(t, usecase.FormatSpeech("", "hi")).Equal("hi")
}
