package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
	"github.com/secmon-lab/kokoro/pkg/utils/logging"
)

// ChatMessage is a message observed on a chat surface. The channel is the
// conversation and the sender is the participant.
type ChatMessage struct {
	ChannelID string
	UserID    string
	UserName  string
	Text      string
	// ThreadTS is set when the message was posted in a thread
	ThreadTS       string
	MentionsBot    bool
	MentionsOthers bool
	FromBot        bool
}

// ChatResponse is what the adapter should post back
type ChatResponse struct {
	Text string
	// InThread asks the adapter to reply to the original message
	InThread bool
}

type commandFunc func(ctx context.Context, msg *ChatMessage, settings *model.ChannelSettings, args string) (string, error)

type command struct {
	usage string
	run   commandFunc
}

// ChatUseCase turns chat surface messages into turns or commands
type ChatUseCase struct {
	uc       *UseCases
	commands map[string]command

	settingsMu sync.Mutex
	settings   map[string]*model.ChannelSettings

	latestMu sync.Mutex
	latest   map[string]uint64
}

func NewChatUseCase(uc *UseCases) *ChatUseCase {
	c := &ChatUseCase{
		uc:       uc,
		settings: make(map[string]*model.ChannelSettings),
		latest:   make(map[string]uint64),
	}
	c.commands = map[string]command{
		"response-ratio": {usage: "response-ratio [0.0-1.0]", run: c.cmdResponseRatio},
		"initial-prompt": {usage: "initial-prompt [text]", run: c.cmdInitialPrompt},
		"prefix":         {usage: "prefix [prefix]", run: c.cmdPrefix},
		"debug":          {usage: "debug [console on|off|emotion]", run: c.cmdDebug},
		"affinity":       {usage: "affinity [@user] [set v|add v]", run: c.cmdAffinity},
		"help":           {usage: "help", run: c.cmdHelp},
	}
	return c
}

// HandleMessage processes one chat message and returns the reply to post,
// or nil when nothing should be posted
func (c *ChatUseCase) HandleMessage(ctx context.Context, msg *ChatMessage) (*ChatResponse, error) {
	if msg == nil || msg.FromBot || strings.TrimSpace(msg.Text) == "" {
		return nil, nil
	}
	if msg.MentionsOthers && !msg.MentionsBot {
		return nil, nil
	}

	settings, err := c.Settings(ctx, msg.ChannelID)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(msg.Text)
	if settings.Prefix != "" && strings.HasPrefix(text, settings.Prefix) {
		reply, err := c.runCommand(ctx, msg, settings, strings.TrimPrefix(text, settings.Prefix))
		if err != nil {
			return nil, err
		}
		return &ChatResponse{Text: reply, InThread: msg.ThreadTS != ""}, nil
	}

	seq := c.markLatest(msg.ChannelID)
	respond := msg.MentionsBot || c.sample() < settings.ResponseRatio

	reply, err := c.uc.StartTurn(ctx, model.ConversationID(msg.ChannelID), TurnInput{
		SpeakerID:     model.ParticipantID(msg.UserID),
		SpeakerName:   msg.UserName,
		Text:          FormatSpeech(msg.UserName, text),
		NeedsResponse: respond,
		Debug:         settings.DebugConsole,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run turn", goerr.V(ChannelIDKey, msg.ChannelID))
	}
	if reply == "" {
		return nil, nil
	}

	inThread := msg.MentionsBot || msg.ThreadTS != ""
	if !inThread && !c.isLatest(msg.ChannelID, seq) {
		logging.From(ctx).Info("reply dropped, newer message arrived", "channel_id", msg.ChannelID)
		return nil, nil
	}
	return &ChatResponse{Text: reply, InThread: inThread}, nil
}

// FormatSpeech renders a participant's utterance as turn text
func FormatSpeech(name, text string) string {
	if name == "" {
		return text
	}
	return fmt.Sprintf("%s: %q", name, text)
}

// Settings returns the settings of the channel, loading defaults for a
// channel seen for the first time
func (c *ChatUseCase) Settings(ctx context.Context, channelID string) (*model.ChannelSettings, error) {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()

	if s, ok := c.settings[channelID]; ok {
		copied := *s
		return &copied, nil
	}

	s, err := c.uc.repo.ChannelSettings().Get(ctx, channelID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get channel settings", goerr.V(ChannelIDKey, channelID))
	}
	if s == nil {
		s = model.NewChannelSettings(channelID)
	}
	c.settings[channelID] = s

	copied := *s
	return &copied, nil
}

func (c *ChatUseCase) saveSettings(ctx context.Context, s *model.ChannelSettings) error {
	if err := c.uc.repo.ChannelSettings().Put(ctx, s); err != nil {
		return goerr.Wrap(err, "failed to save channel settings", goerr.V(ChannelIDKey, s.ChannelID))
	}

	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()
	copied := *s
	c.settings[s.ChannelID] = &copied
	return nil
}

func (c *ChatUseCase) markLatest(channelID string) uint64 {
	c.latestMu.Lock()
	defer c.latestMu.Unlock()
	c.latest[channelID]++
	return c.latest[channelID]
}

func (c *ChatUseCase) isLatest(channelID string, seq uint64) bool {
	c.latestMu.Lock()
	defer c.latestMu.Unlock()
	return c.latest[channelID] == seq
}

func (c *ChatUseCase) sample() float64 {
	if c.uc.rnd != nil {
		return c.uc.rnd.Float64()
	}
	return rand.Float64()
}

func (c *ChatUseCase) runCommand(ctx context.Context, msg *ChatMessage, settings *model.ChannelSettings, line string) (string, error) {
	name, args, _ := strings.Cut(strings.TrimSpace(line), " ")
	cmd, ok := c.commands[name]
	if !ok {
		return fmt.Sprintf("error: %s: %q (try %shelp)", ErrUnknownCommand.Error(), name, settings.Prefix), nil
	}

	reply, err := cmd.run(ctx, msg, settings, strings.TrimSpace(args))
	if err != nil {
		if errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrNoInitialPrompt) {
			return fmt.Sprintf("error: %s (usage: %s%s)", err.Error(), settings.Prefix, cmd.usage), nil
		}
		return "", goerr.Wrap(err, "failed to run command", goerr.V("command", name))
	}
	return reply, nil
}

func (c *ChatUseCase) cmdHelp(_ context.Context, _ *ChatMessage, settings *model.ChannelSettings, _ string) (string, error) {
	usages := make([]string, 0, len(c.commands))
	for _, cmd := range c.commands {
		usages = append(usages, settings.Prefix+cmd.usage)
	}
	sort.Strings(usages)
	return "commands:\n" + strings.Join(usages, "\n"), nil
}

func (c *ChatUseCase) cmdResponseRatio(ctx context.Context, _ *ChatMessage, settings *model.ChannelSettings, args string) (string, error) {
	if args == "" {
		return fmt.Sprintf("response-ratio: %g", settings.ResponseRatio), nil
	}

	v, ok := parseFinite(args)
	if !ok || v < 0 || v > 1 {
		return "", goerr.Wrap(ErrInvalidArgument, "ratio must be a number between 0 and 1", goerr.V("arg", args))
	}
	settings.ResponseRatio = v
	if err := c.saveSettings(ctx, settings); err != nil {
		return "", err
	}
	return fmt.Sprintf("response-ratio set to %g", v), nil
}

func (c *ChatUseCase) cmdInitialPrompt(ctx context.Context, msg *ChatMessage, _ *model.ChannelSettings, args string) (string, error) {
	convID := model.ConversationID(msg.ChannelID)
	if args == "" {
		return c.uc.InitialPrompt(ctx, convID)
	}
	if err := c.uc.SetInitialPrompt(ctx, convID, args); err != nil {
		return "", err
	}
	return "initial prompt updated", nil
}

func (c *ChatUseCase) cmdPrefix(ctx context.Context, _ *ChatMessage, settings *model.ChannelSettings, args string) (string, error) {
	if args == "" {
		return fmt.Sprintf("prefix: %s", settings.Prefix), nil
	}
	if strings.ContainsAny(args, " \t\n") {
		return "", goerr.Wrap(ErrInvalidArgument, "prefix must not contain spaces", goerr.V("arg", args))
	}
	settings.Prefix = args
	if err := c.saveSettings(ctx, settings); err != nil {
		return "", err
	}
	return fmt.Sprintf("prefix set to %s", args), nil
}

func (c *ChatUseCase) cmdDebug(ctx context.Context, msg *ChatMessage, settings *model.ChannelSettings, args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return fmt.Sprintf("debug console: %s", onOff(settings.DebugConsole)), nil
	}

	switch fields[0] {
	case "emotion":
		return c.uc.EmotionDescription(ctx, model.ConversationID(msg.ChannelID))

	case "console":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			return "", goerr.Wrap(ErrInvalidArgument, "console takes on or off", goerr.V("arg", args))
		}
		settings.DebugConsole = fields[1] == "on"
		if err := c.saveSettings(ctx, settings); err != nil {
			return "", err
		}
		return fmt.Sprintf("debug console: %s", onOff(settings.DebugConsole)), nil

	default:
		return "", goerr.Wrap(ErrInvalidArgument, "unknown debug target", goerr.V("arg", args))
	}
}

func (c *ChatUseCase) cmdAffinity(ctx context.Context, msg *ChatMessage, _ *model.ChannelSettings, args string) (string, error) {
	convID := model.ConversationID(msg.ChannelID)
	target := model.ParticipantID(msg.UserID)

	fields := strings.Fields(args)
	if len(fields) > 0 {
		if id, ok := parseMention(fields[0]); ok {
			target = model.ParticipantID(id)
			fields = fields[1:]
		}
	}

	switch len(fields) {
	case 0:
		v, err := c.uc.Affinity(ctx, convID, target)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("affinity of %s: %.3f (%s)", target, v, model.BandOf(v)), nil

	case 2:
		v, ok := parseFinite(fields[1])
		if !ok {
			return "", goerr.Wrap(ErrInvalidArgument, "value must be a finite number", goerr.V("arg", fields[1]))
		}
		switch fields[0] {
		case "set":
			if err := c.uc.SetAffinity(ctx, convID, target, v); err != nil {
				return "", err
			}
			return fmt.Sprintf("affinity of %s set to %.3f", target, v), nil
		case "add":
			result, err := c.uc.AddAffinity(ctx, convID, target, v)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("affinity of %s is now %.3f", target, result), nil
		}
	}

	return "", goerr.Wrap(ErrInvalidArgument, "unexpected affinity arguments", goerr.V("arg", args))
}

// parseFinite parses a number, rejecting NaN and infinities
func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseMention accepts a Slack style mention or a plain @name
func parseMention(s string) (string, bool) {
	if strings.HasPrefix(s, "<@") && strings.HasSuffix(s, ">") {
		id := strings.TrimSuffix(strings.TrimPrefix(s, "<@"), ">")
		id, _, _ = strings.Cut(id, "|")
		return id, id != ""
	}
	if strings.HasPrefix(s, "@") && len(s) > 1 {
		return s[1:], true
	}
	return "", false
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
