package usecase

import (
	"context"
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/utils/errutil"
	"github.com/secmon-lab/kokoro/pkg/utils/logging"
	"github.com/slack-go/slack/slackevents"
)

// SlackService is the part of the Slack API the chat adapter needs
type SlackService interface {
	BotUserID(ctx context.Context) (string, error)
	GetUserName(ctx context.Context, userID string) (string, error)
	PostMessage(ctx context.Context, channelID, text string) error
	PostThreadReply(ctx context.Context, channelID, threadTS, text string) error
}

var mentionPattern = regexp.MustCompile(`<@([A-Z0-9]+)(?:\|[^>]*)?>`)

// SlackUseCase adapts Slack Events API messages to the chat use case
type SlackUseCase struct {
	chat         *ChatUseCase
	slackService SlackService
}

func NewSlackUseCase(chat *ChatUseCase, slackService SlackService) *SlackUseCase {
	return &SlackUseCase{
		chat:         chat,
		slackService: slackService,
	}
}

// HandleSlackEvent processes Slack Events API events. Only channel messages
// are handled; other event types are ignored.
func (uc *SlackUseCase) HandleSlackEvent(ctx context.Context, event *slackevents.EventsAPIEvent) error {
	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		logging.From(ctx).Debug("ignored slack event", "type", event.Type, "innerType", event.InnerEvent.Type)
		return nil
	}
	return uc.HandleMessageEvent(ctx, ev)
}

// HandleMessageEvent runs one chat message through the conversation and
// posts the reply, if any
func (uc *SlackUseCase) HandleMessageEvent(ctx context.Context, ev *slackevents.MessageEvent) error {
	if ev.SubType != "" && ev.SubType != "thread_broadcast" {
		return nil
	}

	botID, err := uc.slackService.BotUserID(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to get bot user id")
	}
	if ev.BotID != "" || ev.User == "" || ev.User == botID {
		return nil
	}

	msg := &ChatMessage{
		ChannelID: ev.Channel,
		UserID:    ev.User,
		ThreadTS:  ev.ThreadTimeStamp,
	}
	msg.Text, msg.MentionsBot, msg.MentionsOthers = stripMentions(ev.Text, botID)

	name, err := uc.slackService.GetUserName(ctx, ev.User)
	if err != nil {
		errutil.Handle(ctx, err, "failed to get slack user name")
		name = ev.User
	}
	msg.UserName = name

	resp, err := uc.chat.HandleMessage(ctx, msg)
	if err != nil {
		return goerr.Wrap(err, "failed to handle slack message",
			goerr.V(ChannelIDKey, ev.Channel),
			goerr.V("ts", ev.TimeStamp))
	}
	if resp == nil || resp.Text == "" {
		return nil
	}

	if resp.InThread {
		threadTS := ev.ThreadTimeStamp
		if threadTS == "" {
			threadTS = ev.TimeStamp
		}
		if err := uc.slackService.PostThreadReply(ctx, ev.Channel, threadTS, resp.Text); err != nil {
			return goerr.Wrap(err, "failed to post thread reply", goerr.V(ChannelIDKey, ev.Channel))
		}
		return nil
	}

	if err := uc.slackService.PostMessage(ctx, ev.Channel, resp.Text); err != nil {
		return goerr.Wrap(err, "failed to post message", goerr.V(ChannelIDKey, ev.Channel))
	}
	return nil
}

// stripMentions removes the bot mention from text and reports which users
// were mentioned
func stripMentions(text, botID string) (string, bool, bool) {
	var mentionsBot, mentionsOthers bool
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		if m[1] == botID {
			mentionsBot = true
		} else {
			mentionsOthers = true
		}
	}

	if mentionsBot {
		text = mentionPattern.ReplaceAllStringFunc(text, func(s string) string {
			if mentionPattern.FindStringSubmatch(s)[1] == botID {
				return ""
			}
			return s
		})
	}
	return strings.TrimSpace(text), mentionsBot, mentionsOthers
}
