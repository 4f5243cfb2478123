package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/service/slack"
	"github.com/urfave/cli/v3"
)

type Slack struct {
	botToken      string
	signingSecret string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token (for posting replies and fetching user names)",
			Category:    "Slack",
			Destination: &x.botToken,
			Sources:     cli.EnvVars("KOKORO_SLACK_BOT_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-signing-secret",
			Usage:       "Slack Signing Secret (for webhook verification)",
			Category:    "Slack",
			Destination: &x.signingSecret,
			Sources:     cli.EnvVars("KOKORO_SLACK_SIGNING_SECRET"),
		},
	}
}

func (x *Slack) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("bot-token.len", len(x.botToken)),
		slog.Int("signing-secret.len", len(x.signingSecret)),
	}
}

// IsConfigured reports whether a bot token is set
func (x *Slack) IsConfigured() bool {
	return x.botToken != ""
}

// IsWebhookConfigured checks if Slack webhook is configured
func (x *Slack) IsWebhookConfigured() bool {
	return x.signingSecret != ""
}

// SigningSecret returns the Slack signing secret
func (x *Slack) SigningSecret() string {
	return x.signingSecret
}

// Configure creates the Slack service. It returns nil without error when no
// bot token is set, which disables the Slack surface.
func (x *Slack) Configure() (slack.Service, error) {
	if x.botToken == "" {
		if x.signingSecret != "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "slack-signing-secret requires slack-bot-token")
		}
		return nil, nil
	}

	svc, err := slack.New(x.botToken)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create slack service")
	}
	return svc, nil
}
