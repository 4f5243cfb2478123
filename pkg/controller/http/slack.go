package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/utils/async"
	"github.com/secmon-lab/kokoro/pkg/utils/errutil"
	"github.com/secmon-lab/kokoro/pkg/utils/logging"
	"github.com/secmon-lab/kokoro/pkg/utils/safe"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// SlackEventHandler processes verified Slack Events API callbacks
type SlackEventHandler interface {
	HandleSlackEvent(ctx context.Context, event *slackevents.EventsAPIEvent) error
}

// verifySlackSignature checks the v0 request signature and the timestamp
// freshness of a Slack request
func verifySlackSignature(signingSecret string, header http.Header, body []byte) error {
	verifier, err := slack.NewSecretsVerifier(header, signingSecret)
	if err != nil {
		return goerr.Wrap(err, "invalid slack signature headers")
	}
	if _, err := verifier.Write(body); err != nil {
		return goerr.Wrap(err, "failed to hash request body")
	}
	if err := verifier.Ensure(); err != nil {
		return goerr.Wrap(err, "signature mismatch")
	}
	return nil
}

// SlackSignatureMiddleware rejects requests without a valid Slack signature
func SlackSignatureMiddleware(signingSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			body, err := io.ReadAll(r.Body)
			if err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
				return
			}
			safe.Close(ctx, r.Body)

			if err := verifySlackSignature(signingSecret, r.Header, body); err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "slack signature verification failed"), http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

// SlackWebhookHandler handles Slack Events API webhook requests
type SlackWebhookHandler struct {
	handler SlackEventHandler
}

// NewSlackWebhookHandler creates a new Slack webhook handler
func NewSlackWebhookHandler(handler SlackEventHandler) *SlackWebhookHandler {
	return &SlackWebhookHandler{
		handler: handler,
	}
}

// ServeHTTP answers URL verification and acknowledges callbacks before
// running them asynchronously, since Slack expects a reply within 3 seconds
func (h *SlackWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse slack event"), http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to unmarshal challenge"), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		safe.Write(ctx, w, []byte(challenge.Challenge))

	case slackevents.CallbackEvent:
		w.WriteHeader(http.StatusOK)

		async.Dispatch(ctx, func(ctx context.Context) error {
			logging.From(ctx).Debug("processing slack callback event",
				"inner_type", event.InnerEvent.Type,
				"team_id", event.TeamID,
			)
			if err := h.handler.HandleSlackEvent(ctx, &event); err != nil {
				return goerr.Wrap(err, "failed to handle slack event")
			}
			return nil
		})

	default:
		logging.From(ctx).Warn("unknown slack event type", "type", event.Type)
		w.WriteHeader(http.StatusOK)
	}
}
