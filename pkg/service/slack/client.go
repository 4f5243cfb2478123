package slack

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

const (
	// DefaultCacheTTL is the default TTL for user name cache
	DefaultCacheTTL = 10 * time.Minute
)

// cacheEntry holds a cached user name with expiration
type cacheEntry struct {
	name      string
	expiresAt time.Time
}

// client implements Service interface
type client struct {
	api      *slack.Client
	cacheTTL time.Duration
	apiOpts  []slack.Option

	botUserID string

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// Option is a functional option for client configuration
type Option func(*client)

// WithCacheTTL sets the TTL for user name cache
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *client) {
		c.cacheTTL = ttl
	}
}

// WithAPIURL points the client at another Slack API endpoint
func WithAPIURL(url string) Option {
	return func(c *client) {
		c.apiOpts = append(c.apiOpts, slack.OptionAPIURL(url))
	}
}

// New creates a new Slack service with the provided bot token
func New(token string, opts ...Option) (Service, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}

	c := &client{
		cacheTTL: DefaultCacheTTL,
		cache:    make(map[string]cacheEntry),
	}

	for _, opt := range opts {
		opt(c)
	}
	c.api = slack.New(token, c.apiOpts...)

	return c, nil
}

// BotUserID resolves the bot's own user ID through auth.test. A failed
// lookup is retried on the next call.
func (c *client) BotUserID(ctx context.Context) (string, error) {
	c.mu.RLock()
	id := c.botUserID
	c.mu.RUnlock()
	if id != "" {
		return id, nil
	}

	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to call auth.test")
	}

	c.mu.Lock()
	c.botUserID = resp.UserID
	c.mu.Unlock()
	return resp.UserID, nil
}

// GetUserName returns the preferred name of the user with caching
func (c *client) GetUserName(ctx context.Context, userID string) (string, error) {
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.cache[userID]
	c.mu.RUnlock()
	if ok && entry.expiresAt.After(now) {
		return entry.name, nil
	}

	user, err := c.GetUserInfo(ctx, userID)
	if err != nil {
		return "", err
	}

	name := user.PreferredName()
	c.mu.Lock()
	c.cache[userID] = cacheEntry{
		name:      name,
		expiresAt: now.Add(c.cacheTTL),
	}
	c.mu.Unlock()

	return name, nil
}

// GetUserInfo retrieves user information for the given user ID
func (c *client) GetUserInfo(ctx context.Context, userID string) (*User, error) {
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get user info", goerr.V("user_id", userID))
	}

	return &User{
		ID:          user.ID,
		Name:        user.Name,
		RealName:    user.RealName,
		DisplayName: user.Profile.DisplayName,
		IsBot:       user.IsBot,
	}, nil
}

// PostMessage posts plain text to a channel
func (c *client) PostMessage(ctx context.Context, channelID, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return goerr.Wrap(err, "failed to post message", goerr.V("channelID", channelID))
	}
	return nil
}

// PostThreadReply posts plain text in the thread of threadTS
func (c *client) PostThreadReply(ctx context.Context, channelID, threadTS, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(threadTS),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to post thread reply",
			goerr.V("channelID", channelID),
			goerr.V("threadTS", threadTS))
	}
	return nil
}
