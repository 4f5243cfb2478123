package slack

import "context"

// Service provides the Slack API operations the chat adapter needs
type Service interface {
	// BotUserID returns the user ID of the bot itself. Cached after the first call.
	BotUserID(ctx context.Context) (string, error)

	// GetUserName returns the display name of a user (with caching)
	GetUserName(ctx context.Context, userID string) (string, error)

	// GetUserInfo retrieves user information for the given user ID
	GetUserInfo(ctx context.Context, userID string) (*User, error)

	// PostMessage posts plain text to a channel
	PostMessage(ctx context.Context, channelID, text string) error

	// PostThreadReply posts plain text as a reply in the thread of threadTS
	PostThreadReply(ctx context.Context, channelID, threadTS, text string) error
}

// User represents a Slack user
type User struct {
	ID          string
	Name        string
	RealName    string
	DisplayName string
	IsBot       bool
}

// PreferredName returns the name people see in the channel
func (u *User) PreferredName() string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.RealName != "":
		return u.RealName
	default:
		return u.Name
	}
}
