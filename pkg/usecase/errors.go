package usecase

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for use case layer
var (
	// Not found errors
	ErrNoInitialPrompt = goerr.New("conversation has no initial prompt")

	// Turn errors
	ErrEmptyText                = goerr.New("message text is empty")
	ErrGenerationRetryExhausted = goerr.New("generation timed out too many times")

	// Command errors
	ErrUnknownCommand  = goerr.New("unknown command")
	ErrInvalidArgument = goerr.New("invalid command argument")
)

// Context keys for error values
const (
	ConversationIDKey = "conversation_id"
	ParticipantIDKey  = "participant_id"
	ChannelIDKey      = "channel_id"
	TurnIDKey         = "turn_id"
)
