package model

const (
	DefaultCommandPrefix = "!"
	DefaultResponseRatio = 0.2
)

// ChannelSettings holds per-channel chat adapter behavior
type ChannelSettings struct {
	ChannelID     string
	Prefix        string
	ResponseRatio float64
	DebugConsole  bool
}

// NewChannelSettings returns the defaults for a channel seen for the first time
func NewChannelSettings(channelID string) *ChannelSettings {
	return &ChannelSettings{
		ChannelID:     channelID,
		Prefix:        DefaultCommandPrefix,
		ResponseRatio: DefaultResponseRatio,
	}
}
