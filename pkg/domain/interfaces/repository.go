package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Conversation() ConversationRepository
	Message() MessageRepository
	Emotion() EmotionRepository
	Affinity() AffinityRepository
	Credential() CredentialRepository
	ChannelSettings() ChannelSettingsRepository

	Close() error
}
