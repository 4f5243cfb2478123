package memory

import (
	"github.com/secmon-lab/kokoro/pkg/domain/interfaces"
)

// Memory is an in-process Repository. Every read and write copies the
// entity so callers never share state with the store.
type Memory struct {
	conversation *conversationRepository
	message      *messageRepository
	emotion      *emotionRepository
	affinity     *affinityRepository
	credential   *credentialRepository
	settings     *channelSettingsRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		conversation: newConversationRepository(),
		message:      newMessageRepository(),
		emotion:      newEmotionRepository(),
		affinity:     newAffinityRepository(),
		credential:   newCredentialRepository(),
		settings:     newChannelSettingsRepository(),
	}
}

func (m *Memory) Conversation() interfaces.ConversationRepository {
	return m.conversation
}

func (m *Memory) Message() interfaces.MessageRepository {
	return m.message
}

func (m *Memory) Emotion() interfaces.EmotionRepository {
	return m.emotion
}

func (m *Memory) Affinity() interfaces.AffinityRepository {
	return m.affinity
}

func (m *Memory) Credential() interfaces.CredentialRepository {
	return m.credential
}

func (m *Memory) ChannelSettings() interfaces.ChannelSettingsRepository {
	return m.settings
}

func (m *Memory) Close() error {
	return nil
}
