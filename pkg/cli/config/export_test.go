package config

import "time"

// NewSlackForTest creates a Slack config for testing purposes
func NewSlackForTest(botToken, signingSecret string) *Slack {
	return &Slack{
		botToken:      botToken,
		signingSecret: signingSecret,
	}
}

// NewGeminiForTest creates a Gemini config for testing purposes
func NewGeminiForTest(projectID, location string) *Gemini {
	return &Gemini{
		projectID: projectID,
		location:  location,
	}
}

// NewLLMForTest creates an LLM config for testing purposes
func NewLLMForTest(provider, openaiAPIKey string) *LLM {
	return &LLM{
		provider: provider,
		OpenAI:   OpenAI{apiKey: openaiAPIKey, temperature: 0.9},
	}
}

// NewPersonaForTest creates a Persona config for testing purposes
func NewPersonaForTest(path string) *Persona {
	return &Persona{path: path}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, projectID string) *Repository {
	return &Repository{backend: backend, projectID: projectID}
}

// NewAgentForTest creates an Agent config with the usual defaults
func NewAgentForTest() *Agent {
	return &Agent{
		recentWindow:        10,
		retrieveLimit:       10,
		generateTimeout:     time.Minute,
		affectScale:         0.1,
		affinityScale:       10,
		aggregationInterval: 15 * time.Minute,
	}
}

// SetRecentWindow overrides the recent window of an Agent config
func (x *Agent) SetRecentWindow(n int) {
	x.recentWindow = n
}

// SetMaxGenerateRetries overrides the retry cap of an Agent config
func (x *Agent) SetMaxGenerateRetries(n int) {
	x.maxGenerateRetries = n
}

