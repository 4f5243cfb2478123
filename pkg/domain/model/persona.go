package model

// Persona is the fixed set of system directives installed at the lowest
// message indices of every new conversation
type Persona struct {
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
	Directives  []string `toml:"directives"`
}
