package model

import "time"

// MasterCredential is one version of the generation backend API key. Only
// the highest version is authoritative.
type MasterCredential struct {
	Version   int64
	APIKey    string `masq:"secret"`
	CreatedAt time.Time
}
