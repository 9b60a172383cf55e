package model

import "time"

// Credential is the persisted, encrypted secret set of one platform. Payload
// holds the canonical envelope encoding and is opaque without the vault key.
type Credential struct {
	PlatformID string
	Payload    string
	UpdatedAt  time.Time
}

// AdapterConfig binds decrypted credentials to an adapter session for one
// platform account.
type AdapterConfig struct {
	PlatformID  string
	ClientID    string
	Credentials map[string]string
}
