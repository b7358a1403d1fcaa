package source

import "time"

// MaxLabelLength bounds a source label after trimming.
const MaxLabelLength = 80

// entry is the on-disk shape. EncryptedToken is a vault blob.
type entry struct {
	ID             string    `json:"id"`
	Label          string    `json:"label"`
	Enabled        bool      `json:"enabled"`
	EncryptedToken string    `json:"encryptedToken"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type collection struct {
	Entries []entry `json:"entries"`
}

// document is the whole sources file keyed by source kind.
type document map[string]*collection

// Source is a decrypted credential ready for dispatch.
// Token is plaintext and must never be logged.
type Source struct {
	ID        string
	Label     string
	Token     string
	Enabled   bool
	UpdatedAt time.Time
}

// View is the masked form returned to API and CLI callers.
type View struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Enabled   bool      `json:"enabled"`
	TokenHint string    `json:"tokenHint"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Upsert is a create-or-merge request. Nil fields are left unchanged on
// update. ID empty or unknown creates a new source with a fresh id; Token is
// required in that case.
type Upsert struct {
	ID      string  `json:"id,omitempty"`
	Label   *string `json:"label,omitempty"`
	Token   *string `json:"token,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
}
