package domain

import "time"

// Credential is one external-service connection for one user.
//
// The pair (UserID, Service) is unique. A credential belongs exclusively
// to its user and is deleted when the user disconnects the service.
type Credential struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	UserID  int64       `json:"userId"`
	Service ServiceType `json:"service"`

	// ─────────────────────────────
	// Secret & connection state
	// ─────────────────────────────

	// Token is the opaque bearer token pasted by the user. May be empty.
	Token string `json:"token,omitempty"`

	// Connected is cleared when the token expires or the user disconnects.
	Connected bool `json:"connected"`

	// ExpiresAt is optional; the credential sweeper disconnects expired tokens.
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`

	// LastSyncedAt is updated after a successful upstream call.
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`

	// Config holds per-service settings such as "defaultListId".
	Config map[string]string `json:"config,omitempty"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasToken reports whether the credential can authenticate upstream calls.
func (c *Credential) HasToken() bool {
	return c != nil && c.Token != ""
}

// Expired reports whether the credential has an expiry at or before now.
func (c *Credential) Expired(now time.Time) bool {
	return c != nil && c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// Redacted returns a copy safe to send to clients.
func (c *Credential) Redacted() *Credential {
	cp := *c
	if cp.Token != "" {
		cp.Token = "***"
	}
	return &cp
}

// ConfigValue returns a config entry or "" if unset.
func (c *Credential) ConfigValue(key string) string {
	if c == nil || c.Config == nil {
		return ""
	}
	return c.Config[key]
}

// ConfigDefaultListID is the credential config key naming the list that
// email-derived tasks are created in.
const ConfigDefaultListID = "defaultListId"
