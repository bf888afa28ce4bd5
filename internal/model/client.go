package model

import (
	"time"

	"gorm.io/gorm"

	"oauth2-server/internal/scope"
)

// Client represents a registered OAuth2 client application.
type Client struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Secret      string `json:"-"` // Never expose the secret in JSON responses
	DisplayName string `json:"display_name"`
	Link        string `json:"link"`
	ImageURL    string `json:"image_url"`
	// RedirectURI, when set, is the single source of truth: it overrides any
	// redirect URI supplied by downstream authorization requests.
	RedirectURI   string     `json:"redirect_uri"`
	Scope         string     `json:"scope"` // Comma-joined canonical set of permitted scope tokens
	Notes         string     `json:"notes"`
	CreatedAt     time.Time  `json:"created_at"`
	Revoked       *time.Time `gorm:"index" json:"revoked,omitempty"`
	TokensGranted int64      `json:"tokens_granted"`
	TokensRevoked int64      `json:"tokens_revoked"`
}

// BeforeCreate hook generates credentials for clients registered without an
// administratively imported id and secret.
func (c *Client) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = SecureRandomHex(12)
	}
	if c.Secret == "" {
		c.Secret = SecureRandomHex(32)
	}
	return nil
}

// ScopeList returns the client's permitted scope as a canonical set.
func (c *Client) ScopeList() []string {
	return scope.Split(c.Scope)
}

// IsRevoked reports whether the client has been revoked.
func (c *Client) IsRevoked() bool {
	return c.Revoked != nil
}
