package model

import (
	"time"

	"gorm.io/gorm"

	"oauth2-server/internal/scope"
)

// AccessToken is the credential resource servers validate. A token is a
// unique value associated with a client, an identity and a scope; it may be
// revoked, and expires only if ExpiresAt is set (never, by default).
type AccessToken struct {
	ID        string     `gorm:"primaryKey" json:"-"` // the bearer token value
	Identity  string     `gorm:"index" json:"identity"`
	ClientID  string     `gorm:"index" json:"client_id"`
	Scope     string     `json:"scope"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Revoked   *time.Time `json:"revoked,omitempty"`
	// LastAccess is rounded to the hour and written at most once per hour
	// window; PrevAccess keeps the stamp before that.
	LastAccess *time.Time `json:"last_access,omitempty"`
	PrevAccess *time.Time `json:"prev_access,omitempty"`
}

func (t *AccessToken) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == "" {
		t.ID = SecureRandomHex(32)
	}
	return nil
}

// Token returns the bearer token value.
func (t *AccessToken) Token() string {
	return t.ID
}

// ScopeList returns the token's scope as a canonical set.
func (t *AccessToken) ScopeList() []string {
	return scope.Split(t.Scope)
}

// IsExpired reports whether the token has an expiry and it has passed.
func (t *AccessToken) IsExpired() bool {
	return t.ExpiresAt != nil && time.Now().After(*t.ExpiresAt)
}

// IsValid checks if the token is usable (not revoked and not expired).
func (t *AccessToken) IsValid() bool {
	return t.Revoked == nil && !t.IsExpired()
}
