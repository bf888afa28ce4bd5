package model

import (
	"time"

	"gorm.io/gorm"

	"oauth2-server/internal/scope"
)

// AccessGrant is a single-use authorization code. A new grant is minted each
// time one is needed and is good for redeeming exactly one access token.
type AccessGrant struct {
	ID          string    `gorm:"primaryKey" json:"code"` // the authorization code itself
	Identity    string    `gorm:"index" json:"identity"`
	ClientID    string    `gorm:"index" json:"client_id"`
	Scope       string    `json:"scope"`
	RedirectURI string    `json:"redirect_uri"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	// GrantedAt and AccessToken are set together on successful redemption.
	// A row with a non-null AccessToken or Revoked is spent for good.
	GrantedAt   *time.Time `json:"granted_at,omitempty"`
	AccessToken *string    `json:"access_token,omitempty"`
	Revoked     *time.Time `json:"revoked,omitempty"`
}

func (g *AccessGrant) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == "" {
		g.ID = SecureRandomHex(32)
	}
	return nil
}

// Code returns the authorization code value.
func (g *AccessGrant) Code() string {
	return g.ID
}

// ScopeList returns the granted scope as a canonical set.
func (g *AccessGrant) ScopeList() []string {
	return scope.Split(g.Scope)
}

// IsExpired reports whether the grant's redemption window has passed.
func (g *AccessGrant) IsExpired() bool {
	return time.Now().After(g.ExpiresAt)
}

// IsSpent reports whether the grant was already redeemed or revoked.
func (g *AccessGrant) IsSpent() bool {
	return g.AccessToken != nil || g.Revoked != nil
}
