package model

import (
	"time"

	"gorm.io/gorm"

	"oauth2-server/internal/scope"
)

// Response types a client may ask for when initiating authorization.
const (
	ResponseTypeCode  = "code"  // authorization-code flow
	ResponseTypeToken = "token" // implicit flow
)

// AuthRequest holds the state of an interactive authorization flow between
// the incoming authorization request and the user's grant/deny decision.
type AuthRequest struct {
	ID           string `gorm:"primaryKey" json:"id"`
	ClientID     string `gorm:"index" json:"client_id"`
	Scope        string `json:"scope"`
	RedirectURI  string `json:"redirect_uri"`
	ResponseType string `json:"response_type"`
	State        string `json:"state"` // opaque passthrough value for the client
	// GrantCode is set once granted on the code flow; AccessToken once
	// granted on the token flow. A denied request sets neither.
	GrantCode    *string    `json:"grant_code,omitempty"`
	AccessToken  *string    `json:"access_token,omitempty"`
	AuthorizedAt *time.Time `json:"authorized_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Revoked      *time.Time `json:"revoked,omitempty"`
}

func (r *AuthRequest) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = SecureRandomHex(32)
	}
	return nil
}

// ScopeList returns the requested scope as a canonical set.
func (r *AuthRequest) ScopeList() []string {
	return scope.Split(r.Scope)
}

// IsPending reports whether the request still awaits a grant/deny decision.
// Once AuthorizedAt is set the request is terminal.
func (r *AuthRequest) IsPending() bool {
	return r.AuthorizedAt == nil && r.Revoked == nil
}
