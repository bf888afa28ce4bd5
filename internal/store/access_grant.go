package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"oauth2-server/internal/model"
	"oauth2-server/internal/scope"
)

// DefaultGrantTTL is how long an authorization code stays redeemable when
// the caller does not specify a lifetime.
const DefaultGrantTTL = 300 * time.Second

// CreateGrant mints a single-use authorization code for the identity. Scope
// is clipped to what the client is permitted; a redirect URI registered on
// the client overrides the supplied one.
func (s *Store) CreateGrant(ctx context.Context, identity string, client *model.Client, requestedScope, redirectURI string, ttl time.Duration) (*model.AccessGrant, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: identity must be a non-empty string", ErrInvalidRequest)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: unknown client", ErrInvalidRequest)
	}
	if ttl <= 0 {
		ttl = DefaultGrantTTL
	}
	if client.RedirectURI != "" {
		redirectURI = client.RedirectURI
	}
	grant := &model.AccessGrant{
		Identity:    identity,
		ClientID:    client.ID,
		Scope:       scope.Join(scope.Intersect(scope.Normalize(requestedScope), client.ScopeList())),
		RedirectURI: redirectURI,
		ExpiresAt:   time.Now().Add(ttl),
	}
	if err := s.db.WithContext(ctx).Create(grant).Error; err != nil {
		return nil, err
	}
	return grant, nil
}

// GrantFromCode finds a non-revoked grant by its authorization code, or
// returns nil when absent.
func (s *Store) GrantFromCode(ctx context.Context, code string) (*model.AccessGrant, error) {
	var grant model.AccessGrant
	err := s.db.WithContext(ctx).First(&grant, "id = ? AND revoked IS NULL", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

// AuthorizeGrant redeems the grant for an access token. A grant can be
// redeemed only once, but a client may send the same code more than once, so
// all concurrent attempts race on a single conditional UPDATE: the row is
// written only while it still has no access token and is not revoked, and
// only the attempt whose write took effect wins. The row is then re-read to
// verify the stored token is the one just written, which covers revocation
// racing in after the write. Every losing attempt gets ErrInvalidGrant.
//
// The token is obtained before the conditional write. That is safe: tokens
// are deduplicated per (identity, client, scope), so the worst case is a
// token minted by a losing attempt that ends up attached to no grant.
func (s *Store) AuthorizeGrant(ctx context.Context, grant *model.AccessGrant) (*model.AccessToken, error) {
	if grant.IsSpent() {
		return nil, fmt.Errorf("%w: access grant already used", ErrInvalidGrant)
	}
	if grant.IsExpired() {
		return nil, fmt.Errorf("%w: access grant expired", ErrInvalidGrant)
	}
	client, err := s.FindClient(ctx, grant.ClientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("%w: client no longer exists", ErrInvalidGrant)
	}

	token, err := s.GetOrCreateToken(ctx, grant.Identity, client, grant.Scope)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&model.AccessGrant{}).
		Where("id = ? AND access_token IS NULL AND revoked IS NULL", grant.ID).
		Updates(map[string]interface{}{"access_token": token.ID, "granted_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	// The affected-row count is the authoritative race outcome. The re-read
	// below is not enough on its own: a concurrent redemption obtains the
	// same deduplicated token, so the stored value would match for the
	// loser too.
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: access grant already used", ErrInvalidGrant)
	}

	var stored model.AccessGrant
	err = s.db.WithContext(ctx).Select("access_token").
		First(&stored, "id = ? AND revoked IS NULL", grant.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: access grant revoked", ErrInvalidGrant)
	}
	if err != nil {
		return nil, err
	}
	if stored.AccessToken == nil || *stored.AccessToken != token.ID {
		return nil, fmt.Errorf("%w: access grant already used", ErrInvalidGrant)
	}

	tokenValue := token.ID
	grant.AccessToken = &tokenValue
	grant.GrantedAt = &now
	return token, nil
}

// RevokeGrant revokes an unspent grant. Repeated calls are safe: the store
// predicate keeps the original revocation timestamp.
func (s *Store) RevokeGrant(ctx context.Context, grant *model.AccessGrant) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&model.AccessGrant{}).
		Where("id = ? AND revoked IS NULL", grant.ID).
		Update("revoked", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		grant.Revoked = &now
	}
	return nil
}
