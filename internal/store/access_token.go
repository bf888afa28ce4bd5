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

// CreateToken always mints a fresh token for the client, with no identity
// attached. This is the client-credentials-style path.
func (s *Store) CreateToken(ctx context.Context, client *model.Client, requestedScope string) (*model.AccessToken, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: unknown client", ErrInvalidRequest)
	}
	token := &model.AccessToken{
		ClientID: client.ID,
		Scope:    scope.Join(scope.Intersect(scope.Normalize(requestedScope), client.ScopeList())),
	}
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return nil, err
	}
	if err := s.incrementClientCounter(ctx, client.ID, "tokens_granted"); err != nil {
		return nil, err
	}
	return token, nil
}

// GetOrCreateToken returns a live token matching (identity, client, scope),
// minting one when none exists. The find-then-insert window means identical
// concurrent calls can mint a duplicate; that is a benign extra credential,
// never a correctness violation, so no lock is taken. Grant redemption is
// where the hard single-use guarantee lives.
func (s *Store) GetOrCreateToken(ctx context.Context, identity string, client *model.Client, requestedScope string) (*model.AccessToken, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: identity must be a non-empty string", ErrInvalidRequest)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: unknown client", ErrInvalidRequest)
	}
	joined := scope.Join(scope.Intersect(scope.Normalize(requestedScope), client.ScopeList()))

	var existing model.AccessToken
	err := s.db.WithContext(ctx).
		First(&existing, "identity = ? AND client_id = ? AND scope = ? AND revoked IS NULL",
			identity, client.ID, joined).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	token := &model.AccessToken{
		Identity: identity,
		ClientID: client.ID,
		Scope:    joined,
	}
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return nil, err
	}
	if err := s.incrementClientCounter(ctx, client.ID, "tokens_granted"); err != nil {
		return nil, err
	}
	return token, nil
}

// FindToken returns the token with the given value only when it is not
// revoked. Revoked tokens are indistinguishable from nonexistent ones:
// resource servers must treat both as invalid.
func (s *Store) FindToken(ctx context.Context, value string) (*model.AccessToken, error) {
	var token model.AccessToken
	err := s.db.WithContext(ctx).First(&token, "id = ? AND revoked IS NULL", value).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// TokensForIdentity returns every token issued to the identity, revoked
// ones included.
func (s *Store) TokensForIdentity(ctx context.Context, identity string) ([]model.AccessToken, error) {
	var tokens []model.AccessToken
	err := s.db.WithContext(ctx).Find(&tokens, "identity = ?", identity).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// TokensForClient pages through a client's tokens ordered by creation time.
func (s *Store) TokensForClient(ctx context.Context, clientID string, offset, limit int) ([]model.AccessToken, error) {
	if limit <= 0 {
		limit = 100
	}
	var tokens []model.AccessToken
	err := s.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at").
		Offset(offset).Limit(limit).
		Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// TokenCountFilter narrows TokenCount to a subset of access tokens.
type TokenCountFilter struct {
	// ClientID counts only tokens granted to this client.
	ClientID string
	// Revoked counts only revoked (true) or live (false) tokens; nil counts all.
	Revoked *bool
	// Days restricts the count to a trailing window, measured on the revoked
	// timestamp when counting revoked tokens and on created_at otherwise.
	Days int
}

// TokenCount returns the number of access tokens matching the filter.
func (s *Store) TokenCount(ctx context.Context, f TokenCountFilter) (int64, error) {
	q := s.db.WithContext(ctx).Model(&model.AccessToken{})
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.Days > 0 {
		now := time.Now()
		since := now.Add(-time.Duration(f.Days) * 24 * time.Hour)
		if f.Revoked != nil && *f.Revoked {
			q = q.Where("revoked >= ? AND revoked < ?", since, now)
		} else {
			q = q.Where("created_at >= ? AND created_at < ?", since, now)
		}
	} else if f.Revoked != nil {
		if *f.Revoked {
			q = q.Where("revoked IS NOT NULL")
		} else {
			q = q.Where("revoked IS NULL")
		}
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// TouchToken stamps the token's hour-aligned access time, shifting the
// previous stamp into prev_access. The write happens at most once per hour
// window so validating a token is not a write-per-request hot path.
func (s *Store) TouchToken(ctx context.Context, token *model.AccessToken) error {
	hour := time.Now().Truncate(time.Hour)
	if token.LastAccess != nil && !token.LastAccess.Before(hour) {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&model.AccessToken{}).
		Where("id = ?", token.ID).
		Updates(map[string]interface{}{"last_access": hour, "prev_access": token.LastAccess}).Error
	if err != nil {
		return err
	}
	token.PrevAccess = token.LastAccess
	token.LastAccess = &hour
	return nil
}

// RevokeToken revokes the token and bumps the owning client's revocation
// counter. Repeated calls keep the original revocation timestamp.
func (s *Store) RevokeToken(ctx context.Context, token *model.AccessToken) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&model.AccessToken{}).
		Where("id = ? AND revoked IS NULL", token.ID).
		Update("revoked", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}
	token.Revoked = &now
	return s.incrementClientCounter(ctx, token.ClientID, "tokens_revoked")
}

// incrementClientCounter bumps one of the advisory per-client statistics
// atomically in the database.
func (s *Store) incrementClientCounter(ctx context.Context, clientID, column string) error {
	return s.db.WithContext(ctx).Model(&model.Client{}).
		Where("id = ?", clientID).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error
}
