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

// CreateAuthRequest opens an interactive authorization flow on behalf of the
// client. The requested scope is clipped to what the client is permitted,
// and a redirect URI registered on the client overrides the supplied one.
func (s *Store) CreateAuthRequest(ctx context.Context, client *model.Client, requestedScope, redirectURI, responseType, state string) (*model.AuthRequest, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: unknown client", ErrInvalidRequest)
	}
	if responseType != model.ResponseTypeCode && responseType != model.ResponseTypeToken {
		return nil, fmt.Errorf("%w: response_type must be %q or %q", ErrInvalidRequest, model.ResponseTypeCode, model.ResponseTypeToken)
	}
	if client.RedirectURI != "" {
		redirectURI = client.RedirectURI
	}
	req := &model.AuthRequest{
		ClientID:     client.ID,
		Scope:        scope.Join(scope.Intersect(scope.Normalize(requestedScope), client.ScopeList())),
		RedirectURI:  redirectURI,
		ResponseType: responseType,
		State:        state,
	}
	if err := s.db.WithContext(ctx).Create(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}

// FindAuthRequest returns the authorization request with the given id, or
// nil when absent.
func (s *Store) FindAuthRequest(ctx context.Context, id string) (*model.AuthRequest, error) {
	var req model.AuthRequest
	err := s.db.WithContext(ctx).First(&req, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GrantAuthRequest records the user's decision to grant access to the given
// identity. The code flow mints an access grant and records its code on the
// request; the token flow obtains a token through the dedup path and records
// its value. The transition itself is conditional on the request still being
// pending, so of two concurrent duplicate submissions exactly one wins and
// the other gets ErrInvalidRequest. A token or grant minted by the loser is
// left unattached, which is harmless.
func (s *Store) GrantAuthRequest(ctx context.Context, req *model.AuthRequest, identity string) error {
	if identity == "" {
		return fmt.Errorf("%w: identity must be a non-empty string", ErrInvalidRequest)
	}
	if req.Revoked != nil {
		return fmt.Errorf("%w: authorization request revoked", ErrInvalidRequest)
	}
	client, err := s.FindClient(ctx, req.ClientID)
	if err != nil {
		return err
	}
	if client == nil {
		return fmt.Errorf("%w: client no longer exists", ErrInvalidRequest)
	}

	now := time.Now()
	changes := map[string]interface{}{"authorized_at": now}
	var grantCode, tokenValue string
	if req.ResponseType == model.ResponseTypeCode {
		grant, err := s.CreateGrant(ctx, identity, client, req.Scope, req.RedirectURI, s.GrantTTL)
		if err != nil {
			return err
		}
		grantCode = grant.Code()
		changes["grant_code"] = grantCode
	} else {
		token, err := s.GetOrCreateToken(ctx, identity, client, req.Scope)
		if err != nil {
			return err
		}
		tokenValue = token.Token()
		changes["access_token"] = tokenValue
	}

	res := s.db.WithContext(ctx).Model(&model.AuthRequest{}).
		Where("id = ? AND authorized_at IS NULL AND revoked IS NULL", req.ID).
		Updates(changes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: authorization request already decided", ErrInvalidRequest)
	}

	req.AuthorizedAt = &now
	if grantCode != "" {
		req.GrantCode = &grantCode
	}
	if tokenValue != "" {
		req.AccessToken = &tokenValue
	}
	return nil
}

// DenyAuthRequest records the user's decision to deny access. The request
// becomes terminal with neither a grant code nor an access token.
func (s *Store) DenyAuthRequest(ctx context.Context, req *model.AuthRequest) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&model.AuthRequest{}).
		Where("id = ? AND authorized_at IS NULL AND revoked IS NULL", req.ID).
		Update("authorized_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: authorization request already decided", ErrInvalidRequest)
	}
	req.AuthorizedAt = &now
	return nil
}
