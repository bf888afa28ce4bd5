package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"gorm.io/gorm"

	"oauth2-server/internal/model"
	"oauth2-server/internal/scope"
)

// ClientFields carries caller-supplied attributes for registering or
// updating a client. Empty fields are left untouched on update.
type ClientFields struct {
	ID          string `json:"id"`
	Secret      string `json:"secret"`
	DisplayName string `json:"display_name"`
	Link        string `json:"link"`
	ImageURL    string `json:"image_url"`
	RedirectURI string `json:"redirect_uri"`
	Scope       string `json:"scope"`
	Notes       string `json:"notes"`
}

// RegisterClient creates a new client. When the caller supplies both an id
// and a secret they are stored as-is (administrative import); otherwise
// fresh opaque credentials are generated.
func (s *Store) RegisterClient(ctx context.Context, f ClientFields) (*model.Client, error) {
	redirectURI, err := parseRedirectURI(f.RedirectURI)
	if err != nil {
		return nil, err
	}
	client := &model.Client{
		DisplayName: f.DisplayName,
		Link:        f.Link,
		ImageURL:    f.ImageURL,
		RedirectURI: redirectURI,
		Scope:       scope.Join(scope.Normalize(f.Scope)),
		Notes:       f.Notes,
	}
	if f.ID != "" && f.Secret != "" {
		client.ID = f.ID
		client.Secret = f.Secret
	}
	if err := s.db.WithContext(ctx).Create(client).Error; err != nil {
		return nil, err
	}
	return client, nil
}

// FindClient returns the client with the given id, or nil when absent.
// Revoked clients are returned too: they must stay discoverable for
// administrative and audit purposes, so callers check Revoked themselves.
func (s *Store) FindClient(ctx context.Context, id string) (*model.Client, error) {
	var client model.Client
	err := s.db.WithContext(ctx).First(&client, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// UpdateClient replaces the display fields present in f, recomputes the
// redirect URI and scope when supplied, and returns the refreshed client.
func (s *Store) UpdateClient(ctx context.Context, id string, f ClientFields) (*model.Client, error) {
	changes := map[string]interface{}{}
	if f.DisplayName != "" {
		changes["display_name"] = f.DisplayName
	}
	if f.Link != "" {
		changes["link"] = f.Link
	}
	if f.ImageURL != "" {
		changes["image_url"] = f.ImageURL
	}
	if f.Notes != "" {
		changes["notes"] = f.Notes
	}
	if f.RedirectURI != "" {
		redirectURI, err := parseRedirectURI(f.RedirectURI)
		if err != nil {
			return nil, err
		}
		changes["redirect_uri"] = redirectURI
	}
	if f.Scope != "" {
		changes["scope"] = scope.Join(scope.Normalize(f.Scope))
	}
	if len(changes) > 0 {
		err := s.db.WithContext(ctx).Model(&model.Client{}).
			Where("id = ?", id).
			Updates(changes).Error
		if err != nil {
			return nil, err
		}
	}
	return s.FindClient(ctx, id)
}

// RevokeClient revokes the client and cascades the same revocation
// timestamp to every auth request, access grant and access token that
// belongs to it. Other clients' rows are untouched.
func (s *Store) RevokeClient(ctx context.Context, id string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.Client{}).
			Where("id = ? AND revoked IS NULL", id).
			Update("revoked", now).Error
		if err != nil {
			return err
		}
		for _, m := range []interface{}{
			&model.AuthRequest{},
			&model.AccessGrant{},
			&model.AccessToken{},
		} {
			err := tx.Model(m).
				Where("client_id = ? AND revoked IS NULL", id).
				Update("revoked", now).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteClient removes the client and all of its dependent auth request,
// access grant and access token rows. Irreversible; administrative use only.
func (s *Store) DeleteClient(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.Client{}, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.AuthRequest{}, "client_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.AccessGrant{}, "client_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.AccessToken{}, "client_id = ?", id).Error
	})
}

// ListClients returns all clients sorted by display name.
func (s *Store) ListClients(ctx context.Context) ([]model.Client, error) {
	var clients []model.Client
	err := s.db.WithContext(ctx).Order("display_name").Find(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}

// parseRedirectURI validates that a supplied redirect URI is a well-formed
// absolute URI. Empty input is allowed: a client without a registered
// redirect URI trusts the value supplied per request.
func parseRedirectURI(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("%w: redirect_uri must be an absolute URI", ErrInvalidRequest)
	}
	return u.String(), nil
}
