package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"oauth2-server/internal/model"
)

func TestGetOrCreateTokenDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := newTestClient(t, s, "read write")

	first, err := s.GetOrCreateToken(ctx, "u1", client, "read write")
	if err != nil {
		t.Fatalf("GetOrCreateToken: %v", err)
	}
	// Same tuple, different spelling of the same scope.
	second, err := s.GetOrCreateToken(ctx, "u1", client, "write read")
	if err != nil {
		t.Fatalf("GetOrCreateToken: %v", err)
	}
	if first.Token() != second.Token() {
		t.Errorf("dedup returned different tokens: %q vs %q", first.Token(), second.Token())
	}

	// Different scope means a different token.
	other, err := s.GetOrCreateToken(ctx, "u1", client, "read")
	if err != nil {
		t.Fatalf("GetOrCreateToken: %v", err)
	}
	if other.Token() == first.Token() {
		t.Error("tokens with different scope must differ")
	}

	// Different identity means a different token.
	another, err := s.GetOrCreateToken(ctx, "u2", client, "read write")
	if err != nil {
		t.Fatalf("GetOrCreateToken: %v", err)
	}
	if another.Token() == first.Token() {
		t.Error("tokens for different identities must differ")
	}
}

func TestGetOrCreateTokenValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := newTestClient(t, s, "read")

	if _, err := s.GetOrCreateToken(ctx, "", client, "read"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("empty identity error = %v, want ErrInvalidRequest", err)
	}
	if _, err := s.GetOrCreateToken(ctx, "u1", nil, "read"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("nil client error = %v, want ErrInvalidRequest", err)
	}
}

func TestCreateTokenAlwaysMintsNew(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := newTestClient(t, s, "read write")

	first, err := s.CreateToken(ctx, client, "read admin")
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if first.Scope != "read" {
		t.Errorf("scope = %q, want clipped %q", first.Scope, "read")
	}
	second, err := s.CreateToken(ctx, client, "read admin")
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if first.Token() == second.Token() {
		t.Error("CreateToken must not reuse tokens")
	}

	refreshed, err := s.FindClient(ctx, client.ID)
	if err != nil {
		t.Fatalf("FindClient: %v", err)
	}
	if refreshed.TokensGranted != 2 {
		t.Errorf("tokens_granted = %d, want 2", refreshed.TokensGranted)
	}
}

func TestFindTokenExcludesRevoked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := newTestClient(t, s, "read")

	token, err := s.GetOrCreateToken(ctx, "u1", client, "read")
	if err != nil {
		t.Fatalf("GetOrCreateToken: %v", err)
	}
	found, err := s.FindToken(ctx, token.Token())
	if err != nil || found == nil {
		t.Fatalf("FindToken = %+v err=%v, want live token", found, err)
	}

	if err := s.RevokeToken(ctx, token); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	found, err = s.FindToken(ctx, token.Token())
	if err != nil {
		t.Fatalf("FindToken: %v", err)
	}
	if found != nil {
		t.Error("revoked token must be indistinguishable from a nonexistent one")
	}

	// After revocation the dedup path mints a fresh token.
	fresh, err := s.GetOrCreateToken(ctx, "u1", client, "read")
	if err != nil {
		t.Fatalf("GetOrCreateToken: %v", err)
	}
	if fresh.Token() == token.Token() {
		t.Error("revoked token must not be reused by get-or-create")
	}
}

func TestRevokeTokenKeepsOriginalTimestampAndCounter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := newTestClient(t, s, "read")

	token, err := s.GetOrCreateToken(ctx, "u1", client, "read")
	if err != nil {
		t.Fatalf("GetOrCreateToken: %v", err)
	}
	if err := s.RevokeToken(ctx, token); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}

	var first model.AccessToken
	if err := s.db.First(&first, "id = ?", token.ID).Error; err != nil {
		t.Fatalf("load token row: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if err := s.RevokeToken(ctx, token); err != nil {
		t.Fatalf("second RevokeToken: %v", err)
	}

	var second model.AccessToken
	if err := s.db.First(&second, "id = ?", token.ID).Error; err != nil {
		t.Fatalf("reload token row: %v", err)
	}
	if first.Revoked == nil || second.Revoked == nil || !first.Revoked.Equal(*second.Revoked) {
		t.Errorf("revoked timestamp changed on repeat revoke: %v -> %v", first.Revoked, second.Revoked)
	}

	refreshed, err := s.FindClient(ctx, client.ID)
	if err != nil {
		t.Fatalf("FindClient: %v", err)
	}
	if refreshed.TokensRevoked != 1 {
		t.Errorf("tokens_revoked = %d, want 1 (repeat revoke must not double count)", refreshed.TokensRevoked)
	}
}

func TestTouchTokenHourlyThrottle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := newTestClient(t, s, "read")

	token, err := s.GetOrCreateToken(ctx, "u1", client, "read")
	if err != nil {
		t.Fatalf("GetOrCreateToken: %v", err)
	}

	hour := time.Now().Truncate(time.Hour)
	if err := s.TouchToken(ctx, token); err != nil {
		t.Fatalf("TouchToken: %v", err)
	}
	if token.LastAccess == nil || !token.LastAccess.Equal(hour) {
		t.Errorf("last_access = %v, want hour boundary %v", token.LastAccess, hour)
	}
	if token.PrevAccess != nil {
		t.Errorf("prev_access = %v, want nil on first access", token.PrevAccess)
	}

	// Within the same hour window the stamp must not move.
	if err := s.TouchToken(ctx, token); err != nil {
		t.Fatalf("TouchToken: %v", err)
	}
	if !token.LastAccess.Equal(hour) || token.PrevAccess != nil {
		t.Errorf("second touch within the hour changed stamps: last=%v prev=%v", token.LastAccess, token.PrevAccess)
	}

	// An access in a later hour shifts the old stamp into prev_access.
	earlier := hour.Add(-2 * time.Hour)
	token.LastAccess = &earlier
	if err := s.db.Model(&model.AccessToken{}).Where("id = ?", token.ID).
		Update("last_access", earlier).Error; err != nil {
		t.Fatalf("backdate last_access: %v", err)
	}
	if err := s.TouchToken(ctx, token); err != nil {
		t.Fatalf("TouchToken: %v", err)
	}
	if token.LastAccess == nil || !token.LastAccess.Equal(hour) {
		t.Errorf("last_access = %v, want %v", token.LastAccess, hour)
	}
	if token.PrevAccess == nil || !token.PrevAccess.Equal(earlier) {
		t.Errorf("prev_access = %v, want %v", token.PrevAccess, earlier)
	}
}

func TestTokensForClientPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := newTestClient(t, s, "read")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		token := &model.AccessToken{
			Identity:  "u1",
			ClientID:  client.ID,
			Scope:     "read",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.db.Create(token).Error; err != nil {
			t.Fatalf("create token %d: %v", i, err)
		}
	}

	tokens, err := s.TokensForClient(ctx, client.ID, 0, 2)
	if err != nil {
		t.Fatalf("TokensForClient: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("len(tokens) = %d, want 2", len(tokens))
	}
	if !tokens[0].CreatedAt.Before(tokens[1].CreatedAt) {
		t.Error("tokens not ordered by creation time")
	}

	rest, err := s.TokensForClient(ctx, client.ID, 2, 2)
	if err != nil {
		t.Fatalf("TokensForClient offset: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("len(rest) = %d, want 1", len(rest))
	}
	if !tokens[1].CreatedAt.Before(rest[0].CreatedAt) {
		t.Error("pagination broke creation-time ordering")
	}
}

func TestTokensForIdentityIncludesRevoked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := newTestClient(t, s, "read write")

	live, err := s.GetOrCreateToken(ctx, "u1", client, "read")
	if err != nil {
		t.Fatalf("GetOrCreateToken: %v", err)
	}
	gone, err := s.GetOrCreateToken(ctx, "u1", client, "write")
	if err != nil {
		t.Fatalf("GetOrCreateToken: %v", err)
	}
	if err := s.RevokeToken(ctx, gone); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if _, err := s.GetOrCreateToken(ctx, "u2", client, "read"); err != nil {
		t.Fatalf("GetOrCreateToken: %v", err)
	}

	tokens, err := s.TokensForIdentity(ctx, "u1")
	if err != nil {
		t.Fatalf("TokensForIdentity: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("len(tokens) = %d, want 2 (revoked included)", len(tokens))
	}
	for _, tok := range tokens {
		if tok.Token() != live.Token() && tok.Token() != gone.Token() {
			t.Errorf("unexpected token %q for identity u1", tok.Token())
		}
	}
}

func TestTokenCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := newTestClient(t, s, "read write")
	other := newTestClient(t, s, "read")

	t1, err := s.GetOrCreateToken(ctx, "u1", client, "read")
	if err != nil {
		t.Fatalf("GetOrCreateToken: %v", err)
	}
	if _, err := s.GetOrCreateToken(ctx, "u2", client, "read"); err != nil {
		t.Fatalf("GetOrCreateToken: %v", err)
	}
	if _, err := s.GetOrCreateToken(ctx, "u1", other, "read"); err != nil {
		t.Fatalf("GetOrCreateToken: %v", err)
	}
	if err := s.RevokeToken(ctx, t1); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}

	boolPtr := func(b bool) *bool { return &b }

	cases := []struct {
		name   string
		filter TokenCountFilter
		want   int64
	}{
		{"all", TokenCountFilter{}, 3},
		{"client", TokenCountFilter{ClientID: client.ID}, 2},
		{"revoked", TokenCountFilter{Revoked: boolPtr(true)}, 1},
		{"live", TokenCountFilter{Revoked: boolPtr(false)}, 2},
		{"client live", TokenCountFilter{ClientID: client.ID, Revoked: boolPtr(false)}, 1},
		{"recent window", TokenCountFilter{Days: 7}, 3},
		{"recent revoked", TokenCountFilter{Days: 7, Revoked: boolPtr(true)}, 1},
	}
	for _, tc := range cases {
		got, err := s.TokenCount(ctx, tc.filter)
		if err != nil {
			t.Fatalf("TokenCount(%s): %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("TokenCount(%s) = %d, want %d", tc.name, got, tc.want)
		}
	}

	// An old token falls out of the trailing window.
	old := time.Now().Add(-10 * 24 * time.Hour)
	if err := s.db.Model(&model.AccessToken{}).Where("id = ?", t1.ID).
		Updates(map[string]interface{}{"created_at": old, "revoked": old}).Error; err != nil {
		t.Fatalf("backdate token: %v", err)
	}
	got, err := s.TokenCount(ctx, TokenCountFilter{Days: 7})
	if err != nil {
		t.Fatalf("TokenCount(days=7): %v", err)
	}
	if got != 2 {
		t.Errorf("TokenCount(days=7) after backdating = %d, want 2", got)
	}
	got, err = s.TokenCount(ctx, TokenCountFilter{Days: 7, Revoked: boolPtr(true)})
	if err != nil {
		t.Fatalf("TokenCount(days=7, revoked): %v", err)
	}
	if got != 0 {
		t.Errorf("TokenCount(days=7, revoked) after backdating = %d, want 0", got)
	}
}
