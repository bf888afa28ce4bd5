package handler

import (
	"net/http"
	"strconv"
	"time"

	"oauth2-server/internal/model"
	"oauth2-server/internal/store"
	"oauth2-server/pkg/logger"
	"oauth2-server/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// IssueToken handles the OAuth2 token endpoint for client-authenticated
// requests: authorization-code redemption and client-credentials minting.
func (h *Handler) IssueToken(c echo.Context) error {
	log := logger.FromContext(c)

	client, ok := c.Get("client").(*model.Client)
	if !ok {
		log.Error("Client not found in context")
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error":             "invalid_client",
			"error_description": "Client authentication failed",
		})
	}

	if err := c.Request().ParseForm(); err != nil {
		log.Error("Failed to parse form data", zap.Error(err))
		prometheus.InvalidTokenRequestCounter.With(map[string]string{"error_type": "invalid_form"}).Inc()
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "invalid_request",
			"error_description": "Could not parse form data",
		})
	}

	grantType := c.FormValue("grant_type")
	switch grantType {
	case "authorization_code":
		return h.redeemAuthorizationCode(c, client)
	case "client_credentials":
		return h.issueClientCredentialsToken(c, client)
	default:
		log.Warn("Unsupported grant type", zap.String("grant_type", grantType))
		prometheus.InvalidTokenRequestCounter.With(map[string]string{"error_type": "unsupported_grant_type"}).Inc()
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "unsupported_grant_type",
			"error_description": "The authorization grant type is not supported",
		})
	}
}

// redeemAuthorizationCode exchanges a single-use authorization code for an
// access token. A spent, revoked or expired code gets invalid_grant, as does
// a code issued to a different client.
func (h *Handler) redeemAuthorizationCode(c echo.Context, client *model.Client) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	code := c.FormValue("code")
	if code == "" {
		prometheus.InvalidTokenRequestCounter.With(map[string]string{"error_type": "missing_code"}).Inc()
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "invalid_request",
			"error_description": "Code parameter is required",
		})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	grant, err := h.store.GrantFromCode(ctx, code)
	if err != nil {
		log.Error("Grant lookup failed", zap.Error(err))
		return oauthError(c, err)
	}
	if grant == nil || grant.ClientID != client.ID {
		prometheus.RecordGrantRedemption("unknown_code")
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "invalid_grant",
			"error_description": "Unknown authorization code",
		})
	}

	token, err := h.store.AuthorizeGrant(ctx, grant)
	if err != nil {
		prometheus.RecordGrantRedemption("rejected")
		log.Warn("Authorization code redemption failed", zap.Error(err))
		return oauthError(c, err)
	}

	prometheus.RecordGrantRedemption("redeemed")
	prometheus.RecordTokenIssued("authorization_code")
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": token.Token(),
		"token_type":   "bearer",
		"scope":        token.Scope,
	})
}

// issueClientCredentialsToken always mints a fresh token for the
// authenticated client.
func (h *Handler) issueClientCredentialsToken(c echo.Context, client *model.Client) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("insert")(time.Now())

	token, err := h.store.CreateToken(c.Request().Context(), client, c.FormValue("scope"))
	if err != nil {
		log.Error("Failed to create token", zap.Error(err))
		return oauthError(c, err)
	}

	prometheus.RecordTokenIssued("client_credentials")
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": token.Token(),
		"token_type":   "bearer",
		"scope":        token.Scope,
	})
}

// IntrospectToken reports whether a token is live and, when it is, its
// identity, client and scope. Revoked and unknown tokens look the same.
func (h *Handler) IntrospectToken(c echo.Context) error {
	log := logger.FromContext(c)

	token := c.FormValue("token")
	if token == "" {
		token = c.QueryParam("token")
	}
	if token == "" {
		log.Warn("Missing token in introspection request")
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "invalid_request",
			"error_description": "Token parameter is required",
		})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	accessToken, err := h.store.FindToken(c.Request().Context(), token)
	if err != nil {
		log.Error("Token lookup failed", zap.Error(err))
		return oauthError(c, err)
	}
	if accessToken == nil || !accessToken.IsValid() {
		return c.JSON(http.StatusOK, echo.Map{"active": false})
	}

	response := echo.Map{
		"active":    true,
		"client_id": accessToken.ClientID,
		"iat":       accessToken.CreatedAt.Unix(),
		"scope":     accessToken.Scope,
	}
	if accessToken.Identity != "" {
		response["identity"] = accessToken.Identity
	}
	if accessToken.ExpiresAt != nil {
		response["exp"] = accessToken.ExpiresAt.Unix()
	}
	return c.JSON(http.StatusOK, response)
}

// RevokeToken revokes an access token owned by the authenticated client.
func (h *Handler) RevokeToken(c echo.Context) error {
	log := logger.FromContext(c)

	client, ok := c.Get("client").(*model.Client)
	if !ok {
		log.Error("Client not found in context")
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error":             "invalid_client",
			"error_description": "Client authentication failed",
		})
	}

	tokenValue := c.FormValue("token")
	if tokenValue == "" {
		log.Warn("Missing token in revocation request")
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "invalid_request",
			"error_description": "Token parameter is required",
		})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	ctx := c.Request().Context()
	token, err := h.store.FindToken(ctx, tokenValue)
	if err != nil {
		log.Error("Token lookup failed", zap.Error(err))
		return oauthError(c, err)
	}
	// Revoking an unknown or already-revoked token succeeds silently, per
	// RFC 7009: the desired end state already holds.
	if token == nil || token.ClientID != client.ID {
		return c.NoContent(http.StatusOK)
	}

	if err := h.store.RevokeToken(ctx, token); err != nil {
		log.Error("Failed to revoke token", zap.Error(err))
		return oauthError(c, err)
	}

	prometheus.TokensRevokedCounter.Inc()
	return c.NoContent(http.StatusOK)
}

// ListTokens pages through the authenticated client's tokens by creation
// time.
func (h *Handler) ListTokens(c echo.Context) error {
	log := logger.FromContext(c)

	client, ok := c.Get("client").(*model.Client)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error":             "invalid_client",
			"error_description": "Client authentication failed",
		})
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	defer prometheus.TrackDBOperation("query")(time.Now())

	tokens, err := h.store.TokensForClient(c.Request().Context(), client.ID, offset, limit)
	if err != nil {
		log.Error("Failed to list tokens", zap.Error(err))
		return oauthError(c, err)
	}
	return c.JSON(http.StatusOK, tokens)
}

// TokenStats returns aggregate token counts for administrative reporting.
// Filters: client_id, revoked=true|false, days=N.
func (h *Handler) TokenStats(c echo.Context) error {
	log := logger.FromContext(c)

	filter := store.TokenCountFilter{
		ClientID: c.QueryParam("client_id"),
	}
	if v := c.QueryParam("revoked"); v != "" {
		revoked, err := strconv.ParseBool(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error":             "invalid_request",
				"error_description": "revoked must be true or false",
			})
		}
		filter.Revoked = &revoked
	}
	if v := c.QueryParam("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error":             "invalid_request",
				"error_description": "days must be a non-negative integer",
			})
		}
		filter.Days = days
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	count, err := h.store.TokenCount(c.Request().Context(), filter)
	if err != nil {
		log.Error("Failed to count tokens", zap.Error(err))
		return oauthError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": count})
}
