package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"oauth2-server/internal/store"
	"oauth2-server/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ClientAuth validates client credentials on OAuth2 endpoints. Credentials
// arrive as HTTP Basic auth; the secret comparison is constant time.
func ClientAuth(s *store.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("Missing client authentication")
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error":             "invalid_client",
					"error_description": "Client authentication required",
				})
			}

			if !strings.HasPrefix(authHeader, "Basic ") {
				log.Warn("Invalid authentication scheme")
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error":             "invalid_client",
					"error_description": "Client authentication must use Basic scheme",
				})
			}

			clientID, clientSecret, err := parseBasicAuth(authHeader[6:])
			if err != nil {
				log.Warn("Invalid Basic auth header", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error":             "invalid_client",
					"error_description": "Invalid client credentials format",
				})
			}

			client, err := s.FindClient(c.Request().Context(), clientID)
			if err != nil {
				log.Error("Client lookup failed", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{
					"error": "server_error",
				})
			}
			if client == nil || client.IsRevoked() {
				log.Warn("Client not found or revoked", zap.String("client_id", clientID))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error":             "invalid_client",
					"error_description": "Unknown client or client is revoked",
				})
			}

			if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(clientSecret)) != 1 {
				log.Warn("Invalid client secret", zap.String("client_id", clientID))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error":             "invalid_client",
					"error_description": "Invalid client credentials",
				})
			}

			c.Set("client", client)
			c.Set("client_id", client.ID)

			log = log.With(zap.String("client_id", client.ID))
			c.Set("logger", log)

			return next(c)
		}
	}
}

// BearerToken validates access tokens on protected resource endpoints and
// stamps the token's hourly access time.
func BearerToken(s *store.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("Missing access token")
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error":             "invalid_token",
					"error_description": "Access token required",
				})
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Warn("Invalid token scheme")
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error":             "invalid_token",
					"error_description": "Token must use Bearer scheme",
				})
			}

			tokenString := authHeader[7:]

			// Revoked and unknown tokens both come back nil here.
			token, err := s.FindToken(c.Request().Context(), tokenString)
			if err != nil {
				log.Error("Token lookup failed", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{
					"error": "server_error",
				})
			}
			if token == nil {
				log.Warn("Token not found or revoked")
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error":             "invalid_token",
					"error_description": "The access token is invalid",
				})
			}

			if token.IsExpired() {
				log.Warn("Expired token", zap.String("client_id", token.ClientID))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error":             "invalid_token",
					"error_description": "The access token has expired",
				})
			}

			if err := s.TouchToken(c.Request().Context(), token); err != nil {
				// Access stamping is advisory; the request still proceeds.
				log.Warn("Failed to stamp token access time", zap.Error(err))
			}

			c.Set("access_token", token)
			c.Set("client_id", token.ClientID)
			c.Set("identity", token.Identity)

			log = log.With(
				zap.String("client_id", token.ClientID),
				zap.String("identity", token.Identity),
			)
			c.Set("logger", log)

			return next(c)
		}
	}
}

// parseBasicAuth splits a Base64 Basic auth payload into id and secret.
func parseBasicAuth(auth string) (string, string, error) {
	decoded, err := base64.StdEncoding.DecodeString(auth)
	if err != nil {
		return "", "", fmt.Errorf("invalid Base64 encoding in Authorization header: %w", err)
	}

	decodedString := string(decoded)
	colonIndex := strings.IndexByte(decodedString, ':')
	if colonIndex < 0 {
		return "", "", fmt.Errorf("invalid Basic auth format: missing colon separator")
	}

	clientID := decodedString[:colonIndex]
	clientSecret := decodedString[colonIndex+1:]
	if clientID == "" {
		return "", "", fmt.Errorf("missing client ID in Basic auth")
	}

	return clientID, clientSecret, nil
}
