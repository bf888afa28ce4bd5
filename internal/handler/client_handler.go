package handler

import (
	"net/http"
	"time"

	"oauth2-server/internal/store"
	"oauth2-server/pkg/logger"
	"oauth2-server/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RegisterClient creates a new OAuth client. Supplying both id and secret
// imports the credentials as-is; otherwise fresh ones are generated and the
// secret is shown in this response only.
func (h *Handler) RegisterClient(c echo.Context) error {
	log := logger.FromContext(c)

	prometheus.ClientRegistrationCounter.Inc()

	var fields store.ClientFields
	if err := c.Bind(&fields); err != nil {
		log.Error("Failed to parse client registration request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "invalid_request",
			"error_description": "Could not parse request body",
		})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	client, err := h.store.RegisterClient(c.Request().Context(), fields)
	if err != nil {
		log.Error("Failed to register client", zap.Error(err))
		return oauthError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":           client.ID,
		"secret":       client.Secret,
		"display_name": client.DisplayName,
		"link":         client.Link,
		"image_url":    client.ImageURL,
		"redirect_uri": client.RedirectURI,
		"scope":        client.ScopeList(),
		"notes":        client.Notes,
	})
}

// ListClients returns all registered clients sorted by display name.
func (h *Handler) ListClients(c echo.Context) error {
	defer prometheus.TrackDBOperation("query")(time.Now())

	clients, err := h.store.ListClients(c.Request().Context())
	if err != nil {
		logger.FromContext(c).Error("Failed to list clients", zap.Error(err))
		return oauthError(c, err)
	}
	return c.JSON(http.StatusOK, clients)
}

// GetClient retrieves client details. Revoked clients are returned too so
// that administrative tooling can audit them.
func (h *Handler) GetClient(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())

	client, err := h.store.FindClient(c.Request().Context(), c.Param("id"))
	if err != nil {
		log.Error("Client lookup failed", zap.Error(err))
		return oauthError(c, err)
	}
	if client == nil {
		return c.JSON(http.StatusNotFound, echo.Map{
			"error":             "not_found",
			"error_description": "Client not found",
		})
	}
	return c.JSON(http.StatusOK, client)
}

// UpdateClient replaces the display fields present in the request body and
// returns the refreshed client.
func (h *Handler) UpdateClient(c echo.Context) error {
	log := logger.FromContext(c)

	var fields store.ClientFields
	if err := c.Bind(&fields); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "invalid_request",
			"error_description": "Could not parse request body",
		})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	client, err := h.store.UpdateClient(c.Request().Context(), c.Param("id"), fields)
	if err != nil {
		log.Error("Failed to update client", zap.Error(err))
		return oauthError(c, err)
	}
	if client == nil {
		return c.JSON(http.StatusNotFound, echo.Map{
			"error":             "not_found",
			"error_description": "Client not found",
		})
	}
	return c.JSON(http.StatusOK, client)
}

// RevokeClient revokes the client and cascades revocation to all of its
// auth requests, grants and tokens.
func (h *Handler) RevokeClient(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := h.store.RevokeClient(c.Request().Context(), c.Param("id")); err != nil {
		log.Error("Failed to revoke client", zap.Error(err))
		return oauthError(c, err)
	}

	prometheus.ClientRevocationCounter.Inc()
	return c.NoContent(http.StatusNoContent)
}

// DeleteClient removes the client and every dependent record. Irreversible.
func (h *Handler) DeleteClient(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("delete")(time.Now())

	if err := h.store.DeleteClient(c.Request().Context(), c.Param("id")); err != nil {
		log.Error("Failed to delete client", zap.Error(err))
		return oauthError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
