package handler

import (
	"net/http"
	"time"

	"oauth2-server/internal/model"
	"oauth2-server/pkg/logger"
	"oauth2-server/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CreateAuthRequest opens an interactive authorization flow. The consent
// page itself is rendered elsewhere; this endpoint only records the state
// that the grant/deny decision will act on.
func (h *Handler) CreateAuthRequest(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		ClientID     string `json:"client_id"`
		Scope        string `json:"scope"`
		RedirectURI  string `json:"redirect_uri"`
		ResponseType string `json:"response_type"`
		State        string `json:"state"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "invalid_request",
			"error_description": "Could not parse request body",
		})
	}

	client, err := h.store.FindClient(c.Request().Context(), req.ClientID)
	if err != nil {
		log.Error("Client lookup failed", zap.Error(err))
		return oauthError(c, err)
	}
	if client == nil || client.IsRevoked() {
		log.Warn("Authorization for unknown or revoked client", zap.String("client_id", req.ClientID))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "invalid_request",
			"error_description": "Unknown client",
		})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	authReq, err := h.store.CreateAuthRequest(c.Request().Context(),
		client, req.Scope, req.RedirectURI, req.ResponseType, req.State)
	if err != nil {
		log.Error("Failed to create authorization request", zap.Error(err))
		return oauthError(c, err)
	}

	return c.JSON(http.StatusCreated, authReq)
}

// GrantAuthRequest records the resource owner's decision to grant access.
// The identity comes from whatever authentication layer owns end-user
// sessions; this server only records it.
func (h *Handler) GrantAuthRequest(c echo.Context) error {
	log := logger.FromContext(c)

	var body struct {
		Identity string `json:"identity"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "invalid_request",
			"error_description": "Could not parse request body",
		})
	}

	authReq, err := h.findPendingRequest(c)
	if err != nil || authReq == nil {
		return err
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := h.store.GrantAuthRequest(c.Request().Context(), authReq, body.Identity); err != nil {
		log.Warn("Failed to grant authorization request",
			zap.String("request_id", authReq.ID), zap.Error(err))
		return oauthError(c, err)
	}

	prometheus.RecordTokenIssued(authReq.ResponseType)
	return c.JSON(http.StatusOK, authReq)
}

// DenyAuthRequest records the resource owner's decision to deny access.
func (h *Handler) DenyAuthRequest(c echo.Context) error {
	log := logger.FromContext(c)

	authReq, err := h.findPendingRequest(c)
	if err != nil || authReq == nil {
		return err
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := h.store.DenyAuthRequest(c.Request().Context(), authReq); err != nil {
		log.Warn("Failed to deny authorization request",
			zap.String("request_id", authReq.ID), zap.Error(err))
		return oauthError(c, err)
	}
	return c.JSON(http.StatusOK, authReq)
}

// findPendingRequest resolves the :id path parameter. A nil request with a
// nil error means the 404 response has already been written.
func (h *Handler) findPendingRequest(c echo.Context) (*model.AuthRequest, error) {
	authReq, err := h.store.FindAuthRequest(c.Request().Context(), c.Param("id"))
	if err != nil {
		logger.FromContext(c).Error("Authorization request lookup failed", zap.Error(err))
		return nil, oauthError(c, err)
	}
	if authReq == nil {
		return nil, c.JSON(http.StatusNotFound, echo.Map{
			"error":             "not_found",
			"error_description": "Authorization request not found",
		})
	}
	return authReq, nil
}
