package handler

import (
	"errors"
	"net/http"

	"oauth2-server/internal/store"

	"github.com/labstack/echo/v4"
)

// Handler serves the OAuth2 and admin endpoints on top of the store.
type Handler struct {
	store *store.Store
}

// New builds a handler over the given store.
func New(s *store.Store) *Handler {
	return &Handler{store: s}
}

// oauthError maps store error kinds onto OAuth2 protocol responses.
func oauthError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, store.ErrInvalidGrant):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "invalid_grant",
			"error_description": err.Error(),
		})
	case errors.Is(err, store.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "invalid_request",
			"error_description": err.Error(),
		})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "server_error",
		})
	}
}
