package handlers

import (
	"github.com/fampita/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// currentUser returns the authenticated user stored by the JWT
// middleware, or nil when the request is unauthenticated.
func currentUser(c echo.Context) *models.User {
	user, ok := c.Get("user").(*models.User)
	if !ok {
		return nil
	}
	return user
}
