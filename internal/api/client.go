// client.go - Browser client identification
package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ClientCookieName carries the id that selects a browser's settings cache.
const ClientCookieName = "slidewizard_client"

// clientCookieMaxAge keeps the id for a year, like browser local storage.
const clientCookieMaxAge = 365 * 24 * 60 * 60

// clientID returns the caller's client id, issuing a new cookie when the
// request has none or an unusable one.
func clientID(c echo.Context) string {
	if ck, err := c.Cookie(ClientCookieName); err == nil {
		if id, err := uuid.Parse(ck.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     ClientCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   clientCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
