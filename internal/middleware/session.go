package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flextalent-auth/internal/session"
)

// SessionAuth returns an Echo middleware that authenticates requests by
// the ft_session cookie and injects the decoded claims into the request
// context under "user_id", "email" and "role". Every failure — missing
// cookie, bad signature, malformed payload, expired token — produces
// the same 401 body, so callers learn nothing about why a session was
// rejected.
func SessionAuth(codec *session.Codec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := session.ReadFromRequest(c.Request())
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
			}
			p, err := codec.Decode(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
			}
			c.Set("user_id", p.UserID)
			c.Set("email", p.Email)
			c.Set("role", p.Role)
			return next(c)
		}
	}
}
