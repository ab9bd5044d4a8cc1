package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
)

// TokenVerifier checks a Firebase ID token. *auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// RequireAuth verifies the bearer ID token of API requests and stores the
// caller identity on the context.
func RequireAuth(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if verifier == nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "authentication is not configured")
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || strings.TrimSpace(token) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			decoded, err := verifier.VerifyIDToken(c.Request().Context(), strings.TrimSpace(token))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			c.Set("userUID", decoded.UID)
			if email, ok := decoded.Claims["email"].(string); ok {
				c.Set("userEmail", email)
			}
			if name, ok := decoded.Claims["name"].(string); ok {
				c.Set("userName", name)
			}
			return next(c)
		}
	}
}

// AllowAll marks every request as coming from a local operator. Used when
// AUTH_DISABLED is set.
func AllowAll() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("userUID", "local")
			return next(c)
		}
	}
}
