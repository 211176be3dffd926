// middleware/security_headers.go
package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityConfig tunes the response security headers. The API serves JSON
// plus one websocket upgrade, so the CSP defaults are strict: no scripts,
// no frames, connect-src limited to the dashboard origins and the event
// stream.
type SecurityConfig struct {
	// DashboardOrigins are the origins the dashboard is served from; they
	// end up in connect-src alongside the websocket endpoints.
	DashboardOrigins []string

	// AllowInlineJS loosens script-src for embedded tooling pages. The API
	// itself serves no HTML, so this stays off outside development.
	AllowInlineJS bool
}

// DefaultSecurityConfig is the production posture for the commission API.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		DashboardOrigins: []string{
			"https://commtrack.app",
			"https://www.commtrack.app",
		},
	}
}

// SecurityHeadersWithConfig applies the security headers to every response.
func SecurityHeadersWithConfig(config SecurityConfig) echo.MiddlewareFunc {
	csp := buildCSP(config)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			h.Set("Content-Security-Policy", csp)
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
			h.Set("Cache-Control", "no-store")

			h.Del("Server")
			h.Del("X-Powered-By")

			return next(c)
		}
	}
}

func buildCSP(config SecurityConfig) string {
	connectSrc := []string{"'self'", "ws:", "wss:"}
	connectSrc = append(connectSrc, config.DashboardOrigins...)

	csp := []string{
		"default-src 'none'",
		"connect-src " + strings.Join(connectSrc, " "),
		"frame-ancestors 'none'",
	}

	if config.AllowInlineJS {
		csp = append(csp, "script-src 'self' 'unsafe-inline'")
	}

	return strings.Join(csp, "; ")
}
