package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/shipfolio/shipfolio/ratelimit"
)

// RoutePolicy is a fixed-window quota for one route.
type RoutePolicy struct {
	Limit  int
	Window time.Duration
}

// rateLimitPolicy is fixed at build time. Routes not listed here are never
// rate limited, but every response still gets the security headers.
var rateLimitPolicy = map[string]RoutePolicy{
	"/api/newsletter/subscribe": {Limit: 5, Window: time.Minute},
	"/api/analytics/track":      {Limit: 30, Window: time.Minute},
}

const contentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline' https://plausible.io; " +
	"style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data: https:; " +
	"connect-src 'self' https://plausible.io; " +
	"frame-ancestors 'none'"

// SecurityHeaders attaches the standard security response headers to every
// response, rate limited or not. HSTS is production-only so local HTTP
// development does not get pinned to HTTPS.
func SecurityHeaders(production bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("X-XSS-Protection", "1; mode=block")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			h.Set("Content-Security-Policy", contentSecurityPolicy)
			if production {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			return next(c)
		}
	}
}

// RateLimit gates the routes named in rateLimitPolicy, keyed by client IP
// and route path. Denials answer 429 with Retry-After; allowed requests
// still carry the X-RateLimit-* headers reflecting the remaining quota.
func RateLimit(limiter *ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			policy, ok := rateLimitPolicy[c.Path()]
			if !ok {
				return next(c)
			}

			key := clientIP(c.Request()) + ":" + c.Path()
			d := limiter.Allow(c.Request().Context(), key, policy.Limit, policy.Window)

			reset := int(time.Until(d.ResetAt).Round(time.Second).Seconds())
			if reset < 1 {
				reset = 1
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.Itoa(reset))

			if !d.Allowed {
				h.Set("Retry-After", strconv.Itoa(reset))
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "Too many requests, please try again later",
				})
			}

			return next(c)
		}
	}
}

// clientIP resolves the caller's address from proxy headers, trusting the
// first X-Forwarded-For hop. Spoofable without a trusted proxy in front,
// which is acceptable for abuse mitigation.
func clientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}

	return "127.0.0.1"
}
