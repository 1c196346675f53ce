package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"table-ordering-service/internal/entity"
	"table-ordering-service/internal/service"
)

const claimsKey = "staff"

func rateLimiter(limit float64, burst int) echo.MiddlewareFunc {
	tooMany := func(c echo.Context) error {
		return c.JSON(http.StatusTooManyRequests, envelope{Success: false, Error: "rate limit exceeded"})
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(limit),
				Burst:     burst,
				ExpiresIn: 3 * time.Minute,
			}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return tooMany(c)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			logger.Warn().Str("ip", identifier).Str("path", c.Path()).Msg("rate limit exceeded")
			return tooMany(c)
		},
	})
}

// staffAuth validates the bearer token and stores its claims on the context.
func staffAuth(secret string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: "HS256",
		ContextKey:    claimsKey,
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return new(service.StaffClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, envelope{Success: false, Error: "invalid or missing staff token"})
		},
	})
}

// staffClaims returns the claims stored by staffAuth.
func staffClaims(c echo.Context) *service.StaffClaims {
	tok, isToken := c.Get(claimsKey).(*jwt.Token)
	if !isToken {
		return nil
	}
	claims, _ := tok.Claims.(*service.StaffClaims)
	return claims
}

func staffID(c echo.Context) string {
	if claims := staffClaims(c); claims != nil {
		return claims.Subject
	}
	return ""
}

func requireRole(min entity.StaffRole) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := staffClaims(c)
			if claims == nil {
				return c.JSON(http.StatusUnauthorized, envelope{Success: false, Error: "invalid or missing staff token"})
			}
			if !claims.Role.AtLeast(min) {
				return c.JSON(http.StatusForbidden, envelope{Success: false, Error: "requires " + string(min) + " role"})
			}
			return next(c)
		}
	}
}

func secretMatches(got, want string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// apiKeyAuth guards machine endpoints with the X-API-Key header.
func apiKeyAuth(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !secretMatches(c.Request().Header.Get("X-API-Key"), key) {
				return c.JSON(http.StatusUnauthorized, envelope{Success: false, Error: "invalid API key"})
			}
			return next(c)
		}
	}
}

// cronAuth accepts "Authorization: Bearer <secret>" from the scheduler.
func cronAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			token := strings.TrimPrefix(auth, "Bearer ")
			if token == auth || !secretMatches(token, secret) {
				return c.JSON(http.StatusUnauthorized, envelope{Success: false, Error: "unauthorized"})
			}
			return next(c)
		}
	}
}
