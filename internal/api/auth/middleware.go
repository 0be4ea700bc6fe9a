package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/scriptguard/pkg/models"
)

// Common auth errors
var (
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Context key for the authenticated account.
const AccountContextKey = "account"

// AccountStore resolves accounts for the middleware. *store.Storage
// satisfies it.
type AccountStore interface {
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
}

// RequireAuth validates the Bearer token and loads the account into the
// echo context. The account row is the source of truth for tier and
// admin status; the token only identifies the account.
func RequireAuth(tokenService *TokenService, accounts AccountStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			claims, err := tokenService.ValidateToken(tokenParts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			account, err := accounts.GetAccount(c.Request().Context(), claims.AccountID)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load account")
			}
			if account == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Account no longer exists")
			}

			c.Set(AccountContextKey, account)
			return next(c)
		}
	}
}

// RequireAdmin allows only accounts with the admin capability through.
// Must be chained after RequireAuth.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			account := AccountFromContext(c)
			if account == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}
			if !account.IsAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "Admin only")
			}
			return next(c)
		}
	}
}

// AccountFromContext returns the authenticated account, or nil.
func AccountFromContext(c echo.Context) *models.Account {
	account, _ := c.Get(AccountContextKey).(*models.Account)
	return account
}
