package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/scriptguard/pkg/models"
)

// TokenService handles JWT token creation and validation for the admin
// panel. Tokens are stateless: the claims carry the account id and the
// middleware re-reads the account row so tier changes (e.g. an invite
// redeemed mid-session) take effect immediately.
type TokenService struct {
	secretKey []byte
	tokenTTL  time.Duration
}

// JWTClaims represents the claims in our JWT tokens
type JWTClaims struct {
	AccountID int64  `json:"account_id"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// NewTokenService creates a new token service
func NewTokenService(secretKey string, tokenTTL time.Duration) *TokenService {
	return &TokenService{secretKey: []byte(secretKey), tokenTTL: tokenTTL}
}

// IssueToken creates a signed access token for an account.
func (ts *TokenService) IssueToken(account *models.Account) (string, time.Time, error) {
	expiresAt := time.Now().Add(ts.tokenTTL)
	claims := &JWTClaims{
		AccountID: account.ID,
		Email:     account.Email,
		IsAdmin:   account.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", account.ID),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    "scriptguard",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken parses and verifies an access token.
func (ts *TokenService) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secretKey, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
