// Package auth issues and verifies wallet session tokens.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ctxClaimsKey = "wallet_claims"

// Claims are the JWT claims for a wallet session token.
type Claims struct {
	jwt.RegisteredClaims
	WalletID   string `json:"wallet_id"`
	WalletName string `json:"wallet_name"`
}

// TokenIssuer issues and verifies HMAC-signed wallet session tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer.
//
//	secret — HMAC signing key.
//	issuer — the "iss" claim value; the service's base URL.
//	ttl    — token lifetime (default: 24 hours).
func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration) *TokenIssuer {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: secret, issuer: issuer, ttl: ttl}
}

// Issue creates a signed session token for a wallet.
func (t *TokenIssuer) Issue(walletID uuid.UUID, walletName string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   walletID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.New().String(),
		},
		WalletID:   walletID.String(),
		WalletName: walletName,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign wallet token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a wallet session token, returning its claims.
func (t *TokenIssuer) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify wallet token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid wallet token claims")
	}
	if _, err := uuid.Parse(claims.WalletID); err != nil {
		return nil, fmt.Errorf("invalid wallet id in token: %w", err)
	}
	return claims, nil
}

// RequireWallet is a Gin middleware that enforces a Bearer wallet token
// and injects the claims into the request context.
func RequireWallet(t *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := t.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxClaimsKey, claims)
		c.Next()
	}
}

// WalletIDFromCtx returns the authenticated wallet id, or uuid.Nil when
// the request carried no valid token.
func WalletIDFromCtx(c *gin.Context) uuid.UUID {
	v, ok := c.Get(ctxClaimsKey)
	if !ok {
		return uuid.Nil
	}
	claims, ok := v.(*Claims)
	if !ok {
		return uuid.Nil
	}
	id, err := uuid.Parse(claims.WalletID)
	if err != nil {
		return uuid.Nil
	}
	return id
}
