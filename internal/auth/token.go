package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/talkincode/wadesk/internal/domain"
)

// TokenTTL lifetime of a session token
const TokenTTL = 8 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

// Claims session claims carried by the signed token
type Claims struct {
	UserID           int64   `json:"userId,string"`
	TenantID         int64   `json:"tenantId,string"`
	Username         string  `json:"username"`
	Role             string  `json:"role"`
	AllowedInstances []int64 `json:"allowedInstances,omitempty"`
	jwt.RegisteredClaims
}

// Validate runs inside jwt parsing, for ParseToken and the echo-jwt gate
// alike. Sessions without a tenant belong to the system tenant.
func (c *Claims) Validate() error {
	c.normalize()
	return nil
}

func (c *Claims) normalize() {
	if c.TenantID == 0 {
		c.TenantID = domain.SystemTenantID
	}
}

// CanUseInstance reports whether the session may see the instance. An empty
// allow list means every instance of the tenant.
func (c *Claims) CanUseInstance(id int64) bool {
	if len(c.AllowedInstances) == 0 {
		return true
	}
	for _, allowed := range c.AllowedInstances {
		if allowed == id {
			return true
		}
	}
	return false
}

// IssueToken signs claims with HS256, expiring TokenTTL after now
func IssueToken(secret string, claims Claims, now time.Time) (string, error) {
	claims.normalize()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(TokenTTL))
	claims.Subject = claims.Username
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies signature and expiry. Every failure is reported as
// ErrInvalidToken without detail.
func ParseToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	claims.normalize()
	return claims, nil
}
