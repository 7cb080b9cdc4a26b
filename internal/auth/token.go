// Package auth validates the bearer credential presented at handshake.
// The hub never issues tokens; it only checks signature and expiry and
// extracts the subject identity.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/avencel/studyhub/internal/core"
	"github.com/avencel/studyhub/internal/domain"
)

// Claims is the payload stored inside the credential.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates signature and expiry of a credential string
// and returns the subject identity id.
func (v *Verifier) Verify(tokenString string) (domain.UserID, error) {
	if tokenString == "" {
		return "", fmt.Errorf("%w: missing credential", core.ErrAuth)
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrAuth, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", fmt.Errorf("%w: invalid claims", core.ErrAuth)
	}
	return domain.UserID(claims.UserID), nil
}

// Sign creates a credential for a user. Kept for tests and local tooling;
// production credentials come from the auth service.
func (v *Verifier) Sign(userID domain.UserID, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID: string(userID),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "studyhub",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
