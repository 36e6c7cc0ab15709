package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// VisitorTokenTTL is the lifetime of a visitor identity token.
const VisitorTokenTTL = 365 * 24 * time.Hour

const visitorIssuer = "cio-harness"

// GenerateVisitorToken signs an HS256 token whose subject is the visitor ID.
func GenerateVisitorToken(visitorID string, signingKey []byte, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    visitorIssuer,
		Subject:   visitorID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(VisitorTokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("sign visitor token: %w", err)
	}
	return signed, nil
}

// ValidateVisitorToken verifies the token and returns the visitor ID it carries.
func ValidateVisitorToken(tokenString string, signingKey []byte) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return signingKey, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Issuer != visitorIssuer {
		return "", errors.New("invalid visitor token")
	}
	if !IsULID(claims.Subject) {
		return "", errors.New("visitor token subject is not a ULID")
	}
	return claims.Subject, nil
}
