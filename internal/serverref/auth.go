// SPDX-License-Identifier: Apache-2.0

package serverref

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims is the registered-claims shape signed into every issued
// token, grounded on go-pass-keeper's models.Token/utils.GenerateJWTToken
// (iss/sub/iat/exp, sub carrying the account identifier).
type tokenClaims struct {
	jwt.RegisteredClaims
}

// tokenIssuer authenticates and verifies JWTs used as sync-server bearer
// tokens.
type tokenIssuer struct {
	signKey  string
	issuer   string
	duration time.Duration
}

func newTokenIssuer(signKey, issuer string, duration time.Duration) *tokenIssuer {
	return &tokenIssuer{signKey: signKey, issuer: issuer, duration: duration}
}

func (t *tokenIssuer) issue(userUUID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(t.duration)
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   userUUID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(t.signKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("serverref: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (t *tokenIssuer) parse(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(*jwt.Token) (any, error) {
		return []byte(t.signKey), nil
	}, jwt.WithIssuer(t.issuer))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || claims.Subject == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}

func bearerToken(authHeader string) (string, error) {
	const prefix = "Bearer "
	if len(authHeader) <= len(prefix) || authHeader[:len(prefix)] != prefix {
		return "", errors.New("serverref: missing or malformed Authorization header")
	}
	return authHeader[len(prefix):], nil
}
