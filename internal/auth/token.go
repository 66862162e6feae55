// Package auth validates bearer tokens presented with verification requests
// and extracts the identity they assert.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken         = errors.New("invalid token")
	ErrExpiredToken         = errors.New("token has expired")
	ErrMissingIdentityClaim = errors.New("token carries no user identity")
)

// IdentityClaim is read first; SubjectClaim is the fallback.
const (
	IdentityClaim = "user_id"
	SubjectClaim  = "sub"
)

// SupportedAlgorithms lists the signing algorithms a TokenValidator accepts.
var SupportedAlgorithms = []string{
	"HS256", "HS384", "HS512",
	"RS256", "RS384", "RS512",
	"ES256", "ES384", "ES512",
}

// TokenValidator checks token signatures with one configured key and algorithm.
type TokenValidator struct {
	method    jwt.SigningMethod
	verifyKey any
	signKey   any
	parser    *jwt.Parser
}

// NewTokenValidator creates a validator for algorithm. For HMAC algorithms
// secret is the shared key. For RSA and ECDSA it is a PEM encoded public key
// and the validator cannot mint tokens.
func NewTokenValidator(secret, algorithm string) (*TokenValidator, error) {
	method := jwt.GetSigningMethod(algorithm)
	if method == nil || !slices.Contains(SupportedAlgorithms, algorithm) {
		return nil, fmt.Errorf("unsupported token algorithm %q", algorithm)
	}
	if secret == "" {
		return nil, errors.New("token secret is required")
	}

	v := &TokenValidator{
		method: method,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{method.Alg()})),
	}

	switch method.(type) {
	case *jwt.SigningMethodHMAC:
		v.verifyKey = []byte(secret)
		v.signKey = []byte(secret)
	case *jwt.SigningMethodRSA:
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(secret))
		if err != nil {
			return nil, fmt.Errorf("parsing RSA public key: %w", err)
		}
		v.verifyKey = key
	case *jwt.SigningMethodECDSA:
		key, err := jwt.ParseECPublicKeyFromPEM([]byte(secret))
		if err != nil {
			return nil, fmt.Errorf("parsing ECDSA public key: %w", err)
		}
		v.verifyKey = key
	}
	return v, nil
}

// Algorithm returns the configured signing algorithm.
func (v *TokenValidator) Algorithm() string {
	return v.method.Alg()
}

// Validate verifies the token signature and expiry and returns the identity
// from the user_id claim, falling back to sub. Expiry is enforced when the
// token carries an exp claim.
func (v *TokenValidator) Validate(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}

	claims := jwt.MapClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.verifyKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}
	if !parsed.Valid {
		return "", ErrInvalidToken
	}

	if id := claimString(claims[IdentityClaim]); id != "" {
		return id, nil
	}
	if id := claimString(claims[SubjectClaim]); id != "" {
		return id, nil
	}
	return "", ErrMissingIdentityClaim
}

// claimString renders string and numeric claim values as identities.
func claimString(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(c, 10)
	default:
		return ""
	}
}

// Claims are the claims written by GenerateToken.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for identity that expires after ttl. Only
// HMAC validators hold a signing key.
func (v *TokenValidator) GenerateToken(identity string, ttl time.Duration) (string, error) {
	if v.signKey == nil {
		return "", fmt.Errorf("algorithm %s: signing requires a private key", v.method.Alg())
	}
	if identity == "" {
		return "", errors.New("identity is required")
	}

	now := time.Now()
	token := jwt.NewWithClaims(v.method, Claims{
		UserID: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(v.signKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
