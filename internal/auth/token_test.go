package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-key"

func newHS256(t *testing.T) *TokenValidator {
	t.Helper()
	v, err := NewTokenValidator(testSecret, "HS256")
	require.NoError(t, err)
	return v
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestGenerateAndValidate(t *testing.T) {
	v := newHS256(t)

	token, err := v.GenerateToken("alice", time.Hour)
	require.NoError(t, err)

	id, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", id)
	assert.Equal(t, "HS256", v.Algorithm())
}

func TestValidate_ClaimPrecedence(t *testing.T) {
	v := newHS256(t)
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   string
		err    error
	}{
		{"user_id wins", jwt.MapClaims{"user_id": "alice", "sub": "bob", "exp": exp}, "alice", nil},
		{"sub fallback", jwt.MapClaims{"sub": "bob", "exp": exp}, "bob", nil},
		{"empty user_id falls back", jwt.MapClaims{"user_id": "", "sub": "bob"}, "bob", nil},
		{"numeric user_id", jwt.MapClaims{"user_id": 42}, "42", nil},
		{"no exp is accepted", jwt.MapClaims{"user_id": "carol"}, "carol", nil},
		{"no identity", jwt.MapClaims{"exp": exp}, "", ErrMissingIdentityClaim},
		{"non-scalar identity", jwt.MapClaims{"user_id": []string{"x"}}, "", ErrMissingIdentityClaim},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id, err := v.Validate(sign(t, jwt.SigningMethodHS256, []byte(testSecret), tc.claims))
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, id)
		})
	}
}

func TestValidate_Expired(t *testing.T) {
	v := newHS256(t)

	token, err := v.GenerateToken("alice", -time.Hour)
	require.NoError(t, err)

	_, err = v.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidate_Invalid(t *testing.T) {
	v := newHS256(t)
	claims := jwt.MapClaims{"user_id": "alice"}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"garbage", "invalid-token-string"},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other-key"), claims)},
		{"wrong algorithm", sign(t, jwt.SigningMethodHS512, []byte(testSecret), claims)},
		{"unsigned", sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, claims)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(tc.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewTokenValidator_Errors(t *testing.T) {
	_, err := NewTokenValidator(testSecret, "none")
	assert.Error(t, err)

	_, err = NewTokenValidator(testSecret, "PS256")
	assert.Error(t, err)

	_, err = NewTokenValidator("", "HS256")
	assert.Error(t, err)

	_, err = NewTokenValidator("not a pem key", "RS256")
	assert.Error(t, err)
}

func TestValidate_RSA(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := NewTokenValidator(string(pub), "RS256")
	require.NoError(t, err)

	id, err := v.Validate(sign(t, jwt.SigningMethodRS256, priv, jwt.MapClaims{"sub": "dave"}))
	require.NoError(t, err)
	assert.Equal(t, "dave", id)

	// A public key cannot mint tokens.
	_, err = v.GenerateToken("dave", time.Hour)
	assert.Error(t, err)
}

func TestValidate_ECDSA(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := NewTokenValidator(string(pub), "ES256")
	require.NoError(t, err)

	id, err := v.Validate(sign(t, jwt.SigningMethodES256, priv, jwt.MapClaims{"user_id": "erin"}))
	require.NoError(t, err)
	assert.Equal(t, "erin", id)
}
