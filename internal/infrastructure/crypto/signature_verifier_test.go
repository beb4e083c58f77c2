package crypto_test

import (
	stdcrypto "crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/entitle/internal/infrastructure/crypto"
	"github.com/turtacn/entitle/pkg/errors"
)

type signingCase struct {
	name    string
	method  jwt.SigningMethod
	private interface{}
	public  stdcrypto.PublicKey
}

func signingCases(t *testing.T) []signingCase {
	t.Helper()
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	edPub, edPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	return []signingCase{
		{"RS256", jwt.SigningMethodRS256, rsaKey, &rsaKey.PublicKey},
		{"PS384", jwt.SigningMethodPS384, rsaKey, &rsaKey.PublicKey},
		{"ES256", jwt.SigningMethodES256, ecKey, &ecKey.PublicKey},
		{"EdDSA", jwt.SigningMethodEdDSA, edPriv, edPub},
	}
}

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func TestJWTVerifier_ValidSignatures(t *testing.T) {
	verifier := crypto.NewJWTVerifier()
	for _, tc := range signingCases(t) {
		t.Run(tc.name, func(t *testing.T) {
			token := sign(t, tc.method, tc.private, jwt.MapClaims{"feature.a": true, "exp": 1})
			payload, err := verifier.Verify(token, tc.public)
			require.NoError(t, err)
			assert.JSONEq(t, `{"feature.a":true,"exp":1}`, string(payload))
		})
	}
}

func TestJWTVerifier_TamperedPayload(t *testing.T) {
	verifier := crypto.NewJWTVerifier()
	for _, tc := range signingCases(t) {
		t.Run(tc.name, func(t *testing.T) {
			token := sign(t, tc.method, tc.private, jwt.MapClaims{"feature.a": false})
			parts := strings.Split(token, ".")
			forged := sign(t, tc.method, tc.private, jwt.MapClaims{"feature.a": true})
			parts[1] = strings.Split(forged, ".")[1]

			_, err := verifier.Verify(strings.Join(parts, "."), tc.public)
			require.Error(t, err)
			assert.True(t, errors.IsIntegrityError(err))
		})
	}
}

func TestJWTVerifier_AlgorithmKeyMismatch(t *testing.T) {
	cases := signingCases(t)
	rsaCase, ecCase := cases[0], cases[2]
	token := sign(t, rsaCase.method, rsaCase.private, jwt.MapClaims{"a": true})

	_, err := crypto.NewJWTVerifier().Verify(token, ecCase.public)
	require.Error(t, err)
	assert.True(t, errors.IsIntegrityError(err))

	hmac := sign(t, jwt.SigningMethodHS256, []byte("shared"), jwt.MapClaims{"a": true})
	_, err = crypto.NewJWTVerifier().Verify(hmac, rsaCase.public)
	assert.True(t, errors.IsIntegrityError(err))
}

func TestJWTVerifier_UnverifiedMode(t *testing.T) {
	cases := signingCases(t)
	token := sign(t, cases[0].method, cases[0].private, jwt.MapClaims{"feature.a": true})

	payload, err := crypto.NewJWTVerifier().Verify(token, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"feature.a":true}`, string(payload))

	_, err = crypto.NewJWTVerifier().Verify("definitely-not-a-token", nil)
	assert.True(t, errors.IsIntegrityError(err))

	_, err = crypto.NewJWTVerifier().Verify("e30.!!!.sig", nil)
	assert.True(t, errors.IsIntegrityError(err))
}

func TestJWTVerifier_UnsupportedKey(t *testing.T) {
	cases := signingCases(t)
	token := sign(t, cases[0].method, cases[0].private, jwt.MapClaims{"a": true})

	_, err := crypto.NewJWTVerifier().Verify(token, "not a key")
	require.Error(t, err)
	assert.True(t, errors.IsConfigurationError(err))
}
