// Package crypto verifies signed entitlement decisions and loads the keys that verify them.
package crypto

import (
	stdcrypto "crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/turtacn/entitle/pkg/errors"
)

// JWTVerifier verifies compact JWS decisions with golang-jwt.
// Only the signature is checked; exp, nbf, iat and aud are left to the caller.
type JWTVerifier struct{}

// NewJWTVerifier creates a new JWTVerifier.
func NewJWTVerifier() *JWTVerifier {
	return &JWTVerifier{}
}

// Verify returns the payload of token once its signature verifies against key.
// The accepted algorithms follow the key type: RS* and PS* for RSA, ES* for
// ECDSA, EdDSA for Ed25519.
//
// A nil key is unverified mode. The payload is returned after a structural
// check only, so any token claiming to come from the entitlement service is
// accepted. A token that is not well-formed still fails.
func (v *JWTVerifier) Verify(token string, key stdcrypto.PublicKey) ([]byte, error) {
	token = strings.TrimSpace(token)
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errors.ErrSignatureInvalid("token is not in compact serialization")
	}

	if key == nil {
		parser := jwt.NewParser()
		if _, _, err := parser.ParseUnverified(token, jwt.MapClaims{}); err != nil {
			return nil, errors.ErrSignatureInvalid("malformed token").WithCause(err)
		}
		return decodePayload(parser, parts[1])
	}

	key, methods, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	parser := jwt.NewParser(jwt.WithValidMethods(methods), jwt.WithoutClaimsValidation())
	_, err = parser.Parse(token, func(*jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		return nil, errors.ErrSignatureInvalid(verifyFailureReason(err)).WithCause(err)
	}
	return decodePayload(parser, parts[1])
}

func decodePayload(parser *jwt.Parser, segment string) ([]byte, error) {
	payload, err := parser.DecodeSegment(segment)
	if err != nil {
		return nil, errors.ErrSignatureInvalid("payload is not base64url").WithCause(err)
	}
	return payload, nil
}

// normalizeKey returns the key in the form golang-jwt expects together with
// the algorithms it may verify.
func normalizeKey(key stdcrypto.PublicKey) (stdcrypto.PublicKey, []string, error) {
	switch k := key.(type) {
	case *rsa.PublicKey:
		return k, []string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512"}, nil
	case *ecdsa.PublicKey:
		return k, []string{"ES256", "ES384", "ES512"}, nil
	case ed25519.PublicKey:
		return k, []string{"EdDSA"}, nil
	case *ed25519.PublicKey:
		return *k, []string{"EdDSA"}, nil
	}
	return nil, nil, errors.ErrInvalidConfiguration("verification key", fmt.Sprintf("unsupported key type %T", key))
}

func verifyFailureReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature does not match"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "algorithm does not match the key type"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed token"
	}
	return err.Error()
}
