package emulator

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/golang-jwt/jwt/v5"

	"github.com/turtacn/entitle/pkg/errors"
)

// Signer signs decisions with RS256.
type Signer struct {
	key *rsa.PrivateKey
}

// NewSigner loads the RSA private key at path. An empty path generates an
// ephemeral key for the life of the process.
func NewSigner(path string) (*Signer, error) {
	if path == "" {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, err
		}
		return &Signer{key: key}, nil
	}
	data, err := os.ReadFile(os.ExpandEnv(path))
	if err != nil {
		return nil, errors.ErrInvalidConfiguration("emulator.signing_key_path", err.Error())
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, errors.ErrInvalidConfiguration("emulator.signing_key_path", "not an RSA private key").WithCause(err)
	}
	return &Signer{key: key}, nil
}

// NewSignerFromKey wraps an existing key.
func NewSignerFromKey(key *rsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// Sign encodes claims as a compact RS256 token.
func (s *Signer) Sign(claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
}

// PublicKey is the verification key clients need.
func (s *Signer) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}

// PublicKeyPEM encodes the verification key as a PKIX PEM block.
func (s *Signer) PublicKeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(&s.key.PublicKey)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}
