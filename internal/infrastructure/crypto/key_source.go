package crypto

import (
	"context"
	stdcrypto "crypto"
	"os"

	"github.com/golang-jwt/jwt/v5"
	vault "github.com/hashicorp/vault/api"
	"github.com/turtacn/entitle/internal/config"
	"github.com/turtacn/entitle/internal/domain/service"
	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/logger"
)

// ParsePublicKeyPEM parses a PEM encoded RSA, ECDSA or Ed25519 public key.
func ParsePublicKeyPEM(data []byte) (stdcrypto.PublicKey, error) {
	if rsaKey, err := jwt.ParseRSAPublicKeyFromPEM(data); err == nil {
		return rsaKey, nil
	}
	if ecKey, err := jwt.ParseECPublicKeyFromPEM(data); err == nil {
		return ecKey, nil
	}
	edKey, err := jwt.ParseEdPublicKeyFromPEM(data)
	if err != nil {
		return nil, errors.ErrInvalidConfiguration("verification key", "not a PEM encoded RSA, ECDSA or Ed25519 public key").WithCause(err)
	}
	return edKey, nil
}

// StaticKeySource always yields the same key. A nil key is unverified mode.
type StaticKeySource struct {
	key stdcrypto.PublicKey
}

func NewStaticKeySource(key stdcrypto.PublicKey) *StaticKeySource {
	return &StaticKeySource{key: key}
}

func (s *StaticKeySource) PublicKey(context.Context) (stdcrypto.PublicKey, error) {
	return s.key, nil
}

// NewKeySource builds the verification key source selected by
// oauth.public_key_source.
func NewKeySource(oauthCfg config.OAuthConfig, vaultCfg config.VaultConfig, log logger.Logger) (service.KeySource, error) {
	switch oauthCfg.PublicKeySource {
	case "", "none":
		log.Warn(context.Background(), "signed decisions will be accepted without verification")
		return NewStaticKeySource(nil), nil
	case "inline":
		key, err := ParsePublicKeyPEM([]byte(oauthCfg.PublicKeyPEM))
		if err != nil {
			return nil, err
		}
		return NewStaticKeySource(key), nil
	case "file":
		data, err := os.ReadFile(os.ExpandEnv(oauthCfg.PublicKeyPath))
		if err != nil {
			return nil, errors.ErrInvalidConfiguration("oauth.public_key_path", err.Error()).WithCause(err)
		}
		key, err := ParsePublicKeyPEM(data)
		if err != nil {
			return nil, err
		}
		return NewStaticKeySource(key), nil
	case "vault":
		vc := vault.DefaultConfig()
		if vaultCfg.Address != "" {
			vc.Address = vaultCfg.Address
		}
		client, err := vault.NewClient(vc)
		if err != nil {
			return nil, errors.ErrInvalidConfiguration("vault.address", err.Error()).WithCause(err)
		}
		if vaultCfg.Token != "" {
			client.SetToken(vaultCfg.Token)
		}
		return NewVaultKeySource(client, vaultCfg, log), nil
	}
	return nil, errors.ErrInvalidConfiguration("oauth.public_key_source", "unknown source "+oauthCfg.PublicKeySource)
}
