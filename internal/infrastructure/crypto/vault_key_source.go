package crypto

import (
	"context"
	stdcrypto "crypto"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/patrickmn/go-cache"
	"github.com/turtacn/entitle/internal/config"
	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/logger"
)

const vaultKeyCacheKey = "verification-key"

// VaultKeySource reads the verification key PEM from a Vault secret.
// The parsed key is cached in memory for a short while.
type VaultKeySource struct {
	client *vault.Client
	cache  *cache.Cache
	cfg    config.VaultConfig
	logger logger.Logger
}

// NewVaultKeySource creates a new VaultKeySource.
func NewVaultKeySource(client *vault.Client, cfg config.VaultConfig, log logger.Logger) *VaultKeySource {
	if cfg.Field == "" {
		cfg.Field = "public_key"
	}
	return &VaultKeySource{
		client: client,
		cache:  cache.New(5*time.Minute, 10*time.Minute),
		cfg:    cfg,
		logger: log.WithComponent("VaultKeySource"),
	}
}

// PublicKey returns the cached key or fetches it from Vault.
// Both KV v1 and KV v2 secret layouts are understood.
func (s *VaultKeySource) PublicKey(ctx context.Context) (stdcrypto.PublicKey, error) {
	if key, found := s.cache.Get(vaultKeyCacheKey); found {
		return key.(stdcrypto.PublicKey), nil
	}
	if s.cfg.KeyPath == "" {
		return nil, errors.ErrMissingConfiguration("vault.key_path")
	}

	secret, err := s.client.Logical().ReadWithContext(ctx, s.cfg.KeyPath)
	if err != nil {
		s.logger.Error(ctx, "failed to read verification key from Vault", err, logger.String("path", s.cfg.KeyPath))
		return nil, errors.ErrTransportFailure(s.cfg.KeyPath, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, errors.ErrInvalidConfiguration("vault.key_path", "no secret at "+s.cfg.KeyPath)
	}

	data := secret.Data
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}
	pemData, ok := data[s.cfg.Field].(string)
	if !ok || pemData == "" {
		return nil, errors.ErrInvalidConfiguration("vault.field", s.cfg.Field+" not found or not a string in vault secret")
	}

	key, err := ParsePublicKeyPEM([]byte(pemData))
	if err != nil {
		return nil, err
	}
	s.cache.Set(vaultKeyCacheKey, key, cache.DefaultExpiration)
	s.logger.Debug(ctx, "verification key loaded from Vault", logger.String("path", s.cfg.KeyPath))
	return key, nil
}
