package config

import (
	"time"

	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/utils"
)

// Config holds the application's configuration.
type Config struct {
	OAuth       OAuthConfig       `mapstructure:"oauth"`
	Entitlement EntitlementConfig `mapstructure:"entitlement"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Pending     PendingConfig     `mapstructure:"pending"`
	Surface     SurfaceConfig     `mapstructure:"surface"`
	Audit       AuditConfig       `mapstructure:"audit"`
	Vault       VaultConfig       `mapstructure:"vault"`
	Emulator    EmulatorConfig    `mapstructure:"emulator"`
	Log         LogConfig         `mapstructure:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
}

// OAuthConfig is the immutable client configuration of the identity provider.
// The authorization endpoint and client id are mandatory.
type OAuthConfig struct {
	AuthorizationEndpoint string              `mapstructure:"authorization_endpoint" validate:"required,url"`
	TokenEndpoint         string              `mapstructure:"token_endpoint" validate:"omitempty,url"`
	UserInfoEndpoint      string              `mapstructure:"userinfo_endpoint" validate:"omitempty,url"`
	ClientID              string              `mapstructure:"client_id" validate:"required"`
	ClientSecret          string              `mapstructure:"client_secret"`
	RedirectURI           string              `mapstructure:"redirect_uri" validate:"omitempty,url"`
	Scope                 string              `mapstructure:"scope"`
	Grant                 constants.GrantKind `mapstructure:"grant" validate:"oneof=authorization_code implicit"`

	// PublicKeySource selects where the service verification key comes from:
	// none (unverified decisions), file, inline or vault.
	PublicKeySource string `mapstructure:"public_key_source" validate:"oneof=none file inline vault"`
	PublicKeyPath   string `mapstructure:"public_key_path"`
	PublicKeyPEM    string `mapstructure:"public_key_pem"`
}

type EntitlementConfig struct {
	BaseURL        string                   `mapstructure:"base_url" validate:"omitempty,url"`
	ResponseFormat constants.ResponseFormat `mapstructure:"response_format" validate:"oneof=jwt json plain"`
	Timeout        time.Duration            `mapstructure:"timeout"`
}

type StorageConfig struct {
	Driver string      `mapstructure:"driver" validate:"oneof=file redis s3 memory"`
	File   FileConfig  `mapstructure:"file"`
	Redis  RedisConfig `mapstructure:"redis"`
	S3     S3Config    `mapstructure:"s3"`
}

type FileConfig struct {
	Dir string `mapstructure:"dir"`
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	Secure    bool   `mapstructure:"secure"`
}

// PendingConfig selects the ledger of consumed grants awaiting release.
type PendingConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres memory"`
	DSN    string `mapstructure:"dsn"`
}

type SurfaceConfig struct {
	Mode        string        `mapstructure:"mode" validate:"oneof=loopback paste"`
	OpenBrowser bool          `mapstructure:"open_browser"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type AuditConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// SigningKey, when set, adds an HMAC-SHA256 signature header to every event.
	SigningKey string `mapstructure:"signing_key"`
}

type VaultConfig struct {
	Address string `mapstructure:"address"`
	Token   string `mapstructure:"token"`
	KeyPath string `mapstructure:"key_path"`
	Field   string `mapstructure:"field"`
}

// EmulatorConfig configures the local entitlement service emulator.
type EmulatorConfig struct {
	ListenAddress  string          `mapstructure:"listen_address"`
	SigningKeyPath string          `mapstructure:"signing_key_path"`
	Grants         map[string]bool `mapstructure:"grants"`
	GrantTTL       time.Duration   `mapstructure:"grant_ttl"`
	// AcceptedTokens restricts the bearer tokens the emulator honours; empty accepts any.
	AcceptedTokens []string `mapstructure:"accepted_tokens"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	PprofEnabled   bool     `mapstructure:"pprof_enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	Environment    string  `mapstructure:"environment"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	return c.OAuth.validateDependencies()
}

func (o *OAuthConfig) validateDependencies() error {
	if o.Grant == constants.GrantAuthorizationCode && o.TokenEndpoint == "" {
		return errors.ErrMissingConfiguration("oauth.token_endpoint")
	}
	switch o.PublicKeySource {
	case "file":
		if o.PublicKeyPath == "" {
			return errors.ErrMissingConfiguration("oauth.public_key_path")
		}
	case "inline":
		if o.PublicKeyPEM == "" {
			return errors.ErrMissingConfiguration("oauth.public_key_pem")
		}
	}
	return nil
}

// RedirectPrefix is the URI prefix the interactive surface watches for.
// Query and fragment of the configured redirect URI are not part of the prefix.
func (o *OAuthConfig) RedirectPrefix() string {
	uri := o.RedirectURI
	for i := 0; i < len(uri); i++ {
		if uri[i] == '?' || uri[i] == '#' {
			return uri[:i]
		}
	}
	return uri
}
