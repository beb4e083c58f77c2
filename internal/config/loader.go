package config

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/logger"
)

// LoadConfig loads the configuration from file, environment variables and defaults, then validates it.
func LoadConfig(path string, log logger.Logger) (*Config, error) {
	cfg, err := Load(path, log)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the configuration without validating the client sections.
// The emulator uses it since it needs no OAuth client settings.
func Load(path string, log logger.Logger) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("entitle")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.config/entitle")
		v.AddConfigPath("/etc/entitle/")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, errors.ErrInvalidConfiguration("config_file", err.Error()).WithCause(err)
		}
	} else {
		log.Debug(context.Background(), "configuration file loaded", logger.String("path", v.ConfigFileUsed()))
	}

	v.SetEnvPrefix("ENTITLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.ErrInvalidConfiguration("config", "failed to unmarshal config").WithCause(err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("oauth.authorization_endpoint", "")
	v.SetDefault("oauth.token_endpoint", "")
	v.SetDefault("oauth.userinfo_endpoint", "")
	v.SetDefault("oauth.client_id", "")
	v.SetDefault("oauth.client_secret", "")
	v.SetDefault("oauth.redirect_uri", "http://127.0.0.1:8765/callback")
	v.SetDefault("oauth.scope", "openid profile")
	v.SetDefault("oauth.grant", string(constants.GrantAuthorizationCode))
	v.SetDefault("oauth.public_key_source", "none")
	v.SetDefault("oauth.public_key_path", "")
	v.SetDefault("oauth.public_key_pem", "")

	v.SetDefault("entitlement.base_url", "")
	v.SetDefault("entitlement.response_format", string(constants.ResponseFormatJWT))
	v.SetDefault("entitlement.timeout", constants.DefaultEntitlementTimeout)

	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.file.dir", "$HOME/.config/entitle/state")
	v.SetDefault("storage.redis.address", "127.0.0.1:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.key_prefix", "entitle:")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.prefix", "entitle")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.secure", true)

	v.SetDefault("pending.driver", "sqlite")
	v.SetDefault("pending.dsn", "$HOME/.config/entitle/pending.db")

	v.SetDefault("surface.mode", "loopback")
	v.SetDefault("surface.open_browser", true)
	v.SetDefault("surface.timeout", 5*time.Minute)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.brokers", []string{})
	v.SetDefault("audit.topic", "entitle.usage")
	v.SetDefault("audit.write_timeout", 10*time.Second)

	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.key_path", "")
	v.SetDefault("vault.field", "public_key")

	v.SetDefault("emulator.listen_address", "127.0.0.1:8787")
	v.SetDefault("emulator.signing_key_path", "")
	v.SetDefault("emulator.grant_ttl", time.Hour)
	v.SetDefault("emulator.pprof_enabled", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("metrics.textfile_path", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "")
	v.SetDefault("tracing.service_name", constants.ServiceName)
	v.SetDefault("tracing.environment", "")
	v.SetDefault("tracing.sampling_rate", 1.0)
}
