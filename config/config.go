// Package config loads service configuration from YAML and the environment.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ksbk/notehub/auth"
	"github.com/ksbk/notehub/blob"
)

// AuthConfig carries the token and middleware settings. The access signing
// key is the only secret shared with downstream services; refresh and reset
// keys stay private to the identity service.
type AuthConfig struct {
	AccessSigningKey  string        `mapstructure:"access_signing_key"`
	RefreshSigningKey string        `mapstructure:"refresh_signing_key"`
	ResetSigningKey   string        `mapstructure:"reset_signing_key"`
	AccessTokenTTL    time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL   time.Duration `mapstructure:"refresh_token_ttl"`
	ResetTokenTTL     time.Duration `mapstructure:"reset_token_ttl"`
	Issuer            string        `mapstructure:"issuer"`
	ContextKey        string        `mapstructure:"context_key"`
	TokenLookup       string        `mapstructure:"token_lookup"`
	AuthScheme        string        `mapstructure:"auth_scheme"`
	ResetLinkBase     string        `mapstructure:"reset_link_base"`
}

var _ auth.Config = (*AuthConfig)(nil)

func (c *AuthConfig) GetAccessSigningKey() string       { return c.AccessSigningKey }
func (c *AuthConfig) GetRefreshSigningKey() string      { return c.RefreshSigningKey }
func (c *AuthConfig) GetResetSigningKey() string        { return c.ResetSigningKey }
func (c *AuthConfig) GetAccessTokenTTL() time.Duration  { return c.AccessTokenTTL }
func (c *AuthConfig) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }
func (c *AuthConfig) GetResetTokenTTL() time.Duration   { return c.ResetTokenTTL }
func (c *AuthConfig) GetIssuer() string                 { return c.Issuer }
func (c *AuthConfig) GetContextKey() string             { return c.ContextKey }
func (c *AuthConfig) GetTokenLookup() string            { return c.TokenLookup }
func (c *AuthConfig) GetAuthScheme() string             { return c.AuthScheme }

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// DBConfig holds the persistence settings.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// AppConfig is the root configuration shared by both services. Each binary
// reads the sections it needs.
type AppConfig struct {
	Debug  bool            `mapstructure:"debug"`
	Server ServerConfig    `mapstructure:"server"`
	DB     DBConfig        `mapstructure:"db"`
	Auth   AuthConfig      `mapstructure:"auth"`
	SMTP   auth.SMTPConfig `mapstructure:"smtp"`
	Blob   blob.Config     `mapstructure:"blob"`
}

// Load reads configuration from the given YAML file, environment variables
// overriding file values. A missing file falls back to defaults, so a bare
// environment is enough to boot locally; a file that exists but does not
// parse is an error.
func Load(path, defaultAddr string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	v.SetDefault("debug", false)
	v.SetDefault("server.addr", defaultAddr)
	v.SetDefault("db.dsn", "file::memory:?cache=shared")

	v.SetDefault("auth.access_signing_key", "dev-access-secret")
	v.SetDefault("auth.refresh_signing_key", "dev-refresh-secret")
	v.SetDefault("auth.reset_signing_key", "dev-reset-secret")
	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("auth.refresh_token_ttl", "168h")
	v.SetDefault("auth.reset_token_ttl", "1h")
	v.SetDefault("auth.issuer", "notehub")
	v.SetDefault("auth.context_key", "user")
	v.SetDefault("auth.token_lookup", "header:Authorization")
	v.SetDefault("auth.auth_scheme", "Bearer")
	v.SetDefault("auth.reset_link_base", "http://localhost:3000/reset-password")

	v.SetDefault("smtp.addr", "localhost:1025")
	v.SetDefault("smtp.from", "noreply@notehub.dev")
	v.SetDefault("smtp.timeout", "10s")

	v.SetDefault("blob.bucket", "notehub")
	v.SetDefault("blob.region", "us-east-1")
	v.SetDefault("blob.base_endpoint", "")
	v.SetDefault("blob.use_path_style", true)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
