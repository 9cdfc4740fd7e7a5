package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("finbridge version %s, commit %s, built at %s", version, commit, date)
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	// Upstream is the identity provider the bridge authenticates users
	// against. Client is the relying party allowed to talk to the bridge.
	// The two credential sets are never interchangeable.
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Client   ClientConfig   `mapstructure:"client"`
	Token    TokenConfig    `mapstructure:"token"`
	Store    StoreConfig    `mapstructure:"store"`
	Users    UsersConfig    `mapstructure:"users"`
	APIKey   string         `mapstructure:"api_key"`
}

type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	BaseURL      string   `mapstructure:"base_url"` // External base URL for OAuth endpoints
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format"`
	Color             bool   `mapstructure:"color"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path"`
	AppendToFile      bool   `mapstructure:"append_to_file"`
	DisableConsole    bool   `mapstructure:"disable_console"`
}

// UpstreamConfig holds credentials for the upstream OIDC provider (Google).
type UpstreamConfig struct {
	Issuer       string        `mapstructure:"issuer"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Scopes       []string      `mapstructure:"scopes"`
	Timeout      time.Duration `mapstructure:"timeout"` // Bound on token-exchange and userinfo calls
}

// ClientConfig is the static registration of the relying party ("Action").
type ClientConfig struct {
	ID           string   `mapstructure:"id"`
	Secret       string   `mapstructure:"secret"`
	RedirectURIs []string `mapstructure:"redirect_uris"`
}

type TokenConfig struct {
	Secret   string        `mapstructure:"secret"`
	TTL      time.Duration `mapstructure:"ttl"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
}

type StoreBackend string

const (
	StoreBackendMemory StoreBackend = "memory"
	StoreBackendRedis  StoreBackend = "redis"
)

type StoreConfig struct {
	Backend  StoreBackend `mapstructure:"backend"`
	Addr     string       `mapstructure:"addr"` // Redis address, backend=redis only
	Password string       `mapstructure:"password"`
	DB       int          `mapstructure:"db"`
	Prefix   string       `mapstructure:"prefix"`
}

type UsersConfig struct {
	Path string `mapstructure:"path"` // SQLite database file
}

// InitFlags initializes command line flags (without parsing)
func InitFlags() {
	pflag.String("config-file", "", "Path to an additional config file")
	pflag.String("server.base_url", "", "External base URL for OAuth endpoints")
	// Note: no pflag.Parse() here as it's called in main.go
}

func Load() (*Config, error) {
	viper.Reset() // Ensure clean state

	viper.SetEnvPrefix("FINBRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	setDefaults()

	// Load ./config.yaml first
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AddConfigPath("/etc/finbridge")

	if err := viper.ReadInConfig(); err != nil {
		// A config file is optional; env vars and flags can carry everything
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if extra := viper.GetString("config-file"); extra != "" {
		if _, err := os.Stat(extra); err == nil {
			viper.SetConfigFile(extra)
			// Merge the extra file (overrides overlapping keys)
			if err := viper.MergeInConfig(); err != nil {
				return nil, err
			}
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
	viper.SetDefault("upstream.issuer", "https://accounts.google.com")
	// Empty defaults register the keys so environment-only deployments
	// are visible to Unmarshal
	viper.SetDefault("upstream.client_id", "")
	viper.SetDefault("upstream.client_secret", "")
	viper.SetDefault("client.id", "")
	viper.SetDefault("client.secret", "")
	viper.SetDefault("client.redirect_uris", []string{})
	viper.SetDefault("token.secret", "")
	viper.SetDefault("server.base_url", "")
	viper.SetDefault("store.addr", "")
	viper.SetDefault("api_key", "")
	viper.SetDefault("upstream.scopes", []string{"openid", "email", "profile"})
	viper.SetDefault("upstream.timeout", 10*time.Second)
	viper.SetDefault("token.ttl", time.Hour)
	viper.SetDefault("token.issuer", "finbridge")
	viper.SetDefault("token.audience", "finbridge-clients")
	viper.SetDefault("store.backend", string(StoreBackendMemory))
	viper.SetDefault("store.prefix", "finbridge:")
	viper.SetDefault("users.path", "finbridge.db")
}

func validate(config *Config) error {
	if config.Upstream.ClientID == "" || config.Upstream.ClientSecret == "" {
		return fmt.Errorf("upstream.client_id and upstream.client_secret are required, please adjust the config or set FINBRIDGE_UPSTREAM_CLIENT_ID / FINBRIDGE_UPSTREAM_CLIENT_SECRET")
	}
	if config.Client.ID == "" || config.Client.Secret == "" {
		return fmt.Errorf("client.id and client.secret are required, the relying party must have its own credentials distinct from the upstream provider's")
	}
	if len(config.Client.RedirectURIs) == 0 {
		return fmt.Errorf("client.redirect_uris must list at least one allowed redirect URI")
	}
	if config.Token.Secret == "" {
		return fmt.Errorf("token.secret is required, please adjust the config or set FINBRIDGE_TOKEN_SECRET")
	}
	if config.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required, please adjust the config or pass --server.base_url or FINBRIDGE_SERVER_BASE_URL environment variable")
	}
	if config.Store.Backend == StoreBackendRedis && config.Store.Addr == "" {
		return fmt.Errorf("store.addr is required when store.backend is redis")
	}
	return nil
}

// CallbackURL returns the bridge's own OAuth callback endpoint. The same
// value must be sent on the authorize redirect and on the upstream token
// exchange, byte-for-byte.
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.Server.BaseURL, "/") + "/oauth/callback"
}
