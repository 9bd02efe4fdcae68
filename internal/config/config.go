// Package config loads client and peer configuration.
//
// Precedence is CLI flags > environment > config file > defaults. The
// signing key is environment-only: TERN_PRIVATE_KEY never appears in config
// files.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ternledger/tern-go/internal/crypto"
	"github.com/ternledger/tern-go/internal/model"
)

// privateKeyEnv is the only place the signing key seed may live.
const privateKeyEnv = "TERN_PRIVATE_KEY"

// Config holds everything the CLI and peer need.
type Config struct {
	// PeerURL is the peer's HTTP base URL.
	PeerURL string

	// EventsURL is the websocket event endpoint; empty derives it from
	// PeerURL.
	EventsURL string

	// AccountID is the submitting account in name@domain form.
	AccountID string

	// RequestTimeout bounds each request to the peer.
	RequestTimeout time.Duration

	// ListenAddr is the peer's bind address when serving.
	ListenAddr string

	// DatabaseURL locates the peer's state store.
	DatabaseURL string
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		PeerURL:        "http://127.0.0.1:8080",
		AccountID:      "alice@wonderland",
		RequestTimeout: 15 * time.Second,
		ListenAddr:     "127.0.0.1:8080",
		DatabaseURL:    "sqlite://tern.db",
	}
}

// Load reads configuration from an optional file and the TERN_-prefixed
// environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("peer_url", def.PeerURL)
	v.SetDefault("events_url", def.EventsURL)
	v.SetDefault("account_id", def.AccountID)
	v.SetDefault("request_timeout", def.RequestTimeout.String())
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("database_url", def.DatabaseURL)

	v.SetEnvPrefix("TERN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Keys stay out of config files; see PrivateKey.
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		PeerURL:        v.GetString("peer_url"),
		EventsURL:      v.GetString("events_url"),
		AccountID:      v.GetString("account_id"),
		RequestTimeout: v.GetDuration("request_timeout"),
		ListenAddr:     v.GetString("listen_addr"),
		DatabaseURL:    v.GetString("database_url"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural consistency without touching the network.
func (c *Config) Validate() error {
	if c.PeerURL == "" {
		return fmt.Errorf("peer_url must not be empty")
	}
	if !strings.HasPrefix(c.PeerURL, "http://") && !strings.HasPrefix(c.PeerURL, "https://") {
		return fmt.Errorf("peer_url must be http or https, got %q", c.PeerURL)
	}
	if c.EventsURL != "" && !strings.HasPrefix(c.EventsURL, "ws://") && !strings.HasPrefix(c.EventsURL, "wss://") {
		return fmt.Errorf("events_url must be ws or wss, got %q", c.EventsURL)
	}
	if _, err := model.ParseAccountID(c.AccountID); err != nil {
		return fmt.Errorf("account_id: %w", err)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", c.RequestTimeout)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url must not be empty")
	}
	return nil
}

// Account parses the configured account id.
func (c *Config) Account() (model.AccountID, error) {
	return model.ParseAccountID(c.AccountID)
}

// PrivateKey loads the signing key from the environment. The seed is hex in
// TERN_PRIVATE_KEY; the caller owns the returned key pair and must Close it.
func PrivateKey() (*crypto.KeyPair, error) {
	seed := strings.TrimSpace(os.Getenv(privateKeyEnv))
	if seed == "" {
		return nil, fmt.Errorf("%s is not set", privateKeyEnv)
	}
	kp, err := crypto.KeyPairFromSeedHex(seed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", privateKeyEnv, err)
	}
	return kp, nil
}

// validateNoSecretsInConfig enforces environment-only key material. InConfig
// consults only the config file, so a key legitimately present in the
// environment does not trip it.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("private_key") {
		return fmt.Errorf("private keys are not allowed in config files (use %s)", privateKeyEnv)
	}
	return nil
}
