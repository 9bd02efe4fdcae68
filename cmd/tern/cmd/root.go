package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternledger/tern-go/internal/client"
	"github.com/ternledger/tern-go/internal/config"
)

const Version = "0.1.0"

var (
	configFile string
	peerURL    string
	accountID  string
)

var rootCmd = &cobra.Command{
	Use:   "tern",
	Short: "Tern ledger client",
	Long:  `Tern submits signed transactions and queries to a ledger peer and streams its events.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&peerURL, "peer-url", "", "peer HTTP base URL")
	rootCmd.PersistentFlags().StringVar(&accountID, "account", "", "submitting account (name@domain)")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig merges the config file, environment, and persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if peerURL != "" {
		cfg.PeerURL = peerURL
	}
	if accountID != "" {
		cfg.AccountID = accountID
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newClient builds a signing client from configuration. The returned cleanup
// releases the key material.
func newClient() (*client.Client, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	account, err := cfg.Account()
	if err != nil {
		return nil, nil, err
	}
	kp, err := config.PrivateKey()
	if err != nil {
		return nil, nil, err
	}

	c, err := client.New(client.Config{
		PeerURL:   cfg.PeerURL,
		EventsURL: cfg.EventsURL,
		Account:   account,
		KeyPair:   kp,
		Timeout:   cfg.RequestTimeout,
	})
	if err != nil {
		kp.Close()
		return nil, nil, err
	}
	return c, func() { kp.Close() }, nil
}
