package cmd

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternledger/tern-go/internal/config"
	"github.com/ternledger/tern-go/internal/db"
	"github.com/ternledger/tern-go/internal/peer"
)

var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Run a single-node development peer",
	RunE:  runPeer,
}

func init() {
	rootCmd.AddCommand(peerCmd)
	peerCmd.Flags().String("listen", "", "bind address (overrides config)")
	peerCmd.Flags().String("db-url", "", "database connection URL (sqlite://path or postgres://...)")
	peerCmd.Flags().Bool("seed-genesis", false, "register the configured account and its domain on startup")
}

func runPeer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") {
		cfg.ListenAddr, _ = cmd.Flags().GetString("listen")
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL, _ = cmd.Flags().GetString("db-url")
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := db.MigrateUp(database); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}
	store, err := peer.NewStore(queries)
	if err != nil {
		return err
	}

	if seed, _ := cmd.Flags().GetBool("seed-genesis"); seed {
		account, err := cfg.Account()
		if err != nil {
			return err
		}
		kp, err := config.PrivateKey()
		if err != nil {
			return err
		}
		pub := kp.PublicKey()
		kp.Close()
		if err := peer.SeedGenesis(store, account, pub); err != nil {
			return err
		}
		log.Printf("Seeded genesis account %s", account)
	}

	server, err := peer.NewServer(store)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(),
	}

	log.Printf("Starting tern peer v%s on %s", Version, cfg.ListenAddr)
	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		log.Println("Shutting down gracefully...")
		return httpServer.Close()
	}
}
