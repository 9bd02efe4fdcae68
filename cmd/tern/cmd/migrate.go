package cmd

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/ternledger/tern-go/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending state store migrations",
	RunE:  runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE:  runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.PersistentFlags().String("db-url", "", "database connection URL (sqlite://path or postgres://...)")
}

func openMigrationDB(cmd *cobra.Command) (*sqlx.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL, _ = cmd.Flags().GetString("db-url")
	}
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return conn, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	conn, err := openMigrationDB(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.MigrateUp(conn); err != nil {
		return err
	}
	fmt.Println("migrations applied")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	conn, err := openMigrationDB(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	statuses, err := db.MigrateStatus(conn)
	if err != nil {
		return err
	}
	for _, st := range statuses {
		state := "pending"
		if st.Applied {
			state = "applied"
			if st.AppliedAt != nil {
				state = fmt.Sprintf("applied %s", st.AppliedAt.Format("2006-01-02 15:04:05"))
			}
		}
		fmt.Printf("%-40s %s\n", st.ID, state)
	}
	return nil
}
