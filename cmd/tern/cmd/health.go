package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check peer liveness",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	c, cleanup, err := newClient()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := c.Health(context.Background()); err != nil {
		return err
	}
	fmt.Println("healthy")
	return nil
}
