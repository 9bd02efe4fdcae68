package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ternledger/tern-go/internal/model"
)

var mintCmd = &cobra.Command{
	Use:   "mint <amount> <definition#domain>",
	Short: "Mint an asset quantity into the submitting account",
	Args:  cobra.ExactArgs(2),
	RunE:  runMint,
}

func init() {
	rootCmd.AddCommand(mintCmd)
	mintCmd.Flags().String("to", "", "destination account (defaults to the submitting account)")
}

func runMint(cmd *cobra.Command, args []string) error {
	amount, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[0], err)
	}
	def, err := model.ParseAssetDefinitionID(args[1])
	if err != nil {
		return err
	}

	c, cleanup, err := newClient()
	if err != nil {
		return err
	}
	defer cleanup()

	dest := c.Account()
	if to, _ := cmd.Flags().GetString("to"); to != "" {
		dest, err = model.ParseAccountID(to)
		if err != nil {
			return err
		}
	}

	asset := model.NewAssetID(def, dest)
	hash, err := c.Submit(context.Background(), []model.Instruction{
		model.NewMintQuantity(uint32(amount), asset),
	})
	if err != nil {
		return err
	}
	fmt.Printf("submitted %s\n", hash.Hex())
	return nil
}
