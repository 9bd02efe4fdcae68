package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternledger/tern-go/internal/model"
)

var registerDomainCmd = &cobra.Command{
	Use:   "register-domain <name>",
	Short: "Register a new domain",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegisterDomain,
}

var registerAssetCmd = &cobra.Command{
	Use:   "register-asset <name#domain>",
	Short: "Register a new asset definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegisterAsset,
}

func init() {
	rootCmd.AddCommand(registerDomainCmd)
	rootCmd.AddCommand(registerAssetCmd)
	registerAssetCmd.Flags().String("value-type", "quantity", "asset value type (quantity, big-quantity, fixed)")
	registerAssetCmd.Flags().Bool("mintable", true, "whether the asset can be minted after registration")
}

func runRegisterDomain(cmd *cobra.Command, args []string) error {
	dom, err := model.NewDomain(args[0], nil)
	if err != nil {
		return err
	}

	c, cleanup, err := newClient()
	if err != nil {
		return err
	}
	defer cleanup()

	hash, err := c.Submit(context.Background(), []model.Instruction{model.NewRegister(dom)})
	if err != nil {
		return err
	}
	fmt.Printf("submitted %s\n", hash.Hex())
	return nil
}

func runRegisterAsset(cmd *cobra.Command, args []string) error {
	id, err := model.ParseAssetDefinitionID(args[0])
	if err != nil {
		return err
	}
	typeName, _ := cmd.Flags().GetString("value-type")
	valueType, err := model.AssetValueTypeFromString(typeName)
	if err != nil {
		return err
	}
	mintable, _ := cmd.Flags().GetBool("mintable")

	def, err := model.NewAssetDefinition(id, valueType, mintable, nil)
	if err != nil {
		return err
	}

	c, cleanup, err := newClient()
	if err != nil {
		return err
	}
	defer cleanup()

	hash, err := c.Submit(context.Background(), []model.Instruction{model.NewRegister(def)})
	if err != nil {
		return err
	}
	fmt.Printf("submitted %s\n", hash.Hex())
	return nil
}
