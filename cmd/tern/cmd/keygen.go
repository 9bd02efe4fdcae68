package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternledger/tern-go/internal/crypto"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new signing key pair",
	RunE:  runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}

func runKeygen(cmd *cobra.Command, args []string) error {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return fmt.Errorf("failed to generate seed: %w", err)
	}
	seedHex := hex.EncodeToString(seed)

	kp, err := crypto.KeyPairFromSeedHex(seedHex)
	if err != nil {
		return err
	}
	defer kp.Close()

	fmt.Printf("public key:  %s\n", kp.PublicKey().Hex())
	fmt.Printf("private key: %s\n", seedHex)
	fmt.Println("export the private key as TERN_PRIVATE_KEY; it is not stored anywhere")
	return nil
}
