package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/admaesmo/AidDiag/internal/keys"
)

// keygenCmd generates (or loads) the RSA signing key and prints the public
// JWKS document, which is useful for wiring up external verifiers.
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate or load the RSA signing key and print the public JWKS",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("key")
		kid, _ := cmd.Flags().GetString("kid")

		material, err := keys.LoadOrGenerate(path, kid)
		if err != nil {
			return fmt.Errorf("loading key material: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(material.KeySet()); err != nil {
			return fmt.Errorf("encoding key set: %w", err)
		}

		logSuccess("key material ready at %s (kid: %s)", bold(path), bold(kid))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().String("key", "data/private.pem", "Path to the RSA private key (created if missing)")
	keygenCmd.Flags().String("kid", "local-rs256", "Key ID embedded in tokens and the JWKS")
}
