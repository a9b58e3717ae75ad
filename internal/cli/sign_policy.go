package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/perimetra/agentcore/internal/policy"
)

var (
	signKeyHex  string
	signKeyFile string
	signOut     string
)

func init() {
	rootCmd.AddCommand(signPolicyCmd)
	signPolicyCmd.Flags().StringVar(&signKeyHex, "key", "", "Signing key as hex")
	signPolicyCmd.Flags().StringVar(&signKeyFile, "key-file", "", "Path to file containing the signing key as hex")
	signPolicyCmd.Flags().StringVarP(&signOut, "out", "o", "", "Output path (default: overwrite input)")
}

var signPolicyCmd = &cobra.Command{
	Use:   "sign-policy <path>",
	Short: "Sign a policy bundle document",
	Long:  "Computes the signature over the bundle's canonical payload with the\ngiven key and writes the signed document back out. The document must\nbe structurally valid; the validity window is not checked at signing\ntime so future-dated bundles can be prepared in advance.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSignPolicy,
}

func runSignPolicy(cmd *cobra.Command, args []string) error {
	key, err := resolveKey(signKeyHex, signKeyFile)
	if err != nil {
		return err
	}
	if key == nil {
		return fmt.Errorf("a signing key is required (--key or --key-file)")
	}

	bundle, err := policy.Load(args[0])
	if err != nil {
		return err
	}
	if !bundle.SignWithKey(key) {
		return fmt.Errorf("bundle is not structurally valid, refusing to sign")
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal signed bundle: %w", err)
	}
	data = append(data, '\n')

	out := signOut
	if out == "" {
		out = args[0]
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("failed to write signed bundle: %w", err)
	}

	fmt.Printf("Signed %s (key id %s) -> %s\n", bundle.Version, bundle.SigningKeyID, out)
	return nil
}
