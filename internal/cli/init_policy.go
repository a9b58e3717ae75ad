package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/perimetra/agentcore/internal/policy"
)

func init() {
	rootCmd.AddCommand(initPolicyCmd)
}

var initPolicyCmd = &cobra.Command{
	Use:   "init-policy",
	Short: "Generate a starter policy bundle",
	Long:  "Creates ~/.agentcore/policy.json from the built-in placeholder bundle.\nEdit the document, then sign it with sign-policy before deploying.",
	RunE:  runInitPolicy,
}

func runInitPolicy(cmd *cobra.Command, args []string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}

	dir := filepath.Join(home, ".agentcore")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	path := filepath.Join(dir, "policy.json")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("policy.json already exists at %s", path)
	}

	data, err := json.MarshalIndent(policy.Placeholder(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal placeholder bundle: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write policy.json: %w", err)
	}

	fmt.Printf("Created %s\n", path)
	return nil
}
