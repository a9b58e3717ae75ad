package cli

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/perimetra/agentcore/internal/policy"
)

var (
	checkKeyHex        string
	checkKeyFile       string
	checkKeyID         string
	checkAllowUnsigned bool
)

func init() {
	rootCmd.AddCommand(checkPolicyCmd)
	checkPolicyCmd.Flags().StringVar(&checkKeyHex, "key", "", "Signing key as hex")
	checkPolicyCmd.Flags().StringVar(&checkKeyFile, "key-file", "", "Path to file containing the signing key as hex")
	checkPolicyCmd.Flags().StringVar(&checkKeyID, "key-id", "", "Require this signing key identifier")
	checkPolicyCmd.Flags().BoolVar(&checkAllowUnsigned, "allow-unsigned", false, "Skip signature verification")
}

var checkPolicyCmd = &cobra.Command{
	Use:   "check-policy <path>",
	Short: "Validate a policy bundle document",
	Long: "Parses a policy bundle JSON document, checks its structure and\n" +
		"validity window, and verifies the signature against the given key.\n\n" +
		"Exit code 0 if the bundle would be accepted, 1 otherwise.\n" +
		"Use in CI to gate policy rollouts.",
	Args: cobra.ExactArgs(1),
	RunE: runCheckPolicy,
}

func runCheckPolicy(cmd *cobra.Command, args []string) error {
	bundle, hash, err := policy.LoadWithHash(args[0])
	if err != nil {
		return err
	}

	key, err := resolveKey(checkKeyHex, checkKeyFile)
	if err != nil {
		return err
	}
	opts := policy.VerifyOptions{
		SigningKey:    key,
		ExpectedKeyID: checkKeyID,
		AllowUnsigned: checkAllowUnsigned,
	}

	if !bundle.Validate(uint64(time.Now().UnixMilli()), opts) {
		fmt.Fprintln(os.Stderr, "REJECTED: bundle failed validation")
		os.Exit(1)
	}

	fmt.Printf("OK: %s\n", bundle.Version)
	fmt.Printf("  hash:    %s\n", hash)
	fmt.Printf("  key id:  %s\n", bundle.SigningKeyID)
	fmt.Printf("  actions: %s\n", strings.Join(bundle.Execution.AllowedActions, ", "))
	fmt.Printf("  streams: %s\n", strings.Join(bundle.TelemetryStreams, ", "))
	return nil
}

// resolveKey decodes hex key material from a flag or a file. Returns
// nil when neither is given.
func resolveKey(hexKey, file string) ([]byte, error) {
	if hexKey != "" {
		key, err := hex.DecodeString(strings.TrimSpace(hexKey))
		if err != nil {
			return nil, fmt.Errorf("invalid --key: %w", err)
		}
		return key, nil
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}
		key, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("invalid key file contents: %w", err)
		}
		return key, nil
	}
	return nil, nil
}
