package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/perimetra/agentcore/internal/policy"
	"github.com/perimetra/agentcore/internal/scenario"
)

var (
	checkScenarios    string
	checkScenPolicy   string
	checkScenKeyHex   string
	checkScenKeyFile  string
	checkScenUnsigned bool
	checkFormat       string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkScenarios, "scenario", "", "Glob pattern for scenario YAML files (required)")
	checkCmd.Flags().StringVar(&checkScenPolicy, "policy", "", "Path to policy bundle JSON (default: built-in placeholder)")
	checkCmd.Flags().StringVar(&checkScenKeyHex, "key", "", "Signing key as hex")
	checkCmd.Flags().StringVar(&checkScenKeyFile, "key-file", "", "Path to file containing the signing key as hex")
	checkCmd.Flags().BoolVar(&checkScenUnsigned, "allow-unsigned", false, "Skip signature verification")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
	checkCmd.MarkFlagRequired("scenario")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run admission assertions from scenario files",
	Long: "Loads scenario YAML files matching a glob pattern, runs each case\n" +
		"through the admission pipeline, and reports pass/fail.\n\n" +
		"Exit code 0 if all cases pass, 1 if any fail.\n" +
		"Use in CI to gate policy rollouts on admission behavior.",
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	matches, err := filepath.Glob(checkScenarios)
	if err != nil {
		return fmt.Errorf("invalid glob pattern: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no scenario files match pattern: %s", checkScenarios)
	}

	key, err := resolveKey(checkScenKeyHex, checkScenKeyFile)
	if err != nil {
		return err
	}
	opts := policy.VerifyOptions{
		SigningKey:    key,
		AllowUnsigned: checkScenUnsigned,
	}

	var results []*scenario.RunResult
	for _, path := range matches {
		r, err := scenario.LoadAndRun(path, checkScenPolicy, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		results = append(results, r)
	}

	switch checkFormat {
	case "json":
		out, err := scenario.FormatJSON(results)
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		fmt.Print(scenario.FormatText(results))
	}

	// Exit 1 if any scenario has failures
	for _, r := range results {
		if r.Failed > 0 {
			os.Exit(1)
		}
	}

	return nil
}
