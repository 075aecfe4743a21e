package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praxislabs/foresight/internal/suggest"
)

// NewRulesCmd creates the rules command
func NewRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate contextual rules",
	}

	cmd.AddCommand(newRulesValidateCmd())
	cmd.AddCommand(newRulesShowCmd())
	return cmd
}

func newRulesValidateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a contextual rules file",
		Long:  "Parse a YAML rules file and report whether the contextual strategy would accept it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			rules, err := suggest.LoadRules(file)
			if err != nil {
				return fmt.Errorf("rules file is invalid: %w", err)
			}

			fmt.Printf("Rules file is valid: %d rule(s)\n", len(rules.Rules))
			for _, rule := range rules.Rules {
				fmt.Printf("  - %s -> %s (confidence %.2f)\n", rule.Name, rule.Action, rule.Confidence)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the YAML rules file")
	return cmd
}

func newRulesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the built-in contextual rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			rules := suggest.DefaultRules()
			fmt.Printf("Built-in rules (%d):\n", len(rules.Rules))
			for _, rule := range rules.Rules {
				fmt.Printf("  - %s -> %s (confidence %.2f): %s\n", rule.Name, rule.Action, rule.Confidence, rule.Reason)
			}
			return nil
		},
	}
}
