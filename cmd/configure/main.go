package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/praxislabs/foresight/cmd/configure/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "foresight-configure",
		Short: "Configuration tool for the Foresight engine",
		Long:  "CLI tool for inspecting learned state and managing contextual rules and workflows",
	}

	rootCmd.AddCommand(commands.NewRulesCmd())
	rootCmd.AddCommand(commands.NewWorkflowsCmd())
	rootCmd.AddCommand(commands.NewWeightsCmd())
	rootCmd.AddCommand(commands.NewThresholdsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
