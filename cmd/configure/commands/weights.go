package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/praxislabs/foresight/internal/config"
	"github.com/praxislabs/foresight/internal/database"
)

// NewWeightsCmd creates the weights command
func NewWeightsCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Show a user's learned pattern weights",
		Long:  "Show the per-pattern multipliers and acceptance counts the tuner has learned for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(user)
			if err != nil {
				return fmt.Errorf("--user must be a valid UUID: %w", err)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
				}
			}()

			repo := database.NewPatternWeightRepository(db)
			weights, err := repo.GetAllByUserID(context.Background(), userID)
			if err != nil {
				return fmt.Errorf("failed to list pattern weights: %w", err)
			}

			if len(weights) == 0 {
				fmt.Println("No pattern weights learned yet")
				return nil
			}

			fmt.Printf("Learned weights for %s:\n", userID)
			for _, weight := range weights {
				fmt.Printf("  - %s/%s  multiplier %.3f  accepted %d/%d (%.0f%%)\n",
					weight.Type, weight.Action, weight.Multiplier,
					weight.Positive, weight.Total, weight.AcceptanceRate()*100)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User UUID")
	return cmd
}
