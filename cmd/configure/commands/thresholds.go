package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/praxislabs/foresight/internal/config"
)

// NewThresholdsCmd creates the thresholds command
func NewThresholdsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "thresholds",
		Short: "Show the engine's live confidence thresholds",
		Long:  "Fetch the running server's metrics snapshot and print the per-strategy thresholds and ranking weights",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			url := cfg.BaseURL + "/api/v1/metrics"
			client := &http.Client{Timeout: 10 * time.Second}
			resp, err := client.Get(url)
			if err != nil {
				return fmt.Errorf("failed to reach %s: %w", url, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("metrics endpoint returned %d", resp.StatusCode)
			}

			var envelope struct {
				Data struct {
					ActiveThresholds map[string]float64 `json:"active_thresholds"`
					Rankings         map[string]float64 `json:"rankings"`
					GlobalRate       float64            `json:"global_learning_rate"`
				} `json:"data"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
				return fmt.Errorf("failed to decode metrics response: %w", err)
			}

			fmt.Println("Active thresholds:")
			for strategy, threshold := range envelope.Data.ActiveThresholds {
				fmt.Printf("  - %-12s %.3f\n", strategy, threshold)
			}
			fmt.Println("Ranking weights:")
			for component, weight := range envelope.Data.Rankings {
				fmt.Printf("  - %-12s %.3f\n", component, weight)
			}
			fmt.Printf("Global learning rate: %.4f\n", envelope.Data.GlobalRate)
			return nil
		},
	}
}
