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

// NewWorkflowsCmd creates the workflows command
func NewWorkflowsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "List and toggle stored workflows",
	}

	cmd.AddCommand(newWorkflowsListCmd())
	cmd.AddCommand(newWorkflowsToggleCmd("enable", true))
	cmd.AddCommand(newWorkflowsToggleCmd("disable", false))
	return cmd
}

func newWorkflowsListCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(user)
			if err != nil {
				return fmt.Errorf("--user must be a valid UUID: %w", err)
			}

			repo, closeDB, err := openWorkflowRepo()
			if err != nil {
				return err
			}
			defer closeDB()

			workflows, err := repo.GetByUserID(context.Background(), userID)
			if err != nil {
				return fmt.Errorf("failed to list workflows: %w", err)
			}

			if len(workflows) == 0 {
				fmt.Println("No workflows stored")
				return nil
			}

			for _, workflow := range workflows {
				state := "disabled"
				if workflow.Enabled {
					state = "enabled"
				}
				fmt.Printf("  - %s  %s (%s, %d steps, %d executions)\n",
					workflow.ID, workflow.Name, state, len(workflow.Steps), workflow.ExecutionCount)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User UUID")
	return cmd
}

func newWorkflowsToggleCmd(use string, enabled bool) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("%s a workflow", use),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID, err := uuid.Parse(id)
			if err != nil {
				return fmt.Errorf("--id must be a valid UUID: %w", err)
			}

			repo, closeDB, err := openWorkflowRepo()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := context.Background()
			workflow, err := repo.GetByID(ctx, workflowID)
			if err != nil {
				return fmt.Errorf("failed to load workflow: %w", err)
			}

			workflow.Enabled = enabled
			if err := repo.Update(ctx, workflow); err != nil {
				return fmt.Errorf("failed to update workflow: %w", err)
			}

			fmt.Printf("Workflow %s is now %sd\n", workflowID, use)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Workflow UUID")
	return cmd
}

func openWorkflowRepo() (*database.WorkflowRepository, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	closeDB := func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}
	return database.NewWorkflowRepository(db), closeDB, nil
}
