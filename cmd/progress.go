// File: cmd/progress.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trainingloop/coursepilot/internal/observability"
	"github.com/trainingloop/coursepilot/internal/progress"
)

// newProgressCmd creates the `progress` command: print the persisted training
// progress without starting a run.
func newProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Print the persisted training progress summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := progress.NewStore(cfg.Storage.ProgressFile, observability.GetLogger())
			fmt.Fprintln(cmd.OutOrStdout(), store.Summary())
			return nil
		},
	}
}
