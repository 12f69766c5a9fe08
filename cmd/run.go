// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trainingloop/coursepilot/internal/agent"
	"github.com/trainingloop/coursepilot/internal/collaborator"
	"github.com/trainingloop/coursepilot/internal/input"
	"github.com/trainingloop/coursepilot/internal/observability"
	"github.com/trainingloop/coursepilot/internal/permissions"
	"github.com/trainingloop/coursepilot/internal/progress"
	"github.com/trainingloop/coursepilot/internal/screen"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start an agent run against the training platform on screen",
		Long: `Starts the decision loop: the platform must already be open, logged in and
visible on the primary display. The agent works until the collaborator
finishes, the wall-clock deadline passes, or the iteration cap is reached.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			applyRunFlagOverrides(cmd)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			// Probe OS permissions before anything irreversible happens.
			capturer := screen.NewRobotgoCapturer(cfg.Screen.MaxPixels, logger)
			driver := input.NewRobotgoDriver()
			if err := permissions.Check(ctx, capturer, driver, logger); err != nil {
				return err
			}

			color.New(color.FgYellow, color.Bold).Println("\n*** IMPORTANT ***")
			fmt.Println("Make sure the training platform is open, logged in, and visible on screen.")
			if err := startDelay(ctx, cfg.Run.StartDelay, logger); err != nil {
				return err
			}

			store := progress.NewStore(cfg.Storage.ProgressFile, logger)
			confusion := progress.NewConfusionLog(logger)
			executor := input.NewExecutor(driver, cfg.Input, logger)
			toolbox := agent.NewToolbox(store, input.NewLocations(), confusion, executor, logger)

			collab, err := collaborator.NewClient(cfg.Collaborator, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize collaborator client: %w", err)
			}
			defer collab.Close()

			outcome := agent.New(collab, capturer, executor, toolbox, cfg.Run, logger).Run(ctx)

			// The progress store persisted on every mutation; the confusion
			// log flushes exactly once, here.
			if err := confusion.Flush(cfg.Storage.ConfusionFile); err != nil {
				logger.Error("Failed to flush confusion log", zap.Error(err))
			}

			printRunSummary(outcome, store, confusion)

			if outcome.State == agent.StateFatal {
				return fmt.Errorf("run aborted: %w", outcome.Err)
			}
			return nil
		},
	}

	runCmd.Flags().Duration("duration", 0, "wall-clock ceiling for the run (overrides config)")
	runCmd.Flags().Int("max-iterations", 0, "decision turn cap (overrides config)")
	runCmd.Flags().Duration("start-delay", -1, "countdown before the first capture (overrides config)")
	return runCmd
}

// applyRunFlagOverrides lets explicit flags win over file and env values.
func applyRunFlagOverrides(cmd *cobra.Command) {
	if cmd.Flags().Changed("duration") {
		cfg.Run.Duration, _ = cmd.Flags().GetDuration("duration")
	}
	if cmd.Flags().Changed("max-iterations") {
		cfg.Run.MaxIterations, _ = cmd.Flags().GetInt("max-iterations")
	}
	if cmd.Flags().Changed("start-delay") {
		cfg.Run.StartDelay, _ = cmd.Flags().GetDuration("start-delay")
	}
}

// startDelay counts down before the first capture so the operator can
// foreground the platform window.
func startDelay(ctx context.Context, delay time.Duration, logger *zap.Logger) error {
	if delay <= 0 {
		return nil
	}
	logger.Info("Starting soon", zap.Duration("delay", delay))
	fmt.Printf("Starting in %s...\n\n", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func printRunSummary(outcome agent.Outcome, store *progress.Store, confusion *progress.ConfusionLog) {
	bold := color.New(color.Bold)
	bold.Println("\n============================================================")
	bold.Println("SESSION COMPLETE")
	bold.Println("============================================================")

	stateColor := color.New(color.FgGreen)
	switch outcome.State {
	case agent.StateFatal:
		stateColor = color.New(color.FgRed, color.Bold)
	case agent.StateDeadline, agent.StateIterationCap, agent.StateInterrupted:
		stateColor = color.New(color.FgYellow)
	}
	fmt.Printf("Final state: %s\n", stateColor.Sprint(string(outcome.State)))
	fmt.Printf("Iterations:  %d\n\n", outcome.Iterations)

	fmt.Println(store.Summary())

	if confusion.Len() > 0 {
		color.New(color.FgYellow).Printf("\nConfusion/issues logged: %d\n", confusion.Len())
		for _, entry := range confusion.Entries() {
			fmt.Printf("  [%s] %s at %s\n", entry.Severity, entry.Description, entry.Location)
		}
	}
}
