package main

import (
	"fmt"
	"os"
	"strings"

	"autogov/internal/telemetry"

	"github.com/spf13/cobra"
)

// statusCmd summarizes the telemetry tail without touching the tracker.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize recent cycles from the local telemetry journal",
	RunE:  showStatus,
}

func showStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Println("autogov status")
	fmt.Println("==============")
	fmt.Printf("Workspace: %s\n", cfg.Paths.Workspace)
	fmt.Printf("Model:     %s\n", cfg.Engine.Model)
	if os.Getenv("GITHUB_TOKEN") != "" {
		fmt.Println("Tracker:   token configured")
	} else {
		fmt.Println("Tracker:   GITHUB_TOKEN not set")
	}
	fmt.Println()

	journal := telemetry.NewJournal(cfg.Paths.TelemetryPath(), cfg.Paths.ErrorsPath(), cfg.Limits.RetentionDays)
	cycles, err := journal.LastCycles(10)
	if err != nil {
		return fmt.Errorf("read telemetry: %w", err)
	}
	if len(cycles) == 0 {
		fmt.Println("No cycles recorded yet.")
		return nil
	}

	productive := 0
	for _, c := range cycles {
		if c.Productive {
			productive++
		}
	}
	last := cycles[len(cycles)-1]
	fmt.Printf("Last cycle:  %d at %s (yield: %s)\n",
		last.CycleNumber, last.EndedAt.Format("2006-01-02 15:04 MST"), last.YieldKind)
	fmt.Printf("Recent:      %d of last %d cycles productive\n", productive, len(cycles))
	fmt.Println()

	fmt.Println("Cycle  Yield               Actions")
	for _, c := range cycles {
		marker := " "
		if c.Partial {
			marker = "!"
		}
		fmt.Printf("%s%4d  %-18s  %s\n", marker, c.CycleNumber, c.YieldKind, strings.Join(c.ConductorActions, ", "))
	}

	errs, err := journal.LastErrors(5)
	if err != nil {
		return fmt.Errorf("read errors: %w", err)
	}
	if len(errs) > 0 {
		fmt.Println()
		fmt.Println("Recent errors:")
		for _, e := range errs {
			fmt.Printf("  cycle %d %s/%s: %s\n", e.Cycle, e.Phase, e.Kind, e.Message)
		}
	}
	return nil
}
