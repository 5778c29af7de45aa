package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"autogov/internal/agent"
	"autogov/internal/cabinet"
	"autogov/internal/conductor"
	"autogov/internal/config"
	"autogov/internal/debate"
	"autogov/internal/engine"
	"autogov/internal/logging"
	"autogov/internal/oversight"
	"autogov/internal/publish"
	"autogov/internal/restart"
	"autogov/internal/scouts"
	"autogov/internal/telemetry"
	"autogov/internal/tracker"
	"autogov/internal/workflow"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Engine flags
	maxCycles        int
	cooldownSeconds  int
	model            string
	maxPRRounds      int
	directorInterval int
	dryRun           bool
	skipImprove      bool
	skipAnalysis     bool
	skipResearch     bool

	// Restart continuation counters, set only by the re-exec path.
	cycleOffset      int
	productiveOffset int

	// Logger
	logger *zap.Logger
)

// rootCmd runs the cycle loop until a stop condition.
var rootCmd = &cobra.Command{
	Use:   "autogov",
	Short: "autogov - autonomous analysis and self-improvement engine",
	Long: `autogov runs an unattended operations loop around an issue tracker.

Each cycle it gathers the tracker and journal state, asks a conductor
agent for a short plan, and dispatches the plan's actions: news intake,
cabinet analysis of government decisions, self-improvement proposals,
debate triage, coder/reviewer pull requests, and oversight directors.

All durable state lives in the tracker and in JSONL journals under
output/; the process itself can be killed and restarted at any point.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runEngine,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: .autogov/config.json under the workspace)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging (stdout debug level + file logs)")

	rootCmd.Flags().IntVar(&maxCycles, "max-cycles", 0, "Stop after this cycle number (0 = run until halted)")
	rootCmd.Flags().IntVar(&cooldownSeconds, "cooldown", 0, "Minimum seconds between cycles")
	rootCmd.Flags().StringVar(&model, "model", "", "Model id passed to agent subprocesses")
	rootCmd.Flags().IntVar(&maxPRRounds, "max-pr-rounds", 0, "Review rounds before a PR is abandoned")
	rootCmd.Flags().IntVar(&directorInterval, "director-interval", 0, "Productive cycles between project director runs")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log mutating actions instead of executing them")
	rootCmd.Flags().BoolVar(&skipImprove, "skip-improve", false, "Disable the self-improvement actions")
	rootCmd.Flags().BoolVar(&skipAnalysis, "skip-analysis", false, "Disable news intake and analysis")
	rootCmd.Flags().BoolVar(&skipResearch, "skip-research", false, "Disable the research scout")

	rootCmd.Flags().IntVar(&cycleOffset, "cycle-offset", 0, "Cycle counter carried across self-restart")
	rootCmd.Flags().IntVar(&productiveOffset, "productive-offset", 0, "Productive counter carried across self-restart")
	_ = rootCmd.Flags().MarkHidden("cycle-offset")
	_ = rootCmd.Flags().MarkHidden("productive-offset")

	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig builds the effective configuration: defaults, then the
// config file, then AUTOGOV_* environment, then explicit flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	// .env is optional; real environment wins over its contents.
	_ = godotenv.Load()

	path := configPath
	if path == "" {
		ws := os.Getenv("AUTOGOV_WORKSPACE")
		if ws == "" {
			ws = "."
		}
		path = config.DefaultPath(ws)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("max-cycles") {
		cfg.Engine.MaxCycles = maxCycles
	}
	if cmd.Flags().Changed("cooldown") {
		cfg.Engine.CooldownSeconds = cooldownSeconds
	}
	if cmd.Flags().Changed("model") {
		cfg.Engine.Model = model
	}
	if cmd.Flags().Changed("max-pr-rounds") {
		cfg.Engine.MaxPRRounds = maxPRRounds
	}
	if cmd.Flags().Changed("director-interval") {
		cfg.Engine.DirectorInterval = directorInterval
	}
	if dryRun {
		cfg.Engine.DryRun = true
	}
	if skipImprove {
		cfg.Engine.SkipImprove = true
	}
	if skipAnalysis {
		cfg.Engine.SkipAnalysis = true
	}
	if skipResearch {
		cfg.Engine.SkipResearch = true
	}
	if verbose {
		cfg.Logging.DebugMode = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runEngine wires the components and runs cycles until a stop condition.
func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if !cfg.Engine.DryRun && os.Getenv("GITHUB_TOKEN") == "" {
		return fmt.Errorf("GITHUB_TOKEN is not set (required unless --dry-run)")
	}

	if err := logging.Initialize(cfg.Paths.Workspace); err != nil {
		return fmt.Errorf("failed to initialize file logging: %w", err)
	}
	if cfg.Logging.DebugMode {
		logging.SetDebugMode(true)
	}
	if err := logging.InitAudit(); err != nil {
		logger.Warn("audit log unavailable", zap.Error(err))
	}
	defer logging.CloseAll()

	comps, err := buildComponents(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("Engine starting",
		zap.Int("max_cycles", cfg.Engine.MaxCycles),
		zap.Int("cycle_offset", cycleOffset),
		zap.String("model", cfg.Engine.Model),
		zap.Bool("dry_run", cfg.Engine.DryRun))

	eng := engine.New(cfg, comps, cycleOffset, productiveOffset)
	if err := eng.Run(ctx); err != nil {
		logger.Error("Engine crashed", zap.Error(err))
		return err
	}
	logger.Info("Engine stopped")
	return nil
}

// buildComponents constructs the full component graph. Everything shares
// the one tracker client and the one agent runner.
func buildComponents(cfg *config.Config) (engine.Components, error) {
	prompts, err := agent.LoadPrompts(cfg.Agents.PromptsDir)
	if err != nil {
		return engine.Components{}, err
	}
	for _, role := range agent.AllRoles {
		if _, err := prompts.Require(string(role)); err != nil {
			return engine.Components{}, err
		}
	}
	roster, err := cabinet.LoadRoster(filepath.Join(cfg.Agents.PromptsDir, "ministries.yaml"))
	if err != nil {
		return engine.Components{}, err
	}

	tr := tracker.New(cfg.Tracker)
	runner := agent.NewRunner(cfg.Agents, cfg.Engine.Model)
	journal := telemetry.NewJournal(cfg.Paths.TelemetryPath(), cfg.Paths.ErrorsPath(), cfg.Limits.RetentionDays)

	return engine.Components{
		Tracker:      tr,
		Planner:      conductor.NewPlanner(runner, prompts, cfg.Limits),
		Journal:      journal,
		CondJournal:  conductor.NewJournal(cfg.Paths.ConductorJournalPath(), cfg.Limits.JournalMaxLines),
		Breaker:      telemetry.NewBreaker(journal, tr, cfg.Limits.BreakerWindow, cfg.Limits.BreakerThreshold),
		News:         scouts.NewNewsScout(runner, prompts, tr, cfg.Paths, cfg.Limits.NewsPerDay),
		Research:     scouts.NewResearchScout(runner, prompts, tr, cfg.Paths, cfg.Limits.ResearchIntervalDays, cfg.Limits.ResearchMaxIssues),
		Proposer:     oversight.NewProposer(runner, prompts, tr, cfg.Limits.ProposeMaxPerRun),
		Debate:       debate.New(runner, prompts, tr, cfg.Limits),
		Analyzer:     cabinet.NewOrchestrator(runner, prompts, roster, cfg.Agents.MinistryParallelism),
		Improver:     workflow.New(runner, prompts, tr, cfg.Paths.Workspace, cfg.Engine.MaxPRRounds),
		Director:     oversight.NewDirector(runner, prompts, tr, oversight.KindProject, cfg.Limits.DirectorMaxIssues),
		Strategic:    oversight.NewDirector(runner, prompts, tr, oversight.KindStrategic, cfg.Limits.DirectorMaxIssues),
		Editorial:    oversight.NewEditorial(runner, prompts, tr),
		Store:        publish.NewStore(cfg.Paths),
		Throttle:     publish.NewThrottle(cfg.Paths.AnalysisStatePath(), cfg.Limits.AnalysesPerDay, cfg.Limits.GetAnalysisMinGap()),
		Announcer:    publish.NewAnnouncerFromEnv(),
		Transparency: publish.NewTransparency(cfg.Paths.TransparencyDir()),
		Restarter:    restart.New(cfg.Paths.Workspace, cfg.Tracker.BaseBranch, cfg.Paths.DataDir()),
	}, nil
}
