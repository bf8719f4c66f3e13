package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"fundwatch/internal/config"
	"fundwatch/internal/enrich"
	"fundwatch/internal/journal"
	"fundwatch/internal/llm"
	"fundwatch/internal/orchestrator"
	"fundwatch/internal/pipeline"
	"fundwatch/internal/seed"
	"fundwatch/internal/supabase"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fundwatch",
	Short: "fundwatch - climate funding intelligence pipeline",
	Long: `fundwatch discovers climate-tech funding events in the Energy and Grid
sector, turns unreliable agent output into schema-valid records, and keeps
the companies behind them enriched.

Commands:
  run     Execute one discovery run (research, verify, validate, upsert)
  seed    Bootstrap the companies table from startup list pages
  enrich  Fill in one company profile (website, bio, sources)
  status  Show recent run history from the local journal`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
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
}

var (
	artifactDir string
	seedURLs    []string
	statusLimit int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one discovery run",
	Long: `Runs the full pipeline once:
  1. Researcher agent finds recent funding article URLs
  2. Verifier agent extracts structured events as JSON
  3. Extraction, sanitation, and schema validation filter the output
  4. Valid events upsert into Supabase; telemetry records the run`,
	RunE: runPipeline,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed companies from startup list pages",
	Long: `Fetches the given list-page URLs, extracts company names and official
websites from the markup, and upserts them into the companies table keyed
by slug.

Example:
  fundwatch seed --url https://example.com/top-energy-startups-2025`,
	RunE: runSeed,
}

var enrichCmd = &cobra.Command{
	Use:   "enrich [slug]",
	Short: "Enrich one company profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnrich,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent run history",
	RunE:  showStatus,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "fundwatch.yaml", "path to config file")

	runCmd.Flags().StringVar(&artifactDir, "artifacts", ".fundwatch", "directory for raw result and dropped event artifacts")
	seedCmd.Flags().StringArrayVar(&seedURLs, "url", nil, "list-page URL to seed from (repeatable)")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "number of runs to show")

	rootCmd.AddCommand(runCmd, seedCmd, enrichCmd, statusCmd)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newSupabase(cfg config.Config) (*supabase.Client, error) {
	if cfg.SupabaseURL == "" || cfg.SupabaseServiceRoleKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required")
	}
	return supabase.New(supabase.Config{
		URL:            cfg.SupabaseURL,
		ServiceRoleKey: cfg.SupabaseServiceRoleKey,
	}, logger), nil
}

func newGemini(ctx context.Context, cfg config.Config) (*llm.GeminiClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	return llm.NewGemini(ctx, cfg.GeminiAPIKey, logger)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := newSupabase(cfg)
	if err != nil {
		return err
	}
	client, err := newGemini(ctx, cfg)
	if err != nil {
		return err
	}

	j, err := journal.Open(cfg.JournalPath, logger)
	if err != nil {
		return err
	}
	defer j.Close()

	if artifactDir != "" {
		if err := os.MkdirAll(artifactDir, 0755); err != nil {
			return fmt.Errorf("failed to create artifact directory: %w", err)
		}
	}

	p := pipeline.New(client, store, j, pipeline.Options{
		Models:         cfg.Models(),
		EventsTable:    cfg.Tables.Events,
		TelemetryTable: cfg.Tables.Telemetry,
		ArtifactDir:    artifactDir,
		Orchestrator: orchestrator.Config{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryBaseDelay.Std(),
		},
	}, logger)

	sum, err := p.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Println(sum.String())
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	if len(seedURLs) == 0 {
		return fmt.Errorf("at least one --url is required")
	}

	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := newSupabase(cfg)
	if err != nil {
		return err
	}

	s := seed.NewSeeder(store, cfg.Tables.Companies, logger)
	sum, err := s.Run(ctx, seedURLs)
	if err != nil {
		return err
	}
	fmt.Printf("seeded %d companies (%d extracted from %d pages, %d unique)\n",
		sum.Upserts, sum.Extracted, sum.InputURLs, sum.Unique)
	return nil
}

func runEnrich(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := newSupabase(cfg)
	if err != nil {
		return err
	}
	client, err := newGemini(ctx, cfg)
	if err != nil {
		return err
	}

	e := enrich.New(client, store, cfg.Models(), orchestrator.Config{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBaseDelay.Std(),
	}, cfg.Tables.Companies, logger)

	profile, res, err := e.Run(ctx, args[0])
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("profile upsert failed: %s", res.Err)
	}
	fmt.Printf("enriched %s website=%q bio_len=%d sources=%d\n",
		profile.Slug, profile.WebsiteURL, len(profile.Bio), len(profile.Sources))
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(cfg.JournalPath); os.IsNotExist(statErr) {
		fmt.Printf("no journal at %s; run 'fundwatch run' first\n", filepath.Clean(cfg.JournalPath))
		return nil
	}

	j, err := journal.Open(cfg.JournalPath, logger)
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.RecentRuns(ctx, statusLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded yet")
		return nil
	}

	fmt.Printf("%-38s %-22s %-24s %-6s %-9s %s\n", "RUN", "STARTED", "MODEL", "VALID", "DURATION", "STATUS")
	for _, r := range runs {
		status := r.Status
		if r.Error != "" {
			status = fmt.Sprintf("%s (%s)", r.Status, r.Error)
		}
		fmt.Printf("%-38s %-22s %-24s %-6d %-9s %s\n",
			r.ID, r.StartedAt, r.Model, r.Validated,
			(time.Duration(r.DurationMS) * time.Millisecond).String(), status)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
