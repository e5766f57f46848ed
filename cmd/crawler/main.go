package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/config"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/logging"
)

const version = "1.0.0"

var (
	// Global flags
	verbose   bool
	workspace string
	timeout   time.Duration

	// Run flags
	runGrade     string
	runSubject   string
	runSubtopics string
	runMethod    string
	runURLs      []string

	// Discover flags
	discoverMethod string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "crawler",
	Short: "NotebookLM crawler - topic discovery, collection, and AI synthesis",
	Long: `crawler turns a study topic into an AI-generated report.

The pipeline resolves source URLs (cache, explicit list, or search), fetches
and cleans the pages, chunks the content, and routes it through NotebookLM
and/or a hosted LLM for synthesis. Configuration lives in
<workspace>/.crawler/config.yaml with environment overrides.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real env vars win either way.
		_ = godotenv.Load()

		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			workspace, _ = os.Getwd()
		}
		cfg, err = config.Load(workspace)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.Logging.DebugMode = true
		}

		if err := logging.Initialize(workspace, logging.Options{
			DebugMode:  cfg.Logging.DebugMode,
			Level:      cfg.Logging.Level,
			JSONFormat: cfg.Logging.JSONFormat,
			Categories: cfg.Logging.Categories,
		}); err != nil {
			logger.Warn("file logging disabled", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run [topic]",
	Short: "Run the full pipeline for a topic",
	Long: `Executes one pipeline run: source resolution, collection, chunking,
and AI routing. The final report is printed to stdout.

Examples:
  crawler run "Force and Pressure" --grade 8 --subject Physics
  crawler run "Friction" --method direct --url https://example.org/friction
  crawler run "Gravitation" --method notebooklm`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPipeline,
}

var discoverCmd = &cobra.Command{
	Use:   "discover [topic]",
	Short: "Refresh the discovery cache for a topic via a search method",
	Long: `Re-resolves sources through the chosen search engine and overwrites the
cached entry. This is the only operation that re-scrapes; normal runs with
--method auto read the cache and never touch the network for discovery.`,
	Args: cobra.MinimumNArgs(1),
	RunE: refreshDiscovery,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the discovery cache",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show [topic]",
	Short: "Show the cached source URLs for a topic",
	Args:  cobra.MinimumNArgs(1),
	RunE:  showCache,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [topic]",
	Short: "Clear one cached topic, or the whole cache with no arguments",
	RunE:  clearCache,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configured backends and cache location",
	RunE:  showStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the crawler version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("crawler %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Minute, "Overall run timeout")

	runCmd.Flags().StringVar(&runGrade, "grade", "", "Target grade level")
	runCmd.Flags().StringVar(&runSubject, "subject", "", "Subject area")
	runCmd.Flags().StringVar(&runSubtopics, "subtopics", "", "Comma-separated subtopics to emphasize")
	runCmd.Flags().StringVar(&runMethod, "method", "", "Discovery method: notebooklm, auto, direct, google, duckduckgo (default: config)")
	runCmd.Flags().StringSliceVar(&runURLs, "url", nil, "Explicit source URL (repeatable, implies --method direct)")

	discoverCmd.Flags().StringVar(&discoverMethod, "method", "google", "Search method: google or duckduckgo")
	discoverCmd.Flags().StringVar(&runGrade, "grade", "", "Target grade level")
	discoverCmd.Flags().StringVar(&runSubject, "subject", "", "Subject area")

	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheShowCmd.Flags().StringVar(&runGrade, "grade", "", "Target grade level")
	cacheShowCmd.Flags().StringVar(&runSubject, "subject", "", "Subject area")
	cacheClearCmd.Flags().StringVar(&runGrade, "grade", "", "Target grade level")
	cacheClearCmd.Flags().StringVar(&runSubject, "subject", "", "Subject area")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
