package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vendz/NL2SQL/internal/config"
	"github.com/vendz/NL2SQL/internal/embedding"
	"github.com/vendz/NL2SQL/internal/extract"
	"github.com/vendz/NL2SQL/internal/logging"
	"github.com/vendz/NL2SQL/internal/retrieval"
	"github.com/vendz/NL2SQL/internal/schema"
	"github.com/vendz/NL2SQL/internal/tracker"
)

var (
	// Global flags
	verbose   bool
	workspace string

	// Retrieval flags
	topK      int
	threshold float64
	noRelated bool

	logger *zap.Logger
	cfg    *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "nl2sql",
	Short: "nl2sql - schema-aware context selection for natural-language SQL",
	Long: `nl2sql extracts a relational schema from a directory of Sequelize
model definition files, keeps it live as files change, and selects the
minimal relevant subset of tables for a free-text question.

The selected subset plus the generated schema description are what a
downstream text-to-SQL generation step consumes.`,
	SilenceUsage: true,
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

		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("file logging disabled", zap.Error(err))
		}

		cfg, err = config.Load(workspace)
		if err != nil {
			return err
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

// scanCmd extracts the schema once and prints the description
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Extract the schema and print its description",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		snapshot, diags, err := buildSnapshot(ctx)
		if err != nil {
			return err
		}

		fmt.Println(snapshot.Description)
		if len(diags) > 0 {
			fmt.Fprintf(os.Stderr, "\n%d file(s) skipped:\n", len(diags))
			for _, d := range diags {
				fmt.Fprintf(os.Stderr, "  %s\n", d)
			}
		}
		return nil
	},
}

// retrieveCmd answers one query with the relevant schema subset
var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Select the schema subset relevant to a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		query := strings.Join(args, " ")

		engine, _, err := initRetrieval(ctx)
		if err != nil {
			return err
		}

		entities, err := engine.Retrieve(ctx, query, retrievalOptions())
		if err != nil {
			return err
		}

		if len(entities) == 0 {
			fmt.Println("No relevant tables found.")
			return nil
		}
		for i := range entities {
			fmt.Print(schema.EntityText(&entities[i]))
		}
		return nil
	},
}

// explainCmd shows per-entity signal diagnostics for a query
var explainCmd = &cobra.Command{
	Use:   "explain [query]",
	Short: "Show why each table was or was not selected",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		query := strings.Join(args, " ")

		engine, _, err := initRetrieval(ctx)
		if err != nil {
			return err
		}

		matches, err := engine.Explain(ctx, query, retrievalOptions())
		if err != nil {
			return err
		}

		if len(matches) == 0 {
			fmt.Println("No table matched any signal.")
			return nil
		}
		for _, m := range matches {
			fmt.Printf("%-24s score=%.3f keyword=%-5v related=%-5v  %s\n",
				m.Entity, m.VectorScore, m.Keyword, m.Related, m.Reason)
		}
		return nil
	},
}

// watchCmd keeps the schema live until interrupted
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the models directory and keep the schema index fresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		engine, trk, err := initRetrieval(ctx)
		if err != nil {
			return err
		}

		onChanged := func() {
			snap := trk.Current()
			if err := engine.Initialize(ctx, snap.Entities); err != nil {
				logger.Error("failed to refresh embedding index", zap.Error(err))
				return
			}
			logger.Info("schema reloaded", zap.Int("entities", len(snap.Entities)))
		}

		if err := trk.StartWatch(ctx, onChanged); err != nil {
			return err
		}
		defer trk.StopWatch()

		logger.Info("watching for model changes, press Ctrl-C to stop")
		<-ctx.Done()

		stats := trk.Stats()
		logger.Info("watch stopped",
			zap.Int("reloads", stats.Reloads),
			zap.Int("failed_reloads", stats.FailedReloads))
		return nil
	},
}

// buildSnapshot runs one extraction pass over the configured models dir.
func buildSnapshot(ctx context.Context) (*schema.Snapshot, []extract.Diagnostic, error) {
	dir, err := extract.FindModelsDir(workspace, cfg.ModelsDir)
	if err != nil {
		return nil, nil, err
	}

	scanner := extract.NewScanner()
	start := time.Now()
	snapshot, diags, err := scanner.Build(ctx, dir)
	if err != nil {
		return nil, diags, err
	}
	logger.Debug("schema extracted",
		zap.Int("entities", len(snapshot.Entities)),
		zap.Int("diagnostics", len(diags)),
		zap.Duration("elapsed", time.Since(start)))
	return snapshot, diags, nil
}

// initRetrieval builds the snapshot, the tracker around it, and an
// initialized retrieval engine.
func initRetrieval(ctx context.Context) (*retrieval.Engine, *tracker.Tracker, error) {
	dir, err := extract.FindModelsDir(workspace, cfg.ModelsDir)
	if err != nil {
		return nil, nil, err
	}

	trk := tracker.New(dir, extract.NewScanner(),
		time.Duration(cfg.Watch.DebounceMillis)*time.Millisecond)
	if _, err := trk.Load(ctx); err != nil {
		return nil, nil, err
	}

	embedder, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
		TaskType:       cfg.Embedding.TaskType,
	})
	if err != nil {
		return nil, nil, err
	}

	engine := retrieval.NewEngine(embedder)
	if err := engine.Initialize(ctx, trk.Current().Entities); err != nil {
		return nil, nil, err
	}
	return engine, trk, nil
}

// retrievalOptions merges config defaults with command-line flags.
func retrievalOptions() retrieval.Options {
	opts := retrieval.Options{
		TopK:           cfg.Retrieval.TopK,
		Threshold:      cfg.Retrieval.Threshold,
		IncludeRelated: cfg.Retrieval.IncludeRelatedOrDefault(),
	}
	if topK > 0 {
		opts.TopK = topK
	}
	if threshold >= 0 {
		opts.Threshold = threshold
	}
	if noRelated {
		opts.IncludeRelated = false
	}
	return opts
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "dir", "d", ".", "workspace directory")

	for _, cmd := range []*cobra.Command{retrieveCmd, explainCmd} {
		cmd.Flags().IntVar(&topK, "top-k", 0, "max entities from the vector signal")
		cmd.Flags().Float64Var(&threshold, "threshold", -1, "minimum vector similarity")
		cmd.Flags().BoolVar(&noRelated, "no-related", false, "disable relational expansion")
	}

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
