package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"foresight/internal/config"
	"foresight/internal/engine"
	"foresight/internal/events"
	"foresight/internal/logging"
	"foresight/internal/store"
	"foresight/internal/types"
	"foresight/internal/watcher"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dataDir    string

	// Logger
	logger *zap.Logger
	cfg    *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "foresight",
	Short: "Foresight - predictive suggestion engine",
	Long: `Foresight learns from observed user actions (commands, workflows,
file accesses, free text) and predicts what comes next.

Four competing models score candidate suggestions; results are ranked,
filtered, and enriched with workspace context. Learned history persists
across runs through a local SQLite state store.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dataDir != "" {
			cfg.Store.DataDir = dataDir
		}
		if verbose {
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}
		return logging.Initialize(cfg.Store.DataDir, cfg.Logging.DebugMode, cfg.Logging.Level)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

// openEngine builds an engine backed by the configured SQLite store. The
// returned closer tears down both.
func openEngine() (*engine.Engine, func(), error) {
	st, err := store.NewSQLiteStateStore(cfg.DatabasePath())
	if err != nil {
		return nil, nil, err
	}
	eng := engine.New(cfg.Engine, st)
	closer := func() {
		eng.Close()
		_ = st.Close()
	}
	return eng, closer, nil
}

var (
	learnContext []string
	learnResult  string
)

var learnCmd = &cobra.Command{
	Use:   "learn <type> <value>",
	Short: "Record a single action (command, workflow, file, or text)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closer, err := openEngine()
		if err != nil {
			return err
		}
		defer closer()

		action := types.Action{Type: args[0], Value: args[1]}
		if len(learnContext) > 0 {
			action.Context = make(map[string]any, len(learnContext))
			for _, kv := range learnContext {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("invalid --context %q, want key=value", kv)
				}
				action.Context[k] = v
			}
		}
		if learnResult != "" {
			action.Result = learnResult
		}

		eng.Learn(action)
		logger.Info("Action learned",
			zap.String("type", action.Type),
			zap.String("value", action.Value),
			zap.Float64("confidence", eng.GetConfidence()))
		fmt.Printf("Learned %s action %q (engine confidence %.2f)\n",
			action.Type, action.Value, eng.GetConfidence())
		return nil
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict <input>",
	Short: "Predict likely next actions for an input",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closer, err := openEngine()
		if err != nil {
			return err
		}
		defer closer()

		// Predictions arrive asynchronously after the debounce window, so
		// listen on the bus rather than trusting the pre-update return.
		sub := eng.Bus().Subscribe(events.TopicPredictions)
		eng.Predict(args[0])

		select {
		case evt := <-sub:
			batch, ok := evt.Payload.(engine.PredictionBatch)
			if !ok {
				return fmt.Errorf("unexpected payload on %s", events.TopicPredictions)
			}
			if len(batch.Predictions) == 0 {
				fmt.Println("No predictions above the confidence floor.")
				return nil
			}
			for i, p := range batch.Predictions {
				fmt.Printf("%d. %-40q %.2f  [%s/%s]", i+1, p.Value, p.Confidence, p.Model, p.Type)
				if p.Description != "" {
					fmt.Printf("  %s", p.Description)
				}
				fmt.Println()
			}
		case <-time.After(cfg.Engine.DebounceInterval + 2*time.Second):
			return fmt.Errorf("timed out waiting for predictions")
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the workspace, learn file activity, print live predictions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Watcher.Enabled {
			return fmt.Errorf("watcher disabled in config")
		}
		root := cfg.Watcher.Root
		if root == "" {
			var err error
			root, err = os.Getwd()
			if err != nil {
				return err
			}
		}

		eng, closer, err := openEngine()
		if err != nil {
			return err
		}
		defer closer()

		w, err := watcher.New(root, cfg.Watcher.Debounce, cfg.Watcher.IgnoreDirs, eng.Learn)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if err := w.Start(ctx); err != nil {
			return err
		}
		eng.AttachProvider(w)

		enhanced := eng.Bus().Subscribe(events.TopicEnhancedPredictions)
		logger.Info("Watching workspace", zap.String("root", root))
		fmt.Printf("Watching %s (Ctrl-C to stop)\n", root)

		for {
			select {
			case <-ctx.Done():
				w.Stop()
				stats := w.Statistics()
				fmt.Printf("\nStopped. %d files settled, %d dirs watched, %d branch changes.\n",
					stats.FilesSettled, stats.DirsWatched, stats.BranchChanges)
				return nil
			case evt, ok := <-enhanced:
				if !ok {
					return nil
				}
				batch, ok := evt.Payload.(engine.PredictionBatch)
				if !ok || len(batch.Predictions) == 0 {
					continue
				}
				fmt.Printf("--- predictions @ %s ---\n", batch.GeneratedAt.Format("15:04:05"))
				for _, p := range batch.Predictions {
					fmt.Printf("  %-40q %.2f [%s]\n", p.Value, p.Confidence, p.Model)
				}
			}
		}
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print engine statistics as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closer, err := openEngine()
		if err != nil {
			return err
		}
		defer closer()

		data, err := json.MarshalIndent(eng.GetStatistics(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all learned state and persisted history",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closer, err := openEngine()
		if err != nil {
			return err
		}
		defer closer()

		eng.Reset()
		logger.Info("Engine state reset")
		fmt.Println("All learned state cleared.")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		c := config.DefaultConfig()
		fmt.Printf("%s %s\n", c.Name, c.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".foresight/config.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Override data directory")

	learnCmd.Flags().StringArrayVar(&learnContext, "context", nil, "Context key=value (repeatable)")
	learnCmd.Flags().StringVar(&learnResult, "result", "", "Action result")

	rootCmd.AddCommand(learnCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
