// Package cmd implements the goalsolver command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/MakeNowJust/heredoc"
	"github.com/charmbracelet/fang"
	"github.com/rand/goalsolver/internal/catalog"
	"github.com/rand/goalsolver/internal/config"
	"github.com/rand/goalsolver/internal/log"
	"github.com/rand/goalsolver/internal/observability"
	"github.com/rand/goalsolver/internal/resilience"
	"github.com/rand/goalsolver/internal/solver"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "goalsolver",
		Short: "Resolve tasks with the cheapest capable strategy",
		Long: heredoc.Doc(`
			goalsolver resolves tasks by asking every registered strategy for a
			cost estimate, charging the predicted child tasks up to the search
			depth, and executing the cheapest candidate first. When a strategy
			fails the next cheapest one is tried.

			Strategies are declared in a YAML catalog. Without --catalog a
			built-in demo catalog with setColor, setNumber and applyTheme
			strategies is used.
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "Config file (YAML)")
	root.PersistentFlags().String("env-file", "", "Load environment variables from a .env file")
	root.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")

	root.AddCommand(
		newSolveCmd(),
		newPlanCmd(),
		newConfigCmd(),
	)
	return root
}

// Execute runs the command line.
func Execute(ctx context.Context) error {
	return fang.Execute(ctx, NewRootCmd(), fang.WithVersion(Version))
}

// loadConfig reads the configuration selected by the global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.Load(config.Options{Path: path, EnvFile: envFile, Debug: debug})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// session is everything a solving command needs.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	closer   io.Closer
	catalog  *catalog.Catalog
	state    *catalog.State
	solver   *solver.Solver
	metrics  *observability.SolverMetrics
	events   *observability.EventLog
	breakers *resilience.BreakerSet
}

func (s *session) Close() error {
	return s.closer.Close()
}

// traceBuffer is the number of solver events kept for --trace.
const traceBuffer = 1024

// openSession loads config and catalog and registers the catalog's
// strategies with a new solver.
func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, closer, err := log.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	sess := &session{
		cfg:      cfg,
		logger:   logger,
		closer:   closer,
		metrics:  observability.NewSolverMetrics(nil),
		events:   observability.NewEventLog(observability.WithLevel(observability.LevelDebug), observability.WithBuffer(traceBuffer)),
		breakers: resilience.NewBreakerSet(),
	}

	catalogPath, _ := cmd.Flags().GetString("catalog")
	if catalogPath == "" {
		sess.catalog = catalog.Demo()
	} else if sess.catalog, err = catalog.LoadAll(catalogPath); err != nil {
		_ = closer.Close()
		return nil, err
	}

	seed, _ := cmd.Flags().GetStringArray("state")
	initial, err := catalog.ParseAssignments("state", seed)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("--state: %w", err)
	}
	sess.state = catalog.NewState(initial.Fields)

	depth := cfg.SearchDepth
	if cmd.Flags().Changed("depth") {
		depth, _ = cmd.Flags().GetInt("depth")
	}

	sess.solver = solver.New(solver.Config{
		SearchDepth: depth,
		Logger:      logger,
		Observer:    observability.Fanout{sess.metrics, sess.events},
	})
	if err := sess.solver.SetSearchDepth(depth); err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("--depth: %w", err)
	}

	strategies := sess.catalog.Build(sess.state, cfg.Policy())
	sess.breakers.Track(strategies...)
	sess.solver.Register(strategies...)

	logger.Debug("Session ready",
		"strategies", len(strategies),
		"search_depth", depth,
		"breaker", cfg.Breaker.Enabled,
		"rate_limit", cfg.RateLimit.PerSecond,
	)
	return sess, nil
}

// addTaskFlags registers the flags shared by commands that take a task.
func addTaskFlags(cmd *cobra.Command) {
	cmd.Flags().String("catalog", "", "Strategy catalog file or glob such as 'strategies/**/*.yaml'; defaults to the built-in demo")
	cmd.Flags().StringP("task", "t", "", "Task kind")
	cmd.Flags().StringArrayP("set", "s", nil, "Task field as key=value (repeatable)")
	cmd.Flags().StringP("json", "j", "", `Task as JSON, or "-" to read it from stdin`)
	cmd.Flags().StringArray("state", nil, "Initial state as key=value (repeatable)")
	cmd.Flags().Int("depth", 0, "Override the configured search depth")
}

// readTask builds the task from positional args and task flags.
func readTask(cmd *cobra.Command, args []string) (solver.Record, error) {
	raw, _ := cmd.Flags().GetString("json")
	kind, _ := cmd.Flags().GetString("task")
	sets, _ := cmd.Flags().GetStringArray("set")

	if len(args) > 0 {
		if kind != "" && kind != args[0] {
			return solver.Record{}, fmt.Errorf("task kind given twice: %q and %q", args[0], kind)
		}
		kind = args[0]
	}

	if raw != "" {
		if kind != "" || len(sets) > 0 {
			return solver.Record{}, fmt.Errorf("--json cannot be combined with a task kind or --set")
		}
		data := []byte(raw)
		if raw == "-" {
			var err error
			if data, err = io.ReadAll(cmd.InOrStdin()); err != nil {
				return solver.Record{}, fmt.Errorf("read task from stdin: %w", err)
			}
		}
		return catalog.ParseTask(data)
	}

	if kind == "" {
		return solver.Record{}, fmt.Errorf("no task given: pass a kind, --task, or --json")
	}
	return catalog.ParseAssignments(kind, sets)
}
