package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/MakeNowJust/heredoc"
	"github.com/rand/goalsolver/internal/observability"
	"github.com/rand/goalsolver/internal/resilience"
	"github.com/rand/goalsolver/internal/solver"
	"github.com/spf13/cobra"
)

func newSolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve [kind]",
		Short: "Resolve a task",
		Long:  "Estimate every eligible strategy for a task and execute them cheapest first until one succeeds",
		Example: heredoc.Doc(`
			# Set the color through the demo catalog
			goalsolver solve setColor --set value=blue

			# Same task as JSON, starting from an existing state
			goalsolver solve --json '{"kind":"setColor","value":"blue"}' --state number=7

			# Spawn child tasks and show every solver event
			goalsolver solve applyTheme -s color=red -s number=3 --trace

			# Use your own catalog and print the final state as JSON
			goalsolver solve --catalog strategies.yaml deploy -s env=prod -o json
		`),
		Args: cobra.MaximumNArgs(1),
		RunE: runSolve,
	}

	addTaskFlags(cmd)
	cmd.Flags().Bool("trace", false, "Print every solver event")
	cmd.Flags().Bool("stats", false, "Print solver metrics after the run")
	cmd.Flags().Duration("timeout", 0, "Give up after this long (0 waits indefinitely)")
	cmd.Flags().StringP("output", "o", "text", "Output format (text, json)")
	return cmd
}

func runSolve(cmd *cobra.Command, args []string) error {
	showTrace, _ := cmd.Flags().GetBool("trace")
	showStats, _ := cmd.Flags().GetBool("stats")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	output, _ := cmd.Flags().GetString("output")

	if output != "text" && output != "json" {
		return fmt.Errorf("unknown output format %q", output)
	}

	task, err := readTask(cmd, args)
	if err != nil {
		return err
	}

	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	solveErr := sess.solver.HandleTask(ctx, task)
	elapsed := time.Since(start)

	if showTrace {
		printTrace(cmd.ErrOrStderr(), sess.events.Recent(0), sess.events.Dropped())
	}

	if output == "json" {
		if err := writeResultJSON(cmd.OutOrStdout(), string(task.Kind()), solveErr, sess.state.Snapshot()); err != nil {
			return err
		}
	} else {
		printResult(styled(cmd.OutOrStdout()), sess, string(task.Kind()), solveErr, elapsed)
		printSuggestions(cmd.ErrOrStderr(), task.Kind(), sess.catalog.Kinds())
	}

	if showStats {
		printStats(cmd.ErrOrStderr(), sess.metrics.Summary())
		printBreakers(cmd.ErrOrStderr(), sess.breakers.States())
	}
	return solveErr
}

func printResult(w io.Writer, sess *session, kind string, solveErr error, elapsed time.Duration) {
	bold := lipgloss.NewStyle().Bold(true)
	faint := lipgloss.NewStyle().Faint(true)

	if solveErr != nil {
		fmt.Fprintf(w, "✗ %s %s\n", bold.Render(kind), faint.Render("unresolved"))
	} else {
		fmt.Fprintf(w, "✓ %s %s\n", bold.Render(kind), faint.Render("resolved in "+elapsed.Round(time.Microsecond).String()))
	}

	keys := sess.state.Keys()
	if len(keys) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, bold.Render("State:"))
	for _, key := range keys {
		v, _ := sess.state.Get(key)
		fmt.Fprintf(w, "  %-12s %v\n", key, v)
	}
}

type solveResult struct {
	Task     string         `json:"task"`
	Resolved bool           `json:"resolved"`
	Error    string         `json:"error,omitempty"`
	State    map[string]any `json:"state"`
}

func writeResultJSON(w io.Writer, kind string, solveErr error, state map[string]any) error {
	res := solveResult{Task: kind, Resolved: solveErr == nil, State: state}
	if solveErr != nil {
		res.Error = solveErr.Error()
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(res)
}

func printTrace(w io.Writer, records []observability.Record, dropped int) {
	fmt.Fprintf(w, "--- Trace ---\n")
	if dropped > 0 {
		fmt.Fprintf(w, "(trace truncated: %d earliest event(s) dropped)\n", dropped)
	}
	for _, rec := range records {
		indent := strings.Repeat("  ", rec.Depth)
		line := fmt.Sprintf("%s[%s] %s", indent, rec.Type, rec.Kind)
		if rec.Strategy != "" {
			line += fmt.Sprintf(" via %s (cost %.2f)", rec.Strategy, rec.Cost)
		}
		if rec.Type == solver.EventEstimate {
			line += fmt.Sprintf(" %d candidate(s)", rec.Candidates)
		}
		if rec.Error != "" {
			line += ": " + truncateStr(rec.Error, 80)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
}

func printStats(w io.Writer, sum observability.Summary) {
	fmt.Fprintf(w, "Solver Statistics:\n")
	fmt.Fprintf(w, "  Tasks:        %d\n", sum.Tasks)
	fmt.Fprintf(w, "  Attempts:     %d\n", sum.Attempts)
	fmt.Fprintf(w, "  Failures:     %d\n", sum.Failures)
	fmt.Fprintf(w, "  Resolved:     %d\n", sum.Resolved)
	fmt.Fprintf(w, "  Unresolved:   %d\n", sum.Unresolved)
	fmt.Fprintf(w, "  Mean attempt: %s\n", sum.MeanAttempt)
}

func printBreakers(w io.Writer, states map[string]resilience.CircuitState) {
	if len(states) == 0 {
		return
	}
	fmt.Fprintf(w, "\nCircuit Breakers:\n")
	for _, name := range slices.Sorted(maps.Keys(states)) {
		fmt.Fprintf(w, "  %-14s %s\n", name+":", states[name])
	}
}

// truncateStr shortens s to at most max runes.
func truncateStr(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
