package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/MakeNowJust/heredoc"
	"github.com/rand/goalsolver/internal/solver"
	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [kind]",
		Short: "Show the candidate strategies for a task without executing them",
		Long:  "Estimate a task and print its candidate strategies in the order they would be tried",
		Example: heredoc.Doc(`
			# Candidate order for a demo task
			goalsolver plan setColor --set value=blue

			# Full estimation tree, including charged child tasks
			goalsolver plan applyTheme -s color=red -s number=3 --tree

			# Only charge the task's direct children
			goalsolver plan applyTheme -s color=red -s number=3 --depth 1 --tree
		`),
		Args: cobra.MaximumNArgs(1),
		RunE: runPlan,
	}

	addTaskFlags(cmd)
	cmd.Flags().Bool("tree", false, "Print the full estimation tree")
	cmd.Flags().StringP("output", "o", "text", "Output format (text, json)")
	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	showTree, _ := cmd.Flags().GetBool("tree")
	output, _ := cmd.Flags().GetString("output")

	task, err := readTask(cmd, args)
	if err != nil {
		return err
	}

	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	out := cmd.OutOrStdout()
	switch output {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(sess.solver.Explain(task))
	case "text":
	default:
		return fmt.Errorf("unknown output format %q", output)
	}

	if showTree {
		printTree(styled(out), sess.solver.Explain(task))
		return nil
	}
	candidates := sess.solver.FindSolutionsFor(task)
	printPlan(styled(out), task, sess.solver.SearchDepth(), candidates)
	if len(candidates) == 0 {
		printSuggestions(cmd.ErrOrStderr(), task.Kind(), sess.catalog.Kinds())
	}
	return nil
}

func formatCost(cost float64) string {
	if cost >= solver.UnresolvableCost {
		return "unresolvable"
	}
	return fmt.Sprintf("%.2f", cost)
}

func printPlan(w io.Writer, task solver.Task, depth int, candidates []solver.Candidate) {
	bold := lipgloss.NewStyle().Bold(true)
	faint := lipgloss.NewStyle().Faint(true)

	fmt.Fprintf(w, "%s %s\n", bold.Render("Plan for "+string(task.Kind())), faint.Render(fmt.Sprintf("(search depth %d)", depth)))
	if len(candidates) == 0 {
		fmt.Fprintln(w, "  No eligible strategies.")
		return
	}
	for i, c := range candidates {
		fmt.Fprintf(w, "  %d. %-20s %s\n", i+1, c.Strategy.Name(), formatCost(c.Cost))
	}
}

func printTree(w io.Writer, est *solver.Estimate) {
	bold := lipgloss.NewStyle().Bold(true)
	fmt.Fprintf(w, "%s  cost %s\n", bold.Render(string(est.Kind)), formatCost(est.Cost))
	writeEstimate(w, est, 1)
}

func writeEstimate(w io.Writer, est *solver.Estimate, level int) {
	faint := lipgloss.NewStyle().Faint(true)
	indent := strings.Repeat("  ", level)

	if est.Unresolvable {
		fmt.Fprintf(w, "%s%s\n", indent, faint.Render("no eligible strategy"))
		return
	}
	for _, opt := range est.Options {
		marker := " "
		if opt.Chosen {
			marker = "*"
		}
		line := fmt.Sprintf("%s%s %s own %.2f total %s", indent, marker, opt.Strategy, opt.OwnCost, formatCost(opt.Cost))
		if opt.Truncated {
			line += " " + faint.Render("(children beyond search depth)")
		}
		fmt.Fprintln(w, line)
		for _, child := range opt.Children {
			fmt.Fprintf(w, "%s  - %s  cost %s\n", indent, child.Kind, formatCost(child.Cost))
			writeEstimate(w, child, level+2)
		}
	}
}
