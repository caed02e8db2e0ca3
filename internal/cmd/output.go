package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/colorprofile"
	"github.com/rand/goalsolver/internal/solver"
	"github.com/sahilm/fuzzy"
)

// styled wraps w so that ANSI styling is downsampled to what the output
// supports, and stripped entirely when w is not a terminal.
func styled(w io.Writer) io.Writer {
	return colorprofile.NewWriter(w, os.Environ())
}

// suggestKinds returns up to three known kinds that fuzzily match kind,
// best match first. A kind that is known yields no suggestions.
func suggestKinds(kind solver.Kind, known []solver.Kind) []string {
	if slices.Contains(known, kind) {
		return nil
	}

	names := make([]string, len(known))
	for i, k := range known {
		names[i] = string(k)
	}

	var out []string
	for _, m := range fuzzy.Find(string(kind), names) {
		out = append(out, m.Str)
		if len(out) == 3 {
			break
		}
	}
	return out
}

func printSuggestions(w io.Writer, kind solver.Kind, known []solver.Kind) {
	if s := suggestKinds(kind, known); len(s) > 0 {
		fmt.Fprintf(w, "No strategy handles %q. Did you mean %s?\n", kind, strings.Join(s, ", "))
	}
}
