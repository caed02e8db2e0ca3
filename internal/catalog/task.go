package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rand/goalsolver/internal/solver"
	"github.com/tidwall/gjson"
)

// ParseTask decodes a JSON task. The kind comes from "kind" (or "name").
// Fields come from a "fields" object when present, otherwise from every
// other top-level key.
//
//	{"kind": "setColor", "value": "blue"}
//	{"kind": "setColor", "fields": {"value": "blue"}}
func ParseTask(data []byte) (solver.Record, error) {
	if !gjson.ValidBytes(data) {
		return solver.Record{}, errors.New("parse task: invalid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return solver.Record{}, errors.New("parse task: expected a JSON object")
	}

	kindKey := "kind"
	kind := doc.Get(kindKey)
	if !kind.Exists() {
		kindKey = "name"
		kind = doc.Get(kindKey)
	}
	if kind.Type != gjson.String || kind.Str == "" {
		return solver.Record{}, errors.New("parse task: missing string \"kind\"")
	}

	fields := make(map[string]any)
	if nested := doc.Get("fields"); nested.IsObject() {
		nested.ForEach(func(key, value gjson.Result) bool {
			fields[key.Str] = value.Value()
			return true
		})
	} else {
		doc.ForEach(func(key, value gjson.Result) bool {
			if key.Str != kindKey {
				fields[key.Str] = value.Value()
			}
			return true
		})
	}

	return solver.NewRecord(solver.Kind(kind.Str), fields), nil
}

// ParseAssignments builds a task from key=value pairs. Values that are valid
// JSON (numbers, booleans, null, quoted strings, arrays, objects) are
// decoded; anything else is kept as a plain string.
func ParseAssignments(kind string, pairs []string) (solver.Record, error) {
	if kind == "" {
		return solver.Record{}, errors.New("task kind is required")
	}

	fields := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return solver.Record{}, fmt.Errorf("invalid assignment %q, want key=value", pair)
		}
		if gjson.Valid(raw) {
			fields[key] = gjson.Parse(raw).Value()
		} else {
			fields[key] = raw
		}
	}
	return solver.NewRecord(solver.Kind(kind), fields), nil
}
