package catalog

import _ "embed"

//go:embed demo.yaml
var demoYAML []byte

// Demo returns the built-in catalog: setColor and setNumber setters, a
// cheaper setColor strategy that always fails, and an applyTheme strategy
// that spawns both setters.
func Demo() *Catalog {
	c, err := Parse(demoYAML)
	if err != nil {
		panic("catalog: built-in demo is invalid: " + err.Error())
	}
	return c
}
