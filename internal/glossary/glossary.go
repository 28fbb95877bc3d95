// Package glossary loads a static term-to-definition mapping used to prepend
// disambiguation context to user prompts. A missing or unparseable glossary
// file degrades to an empty mapping; it never fails a turn.
package glossary

import (
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Glossary holds the loaded term mapping. The zero value is usable and empty.
type Glossary struct {
	terms map[string]string
}

// Load reads the YAML glossary at path. On any read or parse failure it logs
// a warning and returns an empty glossary.
func Load(path string) *Glossary {
	g := &Glossary{terms: map[string]string{}}
	if path == "" {
		return g
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("could not read glossary, using empty mapping", "path", path, "error", err)
		}
		return g
	}

	var terms map[string]string
	if err := yaml.Unmarshal(data, &terms); err != nil {
		slog.Warn("could not parse glossary, using empty mapping", "path", path, "error", err)
		return g
	}

	g.terms = terms
	return g
}

// Len returns the number of loaded terms.
func (g *Glossary) Len() int {
	return len(g.terms)
}

// Prefix renders the glossary as a terminology block to prepend to a user
// prompt. Terms are sorted so the prefix is deterministic. An empty glossary
// yields an empty prefix.
func (g *Glossary) Prefix() string {
	if len(g.terms) == 0 {
		return ""
	}

	keys := make([]string, 0, len(g.terms))
	for k := range g.terms {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("Terminology used in this conversation:\n")
	for _, k := range keys {
		sb.WriteString("- ")
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(g.terms[k])
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return sb.String()
}
