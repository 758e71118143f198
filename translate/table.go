// Package translate maps vendor field names to canonical field names.
package translate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Table is immutable once built and safe for concurrent reads.
type Table struct {
	fields map[string]string
}

func New(fields map[string]string) *Table {
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		if k == "" || v == "" {
			continue
		}
		copied[k] = v
	}
	return &Table{fields: copied}
}

// Load reads a flat upstream->canonical mapping from a .json, .yaml or .yml file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation table '%s': %w", path, err)
	}
	return Parse(data, filepath.Ext(path))
}

func Parse(data []byte, ext string) (*Table, error) {
	fields := make(map[string]string)

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("failed to parse translation table from YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("failed to parse translation table from JSON: %w", err)
		}
	}

	return New(fields), nil
}

func (t *Table) Lookup(field string) (string, bool) {
	if t == nil {
		return "", false
	}
	name, ok := t.fields[field]
	return name, ok
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.fields)
}

// Columns translates each name, returning "" for names the table does not know.
func (t *Table) Columns(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i], _ = t.Lookup(name)
	}
	return out
}
