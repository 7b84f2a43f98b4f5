package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ResourceTemplate holds static data for a resource node type.
type ResourceTemplate struct {
	Name        string  `yaml:"name"`
	Kind        string  `yaml:"kind"` // "food" or "water"
	MaxAmount   float64 `yaml:"max_amount"`
	RegenRate   float64 `yaml:"regen_rate"`   // units per second
	ConsumeRate float64 `yaml:"consume_rate"` // units per second per consumer
}

type resourceListFile struct {
	Resources []ResourceTemplate `yaml:"resources"`
}

// ResourceTable holds all resource templates indexed by name.
type ResourceTable struct {
	byName map[string]*ResourceTemplate
}

// LoadResourceTable loads resource templates from a YAML file.
func LoadResourceTable(path string) (*ResourceTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resource_list: %w", err)
	}
	var f resourceListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse resource_list: %w", err)
	}
	t := &ResourceTable{byName: make(map[string]*ResourceTemplate, len(f.Resources))}
	for i := range f.Resources {
		r := &f.Resources[i]
		t.byName[r.Name] = r
	}
	return t, nil
}

// NewResourceTable builds a table from in-memory definitions. Used by
// programmatic setups and tests; production loads from YAML.
func NewResourceTable(resources []ResourceTemplate) *ResourceTable {
	t := &ResourceTable{byName: make(map[string]*ResourceTemplate, len(resources))}
	for i := range resources {
		r := &resources[i]
		t.byName[r.Name] = r
	}
	return t
}

// Get returns a resource template by name, or nil if not found.
func (t *ResourceTable) Get(name string) *ResourceTemplate {
	return t.byName[name]
}

// Count returns the number of loaded templates.
func (t *ResourceTable) Count() int {
	return len(t.byName)
}
