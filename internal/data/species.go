package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Species holds static data for a creature species loaded from YAML. Rates
// are per second; the simulation scales them by the tick delta.
type Species struct {
	Name             string  `yaml:"name"`
	Diet             string  `yaml:"diet"` // "herbivore", "carnivore", "omnivore"
	MaxHealth        float64 `yaml:"max_health"`
	MoveSpeed        float64 `yaml:"move_speed"`        // world units per second
	PerceptionRadius float64 `yaml:"perception_radius"` // world units
	HungerRate       float64 `yaml:"hunger_rate"`
	ThirstRate       float64 `yaml:"thirst_rate"`
	EnergyRate       float64 `yaml:"energy_rate"`
	SocialRate       float64 `yaml:"social_rate"`
	ThreatLevel      float64 `yaml:"threat_level"` // how dangerous this species looks to others, 0-1
	Behavior         string  `yaml:"behavior"`     // lua behavior profile name, "" = default
}

type speciesListFile struct {
	Species []Species `yaml:"species"`
}

// SpeciesTable holds all species indexed by name.
type SpeciesTable struct {
	byName map[string]*Species
}

// LoadSpeciesTable loads species definitions from a YAML file.
func LoadSpeciesTable(path string) (*SpeciesTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read species_list: %w", err)
	}
	var f speciesListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse species_list: %w", err)
	}
	t := &SpeciesTable{byName: make(map[string]*Species, len(f.Species))}
	for i := range f.Species {
		s := &f.Species[i]
		t.byName[s.Name] = s
	}
	return t, nil
}

// NewSpeciesTable builds a table from in-memory definitions. Used by
// programmatic setups and tests; production loads from YAML.
func NewSpeciesTable(species []Species) *SpeciesTable {
	t := &SpeciesTable{byName: make(map[string]*Species, len(species))}
	for i := range species {
		s := &species[i]
		t.byName[s.Name] = s
	}
	return t
}

// Get returns a species by name, or nil if not found.
func (t *SpeciesTable) Get(name string) *Species {
	return t.byName[name]
}

// Count returns the number of loaded species.
func (t *SpeciesTable) Count() int {
	return len(t.byName)
}

// Each visits every species.
func (t *SpeciesTable) Each(fn func(*Species)) {
	for _, s := range t.byName {
		fn(s)
	}
}
