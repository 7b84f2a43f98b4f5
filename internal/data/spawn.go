package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CreatureSpawn defines where and how many creatures to spawn at boot.
type CreatureSpawn struct {
	Species string  `yaml:"species"`
	Count   int     `yaml:"count"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Radius  float64 `yaml:"radius"` // scatter radius around (x, y)
}

// ResourceSpawn defines where resource nodes are placed at boot.
type ResourceSpawn struct {
	Resource string  `yaml:"resource"`
	Count    int     `yaml:"count"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Radius   float64 `yaml:"radius"`
}

type spawnListFile struct {
	Creatures []CreatureSpawn `yaml:"creatures"`
	Resources []ResourceSpawn `yaml:"resources"`
}

// SpawnList holds the boot-time population of the world.
type SpawnList struct {
	Creatures []CreatureSpawn
	Resources []ResourceSpawn
}

// LoadSpawnList loads spawn entries from a YAML file.
func LoadSpawnList(path string) (*SpawnList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawn_list: %w", err)
	}
	var f spawnListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse spawn_list: %w", err)
	}
	return &SpawnList{Creatures: f.Creatures, Resources: f.Resources}, nil
}

// Count returns the total number of spawn entries.
func (l *SpawnList) Count() int {
	return len(l.Creatures) + len(l.Resources)
}
