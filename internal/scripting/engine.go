// Package scripting loads species behavior scripts into immutable decision
// profiles at boot. The Lua VM is only consulted while loading; the decision
// phase never calls into it, which keeps evaluation pure and parallel-safe.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wildvale/server/internal/core/decision"
)

// Engine wraps a single gopher-lua VM used to evaluate behavior scripts.
// Single-goroutine access only (boot path).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all behavior scripts from the
// given directory. Scripts populate the global `behaviors` table; one entry
// per named profile.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("behaviors", vm.NewTable())

	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(filepath.Join(scriptsDir, "behavior")); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load behavior scripts: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// BehaviorProfiles converts the `behaviors` global into decision profiles.
// Fields a script leaves out keep the default weights.
func (e *Engine) BehaviorProfiles() map[string]decision.Profile {
	profiles := make(map[string]decision.Profile)
	tbl, ok := e.vm.GetGlobal("behaviors").(*lua.LTable)
	if !ok {
		return profiles
	}
	tbl.ForEach(func(k, v lua.LValue) {
		name := lua.LVAsString(k)
		row, ok := v.(*lua.LTable)
		if !ok || name == "" {
			return
		}
		p := decision.DefaultProfile()
		p.HighUrgency = lNum(row, "high_urgency", p.HighUrgency)
		p.SocialThreshold = lNum(row, "social_threshold", p.SocialThreshold)
		p.FleeThreatLevel = lNum(row, "flee_threat_level", p.FleeThreatLevel)
		p.ThreatProximity = lNum(row, "threat_proximity", p.ThreatProximity)
		p.InteractionRange = lNum(row, "interaction_range", p.InteractionRange)
		p.SocialRange = lNum(row, "social_range", p.SocialRange)
		p.WanderDistance = lNum(row, "wander_distance", p.WanderDistance)
		p.RestDuration = lNum(row, "rest_duration", p.RestDuration)
		p.MinResourceAmount = lNum(row, "min_resource_amount", p.MinResourceAmount)
		profiles[name] = p
		e.log.Debug("behavior profile loaded", zap.String("name", name))
	})
	return profiles
}

// lNum reads a number field from a Lua table, with a default for missing keys.
func lNum(t *lua.LTable, key string, def float64) float64 {
	v := t.RawGetString(key)
	if v == lua.LNil {
		return def
	}
	return float64(lua.LVAsNumber(v))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
