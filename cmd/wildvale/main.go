package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wildvale/server/internal/config"
	"github.com/wildvale/server/internal/core/event"
	"github.com/wildvale/server/internal/core/spatial"
	coresys "github.com/wildvale/server/internal/core/system"
	"github.com/wildvale/server/internal/data"
	"github.com/wildvale/server/internal/obs"
	"github.com/wildvale/server/internal/persist"
	"github.com/wildvale/server/internal/scripting"
	"github.com/wildvale/server/internal/sim"
	"github.com/wildvale/server/internal/system"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            Wildvale  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      creature simulation server           \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mworld:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("WILDVALE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 3. Connect to PostgreSQL and run migrations (optional)
	var (
		db           *persist.DB
		snapshotRepo *persist.SnapshotRepo
		journalRepo  *persist.JournalRepo
	)
	if cfg.Database.Enabled {
		printSection("database")
		db, err = persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		if err := persist.RunMigrations(ctx, db.Pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")
		fmt.Println()

		snapshotRepo = persist.NewSnapshotRepo(db, cfg.Persistence.KeepSnapshots)
		journalRepo = persist.NewJournalRepo(db)
	}

	// 4. Load data tables
	printSection("data")

	speciesTable, err := data.LoadSpeciesTable(filepath.Join(cfg.Data.Dir, "species_list.yaml"))
	if err != nil {
		return fmt.Errorf("load species table: %w", err)
	}
	printStat("species", speciesTable.Count())

	resourceTable, err := data.LoadResourceTable(filepath.Join(cfg.Data.Dir, "resource_list.yaml"))
	if err != nil {
		return fmt.Errorf("load resource table: %w", err)
	}
	printStat("resource templates", resourceTable.Count())

	spawnList, err := data.LoadSpawnList(filepath.Join(cfg.Data.Dir, "spawn_list.yaml"))
	if err != nil {
		return fmt.Errorf("load spawn list: %w", err)
	}

	// 5. Load Lua behavior profiles
	luaEngine, err := scripting.NewEngine(cfg.Scripts.Dir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	profiles := luaEngine.BehaviorProfiles()
	printStat("behavior profiles", len(profiles))

	// 6. Build world and engine
	world := sim.NewWorld(cfg.Simulation.CellSize, speciesTable, resourceTable, profiles, event.NewBus(), log)
	runner := coresys.NewRunner()
	engine := sim.NewEngine(world, runner, sim.Options{
		CellSize:      cfg.Simulation.CellSize,
		CacheCapacity: cfg.Simulation.DecisionCacheCapacity,
		CacheTTLTicks: cfg.Simulation.DecisionCacheTTLTicks,
		Workers:       cfg.Simulation.WorkerCount,
	}, log)

	// 7. Register systems
	runner.Register(system.NewEventDispatchSystem(world.Bus()))
	runner.Register(system.NewNeedsSystem(world, speciesTable))
	runner.Register(system.NewResourceRegenSystem(world))
	runner.Register(system.NewHealthSystem(world))
	runner.Register(system.NewCleanupSystem(world, log))

	var hub *obs.Hub
	if cfg.Observer.Enabled {
		hub = obs.NewHub(log)
		runner.Register(system.NewObserverSystem(world, hub, engine.CurrentTick))
		go func() {
			if err := hub.Serve(cfg.Observer.BindAddress); err != nil {
				log.Error("observer server failed", zap.Error(err))
			}
		}()
	}

	if db != nil {
		runner.Register(system.NewAutosaveSystem(engine, snapshotRepo, cfg.Persistence.AutosaveTicks, log))
		runner.Register(system.NewJournalSystem(world.Bus(), journalRepo, log))
	}

	// 8. Populate the world: restore from snapshot or spawn fresh
	restored := false
	if db != nil && cfg.Persistence.RestoreOnBoot {
		_, blob, err := snapshotRepo.LoadLatest(ctx)
		switch {
		case err == nil:
			if err := engine.Restore(blob); err != nil {
				return fmt.Errorf("restore snapshot: %w", err)
			}
			restored = true
			printOK(fmt.Sprintf("world restored at tick %d", engine.CurrentTick()))
		case errors.Is(err, persist.ErrNoSnapshot):
			log.Info("no snapshot to restore, spawning fresh world")
		default:
			return fmt.Errorf("load snapshot: %w", err)
		}
	}
	if !restored {
		creatures, resources, err := spawnWorld(world, spawnList, log)
		if err != nil {
			return fmt.Errorf("spawn world: %w", err)
		}
		printStat("creatures spawned", creatures)
		printStat("resource nodes", resources)
	}
	fmt.Println()

	// 9. Start simulation loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Simulation.TickRate)
	defer ticker.Stop()

	printSection("server ready")
	if hub != nil {
		printReady(fmt.Sprintf("observers on ws://%s/observe", cfg.Observer.BindAddress))
	}
	printReady(fmt.Sprintf("simulation loop started (tick: %s)", cfg.Simulation.TickRate))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			if err := engine.Tick(cfg.Simulation.TickRate); err != nil {
				// Fatal tick errors leave the previous tick's state intact;
				// save it before going down.
				saveFinalSnapshot(engine, snapshotRepo, log)
				return fmt.Errorf("tick %d: %w", engine.CurrentTick(), err)
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			saveFinalSnapshot(engine, snapshotRepo, log)
			if hub != nil {
				closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := hub.Close(closeCtx); err != nil {
					log.Warn("observer shutdown failed", zap.Error(err))
				}
				closeCancel()
			}
			log.Info("server stopped", zap.Uint64("tick", engine.CurrentTick()))
			return nil
		}
	}
}

// spawnWorld places the boot population from the spawn list, scattering each
// group uniformly within its radius.
func spawnWorld(world *sim.World, spawns *data.SpawnList, log *zap.Logger) (int, int, error) {
	creatures := 0
	for _, s := range spawns.Creatures {
		for i := 0; i < s.Count; i++ {
			pos := scatter(s.X, s.Y, s.Radius)
			if _, err := world.SpawnCreature(s.Species, pos); err != nil {
				log.Warn("spawn skipped",
					zap.String("species", s.Species),
					zap.Error(err))
				continue
			}
			creatures++
		}
	}
	resources := 0
	for _, s := range spawns.Resources {
		for i := 0; i < s.Count; i++ {
			pos := scatter(s.X, s.Y, s.Radius)
			if _, err := world.SpawnResource(s.Resource, pos); err != nil {
				log.Warn("resource spawn skipped",
					zap.String("resource", s.Resource),
					zap.Error(err))
				continue
			}
			resources++
		}
	}
	if creatures == 0 && len(spawns.Creatures) > 0 {
		return 0, 0, fmt.Errorf("no creatures spawned from %d entries", len(spawns.Creatures))
	}
	return creatures, resources, nil
}

// scatter picks a uniform point within radius of (x, y).
func scatter(x, y, radius float64) spatial.Vec2 {
	if radius <= 0 {
		return spatial.Vec2{X: x, Y: y}
	}
	dx := (rand.Float64()*2 - 1) * radius
	dy := (rand.Float64()*2 - 1) * radius
	return spatial.Vec2{X: x + dx, Y: y + dy}
}

func saveFinalSnapshot(engine *sim.Engine, repo *persist.SnapshotRepo, log *zap.Logger) {
	if repo == nil {
		return
	}
	blob, err := engine.Snapshot()
	if err != nil {
		log.Error("final snapshot failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repo.SaveSnapshot(ctx, engine.CurrentTick(), blob); err != nil {
		log.Error("final snapshot store failed", zap.Error(err))
		return
	}
	log.Info("final snapshot saved",
		zap.Uint64("tick", engine.CurrentTick()),
		zap.Int("bytes", len(blob)))
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
