package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/pkg/profile"
	"github.com/plus3/componentload/assets"
	"github.com/plus3/componentload/config"
	"github.com/plus3/componentload/ecs"
	"github.com/plus3/componentload/lifecycle"
	"github.com/plus3/componentload/script"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "Optional TOML config file.")
	duration := flag.Duration("duration", 0, "The total duration the test should run for.")
	entityCount := flag.Int("entities", 0, "The initial number of entities to create.")
	toggle := flag.Float64("toggle", -1, "Chance per actor per tick of flipping its Active marker.")
	tickRate := flag.Duration("tick", 0, "Interval between scheduler ticks.")
	profileMode := flag.String("profile", "", "Write a cpu or mem profile to the working directory.")
	gcPauseMetrics := flag.Bool("gc-pause-metrics", false, "Enable detailed GC pause metrics in the report.")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *duration > 0 {
		cfg.Stress.Duration = *duration
	}
	if *entityCount > 0 {
		cfg.Stress.Entities = *entityCount
	}
	if *tickRate > 0 {
		cfg.Scheduler.TickRate = *tickRate
	}
	if *toggle >= 0 {
		cfg.Stress.ToggleChance = *toggle
	}
	if *profileMode != "" {
		cfg.Stress.Profile = *profileMode
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, *gcPauseMetrics, log); err != nil {
		log.Fatal("stress test failed", zap.Error(err))
	}
}

func run(cfg *config.Config, gcPauseMetrics bool, log *zap.Logger) error {
	switch cfg.Stress.Profile {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	log.Info("starting lifecycle stress test")

	catalog, err := loadCatalog(cfg.Assets.Manifest)
	if err != nil {
		return err
	}

	// 1. Setup registries, storage and scheduler
	components := ecs.NewComponentRegistry()
	registry := lifecycle.NewRegistry(components, lifecycle.WithLogger(log.Named("lifecycle")))
	registerComponents(components, registry)

	storage := ecs.NewStorage(components)
	scheduler := ecs.NewScheduler(storage)

	toggles := &ToggleSystem{
		Chance: cfg.Stress.ToggleChance,
		Rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	scheduler.Register(toggles)
	scheduler.Register(&ParticleSystem{})

	hooks := false
	if cfg.Scripts.Dir != "" {
		engine := script.NewEngine(log.Named("script"))
		defer engine.Close()
		if err := engine.LoadDir(cfg.Scripts.Dir); err != nil {
			return fmt.Errorf("load scripts: %w", err)
		}
		storage.AddSingleton(script.Runtime{Engine: engine})
		hooks = engine.Has("on_load")
	}

	progress := assets.NewProgress()
	if err := registry.Install(scheduler, lifecycle.Resources{Assets: catalog, Progress: progress}); err != nil {
		return err
	}

	// 2. Populate storage with initial entities
	log.Info("populating storage", zap.Int("entities", cfg.Stress.Entities))
	populate(storage, catalog, cfg.Stress.Entities, toggles.Rand, hooks)

	// 3. Run the simulation loop next to a progress reporter
	report := &Report{
		Duration:       cfg.Stress.Duration,
		TickRate:       cfg.Scheduler.TickRate,
		Entities:       cfg.Stress.Entities,
		ToggleChance:   cfg.Stress.ToggleChance,
		Systems:        scheduler.GetStats().SystemCount,
		GCPauseMetrics: gcPauseMetrics,
		UpdateTime: Stats{
			Samples: make([]time.Duration, 0),
		},
	}
	runtime.ReadMemStats(&report.MemStatsStart)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Stress.Duration)
	defer cancel()

	var updates atomic.Int64
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				fields := []zap.Field{zap.Int64("updates", updates.Load())}
				for _, s := range registry.Stats() {
					fields = append(fields, zap.Int64(s.Name+".loads", s.Loads))
				}
				log.Info("progress", fields...)
			}
		}
	})

	g.Go(func() error {
		simulate(ctx, scheduler, cfg.Scheduler.TickRate, report, &updates)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	report.TotalUpdates = updates.Load()
	report.Toggles = toggles.Toggles
	report.UpdateTime.Finalize()
	runtime.ReadMemStats(&report.MemStatsEnd)
	report.Lifecycle = registry.Stats()
	report.Storage = storage.CollectStats()
	report.AssetsDone, report.AssetsTotal = progress.Poll(catalog)

	log.Info("simulation finished", zap.Int64("updates", report.TotalUpdates))

	// 4. Generate report to console
	fmt.Println("\n\n--- Stress Test Report ---")
	if err := report.Generate(os.Stdout); err != nil {
		return fmt.Errorf("generate report: %w", err)
	}
	fmt.Println("--- End of Report ---")
	return nil
}

// simulate ticks the scheduler once per tickRate until ctx is done, recording the
// time spent in every tick.
func simulate(ctx context.Context, scheduler *ecs.Scheduler, tickRate time.Duration, report *Report, updates *atomic.Int64) {
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()

	startTime := time.Now()
	lastFrameTime := startTime
	for {
		select {
		case <-ctx.Done():
			report.TotalTime = time.Since(startTime)
			return
		case now := <-ticker.C:
			deltaTime := now.Sub(lastFrameTime)
			lastFrameTime = now

			updateStart := time.Now()
			scheduler.Once(deltaTime.Seconds())
			report.UpdateTime.Samples = append(report.UpdateTime.Samples, time.Since(updateStart))
			updates.Add(1)
		}
	}
}

func loadCatalog(path string) (*assets.Catalog, error) {
	if path == "" {
		return defaultCatalog(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open asset manifest: %w", err)
	}
	defer f.Close()
	return assets.LoadManifest(f)
}
