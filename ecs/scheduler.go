package ecs

import (
	"context"
	"reflect"
	"strings"
	"time"
)

// SchedulerStats provides statistics about scheduler execution.
type SchedulerStats struct {
	SystemCount     int
	TotalExecutions int64
	Ticks           uint64
	Systems         []SystemStats
}

// SystemStats provides execution statistics for a single system.
type SystemStats struct {
	Name           string
	Stage          Stage
	ExecutionCount int64
	MinDuration    time.Duration
	MaxDuration    time.Duration
	AvgDuration    time.Duration
	LastDuration   time.Duration
	TotalDuration  time.Duration
}

type systemStatsInternal struct {
	name           string
	executionCount int64
	minDuration    time.Duration
	maxDuration    time.Duration
	totalDuration  time.Duration
	lastDuration   time.Duration
}

// executor is implemented by Query fields; the scheduler rebuilds them before each run.
type executor interface {
	Execute()
}

type registeredSystem struct {
	system  System
	stage   Stage
	queries []executor
	stats   *systemStatsInternal
}

// Scheduler manages and executes systems in order.
type Scheduler struct {
	storage *Storage
	systems []*registeredSystem
	tick    uint64
}

// NewScheduler creates a new scheduler for the given storage.
func NewScheduler(storage *Storage) *Scheduler {
	return &Scheduler{
		storage: storage,
		systems: make([]*registeredSystem, 0),
	}
}

// Storage returns the storage the scheduler runs against.
func (s *Scheduler) Storage() *Storage {
	return s.storage
}

// Tick returns the number of completed ticks.
func (s *Scheduler) Tick() uint64 {
	return s.tick
}

// Register adds a system to the Update stage and initializes its Query fields.
func (s *Scheduler) Register(system System) {
	s.RegisterStage(StageUpdate, system)
}

// RegisterStage adds a system to the given stage and initializes its Query fields.
// Systems within a stage run in registration order.
func (s *Scheduler) RegisterStage(stage Stage, system System) {
	if stage < 0 || stage >= stageCount {
		panic("unknown scheduler stage")
	}

	systemType := reflect.TypeOf(system)
	if systemType.Kind() == reflect.Ptr {
		systemType = systemType.Elem()
	}

	s.systems = append(s.systems, &registeredSystem{
		system:  system,
		stage:   stage,
		queries: s.initializeQueries(system),
		stats: &systemStatsInternal{
			name:        systemType.Name(),
			minDuration: time.Duration(1<<63 - 1),
		},
	})
}

func (s *Scheduler) initializeQueries(system System) []executor {
	systemValue := reflect.ValueOf(system)
	if systemValue.Kind() == reflect.Ptr {
		systemValue = systemValue.Elem()
	}

	if systemValue.Kind() != reflect.Struct {
		return nil
	}

	systemType := systemValue.Type()
	var queries []executor

	for i := 0; i < systemValue.NumField(); i++ {
		field := systemValue.Field(i)
		fieldType := systemType.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() != reflect.Struct {
			continue
		}

		typeName := field.Type().Name()

		// Initialize Query fields
		if strings.HasPrefix(typeName, "Query[") {
			initMethod := field.Addr().MethodByName("Init")
			if !initMethod.IsValid() {
				panic("Init method not found on Query field: " + fieldType.Name)
			}

			initMethod.Call([]reflect.Value{
				reflect.ValueOf(s.storage),
			})

			if exec, ok := field.Addr().Interface().(executor); ok {
				queries = append(queries, exec)
			}
			continue
		}

		// Initialize Singleton fields
		if strings.HasPrefix(typeName, "Singleton[") {
			initMethod := field.Addr().MethodByName("Init")
			if !initMethod.IsValid() {
				panic("Init method not found on Singleton field: " + fieldType.Name)
			}

			initMethod.Call([]reflect.Value{
				reflect.ValueOf(s.storage),
			})
			continue
		}
	}

	return queries
}

// Once executes all registered systems once with the given delta time.
// Stages run in order; each stage's commands are flushed before the next stage,
// and change records older than the previous tick are trimmed at the end.
func (s *Scheduler) Once(dt float64) {
	s.tick++

	for stage := StageUpdate; stage < stageCount; stage++ {
		frame := newUpdateFrame(dt, s.tick, s.storage)
		frame.Stage = stage

		for _, rs := range s.systems {
			if rs.stage != stage {
				continue
			}
			s.execute(rs, frame)
		}

		frame.Commands.Flush(s.storage)
	}

	s.storage.TrimChanges()
}

func (s *Scheduler) execute(rs *registeredSystem, frame *UpdateFrame) {
	for _, q := range rs.queries {
		q.Execute()
	}

	start := time.Now()
	rs.system.Execute(frame)
	duration := time.Since(start)

	stats := rs.stats
	stats.executionCount++
	stats.lastDuration = duration
	stats.totalDuration += duration

	if duration < stats.minDuration {
		stats.minDuration = duration
	}
	if duration > stats.maxDuration {
		stats.maxDuration = duration
	}
}

// Run executes all systems repeatedly at the given interval until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(lastTime).Seconds()
			lastTime = now
			s.Once(dt)
		}
	}
}

// GetStats returns statistics about system execution.
func (s *Scheduler) GetStats() *SchedulerStats {
	stats := &SchedulerStats{
		SystemCount: len(s.systems),
		Ticks:       s.tick,
		Systems:     make([]SystemStats, len(s.systems)),
	}

	var totalExecs int64
	for i, rs := range s.systems {
		internal := rs.stats
		avgDuration := time.Duration(0)
		if internal.executionCount > 0 {
			avgDuration = internal.totalDuration / time.Duration(internal.executionCount)
		}

		stats.Systems[i] = SystemStats{
			Name:           internal.name,
			Stage:          rs.stage,
			ExecutionCount: internal.executionCount,
			MinDuration:    internal.minDuration,
			MaxDuration:    internal.maxDuration,
			AvgDuration:    avgDuration,
			LastDuration:   internal.lastDuration,
			TotalDuration:  internal.totalDuration,
		}
		totalExecs += internal.executionCount
	}

	stats.TotalExecutions = totalExecs
	return stats
}
