package lifecycle_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/plus3/componentload/ecs"
	"github.com/plus3/componentload/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type Position struct {
	X, Y float32
}

// Foo greets when loaded and forgets the greeting when unloaded.
type Foo struct {
	Message string
}

func (f *Foo) Load(res *lifecycle.Resources) error {
	f.Message = "Hello World!"
	return nil
}

func (f *Foo) Unload() {
	f.Message = ""
}

// ExclusiveFoo is Foo dispatched with whole-storage access.
type ExclusiveFoo struct {
	Message string
}

func (f *ExclusiveFoo) Load(world *ecs.Storage, entity ecs.EntityId, res *lifecycle.Resources) error {
	f.Message = "Hello World!"
	return nil
}

func (f *ExclusiveFoo) Unload(world *ecs.Storage, entity ecs.EntityId) {
	f.Message = ""
}

// Tracer appends every callback to a shared trace.
type Tracer struct {
	Name   string
	Trace  *[]string
	Fail   bool
	Loaded bool
}

func (tr *Tracer) Load(res *lifecycle.Resources) error {
	*tr.Trace = append(*tr.Trace, "load:"+tr.Name)
	if tr.Fail {
		return errors.New("tracer refused to load")
	}
	tr.Loaded = true
	return nil
}

func (tr *Tracer) Unload() {
	*tr.Trace = append(*tr.Trace, "unload:"+tr.Name)
	tr.Loaded = false
}

// Spawner owns a child entity for as long as it is loaded.
type Spawner struct {
	Child ecs.EntityId
}

func (s *Spawner) Load(world *ecs.Storage, entity ecs.EntityId, res *lifecycle.Resources) error {
	s.Child = world.Spawn(Position{X: 1, Y: 1})
	return nil
}

func (s *Spawner) Unload(world *ecs.Storage, entity ecs.EntityId) {
	world.Delete(s.Child)
	s.Child = 0
}

// Reaper despawns Victim when loaded.
type Reaper struct {
	Victim ecs.EntityId
	Done   bool
}

func (r *Reaper) Load(world *ecs.Storage, entity ecs.EntityId, res *lifecycle.Resources) error {
	world.Delete(r.Victim)
	r.Done = true
	return nil
}

func (r *Reaper) Unload(world *ecs.Storage, entity ecs.EntityId) {}

// Victim records whether it was loaded.
type Victim struct {
	Loaded bool
}

func (v *Victim) Load(world *ecs.Storage, entity ecs.EntityId, res *lifecycle.Resources) error {
	v.Loaded = true
	return nil
}

func (v *Victim) Unload(world *ecs.Storage, entity ecs.EntityId) {}

// Suicide despawns its own entity when loaded.
type Suicide struct{}

func (s *Suicide) Load(world *ecs.Storage, entity ecs.EntityId, res *lifecycle.Resources) error {
	world.Delete(entity)
	return nil
}

func (s *Suicide) Unload(world *ecs.Storage, entity ecs.EntityId) {}

// Rival despawns Other when loaded, if Other is still alive.
type Rival struct {
	Other ecs.EntityId
}

func (r *Rival) Load(world *ecs.Storage, entity ecs.EntityId, res *lifecycle.Resources) error {
	world.Delete(r.Other)
	return nil
}

func (r *Rival) Unload(world *ecs.Storage, entity ecs.EntityId) {}

// NotLoadable has no callbacks at all.
type NotLoadable struct{}

type testWorld struct {
	storage   *ecs.Storage
	scheduler *ecs.Scheduler
	registry  *lifecycle.Registry
}

func newTestWorld(t *testing.T, logger *zap.Logger, register func(*lifecycle.Registry)) *testWorld {
	t.Helper()

	components := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](components)

	registry := lifecycle.NewRegistry(components, lifecycle.WithLogger(logger))
	register(registry)

	storage := ecs.NewStorage(components)
	scheduler := ecs.NewScheduler(storage)
	require.NoError(t, registry.Install(scheduler, lifecycle.Resources{}))

	return &testWorld{storage: storage, scheduler: scheduler, registry: registry}
}

func (w *testWorld) tick() {
	w.scheduler.Once(1.0 / 60.0)
}

func (w *testWorld) stats(t *testing.T, name string) lifecycle.TypeStats {
	t.Helper()
	for _, s := range w.registry.Stats() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("no stats for %s", name)
	return lifecycle.TypeStats{}
}

func TestHelloWorldImmediate(t *testing.T) {
	w := newTestWorld(t, zap.NewNop(), func(r *lifecycle.Registry) {
		lifecycle.MustRegister[Foo](r, lifecycle.Immediate)
	})

	id := w.storage.Spawn(Foo{}, lifecycle.Active{})
	w.tick()

	foo := ecs.ReadComponent[Foo](w.storage, id)
	require.NotNil(t, foo)
	assert.Equal(t, "Hello World!", foo.Message)

	lifecycle.Deactivate(w.storage, id)
	w.tick()

	foo = ecs.ReadComponent[Foo](w.storage, id)
	require.NotNil(t, foo)
	assert.Equal(t, "", foo.Message)
}

func TestHelloWorldExclusive(t *testing.T) {
	w := newTestWorld(t, zap.NewNop(), func(r *lifecycle.Registry) {
		lifecycle.MustRegister[ExclusiveFoo](r, lifecycle.Exclusive)
	})

	id := w.storage.Spawn(ExclusiveFoo{}, lifecycle.Active{})
	w.tick()

	foo := ecs.ReadComponent[ExclusiveFoo](w.storage, id)
	require.NotNil(t, foo)
	assert.Equal(t, "Hello World!", foo.Message)

	lifecycle.Deactivate(w.storage, id)
	w.tick()

	foo = ecs.ReadComponent[ExclusiveFoo](w.storage, id)
	require.NotNil(t, foo)
	assert.Equal(t, "", foo.Message)

	stats := w.stats(t, "lifecycle_test.ExclusiveFoo")
	assert.Equal(t, int64(1), stats.Loads)
	assert.Equal(t, int64(1), stats.Unloads)
	assert.Equal(t, int64(2), stats.Batches)
}

func TestLoadExactlyOnce(t *testing.T) {
	var trace []string
	w := newTestWorld(t, zap.NewNop(), func(r *lifecycle.Registry) {
		lifecycle.MustRegister[Tracer](r, lifecycle.Immediate)
	})

	t.Run("marker attached to entity carrying the component", func(t *testing.T) {
		id := w.storage.Spawn(Tracer{Name: "a", Trace: &trace})
		w.tick()
		assert.Empty(t, trace)

		lifecycle.Activate(w.storage, id)
		w.tick()
		w.tick()
		w.tick()
		assert.Equal(t, []string{"load:a"}, trace)
		assert.True(t, ecs.ReadComponent[Tracer](w.storage, id).Loaded)
	})

	t.Run("component attached to active entity", func(t *testing.T) {
		trace = trace[:0]
		id := w.storage.Spawn(lifecycle.Active{})
		w.tick()
		assert.Empty(t, trace)

		w.storage.AddComponent(id, Tracer{Name: "b", Trace: &trace})
		w.tick()
		w.tick()
		assert.Equal(t, []string{"load:b"}, trace)
	})

	t.Run("spawned with both in one call", func(t *testing.T) {
		trace = trace[:0]
		w.storage.Spawn(Tracer{Name: "c", Trace: &trace}, lifecycle.Active{})
		w.tick()
		w.tick()
		assert.Equal(t, []string{"load:c"}, trace)
	})

	t.Run("overwriting the component does not reload", func(t *testing.T) {
		trace = trace[:0]
		id := w.storage.Spawn(Tracer{Name: "d", Trace: &trace}, lifecycle.Active{})
		w.tick()

		w.storage.AddComponent(id, Tracer{Name: "d2", Trace: &trace})
		w.tick()
		assert.Equal(t, []string{"load:d"}, trace)
	})
}

func TestUnloadExactlyOnce(t *testing.T) {
	var trace []string
	w := newTestWorld(t, zap.NewNop(), func(r *lifecycle.Registry) {
		lifecycle.MustRegister[Tracer](r, lifecycle.Immediate)
	})

	t.Run("marker removed while component present", func(t *testing.T) {
		id := w.storage.Spawn(Tracer{Name: "a", Trace: &trace}, lifecycle.Active{})
		w.tick()

		lifecycle.Deactivate(w.storage, id)
		w.tick()
		w.tick()
		assert.Equal(t, []string{"load:a", "unload:a"}, trace)
		assert.False(t, ecs.ReadComponent[Tracer](w.storage, id).Loaded)
	})

	t.Run("marker removed from entity without the component", func(t *testing.T) {
		trace = trace[:0]
		id := w.storage.Spawn(lifecycle.Active{}, Position{})
		w.tick()

		lifecycle.Deactivate(w.storage, id)
		w.tick()
		assert.Empty(t, trace)
	})

	t.Run("marker and component removed together", func(t *testing.T) {
		trace = trace[:0]
		id := w.storage.Spawn(Tracer{Name: "b", Trace: &trace}, lifecycle.Active{})
		w.tick()

		w.storage.RemoveComponent(id, reflect.TypeFor[Tracer]())
		lifecycle.Deactivate(w.storage, id)
		w.tick()
		assert.Equal(t, []string{"load:b"}, trace)
	})

	t.Run("despawned entity is not unloaded", func(t *testing.T) {
		trace = trace[:0]
		id := w.storage.Spawn(Tracer{Name: "c", Trace: &trace}, lifecycle.Active{})
		w.tick()

		w.storage.Delete(id)
		w.tick()
		assert.Equal(t, []string{"load:c"}, trace)
	})
}

func TestIdempotentDetection(t *testing.T) {
	var trace []string
	w := newTestWorld(t, zap.NewNop(), func(r *lifecycle.Registry) {
		lifecycle.MustRegister[Tracer](r, lifecycle.Immediate)
	})

	w.storage.Spawn(Tracer{Name: "a", Trace: &trace}, lifecycle.Active{})
	w.storage.Spawn(Tracer{Name: "b", Trace: &trace}, lifecycle.Active{})
	w.tick()
	assert.Len(t, trace, 2)

	for range 5 {
		w.tick()
	}
	assert.Len(t, trace, 2)

	stats := w.stats(t, "lifecycle_test.Tracer")
	assert.Equal(t, int64(2), stats.Loads)
	assert.Equal(t, int64(0), stats.Unloads)
}

func TestLoadUnloadLoadAcrossTicks(t *testing.T) {
	var trace []string
	w := newTestWorld(t, zap.NewNop(), func(r *lifecycle.Registry) {
		lifecycle.MustRegister[Tracer](r, lifecycle.Immediate)
	})

	id := w.storage.Spawn(Tracer{Name: "a", Trace: &trace})

	lifecycle.Activate(w.storage, id)
	w.tick()
	lifecycle.Deactivate(w.storage, id)
	w.tick()
	lifecycle.Activate(w.storage, id)
	w.tick()

	assert.Equal(t, []string{"load:a", "unload:a", "load:a"}, trace)
}

func TestMarkerToggledWithinOneTick(t *testing.T) {
	var trace []string
	w := newTestWorld(t, zap.NewNop(), func(r *lifecycle.Registry) {
		lifecycle.MustRegister[Tracer](r, lifecycle.Immediate)
	})

	id := w.storage.Spawn(Tracer{Name: "a", Trace: &trace}, lifecycle.Active{})
	w.tick()

	lifecycle.Deactivate(w.storage, id)
	lifecycle.Activate(w.storage, id)
	w.tick()

	assert.Equal(t, []string{"load:a", "unload:a", "load:a"}, trace)
	assert.True(t, ecs.ReadComponent[Tracer](w.storage, id).Loaded)
}

// markSystem attaches the marker through the command buffer during Update.
type markSystem struct {
	targets []ecs.EntityId
}

func (s *markSystem) Execute(frame *ecs.UpdateFrame) {
	for _, id := range s.targets {
		frame.Commands.AddComponent(id, lifecycle.Active{})
	}
	s.targets = nil
}

func TestMarkerAddedByCommandLoadsSameTick(t *testing.T) {
	var trace []string
	marker := &markSystem{}
	w := newTestWorld(t, zap.NewNop(), func(r *lifecycle.Registry) {
		lifecycle.MustRegister[Tracer](r, lifecycle.Immediate)
	})
	w.scheduler.Register(marker)

	id := w.storage.Spawn(Tracer{Name: "a", Trace: &trace})
	w.tick()
	assert.Empty(t, trace)

	marker.targets = []ecs.EntityId{id}
	w.tick()
	assert.Equal(t, []string{"load:a"}, trace)
}

func TestFailureIsolation(t *testing.T) {
	var trace []string
	core, logs := observer.New(zapcore.InfoLevel)
	w := newTestWorld(t, zap.New(core), func(r *lifecycle.Registry) {
		lifecycle.MustRegister[Tracer](r, lifecycle.Immediate)
	})

	a := w.storage.Spawn(Tracer{Name: "a", Trace: &trace, Fail: true}, lifecycle.Active{})
	b := w.storage.Spawn(Tracer{Name: "b", Trace: &trace}, lifecycle.Active{})
	w.tick()

	assert.ElementsMatch(t, []string{"load:a", "load:b"}, trace)
	assert.False(t, ecs.ReadComponent[Tracer](w.storage, a).Loaded)
	assert.True(t, ecs.ReadComponent[Tracer](w.storage, b).Loaded)

	stats := w.stats(t, "lifecycle_test.Tracer")
	assert.Equal(t, int64(1), stats.Loads)
	assert.Equal(t, int64(1), stats.Failures)

	failed := logs.FilterMessage("component load failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
	assert.Equal(t, uint64(a), failed[0].ContextMap()["entity"])

	// No retry on later ticks.
	w.tick()
	assert.Len(t, trace, 2)
}

func TestExclusiveWriteBack(t *testing.T) {
	w := newTestWorld(t, zap.NewNop(), func(r *lifecycle.Registry) {
		lifecycle.MustRegister[Spawner](r, lifecycle.Exclusive)
	})

	id := w.storage.Spawn(Spawner{}, lifecycle.Active{})
	before := w.storage.EntityCount()
	w.tick()

	spawner := ecs.ReadComponent[Spawner](w.storage, id)
	require.NotNil(t, spawner)
	assert.NotEqual(t, ecs.EntityId(0), spawner.Child)
	assert.True(t, w.storage.Alive(spawner.Child))
	assert.Equal(t, before+1, w.storage.EntityCount())

	child := spawner.Child
	lifecycle.Deactivate(w.storage, id)
	w.tick()

	spawner = ecs.ReadComponent[Spawner](w.storage, id)
	assert.Equal(t, ecs.EntityId(0), spawner.Child)
	assert.False(t, w.storage.Alive(child))
}

func TestExclusiveBatchIsolation(t *testing.T) {
	t.Run("callback despawns another entity in the batch", func(t *testing.T) {
		w := newTestWorld(t, zap.NewNop(), func(r *lifecycle.Registry) {
			lifecycle.MustRegister[Victim](r, lifecycle.Exclusive)
			lifecycle.MustRegister[Reaper](r, lifecycle.Exclusive)
		})

		// Both loads land in the same flush; the Reaper batch runs second.
		victim := w.storage.Spawn(Victim{}, Reaper{}, lifecycle.Active{})
		reaper := w.storage.Spawn(Reaper{Victim: victim}, lifecycle.Active{})
		w.tick()

		assert.False(t, w.storage.Alive(victim))
		r := ecs.ReadComponent[Reaper](w.storage, reaper)
		require.NotNil(t, r)
		assert.True(t, r.Done)

		rs := w.stats(t, "lifecycle_test.Reaper")
		assert.Equal(t, int64(0), rs.Failures)
		// The victim's own Reaper either ran before it was despawned or was skipped.
		assert.Equal(t, int64(2), rs.Loads+rs.Skipped)
	})

	t.Run("two entities in one batch despawn each other", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		w := newTestWorld(t, zap.New(core), func(r *lifecycle.Registry) {
			lifecycle.MustRegister[Rival](r, lifecycle.Exclusive)
		})

		a := w.storage.Spawn(Rival{}, lifecycle.Active{})
		b := w.storage.Spawn(Rival{Other: a}, lifecycle.Active{})
		require.True(t, w.storage.SetComponent(a, Rival{Other: b}))
		w.tick()

		// Whichever runs first wins; the loser is gone before its own callback.
		assert.NotEqual(t, w.storage.Alive(a), w.storage.Alive(b))
		assert.Equal(t, 1, w.storage.EntityCount())

		rs := w.stats(t, "lifecycle_test.Rival")
		assert.Equal(t, int64(1), rs.Loads)
		assert.Equal(t, int64(1), rs.Skipped)
		assert.Equal(t, int64(0), rs.Failures)
		assert.Equal(t, int64(1), rs.Batches)

		skipped := logs.FilterMessage("skipped write-back").All()
		require.Len(t, skipped, 1)
		assert.Equal(t, "component missing before callback", skipped[0].ContextMap()["reason"])
	})

	t.Run("callback despawns its own entity", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		w := newTestWorld(t, zap.New(core), func(r *lifecycle.Registry) {
			lifecycle.MustRegister[Suicide](r, lifecycle.Exclusive)
			lifecycle.MustRegister[Spawner](r, lifecycle.Exclusive)
		})

		doomed := w.storage.Spawn(Suicide{}, lifecycle.Active{})
		other := w.storage.Spawn(Spawner{}, lifecycle.Active{})
		w.tick()

		assert.False(t, w.storage.Alive(doomed))
		assert.True(t, w.storage.Alive(other))
		assert.NotEqual(t, ecs.EntityId(0), ecs.ReadComponent[Spawner](w.storage, other).Child)

		ss := w.stats(t, "lifecycle_test.Suicide")
		assert.Equal(t, int64(1), ss.Loads)
		assert.Equal(t, int64(1), ss.Skipped)
		assert.Equal(t, 1, logs.FilterMessage("skipped write-back").Len())
		assert.Equal(t, 0, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	})
}

func TestRegisterErrors(t *testing.T) {
	components := ecs.NewComponentRegistry()

	t.Run("duplicate registration", func(t *testing.T) {
		r := lifecycle.NewRegistry(components)
		require.NoError(t, lifecycle.Register[Foo](r, lifecycle.Immediate))

		err := lifecycle.Register[Foo](r, lifecycle.Immediate)
		assert.ErrorIs(t, err, lifecycle.ErrDuplicateRegistration)

		err = lifecycle.Register[Foo](r, lifecycle.Exclusive)
		assert.ErrorIs(t, err, lifecycle.ErrDuplicateRegistration)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("mode mismatch", func(t *testing.T) {
		r := lifecycle.NewRegistry(components)
		assert.ErrorIs(t, lifecycle.Register[Foo](r, lifecycle.Exclusive), lifecycle.ErrModeMismatch)
		assert.ErrorIs(t, lifecycle.Register[ExclusiveFoo](r, lifecycle.Immediate), lifecycle.ErrModeMismatch)
		assert.ErrorIs(t, lifecycle.Register[NotLoadable](r, lifecycle.Immediate), lifecycle.ErrModeMismatch)
		assert.ErrorIs(t, lifecycle.Register[Foo](r, lifecycle.Mode(7)), lifecycle.ErrModeMismatch)
		assert.Equal(t, 0, r.Len())
	})

	t.Run("frozen after install", func(t *testing.T) {
		r := lifecycle.NewRegistry(components)
		lifecycle.MustRegister[Foo](r, lifecycle.Immediate)

		scheduler := ecs.NewScheduler(ecs.NewStorage(components))
		require.NoError(t, r.Install(scheduler, lifecycle.Resources{}))
		assert.True(t, r.Installed())

		assert.ErrorIs(t, lifecycle.Register[ExclusiveFoo](r, lifecycle.Exclusive), lifecycle.ErrRegistryFrozen)
		assert.ErrorIs(t, r.Install(scheduler, lifecycle.Resources{}), lifecycle.ErrRegistryFrozen)
	})

	t.Run("must register panics", func(t *testing.T) {
		r := lifecycle.NewRegistry(components)
		lifecycle.MustRegister[Foo](r, lifecycle.Immediate)
		assert.Panics(t, func() {
			lifecycle.MustRegister[Foo](r, lifecycle.Immediate)
		})
	})
}

func TestRegistryIntrospection(t *testing.T) {
	components := ecs.NewComponentRegistry()
	r := lifecycle.NewRegistry(components)
	lifecycle.MustRegister[Foo](r, lifecycle.Immediate)
	lifecycle.MustRegister[Spawner](r, lifecycle.Exclusive)

	assert.True(t, components.IsRegistered(reflect.TypeFor[lifecycle.Active]()))
	assert.True(t, components.IsRegistered(reflect.TypeFor[Foo]()))
	assert.Equal(t, []reflect.Type{reflect.TypeFor[Foo](), reflect.TypeFor[Spawner]()}, r.Types())

	mode, ok := r.ModeOf(reflect.TypeFor[Spawner]())
	assert.True(t, ok)
	assert.Equal(t, lifecycle.Exclusive, mode)

	_, ok = r.ModeOf(reflect.TypeFor[Position]())
	assert.False(t, ok)

	stats := r.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "lifecycle_test.Foo", stats[0].Name)
	assert.Equal(t, lifecycle.Immediate, stats[0].Mode)
	assert.Equal(t, "exclusive", stats[1].Mode.String())
}

func TestTransitionSystemRunsInPostUpdate(t *testing.T) {
	w := newTestWorld(t, zap.NewNop(), func(r *lifecycle.Registry) {
		lifecycle.MustRegister[Foo](r, lifecycle.Immediate)
	})

	stats := w.scheduler.GetStats()
	require.Len(t, stats.Systems, 1)
	assert.Equal(t, "TransitionSystem", stats.Systems[0].Name)
	assert.Equal(t, ecs.StagePostUpdate, stats.Systems[0].Stage)
}
