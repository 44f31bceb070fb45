package main

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"

	"github.com/plus3/componentload/assets"
	"github.com/plus3/componentload/ecs"
	"github.com/plus3/componentload/lifecycle"
	"github.com/plus3/componentload/script"
)

var errNoAssets = errors.New("no asset source")

// Sprite resolves its texture when its entity becomes active.
type Sprite struct {
	Path   string
	Handle assets.Handle
	Ready  bool
}

func (s *Sprite) Load(res *lifecycle.Resources) error {
	if res.Assets == nil {
		return errNoAssets
	}
	h, err := res.Assets.Load(s.Path)
	if err != nil {
		return err
	}
	s.Handle = h
	s.Ready = true
	if res.Progress != nil {
		res.Progress.Track(h)
	}
	return nil
}

func (s *Sprite) Unload() {
	s.Handle = assets.Handle{}
	s.Ready = false
}

// Particle is the child entity an Emitter keeps alive while loaded.
type Particle struct {
	Parent ecs.EntityId
	Life   float32
}

// Emitter spawns a Particle entity on load and despawns it on unload.
type Emitter struct {
	Rate  float32
	Child ecs.EntityId
}

func (e *Emitter) Load(world *ecs.Storage, entity ecs.EntityId, res *lifecycle.Resources) error {
	if e.Child != 0 && world.Alive(e.Child) {
		return fmt.Errorf("emitter %d already owns particle %d", entity, e.Child)
	}
	e.Child = world.Spawn(Particle{Parent: entity, Life: e.Rate})
	return nil
}

func (e *Emitter) Unload(world *ecs.Storage, entity ecs.EntityId) {
	world.Delete(e.Child)
	e.Child = 0
}

// ToggleSystem flips the Active marker on random actors through the command buffer.
type ToggleSystem struct {
	Actors ecs.Query[struct {
		Id ecs.EntityId
		*Sprite
		Active *lifecycle.Active `ecs:"optional"`
	}]

	Chance  float64
	Rand    *rand.Rand
	Toggles int64
}

var activeType = reflect.TypeFor[lifecycle.Active]()

func (s *ToggleSystem) Execute(frame *ecs.UpdateFrame) {
	for _, actor := range s.Actors.Iter() {
		if s.Rand.Float64() >= s.Chance {
			continue
		}
		if actor.Active != nil {
			frame.Commands.RemoveComponent(actor.Id, activeType)
		} else {
			frame.Commands.AddComponent(actor.Id, lifecycle.Active{})
		}
		s.Toggles++
	}
}

// ParticleSystem ages particles.
type ParticleSystem struct {
	Particles ecs.Query[struct{ *Particle }]
}

func (s *ParticleSystem) Execute(frame *ecs.UpdateFrame) {
	for _, p := range s.Particles.Iter() {
		p.Life += float32(frame.DeltaTime)
	}
}

func registerComponents(components *ecs.ComponentRegistry, registry *lifecycle.Registry) {
	ecs.RegisterComponent[Particle](components)
	lifecycle.MustRegister[Sprite](registry, lifecycle.Immediate)
	lifecycle.MustRegister[Emitter](registry, lifecycle.Exclusive)
	lifecycle.MustRegister[script.Hook](registry, lifecycle.Exclusive)
}

// populate spawns count actors. Every actor carries a Sprite; roughly a third also
// carry an Emitter, every tenth a script Hook when hooks is set, and half start active.
func populate(storage *ecs.Storage, catalog *assets.Catalog, count int, rng *rand.Rand, hooks bool) {
	paths := catalog.Paths()
	if len(paths) == 0 {
		paths = []string{"missing.png"}
	}

	for i := range count {
		components := []any{Sprite{Path: paths[rng.Intn(len(paths))]}}
		if i%3 == 0 {
			components = append(components, Emitter{Rate: rng.Float32()})
		}
		if hooks && i%10 == 0 {
			components = append(components, script.Hook{
				OnLoad:   "on_load",
				OnUnload: "on_unload",
				Vars:     map[string]string{"path": components[0].(Sprite).Path},
			})
		}
		if rng.Intn(2) == 0 {
			components = append(components, lifecycle.Active{})
		}
		storage.Spawn(components...)
	}
}

// defaultCatalog is used when no manifest is configured.
func defaultCatalog() *assets.Catalog {
	return assets.NewCatalog(
		assets.Entry{Path: "sprites/player.png", Kind: "texture"},
		assets.Entry{Path: "sprites/enemy.png", Kind: "texture"},
		assets.Entry{Path: "sprites/tree.png", Kind: "texture"},
		assets.Entry{Path: "sprites/slow.png", Kind: "texture", Pending: true},
	)
}
