// Package lifecycle runs load and unload logic for components when the entity
// carrying them gains or loses the Active marker.
//
// A component type opts in with Register. Every tick the TransitionSystem, installed
// in the scheduler's PostUpdate stage, reads the store's change feed for the marker
// and for each registered type, works out which entities just became active or
// inactive, and dispatches their callbacks:
//
//   - Immediate types implement Loadable and are mutated in place, one entity at a
//     time, with access only to the shared Resources.
//   - Exclusive types implement ExclusiveLoadable. Their entities are batched into a
//     command that runs when the stage's commands are flushed; each value is copied
//     out of the store, handed to the callback together with the whole Storage, and
//     written back to the same entity afterwards.
//
// Load errors are logged and counted; they never stop other entities, the batch or
// the tick. Unload cannot fail.
package lifecycle

import (
	"reflect"

	"github.com/plus3/componentload/assets"
	"github.com/plus3/componentload/ecs"
)

// Active marks an entity whose registered components should be loaded.
// Attaching it triggers Load, removing it triggers Unload.
type Active struct{}

var activeType = reflect.TypeFor[Active]()

// Resources is the read-only context shared with every load callback.
type Resources struct {
	Assets assets.Source
	// Progress is optional; callbacks should check for nil before tracking handles.
	Progress *assets.Progress
}

// Loadable is implemented by the pointer type of components dispatched in Immediate mode.
type Loadable interface {
	Load(res *Resources) error
	Unload()
}

// ExclusiveLoadable is implemented by the pointer type of components dispatched in
// Exclusive mode. The receiver is a copy of the stored value; the store still holds
// the previous value until the callback returns and the copy is written back.
type ExclusiveLoadable interface {
	Load(world *ecs.Storage, entity ecs.EntityId, res *Resources) error
	Unload(world *ecs.Storage, entity ecs.EntityId)
}

// Mode selects how a registered component type is dispatched.
type Mode int

const (
	Immediate Mode = iota
	Exclusive
)

func (m Mode) String() string {
	switch m {
	case Immediate:
		return "immediate"
	case Exclusive:
		return "exclusive"
	default:
		return "unknown"
	}
}

// Activate attaches the Active marker to an entity.
func Activate(storage *ecs.Storage, entity ecs.EntityId) bool {
	return storage.AddComponent(entity, Active{})
}

// Deactivate removes the Active marker from an entity.
func Deactivate(storage *ecs.Storage, entity ecs.EntityId) bool {
	return storage.RemoveComponent(entity, activeType)
}

// IsActive reports whether an entity carries the Active marker.
func IsActive(storage *ecs.Storage, entity ecs.EntityId) bool {
	return storage.HasComponent(entity, activeType)
}
