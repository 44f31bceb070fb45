package lifecycle

import (
	"reflect"

	"github.com/kamstrup/intmap"
	"github.com/plus3/componentload/ecs"
)

// Transitions are the entities to unload and load for one component type in one tick.
// Iteration order of both sets is undefined.
type Transitions struct {
	Load   *intmap.Set[ecs.EntityId]
	Unload *intmap.Set[ecs.EntityId]
}

// Empty reports whether there is nothing to dispatch.
func (t Transitions) Empty() bool {
	return t.Load.Len() == 0 && t.Unload.Len() == 0
}

// Presence answers the store queries the detector needs.
type Presence interface {
	Alive(id ecs.EntityId) bool
	HasComponent(id ecs.EntityId, compType reflect.Type) bool
}

// Detect computes the transitions for compType from one tick's change feed.
//
// An entity loads when the marker or the component was added and it now carries
// both. An entity unloads when the marker was removed and it still carries the
// component; an entity that lost the component as well has nothing to unload.
// Presence is evaluated when Detect runs.
//
// Detect keeps no record of what was loaded. An entity that gains and loses the
// marker within one tick while carrying the component unloads without a prior load,
// so Unload implementations must tolerate state that Load never set up.
func Detect(world Presence, compType reflect.Type, marker, component ecs.Changes) Transitions {
	t := Transitions{
		Load:   intmap.NewSet[ecs.EntityId](marker.Added.Len() + component.Added.Len()),
		Unload: intmap.NewSet[ecs.EntityId](marker.Removed.Len()),
	}

	loadable := func(id ecs.EntityId) bool {
		return world.Alive(id) && world.HasComponent(id, activeType) && world.HasComponent(id, compType)
	}

	for id := range marker.Added.All() {
		if loadable(id) {
			t.Load.Add(id)
		}
	}
	for id := range component.Added.All() {
		if loadable(id) {
			t.Load.Add(id)
		}
	}

	for id := range marker.Removed.All() {
		if world.Alive(id) && world.HasComponent(id, compType) {
			t.Unload.Add(id)
		}
	}

	return t
}

// detector owns the change cursors for the marker and one component type.
type detector struct {
	compType  reflect.Type
	marker    *ecs.ChangeReader
	component *ecs.ChangeReader
}

func newDetector(storage *ecs.Storage, compType reflect.Type) *detector {
	return &detector{
		compType:  compType,
		marker:    ecs.NewChangeReaderFor(storage, activeType),
		component: ecs.NewChangeReaderFor(storage, compType),
	}
}

func (d *detector) detect(world Presence) Transitions {
	return Detect(world, d.compType, d.marker.Read(), d.component.Read())
}
