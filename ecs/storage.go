package ecs

import (
	"reflect"
	"sort"
	"unsafe"

	"github.com/kamstrup/intmap"
)

// entityLocation is where an entity's components currently live.
type entityLocation struct {
	archetype *Archetype
	row       uint32
}

// Storage is the main ECS storage interface
type Storage struct {
	archetypes map[uint64]*Archetype
	registry   *ComponentRegistry
	entities   *entityPool
	locations  *intmap.Map[EntityId, entityLocation]
	singletons map[reflect.Type]*singletonEntry
	changes    *changeTracker
}

// NewStorage creates a new ECS storage system with the given component registry
func NewStorage(registry *ComponentRegistry) *Storage {
	return &Storage{
		archetypes: make(map[uint64]*Archetype),
		registry:   registry,
		entities:   newEntityPool(),
		locations:  intmap.New[EntityId, entityLocation](1024),
		singletons: make(map[reflect.Type]*singletonEntry),
		changes:    newChangeTracker(),
	}
}

// Registry returns the component registry backing this storage
func (s *Storage) Registry() *ComponentRegistry {
	return s.registry
}

// GetArchetype returns an archetype storage (if one exists)
func (s *Storage) GetArchetype(components ...any) *Archetype {
	types := extractComponentTypes(components)
	return s.archetypes[hashTypes(types)]
}

// GetArchetypeByTypes returns an archetype storage (if one exists) based on reflect.Type
func (s *Storage) GetArchetypeByTypes(types []reflect.Type) *Archetype {
	sorted := append([]reflect.Type(nil), types...)
	sort.Sort(byTypeName(sorted))
	return s.archetypes[hashTypes(sorted)]
}

// GetArchetypes returns every archetype currently known to the storage
func (s *Storage) GetArchetypes() []*Archetype {
	archetypes := make([]*Archetype, 0, len(s.archetypes))
	for _, archetype := range s.archetypes {
		archetypes = append(archetypes, archetype)
	}
	return archetypes
}

func (s *Storage) archetypeFor(types []reflect.Type) *Archetype {
	archetypeId := hashTypes(types)
	archetype, exists := s.archetypes[archetypeId]
	if !exists {
		archetype = NewArchetype(archetypeId, types, s.registry)
		s.archetypes[archetypeId] = archetype
	}
	return archetype
}

// Spawn creates a new entity with the provided components.
// An entity may be spawned without components and receive them later.
func (s *Storage) Spawn(components ...any) EntityId {
	types := extractComponentTypes(components)
	archetype := s.archetypeFor(types)

	id := s.entities.create()
	row := archetype.allocate(id, components)
	s.locations.Put(id, entityLocation{archetype: archetype, row: row})

	for _, t := range types {
		s.changes.recordAdded(t, id)
	}
	return id
}

// Alive reports whether the entity id refers to a live entity
func (s *Storage) Alive(id EntityId) bool {
	return s.entities.alive(id)
}

// EntityCount returns the number of live entities
func (s *Storage) EntityCount() int {
	return s.entities.count()
}

// Delete removes all data related to the entity ID.
// Returns false when the entity was not alive.
func (s *Storage) Delete(id EntityId) bool {
	loc, ok := s.locations.Get(id)
	if !ok || !s.entities.alive(id) {
		return false
	}

	for _, t := range loc.archetype.types {
		s.changes.recordRemoved(t, id)
	}
	loc.archetype.release(loc.row)
	s.locations.Del(id)
	s.entities.destroy(id)
	return true
}

// move relocates an entity into the archetype for newTypes, carrying over every
// component it shares with its current archetype and adding extra if given.
func (s *Storage) move(id EntityId, loc entityLocation, newTypes []reflect.Type, extra any) {
	newArchetype := s.archetypeFor(newTypes)

	components := make([]any, 0, len(newTypes))
	for _, typ := range newTypes {
		if comp := loc.archetype.GetComponent(loc.row, typ); comp != nil {
			components = append(components, comp)
		}
	}
	if extra != nil {
		components = append(components, extra)
	}

	newRow := newArchetype.allocate(id, components)
	loc.archetype.release(loc.row)
	s.locations.Put(id, entityLocation{archetype: newArchetype, row: newRow})
}

// AddComponent attaches a component to an entity. If the entity already carries a
// component of that type it is overwritten in place and no addition is recorded.
// Returns false when the entity is not alive.
func (s *Storage) AddComponent(id EntityId, component any) bool {
	loc, ok := s.locations.Get(id)
	if !ok || !s.entities.alive(id) {
		return false
	}

	compType := componentType(component)
	if loc.archetype.HasComponent(compType) {
		return loc.archetype.setComponent(loc.row, component)
	}

	newTypes := make([]reflect.Type, 0, len(loc.archetype.types)+1)
	newTypes = append(newTypes, loc.archetype.types...)
	newTypes = append(newTypes, compType)
	sort.Sort(byTypeName(newTypes))

	s.move(id, loc, newTypes, component)
	s.changes.recordAdded(compType, id)
	return true
}

// RemoveComponent detaches a component from an entity. The entity stays alive
// even when no components remain. Returns false when nothing was removed.
func (s *Storage) RemoveComponent(id EntityId, compType reflect.Type) bool {
	loc, ok := s.locations.Get(id)
	if !ok || !s.entities.alive(id) || !loc.archetype.HasComponent(compType) {
		return false
	}

	newTypes := make([]reflect.Type, 0, len(loc.archetype.types)-1)
	for _, typ := range loc.archetype.types {
		if typ != compType {
			newTypes = append(newTypes, typ)
		}
	}

	s.move(id, loc, newTypes, nil)
	s.changes.recordRemoved(compType, id)
	return true
}

// SetComponent overwrites an existing component value in place.
// Returns false when the entity is not alive or does not carry the component;
// it never adds a component that is missing.
func (s *Storage) SetComponent(id EntityId, component any) bool {
	loc, ok := s.locations.Get(id)
	if !ok || !s.entities.alive(id) {
		return false
	}
	return loc.archetype.setComponent(loc.row, component)
}

// GetComponent returns the component for the given entity ID and component type
func (s *Storage) GetComponent(id EntityId, compType reflect.Type) any {
	loc, ok := s.locations.Get(id)
	if !ok || !s.entities.alive(id) {
		return nil
	}
	return loc.archetype.GetComponent(loc.row, compType)
}

// ArchetypeOf returns the archetype an entity currently lives in, or nil if it is not alive.
func (s *Storage) ArchetypeOf(id EntityId) *Archetype {
	loc, ok := s.locations.Get(id)
	if !ok || !s.entities.alive(id) {
		return nil
	}
	return loc.archetype
}

// HasComponent checks if an entity has a specific component type
func (s *Storage) HasComponent(id EntityId, compType reflect.Type) bool {
	loc, ok := s.locations.Get(id)
	if !ok || !s.entities.alive(id) {
		return false
	}
	return loc.archetype.HasComponent(compType)
}

// Compact packs every archetype's rows. Entity ids are unaffected.
func (s *Storage) Compact() {
	for _, archetype := range s.archetypes {
		for entity, row := range archetype.compact() {
			s.locations.Put(entity, entityLocation{archetype: archetype, row: row})
		}
	}
}

// ChangeSeq returns the sequence number of the most recent recorded change
func (s *Storage) ChangeSeq() uint64 {
	return s.changes.seq
}

// TrimChanges discards change records written before the previous call.
// The Scheduler calls it once at the end of every tick.
func (s *Storage) TrimChanges() {
	s.changes.trim()
}

func componentType(component any) reflect.Type {
	compType := reflect.TypeOf(component)
	if compType.Kind() == reflect.Ptr {
		compType = compType.Elem()
	}
	return compType
}

// extractComponentTypes extracts and sorts component types from a slice of components
func extractComponentTypes(components []any) []reflect.Type {
	types := make([]reflect.Type, 0, len(components))
	for _, comp := range components {
		compType := componentType(comp)

		// Components can be structs or primitives (int, string, etc.)
		// But not pointers, maps, channels, or functions (those aren't value types)
		if compType.Kind() == reflect.Ptr || compType.Kind() == reflect.Map ||
			compType.Kind() == reflect.Chan || compType.Kind() == reflect.Func {
			panic("components cannot be pointers, maps, channels, or functions")
		}

		types = append(types, compType)
	}
	sort.Sort(byTypeName(types))
	return types
}

func typeId(t reflect.Type) uintptr {
	return uintptr((*iface)(unsafe.Pointer(&t)).data)
}

type ComponentReader interface {
	GetComponent(EntityId, reflect.Type) any
}

// ReadComponent returns a pointer to the entity's component of type T, or nil.
func ReadComponent[T any](reader ComponentReader, entityId EntityId) *T {
	comp, _ := reader.GetComponent(entityId, reflect.TypeFor[T]()).(*T)
	return comp
}
