package ecs

import (
	"encoding/binary"
	"iter"
	"reflect"
	"slices"

	"github.com/cespare/xxhash/v2"
)

type byTypeName []reflect.Type

func (a byTypeName) Len() int           { return len(a) }
func (a byTypeName) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byTypeName) Less(i, j int) bool { return a[i].String() < a[j].String() }

// Archetype represents a unique combination of component types.
// It owns row allocation; every storage holds the row's component at the same index.
type Archetype struct {
	id       uint64
	types    []reflect.Type
	storages []iComponentStorage
	entities []EntityId
	freeRows []uint32
	live     int
}

// NewArchetype creates a new archetype with the given ID and sorted component types
func NewArchetype(id uint64, types []reflect.Type, registry *ComponentRegistry) *Archetype {
	a := &Archetype{
		id:       id,
		types:    types,
		storages: make([]iComponentStorage, len(types)),
	}

	// Initialize storage for each component type
	for idx, typ := range types {
		factory := registry.getFactory(typ)
		if factory == nil {
			panic("component type " + typ.String() + " not registered")
		}
		a.storages[idx] = factory()
	}

	return a
}

// allocate reserves a row for the entity and stores the given components in it.
// Components whose type is not part of the archetype are ignored.
func (a *Archetype) allocate(entity EntityId, components []any) uint32 {
	var row uint32
	if len(a.freeRows) > 0 {
		row = a.freeRows[len(a.freeRows)-1]
		a.freeRows = a.freeRows[:len(a.freeRows)-1]
		a.entities[row] = entity
	} else {
		row = uint32(len(a.entities))
		a.entities = append(a.entities, entity)
	}
	a.live++

	for _, comp := range components {
		compType := reflect.TypeOf(comp)
		if compType.Kind() == reflect.Ptr {
			compType = compType.Elem()
		}
		if col := a.column(compType); col >= 0 {
			a.storages[col].Set(int(row), comp)
		}
	}

	return row
}

// release frees a row and zeroes its components.
func (a *Archetype) release(row uint32) {
	if int(row) >= len(a.entities) || a.entities[row] == 0 {
		return
	}
	for _, storage := range a.storages {
		storage.Delete(int(row))
	}
	a.entities[row] = 0
	a.freeRows = append(a.freeRows, row)
	a.live--
}

func (a *Archetype) column(compType reflect.Type) int {
	for i, typ := range a.types {
		if typ == compType {
			return i
		}
	}
	return -1
}

// GetComponent returns a pointer to the component of the given type stored at row,
// or nil when the archetype has no such column or the row is empty.
func (a *Archetype) GetComponent(row uint32, compType reflect.Type) any {
	col := a.column(compType)
	if col == -1 {
		return nil
	}
	return a.storages[col].Get(int(row))
}

func (a *Archetype) setComponent(row uint32, component any) bool {
	compType := reflect.TypeOf(component)
	if compType.Kind() == reflect.Ptr {
		compType = compType.Elem()
	}
	col := a.column(compType)
	if col == -1 {
		return false
	}
	return a.storages[col].Set(int(row), component)
}

// HasComponent checks if this archetype has the given component type
func (a *Archetype) HasComponent(compType reflect.Type) bool {
	return slices.Contains(a.types, compType)
}

// ID returns the archetype's unique identifier
func (a *Archetype) ID() uint64 {
	return a.id
}

// Types returns the sorted component types for this archetype
func (a *Archetype) Types() []reflect.Type {
	return a.types
}

// Len returns the number of live entities stored in this archetype
func (a *Archetype) Len() int {
	return a.live
}

// Iter returns an iterator over all live EntityIds in this archetype
func (a *Archetype) Iter() iter.Seq[EntityId] {
	return func(yield func(EntityId) bool) {
		for _, entity := range a.entities {
			if entity == 0 {
				continue
			}
			if !yield(entity) {
				return
			}
		}
	}
}

// rows iterates live (row, entity) pairs.
func (a *Archetype) rows() iter.Seq2[uint32, EntityId] {
	return func(yield func(uint32, EntityId) bool) {
		for row, entity := range a.entities {
			if entity == 0 {
				continue
			}
			if !yield(uint32(row), entity) {
				return
			}
		}
	}
}

// compact packs live rows to the front and returns the new row of every moved entity.
func (a *Archetype) compact() map[EntityId]uint32 {
	moved := make(map[EntityId]uint32)
	writePos := 0

	for readPos, entity := range a.entities {
		if entity == 0 {
			continue
		}
		if readPos != writePos {
			for _, storage := range a.storages {
				storage.Move(readPos, writePos)
			}
			a.entities[writePos] = entity
			a.entities[readPos] = 0
			moved[entity] = uint32(writePos)
		}
		writePos++
	}

	a.entities = slices.Clone(a.entities[:writePos])
	a.freeRows = nil
	for _, storage := range a.storages {
		storage.Truncate(writePos)
	}

	return moved
}

// hashTypes generates an archetype id for a sorted slice of types
func hashTypes(types []reflect.Type) uint64 {
	var buf [8]byte
	d := xxhash.New()
	for _, t := range types {
		binary.LittleEndian.PutUint64(buf[:], uint64(typeId(t)))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
