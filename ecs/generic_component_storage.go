package ecs

import (
	"reflect"
	"slices"
)

// ComponentRegistry manages component type registration for an ECS instance.
// Each Storage instance has its own ComponentRegistry, allowing multiple
// independent ECS systems to coexist without interference.
type ComponentRegistry struct {
	factories map[reflect.Type]func() iComponentStorage
}

// NewComponentRegistry creates a new component registry.
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		factories: make(map[reflect.Type]func() iComponentStorage),
	}
}

// RegisterComponent registers a new component type with the given registry.
// This must be called for each component type before it can be used.
// Registering the same type twice is harmless.
func RegisterComponent[T any](r *ComponentRegistry) {
	t := reflect.TypeFor[T]()
	r.factories[t] = func() iComponentStorage {
		return &genericComponentStorage[T]{}
	}
}

// IsRegistered reports whether the component type has a storage factory.
func (r *ComponentRegistry) IsRegistered(t reflect.Type) bool {
	_, ok := r.factories[t]
	return ok
}

// getFactory returns the factory function for a given component type.
// Returns nil if the type is not registered.
func (r *ComponentRegistry) getFactory(t reflect.Type) func() iComponentStorage {
	return r.factories[t]
}

const (
	genericBlockSize = 64
)

// genericComponentStorage is a generic implementation of iComponentStorage.
// It stores components of a specific type `T` in fixed-size blocks so pointers
// handed out by Get stay valid while the storage grows.
type genericComponentStorage[T any] struct {
	blocks []*[genericBlockSize]T
	filled []*[genericBlockSize]bool
}

func (cs *genericComponentStorage[T]) ensure(index int) {
	for index/genericBlockSize >= len(cs.blocks) {
		cs.blocks = append(cs.blocks, new([genericBlockSize]T))
		cs.filled = append(cs.filled, new([genericBlockSize]bool))
	}
}

// Set stores a component at the given index, accepting either T or *T.
func (cs *genericComponentStorage[T]) Set(index int, item any) bool {
	if index < 0 {
		return false
	}

	var concreteItem T
	if ptr, ok := item.(*T); ok {
		concreteItem = *ptr
	} else if val, ok := item.(T); ok {
		concreteItem = val
	} else {
		return false
	}

	cs.ensure(index)
	blockIdx := index / genericBlockSize
	slotIdx := index % genericBlockSize

	cs.blocks[blockIdx][slotIdx] = concreteItem
	cs.filled[blockIdx][slotIdx] = true
	return true
}

// Get returns a pointer to the component at the given index.
func (cs *genericComponentStorage[T]) Get(index int) any {
	if !cs.Has(index) {
		return nil
	}
	return &cs.blocks[index/genericBlockSize][index%genericBlockSize]
}

// Delete marks a component slot as empty.
func (cs *genericComponentStorage[T]) Delete(index int) {
	if !cs.Has(index) {
		return
	}

	blockIdx := index / genericBlockSize
	slotIdx := index % genericBlockSize

	cs.filled[blockIdx][slotIdx] = false
	var zero T
	cs.blocks[blockIdx][slotIdx] = zero // Zero out the value
}

// Has checks if a component exists at the given index.
func (cs *genericComponentStorage[T]) Has(index int) bool {
	if index < 0 {
		return false
	}

	blockIdx := index / genericBlockSize
	if blockIdx >= len(cs.blocks) {
		return false
	}

	return cs.filled[blockIdx][index%genericBlockSize]
}

// Move relocates the component at from into the slot at to, leaving from empty.
func (cs *genericComponentStorage[T]) Move(from, to int) {
	if from == to || !cs.Has(from) {
		return
	}
	cs.ensure(to)

	cs.blocks[to/genericBlockSize][to%genericBlockSize] = cs.blocks[from/genericBlockSize][from%genericBlockSize]
	cs.filled[to/genericBlockSize][to%genericBlockSize] = true
	cs.Delete(from)
}

// Truncate releases whole blocks beyond the given row count.
func (cs *genericComponentStorage[T]) Truncate(rows int) {
	numBlocks := (rows + genericBlockSize - 1) / genericBlockSize
	if numBlocks == 0 {
		numBlocks = 1
	}
	if numBlocks >= len(cs.blocks) {
		return
	}
	cs.blocks = slices.Clone(cs.blocks[:numBlocks])
	cs.filled = slices.Clone(cs.filled[:numBlocks])
}
