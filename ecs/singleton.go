package ecs

import (
	"reflect"
	"unsafe"
)

// singletonEntry owns the heap copy of a singleton value.
type singletonEntry struct {
	value   reflect.Value
	dataPtr unsafe.Pointer
}

// AddSingleton stores a value that is not associated with any entity.
// Adding a singleton of a type that already exists replaces its value in place,
// so pointers previously obtained through a Singleton stay valid.
func (s *Storage) AddSingleton(value any) {
	t := reflect.TypeOf(value)
	if entry, ok := s.singletons[t]; ok {
		entry.value.Elem().Set(reflect.ValueOf(value))
		return
	}

	v := reflect.New(t)
	v.Elem().Set(reflect.ValueOf(value))
	s.singletons[t] = &singletonEntry{
		value:   v,
		dataPtr: v.UnsafePointer(),
	}
}

// RemoveSingleton deletes the singleton of the given type
func (s *Storage) RemoveSingleton(t reflect.Type) {
	delete(s.singletons, t)
}

func (s *Storage) getSingletonEntry(t reflect.Type) *singletonEntry {
	return s.singletons[t]
}

// Singleton provides efficient access to a single component instance
// that is not associated with any entity. Use this for global game state,
// configuration, or other singleton data.
type Singleton[T any] struct {
	storage       *Storage
	componentPtr  unsafe.Pointer
	componentType reflect.Type
}

// NewSingleton creates a new Singleton accessor for the given storage.
// If initializer is provided and the singleton doesn't exist in storage,
// it will be created with the initializer value. Otherwise, a zero value is used.
// This guarantees the singleton exists in storage after the call.
func NewSingleton[T any](storage *Storage, initializer ...T) *Singleton[T] {
	componentType := reflect.TypeFor[T]()

	entry := storage.getSingletonEntry(componentType)
	if entry == nil {
		var value T
		if len(initializer) > 0 {
			value = initializer[0]
		}
		storage.AddSingleton(value)
		entry = storage.getSingletonEntry(componentType)
	}

	return &Singleton[T]{
		storage:       storage,
		componentPtr:  entry.dataPtr,
		componentType: componentType,
	}
}

// LookupSingleton returns the singleton of type T without creating it.
func LookupSingleton[T any](storage *Storage) (*T, bool) {
	entry := storage.getSingletonEntry(reflect.TypeFor[T]())
	if entry == nil {
		return nil, false
	}
	return (*T)(entry.dataPtr), true
}

// Init initializes the Singleton with a storage reference.
// This is called automatically by the Scheduler during system registration.
func (s *Singleton[T]) Init(storage *Storage) {
	s.storage = storage
	s.componentType = reflect.TypeFor[T]()
	s.updateCache()
}

// Get returns a pointer to the singleton component.
// Returns nil if the singleton has not been added to storage or was removed.
func (s *Singleton[T]) Get() *T {
	s.updateCache()
	if s.componentPtr == nil {
		return nil
	}
	return (*T)(s.componentPtr)
}

// updateCache refreshes the cached pointer from storage
func (s *Singleton[T]) updateCache() {
	if s.storage == nil {
		return
	}
	entry := s.storage.getSingletonEntry(s.componentType)
	if entry != nil {
		s.componentPtr = entry.dataPtr
	} else {
		s.componentPtr = nil
	}
}

// Exists returns true if the singleton component is currently in storage
func (s *Singleton[T]) Exists() bool {
	s.updateCache()
	return s.componentPtr != nil
}
