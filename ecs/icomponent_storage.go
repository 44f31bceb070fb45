package ecs

// iComponentStorage is an interface for a type-erased component storage.
// Rows are allocated by the owning Archetype; storages only hold values.
type iComponentStorage interface {
	Set(index int, item any) bool
	Delete(index int)
	Get(index int) any
	Has(index int) bool
	Move(from, to int)
	Truncate(rows int)
}
