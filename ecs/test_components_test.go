package ecs_test

import "github.com/plus3/componentload/ecs"

// Components most tests move, damage and name entities with.
type Position struct {
	X, Y float32
}

type Velocity struct {
	DX, DY float32
}

type Name struct {
	Value string
}

type Health struct {
	Current int
	Max     int
}

// Named primitives stored as non-struct components.
type (
	Score       int32
	Tag         string
	Temperature float64
	Faction     string
	Layer       string
)

// Components that hold references; storage copies the component, not what it points at.
type (
	Seeker struct {
		Target *Position
	}
	Inventory struct {
		Items []string
	}
	Stats struct {
		Attributes map[string]int
	}
	Link struct {
		Next *Position
	}
	Inner struct {
		Value int
	}
	Outer struct {
		Data *Inner
		List []*Inner
	}
)

// newTestRegistry registers every component above plus the builtin primitives
// some storage tests spawn directly.
func newTestRegistry() *ecs.ComponentRegistry {
	registry := ecs.NewComponentRegistry()
	for _, register := range []func(*ecs.ComponentRegistry){
		ecs.RegisterComponent[Position],
		ecs.RegisterComponent[Velocity],
		ecs.RegisterComponent[Name],
		ecs.RegisterComponent[Health],
		ecs.RegisterComponent[Score],
		ecs.RegisterComponent[Tag],
		ecs.RegisterComponent[Temperature],
		ecs.RegisterComponent[Faction],
		ecs.RegisterComponent[Layer],
		ecs.RegisterComponent[int32],
		ecs.RegisterComponent[float64],
		ecs.RegisterComponent[string],
		ecs.RegisterComponent[Seeker],
		ecs.RegisterComponent[Inventory],
		ecs.RegisterComponent[Stats],
		ecs.RegisterComponent[Link],
		ecs.RegisterComponent[Inner],
		ecs.RegisterComponent[Outer],
	} {
		register(registry)
	}
	return registry
}
