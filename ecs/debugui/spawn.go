package debugui

import (
	"github.com/plus3/componentload/ecs"
	"github.com/plus3/componentload/lifecycle"
)

// SpawnDebugUI spawns the performance panel and the entity browser with its
// inspector. registry may be nil, in which case the lifecycle panel is left out
// and no component is reported as loadable.
func SpawnDebugUI(storage *ecs.Storage, registry *lifecycle.Registry) {
	storage.Spawn(NewPerformanceStatsComponent(120))
	storage.Spawn(
		NewEntityBrowserComponent(storage, registry, 50),
		NewComponentInspectorComponent(registry),
	)
	if registry != nil {
		storage.Spawn(NewLifecyclePanelComponent(registry))
	}
}

func RegisterDebugUIComponents(registry *ecs.ComponentRegistry) {
	ecs.RegisterComponent[ImguiItem](registry)
	ecs.RegisterComponent[ImguiInputState](registry)
	ecs.RegisterComponent[PerformanceStatsComponent](registry)
	ecs.RegisterComponent[LifecyclePanelComponent](registry)
	ecs.RegisterComponent[EntityBrowserComponent](registry)
	ecs.RegisterComponent[ComponentInspectorComponent](registry)
}
