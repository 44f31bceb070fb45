// Package debugui provides immediate-mode GUI integration for ECS applications using Dear ImGui.
// It manages ImGui rendering and input state through ECS components and systems.
package debugui

import (
	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/componentload/ecs"
)

// ImguiItem is a component that holds a Dear ImGui render function.
// Attach this to entities that should render ImGui widgets each frame.
type ImguiItem struct {
	Render func()
}

// ImguiInputState tracks Dear ImGui's input capture state as a singleton component.
// Use this to determine if ImGui is consuming mouse or keyboard input.
type ImguiInputState struct {
	WantCaptureMouse    bool
	WantCaptureKeyboard bool
}

// ImguiSystem queries all ImguiItem components and defers their render functions.
// It also updates the ImguiInputState singleton with current input capture state.
type ImguiSystem struct {
	Items      ecs.Query[struct{ *ImguiItem }]
	InputState ecs.Singleton[ImguiInputState]
}

// Execute updates input state and queues all ImGui render functions for execution.
func (i *ImguiSystem) Execute(frame *ecs.UpdateFrame) {
	if state := i.InputState.Get(); state != nil {
		state.WantCaptureMouse = imgui.CurrentIO().WantCaptureMouse()
		state.WantCaptureKeyboard = imgui.CurrentIO().WantCaptureKeyboard()
	}

	for _, item := range i.Items.Iter() {
		frame.Commands.Defer(item.Render)
	}
}

// PanelSystem renders the built-in debug panels spawned by SpawnDebugUI.
type PanelSystem struct {
	Performance ecs.Query[struct{ *PerformanceStatsComponent }]
	Lifecycle   ecs.Query[struct{ *LifecyclePanelComponent }]
	Browsers    ecs.Query[struct {
		*EntityBrowserComponent
		Inspector *ComponentInspectorComponent `ecs:"optional"`
	}]
}

func (p *PanelSystem) Execute(frame *ecs.UpdateFrame) {
	storage := frame.Storage
	dt := float32(frame.DeltaTime)

	for _, item := range p.Performance.Iter() {
		panel := item.PerformanceStatsComponent
		frame.Commands.Defer(func() { panel.Render(storage, dt) })
	}
	for _, item := range p.Lifecycle.Iter() {
		panel := item.LifecyclePanelComponent
		frame.Commands.Defer(panel.Render)
	}
	for _, item := range p.Browsers.Iter() {
		browser, inspector := item.EntityBrowserComponent, item.Inspector
		frame.Commands.Defer(func() {
			browser.Render(storage)
			if inspector != nil {
				inspector.Render(storage, browser.Selected())
			}
		})
	}
}
