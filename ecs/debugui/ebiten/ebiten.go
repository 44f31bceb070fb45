// Package ebiten provides Dear ImGui backend integration for the Ebiten game engine.
package ebiten

import (
	ebitenbackend "github.com/AllenDang/cimgui-go/backend/ebiten-backend"
	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/componentload/ecs"
)

// ImguiBackend wraps the Ebiten-specific Dear ImGui backend implementation.
// Use this to integrate Dear ImGui rendering into Ebiten game loops.
type ImguiBackend struct {
	*ebitenbackend.EbitenBackend
}

// Install creates the backend window, disables imgui.ini persistence and stores
// the backend as a singleton. The ImguiBackend type must be registered first.
func Install(storage *ecs.Storage, title string, width, height int) *ecs.Singleton[ImguiBackend] {
	backend := ebitenbackend.NewEbitenBackend()
	backend.CreateWindow(title, width, height)
	imgui.CurrentIO().SetIniFilename("")

	return ecs.NewSingleton(storage, ImguiBackend{EbitenBackend: backend})
}
