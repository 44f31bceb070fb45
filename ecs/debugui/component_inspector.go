package debugui

import (
	"fmt"
	"reflect"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/componentload/ecs"
	"github.com/plus3/componentload/lifecycle"
)

// inspectedComponent is one component of the selected entity. Loadable components
// are read-only here: editing them would bypass Load and Unload.
type inspectedComponent struct {
	name   string
	mode   string
	loaded bool
	fields []string
}

func NewComponentInspectorComponent(registry *lifecycle.Registry) ComponentInspectorComponent {
	return ComponentInspectorComponent{registry: registry}
}

func (ci *ComponentInspectorComponent) Render(storage *ecs.Storage, selected ecs.EntityId) {
	if !imgui.BeginV("Component Inspector", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	if selected == 0 {
		imgui.Text("No entity selected")
		imgui.End()
		return
	}

	components, ok := ci.inspect(storage, selected)
	if !ok {
		imgui.Text(fmt.Sprintf("Entity %d:%d is gone", selected.Index(), selected.Generation()))
		imgui.End()
		return
	}

	imgui.Text(fmt.Sprintf("Entity %d:%d", selected.Index(), selected.Generation()))
	imgui.Text(fmt.Sprintf("Active: %t", lifecycle.IsActive(storage, selected)))
	imgui.Separator()

	for _, c := range components {
		label := c.name
		if c.mode != "" {
			state := "unloaded"
			if c.loaded {
				state = "loaded"
			}
			label = fmt.Sprintf("%s [%s, %s]", c.name, c.mode, state)
		}
		if imgui.TreeNodeStr(label) {
			for _, field := range c.fields {
				imgui.Text(field)
			}
			imgui.TreePop()
		}
	}

	imgui.End()
}

// inspect describes every component of an entity. It returns false when the
// entity is not alive.
func (ci *ComponentInspectorComponent) inspect(storage *ecs.Storage, id ecs.EntityId) ([]inspectedComponent, bool) {
	archetype := storage.ArchetypeOf(id)
	if archetype == nil {
		return nil, false
	}

	active := archetype.HasComponent(activeType)
	components := make([]inspectedComponent, 0, len(archetype.Types()))
	for _, compType := range archetype.Types() {
		c := inspectedComponent{name: compType.String()}
		if ci.registry != nil {
			if mode, ok := ci.registry.ModeOf(compType); ok {
				c.mode = mode.String()
				c.loaded = active
			}
		}
		if component := storage.GetComponent(id, compType); component != nil {
			c.fields = describeFields(reflect.ValueOf(component))
		}
		components = append(components, c)
	}
	return components, true
}

func describeFields(val reflect.Value) []string {
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return []string{"nil"}
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return []string{fmt.Sprintf("%v", val.Interface())}
	}

	fields := make([]string, 0, val.NumField())
	for i := range val.NumField() {
		field := val.Type().Field(i)
		if !field.IsExported() {
			continue
		}
		fields = append(fields, fmt.Sprintf("%s: %s", field.Name, describeValue(val.Field(i))))
	}
	return fields
}

func describeValue(val reflect.Value) string {
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface:
		if val.IsNil() {
			return "nil"
		}
		return describeValue(val.Elem())
	case reflect.Slice:
		return fmt.Sprintf("[%d items]", val.Len())
	case reflect.Map:
		return fmt.Sprintf("map[%d items]", val.Len())
	case reflect.Func, reflect.Chan:
		return val.Type().String()
	default:
		return fmt.Sprintf("%v", val.Interface())
	}
}
