package debugui

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/componentload/ecs"
	"github.com/plus3/componentload/lifecycle"
)

var activeType = reflect.TypeFor[lifecycle.Active]()

type entityRow struct {
	id         ecs.EntityId
	archetype  uint64
	components []string
	loadables  int
	active     bool
}

const (
	columnId = iota
	columnArchetype
	columnComponents
	columnLoadables
	columnActive
)

func NewEntityBrowserComponent(storage *ecs.Storage, registry *lifecycle.Registry, maxEntitiesPerPage int) EntityBrowserComponent {
	if maxEntitiesPerPage < 1 {
		maxEntitiesPerPage = 1
	}
	return EntityBrowserComponent{
		registry:           registry,
		active:             ecs.NewChangeReader[lifecycle.Active](storage),
		maxEntitiesPerPage: maxEntitiesPerPage,
		sortAscending:      true,
		lastArchetypes:     -1,
	}
}

func (eb *EntityBrowserComponent) Render(storage *ecs.Storage) {
	if !imgui.BeginV("Entity Browser", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	eb.rebuildIfNeeded(storage)

	imgui.InputTextWithHint("##search", "Search...", &eb.filterText, imgui.InputTextFlagsNone, nil)
	imgui.SameLine()
	imgui.Checkbox("Active only", &eb.activeOnly)
	imgui.SameLine()
	if imgui.Button("Refresh") {
		eb.rows = nil
	}

	filtered := eb.filtered()

	const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg | imgui.TableFlagsSortable | imgui.TableFlagsScrollY
	if imgui.BeginTableV("EntityTable", 5, tableFlags, imgui.NewVec2(0, 0), 0) {
		imgui.TableSetupColumn("Entity")
		imgui.TableSetupColumn("Archetype")
		imgui.TableSetupColumn("Components")
		imgui.TableSetupColumn("Loadable")
		imgui.TableSetupColumn("Active")
		imgui.TableHeadersRow()

		sortSpecs := imgui.TableGetSortSpecs()
		if sortSpecs.SpecsDirty() && sortSpecs.SpecsCount() > 0 {
			spec := sortSpecs.Specs()
			eb.sortColumn = int(spec.ColumnIndex())
			eb.sortAscending = spec.SortDirection() == imgui.SortDirectionAscending
			eb.sortRows()
			filtered = eb.filtered()
			sortSpecs.SetSpecsDirty(false)
		}

		start, end := eb.page(len(filtered))
		for i := start; i < end; i++ {
			row := &filtered[i]
			imgui.TableNextRow()

			imgui.TableNextColumn()
			label := fmt.Sprintf("%d:%d", row.id.Index(), row.id.Generation())
			if imgui.SelectableBoolV(label, eb.selected == row.id, imgui.SelectableFlagsNone, imgui.NewVec2(0, 0)) {
				eb.selected = row.id
			}

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("0x%X", row.archetype))

			imgui.TableNextColumn()
			imgui.Text(strings.Join(row.components, ", "))

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", row.loadables))

			imgui.TableNextColumn()
			button := "Activate"
			if row.active {
				button = "Deactivate"
			}
			if imgui.Button(fmt.Sprintf("%s##%d", button, row.id)) {
				eb.toggle(storage, row.id)
			}
		}

		imgui.EndTable()
	}

	if len(filtered) > eb.maxEntitiesPerPage {
		totalPages := (len(filtered) + eb.maxEntitiesPerPage - 1) / eb.maxEntitiesPerPage
		imgui.Text(fmt.Sprintf("Page %d / %d (%d entities)", eb.currentPage+1, totalPages, len(filtered)))
		imgui.SameLine()
		if imgui.Button("Prev") && eb.currentPage > 0 {
			eb.currentPage--
		}
		imgui.SameLine()
		if imgui.Button("Next") && eb.currentPage < totalPages-1 {
			eb.currentPage++
		}
	} else {
		imgui.Text(fmt.Sprintf("Total: %d entities", len(filtered)))
	}

	imgui.End()
}

// rebuildIfNeeded drops the row cache when the archetype or entity count changed
// or any entity gained or lost the Active marker since the last frame.
func (eb *EntityBrowserComponent) rebuildIfNeeded(storage *ecs.Storage) {
	changes := eb.active.Read()
	archetypes, entities := len(storage.GetArchetypes()), storage.EntityCount()
	if archetypes != eb.lastArchetypes || entities != eb.lastEntities ||
		changes.Added.Len() > 0 || changes.Removed.Len() > 0 {
		eb.rows = nil
		eb.lastArchetypes, eb.lastEntities = archetypes, entities
	}

	if eb.rows == nil {
		eb.rebuild(storage)
	}
}

func (eb *EntityBrowserComponent) rebuild(storage *ecs.Storage) {
	eb.rows = make([]entityRow, 0, storage.EntityCount())

	for _, archetype := range storage.GetArchetypes() {
		if archetype.Len() == 0 {
			continue
		}

		components := make([]string, len(archetype.Types()))
		loadables := 0
		for i, t := range archetype.Types() {
			components[i] = t.String()
			if eb.registry != nil {
				if _, ok := eb.registry.ModeOf(t); ok {
					loadables++
				}
			}
		}
		active := archetype.HasComponent(activeType)

		for id := range archetype.Iter() {
			eb.rows = append(eb.rows, entityRow{
				id:         id,
				archetype:  archetype.ID(),
				components: components,
				loadables:  loadables,
				active:     active,
			})
		}
	}

	eb.sortRows()
}

func (eb *EntityBrowserComponent) sortRows() {
	sort.SliceStable(eb.rows, func(i, j int) bool {
		a, b := eb.rows[i], eb.rows[j]
		var less bool

		switch eb.sortColumn {
		case columnArchetype:
			less = a.archetype < b.archetype
		case columnComponents:
			less = strings.Join(a.components, ",") < strings.Join(b.components, ",")
		case columnLoadables:
			less = a.loadables < b.loadables
		case columnActive:
			less = !a.active && b.active
		default:
			less = a.id < b.id
		}

		if !eb.sortAscending {
			return !less
		}
		return less
	})
}

func (eb *EntityBrowserComponent) filtered() []entityRow {
	if eb.filterText == "" && !eb.activeOnly {
		return eb.rows
	}

	rows := make([]entityRow, 0, len(eb.rows))
	filterLower := strings.ToLower(eb.filterText)

	for _, row := range eb.rows {
		if eb.activeOnly && !row.active {
			continue
		}

		if eb.filterText != "" {
			idStr := fmt.Sprintf("%d:%d", row.id.Index(), row.id.Generation())
			archStr := fmt.Sprintf("0x%x", row.archetype)
			componentsStr := strings.ToLower(strings.Join(row.components, " "))

			if !strings.Contains(idStr, filterLower) &&
				!strings.Contains(archStr, filterLower) &&
				!strings.Contains(componentsStr, filterLower) {
				continue
			}
		}

		rows = append(rows, row)
	}

	return rows
}

// page clamps the current page to n rows and returns its bounds.
func (eb *EntityBrowserComponent) page(n int) (int, int) {
	lastPage := max(0, (n-1)/eb.maxEntitiesPerPage)
	eb.currentPage = min(eb.currentPage, lastPage)

	start := eb.currentPage * eb.maxEntitiesPerPage
	end := min(start+eb.maxEntitiesPerPage, n)
	return start, end
}

// toggle flips the Active marker of an entity. The matching load or unload
// runs in the next PostUpdate stage. It reports the new state.
func (eb *EntityBrowserComponent) toggle(storage *ecs.Storage, id ecs.EntityId) bool {
	if lifecycle.IsActive(storage, id) {
		lifecycle.Deactivate(storage, id)
	} else {
		lifecycle.Activate(storage, id)
	}
	eb.rows = nil
	return lifecycle.IsActive(storage, id)
}

func (eb *EntityBrowserComponent) Selected() ecs.EntityId {
	return eb.selected
}
