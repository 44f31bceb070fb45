package debugui

import (
	"fmt"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/componentload/lifecycle"
)

func NewLifecyclePanelComponent(registry *lifecycle.Registry) LifecyclePanelComponent {
	return LifecyclePanelComponent{
		registry:   registry,
		lastTotals: make(map[string]int64),
	}
}

type lifecycleRow struct {
	name     string
	mode     string
	loads    string
	failures string
	unloads  string
	skipped  string
	batches  string
	perFrame int64
	idle     bool
}

// rows converts a stats snapshot into table rows. perFrame is the number of
// loads plus unloads since the previous snapshot.
func (lp *LifecyclePanelComponent) rows(stats []lifecycle.TypeStats) []lifecycleRow {
	rows := make([]lifecycleRow, 0, len(stats))
	for _, s := range stats {
		total := s.Loads + s.Failures + s.Unloads
		delta := total - lp.lastTotals[s.Name]
		lp.lastTotals[s.Name] = total

		batches := "-"
		if s.Mode == lifecycle.Exclusive {
			batches = fmt.Sprintf("%d", s.Batches)
		}

		rows = append(rows, lifecycleRow{
			name:     s.Name,
			mode:     s.Mode.String(),
			loads:    fmt.Sprintf("%d", s.Loads),
			failures: fmt.Sprintf("%d", s.Failures),
			unloads:  fmt.Sprintf("%d", s.Unloads),
			skipped:  fmt.Sprintf("%d", s.Skipped),
			batches:  batches,
			perFrame: delta,
			idle:     total == 0,
		})
	}
	return rows
}

func (lp *LifecyclePanelComponent) Render() {
	if !imgui.BeginV("Lifecycle", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	if lp.registry == nil {
		imgui.Text("No lifecycle registry")
		imgui.End()
		return
	}

	imgui.Checkbox("Hide idle types", &lp.hideIdle)
	imgui.Text(fmt.Sprintf("Registered Types: %d", lp.registry.Len()))

	const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg
	if imgui.BeginTableV("LifecycleTable", 8, tableFlags, imgui.NewVec2(0, 0), 0) {
		imgui.TableSetupColumn("Component")
		imgui.TableSetupColumn("Mode")
		imgui.TableSetupColumn("Loads")
		imgui.TableSetupColumn("Failures")
		imgui.TableSetupColumn("Unloads")
		imgui.TableSetupColumn("Skipped")
		imgui.TableSetupColumn("Batches")
		imgui.TableSetupColumn("Last Frame")
		imgui.TableHeadersRow()

		for _, row := range lp.rows(lp.registry.Stats()) {
			if lp.hideIdle && row.idle {
				continue
			}
			imgui.TableNextRow()
			for _, cell := range []string{row.name, row.mode, row.loads, row.failures, row.unloads, row.skipped, row.batches} {
				imgui.TableNextColumn()
				imgui.Text(cell)
			}
			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", row.perFrame))
		}

		imgui.EndTable()
	}

	imgui.End()
}
