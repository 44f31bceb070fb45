package main

import (
	"fmt"
	"io"
	"runtime"
	"text/template"
	"time"

	"github.com/plus3/componentload/ecs"
	"github.com/plus3/componentload/lifecycle"
)

type Report struct {
	// Configuration
	Duration     time.Duration
	TickRate     time.Duration
	Entities     int
	ToggleChance float64
	Systems      int

	// Results
	TotalUpdates   int64
	TotalTime      time.Duration
	UpdateTime     Stats
	Toggles        int64
	Lifecycle      []lifecycle.TypeStats
	Storage        ecs.StorageStats
	AssetsDone     int
	AssetsTotal    int
	GCPauseMetrics bool
	MemStatsStart  runtime.MemStats
	MemStatsEnd    runtime.MemStats
}

type Stats struct {
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	Samples []time.Duration
}

func (s *Stats) Finalize() {
	if len(s.Samples) == 0 {
		return
	}

	var total time.Duration
	s.Min = s.Samples[0]
	s.Max = s.Samples[0]

	for _, sample := range s.Samples {
		s.Min = min(s.Min, sample)
		s.Max = max(s.Max, sample)
		total += sample
	}
	s.Avg = total / time.Duration(len(s.Samples))
}

const reportTemplate = `
# Lifecycle Stress Test Report

## Test Configuration
- **Run Duration:** {{.Duration}}
- **Tick Rate:** {{.TickRate}}
- **Initial Entities:** {{.Entities}}
- **Toggle Chance:** {{printf "%.3f" .ToggleChance}}
- **Systems:** {{.Systems}}

## Performance Results
- **Total Updates:** {{.TotalUpdates}}
- **Total Test Time:** {{.TotalTime}}
- **Marker Toggles:** {{.Toggles}}
- **Update Time (Frame):**
  - **Avg:** {{.UpdateTime.Avg}}
  - **Min:** {{.UpdateTime.Min}}
  - **Max:** {{.UpdateTime.Max}}

## Lifecycle
| Component | Mode | Loads | Failures | Unloads | Skipped | Batches |
|---|---|---|---|---|---|---|
{{- range .Lifecycle}}
| {{.Name}} | {{.Mode}} | {{.Loads}} | {{.Failures}} | {{.Unloads}} | {{.Skipped}} | {{.Batches}} |
{{- end}}

- **Assets Ready:** {{.AssetsDone}} / {{.AssetsTotal}}

## Storage
- **Entities:** {{.Storage.TotalEntityCount}}
- **Archetypes:** {{.Storage.ArchetypeCount}}
- **Retained Change Records:** {{.Storage.PendingChanges}}

## Memory Usage (Raw Bytes)
- Heap Alloc:     {{.MemStatsStart.HeapAlloc}} (start) -> {{.MemStatsEnd.HeapAlloc}} (end) -> delta: {{bsub .MemStatsEnd.HeapAlloc .MemStatsStart.HeapAlloc}}
- Total Alloc:    {{.MemStatsStart.TotalAlloc}} (start) -> {{.MemStatsEnd.TotalAlloc}} (end) -> delta: {{bsub .MemStatsEnd.TotalAlloc .MemStatsStart.TotalAlloc}}
- Sys Memory:     {{.MemStatsStart.Sys}} (start) -> {{.MemStatsEnd.Sys}} (end) -> delta: {{bsub .MemStatsEnd.Sys .MemStatsStart.Sys}}
- Num GC:         {{.MemStatsStart.NumGC}} (start) -> {{.MemStatsEnd.NumGC}} (end) -> delta: {{usub .MemStatsEnd.NumGC .MemStatsStart.NumGC}}
{{if .GCPauseMetrics}}
## GC Pause Durations
- **Total GC Pause:** {{.MemStatsEnd.PauseTotalNs | ns}}
- **Heap In Use:** {{mb .MemStatsEnd.HeapInuse}} MiB
{{end}}`

func (r *Report) Generate(w io.Writer) error {
	fm := template.FuncMap{
		"mb": func(v any) string {
			switch val := v.(type) {
			case uint64:
				return fmt.Sprintf("%.2f", float64(val)/1024/1024)
			case int64:
				return fmt.Sprintf("%.2f", float64(val)/1024/1024)
			default:
				return "N/A"
			}
		},
		"bsub": func(a, b uint64) int64 {
			return int64(a) - int64(b)
		},
		"usub": func(a, b uint32) uint32 {
			return a - b
		},
		"ns": func(ns uint64) string {
			return time.Duration(ns).String()
		},
	}

	tmpl, err := template.New("report").Funcs(fm).Parse(reportTemplate)
	if err != nil {
		return err
	}

	return tmpl.Execute(w, r)
}
