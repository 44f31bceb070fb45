package debugui

import (
	"github.com/plus3/componentload/ecs"
	"github.com/plus3/componentload/lifecycle"
)

type PerformanceStatsComponent struct {
	historyFrames int
	frameHistory  []float32
	frameIndex    int
}

type LifecyclePanelComponent struct {
	registry   *lifecycle.Registry
	hideIdle   bool
	lastTotals map[string]int64
}

type EntityBrowserComponent struct {
	registry *lifecycle.Registry
	active   *ecs.ChangeReader

	rows           []entityRow
	lastArchetypes int
	lastEntities   int
	sortColumn     int
	sortAscending  bool

	filterText         string
	activeOnly         bool
	selected           ecs.EntityId
	maxEntitiesPerPage int
	currentPage        int
}

type ComponentInspectorComponent struct {
	registry *lifecycle.Registry
}
