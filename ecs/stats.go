package ecs

import "sort"

// StorageStats is a snapshot of how many entities, archetypes and singletons a Storage holds.
type StorageStats struct {
	ArchetypeCount     int
	TotalEntityCount   int
	SingletonCount     int
	PendingChanges     int
	ArchetypeBreakdown []ArchetypeStats
	SingletonTypes     []string
}

// ArchetypeStats describes one archetype in a StorageStats snapshot.
type ArchetypeStats struct {
	ID             uint64
	ComponentTypes []string
	EntityCount    int
}

// CollectStats gathers a StorageStats snapshot.
func (s *Storage) CollectStats() StorageStats {
	stats := StorageStats{
		ArchetypeCount:     len(s.archetypes),
		TotalEntityCount:   s.entities.count(),
		SingletonCount:     len(s.singletons),
		ArchetypeBreakdown: make([]ArchetypeStats, 0, len(s.archetypes)),
		SingletonTypes:     make([]string, 0, len(s.singletons)),
	}

	for _, archetype := range s.archetypes {
		names := make([]string, len(archetype.types))
		for i, t := range archetype.types {
			names[i] = t.String()
		}
		stats.ArchetypeBreakdown = append(stats.ArchetypeBreakdown, ArchetypeStats{
			ID:             archetype.id,
			ComponentTypes: names,
			EntityCount:    archetype.Len(),
		})
	}
	sort.Slice(stats.ArchetypeBreakdown, func(i, j int) bool {
		return stats.ArchetypeBreakdown[i].EntityCount > stats.ArchetypeBreakdown[j].EntityCount
	})

	for t := range s.singletons {
		stats.SingletonTypes = append(stats.SingletonTypes, t.String())
	}
	sort.Strings(stats.SingletonTypes)

	for _, l := range s.changes.logs {
		stats.PendingChanges += len(l.added) + len(l.removed)
	}

	return stats
}
