package lifecycle

import "sync/atomic"

// counters are written on the scheduler goroutine and may be read from others.
type counters struct {
	loads    atomic.Int64
	failures atomic.Int64
	unloads  atomic.Int64
	skipped  atomic.Int64
	batches  atomic.Int64
}

// TypeStats summarises the dispatch history of one registered component type.
type TypeStats struct {
	Name     string
	Mode     Mode
	Loads    int64 // successful Load calls
	Failures int64 // Load calls that returned an error
	Unloads  int64
	Skipped  int64 // entities gone or missing the component when their turn came
	Batches  int64 // exclusive batch commands applied
}

// Stats returns a snapshot per registered type, in registration order.
func (r *Registry) Stats() []TypeStats {
	stats := make([]TypeStats, len(r.entries))
	for i, reg := range r.entries {
		stats[i] = TypeStats{
			Name:     reg.name,
			Mode:     reg.mode,
			Loads:    reg.counters.loads.Load(),
			Failures: reg.counters.failures.Load(),
			Unloads:  reg.counters.unloads.Load(),
			Skipped:  reg.counters.skipped.Load(),
			Batches:  reg.counters.batches.Load(),
		}
	}
	return stats
}
