package lifecycle

import (
	"github.com/plus3/componentload/ecs"
	"go.uber.org/zap"
)

// immediateDispatcher calls Loadable callbacks on the stored component in place.
type immediateDispatcher[T any] struct {
	owner *Registry
	reg   *registration
}

func (d *immediateDispatcher[T]) dispatch(frame *ecs.UpdateFrame, t Transitions) {
	storage := frame.Storage

	for id := range t.Unload.All() {
		comp := ecs.ReadComponent[T](storage, id)
		if comp == nil {
			d.reg.counters.skipped.Add(1)
			continue
		}
		any(comp).(Loadable).Unload()
		d.reg.counters.unloads.Add(1)
	}

	for id := range t.Load.All() {
		comp := ecs.ReadComponent[T](storage, id)
		if comp == nil {
			d.reg.counters.skipped.Add(1)
			continue
		}
		if err := any(comp).(Loadable).Load(d.owner.resources); err != nil {
			d.reg.counters.failures.Add(1)
			d.owner.logger.Error("component load failed",
				zap.String("component", d.reg.name),
				zap.Uint64("entity", uint64(id)),
				zap.Uint64("tick", frame.Tick),
				zap.Error(err),
			)
			continue
		}
		d.reg.counters.loads.Add(1)
	}
}
