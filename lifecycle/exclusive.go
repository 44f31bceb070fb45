package lifecycle

import (
	"github.com/plus3/componentload/ecs"
	"go.uber.org/zap"
)

type batchOp int

const (
	opUnload batchOp = iota
	opLoad
)

func (op batchOp) String() string {
	if op == opLoad {
		return "load"
	}
	return "unload"
}

// batchCommand runs ExclusiveLoadable callbacks for a set of entities once the
// command buffer is flushed. Each value is copied out, handed to the callback with
// the full storage, and written back if the entity still carries the component.
type batchCommand[T any] struct {
	op       batchOp
	entities []ecs.EntityId
	owner    *Registry
	reg      *registration
	tick     uint64
}

func (c *batchCommand[T]) Apply(storage *ecs.Storage) {
	c.reg.counters.batches.Add(1)

	for _, id := range c.entities {
		current := ecs.ReadComponent[T](storage, id)
		if current == nil {
			c.skip(id, "component missing before callback")
			continue
		}

		value := *current
		comp := any(&value).(ExclusiveLoadable)

		switch c.op {
		case opUnload:
			comp.Unload(storage, id)
			c.reg.counters.unloads.Add(1)
		case opLoad:
			if err := comp.Load(storage, id, c.owner.resources); err != nil {
				c.reg.counters.failures.Add(1)
				c.owner.logger.Error("component load failed",
					zap.String("component", c.reg.name),
					zap.Uint64("entity", uint64(id)),
					zap.Uint64("tick", c.tick),
					zap.Error(err),
				)
			} else {
				c.reg.counters.loads.Add(1)
			}
		}

		// The callback may have despawned the entity or removed the component.
		if !storage.HasComponent(id, c.reg.compType) {
			c.skip(id, "component gone after callback")
			continue
		}
		storage.SetComponent(id, &value)
	}
}

func (c *batchCommand[T]) skip(id ecs.EntityId, reason string) {
	c.reg.counters.skipped.Add(1)
	c.owner.logger.Debug("skipped write-back",
		zap.String("component", c.reg.name),
		zap.Stringer("op", c.op),
		zap.Uint64("entity", uint64(id)),
		zap.String("reason", reason),
	)
}

// exclusiveDispatcher queues one unload batch and one load batch per tick.
type exclusiveDispatcher[T any] struct {
	owner *Registry
	reg   *registration
}

func (d *exclusiveDispatcher[T]) dispatch(frame *ecs.UpdateFrame, t Transitions) {
	if n := t.Unload.Len(); n > 0 {
		frame.Commands.Queue(d.batch(opUnload, n, t, frame.Tick))
	}
	if n := t.Load.Len(); n > 0 {
		frame.Commands.Queue(d.batch(opLoad, n, t, frame.Tick))
	}
}

func (d *exclusiveDispatcher[T]) batch(op batchOp, n int, t Transitions, tick uint64) *batchCommand[T] {
	set := t.Load
	if op == opUnload {
		set = t.Unload
	}

	entities := make([]ecs.EntityId, 0, n)
	for id := range set.All() {
		entities = append(entities, id)
	}

	return &batchCommand[T]{
		op:       op,
		entities: entities,
		owner:    d.owner,
		reg:      d.reg,
		tick:     tick,
	}
}
