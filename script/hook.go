package script

import (
	"errors"
	"maps"
	"strconv"

	"github.com/plus3/componentload/ecs"
	"github.com/plus3/componentload/lifecycle"
	"go.uber.org/zap"
)

// ErrNoRuntime is returned by Hook.Load when the storage has no Runtime singleton.
var ErrNoRuntime = errors.New("script: no Runtime singleton in storage")

// Runtime is the singleton that makes an Engine reachable from hooks.
type Runtime struct {
	Engine *Engine
}

// Hook calls Lua functions when its entity is activated or deactivated.
// Register it in lifecycle.Exclusive mode.
type Hook struct {
	OnLoad   string
	OnUnload string
	Vars     map[string]string
}

func (h *Hook) args(entity ecs.EntityId) map[string]string {
	args := make(map[string]string, len(h.Vars)+1)
	maps.Copy(args, h.Vars)
	args["entity"] = strconv.FormatUint(uint64(entity), 10)
	return args
}

// Load calls OnLoad with the entity id and Vars. A returned table replaces Vars.
func (h *Hook) Load(world *ecs.Storage, entity ecs.EntityId, res *lifecycle.Resources) error {
	if h.OnLoad == "" {
		return nil
	}

	rt, ok := ecs.LookupSingleton[Runtime](world)
	if !ok || rt.Engine == nil {
		return ErrNoRuntime
	}

	out, err := rt.Engine.Call(h.OnLoad, h.args(entity))
	if err != nil {
		return err
	}
	if out != nil {
		h.Vars = out
	}
	return nil
}

// Unload calls OnUnload and clears Vars. Script errors are logged.
func (h *Hook) Unload(world *ecs.Storage, entity ecs.EntityId) {
	defer func() { h.Vars = nil }()

	if h.OnUnload == "" {
		return
	}

	rt, ok := ecs.LookupSingleton[Runtime](world)
	if !ok || rt.Engine == nil {
		return
	}

	if _, err := rt.Engine.Call(h.OnUnload, h.args(entity)); err != nil {
		rt.Engine.Logger().Warn("unload hook failed",
			zap.String("fn", h.OnUnload),
			zap.Uint64("entity", uint64(entity)),
			zap.Error(err),
		)
	}
}
