package script_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/plus3/componentload/ecs"
	"github.com/plus3/componentload/lifecycle"
	"github.com/plus3/componentload/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const hooks = `
unloaded = 0

function greet(args)
  return { greeting = "hello " .. args.name, entity = args.entity }
end

function farewell(args)
  unloaded = unloaded + 1
end

function broken(args)
  error("boom")
end

function count_unloads(args)
  return { n = unloaded }
end
`

func newEngine(t *testing.T) *script.Engine {
	t.Helper()
	engine := script.NewEngine(zap.NewNop())
	t.Cleanup(engine.Close)
	require.NoError(t, engine.LoadString("hooks", hooks))
	return engine
}

func TestEngineCall(t *testing.T) {
	engine := newEngine(t)

	out, err := engine.Call("greet", map[string]string{"name": "world", "entity": "7"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"greeting": "hello world", "entity": "7"}, out)

	out, err = engine.Call("farewell", nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	_, err = engine.Call("broken", nil)
	assert.Error(t, err)

	_, err = engine.Call("missing", nil)
	assert.Error(t, err)

	assert.True(t, engine.Has("greet"))
	assert.False(t, engine.Has("unloaded"))
}

func TestEngineLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`base = 40`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"), []byte(`function answer(args) return { v = base + 2 } end`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`not lua`), 0o644))

	engine := script.NewEngine(nil)
	defer engine.Close()

	require.NoError(t, engine.LoadDir(dir))
	out, err := engine.Call("answer", nil)
	require.NoError(t, err)
	assert.Equal(t, "42", out["v"])

	assert.NoError(t, engine.LoadDir(filepath.Join(dir, "missing")))
	assert.Error(t, engine.LoadString("bad", "this is not lua"))
}

func TestHookLifecycle(t *testing.T) {
	engine := newEngine(t)

	components := ecs.NewComponentRegistry()
	registry := lifecycle.NewRegistry(components)
	lifecycle.MustRegister[script.Hook](registry, lifecycle.Exclusive)

	storage := ecs.NewStorage(components)
	storage.AddSingleton(script.Runtime{Engine: engine})
	scheduler := ecs.NewScheduler(storage)
	require.NoError(t, registry.Install(scheduler, lifecycle.Resources{}))

	id := storage.Spawn(script.Hook{
		OnLoad:   "greet",
		OnUnload: "farewell",
		Vars:     map[string]string{"name": "lua"},
	}, lifecycle.Active{})
	scheduler.Once(0)

	hook := ecs.ReadComponent[script.Hook](storage, id)
	require.NotNil(t, hook)
	assert.Equal(t, "hello lua", hook.Vars["greeting"])
	assert.Equal(t, strconv.FormatUint(uint64(id), 10), hook.Vars["entity"])

	lifecycle.Deactivate(storage, id)
	scheduler.Once(0)

	hook = ecs.ReadComponent[script.Hook](storage, id)
	assert.Nil(t, hook.Vars)

	out, err := engine.Call("count_unloads", nil)
	require.NoError(t, err)
	assert.Equal(t, "1", out["n"])
}

func TestHookFailures(t *testing.T) {
	components := ecs.NewComponentRegistry()
	storage := ecs.NewStorage(components)

	hook := &script.Hook{OnLoad: "greet"}
	assert.ErrorIs(t, hook.Load(storage, 1, &lifecycle.Resources{}), script.ErrNoRuntime)

	storage.AddSingleton(script.Runtime{Engine: newEngine(t)})

	hook = &script.Hook{OnLoad: "broken", Vars: map[string]string{"keep": "me"}}
	assert.Error(t, hook.Load(storage, 1, &lifecycle.Resources{}))
	assert.Equal(t, "me", hook.Vars["keep"])

	hook = &script.Hook{OnUnload: "broken", Vars: map[string]string{"keep": "me"}}
	assert.NotPanics(t, func() { hook.Unload(storage, 1) })
	assert.Nil(t, hook.Vars)

	empty := &script.Hook{}
	assert.NoError(t, empty.Load(storage, 1, &lifecycle.Resources{}))
}
