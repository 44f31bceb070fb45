// Package script runs Lua load and unload hooks for entities.
package script

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM.
// Single-goroutine access only; hooks run from the scheduler's command flush.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua VM with the standard libraries opened.
func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}

	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	return &Engine{vm: vm, log: log}
}

// Logger returns the logger hooks report through.
func (e *Engine) Logger() *zap.Logger {
	return e.log
}

// LoadString runs a chunk of Lua source, typically a set of function definitions.
func (e *Engine) LoadString(name, source string) error {
	if err := e.vm.DoString(source); err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	e.log.Debug("loaded lua chunk", zap.String("name", name))
	return nil
}

// LoadDir runs every .lua file in dir in name order. A missing directory is not an error.
func (e *Engine) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Has reports whether a global function with the given name exists.
func (e *Engine) Has(fn string) bool {
	_, ok := e.vm.GetGlobal(fn).(*lua.LFunction)
	return ok
}

// Call invokes the global Lua function fn with a table built from args.
// If the function returns a table, its string-convertible entries are returned;
// any other return value yields nil.
func (e *Engine) Call(fn string, args map[string]string) (map[string]string, error) {
	f, ok := e.vm.GetGlobal(fn).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("lua function %s not found", fn)
	}

	t := e.vm.NewTable()
	for k, v := range args {
		t.RawSetString(k, lua.LString(v))
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      f,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		return nil, fmt.Errorf("lua %s: %w", fn, err)
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil, nil
	}

	out := make(map[string]string)
	rt.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok {
			return
		}
		switch v.Type() {
		case lua.LTString, lua.LTNumber, lua.LTBool:
			out[string(key)] = v.String()
		}
	})
	return out, nil
}

// Close shuts the VM down.
func (e *Engine) Close() {
	e.vm.Close()
}
