// Package script runs Lua scripts that subscribe to and execute
// requisitions on a hub.
//
// Scripts see a global requisitions module:
//
//	requisitions.on(name, fn)          -- subscribe; returns an id
//	requisitions.off(id)               -- unsubscribe; returns true if it was live
//	requisitions.execute(name, value)  -- execute on the hub
//	requisitions.log(msg [, level])    -- write to the log
//
// Payloads cross as Lua values built from their JSON form. A handler marks
// a requisition handled by returning true.
//
// The Lua state is not goroutine-safe, so every entry into it holds the
// engine lock. Executes made from Lua are queued and run once the script
// chunk or handler that made them returns, after the lock is released.
package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/reqhub/internal/hub"
	"github.com/dshills/reqhub/internal/requisition"
)

var logger = loggo.GetLogger("reqhub.script")

// ErrClosed is returned after the engine has been closed.
const ErrClosed = errors.ConstError("script engine closed")

// ModuleName is the global the requisitions API is installed as.
const ModuleName = "requisitions"

type queued struct {
	name    requisition.Name
	payload any
}

// Engine is a sandboxed Lua state bound to a hub.
type Engine struct {
	hub   *hub.Hub
	scope *hub.Scope
	name  string

	mu     sync.Mutex
	L      *lua.LState
	subs   map[string]*hub.Subscription
	queue  []queued
	closed bool
}

// NewEngine creates an engine whose subscriptions are made on h. The name
// prefixes log messages written by scripts.
func NewEngine(h *hub.Hub, name string) *Engine {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	e := &Engine{
		hub:   h,
		scope: h.NewScope(),
		name:  name,
		L:     L,
		subs:  make(map[string]*hub.Subscription),
	}
	e.install()
	return e
}

// openSafeLibraries opens the libraries that cannot reach the file system
// or the process.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func (e *Engine) install() {
	mod := e.L.SetFuncs(e.L.NewTable(), map[string]lua.LGFunction{
		"on":      e.on,
		"off":     e.off,
		"execute": e.execute,
		"log":     e.log,
	})
	e.L.SetGlobal(ModuleName, mod)
	e.L.SetGlobal("print", e.L.NewFunction(e.print))
}

// DoString runs a chunk of Lua.
func (e *Engine) DoString(ctx context.Context, code string) error {
	return e.run(ctx, func(L *lua.LState) error {
		return L.DoString(code)
	})
}

// DoFile runs a Lua file.
func (e *Engine) DoFile(ctx context.Context, path string) error {
	err := e.run(ctx, func(L *lua.LState) error {
		return L.DoFile(path)
	})
	return errors.Annotatef(err, "running %s", filepath.Base(path))
}

// LoadDir runs every .lua file in dir in lexical order.
func (e *Engine) LoadDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errors.Trace(err)
	}
	n := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		if err := e.DoFile(ctx, filepath.Join(dir, entry.Name())); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Subscriptions returns the number of live subscriptions made by scripts.
func (e *Engine) Subscriptions() int {
	return e.scope.Len()
}

// Close unregisters every subscription and releases the Lua state. Later
// calls do nothing.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	e.scope.Close()
	e.subs = nil
	e.queue = nil
	e.L.Close()
}

// run enters the Lua state with fn, then executes whatever the script
// queued.
func (e *Engine) run(ctx context.Context, fn func(L *lua.LState) error) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	err := e.call(ctx, fn)
	pending := e.queue
	e.queue = nil
	e.mu.Unlock()

	for _, q := range pending {
		if !e.hub.Execute(ctx, q.name, q.payload) {
			logger.Debugf("%s: %s not handled", e.name, q.name)
		}
	}
	return err
}

func (e *Engine) call(ctx context.Context, fn func(L *lua.LState) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("lua panic: %v", r)
		}
	}()
	if ctx != nil && ctx.Done() != nil {
		e.L.SetContext(ctx)
		defer e.L.RemoveContext()
	}
	return fn(e.L)
}

// handler adapts a Lua function to a hub handler.
func (e *Engine) handler(fn *lua.LFunction) hub.HandlerFunc {
	return func(ctx context.Context, payload any) (bool, error) {
		var handled bool
		err := e.run(ctx, func(L *lua.LState) error {
			arg, err := toLua(L, payload)
			if err != nil {
				return errors.Trace(err)
			}
			top := L.GetTop()
			defer L.SetTop(top)
			L.Push(fn)
			L.Push(arg)
			if err := L.PCall(1, 1, nil); err != nil {
				return err
			}
			handled = lua.LVAsBool(L.Get(-1))
			return nil
		})
		return handled, err
	}
}

// on(name, fn) -> id
func (e *Engine) on(L *lua.LState) int {
	name := requisition.Name(L.CheckString(1))
	fn := L.CheckFunction(2)
	if !requisition.Known(name) {
		L.ArgError(1, fmt.Sprintf("unknown requisition %q", name))
		return 0
	}

	sub, err := e.scope.Register(name, e.handler(fn))
	if err != nil {
		L.RaiseError("on: %v", err)
		return 0
	}
	e.subs[sub.ID()] = sub
	logger.Debugf("%s: subscribed to %s", e.name, name)
	L.Push(lua.LString(sub.ID()))
	return 1
}

// off(id) -> bool
func (e *Engine) off(L *lua.LState) int {
	id := L.CheckString(1)
	sub, ok := e.subs[id]
	if ok {
		delete(e.subs, id)
		ok = e.scope.Unregister(sub)
	}
	L.Push(lua.LBool(ok))
	return 1
}

// execute(name, value) -> bool
//
// Returns true once the requisition is queued. Whether it was handled is
// not known to the script.
func (e *Engine) execute(L *lua.LState) int {
	name := requisition.Name(L.CheckString(1))
	if !requisition.Known(name) {
		L.ArgError(1, fmt.Sprintf("unknown requisition %q", name))
		return 0
	}
	payload, err := fromLua(name, L.Get(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}
	e.queue = append(e.queue, queued{name: name, payload: payload})
	L.Push(lua.LTrue)
	return 1
}

// log(msg [, level])
func (e *Engine) log(L *lua.LState) int {
	msg := L.CheckString(1)
	level, ok := loggo.ParseLevel(L.OptString(2, "info"))
	if !ok {
		level = loggo.INFO
	}
	logger.Logf(level, "%s: %s", e.name, msg)
	return 0
}

func (e *Engine) print(L *lua.LState) int {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	logger.Infof("%s: %s", e.name, strings.Join(parts, "\t"))
	return 0
}
