package script

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/juju/errors"

	"github.com/dshills/reqhub/internal/hub"
	"github.com/dshills/reqhub/internal/requisition"
)

type inbox[P any] struct {
	mu    sync.Mutex
	items []P
}

func (b *inbox[P]) add(_ context.Context, p P) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, p)
	return true, nil
}

func (b *inbox[P]) all() []P {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]P(nil), b.items...)
}

func listen[P any](t *testing.T, h *hub.Hub, k requisition.Kind[P]) *inbox[P] {
	t.Helper()
	b := &inbox[P]{}
	if _, err := hub.On(h, k, b.add); err != nil {
		t.Fatalf("On(%s) error = %v", k, err)
	}
	return b
}

func newEngine(t *testing.T) (*hub.Hub, *Engine) {
	t.Helper()
	h := hub.New()
	e := NewEngine(h, "test")
	t.Cleanup(e.Close)
	return h, e
}

func TestEngine_HandlerExecutes(t *testing.T) {
	h, e := newEngine(t)
	warnings := listen(t, h, requisition.ShowWarning)

	err := e.DoString(context.Background(), `
		requisitions.on("showInfo", function(msg)
			requisitions.execute("showWarning", "got " .. msg)
			return true
		end)
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if e.Subscriptions() != 1 {
		t.Fatalf("Subscriptions() = %d, want 1", e.Subscriptions())
	}

	if !hub.Execute(context.Background(), h, requisition.ShowInfo, "hi") {
		t.Error("Execute(showInfo) = false, want true")
	}
	if got := warnings.all(); !reflect.DeepEqual(got, []string{"got hi"}) {
		t.Errorf("warnings = %q, want [got hi]", got)
	}
}

func TestEngine_HandlerResult(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"true", "return true", true},
		{"false", "return false", false},
		{"nothing", "", false},
		{"truthy", "return 1", true},
		{"error", `error("boom")`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, e := newEngine(t)
			code := `requisitions.on("showInfo", function(msg) ` + tt.body + ` end)`
			if err := e.DoString(context.Background(), code); err != nil {
				t.Fatalf("DoString() error = %v", err)
			}
			if got := hub.Execute(context.Background(), h, requisition.ShowInfo, "x"); got != tt.want {
				t.Errorf("Execute() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngine_TablePayloads(t *testing.T) {
	h, e := newEngine(t)
	infos := listen(t, h, requisition.ShowInfo)
	fatals := listen(t, h, requisition.ShowFatalError)
	settings := listen(t, h, requisition.SettingsChanged)

	err := e.DoString(context.Background(), `
		requisitions.on("updateStatusBarItem", function(item)
			requisitions.execute("showInfo", item.id .. ":" .. item.state .. ":" .. item.text)
			return true
		end)
		requisitions.execute("showFatalError", {"first", "second"})
		requisitions.execute("showFatalError", {})
		requisitions.execute("settingsChanged", {key = "editor.fontSize", value = 14})
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	text := "connected"
	item := requisition.UpdateStatusBarItem{ID: "conn", State: requisition.StatusBarShow, Text: &text}
	if !hub.Execute(context.Background(), h, requisition.UpdateStatusBar, item) {
		t.Fatal("Execute(updateStatusBarItem) = false, want true")
	}

	if got := infos.all(); !reflect.DeepEqual(got, []string{"conn:show:connected"}) {
		t.Errorf("infos = %q, want [conn:show:connected]", got)
	}
	if got := fatals.all(); !reflect.DeepEqual(got, [][]string{{"first", "second"}, nil}) {
		t.Errorf("fatals = %q", got)
	}
	got := settings.all()
	if len(got) != 1 || got[0] == nil {
		t.Fatalf("settings = %v, want one entry", got)
	}
	if got[0].Key != "editor.fontSize" || got[0].Value != 14.0 {
		t.Errorf("setting = %+v, want editor.fontSize=14", *got[0])
	}
}

func TestEngine_ExecuteRunsAfterChunk(t *testing.T) {
	h, e := newEngine(t)
	infos := listen(t, h, requisition.ShowInfo)

	// The subscriber is registered after the execute in the same chunk,
	// and still sees it.
	err := e.DoString(context.Background(), `
		requisitions.execute("showWarning", "early")
		requisitions.on("showWarning", function(msg)
			requisitions.execute("showInfo", "saw " .. msg)
			return true
		end)
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if got := infos.all(); !reflect.DeepEqual(got, []string{"saw early"}) {
		t.Errorf("infos = %q, want [saw early]", got)
	}
}

func TestEngine_Off(t *testing.T) {
	h, e := newEngine(t)
	err := e.DoString(context.Background(), `
		id = requisitions.on("showInfo", function() return true end)
		first = requisitions.off(id)
		second = requisitions.off(id)
		if not first or second then error("unexpected off results") end
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if e.Subscriptions() != 0 {
		t.Errorf("Subscriptions() = %d, want 0", e.Subscriptions())
	}
	if hub.Execute(context.Background(), h, requisition.ShowInfo, "x") {
		t.Error("Execute() = true after off")
	}
}

func TestEngine_Errors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"unknown on", `requisitions.on("noSuchThing", function() end)`, "noSuchThing"},
		{"unknown execute", `requisitions.execute("noSuchThing", 1)`, "noSuchThing"},
		{"wrong payload", `requisitions.execute("showInfo", {1, 2})`, "showInfo"},
		{"host local", `requisitions.execute("proxyRequest", {})`, "proxyRequest"},
		{"missing handler", `requisitions.on("showInfo")`, "function expected"},
		{"syntax", `requisitions.on(`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, e := newEngine(t)
			err := e.DoString(context.Background(), tt.code)
			if err == nil {
				t.Fatal("DoString() error = nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("DoString() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestEngine_Sandbox(t *testing.T) {
	_, e := newEngine(t)
	err := e.DoString(context.Background(), `
		for _, name in ipairs({"io", "os", "debug", "package", "require", "dofile", "loadfile", "load", "loadstring"}) do
			if _G[name] ~= nil then error(name .. " is reachable") end
		end
		print("sandbox", string.upper("ok"), math.floor(1.5))
		requisitions.log("hello", "debug")
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
}

func TestEngine_Close(t *testing.T) {
	h, e := newEngine(t)
	if err := e.DoString(context.Background(), `requisitions.on("showInfo", function() return true end)`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if n := h.Registrations(requisition.ShowInfo.Name()); n != 1 {
		t.Fatalf("Registrations() = %d, want 1", n)
	}

	e.Close()
	e.Close()

	if n := h.Registrations(requisition.ShowInfo.Name()); n != 0 {
		t.Errorf("Registrations() after Close = %d, want 0", n)
	}
	if err := e.DoString(context.Background(), `x = 1`); !errors.Is(err, ErrClosed) {
		t.Errorf("DoString() after Close error = %v, want ErrClosed", err)
	}
}

func TestEngine_CancelledContext(t *testing.T) {
	_, e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.DoString(ctx, `while true do end`); err == nil {
		t.Fatal("DoString() with cancelled context error = nil")
	}
	// The state stays usable.
	if err := e.DoString(context.Background(), `x = 1`); err != nil {
		t.Errorf("DoString() error = %v", err)
	}
}

func TestEngine_LoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b.lua":      `requisitions.execute("showInfo", "b")`,
		"a.lua":      `requisitions.execute("showInfo", "a")`,
		"notes.txt":  `not lua`,
		"c.lua.orig": `error("ignored")`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	h, e := newEngine(t)
	infos := listen(t, h, requisition.ShowInfo)

	n, err := e.LoadDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if n != 2 {
		t.Errorf("LoadDir() = %d, want 2", n)
	}
	if got := infos.all(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("infos = %q, want [a b]", got)
	}
}
