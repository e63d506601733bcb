package loader

import (
	"io/fs"
	"reflect"
	"strings"
	"testing"

	"github.com/juju/errors"
)

type memFS map[string]string

func (m memFS) ReadFile(path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(data), nil
}

func TestTOMLLoader_Load(t *testing.T) {
	files := memFS{"/reqhub.toml": `
[server]
addr = ":9000"

[shell]
gracePeriod = "5s"

[settings.editor]
fontSize = 14
`}

	config, err := NewTOMLLoaderWithFS(files, "/reqhub.toml").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if v, _ := GetByPath(config, "server.addr"); v != ":9000" {
		t.Errorf("server.addr = %v, want :9000", v)
	}
	if v, _ := GetByPath(config, "shell.gracePeriod"); v != "5s" {
		t.Errorf("shell.gracePeriod = %v, want 5s", v)
	}
	if v, _ := GetByPath(config, "settings.editor.fontSize"); v != int64(14) {
		t.Errorf("settings.editor.fontSize = %v (%T), want 14", v, v)
	}
}

func TestTOMLLoader_Missing(t *testing.T) {
	for _, path := range []string{"", "/absent.toml"} {
		config, err := NewTOMLLoaderWithFS(memFS{}, path).Load()
		if err != nil || config != nil {
			t.Errorf("Load(%q) = %v, %v; want nil, nil", path, config, err)
		}
	}
}

func TestTOMLLoader_ParseError(t *testing.T) {
	files := memFS{"/bad.toml": "[server\naddr = 1\n"}
	_, err := NewTOMLLoaderWithFS(files, "/bad.toml").Load()
	if err == nil {
		t.Fatal("Load() error = nil")
	}
	if !errors.Is(err, errors.NotValid) {
		t.Errorf("Load() error = %v, want not valid", err)
	}
	if !strings.Contains(err.Error(), "/bad.toml") {
		t.Errorf("Load() error = %v, want it to name the file", err)
	}
}

func TestLoadFromReader(t *testing.T) {
	config, err := LoadFromReader(strings.NewReader(`log = { level = "DEBUG" }`))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if v, _ := GetByPath(config, "log.level"); v != "DEBUG" {
		t.Errorf("log.level = %v, want DEBUG", v)
	}
}

func TestEnvLoader_Load(t *testing.T) {
	env := []string{
		"REQHUB_LOG=<root>=DEBUG",
		"REQHUB_SHELL_GRACE_PERIOD=2s",
		"REQHUB_TRAFFIC_LIMIT=50",
		"REQHUB_TRAFFIC_ENABLED=yes",
		"REQHUB_SETTINGS_THEME=dark",
		"REQHUB_=ignored",
		"HOME=/root",
		"REQHUB_EMPTY=",
	}
	config, err := NewEnvLoaderFrom(Prefix, env).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := map[string]any{
		"log.level":         "<root>=DEBUG",
		"shell.gracePeriod": "2s",
		"traffic.limit":     int64(50),
		"traffic.enabled":   true,
		"settings.theme":    "dark",
		"empty":             "",
	}
	if got := Flatten(config); !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %v, want %v", got, want)
	}
}

func TestEnvLoader_RestrictSections(t *testing.T) {
	l := NewEnvLoaderFrom(Prefix, []string{
		"REQHUB_CONFIG=/etc/reqhub.toml",
		"REQHUB_SHELL_URL=ws://localhost/ws1.ws",
		"REQHUB_LOG=<root>=DEBUG",
		"REQHUB_STATUSBAR_TERMINAL=on",
	})
	l.AddMapping("REQHUB_STATUSBAR_TERMINAL", "statusBar.terminal")
	l.RestrictSections("shell", "statusBar")

	config, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := map[string]any{
		"shell.url":          "ws://localhost/ws1.ws",
		"log.level":          "<root>=DEBUG",
		"statusBar.terminal": true,
	}
	if got := Flatten(config); !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %v, want %v", got, want)
	}
}

func TestEnvLoader_envToPath(t *testing.T) {
	l := NewEnvLoader(Prefix)
	tests := []struct {
		env  string
		want string
	}{
		{"REQHUB_SHELL_URL", "shell.url"},
		{"REQHUB_SHELL_MAX_RETRY_DELAY", "shell.maxRetryDelay"},
		{"REQHUB_HUB", "hub"},
		{"REQHUB_", ""},
	}
	for _, tt := range tests {
		if got := l.envToPath(tt.env); got != tt.want {
			t.Errorf("envToPath(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", ""},
		{"true", true},
		{"Off", false},
		{"42", int64(42)},
		{"1.5", 1.5},
		{"10s", "10s"},
		{`["a"]`, []any{"a"}},
		{"[broken", "[broken"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := parseValue(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseValue(%q) = %v (%T), want %v", tt.in, got, got, tt.want)
		}
	}
}

func TestLoad_Precedence(t *testing.T) {
	files := memFS{"/reqhub.toml": `
[server]
addr = ":9000"
metricsPath = "/m"
`}
	config, err := Load(
		NewTOMLLoaderWithFS(files, "/reqhub.toml"),
		NewEnvLoaderFrom(Prefix, []string{"REQHUB_ADDR=:7000"}),
	)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := map[string]any{"server.addr": ":7000", "server.metricsPath": "/m"}
	if got := Flatten(config); !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %v, want %v", got, want)
	}
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{
		"a": map[string]any{"x": 1, "y": 2},
		"b": "keep",
		"c": map[string]any{"z": 1},
	}
	src := map[string]any{
		"a": map[string]any{"y": 3},
		"c": "replaced",
		"d": []any{map[string]any{"k": "v"}},
	}
	got := DeepMerge(dst, src)
	want := map[string]any{
		"a": map[string]any{"x": 1, "y": 3},
		"b": "keep",
		"c": "replaced",
		"d": []any{map[string]any{"k": "v"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DeepMerge() = %v, want %v", got, want)
	}

	// The merged copy does not alias src.
	src["d"].([]any)[0].(map[string]any)["k"] = "changed"
	if v, _ := GetByPath(got["d"].([]any)[0].(map[string]any), "k"); v != "v" {
		t.Errorf("merged value changed with src: %v", v)
	}
}

func TestFlatten(t *testing.T) {
	data := map[string]any{
		"editor": map[string]any{"font": map[string]any{"size": 14}, "wrap": true},
		"empty":  map[string]any{},
		"list":   []any{1, 2},
	}
	want := map[string]any{
		"editor.font.size": 14,
		"editor.wrap":      true,
		"empty":            map[string]any{},
		"list":             []any{1, 2},
	}
	if got := Flatten(data); !reflect.DeepEqual(got, want) {
		t.Errorf("Flatten() = %v, want %v", got, want)
	}
}
