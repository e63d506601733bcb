package requisition

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/juju/errors"
)

func TestKind_Name(t *testing.T) {
	if ShowError.Name() != "showError" {
		t.Errorf("expected showError, got %q", ShowError.Name())
	}
	if ConnectionAdded.String() != "connectionAdded" {
		t.Errorf("expected connectionAdded, got %q", ConnectionAdded.String())
	}
}

func TestKnownAndRemotable(t *testing.T) {
	tests := []struct {
		name      Name
		known     bool
		remotable bool
	}{
		{"showError", true, true},
		{"job", true, true},
		{"proxyRequest", true, false},
		{"noSuchThing", false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			if got := Known(tt.name); got != tt.known {
				t.Errorf("Known(%q) = %v, want %v", tt.name, got, tt.known)
			}
			if got := Remotable(tt.name); got != tt.remotable {
				t.Errorf("Remotable(%q) = %v, want %v", tt.name, got, tt.remotable)
			}
		})
	}
}

func TestNames_Sorted(t *testing.T) {
	names := Names()
	if len(names) == 0 {
		t.Fatal("expected a non-empty catalog")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names not sorted at %d: %q >= %q", i, names[i-1], names[i])
		}
	}
}

func TestPayloadType(t *testing.T) {
	typ, ok := PayloadType(UpdateStatusBar.Name())
	if !ok {
		t.Fatal("expected updateStatusBarItem to be known")
	}
	if typ != reflect.TypeOf(UpdateStatusBarItem{}) {
		t.Errorf("unexpected payload type %s", typ)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    Name
		raw     string
		want    any
		wantErr bool
	}{
		{"showError", `"disk full"`, "disk full", false},
		{"socketStateChanged", `true`, true, false},
		{"removeConnection", `7`, 7, false},
		{"connectionAdded", `{"id":1}`, ConnectionDetails{ID: 1}, false},
		{"showFatalError", `["a","b"]`, []string{"a", "b"}, false},
		{"applicationDidStart", ``, Empty{}, false},
		{"showInfo", `null`, "", false},
		{"socketStateChanged", `"yes"`, nil, true},
		{"proxyRequest", `{}`, nil, true},
		{"unknown", `{}`, nil, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			got, err := Decode(tt.name, json.RawMessage(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %#v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode(%q) = %#v, want %#v", tt.name, got, tt.want)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode("unknown", nil)
	if !errors.Is(err, errors.NotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}

	_, err = Decode(Proxy.Name(), nil)
	if !errors.Is(err, errors.NotValid) {
		t.Errorf("expected NotValid, got %v", err)
	}
}

func TestDecode_NilPointerPayload(t *testing.T) {
	got, err := Decode(SettingsChanged.Name(), json.RawMessage(`null`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, ok := got.(*SettingEntry)
	if !ok {
		t.Fatalf("expected *SettingEntry, got %T", got)
	}
	if entry != nil {
		t.Errorf("expected nil entry, got %#v", entry)
	}

	got, err = Decode(SettingsChanged.Name(), json.RawMessage(`{"key":"editor.fontSize","value":14}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry = got.(*SettingEntry)
	if entry.Key != "editor.fontSize" || entry.Value != float64(14) {
		t.Errorf("unexpected entry %#v", entry)
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize(ShowError.Name(), "boom")
	if err != nil || got != "boom" {
		t.Errorf("Normalize = %v, %v", got, err)
	}

	got, err = Normalize(ApplicationDidStart.Name(), nil)
	if err != nil || got != (Empty{}) {
		t.Errorf("Normalize(nil) = %#v, %v", got, err)
	}

	got, err = Normalize(ConnectionAdded.Name(), json.RawMessage(`{"id":3,"caption":"local"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, ConnectionDetails{ID: 3, Caption: "local"}) {
		t.Errorf("unexpected payload %#v", got)
	}

	_, err = Normalize(ShowError.Name(), 42)
	if !errors.Is(err, errors.NotValid) {
		t.Errorf("expected NotValid for wrong payload type, got %v", err)
	}

	_, err = Normalize("unknown", "x")
	if !errors.Is(err, errors.NotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestProfileID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		raw     string
		want    ProfileID
		wantErr bool
	}{
		{`"default"`, "default", false},
		{`12`, "12", false},
		{`1.5`, "", true},
		{`{}`, "", true},
	}

	for _, tt := range tests {
		var id ProfileID
		err := json.Unmarshal([]byte(tt.raw), &id)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.raw, err)
			continue
		}
		if id != tt.want {
			t.Errorf("%s: got %q, want %q", tt.raw, id, tt.want)
		}
	}
}

func TestNewJobEntry(t *testing.T) {
	entry, err := NewJobEntry(ShowInfo, "ready")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.RequestType != "showInfo" {
		t.Errorf("unexpected request type %q", entry.RequestType)
	}
	if string(entry.Parameter) != `"ready"` {
		t.Errorf("unexpected parameter %s", entry.Parameter)
	}
}
