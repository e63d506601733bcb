package requisition

import (
	"reflect"
	"testing"

	"github.com/juju/errors"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	open := DocumentOpenData{
		PageID:     "page-1",
		Connection: &ConnectionDetails{ID: 4, DBType: "MySQL", Caption: "prod"},
		DocumentDetails: DocumentDetails{
			ID:       "doc-1",
			Type:     "notebook",
			Language: "mysql",
			Caption:  "Notebook 1",
		},
	}

	env, err := NewEnvelope("app", DocumentOpened.Name(), open)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	data, err := env.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	parsed, err := ParseEnvelope(data)
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if parsed.Source != "app" || parsed.RequestType != "documentOpened" {
		t.Errorf("unexpected envelope header %+v", parsed)
	}

	payload, err := parsed.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if !reflect.DeepEqual(payload, open) {
		t.Errorf("payload mismatch:\n got  %#v\n want %#v", payload, open)
	}
}

func TestEnvelope_WireShape(t *testing.T) {
	env, err := NewEnvelope("", ShowError.Name(), "disk full")
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	data, err := env.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"requestType":"showError","parameter":"disk full"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestNewEnvelope_Rejects(t *testing.T) {
	_, err := NewEnvelope("host", Proxy.Name(), ProxyRequest{})
	if !errors.Is(err, errors.NotValid) {
		t.Errorf("expected NotValid for host-local kind, got %v", err)
	}

	_, err = NewEnvelope("host", "bogus", nil)
	if !errors.Is(err, errors.NotFound) {
		t.Errorf("expected NotFound for unknown kind, got %v", err)
	}
}

func TestParseEnvelope_Invalid(t *testing.T) {
	tests := []string{
		`not json`,
		`{"parameter":1}`,
		`[]`,
	}

	for _, input := range tests {
		if _, err := ParseEnvelope([]byte(input)); !errors.Is(err, errors.NotValid) {
			t.Errorf("ParseEnvelope(%s): expected NotValid, got %v", input, err)
		}
	}
}
