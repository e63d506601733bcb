package hub

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/errors"

	"github.com/dshills/reqhub/internal/requisition"
)

func TestHub_Job_RunsStepsInOrder(t *testing.T) {
	h := New()
	var order []string

	_, err := On(h, requisition.ShowInfo, func(_ context.Context, msg string) (bool, error) {
		order = append(order, "info:"+msg)
		return true, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = On(h, requisition.ConnectionAdded, func(_ context.Context, c requisition.ConnectionDetails) (bool, error) {
		order = append(order, "conn:"+c.Caption)
		return false, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	first, _ := requisition.NewJobEntry(requisition.ConnectionAdded, requisition.ConnectionDetails{ID: 1, Caption: "local"})
	second, _ := requisition.NewJobEntry(requisition.ShowInfo, "done")

	if !Execute(context.Background(), h, requisition.Job, []requisition.JobEntry{first, second}) {
		t.Error("job with a handled step should be handled")
	}
	if len(order) != 2 || order[0] != "conn:local" || order[1] != "info:done" {
		t.Errorf("unexpected order %v", order)
	}
}

func TestHub_Job_StepsEscalateIndividually(t *testing.T) {
	target := &fakeTarget{}
	h := New(WithRemoteTarget(target))

	a, _ := requisition.NewJobEntry(requisition.ShowInfo, "a")
	b, _ := requisition.NewJobEntry(requisition.ShowWarning, "b")

	if Execute(context.Background(), h, requisition.Job, []requisition.JobEntry{a, b}) {
		t.Error("nothing handled the steps")
	}
	if target.count() != 2 {
		t.Fatalf("expected one escalation per step, got %d", target.count())
	}
	if target.calls[0].Original.RequestType != "showInfo" || target.calls[1].Original.RequestType != "showWarning" {
		t.Errorf("unexpected escalations %+v", target.calls)
	}
}

func TestHub_Job_BadStepSkipped(t *testing.T) {
	h := New()
	var got []string
	_, err := On(h, requisition.ShowInfo, func(_ context.Context, msg string) (bool, error) {
		got = append(got, msg)
		return true, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	bad := requisition.JobEntry{RequestType: "showInfo", Parameter: []byte(`{"not":"a string"}`)}
	good, _ := requisition.NewJobEntry(requisition.ShowInfo, "after")

	Execute(context.Background(), h, requisition.Job, []requisition.JobEntry{bad, good})
	if len(got) != 1 || got[0] != "after" {
		t.Errorf("expected the bad step to be skipped, got %v", got)
	}
}

func TestLoadJob(t *testing.T) {
	input := `
job:
  - requestType: connectionAdded
    parameter:
      id: 3
      caption: staging
  - requestType: showInfo
    parameter: ready
  - requestType: applicationDidStart
`
	entries, err := LoadJob(strings.NewReader(input))
	if err != nil {
		t.Fatalf("LoadJob: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	payload, err := requisition.Decode(entries[0].RequestType, entries[0].Parameter)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	conn := payload.(requisition.ConnectionDetails)
	if conn.ID != 3 || conn.Caption != "staging" {
		t.Errorf("unexpected connection %+v", conn)
	}
	if string(entries[1].Parameter) != `"ready"` {
		t.Errorf("unexpected parameter %s", entries[1].Parameter)
	}
}

func TestLoadJob_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ``},
		{"unknown request", "job:\n  - requestType: nope\n"},
		{"host-local request", "job:\n  - requestType: proxyRequest\n"},
		{"wrong parameter", "job:\n  - requestType: removeConnection\n    parameter: abc\n"},
		{"unknown field", "jobs: []\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadJob(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadJobFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")
	if err := os.WriteFile(path, []byte("job:\n  - requestType: showError\n    parameter: disk full\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := LoadJobFile(path)
	if err != nil {
		t.Fatalf("LoadJobFile: %v", err)
	}
	if len(entries) != 1 || entries[0].RequestType != "showError" {
		t.Errorf("unexpected entries %+v", entries)
	}

	if _, err := LoadJobFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	} else if !os.IsNotExist(errors.Cause(err)) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
