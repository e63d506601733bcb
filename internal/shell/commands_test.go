package shell

import (
	"context"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"github.com/dshills/reqhub/internal/hub"
	"github.com/dshills/reqhub/internal/requisition"
)

func replies(t *testing.T, h *hub.Hub) <-chan requisition.ShellReply {
	t.Helper()
	ch := make(chan requisition.ShellReply, 8)
	if _, err := hub.On(h, requisition.ShellResponse, func(_ context.Context, r requisition.ShellReply) (bool, error) {
		ch <- r
		return true, nil
	}); err != nil {
		t.Fatal(err)
	}
	return ch
}

func TestSession_Serve(t *testing.T) {
	h := hub.New()
	ev := watch(t, h)
	out := replies(t, h)
	be := newBackend()
	s := newSession(t, Config{Dial: be.dial, Hub: h})
	if _, err := s.Serve(h); err != nil {
		t.Fatal(err)
	}
	server := be.accept(t)
	expect(t, ev.socket, "socket state")

	cmd := requisition.ShellCommand{
		ID:      "q1",
		Command: "gui.sqleditor.execute",
		Args:    requisition.Dictionary{"sql": "select 1"},
	}
	if !hub.Execute(testContext(t), h, requisition.ShellExecute, cmd) {
		t.Fatal("shellExecute not handled")
	}

	req := readRequest(t, server)
	if req.Command != "gui.sqleditor.execute" || req.Args["sql"] != "select 1" {
		t.Fatalf("unexpected request %+v", req)
	}
	reply(t, server, `{"request_id":"`+req.RequestID+`","request_state":{"type":"PENDING","msg":"Executing..."},"result":{"rows":[[1]]}}`)
	reply(t, server, `{"request_id":"`+req.RequestID+`","request_state":{"type":"OK","msg":"done"},"done":true}`)

	first := expect(t, out, "pending reply")
	if first.ID != "q1" || first.State != StatePending || first.Done || string(first.Result) != `{"rows":[[1]]}` {
		t.Errorf("first reply = %+v", first)
	}
	last := expect(t, out, "final reply")
	if last.ID != "q1" || last.State != StateOK || !last.Done || last.Message != "done" {
		t.Errorf("last reply = %+v", last)
	}
}

func TestSession_ServeFailures(t *testing.T) {
	h := hub.New()
	ev := watch(t, h)
	out := replies(t, h)
	be := newBackend()
	be.failing.Store(true)
	s := newSession(t, Config{Dial: be.dial, Hub: h, Clock: testclock.NewClock(time.Now())})
	if _, err := s.Serve(h); err != nil {
		t.Fatal(err)
	}
	expect(t, ev.errs, "connection error")

	if hub.Execute(testContext(t), h, requisition.ShellExecute, requisition.ShellCommand{Command: "gui.core.version"}) {
		t.Error("shellExecute without an id was handled")
	}

	if !hub.Execute(testContext(t), h, requisition.ShellExecute, requisition.ShellCommand{ID: "v", Command: "gui.core.version"}) {
		t.Fatal("shellExecute not handled")
	}
	r := expect(t, out, "error reply")
	if r.ID != "v" || r.State != StateError || !r.Done || r.Message == "" {
		t.Errorf("reply = %+v", r)
	}
}

func TestSession_ServeAfterClose(t *testing.T) {
	h := hub.New()
	be := newBackend()
	s, err := NewSession(Config{Dial: be.dial, Hub: h})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Serve(h); err != nil {
		t.Fatal(err)
	}
	be.accept(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if hub.Execute(testContext(t), h, requisition.ShellExecute, requisition.ShellCommand{ID: "x", Command: "gui.core.version"}) {
		t.Error("shellExecute handled after Close")
	}
}
