package statusbar

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/juju/clock/testclock"

	"github.com/dshills/reqhub/internal/requisition"
)

func text(s string) *string { return &s }

func TestBar_Update(t *testing.T) {
	tests := []struct {
		name    string
		updates []requisition.UpdateStatusBarItem
		last    bool
		want    *Item
	}{
		{
			name: "show creates",
			updates: []requisition.UpdateStatusBarItem{
				{ID: "a", State: requisition.StatusBarShow, Text: text("Connected"), Priority: 5},
			},
			last: true,
			want: &Item{ID: "a", Text: "Connected", Alignment: requisition.AlignLeft, Priority: 5, Visible: true},
		},
		{
			name: "hide unknown is ignored",
			updates: []requisition.UpdateStatusBarItem{
				{ID: "a", State: requisition.StatusBarHide},
			},
			last: false,
		},
		{
			name: "keep unknown is ignored",
			updates: []requisition.UpdateStatusBarItem{
				{ID: "a", State: requisition.StatusBarKeep, Text: text("x")},
			},
			last: false,
		},
		{
			name: "dispose unknown is ignored",
			updates: []requisition.UpdateStatusBarItem{
				{ID: "a", State: requisition.StatusBarDispose},
			},
			last: false,
		},
		{
			name: "hide keeps text",
			updates: []requisition.UpdateStatusBarItem{
				{ID: "a", State: requisition.StatusBarShow, Text: text("Busy"), Tooltip: text("tip")},
				{ID: "a", State: requisition.StatusBarHide},
			},
			last: true,
			want: &Item{ID: "a", Text: "Busy", Tooltip: "tip", Alignment: requisition.AlignLeft},
		},
		{
			name: "keep changes text but not visibility",
			updates: []requisition.UpdateStatusBarItem{
				{ID: "a", State: requisition.StatusBarShow, Text: text("one")},
				{ID: "a", State: requisition.StatusBarHide},
				{ID: "a", State: requisition.StatusBarKeep, Text: text("two")},
			},
			last: true,
			want: &Item{ID: "a", Text: "two", Alignment: requisition.AlignLeft},
		},
		{
			name: "alignment and priority fixed at creation",
			updates: []requisition.UpdateStatusBarItem{
				{ID: "a", State: requisition.StatusBarShow, Text: text("x"), Alignment: requisition.AlignRight, Priority: 3},
				{ID: "a", State: requisition.StatusBarShow, Alignment: requisition.AlignLeft, Priority: 9},
			},
			last: true,
			want: &Item{ID: "a", Text: "x", Alignment: requisition.AlignRight, Priority: 3, Visible: true},
		},
		{
			name: "dispose removes",
			updates: []requisition.UpdateStatusBarItem{
				{ID: "a", State: requisition.StatusBarShow, Text: text("x")},
				{ID: "a", State: requisition.StatusBarDispose},
			},
			last: true,
		},
		{
			name: "unknown state",
			updates: []requisition.UpdateStatusBarItem{
				{ID: "a", State: "blink"},
			},
			last: false,
		},
		{
			name: "empty id",
			updates: []requisition.UpdateStatusBarItem{
				{State: requisition.StatusBarShow},
			},
			last: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(nil)
			defer b.Close()

			var got bool
			for _, u := range tt.updates {
				got = b.Update(u)
			}
			if got != tt.last {
				t.Errorf("last Update = %v, want %v", got, tt.last)
			}

			item, ok := b.Get("a")
			if tt.want == nil {
				if ok {
					t.Errorf("unexpected item %+v", item)
				}
				return
			}
			if !ok {
				t.Fatal("item missing")
			}
			if item != *tt.want {
				t.Errorf("item = %+v, want %+v", item, *tt.want)
			}
		})
	}
}

func TestBar_TimeoutOnlyOnCreation(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	b := New(clk)
	defer b.Close()

	changed := make(chan struct{}, 8)
	b.OnChange(func() { changed <- struct{}{} })

	b.Update(requisition.UpdateStatusBarItem{ID: "t", State: requisition.StatusBarShow, Text: text("saved"), Timeout: 500})
	<-changed
	// A later timeout does not start a second timer.
	b.Update(requisition.UpdateStatusBarItem{ID: "t", State: requisition.StatusBarShow, Timeout: 5000})
	<-changed

	if err := clk.WaitAdvance(500*time.Millisecond, time.Second, 1); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("item not hidden after timeout")
	}
	item, ok := b.Get("t")
	if !ok || item.Visible {
		t.Errorf("item = %+v, %v; want hidden", item, ok)
	}
}

func TestBar_DisposeStopsTimer(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	b := New(clk)
	defer b.Close()

	b.Update(requisition.UpdateStatusBarItem{ID: "t", State: requisition.StatusBarShow, Timeout: 100})
	b.Update(requisition.UpdateStatusBarItem{ID: "t", State: requisition.StatusBarDispose})
	b.Update(requisition.UpdateStatusBarItem{ID: "t", State: requisition.StatusBarShow, Text: text("again")})

	clk.Advance(time.Second)

	item, ok := b.Get("t")
	if !ok || !item.Visible {
		t.Errorf("recreated item should stay visible, got %+v", item)
	}
}

func TestBar_Order(t *testing.T) {
	b := New(nil)
	for _, u := range []requisition.UpdateStatusBarItem{
		{ID: "r1", State: requisition.StatusBarShow, Alignment: requisition.AlignRight, Priority: 1},
		{ID: "l1", State: requisition.StatusBarShow, Priority: 1},
		{ID: "l9", State: requisition.StatusBarShow, Priority: 9},
		{ID: "r9", State: requisition.StatusBarShow, Alignment: requisition.AlignRight, Priority: 9},
		{ID: "hidden", State: requisition.StatusBarShow, Priority: 100},
		{ID: "hidden", State: requisition.StatusBarHide},
	} {
		b.Update(u)
	}

	var ids []string
	for _, item := range b.Visible() {
		ids = append(ids, item.ID)
	}
	if got := strings.Join(ids, ","); got != "l9,l1,r9,r1" {
		t.Errorf("order = %s", got)
	}
}

func lastRow(t *testing.T, s tcell.SimulationScreen) string {
	t.Helper()
	width, height := s.Size()
	var sb strings.Builder
	for x := 0; x < width; x++ {
		ch, _, _, _ := s.GetContent(x, height-1) //nolint:staticcheck
		sb.WriteRune(ch)
	}
	return sb.String()
}

func TestRenderer_Draw(t *testing.T) {
	screen := tcell.NewSimulationScreen("")
	if err := screen.Init(); err != nil {
		t.Fatal(err)
	}
	defer screen.Fini()
	screen.SetSize(30, 3)

	b := New(nil)
	b.Update(requisition.UpdateStatusBarItem{ID: "conn", State: requisition.StatusBarShow, Text: text("db1"), Priority: 10})
	b.Update(requisition.UpdateStatusBarItem{ID: "mode", State: requisition.StatusBarShow, Text: text("SQL"), Priority: 1})
	b.Update(requisition.UpdateStatusBarItem{ID: "pos", State: requisition.StatusBarShow, Text: text("L1"), Alignment: requisition.AlignRight, Priority: 1})
	b.Update(requisition.UpdateStatusBarItem{ID: "sch", State: requisition.StatusBarShow, Text: text("app"), Alignment: requisition.AlignRight, Priority: 5})

	NewRenderer(screen, b).Draw()

	want := "db1  SQL" + strings.Repeat(" ", 15) + "app  L1"
	if got := lastRow(t, screen); got != want {
		t.Errorf("row = %q\nwant  %q", got, want)
	}
}

func TestRenderer_Truncates(t *testing.T) {
	screen := tcell.NewSimulationScreen("")
	if err := screen.Init(); err != nil {
		t.Fatal(err)
	}
	defer screen.Fini()
	screen.SetSize(8, 1)

	b := New(nil)
	b.Update(requisition.UpdateStatusBarItem{ID: "long", State: requisition.StatusBarShow, Text: text("connection lost")})
	b.Update(requisition.UpdateStatusBarItem{ID: "r", State: requisition.StatusBarShow, Text: text("R"), Alignment: requisition.AlignRight})

	NewRenderer(screen, b).Draw()

	if got := lastRow(t, screen); got != "connecti" {
		t.Errorf("row = %q", got)
	}
}
