// Package statusbar keeps the host's status bar items and draws them on a
// terminal line.
package statusbar

import (
	"sort"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/loggo"

	"github.com/dshills/reqhub/internal/requisition"
)

var logger = loggo.GetLogger("reqhub.statusbar")

// Item is a single status bar entry.
type Item struct {
	ID        string
	Text      string
	Tooltip   string
	Alignment requisition.StatusBarAlignment
	Priority  int
	Visible   bool
}

// Bar holds the status bar items by id.
type Bar struct {
	clock clock.Clock

	mu       sync.Mutex
	items    map[string]*Item
	timers   map[string]clock.Timer
	onChange func()
}

// New creates an empty bar. A nil clock means the wall clock.
func New(clk clock.Clock) *Bar {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Bar{
		clock:  clk,
		items:  make(map[string]*Item),
		timers: make(map[string]clock.Timer),
	}
}

// OnChange sets a function called after every change to the items.
func (b *Bar) OnChange(fn func()) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Update applies u and reports whether an item was affected.
//
// A show request creates the item when the id is unknown; every other state
// is ignored for unknown ids. Alignment, priority and timeout only count
// when the item is created. A nil text or tooltip keeps the current value.
func (b *Bar) Update(u requisition.UpdateStatusBarItem) bool {
	if u.ID == "" {
		return false
	}

	b.mu.Lock()
	item, exists := b.items[u.ID]
	switch u.State {
	case requisition.StatusBarShow:
		if !exists {
			item = b.create(u)
		}
		item.Visible = true
	case requisition.StatusBarHide:
		if exists {
			item.Visible = false
		}
	case requisition.StatusBarKeep:
	case requisition.StatusBarDispose:
		if exists {
			delete(b.items, u.ID)
			if t, ok := b.timers[u.ID]; ok {
				t.Stop()
				delete(b.timers, u.ID)
			}
		}
	default:
		b.mu.Unlock()
		logger.Warningf("item %q: unknown state %q", u.ID, u.State)
		return false
	}

	if item == nil {
		b.mu.Unlock()
		logger.Debugf("item %q: %s ignored, no such item", u.ID, u.State)
		return false
	}
	if u.State != requisition.StatusBarDispose {
		if u.Text != nil {
			item.Text = *u.Text
		}
		if u.Tooltip != nil {
			item.Tooltip = *u.Tooltip
		}
	}
	notify := b.onChange
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
	return true
}

// create adds a new item. b.mu must be held.
func (b *Bar) create(u requisition.UpdateStatusBarItem) *Item {
	align := u.Alignment
	if align != requisition.AlignRight {
		align = requisition.AlignLeft
	}
	item := &Item{
		ID:        u.ID,
		Alignment: align,
		Priority:  u.Priority,
	}
	b.items[u.ID] = item

	if u.Timeout > 0 {
		b.timers[u.ID] = b.clock.AfterFunc(time.Duration(u.Timeout)*time.Millisecond, func() {
			b.expire(u.ID, item)
		})
	}
	return item
}

func (b *Bar) expire(id string, item *Item) {
	b.mu.Lock()
	delete(b.timers, id)
	if b.items[id] != item || !item.Visible {
		b.mu.Unlock()
		return
	}
	item.Visible = false
	notify := b.onChange
	b.mu.Unlock()

	logger.Tracef("item %q hidden after timeout", id)
	if notify != nil {
		notify()
	}
}

// Get returns a copy of the item with the given id.
func (b *Bar) Get(id string) (Item, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	item, ok := b.items[id]
	if !ok {
		return Item{}, false
	}
	return *item, true
}

// Items returns copies of all items, left aligned first, then by descending
// priority and id.
func (b *Bar) Items() []Item {
	b.mu.Lock()
	out := make([]Item, 0, len(b.items))
	for _, item := range b.items {
		out = append(out, *item)
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Alignment != out[j].Alignment {
			return out[i].Alignment == requisition.AlignLeft
		}
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Visible returns the visible items in display order.
func (b *Bar) Visible() []Item {
	items := b.Items()
	out := items[:0]
	for _, item := range items {
		if item.Visible {
			out = append(out, item)
		}
	}
	return out
}

// Close stops pending timeouts.
func (b *Bar) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
}
