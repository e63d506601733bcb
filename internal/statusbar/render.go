package statusbar

import (
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/reqhub/internal/requisition"
)

// itemGap separates neighbouring items.
const itemGap = 2

// Renderer draws a bar's visible items on the last row of a screen.
type Renderer struct {
	screen tcell.Screen
	bar    *Bar
	style  tcell.Style

	mu sync.Mutex
}

// NewRenderer creates a renderer for bar on screen.
func NewRenderer(screen tcell.Screen, bar *Bar) *Renderer {
	return &Renderer{
		screen: screen,
		bar:    bar,
		style:  tcell.StyleDefault.Background(tcell.ColorGray).Foreground(tcell.ColorWhite),
	}
}

// Draw renders the status line and shows the screen.
func (r *Renderer) Draw() {
	r.mu.Lock()
	defer r.mu.Unlock()

	width, height := r.screen.Size()
	if width <= 0 || height <= 0 {
		return
	}
	row := height - 1

	for x := 0; x < width; x++ {
		r.screen.SetContent(x, row, ' ', nil, r.style)
	}

	var left, right []Item
	for _, item := range r.bar.Visible() {
		if item.Alignment == requisition.AlignRight {
			right = append(right, item)
		} else {
			left = append(left, item)
		}
	}

	// Left items grow rightwards from column 0.
	col := 0
	for _, item := range left {
		col = r.put(col, row, width, item.Text) + itemGap
		if col >= width {
			break
		}
	}

	// Right items end at the last column; higher priority sits further left.
	end := width
	for i := len(right) - 1; i >= 0; i-- {
		text := []rune(right[i].Text)
		start := end - len(text)
		if start < col {
			break
		}
		r.put(start, row, end, right[i].Text)
		end = start - itemGap
	}

	r.screen.Show()
}

// put writes text from col, stopping before limit, and returns the next
// free column.
func (r *Renderer) put(col, row, limit int, text string) int {
	for _, ch := range text {
		if col >= limit {
			break
		}
		r.screen.SetContent(col, row, ch, nil, r.style)
		col++
	}
	return col
}
