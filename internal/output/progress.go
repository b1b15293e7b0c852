package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/muesli/termenv"

	"github.com/Dicklesworthstone/jtriage/internal/util"
)

// Progress draws a single-line download bar. On a non-terminal writer it
// prints one line per finished item instead of redrawing.
type Progress struct {
	mu          sync.Mutex
	w           io.Writer
	bar         progress.Model
	interactive bool
	label       string
}

// NewProgress creates a bar writing to w.
func NewProgress(w io.Writer, color bool) *Progress {
	profile := termenv.Ascii
	if color {
		profile = termenv.ANSI256
	}
	return &Progress{
		w:           w,
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(30), progress.WithColorProfile(profile)),
		interactive: IsTerminal(w),
	}
}

// Start begins a new item.
func (p *Progress) Start(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.label = Truncate(label, 40)
}

// Update redraws the bar for done of total bytes. A non-positive total
// renders as an empty bar.
func (p *Progress) Update(done, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.interactive {
		return
	}
	fmt.Fprintf(p.w, "\r%s %-40s %s", p.bar.ViewAs(fraction(done, total)), p.label, util.FormatBytes(done))
}

// Finish ends the current item.
func (p *Progress) Finish(total int64, skipped bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	status := util.FormatBytes(total)
	if skipped {
		status = "already downloaded"
	}
	if p.interactive {
		fmt.Fprintf(p.w, "\r%s %-40s %s\n", p.bar.ViewAs(1), p.label, status)
		return
	}
	fmt.Fprintf(p.w, "%s (%s)\n", p.label, status)
}

func fraction(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(done) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}
