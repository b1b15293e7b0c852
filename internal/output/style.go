package output

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// DefaultWidth is used when the terminal width cannot be determined.
const DefaultWidth = 100

// Styles holds the lipgloss styles used across commands.
type Styles struct {
	Title  lipgloss.Style
	OK     lipgloss.Style
	Warn   lipgloss.Style
	Error  lipgloss.Style
	Muted  lipgloss.Style
	Accent lipgloss.Style
	Box    lipgloss.Style
}

// NewStyles builds styles bound to w. With color false every style renders
// plain text.
func NewStyles(w io.Writer, color bool) Styles {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return Styles{
		Title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		OK:     r.NewStyle().Foreground(lipgloss.Color("42")),
		Warn:   r.NewStyle().Foreground(lipgloss.Color("214")),
		Error:  r.NewStyle().Foreground(lipgloss.Color("196")),
		Muted:  r.NewStyle().Foreground(lipgloss.Color("240")),
		Accent: r.NewStyle().Foreground(lipgloss.Color("212")),
		Box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1),
	}
}

// StrategyStyle picks a colour for a reduction strategy label.
func (s Styles) StrategyStyle(strategy string) lipgloss.Style {
	switch strategy {
	case "errors":
		return s.Error
	case "keywords":
		return s.Accent
	case "truncation":
		return s.Warn
	default:
		return s.Muted
	}
}

// ColorEnabled reports whether w should receive ANSI colour. NO_COLOR and
// forceOff disable it; otherwise w must be a terminal.
func ColorEnabled(w io.Writer, forceOff bool) bool {
	if forceOff || os.Getenv("NO_COLOR") != "" || os.Getenv("JTRIAGE_NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the column count of w, or DefaultWidth.
func TerminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return DefaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultWidth
	}
	return width
}

// Wrap word-wraps text at width columns.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	return wordwrap.String(text, width)
}
