// Package output renders command results for humans (styled text, tables,
// progress) or machines (JSON).
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Format selects how a Formatter renders values.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Formatter writes command output in either text or JSON form.
type Formatter struct {
	writer io.Writer
	format Format
	color  *bool
	styles Styles
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithWriter sets the destination (default os.Stdout).
func WithWriter(w io.Writer) FormatterOption {
	return func(f *Formatter) {
		if w != nil {
			f.writer = w
		}
	}
}

// WithJSON switches the formatter to JSON output.
func WithJSON(enabled bool) FormatterOption {
	return func(f *Formatter) {
		if enabled {
			f.format = FormatJSON
		}
	}
}

// WithColor forces colour on or off instead of detecting it.
func WithColor(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.color = &enabled
	}
}

// New creates a Formatter. Colour is detected from the writer unless
// WithColor is given.
func New(opts ...FormatterOption) *Formatter {
	f := &Formatter{writer: os.Stdout, format: FormatText}
	for _, opt := range opts {
		opt(f)
	}
	color := ColorEnabled(f.writer, false)
	if f.color != nil {
		color = *f.color
	}
	f.styles = NewStyles(f.writer, color)
	return f
}

// IsJSON reports whether the formatter emits JSON.
func (f *Formatter) IsJSON() bool {
	return f.format == FormatJSON
}

// Writer returns the underlying writer.
func (f *Formatter) Writer() io.Writer {
	return f.writer
}

// Styles returns the formatter's style set.
func (f *Formatter) Styles() Styles {
	return f.styles
}

// JSON writes v as indented JSON followed by a newline.
func (f *Formatter) JSON(v interface{}) error {
	return WriteJSON(f.writer, v)
}

// Heading writes a styled section title.
func (f *Formatter) Heading(title string) {
	fmt.Fprintln(f.writer, f.styles.Title.Render(title))
}

// KeyValue writes an aligned "key: value" line.
func (f *Formatter) KeyValue(key string, value interface{}) {
	fmt.Fprintf(f.writer, "  %s %v\n", f.styles.Muted.Render(fmt.Sprintf("%-12s", key+":")), value)
}

// Success writes a green check line.
func (f *Formatter) Success(format string, args ...interface{}) {
	fmt.Fprintln(f.writer, f.styles.OK.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Warning writes an orange warning line.
func (f *Formatter) Warning(format string, args ...interface{}) {
	fmt.Fprintln(f.writer, f.styles.Warn.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// Wrapped writes text word-wrapped to the terminal width.
func (f *Formatter) Wrapped(text string) {
	fmt.Fprintln(f.writer, Wrap(text, TerminalWidth(f.writer)))
}

// WriteJSON encodes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ErrorResponse is the JSON body emitted when a command fails in --json mode.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewError wraps a message in an ErrorResponse.
func NewError(msg string) ErrorResponse {
	return ErrorResponse{Success: false, Error: msg}
}

