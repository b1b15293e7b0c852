// Package logfilter reduces log attachments to a bounded, high-signal excerpt.
//
// Reduction is a pure transformation over already-loaded text: a Reducer tries
// severity-marker extraction, keyword extraction, head/tail sampling and finally
// hard truncation, returning the first candidate that fits the token budget.
package logfilter

import (
	"strings"
	"unicode/utf8"
)

// LogFile is a single text log handed over by the attachment loader.
// It is never mutated after construction.
type LogFile struct {
	Name      string
	Lines     []string
	SizeBytes int64
}

// NewLogFile splits raw bytes into lines. CRLF endings are normalized, a single
// trailing newline does not produce an empty last line, and invalid UTF-8 is
// replaced so downstream consumers always receive valid text.
func NewLogFile(name string, data []byte) LogFile {
	return LogFile{
		Name:      name,
		Lines:     SplitLines(string(data)),
		SizeBytes: int64(len(data)),
	}
}

// EmptyLogFile is what an unreadable attachment degrades to.
func EmptyLogFile(name string) LogFile {
	return LogFile{Name: name}
}

// SplitLines splits text into lines the same way NewLogFile does.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// Text joins the file's lines back into a single string.
func (f LogFile) Text() string {
	return strings.Join(f.Lines, "\n")
}

// TotalLines returns the number of lines in the file.
func (f LogFile) TotalLines() int {
	return len(f.Lines)
}
