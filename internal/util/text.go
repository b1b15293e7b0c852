package util

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Truncate shortens a string to n bytes, ending with "..." when cut.
// The cut always lands on a rune boundary.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return SafeSlice(s, n)
	}
	return SafeSlice(s, n-3) + "..."
}

// SafeSlice truncates a string to at most maxLen bytes at a rune boundary.
// Unlike Truncate, it does not add an ellipsis.
func SafeSlice(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// maxFilenameLen bounds sanitized names; most filesystems allow 255 bytes.
const maxFilenameLen = 200

// SanitizeFilename makes an attachment name safe to create inside a target
// directory. Path separators and shell-hostile characters are replaced, leading
// dots are removed so the result is never hidden or a traversal, and the
// extension is preserved when the name has to be shortened.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		"\x00", "",
	)
	safe := replacer.Replace(strings.TrimSpace(name))
	safe = strings.TrimLeft(safe, ".")
	if safe == "" {
		return "attachment"
	}

	if len(safe) > maxFilenameLen {
		ext := filepath.Ext(safe)
		if len(ext) > 16 {
			ext = ""
		}
		safe = SafeSlice(strings.TrimSuffix(safe, ext), maxFilenameLen-len(ext)) + ext
	}
	return safe
}

// FormatBytes formats bytes in a human-readable way (e.g., "1.5 KB")
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
