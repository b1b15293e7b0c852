package agent

import (
	"regexp"
	"strings"
)

// rateLimitPatterns appear in agent output when the upstream model refused the
// request for quota reasons.
var rateLimitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)you.ve hit your limit`),
	regexp.MustCompile(`(?i)rate limit exceeded`),
	regexp.MustCompile(`(?i)too many requests`),
	regexp.MustCompile(`(?i)usage limit`),
	regexp.MustCompile(`(?i)exceeded.*quota`),
}

// Matches CSI sequences (with private mode ?) and OSC sequences.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\a\x1b]*(\a|\x1b\\)`)

func stripANSICodes(text string) string {
	return ansiPattern.ReplaceAllString(text, "")
}

// looksRateLimited reports whether the tail of the output carries a quota
// message. Only the last lines are checked so an analysis that merely quotes a
// rate-limit log line is not misread.
func looksRateLimited(output string) bool {
	tail := lastLines(output, 5)
	for _, re := range rateLimitPatterns {
		if re.MatchString(tail) {
			return true
		}
	}
	return false
}

func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
