package logfilter

import (
	"fmt"
	"sort"
	"strings"
)

// ContextRange is an inclusive, zero-based line interval.
type ContextRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Len returns the number of lines covered by the range.
func (r ContextRange) Len() int {
	return r.End - r.Start + 1
}

// Expand widens every span by before/after lines, clamped to [0, totalLines-1],
// and merges ranges that overlap or touch. The result is sorted by Start.
func Expand(spans []MatchSpan, totalLines, before, after int) []ContextRange {
	if len(spans) == 0 || totalLines <= 0 {
		return nil
	}
	if before < 0 {
		before = 0
	}
	if after < 0 {
		after = 0
	}

	ranges := make([]ContextRange, 0, len(spans))
	for _, s := range spans {
		if s.LineIndex < 0 || s.LineIndex >= totalLines {
			continue
		}
		ranges = append(ranges, ContextRange{
			Start: max(0, s.LineIndex-before),
			End:   min(totalLines-1, s.LineIndex+after),
		})
	}
	return mergeRanges(ranges)
}

func mergeRanges(ranges []ContextRange) []ContextRange {
	if len(ranges) == 0 {
		return nil
	}
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].Start != ranges[j].Start {
			return ranges[i].Start < ranges[j].Start
		}
		return ranges[i].End < ranges[j].End
	})

	merged := []ContextRange{ranges[0]}
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		// Adjacent ranges (gap of zero lines) merge too.
		if r.Start <= last.End+1 {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// OmittedMarker is the single line standing in for n skipped lines.
func OmittedMarker(n int) string {
	return fmt.Sprintf("... [%d lines omitted] ...", n)
}

// Extract renders the selected ranges. Gaps between consecutive ranges, and
// before the first or after the last range, are replaced by one OmittedMarker line.
func Extract(lines []string, ranges []ContextRange) []string {
	if len(ranges) == 0 {
		return nil
	}
	var out []string
	next := 0
	for _, r := range ranges {
		if r.Start > next {
			out = append(out, OmittedMarker(r.Start-next))
		}
		out = append(out, lines[r.Start:r.End+1]...)
		next = r.End + 1
	}
	if next < len(lines) {
		out = append(out, OmittedMarker(len(lines)-next))
	}
	return out
}

// CoveredLines sums the lengths of ranges.
func CoveredLines(ranges []ContextRange) int {
	n := 0
	for _, r := range ranges {
		n += r.Len()
	}
	return n
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
