package logfilter

import (
	"reflect"
	"testing"
)

func spansAt(idx ...int) []MatchSpan {
	spans := make([]MatchSpan, len(idx))
	for i, n := range idx {
		spans[i] = MatchSpan{LineIndex: n, Term: "x"}
	}
	return spans
}

func TestExpand(t *testing.T) {
	tests := []struct {
		name          string
		spans         []MatchSpan
		total         int
		before, after int
		want          []ContextRange
	}{
		{
			name:  "no spans",
			total: 10,
			want:  nil,
		},
		{
			name:   "single span clamped at both ends",
			spans:  spansAt(1),
			total:  3,
			before: 5, after: 5,
			want: []ContextRange{{0, 2}},
		},
		{
			name:   "overlapping ranges merge",
			spans:  spansAt(3, 5),
			total:  20,
			before: 2, after: 2,
			want: []ContextRange{{1, 7}},
		},
		{
			name:   "adjacent ranges merge",
			spans:  spansAt(2, 6),
			total:  20,
			before: 1, after: 1,
			want: []ContextRange{{1, 7}},
		},
		{
			name:   "separated ranges stay apart",
			spans:  spansAt(2, 10),
			total:  20,
			before: 1, after: 1,
			want: []ContextRange{{1, 3}, {9, 11}},
		},
		{
			name:   "duplicate spans from one line",
			spans:  []MatchSpan{{4, "a"}, {4, "b"}},
			total:  10,
			before: 0, after: 0,
			want: []ContextRange{{4, 4}},
		},
		{
			name:   "unsorted input",
			spans:  spansAt(15, 2),
			total:  20,
			before: 0, after: 1,
			want: []ContextRange{{2, 3}, {15, 16}},
		},
		{
			name:   "negative windows act as zero",
			spans:  spansAt(5),
			total:  10,
			before: -3, after: -1,
			want: []ContextRange{{5, 5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Expand(tt.spans, tt.total, tt.before, tt.after)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Expand() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// Lines 1 and 4 expand to [0,2] and [3,4]; the gap is zero so they merge
// into a single range covering the whole file.
func TestExpandKeywordScenarioMergesWholeFile(t *testing.T) {
	lines := []string{"a", "ERROR b", "c", "d", "ERROR e"}
	spans := Match(lines, NewKeywordSet(false, "ERROR"))
	got := Expand(spans, len(lines), 1, 1)
	want := []ContextRange{{Start: 0, End: 4}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Expand() = %+v, want %+v", got, want)
	}
	if ex := Extract(lines, got); !reflect.DeepEqual(ex, lines) {
		t.Fatalf("Extract() = %q, want the full file", ex)
	}
}

func TestExpandMergedBoundsEqualUnion(t *testing.T) {
	for a := 0; a < 12; a++ {
		for b := a; b < 12; b++ {
			got := Expand(spansAt(a, b), 12, 2, 2)
			ra := ContextRange{max(0, a-2), min(11, a+2)}
			rb := ContextRange{max(0, b-2), min(11, b+2)}
			if rb.Start <= ra.End+1 {
				if len(got) != 1 {
					t.Fatalf("spans %d,%d: expected one merged range, got %+v", a, b, got)
				}
				if got[0].Start != min(ra.Start, rb.Start) || got[0].End != max(ra.End, rb.End) {
					t.Fatalf("spans %d,%d: merged %+v is not the union of %+v and %+v", a, b, got[0], ra, rb)
				}
			} else if len(got) != 2 {
				t.Fatalf("spans %d,%d: expected two ranges, got %+v", a, b, got)
			}
		}
	}
}

func TestExtractInsertsOmittedMarkers(t *testing.T) {
	lines := []string{"0", "1", "2", "3", "4", "5", "6", "7"}
	got := Extract(lines, []ContextRange{{1, 2}, {5, 5}})
	want := []string{
		"... [1 lines omitted] ...",
		"1", "2",
		"... [2 lines omitted] ...",
		"5",
		"... [2 lines omitted] ...",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract() = %q, want %q", got, want)
	}
	if n := CoveredLines([]ContextRange{{1, 2}, {5, 5}}); n != 3 {
		t.Errorf("CoveredLines() = %d, want 3", n)
	}
}
