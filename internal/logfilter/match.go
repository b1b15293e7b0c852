package logfilter

import "strings"

// KeywordSet is a set of substring terms. An empty set means "no keyword signal".
type KeywordSet struct {
	Terms         []string
	CaseSensitive bool
}

// NewKeywordSet builds a set from raw terms, dropping blanks and duplicates
// while keeping first-seen order.
func NewKeywordSet(caseSensitive bool, terms ...string) KeywordSet {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := t
		if !caseSensitive {
			key = strings.ToLower(t)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return KeywordSet{Terms: out, CaseSensitive: caseSensitive}
}

// ParseKeywords splits a comma-separated list such as "error,timeout".
func ParseKeywords(csv string, caseSensitive bool) KeywordSet {
	return NewKeywordSet(caseSensitive, strings.Split(csv, ",")...)
}

// Empty reports whether the set has no terms.
func (k KeywordSet) Empty() bool {
	return len(k.Terms) == 0
}

// MatchSpan records that line LineIndex contains Term.
type MatchSpan struct {
	LineIndex int
	Term      string
}

// Match scans lines for every term. Spans follow line order; a line matching
// several terms yields one span per term, in term order.
func Match(lines []string, keywords KeywordSet) []MatchSpan {
	if keywords.Empty() || len(lines) == 0 {
		return nil
	}

	needles := keywords.Terms
	if !keywords.CaseSensitive {
		needles = make([]string, len(keywords.Terms))
		for i, t := range keywords.Terms {
			needles[i] = strings.ToLower(t)
		}
	}

	var spans []MatchSpan
	for idx, line := range lines {
		hay := line
		if !keywords.CaseSensitive {
			hay = strings.ToLower(line)
		}
		for i, needle := range needles {
			if strings.Contains(hay, needle) {
				spans = append(spans, MatchSpan{LineIndex: idx, Term: keywords.Terms[i]})
			}
		}
	}
	return spans
}

// MatchedLines counts distinct lines referenced by spans.
func MatchedLines(spans []MatchSpan) int {
	n := 0
	last := -1
	for _, s := range spans {
		if s.LineIndex != last {
			n++
			last = s.LineIndex
		}
	}
	return n
}
