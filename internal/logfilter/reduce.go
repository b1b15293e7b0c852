package logfilter

import (
	"strings"
	"unicode/utf8"
)

// Strategy names the tier that produced a Result.
type Strategy string

const (
	StrategyErrors     Strategy = "errors"
	StrategyKeywords   Strategy = "keywords"
	StrategySampling   Strategy = "sampling"
	StrategyTruncation Strategy = "truncation"
)

// Defaults filled in by DefaultOptions.
const (
	DefaultContextLines       = 5
	DefaultErrorContextBefore = 10
	DefaultErrorContextAfter  = 20
	DefaultHeadLines          = 200
	DefaultTailLines          = 200
)

// TruncationMarker ends hard-truncated output.
const TruncationMarker = "[...]"

// severityMarkers are matched case-insensitively by the errors tier.
var severityMarkers = [...]string{
	"fatal",
	"panic",
	"error",
	"exception",
	"critical",
	"traceback",
	"stack trace",
	"stacktrace",
	"caused by:",
	"failed",
	"failure",
	"segmentation fault",
	"nullpointer",
	"null pointer",
	"timeout",
	"timed out",
}

// DefaultSeverityMarkers returns a fresh copy of the built-in markers.
// Extend it with MergeTerms.
func DefaultSeverityMarkers() []string {
	out := make([]string, len(severityMarkers))
	copy(out, severityMarkers[:])
	return out
}

// MergeTerms returns defaults followed by extra, without duplicates.
// Neither input is modified.
func MergeTerms(defaults, extra []string) []string {
	merged := make([]string, 0, len(defaults)+len(extra))
	merged = append(merged, defaults...)
	merged = append(merged, extra...)
	return NewKeywordSet(false, merged...).Terms
}

// Options configures a Reducer. Every window and sampling field is used as
// given, so a zero means no context lines. Start from DefaultOptions to get
// the package defaults.
type Options struct {
	Budget Budget

	// SeverityMarkers replaces DefaultSeverityMarkers() when non-nil.
	SeverityMarkers []string

	ErrorContextBefore int
	ErrorContextAfter  int
	ContextBefore      int
	ContextAfter       int
	HeadLines          int
	TailLines          int
}

// DefaultOptions returns options for budget with the default windows and
// sampling sizes.
func DefaultOptions(budget Budget) Options {
	return Options{
		Budget:             budget,
		ErrorContextBefore: DefaultErrorContextBefore,
		ErrorContextAfter:  DefaultErrorContextAfter,
		ContextBefore:      DefaultContextLines,
		ContextAfter:       DefaultContextLines,
		HeadLines:          DefaultHeadLines,
		TailLines:          DefaultTailLines,
	}
}

// Reducer applies the tiered reduction. It holds no mutable state and may be
// reused for any number of files.
type Reducer struct {
	budget    Budget
	severity  KeywordSet
	errBefore int
	errAfter  int
	before    int
	after     int
	head      int
	tail      int
}

// NewReducer validates the budget before any file is processed.
func NewReducer(opts Options) (*Reducer, error) {
	if opts.Budget.CharsPerToken == 0 {
		opts.Budget.CharsPerToken = DefaultCharsPerToken
	}
	if err := opts.Budget.Validate(); err != nil {
		return nil, err
	}

	markers := opts.SeverityMarkers
	if markers == nil {
		markers = DefaultSeverityMarkers()
	}

	r := &Reducer{
		budget:    opts.Budget,
		severity:  NewKeywordSet(false, markers...),
		errBefore: opts.ErrorContextBefore,
		errAfter:  opts.ErrorContextAfter,
		before:    opts.ContextBefore,
		after:     opts.ContextAfter,
		head:      opts.HeadLines,
		tail:      opts.TailLines,
	}
	return r, nil
}

// Budget returns the budget the reducer enforces.
func (r *Reducer) Budget() Budget {
	return r.budget
}

// Result is the reduced form of one LogFile.
type Result struct {
	Name            string         `json:"name" yaml:"name"`
	Content         string         `json:"content" yaml:"content"`
	TotalLines      int            `json:"total_lines" yaml:"total_lines"`
	MatchedLines    int            `json:"matched_lines" yaml:"matched_lines"`
	Strategy        Strategy       `json:"strategy" yaml:"strategy"`
	EstimatedTokens int            `json:"estimated_tokens" yaml:"estimated_tokens"`
	Ranges          []ContextRange `json:"ranges,omitempty" yaml:"ranges,omitempty"`
}

// Reduce returns the first tier whose output fits the budget:
// errors, then keywords, then sampling, then truncation. Truncation always
// produces a result, so Reduce never fails.
//
// The errors tier scans only the severity markers; user keywords, with their
// own case sensitivity, are left to the keywords tier.
//
// MatchedLines counts lines hit by the tier that produced the content. For
// sampling and truncation it reports the severity hits that did not fit, or
// the keyword hits when no severity marker matched.
func (r *Reducer) Reduce(file LogFile, keywords KeywordSet) Result {
	lines := file.Lines
	res := Result{Name: file.Name, TotalLines: len(lines)}

	errSpans := Match(lines, r.severity)
	res.MatchedLines = MatchedLines(errSpans)
	if len(errSpans) > 0 {
		ranges := Expand(errSpans, len(lines), r.errBefore, r.errAfter)
		text := joinLines(Extract(lines, ranges))
		if r.budget.Fits(text) {
			return r.finish(res, StrategyErrors, text, ranges)
		}
	}

	if !keywords.Empty() {
		spans := Match(lines, keywords)
		if len(errSpans) == 0 {
			res.MatchedLines = MatchedLines(spans)
		}
		if len(spans) > 0 {
			ranges := Expand(spans, len(lines), r.before, r.after)
			text := joinLines(Extract(lines, ranges))
			if r.budget.Fits(text) {
				res.MatchedLines = MatchedLines(spans)
				return r.finish(res, StrategyKeywords, text, ranges)
			}
		}
	}

	sampled := joinLines(Sample(lines, r.head, r.tail))
	if r.budget.Fits(sampled) {
		return r.finish(res, StrategySampling, sampled, nil)
	}

	return r.finish(res, StrategyTruncation, r.truncate(sampled), nil)
}

func (r *Reducer) finish(res Result, s Strategy, content string, ranges []ContextRange) Result {
	res.Strategy = s
	res.Content = content
	res.EstimatedTokens = r.budget.Estimate(content)
	res.Ranges = ranges
	return res
}

// truncate keeps the longest prefix that, together with the marker, stays
// within MaxChars. The cut moves back to a line boundary when one is close.
// If MaxChars cannot even hold the marker, the bare marker is returned; that
// is the only case where output exceeds the budget.
func (r *Reducer) truncate(text string) string {
	suffix := "\n" + TruncationMarker
	keep := r.budget.MaxChars() - utf8.RuneCountInString(suffix)
	if keep <= 0 {
		return TruncationMarker
	}

	runes := []rune(text)
	if keep >= len(runes) {
		return text
	}
	prefix := string(runes[:keep])
	if nl := strings.LastIndex(prefix, "\n"); nl > 0 && nl > len(prefix)*3/4 {
		prefix = prefix[:nl]
	}
	return prefix + suffix
}

// ReduceAll reduces files in input order. Each file is independent.
func (r *Reducer) ReduceAll(files []LogFile, keywords KeywordSet) []Result {
	results := make([]Result, 0, len(files))
	for _, f := range files {
		results = append(results, r.Reduce(f, keywords))
	}
	return results
}

// Reduce is the one-shot form of Reducer.Reduce using the default severity
// markers and error window.
func Reduce(file LogFile, keywords KeywordSet, budget Budget, contextBefore, contextAfter, headCount, tailCount int) (Result, error) {
	r, err := NewReducer(Options{
		Budget:             budget,
		ErrorContextBefore: DefaultErrorContextBefore,
		ErrorContextAfter:  DefaultErrorContextAfter,
		ContextBefore:      contextBefore,
		ContextAfter:       contextAfter,
		HeadLines:          headCount,
		TailLines:          tailCount,
	})
	if err != nil {
		return Result{}, err
	}
	return r.Reduce(file, keywords), nil
}
