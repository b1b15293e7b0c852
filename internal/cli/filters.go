package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/jtriage/internal/config"
	"github.com/Dicklesworthstone/jtriage/internal/logfilter"
)

// filterFlags are the reduction flags shared by analyze, reduce and watch.
type filterFlags struct {
	keywords      string
	caseSensitive bool
	contextLines  int
	maxTokens     int
	head          int
	tail          int
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.keywords, "keywords", "k", "", "Comma-separated keywords to search for in logs")
	cmd.Flags().BoolVar(&f.caseSensitive, "case-sensitive", false, "Match keywords case-sensitively")
	cmd.Flags().IntVarP(&f.contextLines, "context-lines", "c", 0, "Lines of context before and after each keyword hit")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "Token budget per log file")
	cmd.Flags().IntVar(&f.head, "head", 0, "Lines kept from the start of a file when sampling")
	cmd.Flags().IntVar(&f.tail, "tail", 0, "Lines kept from the end of a file when sampling")
}

// apply copies changed flags onto a copy of base and returns it.
func (f *filterFlags) apply(cmd *cobra.Command, base *config.Config) (*config.Config, error) {
	c := *base
	flags := cmd.Flags()
	if flags.Changed("keywords") {
		c.Filter.Keywords = logfilter.MergeTerms(c.Filter.Keywords, logfilter.ParseKeywords(f.keywords, false).Terms)
	}
	if flags.Changed("case-sensitive") {
		c.Filter.CaseSensitive = f.caseSensitive
	}
	if flags.Changed("context-lines") {
		if f.contextLines < 0 {
			return nil, fmt.Errorf("--context-lines must be non-negative, got %d", f.contextLines)
		}
		c.Filter.ContextBefore = f.contextLines
		c.Filter.ContextAfter = f.contextLines
	}
	if flags.Changed("max-tokens") {
		c.Filter.MaxTokens = f.maxTokens
	}
	if flags.Changed("head") {
		c.Filter.HeadLines = f.head
	}
	if flags.Changed("tail") {
		c.Filter.TailLines = f.tail
	}
	if err := validateConfig(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// newReducer builds the reducer and keyword set for c.
func newReducer(c *config.Config) (*logfilter.Reducer, logfilter.KeywordSet, error) {
	r, err := logfilter.NewReducer(c.ReducerOptions())
	if err != nil {
		return nil, logfilter.KeywordSet{}, err
	}
	return r, c.KeywordSet(), nil
}
