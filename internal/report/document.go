package report

import (
	"time"

	"github.com/Dicklesworthstone/jtriage/internal/attachments"
	"github.com/Dicklesworthstone/jtriage/internal/jira"
	"github.com/Dicklesworthstone/jtriage/internal/logfilter"
)

// Document is everything known about one triage run.
type Document struct {
	Issue       jira.Issue         `json:"issue" yaml:"issue"`
	Comments    []jira.Comment     `json:"comments,omitempty" yaml:"comments,omitempty"`
	Results     []logfilter.Result `json:"results,omitempty" yaml:"results,omitempty"`
	Stats       attachments.Stats  `json:"stats" yaml:"stats"`
	Keywords    []string           `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	MaxTokens   int                `json:"max_tokens" yaml:"max_tokens"`
	GeneratedAt time.Time          `json:"generated_at" yaml:"generated_at"`
	Input       string             `json:"input" yaml:"input"`
	Analysis    string             `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Warnings    []string           `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NewDocument builds a document and its assembled agent input.
func NewDocument(issue jira.Issue, comments []jira.Comment, results []logfilter.Result, stats attachments.Stats) Document {
	formatted := make([]string, 0, len(comments))
	for _, c := range comments {
		formatted = append(formatted, FormatComment(c))
	}
	return Document{
		Issue:    issue,
		Comments: comments,
		Results:  results,
		Stats:    stats,
		Input:    Assemble(FormatTicket(issue), formatted, results),
	}
}

// TotalTokens sums the estimated tokens of every result.
func (d Document) TotalTokens() int {
	n := 0
	for _, r := range d.Results {
		n += r.EstimatedTokens
	}
	return n
}
