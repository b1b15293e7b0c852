// Package report assembles the analysis document handed to the AI agent and
// renders it as text, Markdown, JSON or YAML.
package report

import (
	"fmt"
	"strings"

	"github.com/Dicklesworthstone/jtriage/internal/jira"
	"github.com/Dicklesworthstone/jtriage/internal/logfilter"
)

// FormatTicket renders the ticket header block.
func FormatTicket(issue jira.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TICKET: %s\n", issue.Key)
	fmt.Fprintf(&b, "SUMMARY: %s\n", orNA(issue.Summary))
	fmt.Fprintf(&b, "STATUS: %s\n", orNA(issue.Status))
	fmt.Fprintf(&b, "PRIORITY: %s\n", orNA(issue.Priority))
	if issue.Reporter != "" {
		fmt.Fprintf(&b, "REPORTER: %s\n", issue.Reporter)
	}
	if issue.Assignee != "" {
		fmt.Fprintf(&b, "ASSIGNEE: %s\n", issue.Assignee)
	}
	if len(issue.Labels) > 0 {
		fmt.Fprintf(&b, "LABELS: %s\n", strings.Join(issue.Labels, ", "))
	}
	if len(issue.Components) > 0 {
		fmt.Fprintf(&b, "COMPONENTS: %s\n", strings.Join(issue.Components, ", "))
	}
	if d := strings.TrimSpace(issue.Description); d != "" {
		fmt.Fprintf(&b, "\nDESCRIPTION:\n%s\n", d)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatComment renders one comment as a list line.
func FormatComment(c jira.Comment) string {
	author := c.Author
	if author == "" {
		author = "Unknown"
	}
	return fmt.Sprintf("- %s: %s", author, strings.TrimSpace(c.Body))
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// Assemble concatenates the ticket block, the comment block and one section
// per reduced log file, in the order given.
func Assemble(ticketSummary string, comments []string, results []logfilter.Result) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(ticketSummary, "\n"))
	b.WriteString("\n")

	if len(comments) > 0 {
		b.WriteString("\nCOMMENTS:\n")
		for _, c := range comments {
			b.WriteString(c)
			b.WriteString("\n")
		}
	}

	if len(results) > 0 {
		b.WriteString("\nLOG FILES:\n")
		b.WriteString(FormatResults(results))
	}
	return b.String()
}

// FormatResults renders one labelled section per result.
func FormatResults(results []logfilter.Result) string {
	var b strings.Builder
	for _, r := range results {
		b.WriteString(formatResult(r))
	}
	return b.String()
}

func formatResult(r logfilter.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n--- %s (strategy: %s) ---\n", r.Name, r.Strategy)
	fmt.Fprintf(&b, "(Showing %d of %d lines, ~%d tokens)\n", ShownLines(r), r.TotalLines, r.EstimatedTokens)
	if r.MatchedLines > 0 {
		fmt.Fprintf(&b, "(Matched %d lines)\n", r.MatchedLines)
	}
	b.WriteString("\n")
	if r.Content != "" {
		b.WriteString(r.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// ShownLines counts the lines of a result's content, markers included.
func ShownLines(r logfilter.Result) int {
	if r.Content == "" {
		return 0
	}
	return strings.Count(r.Content, "\n") + 1
}
