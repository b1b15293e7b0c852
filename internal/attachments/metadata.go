package attachments

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Dicklesworthstone/jtriage/internal/jira"
	"github.com/Dicklesworthstone/jtriage/internal/logfilter"
	"github.com/Dicklesworthstone/jtriage/internal/util"
)

// MetadataFileName is written next to the attachments directory.
const MetadataFileName = "ticket_metadata.txt"

// FormatMetadata renders the ticket and its comments as plain text.
func FormatMetadata(issue jira.Issue, comments []jira.Comment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TICKET: %s\n", issue.Key)
	fmt.Fprintf(&b, "SUMMARY: %s\n", issue.Summary)
	fmt.Fprintf(&b, "STATUS: %s\n", issue.Status)
	fmt.Fprintf(&b, "PRIORITY: %s\n", issue.Priority)
	fmt.Fprintf(&b, "REPORTER: %s\n", issue.Reporter)
	fmt.Fprintf(&b, "ASSIGNEE: %s\n", issue.Assignee)
	fmt.Fprintf(&b, "CREATED: %s\n", issue.Created)
	fmt.Fprintf(&b, "UPDATED: %s\n", issue.Updated)
	if len(issue.Labels) > 0 {
		fmt.Fprintf(&b, "LABELS: %s\n", strings.Join(issue.Labels, ", "))
	}
	if len(issue.Components) > 0 {
		fmt.Fprintf(&b, "COMPONENTS: %s\n", strings.Join(issue.Components, ", "))
	}
	fmt.Fprintf(&b, "\nDESCRIPTION:\n%s\n", issue.Description)

	if len(comments) > 0 {
		fmt.Fprintf(&b, "\n\nCOMMENTS (%d):\n", len(comments))
		for i, c := range comments {
			fmt.Fprintf(&b, "\n--- Comment %d by %s at %s ---\n%s\n", i+1, c.Author, c.Created, c.Body)
		}
	}
	return b.String()
}

// SaveTicketMetadata writes ticket_metadata.txt into dir, creating it if
// needed, and returns the file path.
func SaveTicketMetadata(dir string, issue jira.Issue, comments []jira.Comment) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, MetadataFileName)
	if err := util.AtomicWriteFile(path, []byte(FormatMetadata(issue, comments)), 0o644); err != nil {
		return "", fmt.Errorf("writing ticket metadata: %w", err)
	}
	return path, nil
}

// LogFormat is a coarse guess at what kind of log a file holds.
type LogFormat string

const (
	FormatJSON       LogFormat = "json"
	FormatErrorLog   LogFormat = "error_log"
	FormatStructured LogFormat = "structured"
	FormatPlainText  LogFormat = "plain_text"
)

const formatSampleLines = 10

// DetectFormat inspects the first few non-blank lines. Mostly JSON objects
// means json; any ERROR or Exception means error_log; INFO, DEBUG or WARN
// means structured.
func DetectFormat(lines []string) LogFormat {
	sample := make([]string, 0, formatSampleLines)
	for _, l := range lines {
		if len(sample) == formatSampleLines {
			break
		}
		if strings.TrimSpace(l) == "" {
			continue
		}
		sample = append(sample, l)
	}
	if len(sample) == 0 {
		return FormatPlainText
	}

	jsonLines := 0
	for _, l := range sample {
		t := strings.TrimSpace(l)
		if strings.HasPrefix(t, "{") && json.Valid([]byte(t)) {
			jsonLines++
		}
	}
	if jsonLines*5 >= len(sample)*4 {
		return FormatJSON
	}

	for _, l := range sample {
		if strings.Contains(l, "ERROR") || strings.Contains(l, "Exception") {
			return FormatErrorLog
		}
	}
	for _, l := range sample {
		if strings.Contains(l, "INFO") || strings.Contains(l, "DEBUG") || strings.Contains(l, "WARN") {
			return FormatStructured
		}
	}
	return FormatPlainText
}

// Stats summarizes a set of loaded files.
type Stats struct {
	Count      int      `json:"count" yaml:"count"`
	TotalLines int      `json:"total_lines" yaml:"total_lines"`
	TotalBytes int64    `json:"total_bytes" yaml:"total_bytes"`
	Files      []string `json:"files,omitempty" yaml:"files,omitempty"`
}

// ComputeStats totals line and byte counts over files.
func ComputeStats(files []logfilter.LogFile) Stats {
	s := Stats{Count: len(files)}
	for _, f := range files {
		s.TotalLines += f.TotalLines()
		s.TotalBytes += f.SizeBytes
		s.Files = append(s.Files, f.Name)
	}
	return s
}
