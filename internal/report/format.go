package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/jtriage/internal/util"
)

// Format is an output rendering.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat accepts a format name or one of its short aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt", "terminal":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, markdown, json or yaml)", s)
}

// FormatFromPath picks a format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatText
}

// ResolveFormat returns the explicit format when one is given, otherwise the
// format implied by the output path.
func ResolveFormat(explicit, path string) (Format, error) {
	if strings.TrimSpace(explicit) != "" {
		return ParseFormat(explicit)
	}
	if path != "" {
		return FormatFromPath(path), nil
	}
	return FormatText, nil
}

// Render renders doc in format f.
func Render(doc Document, f Format) (string, error) {
	switch f {
	case FormatText, "":
		return Text(doc), nil
	case FormatMarkdown:
		return Markdown(doc), nil
	case FormatJSON:
		return JSON(doc)
	case FormatYAML:
		return YAML(doc)
	}
	return "", fmt.Errorf("unknown format %q", f)
}

// Text is the assembled agent input, followed by the analysis when present.
func Text(doc Document) string {
	out := doc.Input
	if a := strings.TrimSpace(doc.Analysis); a != "" {
		out = strings.TrimRight(out, "\n") + "\n\nANALYSIS:\n" + a + "\n"
	}
	return out
}

// JSON renders doc as indented JSON.
func JSON(doc Document) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling report: %w", err)
	}
	return string(data) + "\n", nil
}

// YAML renders doc as YAML.
func YAML(doc Document) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("marshaling report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const maxHighlightLines = 20

// Markdown renders a human-readable report.
func Markdown(doc Document) string {
	var b strings.Builder
	issue := doc.Issue

	fmt.Fprintf(&b, "# Bug Analysis Report: %s\n\n", issue.Key)
	if !doc.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "*Generated: %s*\n\n", doc.GeneratedAt.Format("2006-01-02 15:04:05"))
	}

	b.WriteString("## Ticket Information\n\n")
	b.WriteString("| Field | Value |\n|---|---|\n")
	for _, row := range [][2]string{
		{"Key", issue.Key},
		{"Summary", orNA(issue.Summary)},
		{"Status", orNA(issue.Status)},
		{"Priority", orNA(issue.Priority)},
		{"Reporter", orNA(issue.Reporter)},
		{"Assignee", orNA(issue.Assignee)},
	} {
		fmt.Fprintf(&b, "| %s | %s |\n", row[0], escapeCell(row[1]))
	}
	b.WriteString("\n")

	if d := strings.TrimSpace(issue.Description); d != "" {
		fmt.Fprintf(&b, "## Description\n\n%s\n\n", d)
	}

	if len(doc.Comments) > 0 {
		fmt.Fprintf(&b, "## Comments (%d)\n\n", len(doc.Comments))
		for _, c := range doc.Comments {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", c.Author, c.Created, strings.ReplaceAll(strings.TrimSpace(c.Body), "\n", " "))
		}
		b.WriteString("\n")
	}

	if len(doc.Results) > 0 {
		b.WriteString("## Logs Analyzed\n\n")
		fmt.Fprintf(&b, "- **Files Processed:** %d\n", len(doc.Results))
		fmt.Fprintf(&b, "- **Total Lines:** %d\n", doc.Stats.TotalLines)
		fmt.Fprintf(&b, "- **Estimated Tokens:** ~%d\n\n", doc.TotalTokens())

		b.WriteString("| File | Strategy | Shown | Total | Matched | Tokens |\n|---|---|---|---|---|---|\n")
		for _, r := range doc.Results {
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %d |\n",
				escapeCell(r.Name), r.Strategy, ShownLines(r), r.TotalLines, r.MatchedLines, r.EstimatedTokens)
		}
		b.WriteString("\n")

		for _, r := range doc.Results {
			fmt.Fprintf(&b, "### %s\n\n", r.Name)
			if hits := matchingLines(r.Content, doc.Keywords, maxHighlightLines); len(hits) > 0 {
				b.WriteString("Keyword hits:\n\n")
				for _, h := range hits {
					fmt.Fprintf(&b, "- %s\n", Highlight(h, doc.Keywords))
				}
				b.WriteString("\n")
			}
			fence := codeFence(r.Content)
			fmt.Fprintf(&b, "%stext\n%s\n%s\n\n", fence, r.Content, fence)
		}
	}

	if a := strings.TrimSpace(doc.Analysis); a != "" {
		fmt.Fprintf(&b, "## Analysis\n\n%s\n", a)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// codeFence returns a backtick fence longer than any run inside content.
func codeFence(content string) string {
	longest, run := 0, 0
	for _, r := range content {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	if longest < 3 {
		return "```"
	}
	return strings.Repeat("`", longest+1)
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

var mdSpecial = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`",
	"[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`,
)

// Highlight escapes Markdown in text and wraps case-insensitive occurrences of
// terms in bold. Longer terms win where matches overlap.
func Highlight(text string, terms []string) string {
	re := termPattern(terms)
	if re == nil {
		return mdSpecial.Replace(text)
	}
	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringIndex(text, -1) {
		b.WriteString(mdSpecial.Replace(text[last:loc[0]]))
		b.WriteString("**")
		b.WriteString(mdSpecial.Replace(text[loc[0]:loc[1]]))
		b.WriteString("**")
		last = loc[1]
	}
	b.WriteString(mdSpecial.Replace(text[last:]))
	return b.String()
}

func termPattern(terms []string) *regexp.Regexp {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			quoted = append(quoted, regexp.QuoteMeta(t))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return regexp.MustCompile("(?i)" + strings.Join(quoted, "|"))
}

func matchingLines(content string, terms []string, max int) []string {
	re := termPattern(terms)
	if re == nil || content == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if re.MatchString(line) {
			out = append(out, line)
			if len(out) == max {
				break
			}
		}
	}
	return out
}

// Write saves content to path, creating parent directories.
func Write(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := util.AtomicWriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
