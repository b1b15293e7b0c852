package jira

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"
)

// Unassigned is reported when an issue has no assignee.
const Unassigned = "Unassigned"

// Issue is the typed view of a Jira issue used by triage.
type Issue struct {
	Key         string       `json:"key" yaml:"key"`
	ID          string       `json:"id" yaml:"id"`
	Summary     string       `json:"summary" yaml:"summary"`
	Description string       `json:"description" yaml:"description"`
	Status      string       `json:"status" yaml:"status"`
	Priority    string       `json:"priority" yaml:"priority"`
	Reporter    string       `json:"reporter" yaml:"reporter"`
	Assignee    string       `json:"assignee" yaml:"assignee"`
	Created     string       `json:"created" yaml:"created"`
	Updated     string       `json:"updated" yaml:"updated"`
	Labels      []string     `json:"labels,omitempty" yaml:"labels,omitempty"`
	Components  []string     `json:"components,omitempty" yaml:"components,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty" yaml:"attachments,omitempty"`
}

// Attachment is attachment metadata; Content is the download URL.
type Attachment struct {
	ID       string `json:"id" yaml:"id"`
	Filename string `json:"filename" yaml:"filename"`
	Size     int64  `json:"size" yaml:"size"`
	MimeType string `json:"mime_type" yaml:"mime_type"`
	Content  string `json:"content" yaml:"content"`
	Created  string `json:"created" yaml:"created"`
}

// Comment is a flattened issue comment.
type Comment struct {
	ID          string `json:"id" yaml:"id"`
	Author      string `json:"author" yaml:"author"`
	AccountType string `json:"account_type,omitempty" yaml:"account_type,omitempty"`
	Created     string `json:"created" yaml:"created"`
	Body        string `json:"body" yaml:"body"`
}

// IssueRef is a search hit.
type IssueRef struct {
	Key      string `json:"key"`
	Summary  string `json:"summary"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Created  string `json:"created"`
}

type named struct {
	Name string `json:"name"`
}

type user struct {
	DisplayName string `json:"displayName"`
	AccountType string `json:"accountType"`
}

type rawAttachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Content  string `json:"content"`
	Created  string `json:"created"`
}

type rawIssue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary     string          `json:"summary"`
		Description json.RawMessage `json:"description"`
		Status      *named          `json:"status"`
		Priority    *named          `json:"priority"`
		Reporter    *user           `json:"reporter"`
		Assignee    *user           `json:"assignee"`
		Created     string          `json:"created"`
		Updated     string          `json:"updated"`
		Labels      []string        `json:"labels"`
		Components  []named         `json:"components"`
		Attachment  []rawAttachment `json:"attachment"`
	} `json:"fields"`
	RenderedFields struct {
		Description string `json:"description"`
	} `json:"renderedFields"`
}

type rawComment struct {
	ID      string          `json:"id"`
	Author  *user           `json:"author"`
	Created string          `json:"created"`
	Body    json.RawMessage `json:"body"`
}

func (n *named) name() string {
	if n == nil {
		return ""
	}
	return n.Name
}

func (r rawIssue) toIssue() Issue {
	f := r.Fields
	issue := Issue{
		Key:      r.Key,
		ID:       r.ID,
		Summary:  f.Summary,
		Status:   f.Status.name(),
		Priority: f.Priority.name(),
		Created:  f.Created,
		Updated:  f.Updated,
		Labels:   f.Labels,
		Assignee: Unassigned,
	}
	if f.Reporter != nil {
		issue.Reporter = f.Reporter.DisplayName
	}
	if f.Assignee != nil && f.Assignee.DisplayName != "" {
		issue.Assignee = f.Assignee.DisplayName
	}
	for _, c := range f.Components {
		issue.Components = append(issue.Components, c.Name)
	}
	for _, a := range f.Attachment {
		issue.Attachments = append(issue.Attachments, Attachment(a))
	}

	issue.Description = StripHTML(r.RenderedFields.Description)
	if issue.Description == "" {
		issue.Description = ADFText(f.Description)
	}
	return issue
}

func (r rawIssue) toRef() IssueRef {
	return IssueRef{
		Key:      r.Key,
		Summary:  r.Fields.Summary,
		Status:   r.Fields.Status.name(),
		Priority: r.Fields.Priority.name(),
		Created:  r.Fields.Created,
	}
}

func (r rawComment) toComment() Comment {
	c := Comment{ID: r.ID, Created: r.Created, Author: "Unknown", Body: ADFText(r.Body)}
	if r.Author != nil {
		if r.Author.DisplayName != "" {
			c.Author = r.Author.DisplayName
		}
		c.AccountType = r.Author.AccountType
	}
	return c
}

var (
	blockTagRe = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|li|h[1-6]|pre|tr|blockquote)>`)
	tagRe      = regexp.MustCompile(`<[^>]*>`)
	blankRe    = regexp.MustCompile(`\n{3,}`)
)

// StripHTML turns Jira's rendered HTML into plain text, keeping line breaks
// at block boundaries.
func StripHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	s = blockTagRe.ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(html.UnescapeString(s), "\u00a0", " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	s = blankRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(s)
}
