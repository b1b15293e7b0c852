package jira

import (
	"fmt"
	"strings"
)

// defaultBotAccounts are display names of automation accounts whose comments
// add noise to an investigation.
var defaultBotAccounts = [...]string{
	"Automation for Jira",
	"Jira Service Management Widget",
	"GitHub for Jira",
	"Jira Cloud for Slack",
	"Opsgenie",
	"Statuspage for Jira",
}

// DefaultBotAccounts returns a fresh copy of the built-in bot names.
func DefaultBotAccounts() []string {
	out := make([]string, len(defaultBotAccounts))
	copy(out, defaultBotAccounts[:])
	return out
}

// FilterComments drops comments written by app accounts or by any of bots
// (matched case-insensitively on display name). Order is preserved.
func FilterComments(comments []Comment, bots []string) []Comment {
	out := make([]Comment, 0, len(comments))
	for _, c := range comments {
		if strings.EqualFold(c.AccountType, "app") || isBot(c.Author, bots) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func isBot(author string, bots []string) bool {
	for _, b := range bots {
		if strings.EqualFold(strings.TrimSpace(b), author) {
			return true
		}
	}
	return false
}

// LastComments keeps the newest max comments; max <= 0 keeps all.
func LastComments(comments []Comment, max int) []Comment {
	if max <= 0 || len(comments) <= max {
		return comments
	}
	return comments[len(comments)-max:]
}

// BuildJQL builds a list query from optional project and status filters.
func BuildJQL(project, status string) string {
	var filters []string
	if p := strings.TrimSpace(project); p != "" {
		filters = append(filters, "project = "+quoteJQL(p))
	}
	if s := strings.TrimSpace(status); s != "" {
		filters = append(filters, "status = "+quoteJQL(s))
	}
	if len(filters) == 0 {
		return "order by created DESC"
	}
	return strings.Join(filters, " AND ") + " order by created DESC"
}

func quoteJQL(v string) string {
	return fmt.Sprintf("%q", v)
}
