package jira

import (
	"encoding/json"
	"strings"
)

// blockNodes end with a line break when flattened.
var blockNodes = map[string]bool{
	"paragraph":  true,
	"heading":    true,
	"codeBlock":  true,
	"blockquote": true,
	"listItem":   true,
	"rule":       true,
	"tableRow":   true,
	"panel":      true,
}

// ADFText flattens an Atlassian Document Format value to plain text.
// A JSON string is returned as is; null or malformed input yields "".
func ADFText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	var b strings.Builder
	walkADF(&b, doc)
	return strings.TrimSpace(b.String())
}

func walkADF(b *strings.Builder, node interface{}) {
	switch n := node.(type) {
	case string:
		b.WriteString(n)
	case []interface{}:
		for _, child := range n {
			walkADF(b, child)
		}
	case map[string]interface{}:
		typ, _ := n["type"].(string)
		switch typ {
		case "text":
			s, _ := n["text"].(string)
			b.WriteString(s)
			return
		case "hardBreak":
			b.WriteString("\n")
			return
		case "mention", "emoji", "status", "date":
			b.WriteString(attr(n, "text"))
			return
		case "inlineCard", "blockCard":
			b.WriteString(attr(n, "url"))
			return
		case "listItem":
			b.WriteString("- ")
		case "tableCell", "tableHeader":
			b.WriteString("| ")
		}
		walkADF(b, n["content"])
		if blockNodes[typ] {
			endLine(b)
		}
	}
}

func attr(n map[string]interface{}, key string) string {
	attrs, ok := n["attrs"].(map[string]interface{})
	if !ok {
		return ""
	}
	s, _ := attrs[key].(string)
	return s
}

func endLine(b *strings.Builder) {
	s := b.String()
	if s != "" && !strings.HasSuffix(s, "\n") {
		b.WriteString("\n")
	}
}
