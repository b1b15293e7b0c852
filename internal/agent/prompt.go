package agent

import (
	"fmt"
	"strings"
)

// Depth controls how thorough the requested analysis is.
type Depth string

const (
	DepthQuick  Depth = "quick"
	DepthNormal Depth = "normal"
	DepthDeep   Depth = "deep"
)

// ParseDepth validates a depth name; empty means normal.
func ParseDepth(s string) (Depth, error) {
	switch d := Depth(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DepthNormal, nil
	case DepthQuick, DepthNormal, DepthDeep:
		return d, nil
	}
	return "", fmt.Errorf("unknown depth %q (want quick, normal or deep)", s)
}

var depthInstructions = map[Depth]string{
	DepthQuick: `Give a short triage:
1. One-paragraph summary of the failure.
2. The single most likely root cause, citing the log lines that support it.
3. One next step.`,
	DepthNormal: `Provide a root cause analysis:
1. Summary of the reported problem.
2. Timeline of relevant events reconstructed from the logs.
3. Most likely root cause, citing file names and log lines.
4. Other contributing factors.
5. Recommended fix and how to verify it.`,
	DepthDeep: `Provide an in-depth root cause analysis:
1. Summary of the reported problem and its impact.
2. Detailed timeline of events across all log files.
3. Root cause with supporting evidence from each relevant file.
4. Alternative hypotheses and why they are less likely.
5. Affected components and blast radius.
6. Recommended fix, regression tests, and monitoring to add.
7. Open questions that need more data, naming what to collect.`,
}

// BuildPrompt returns the instruction text sent with the triage document.
func BuildPrompt(issueKey string, depth Depth) string {
	instr, ok := depthInstructions[depth]
	if !ok {
		instr = depthInstructions[DepthNormal]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are analyzing Jira bug ticket %s. ", issueKey)
	b.WriteString("The ticket details, recent comments and reduced log excerpts follow on standard input. ")
	b.WriteString("Log sections note which reduction strategy produced them; sampled or truncated sections are incomplete.\n\n")
	b.WriteString(instr)
	b.WriteString("\n")
	return b.String()
}
