package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/jtriage/internal/agent"
	"github.com/Dicklesworthstone/jtriage/internal/attachments"
	"github.com/Dicklesworthstone/jtriage/internal/config"
	"github.com/Dicklesworthstone/jtriage/internal/jira"
	"github.com/Dicklesworthstone/jtriage/internal/output"
	"github.com/Dicklesworthstone/jtriage/internal/report"
	"github.com/Dicklesworthstone/jtriage/internal/triage"
)

type analyzeOptions struct {
	filters       filterFlags
	attachmentDir string
	noAttachments bool
	outputPath    string
	format        string
	autoAnalyze   bool
	depth         string
	insideAgent   bool
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze TICKET",
		Short: "Fetch a ticket, reduce its logs and assemble the triage document",
		Long: `Fetch a Jira ticket with its comments and attachments, reduce every log
file under the token budget, and print or write the assembled document.

Examples:
  jtriage analyze PROJ-123
  jtriage analyze PROJ-123 --keywords "error,timeout" --output report.md
  jtriage analyze PROJ-123 --attachment-dir ./downloads --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0], &opts)
		},
	}
	opts.filters.register(cmd)
	cmd.Flags().StringVar(&opts.attachmentDir, "attachment-dir", "", "Read attachments from this directory instead of downloading them")
	cmd.Flags().BoolVar(&opts.noAttachments, "no-attachments", false, "Skip attachments entirely")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Write the report to this file (format from extension)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Report format: text, markdown, json, yaml")
	cmd.Flags().BoolVar(&opts.autoAnalyze, "auto-analyze", false, "Run the analysis agent on the document")
	cmd.Flags().StringVar(&opts.depth, "depth", "", "Analysis depth: quick, normal, deep")
	cmd.Flags().BoolVar(&opts.insideAgent, "inside-agent", false, "Running inside an agent session; never start a nested agent")
	return cmd
}

func runAnalyze(cmd *cobra.Command, key string, opts *analyzeOptions) error {
	c, err := opts.filters.apply(cmd, currentConfig())
	if err != nil {
		return err
	}
	format, err := resolveReportFormat(opts.format, opts.outputPath, c)
	if err != nil {
		return err
	}
	depthName := opts.depth
	if depthName == "" {
		depthName = c.Agent.Depth
	}
	depth, err := agent.ParseDepth(depthName)
	if err != nil {
		return err
	}

	noAttachments := opts.noAttachments || c.Attachments.Skip
	client, err := newJiraClient(c)
	if err != nil {
		return err
	}
	var store triage.AttachmentStore
	if !noAttachments && opts.attachmentDir == "" {
		store = newDownloader(c, client, cmd.ErrOrStderr())
	}
	runner, err := buildRunner(c, client, store)
	if err != nil {
		return err
	}

	out, err := runner.Run(cmd.Context(), triage.Request{
		IssueKey:      key,
		Keywords:      c.KeywordSet(),
		LocalDir:      opts.attachmentDir,
		NoAttachments: noAttachments,
		MaxComments:   c.Comments.Max,
		BotAccounts:   c.BotAccounts(),
	})
	if err != nil {
		return err
	}
	doc := &out.Document

	status := GetFormatter(cmd.ErrOrStderr())
	if !IsJSONOutput() {
		printPreview(status, out)
	}

	if opts.autoAnalyze {
		runAgent(cmd.Context(), status, c, doc, depth, opts.insideAgent)
	}

	if IsJSONOutput() && opts.outputPath == "" {
		return output.WriteJSON(cmd.OutOrStdout(), doc)
	}
	content, err := report.Render(*doc, format)
	if err != nil {
		return err
	}
	if opts.outputPath == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), content)
		return err
	}
	if err := report.Write(opts.outputPath, content); err != nil {
		return err
	}
	if IsJSONOutput() {
		return output.WriteJSON(cmd.OutOrStdout(), map[string]interface{}{
			"success": true,
			"issue":   doc.Issue.Key,
			"path":    opts.outputPath,
			"format":  format,
			"tokens":  doc.TotalTokens(),
		})
	}
	status.Success("Report written to %s (%s)", opts.outputPath, format)
	return nil
}

// resolveReportFormat prefers the flag, then the output extension, then the
// configured default.
func resolveReportFormat(flag, path string, c *config.Config) (report.Format, error) {
	if flag == "" && path == "" {
		flag = c.Output.Format
	}
	return report.ResolveFormat(flag, path)
}

// newJiraClient builds a client from the configured credentials.
func newJiraClient(c *config.Config) (*jira.Client, error) {
	if err := requireCredentials(c); err != nil {
		return nil, err
	}
	return jira.NewClient(c.Jira.ClientConfig(slog.Default()))
}

// newDownloader stores attachments under the configured directory, drawing
// progress on w unless JSON output is on.
func newDownloader(c *config.Config, client *jira.Client, w io.Writer) *attachments.Downloader {
	opts := []attachments.Option{attachments.WithLogger(slog.Default())}
	if !IsJSONOutput() {
		opts = append(opts, attachments.WithProgress(w, output.ColorEnabled(w, noColor)))
	}
	return attachments.NewDownloader(client, c.Attachments.Dir, opts...)
}

// buildRunner wires the loader and reducer around issues. A nil store means
// attachments are never downloaded.
func buildRunner(c *config.Config, issues triage.IssueSource, store triage.AttachmentStore) (*triage.Runner, error) {
	reducer, _, err := newReducer(c)
	if err != nil {
		return nil, err
	}
	logger := slog.Default()
	opts := []triage.Option{triage.WithLogger(logger)}
	if store != nil {
		opts = append(opts, triage.WithAttachmentStore(store))
	}
	return triage.NewRunner(issues, attachments.NewLoader(c.Attachments.MaxSizeMB, logger), reducer, opts...), nil
}

// printPreview summarizes what will be analyzed.
func printPreview(f *output.Formatter, out *triage.Outcome) {
	styles := f.Styles()
	w := f.Writer()
	f.Heading("Analysis Preview")
	f.KeyValue("Ticket", out.Issue.Key+" "+output.Truncate(out.Issue.Summary, 60))
	f.KeyValue("Comments", len(out.Comments))
	if len(out.Results) == 0 {
		f.KeyValue("Log files", styles.Warn.Render("None"))
	} else {
		f.KeyValue("Log files", len(out.Results))
		f.KeyValue("Tokens", fmt.Sprintf("~%d", out.Document.TotalTokens()))
		for _, r := range out.Results {
			fmt.Fprintf(w, "    - %s: %d of %d lines (%s)\n",
				r.Name, report.ShownLines(r), r.TotalLines, styles.StrategyStyle(string(r.Strategy)).Render(string(r.Strategy)))
		}
	}
	if out.Download != nil && out.Download.Total > 0 {
		f.KeyValue("Downloaded", fmt.Sprintf("%d of %d (%d reused, %d failed)",
			out.Download.Downloaded(), out.Download.Total, out.Download.Reused, len(out.Download.Failed)))
	}
	for _, msg := range out.Document.Warnings {
		f.Warning("%s", msg)
	}
	fmt.Fprintln(w)
}

// runAgent records the analysis, or a warning when it could not run.
func runAgent(ctx context.Context, f *output.Formatter, c *config.Config, doc *report.Document, depth agent.Depth, inside bool) {
	client := agent.NewClient(
		agent.WithBinaryPath(c.Agent.Command),
		agent.WithArgs(c.Agent.Args...),
		agent.WithTimeout(c.Agent.Timeout()),
		agent.WithLogger(slog.Default()),
	)
	if !IsJSONOutput() {
		f.KeyValue("Agent", fmt.Sprintf("%s (%s analysis)", client.Binary(), depth))
	}
	resp, err := client.Analyze(ctx, agent.Request{
		Prompt:              agent.BuildPrompt(doc.Issue.Key, depth),
		Document:            doc.Input,
		ParentSessionActive: inside,
	})
	if err != nil {
		msg := "analysis skipped: " + err.Error()
		doc.Warnings = append(doc.Warnings, msg)
		if !IsJSONOutput() {
			f.Warning("%s", msg)
		}
		return
	}
	doc.Analysis = strings.TrimSpace(resp.Output)
	if !IsJSONOutput() {
		f.Success("Analysis complete in %s", resp.Duration.Round(time.Millisecond))
	}
}
