package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/jtriage/internal/attachments"
	"github.com/Dicklesworthstone/jtriage/internal/config"
	"github.com/Dicklesworthstone/jtriage/internal/jira"
	"github.com/Dicklesworthstone/jtriage/internal/report"
	"github.com/Dicklesworthstone/jtriage/internal/triage"
	"github.com/Dicklesworthstone/jtriage/internal/util"
	"github.com/Dicklesworthstone/jtriage/internal/watcher"
)

// cachedIssues fetches the ticket and its comments once per watch session.
type cachedIssues struct {
	src triage.IssueSource

	mu       sync.Mutex
	issue    *jira.Issue
	comments []jira.Comment
	fetched  bool
}

func (c *cachedIssues) GetIssue(ctx context.Context, key string) (*jira.Issue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.issue != nil {
		return c.issue, nil
	}
	issue, err := c.src.GetIssue(ctx, key)
	if err != nil {
		return nil, err
	}
	c.issue = issue
	return issue, nil
}

func (c *cachedIssues) GetComments(ctx context.Context, key string) ([]jira.Comment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetched {
		return c.comments, nil
	}
	comments, err := c.src.GetComments(ctx, key)
	if err != nil {
		return nil, err
	}
	c.comments, c.fetched = comments, true
	return comments, nil
}

func newWatchCmd() *cobra.Command {
	var (
		filters       filterFlags
		attachmentDir string
		outputPath    string
		format        string
		debounceMS    int
	)
	cmd := &cobra.Command{
		Use:   "watch TICKET",
		Short: "Rebuild the report whenever attachment files change",
		Long: `Watch an attachment directory and regenerate the report each time files
are added or changed. The ticket and comments are fetched once. Stop with Ctrl-C.

Examples:
  jtriage watch PROJ-123 --output report.md
  jtriage watch PROJ-123 --attachment-dir ./logs --output report.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.ToUpper(strings.TrimSpace(args[0]))
			c, err := filters.apply(cmd, currentConfig())
			if err != nil {
				return err
			}
			if outputPath == "" {
				return fmt.Errorf("--output is required")
			}
			f, err := resolveReportFormat(format, outputPath, c)
			if err != nil {
				return err
			}
			dir := attachmentDir
			if dir == "" {
				dir = defaultAttachmentDir(c, key)
			}

			client, err := newJiraClient(c)
			if err != nil {
				return err
			}
			runner, err := buildRunner(c, &cachedIssues{src: client}, nil)
			if err != nil {
				return err
			}

			status := GetFormatter(cmd.ErrOrStderr())
			rebuild := func(ctx context.Context) {
				if err := writeWatchReport(ctx, runner, c, key, dir, outputPath, f); err != nil {
					slog.Error("rebuild failed", "issue", key, "error", err)
					if !IsJSONOutput() {
						status.Warning("rebuild failed: %v", err)
					}
					return
				}
				if !IsJSONOutput() {
					status.Success("%s updated", outputPath)
				}
			}

			ctx := cmd.Context()
			outAbs, _ := filepath.Abs(outputPath)
			w, err := watcher.New(dir,
				watcher.WithDebounce(debounceDuration(debounceMS)),
				watcher.WithLogger(slog.Default()),
				watcher.WithIgnore(func(name string) bool {
					return name == attachments.MetadataFileName || name == filepath.Base(outAbs)
				}),
				watcher.WithCallback(func(ctx context.Context, paths []string) {
					slog.Info("attachments changed", "files", len(paths))
					rebuild(ctx)
				}),
			)
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()
			rebuild(ctx)

			if !IsJSONOutput() {
				status.KeyValue("Watching", dir)
			}
			<-ctx.Done()
			return nil
		},
	}
	filters.register(cmd)
	cmd.Flags().StringVar(&attachmentDir, "attachment-dir", "", "Directory to watch (default <attachments.dir>/<TICKET>/attachments)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Report file to regenerate")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Report format: text, markdown, json, yaml")
	cmd.Flags().IntVar(&debounceMS, "debounce-ms", 0, "Quiet period before rebuilding, in milliseconds")
	return cmd
}

func defaultAttachmentDir(c *config.Config, key string) string {
	return filepath.Join(c.Attachments.Dir, util.SanitizeFilename(key), "attachments")
}

func debounceDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func writeWatchReport(ctx context.Context, runner *triage.Runner, c *config.Config, key, dir, path string, f report.Format) error {
	out, err := runner.Run(ctx, triage.Request{
		IssueKey:    key,
		Keywords:    c.KeywordSet(),
		LocalDir:    dir,
		MaxComments: c.Comments.Max,
		BotAccounts: c.BotAccounts(),
	})
	if err != nil {
		return err
	}
	content, err := report.Render(out.Document, f)
	if err != nil {
		return err
	}
	slog.Debug("report rebuilt", "files", len(out.Files), "tokens", out.Document.TotalTokens(), "bytes", len(content))
	return report.Write(path, content)
}
