// Package triage wires ticket retrieval, attachment loading, log reduction and
// report assembly into one sequential run.
package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Dicklesworthstone/jtriage/internal/attachments"
	"github.com/Dicklesworthstone/jtriage/internal/jira"
	"github.com/Dicklesworthstone/jtriage/internal/logfilter"
	"github.com/Dicklesworthstone/jtriage/internal/report"
)

// IssueSource retrieves tickets and their comments.
type IssueSource interface {
	GetIssue(ctx context.Context, key string) (*jira.Issue, error)
	GetComments(ctx context.Context, key string) ([]jira.Comment, error)
}

// AttachmentStore downloads an issue's attachments to local disk.
type AttachmentStore interface {
	IssueDir(issueKey string) string
	AttachmentDir(issueKey string) string
	DownloadAll(ctx context.Context, issueKey string, atts []jira.Attachment) attachments.Summary
}

// FileLoader turns a directory of attachments into log files.
type FileLoader interface {
	LoadDir(dir string) ([]logfilter.LogFile, error)
}

// Request describes one run.
type Request struct {
	IssueKey string
	Keywords logfilter.KeywordSet
	// LocalDir, when set, is read instead of downloading attachments.
	LocalDir      string
	NoAttachments bool
	MaxComments   int
	BotAccounts   []string
}

// Outcome is everything a run produced.
type Outcome struct {
	Issue        jira.Issue
	Comments     []jira.Comment
	Files        []logfilter.LogFile
	Results      []logfilter.Result
	Document     report.Document
	Stats        attachments.Stats
	Download     *attachments.Summary
	AttachDir    string
	MetadataPath string
}

// Runner executes triage runs. Steps run one after another; there is no
// concurrency inside a run.
type Runner struct {
	issues  IssueSource
	store   AttachmentStore
	loader  FileLoader
	reducer *logfilter.Reducer
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithAttachmentStore enables downloading attachments.
func WithAttachmentStore(s AttachmentStore) Option {
	return func(r *Runner) { r.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source used for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner.
func NewRunner(issues IssueSource, loader FileLoader, reducer *logfilter.Reducer, opts ...Option) *Runner {
	r := &Runner{
		issues:  issues,
		loader:  loader,
		reducer: reducer,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run fetches the issue, gathers its logs, reduces them and assembles the
// document. Only a failure to fetch the issue itself aborts the run.
func (r *Runner) Run(ctx context.Context, req Request) (*Outcome, error) {
	key := strings.ToUpper(strings.TrimSpace(req.IssueKey))
	if key == "" {
		return nil, errors.New("issue key is required")
	}

	issue, err := r.issues.GetIssue(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", key, err)
	}
	out := &Outcome{Issue: *issue}
	var warnings []string
	warn := func(msg string, args ...any) {
		r.logger.Warn(msg, args...)
		warnings = append(warnings, formatWarning(msg, args...))
	}

	comments, err := r.issues.GetComments(ctx, key)
	if err != nil {
		warn("could not fetch comments", "issue", key, "error", err)
	}
	comments = jira.FilterComments(comments, req.BotAccounts)
	out.Comments = jira.LastComments(comments, req.MaxComments)

	switch {
	case req.NoAttachments:
		r.logger.Debug("attachments disabled", "issue", key)
	case req.LocalDir != "":
		out.AttachDir = req.LocalDir
	case r.store != nil:
		sum := r.store.DownloadAll(ctx, key, issue.Attachments)
		out.Download = &sum
		out.AttachDir = sum.Dir
		for _, f := range sum.Failed {
			warn("attachment download failed", "file", f.Filename, "error", f.Error)
		}
		if path, err := attachments.SaveTicketMetadata(r.store.IssueDir(key), out.Issue, out.Comments); err != nil {
			warn("could not save ticket metadata", "error", err)
		} else {
			out.MetadataPath = path
		}
	}

	if out.AttachDir != "" {
		files, err := r.loader.LoadDir(out.AttachDir)
		switch {
		case err != nil && errors.Is(err, os.ErrNotExist) && out.Download != nil:
			r.logger.Debug("no attachment directory", "dir", out.AttachDir)
		case err != nil:
			warn("could not read attachments", "dir", out.AttachDir, "error", err)
		}
		out.Files = files
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out.Results = r.reducer.ReduceAll(out.Files, req.Keywords)
	out.Stats = attachments.ComputeStats(out.Files)

	doc := report.NewDocument(out.Issue, out.Comments, out.Results, out.Stats)
	doc.Keywords = req.Keywords.Terms
	doc.MaxTokens = r.reducer.Budget().MaxTokens
	doc.GeneratedAt = r.now()
	doc.Warnings = warnings
	out.Document = doc

	r.logger.Info("triage complete", "issue", key, "files", len(out.Files), "tokens", doc.TotalTokens())
	return out, nil
}

func formatWarning(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	return b.String()
}
