// Package attachments downloads Jira attachments and turns them into log
// files the reducer can work with.
package attachments

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Dicklesworthstone/jtriage/internal/jira"
	"github.com/Dicklesworthstone/jtriage/internal/output"
	"github.com/Dicklesworthstone/jtriage/internal/util"
)

var downloadableTypes = map[string]bool{
	"text/plain":                   true,
	"text/x-log":                   true,
	"application/x-log":            true,
	"application/log":              true,
	"application/zip":              true,
	"application/x-zip-compressed": true,
	"application/gzip":             true,
	"application/x-gzip":           true,
	"application/x-tar":            true,
}

var downloadableExts = map[string]bool{
	".log": true, ".txt": true, ".out": true, ".err": true, ".trace": true,
	".zip": true, ".gz": true, ".tar": true, ".tgz": true,
}

// IsDownloadable reports whether an attachment looks like a log or an
// archive of logs, by MIME type or by extension.
func IsDownloadable(att jira.Attachment) bool {
	mime := strings.ToLower(strings.TrimSpace(att.MimeType))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if downloadableTypes[mime] {
		return true
	}
	return downloadableExts[strings.ToLower(filepath.Ext(att.Filename))]
}

// Fetcher streams an attachment body. *jira.Client satisfies it.
type Fetcher interface {
	Download(ctx context.Context, url string, w io.Writer, onProgress func(done int64)) (int64, error)
}

// Failure records an attachment that could not be fetched.
type Failure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// Summary describes one DownloadAll run.
type Summary struct {
	Dir     string    `json:"dir"`
	Total   int       `json:"total"`
	Files   []string  `json:"files"`
	Reused  int       `json:"reused"`
	Ignored []string  `json:"ignored,omitempty"`
	Failed  []Failure `json:"failed,omitempty"`
}

// Downloaded is the number of attachments now on disk, reused ones included.
func (s Summary) Downloaded() int {
	return len(s.Files)
}

// Downloader saves attachments under <base>/<KEY>/attachments.
type Downloader struct {
	fetcher  Fetcher
	baseDir  string
	progress *output.Progress
	logger   *slog.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithProgress draws a progress bar on w.
func WithProgress(w io.Writer, color bool) Option {
	return func(d *Downloader) {
		if w != nil {
			d.progress = output.NewProgress(w, color)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Downloader) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDownloader creates a downloader rooted at baseDir.
func NewDownloader(f Fetcher, baseDir string, opts ...Option) *Downloader {
	d := &Downloader{
		fetcher: f,
		baseDir: baseDir,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IssueDir is where an issue's metadata lives.
func (d *Downloader) IssueDir(issueKey string) string {
	return filepath.Join(d.baseDir, util.SanitizeFilename(issueKey))
}

// AttachmentDir is where an issue's attachments are stored.
func (d *Downloader) AttachmentDir(issueKey string) string {
	return filepath.Join(d.IssueDir(issueKey), "attachments")
}

// DownloadAll fetches every downloadable attachment. Files already present
// with the expected size are reused. Individual failures are recorded in the
// summary; cancellation stops the run and marks the rest as failed.
func (d *Downloader) DownloadAll(ctx context.Context, issueKey string, atts []jira.Attachment) Summary {
	sum := Summary{Dir: d.AttachmentDir(issueKey)}

	var wanted []jira.Attachment
	for _, a := range atts {
		if IsDownloadable(a) {
			wanted = append(wanted, a)
			continue
		}
		d.logger.Debug("skipping attachment", "file", a.Filename, "mime", a.MimeType)
		sum.Ignored = append(sum.Ignored, a.Filename)
	}
	sum.Total = len(wanted)
	if len(wanted) == 0 {
		return sum
	}

	if err := os.MkdirAll(sum.Dir, 0o755); err != nil {
		for _, a := range wanted {
			sum.Failed = append(sum.Failed, Failure{Filename: a.Filename, Error: err.Error()})
		}
		return sum
	}

	used := make(map[string]bool, len(wanted))
	for i, a := range wanted {
		if err := ctx.Err(); err != nil {
			for _, rest := range wanted[i:] {
				sum.Failed = append(sum.Failed, Failure{Filename: rest.Filename, Error: err.Error()})
			}
			break
		}

		name := util.SanitizeFilename(a.Filename)
		if used[name] {
			name = util.SanitizeFilename(a.ID + "-" + a.Filename)
		}
		used[name] = true
		path := filepath.Join(sum.Dir, name)

		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() && info.Size() == a.Size {
			d.logger.Debug("attachment already present", "file", path)
			if d.progress != nil {
				d.progress.Start(name)
				d.progress.Finish(a.Size, true)
			}
			sum.Files = append(sum.Files, path)
			sum.Reused++
			continue
		}

		if err := d.fetch(ctx, a, path, name); err != nil {
			d.logger.Warn("attachment download failed", "file", a.Filename, "error", err)
			sum.Failed = append(sum.Failed, Failure{Filename: a.Filename, Error: err.Error()})
			continue
		}
		sum.Files = append(sum.Files, path)
	}
	return sum
}

// fetch downloads into a temp file next to path, then renames it into place.
func (d *Downloader) fetch(ctx context.Context, a jira.Attachment, path, label string) error {
	if a.Content == "" {
		return fmt.Errorf("attachment %s has no content URL", a.Filename)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	var onProgress func(int64)
	if d.progress != nil {
		d.progress.Start(label)
		onProgress = func(done int64) { d.progress.Update(done, a.Size) }
	}
	n, err := d.fetcher.Download(ctx, a.Content, tmp, onProgress)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if a.Size > 0 && n != a.Size {
		d.logger.Debug("attachment size differs from metadata", "file", a.Filename, "expected", a.Size, "got", n)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	if d.progress != nil {
		d.progress.Finish(n, false)
	}
	return nil
}
