package triage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Dicklesworthstone/jtriage/internal/attachments"
	"github.com/Dicklesworthstone/jtriage/internal/jira"
	"github.com/Dicklesworthstone/jtriage/internal/logfilter"
)

type fakeIssues struct {
	issue       *jira.Issue
	comments    []jira.Comment
	issueErr    error
	commentsErr error
}

func (f *fakeIssues) GetIssue(ctx context.Context, key string) (*jira.Issue, error) {
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	return f.issue, nil
}

func (f *fakeIssues) GetComments(ctx context.Context, key string) ([]jira.Comment, error) {
	return f.comments, f.commentsErr
}

// fakeStore writes each attachment's Content as the file body.
type fakeStore struct {
	base   string
	called int
}

func (s *fakeStore) IssueDir(key string) string      { return filepath.Join(s.base, key) }
func (s *fakeStore) AttachmentDir(key string) string { return filepath.Join(s.base, key, "attachments") }

func (s *fakeStore) DownloadAll(ctx context.Context, key string, atts []jira.Attachment) attachments.Summary {
	s.called++
	sum := attachments.Summary{Dir: s.AttachmentDir(key), Total: len(atts)}
	os.MkdirAll(sum.Dir, 0o755)
	for _, a := range atts {
		if a.Content == "" {
			sum.Failed = append(sum.Failed, attachments.Failure{Filename: a.Filename, Error: "no content"})
			continue
		}
		p := filepath.Join(sum.Dir, a.Filename)
		os.WriteFile(p, []byte(a.Content), 0o644)
		sum.Files = append(sum.Files, p)
	}
	return sum
}

func newRunner(t *testing.T, issues IssueSource, opts ...Option) *Runner {
	t.Helper()
	reducer, err := logfilter.NewReducer(logfilter.DefaultOptions(logfilter.NewBudget(500)))
	if err != nil {
		t.Fatalf("NewReducer() error = %v", err)
	}
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time { return fixed })}, opts...)
	return NewRunner(issues, attachments.NewLoader(10, nil), reducer, opts...)
}

func sampleIssue() *jira.Issue {
	return &jira.Issue{
		Key:     "PROJ-7",
		Summary: "Checkout fails",
		Status:  "Open",
		Attachments: []jira.Attachment{
			{Filename: "app.log", Content: "boot\nERROR payment timeout\nshutdown\n"},
			{Filename: "broken.log"},
		},
	}
}

func TestRunDownloadsReducesAndAssembles(t *testing.T) {
	issues := &fakeIssues{
		issue: sampleIssue(),
		comments: []jira.Comment{
			{Author: "Automation for Jira", Body: "auto"},
			{Author: "Lee", Body: "first"},
			{Author: "Sam", Body: "second"},
		},
	}
	store := &fakeStore{base: t.TempDir()}
	r := newRunner(t, issues, WithAttachmentStore(store))

	out, err := r.Run(context.Background(), Request{
		IssueKey:    " proj-7 ",
		Keywords:    logfilter.NewKeywordSet(false, "timeout"),
		MaxComments: 1,
		BotAccounts: jira.DefaultBotAccounts(),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if store.called != 1 {
		t.Errorf("DownloadAll called %d times", store.called)
	}
	if len(out.Comments) != 1 || out.Comments[0].Author != "Sam" {
		t.Errorf("Comments = %+v, want only the latest human comment", out.Comments)
	}
	if len(out.Results) != 1 || out.Results[0].Name != "app.log" || out.Results[0].Strategy != logfilter.StrategyErrors {
		t.Fatalf("Results = %+v", out.Results)
	}
	if out.Stats.Count != 1 || out.Stats.TotalLines != 3 {
		t.Errorf("Stats = %+v", out.Stats)
	}
	if len(out.Document.Warnings) != 1 || !strings.Contains(out.Document.Warnings[0], "broken.log") {
		t.Errorf("Warnings = %v", out.Document.Warnings)
	}
	if out.MetadataPath == "" {
		t.Error("metadata not saved")
	} else if _, err := os.Stat(out.MetadataPath); err != nil {
		t.Errorf("metadata file: %v", err)
	}

	doc := out.Document
	if doc.MaxTokens != 500 || doc.Keywords[0] != "timeout" || doc.GeneratedAt.Year() != 2024 {
		t.Errorf("document fields = %d %v %v", doc.MaxTokens, doc.Keywords, doc.GeneratedAt)
	}
	for _, want := range []string{"TICKET: PROJ-7", "- Sam: second", "--- app.log (strategy: errors) ---", "ERROR payment timeout"} {
		if !strings.Contains(doc.Input, want) {
			t.Errorf("document input missing %q:\n%s", want, doc.Input)
		}
	}
}

func TestRunLocalDirSkipsDownload(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "b.log"), []byte("two\n"), 0o644)
	os.WriteFile(filepath.Join(dir, "a.log"), []byte("one\n"), 0o644)
	store := &fakeStore{base: t.TempDir()}
	r := newRunner(t, &fakeIssues{issue: sampleIssue()}, WithAttachmentStore(store))

	out, err := r.Run(context.Background(), Request{IssueKey: "PROJ-7", LocalDir: dir})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if store.called != 0 {
		t.Error("download should be skipped when a local directory is given")
	}
	if len(out.Results) != 2 || out.Results[0].Name != "a.log" {
		t.Errorf("Results = %+v", out.Results)
	}
	if out.Results[0].Strategy != logfilter.StrategySampling {
		t.Errorf("no-keyword file strategy = %s", out.Results[0].Strategy)
	}
}

func TestRunNoAttachments(t *testing.T) {
	store := &fakeStore{base: t.TempDir()}
	r := newRunner(t, &fakeIssues{issue: sampleIssue()}, WithAttachmentStore(store))
	out, err := r.Run(context.Background(), Request{IssueKey: "PROJ-7", NoAttachments: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if store.called != 0 || len(out.Results) != 0 {
		t.Errorf("attachments processed: called=%d results=%d", store.called, len(out.Results))
	}
	if strings.Contains(out.Document.Input, "LOG FILES:") {
		t.Error("document should have no log section")
	}
}

func TestRunCommentFailureDegrades(t *testing.T) {
	r := newRunner(t, &fakeIssues{issue: sampleIssue(), commentsErr: errors.New("503")})
	out, err := r.Run(context.Background(), Request{IssueKey: "PROJ-7", NoAttachments: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out.Comments) != 0 || len(out.Document.Warnings) != 1 {
		t.Errorf("comments=%v warnings=%v", out.Comments, out.Document.Warnings)
	}
}

func TestRunIssueErrorAborts(t *testing.T) {
	r := newRunner(t, &fakeIssues{issueErr: jira.ErrNotFound})
	_, err := r.Run(context.Background(), Request{IssueKey: "PROJ-404"})
	if !errors.Is(err, jira.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := r.Run(context.Background(), Request{IssueKey: "  "}); err == nil {
		t.Error("empty key should fail")
	}
}

func TestRunMissingLocalDirWarns(t *testing.T) {
	r := newRunner(t, &fakeIssues{issue: sampleIssue()})
	out, err := r.Run(context.Background(), Request{IssueKey: "PROJ-7", LocalDir: filepath.Join(t.TempDir(), "gone")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out.Document.Warnings) != 1 || !strings.Contains(out.Document.Warnings[0], "could not read attachments") {
		t.Errorf("Warnings = %v", out.Document.Warnings)
	}
}

func TestFormatWarning(t *testing.T) {
	if got := formatWarning("failed", "file", "a.log", "error", "boom"); got != "failed file=a.log error=boom" {
		t.Errorf("formatWarning() = %q", got)
	}
}
