package attachments

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/jtriage/internal/jira"
	"github.com/Dicklesworthstone/jtriage/internal/logfilter"
)

type fakeFetcher struct {
	bodies map[string]string
	fail   map[string]error
	calls  []string
}

func (f *fakeFetcher) Download(ctx context.Context, url string, w io.Writer, onProgress func(int64)) (int64, error) {
	f.calls = append(f.calls, url)
	if err := f.fail[url]; err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, f.bodies[url])
	if onProgress != nil {
		onProgress(int64(n))
	}
	return int64(n), err
}

func TestIsDownloadable(t *testing.T) {
	tests := []struct {
		att  jira.Attachment
		want bool
	}{
		{jira.Attachment{Filename: "app.log", MimeType: "application/octet-stream"}, true},
		{jira.Attachment{Filename: "dump", MimeType: "text/plain; charset=utf-8"}, true},
		{jira.Attachment{Filename: "logs.TGZ"}, true},
		{jira.Attachment{Filename: "shot.png", MimeType: "image/png"}, false},
		{jira.Attachment{Filename: "report.pdf", MimeType: "application/pdf"}, false},
	}
	for _, tt := range tests {
		if got := IsDownloadable(tt.att); got != tt.want {
			t.Errorf("IsDownloadable(%+v) = %v, want %v", tt.att, got, tt.want)
		}
	}
}

func TestDownloadAll(t *testing.T) {
	base := t.TempDir()
	f := &fakeFetcher{
		bodies: map[string]string{"u1": "first\n", "u2": "second\n"},
		fail:   map[string]error{"u3": errors.New("HTTP 500")},
	}
	var progress bytes.Buffer
	d := NewDownloader(f, base, WithProgress(&progress, false))

	atts := []jira.Attachment{
		{ID: "1", Filename: "app.log", Size: 6, Content: "u1"},
		{ID: "2", Filename: "app.log", Size: 7, Content: "u2"},
		{ID: "3", Filename: "worker.log", Size: 3, Content: "u3"},
		{ID: "4", Filename: "shot.png", MimeType: "image/png", Content: "u4"},
	}
	sum := d.DownloadAll(context.Background(), "PROJ-1", atts)

	wantDir := filepath.Join(base, "PROJ-1", "attachments")
	if sum.Dir != wantDir {
		t.Errorf("Dir = %s, want %s", sum.Dir, wantDir)
	}
	if sum.Total != 3 || sum.Downloaded() != 2 || len(sum.Failed) != 1 || len(sum.Ignored) != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Failed[0].Filename != "worker.log" {
		t.Errorf("Failed = %+v", sum.Failed)
	}
	data, err := os.ReadFile(filepath.Join(wantDir, "2-app.log"))
	if err != nil || string(data) != "second\n" {
		t.Errorf("duplicate filename not disambiguated: %q, %v", data, err)
	}
	if !strings.Contains(progress.String(), "app.log (6 B)") {
		t.Errorf("progress output = %q", progress.String())
	}

	entries, _ := os.ReadDir(wantDir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".download-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestDownloadAllReusesExisting(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "PROJ-2", "attachments")
	os.MkdirAll(dir, 0o755)
	os.WriteFile(filepath.Join(dir, "app.log"), []byte("cached"), 0o644)

	f := &fakeFetcher{bodies: map[string]string{"u1": "fresh!"}}
	sum := NewDownloader(f, base).DownloadAll(context.Background(), "PROJ-2", []jira.Attachment{
		{ID: "1", Filename: "app.log", Size: 6, Content: "u1"},
	})
	if sum.Reused != 1 || len(f.calls) != 0 {
		t.Fatalf("expected reuse without fetching, summary=%+v calls=%v", sum, f.calls)
	}
}

func TestDownloadAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakeFetcher{}
	sum := NewDownloader(f, t.TempDir()).DownloadAll(ctx, "PROJ-3", []jira.Attachment{
		{ID: "1", Filename: "a.log", Content: "u1"},
		{ID: "2", Filename: "b.log", Content: "u2"},
	})
	if len(sum.Failed) != 2 || len(f.calls) != 0 {
		t.Fatalf("summary = %+v calls = %v", sum, f.calls)
	}
}

func TestSaveTicketMetadata(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "PROJ-9")
	issue := jira.Issue{
		Key: "PROJ-9", Summary: "Crash", Status: "Open", Priority: "High",
		Reporter: "Dana", Assignee: jira.Unassigned, Created: "c", Updated: "u",
		Labels: []string{"prod", "p1"}, Description: "It crashed.",
	}
	comments := []jira.Comment{{Author: "Lee", Created: "t1", Body: "Seen again"}}

	path, err := SaveTicketMetadata(dir, issue, comments)
	if err != nil {
		t.Fatalf("SaveTicketMetadata() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	got := string(data)
	for _, want := range []string{
		"TICKET: PROJ-9\n",
		"ASSIGNEE: Unassigned\n",
		"LABELS: prod, p1\n",
		"\nDESCRIPTION:\nIt crashed.\n",
		"\n\nCOMMENTS (1):\n",
		"\n--- Comment 1 by Lee at t1 ---\nSeen again\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("metadata missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "COMPONENTS:") {
		t.Error("empty components should be omitted")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  LogFormat
	}{
		{"empty", nil, FormatPlainText},
		{"json", []string{`{"level":"info"}`, `{"level":"error"}`, ""}, FormatJSON},
		{"error", []string{"2024 INFO start", "2024 ERROR failed"}, FormatErrorLog},
		{"exception", []string{"java.lang.IllegalStateException: bad"}, FormatErrorLog},
		{"structured", []string{"", "2024 DEBUG tick", "2024 WARN slow"}, FormatStructured},
		{"plain", []string{"hello", "world"}, FormatPlainText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.lines); got != tt.want {
				t.Errorf("DetectFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComputeStats(t *testing.T) {
	files := []logfilter.LogFile{
		logfilter.NewLogFile("a.log", []byte("1\n2\n")),
		logfilter.NewLogFile("b.log", []byte("3\n")),
	}
	s := ComputeStats(files)
	if s.Count != 2 || s.TotalLines != 3 || s.TotalBytes != 6 || len(s.Files) != 2 {
		t.Errorf("ComputeStats() = %+v", s)
	}
}
