package attachments

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeZip(t *testing.T, path string, members map[string]string, order []string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		w.Write([]byte(members[name]))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func tarBytes(t *testing.T, members map[string]string, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, name := range order {
		body := members[name]
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatalf("tar header: %v", err)
		}
		tw.Write([]byte(body))
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	return buf.Bytes()
}

func gzipBytes(t *testing.T, name string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Name = name
	gw.Write(data)
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestClassify(t *testing.T) {
	tests := map[string]Kind{
		"app.log":     KindText,
		"APP.TXT":     KindText,
		"x.trace":     KindText,
		"logs.zip":    KindZip,
		"logs.tar":    KindTar,
		"logs.tar.gz": KindTarGz,
		"logs.tgz":    KindTarGz,
		"app.log.gz":  KindGzip,
		"shot.png":    KindUnknown,
		"noext":       KindUnknown,
	}
	for name, want := range tests {
		if got := Classify(name); got != want {
			t.Errorf("Classify(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestLoadText(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "app.log")
	os.WriteFile(p, []byte("one\r\ntwo\n"), 0o644)

	files, err := NewLoader(0, nil).Load(p, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(files) != 1 || files[0].Name != "app.log" {
		t.Fatalf("Load() = %+v", files)
	}
	if got := strings.Join(files[0].Lines, "|"); got != "one|two" {
		t.Errorf("lines = %q", got)
	}
}

func TestLoadZipMembers(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "logs.zip")
	writeZip(t, p, map[string]string{
		"server/app.log": "ERROR boom\n",
		"readme.md":      "ignored",
		"worker.out":     "ok\n",
	}, []string{"server/app.log", "readme.md", "worker.out"})

	files, err := NewLoader(0, nil).Load(p, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2: %+v", len(files), files)
	}
	if files[0].Name != "logs.zip/server/app.log" || files[1].Name != "logs.zip/worker.out" {
		t.Errorf("names = %q, %q", files[0].Name, files[1].Name)
	}
}

func TestLoadTarAndTarGz(t *testing.T) {
	dir := t.TempDir()
	data := tarBytes(t, map[string]string{"a.log": "a\n", "b.bin": "x"}, []string{"a.log", "b.bin"})
	os.WriteFile(filepath.Join(dir, "logs.tar"), data, 0o644)
	os.WriteFile(filepath.Join(dir, "logs.tgz"), gzipBytes(t, "", data), 0o644)

	l := NewLoader(0, nil)
	for _, name := range []string{"logs.tar", "logs.tgz"} {
		files, err := l.Load(filepath.Join(dir, name), "")
		if err != nil {
			t.Fatalf("Load(%s) error = %v", name, err)
		}
		if len(files) != 1 || files[0].Name != name+"/a.log" {
			t.Errorf("Load(%s) = %+v", name, files)
		}
	}
}

func TestLoadGzip(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "app.log.gz")
	os.WriteFile(p, gzipBytes(t, "", []byte("line\n")), 0o644)

	files, err := NewLoader(0, nil).Load(p, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(files) != 1 || files[0].Name != "app.log.gz/app.log" || files[0].TotalLines() != 1 {
		t.Errorf("Load() = %+v", files)
	}
}

func TestLoadCorruptArchiveYieldsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "broken.zip")
	os.WriteFile(p, []byte("not a zip"), 0o644)

	files, err := NewLoader(0, nil).Load(p, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(files) != 1 || files[0].Name != "broken.zip" || files[0].TotalLines() != 0 {
		t.Errorf("Load() = %+v", files)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "shot.png")
	os.WriteFile(png, []byte("x"), 0o644)
	if _, err := NewLoader(0, nil).Load(png, ""); !errors.Is(err, ErrUnsupported) {
		t.Errorf("png error = %v, want ErrUnsupported", err)
	}

	big := filepath.Join(dir, "big.log")
	os.WriteFile(big, bytes.Repeat([]byte("x"), (1<<20)+1), 0o644)
	if _, err := NewLoader(1, nil).Load(big, ""); !errors.Is(err, ErrTooLarge) {
		t.Errorf("big error = %v, want ErrTooLarge", err)
	}

	if _, err := NewLoader(0, nil).Load(filepath.Join(dir, "missing.log"), ""); err == nil {
		t.Error("missing file should error")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "nested"), 0o755)
	os.MkdirAll(filepath.Join(dir, ".cache"), 0o755)
	os.WriteFile(filepath.Join(dir, "b.log"), []byte("b\n"), 0o644)
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a\n"), 0o644)
	os.WriteFile(filepath.Join(dir, "nested", "c.err"), []byte("c\n"), 0o644)
	os.WriteFile(filepath.Join(dir, ".cache", "d.log"), []byte("d\n"), 0o644)
	os.WriteFile(filepath.Join(dir, ".download-123"), []byte("partial"), 0o644)
	os.WriteFile(filepath.Join(dir, "image.png"), []byte("png"), 0o644)
	os.WriteFile(filepath.Join(dir, MetadataFileName), []byte("TICKET: X\n"), 0o644)

	files, err := NewLoader(0, nil).LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	if got := strings.Join(names, ","); got != "a.txt,b.log,nested/c.err" {
		t.Errorf("LoadDir() names = %s", got)
	}
}

func TestLoadDirMissing(t *testing.T) {
	if _, err := NewLoader(0, nil).LoadDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestLoadPaths(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "x.log")
	os.WriteFile(good, []byte("x\n"), 0o644)
	files, errs := NewLoader(0, nil).LoadPaths([]string{good, filepath.Join(dir, "y.png")})
	if len(files) != 1 || len(errs) != 1 {
		t.Fatalf("LoadPaths() = %d files, %d errors", len(files), len(errs))
	}
}
