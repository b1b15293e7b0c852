package attachments

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Dicklesworthstone/jtriage/internal/logfilter"
	"github.com/Dicklesworthstone/jtriage/internal/util"
)

var (
	// ErrTooLarge is returned for files above the loader's size cap.
	ErrTooLarge = errors.New("attachment too large")
	// ErrUnsupported is returned for files that are neither text logs nor
	// supported archives.
	ErrUnsupported = errors.New("unsupported attachment type")
)

// DefaultMaxSizeMB is the default per-file size cap.
const DefaultMaxSizeMB = 50

var textExts = map[string]bool{
	".txt": true, ".log": true, ".out": true, ".err": true, ".trace": true,
}

// Kind is how a file is read.
type Kind string

const (
	KindText    Kind = "text"
	KindZip     Kind = "zip"
	KindTar     Kind = "tar"
	KindTarGz   Kind = "tar.gz"
	KindGzip    Kind = "gzip"
	KindUnknown Kind = "unknown"
)

// Classify determines the kind of a file from its name.
func Classify(name string) Kind {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return KindTarGz
	case strings.HasSuffix(lower, ".zip"):
		return KindZip
	case strings.HasSuffix(lower, ".tar"):
		return KindTar
	case strings.HasSuffix(lower, ".gz"):
		return KindGzip
	case textExts[filepath.Ext(lower)]:
		return KindText
	}
	return KindUnknown
}

func isTextMember(name string) bool {
	return textExts[strings.ToLower(path.Ext(name))]
}

// Loader reads attachments from disk into log files.
type Loader struct {
	maxBytes int64
	logger   *slog.Logger
}

// NewLoader creates a loader. maxSizeMB <= 0 uses DefaultMaxSizeMB.
func NewLoader(maxSizeMB int, logger *slog.Logger) *Loader {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSizeMB
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{maxBytes: int64(maxSizeMB) << 20, logger: logger}
}

// Load reads file. name is used for display and for naming
// archive members ("name/member"); it defaults to the base of file.
//
// A file that exists but cannot be decoded yields a single empty LogFile so
// the attachment still shows up in the report.
func (l *Loader) Load(file, name string) ([]logfilter.LogFile, error) {
	if name == "" {
		name = filepath.Base(file)
	}
	kind := Classify(name)
	if kind == KindUnknown {
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupported)
	}
	info, err := os.Stat(file)
	if err != nil {
		return nil, err
	}
	if info.Size() > l.maxBytes {
		return nil, fmt.Errorf("%s (%s): %w", name, util.FormatBytes(info.Size()), ErrTooLarge)
	}

	var files []logfilter.LogFile
	switch kind {
	case KindText:
		var data []byte
		data, err = os.ReadFile(file)
		if err == nil {
			files = []logfilter.LogFile{logfilter.NewLogFile(name, data)}
		}
	case KindZip:
		files, err = l.loadZip(file, name)
	case KindTar, KindTarGz, KindGzip:
		files, err = l.loadStream(file, name, kind)
	}
	if err != nil {
		l.logger.Warn("unreadable attachment", "file", name, "error", err)
		return []logfilter.LogFile{logfilter.EmptyLogFile(name)}, nil
	}
	return files, nil
}

func (l *Loader) loadZip(file, name string) ([]logfilter.LogFile, error) {
	r, err := zip.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	var files []logfilter.LogFile
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !isTextMember(f.Name) {
			continue
		}
		member := path.Clean(f.Name)
		if f.UncompressedSize64 > uint64(l.maxBytes) {
			l.logger.Warn("skipping archive member", "archive", name, "member", member, "reason", "too large")
			continue
		}
		data, err := l.readZipMember(f)
		if err != nil {
			l.logger.Warn("skipping archive member", "archive", name, "member", member, "error", err)
			continue
		}
		files = append(files, logfilter.NewLogFile(name+"/"+member, data))
	}
	return files, nil
}

func (l *Loader) readZipMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return l.readLimited(rc)
}

func (l *Loader) loadStream(file, name string, kind Kind) ([]logfilter.LogFile, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if kind == KindTar {
		return l.loadTar(f, name)
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress gzip: %w", err)
	}
	defer gz.Close()

	if kind == KindTarGz {
		return l.loadTar(gz, name)
	}

	inner := gz.Name
	if inner == "" {
		inner = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}
	inner = path.Base(filepath.ToSlash(inner))
	if strings.HasSuffix(strings.ToLower(inner), ".tar") {
		return l.loadTar(gz, name)
	}
	data, err := l.readLimited(gz)
	if err != nil {
		return nil, err
	}
	return []logfilter.LogFile{logfilter.NewLogFile(name+"/"+inner, data)}, nil
}

func (l *Loader) loadTar(r io.Reader, name string) ([]logfilter.LogFile, error) {
	tr := tar.NewReader(r)
	var files []logfilter.LogFile
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if len(files) > 0 {
				l.logger.Warn("truncated archive", "archive", name, "error", err)
				return files, nil
			}
			return nil, fmt.Errorf("failed to read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || !isTextMember(hdr.Name) {
			continue
		}
		member := path.Clean(hdr.Name)
		if hdr.Size > l.maxBytes {
			l.logger.Warn("skipping archive member", "archive", name, "member", member, "reason", "too large")
			continue
		}
		data, err := l.readLimited(tr)
		if err != nil {
			l.logger.Warn("skipping archive member", "archive", name, "member", member, "error", err)
			continue
		}
		files = append(files, logfilter.NewLogFile(name+"/"+member, data))
	}
	return files, nil
}

// readLimited reads r fully, failing once more than maxBytes are produced.
func (l *Loader) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// LoadDir loads every supported file below dir in lexical order. Hidden
// entries and the ticket metadata file are ignored; files that are too large
// or unsupported are logged and skipped.
func (l *Loader) LoadDir(dir string) ([]logfilter.LogFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("attachment directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("attachment directory: %s is not a directory", dir)
	}

	var files []logfilter.LogFile
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || d.Name() == MetadataFileName {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			rel = d.Name()
		}
		loaded, err := l.Load(p, filepath.ToSlash(rel))
		switch {
		case errors.Is(err, ErrUnsupported):
			l.logger.Debug("skipping unsupported file", "file", rel)
		case errors.Is(err, ErrTooLarge):
			l.logger.Warn("skipping attachment", "error", err)
		case err != nil:
			l.logger.Warn("skipping attachment", "file", rel, "error", err)
		default:
			files = append(files, loaded...)
		}
		return nil
	})
	if err != nil {
		return files, err
	}
	return files, nil
}

// LoadPaths loads an explicit list of files, in order.
func (l *Loader) LoadPaths(paths []string) ([]logfilter.LogFile, []error) {
	var (
		files []logfilter.LogFile
		errs  []error
	)
	for _, p := range paths {
		loaded, err := l.Load(p, "")
		if err != nil {
			errs = append(errs, err)
			continue
		}
		files = append(files, loaded...)
	}
	return files, errs
}
