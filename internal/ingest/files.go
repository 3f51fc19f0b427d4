// Package ingest stores uploaded log files and hands parsed records to the
// scan pipeline.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	cache_pkg "github.com/patrickmn/go-cache"

	"github.com/viniciushammett/go-weblog-analyzer/internal/accesslog"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid file name")
)

// Files is the upload directory. Parsed results are cached per file version
// (name, size and modification time) so a re-upload is always re-parsed.
type Files struct {
	dir   string
	cache *cache_pkg.Cache
}

func New(dir string, ttl time.Duration) (*Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Files{dir: dir, cache: cache_pkg.New(ttl, 2*ttl)}, nil
}

func (f *Files) Dir() string { return f.dir }

// Save writes r under the base name of name, replacing any previous upload.
func (f *Files) Save(name string, r io.Reader) (string, int64, error) {
	base, err := clean(name)
	if err != nil {
		return "", 0, err
	}
	tmp, err := os.CreateTemp(f.dir, ".upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("write %s: %w", base, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(f.dir, base)); err != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("store %s: %w", base, err)
	}
	return base, n, nil
}

// Path resolves an uploaded file, ErrNotFound when it does not exist.
func (f *Files) Path(name string) (string, error) {
	base, err := clean(name)
	if err != nil {
		return "", ErrNotFound
	}
	p := filepath.Join(f.dir, base)
	st, err := os.Stat(p)
	if err != nil || st.IsDir() {
		return "", ErrNotFound
	}
	return p, nil
}

// Open returns a reader over the file contents, decompressing .gz files.
func Open(path string) (io.ReadCloser, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return fh, nil
	}
	zr, err := gzip.NewReader(fh)
	if err != nil {
		fh.Close()
		return nil, fmt.Errorf("gzip %s: %w", filepath.Base(path), err)
	}
	return &gzipFile{Reader: zr, f: fh}, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if ferr := g.f.Close(); err == nil {
		err = ferr
	}
	return err
}

// ParseFile parses any path, uploaded or not, without caching.
func ParseFile(path string) (accesslog.Result, error) {
	rc, err := Open(path)
	if err != nil {
		return accesslog.Result{}, err
	}
	defer rc.Close()
	return accesslog.Parse(rc)
}

// Parse parses an uploaded file. cached reports whether the result came
// from the cache.
func (f *Files) Parse(name string) (res accesslog.Result, cached bool, err error) {
	p, err := f.Path(name)
	if err != nil {
		return accesslog.Result{}, false, err
	}
	st, err := os.Stat(p)
	if err != nil {
		return accesslog.Result{}, false, ErrNotFound
	}
	key := fmt.Sprintf("%s|%d|%d", filepath.Base(p), st.Size(), st.ModTime().UnixNano())
	if v, ok := f.cache.Get(key); ok {
		return v.(accesslog.Result), true, nil
	}
	res, err = ParseFile(p)
	if err != nil {
		return accesslog.Result{}, false, err
	}
	f.cache.SetDefault(key, res)
	return res, false, nil
}

func clean(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." || base == "" || strings.HasPrefix(base, ".upload-") {
		return "", ErrInvalidName
	}
	return base, nil
}
