// Package source obtains Markdown document text from the filesystem.
//
// Identifiers are paths relative to a project root (absolute paths are used
// as given). Reading never fails as a whole: a document that cannot be read
// is returned with a failure reason so that it shows up in the report.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/lukemcguire/mdlinkcheck/checker"
	"github.com/lukemcguire/mdlinkcheck/result"
)

// Failure reasons recorded for documents that could not be read.
const (
	ReasonNotFound         = "File not found"
	ReasonPermissionDenied = "Permission denied"
	ReasonIsDirectory      = "Is a directory"
	ReasonNotUTF8          = "Could not decode"
)

// DefaultConcurrency is the number of files read in parallel.
const DefaultConcurrency = 8

// skippedDirs are never descended into during a project scan.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
}

// Loader reads documents relative to a root directory.
type Loader struct {
	root        string
	concurrency int
	logger      *slog.Logger
}

// NewLoader creates a Loader. An empty root means the working directory.
func NewLoader(root string, concurrency int, logger *slog.Logger) *Loader {
	if root == "" {
		root = "."
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{root: root, concurrency: concurrency, logger: logger}
}

// Resolve maps an identifier onto a filesystem path.
func (l *Loader) Resolve(id string) string {
	if filepath.IsAbs(id) {
		return filepath.Clean(id)
	}
	return filepath.Join(l.root, filepath.FromSlash(id))
}

// Load reads every identifier concurrently and returns one document per
// identifier, in input order. Unreadable files carry a FailureReason.
func (l *Loader) Load(ctx context.Context, ids []string) []checker.Document {
	docs := make([]checker.Document, len(ids))

	var group errgroup.Group
	group.SetLimit(l.concurrency)
	for i, id := range ids {
		group.Go(func() error {
			docs[i] = l.load(ctx, id)
			return nil
		})
	}
	_ = group.Wait()

	return docs
}

func (l *Loader) load(ctx context.Context, id string) checker.Document {
	if err := ctx.Err(); err != nil {
		return checker.Document{ID: id, FailureReason: result.FailureReason(err)}
	}

	path := l.Resolve(id)
	text, err := readText(path)
	if err != nil {
		reason := readFailureReason(err)
		l.logger.Error("read document", "document", id, "path", path, "reason", reason, "error", err)
		return checker.Document{ID: id, FailureReason: reason}
	}

	l.logger.Debug("read document", "document", id, "bytes", len(text))
	return checker.Document{ID: id, Text: text}
}

var (
	errIsDirectory = errors.New("is a directory")
	errNotUTF8     = errors.New("content is not valid UTF-8")
)

func readText(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("read %s: %w", path, errIsDirectory)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("decode %s: %w", path, errNotUTF8)
	}
	return string(data), nil
}

func readFailureReason(err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ReasonNotFound
	case errors.Is(err, fs.ErrPermission):
		return ReasonPermissionDenied
	case errors.Is(err, errIsDirectory):
		return ReasonIsDirectory
	case errors.Is(err, errNotUTF8):
		return ReasonNotUTF8
	}
	return result.TypeName(err)
}

// Directory lists every *.md file below dir, recursively, sorted.
// The returned identifiers are dir-prefixed, slash-separated paths.
func (l *Loader) Directory(dir string) ([]string, error) {
	return l.scan(dir, nil, false)
}

// Project lists the *.md files below dir that a project scan should check:
// paths matched by dir/.gitignore are excluded, as are .git, node_modules
// and vendor directories.
func (l *Loader) Project(dir string) ([]string, error) {
	matcher, err := l.gitignore(dir)
	if err != nil {
		return nil, err
	}
	return l.scan(dir, matcher, true)
}

func (l *Loader) gitignore(dir string) (*ignore.GitIgnore, error) {
	path := filepath.Join(l.Resolve(dir), ".gitignore")
	matcher, err := ignore.CompileIgnoreFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	l.logger.Debug("using ignore file", "path", path)
	return matcher, nil
}

func (l *Loader) scan(dir string, matcher *ignore.GitIgnore, skipVendored bool) ([]string, error) {
	base := l.Resolve(dir)

	info, err := os.Stat(base)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("directory target does not exist: %s: %w", dir, checker.ErrInvalidRequest)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s: %w", dir, checker.ErrInvalidRequest)
	}

	var ids []string
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable subtrees are skipped, not fatal.
			l.logger.Warn("skip unreadable path", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if skipVendored && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			if matcher != nil && matcher.MatchesPath(rel+"/") {
				l.logger.Debug("ignored directory", "path", rel)
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		if matcher != nil && matcher.MatchesPath(rel) {
			l.logger.Debug("ignored file", "path", rel)
			return nil
		}
		ids = append(ids, filepath.ToSlash(filepath.Join(dir, rel)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	slices.Sort(ids)
	l.logger.Info("found markdown files", "directory", dir, "count", len(ids))
	return ids, nil
}
