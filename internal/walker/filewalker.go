// Package walker enumerates candidate files under a project root, applying
// an extension whitelist and glob-based exclusion rules (spec.md §4.1).
package walker

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
)

// File is one discovered, includable file.
type File struct {
	// AbsPath is the file's absolute filesystem path.
	AbsPath string

	// RelPath is forward-slash-normalized, relative to the walk root.
	RelPath string

	// Size in bytes, as reported by the directory entry.
	Size int64
}

// Options configures a walk.
type Options struct {
	// IncludeExtensions lists the lowercase extensions (with leading dot)
	// a file must match to be emitted. Empty means "match nothing".
	IncludeExtensions []string

	// ExcludePatterns are glob patterns, or directory-prefix patterns
	// ending in "/", matched against the forward-slash-normalized
	// relative path.
	ExcludePatterns []string

	// MaxFileBytes is the ceiling above which a file is skipped and
	// reported as oversize rather than returned. Zero means no ceiling.
	MaxFileBytes int64
}

// Stats accumulates counts of files the walk chose not to emit, for the
// controller's progress/summary reporting.
type Stats struct {
	Oversized  int
	Unreadable int
	Excluded   int
}

// Walker enumerates files under one root according to Options.
type Walker struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Walker.
func New(opts Options, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{opts: opts, logger: logger}
}

// Walk returns every includable file under root, along with counts of
// files skipped for being oversized, unreadable, or excluded. Order is
// not guaranteed to callers (spec.md §4.1: "order-independent").
func (w *Walker) Walk(root string) ([]File, Stats, error) {
	var files []File
	var stats Stats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return err
			}
			stats.Unreadable++
			w.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}

		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		relPath = filepath.ToSlash(relPath)

		if d.Type()&fs.ModeSymlink != 0 {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if w.shouldExclude(relPath) {
			stats.Excluded++
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		if !w.shouldInclude(path) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			stats.Unreadable++
			w.logger.Warn("skipping file with unreadable metadata", "path", path, "error", infoErr)
			return nil
		}

		if w.opts.MaxFileBytes > 0 && info.Size() > w.opts.MaxFileBytes {
			stats.Oversized++
			w.logger.Warn("skipping oversized file", "path", relPath, "size", info.Size())
			return nil
		}

		files = append(files, File{
			AbsPath: path,
			RelPath: relPath,
			Size:    info.Size(),
		})
		return nil
	})

	return files, stats, err
}

func (w *Walker) shouldInclude(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.opts.IncludeExtensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// shouldExclude checks relPath (forward-slash-normalized) against every
// configured exclusion pattern: a direct prefix match, a glob match
// against the base name, or containment when the pattern names a
// directory (trailing "/").
func (w *Walker) shouldExclude(relPath string) bool {
	for _, pattern := range w.opts.ExcludePatterns {
		if strings.HasPrefix(relPath, pattern) {
			return true
		}

		if matched, err := filepath.Match(pattern, filepath.Base(relPath)); err == nil && matched {
			return true
		}

		if strings.HasSuffix(pattern, "/") && strings.Contains(relPath, pattern) {
			return true
		}
	}
	return false
}
