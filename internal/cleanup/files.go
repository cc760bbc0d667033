package cleanup

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileInfo describes a candidate file.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// ListFiles walks root and returns every regular file matching the pattern.
func (r *Runner) ListFiles(root string) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !r.matches(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			// removed while walking
			return nil
		}
		files = append(files, FileInfo{Path: path, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	return files, err
}

func (r *Runner) matches(name string) bool {
	if r.config.Pattern == "" {
		return true
	}
	ok, err := filepath.Match(r.config.Pattern, name)
	return err == nil && ok
}

// ShouldCleanup reports whether f is older than MaxAge.
func (r *Runner) ShouldCleanup(f FileInfo) bool {
	if r.config.MaxAge <= 0 {
		return false
	}
	return r.now().Sub(f.ModTime) > r.config.MaxAge
}

// DeleteFile removes a file. A file that is already gone is not an error.
func (r *Runner) DeleteFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// removeEmptyDirs removes empty directories under root, deepest first.
func (r *Runner) removeEmptyDirs(root string) int {
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})

	removed := 0
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dirs[i]); err == nil {
			removed++
		}
	}
	return removed
}
