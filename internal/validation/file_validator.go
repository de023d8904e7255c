// Package validation checks command-line inputs before extraction runs.
package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNotWorkbook is returned for paths that are not Excel workbooks.
var ErrNotWorkbook = errors.New("not an Excel workbook")

// Workbook is a discovered input file.
type Workbook struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// FileValidator validates workbook inputs and output directories.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger.With(slog.String("component", "file_validator")),
	}
}

// IsWorkbookName reports whether name has a workbook extension and is not
// an Office lock file.
func IsWorkbookName(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "~$") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".xlsx", ".xls":
		return true
	}
	return false
}

// ValidateWorkbook checks that path is a readable workbook file.
func (v *FileValidator) ValidateWorkbook(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if !IsWorkbookName(path) {
		v.logger.Warn("Rejected input file",
			slog.String("file", path),
			slog.String("extension", filepath.Ext(path)))
		return fmt.Errorf("%s: %w", path, ErrNotWorkbook)
	}

	// Check the file is readable by opening it
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	f.Close()

	v.logger.Debug("Workbook validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// FindWorkbooks lists the workbooks directly inside dir, oldest first.
// Lock files and other extensions are skipped.
func (v *FileValidator) FindWorkbooks(dir string) ([]Workbook, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var out []Workbook
	for _, entry := range entries {
		if entry.IsDir() || !IsWorkbookName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, Workbook{
			Path:    filepath.Join(dir, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.Before(out[j].ModTime)
		}
		return out[i].Name < out[j].Name
	})

	v.logger.Debug("Workbooks discovered",
		slog.String("directory", dir),
		slog.Int("count", len(out)))
	return out, nil
}

// ExpandInputs resolves arguments to workbook paths: directories expand to
// their workbooks, files are validated. Duplicates are dropped.
func (v *FileValidator) ExpandInputs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		key := filepath.Clean(p)
		if !seen[key] {
			seen[key] = true
			out = append(out, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			found, err := v.FindWorkbooks(arg)
			if err != nil {
				return nil, err
			}
			if len(found) == 0 {
				v.logger.Warn("No workbooks found", slog.String("directory", arg))
			}
			for _, wb := range found {
				add(wb.Path)
			}
			continue
		}
		if err := v.ValidateWorkbook(arg); err != nil {
			return nil, err
		}
		add(arg)
	}

	if len(out) == 0 {
		return nil, errors.New("no workbooks to process")
	}
	return out, nil
}

// ValidateOutputDirectory ensures dir exists and is writable.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	// Verify it's writable by creating a probe file
	f, err := os.CreateTemp(dir, ".write_test*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return nil
}
