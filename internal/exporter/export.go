package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
)

// Export writes res under dir and returns the written paths. CSV writes one
// file per sheet named <base>_<table>.csv; XLSX and JSON write one file.
func Export(ctx context.Context, dir, base string, format Format, res *dataprocessing.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	switch format {
	case FormatCSV:
		w := NewCSVWriter(dir, nil)
		paths := make([]string, 0, len(res.Sheets))
		for _, s := range res.Sheets {
			if err := ctx.Err(); err != nil {
				return paths, err
			}
			p, err := w.WriteSheet(fmt.Sprintf("%s_%s.csv", base, s.TableName), s)
			if err != nil {
				return paths, err
			}
			paths = append(paths, p)
		}
		return paths, nil

	case FormatXLSX:
		path := filepath.Join(dir, base+".xlsx")
		if err := writeFile(path, func(f *os.File) error { return WriteXLSX(f, res.Sheets) }); err != nil {
			return nil, err
		}
		return []string{path}, nil

	case FormatJSON:
		path := filepath.Join(dir, base+".json")
		if err := writeFile(path, func(f *os.File) error { return WriteJSON(f, res) }); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}
	return nil, fmt.Errorf("unknown export format %q", format)
}

// WriteJSON encodes res as indented JSON.
func WriteJSON(w io.Writer, res *dataprocessing.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	slog.Debug("export written", slog.String("path", path))
	return f.Close()
}
