// Package masterdata holds the issuer reference dataset: a lookup from
// issuer code to affiliation group, name and category, loaded wholesale from
// a reference workbook.
package masterdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
)

// NonGroup is the group of issuers without a known affiliation.
const NonGroup = "Non-Grup"

// Reference workbook columns, matched literally.
const (
	ColumnCode         = "Kode"
	ColumnName         = "Nama Emiten"
	ColumnPrimaryGroup = "Afiliasi Utama"
	ColumnSubGroup     = "Sub-Afiliasi"
	ColumnKeyPerson    = "UBO / Tokoh Kunci"
	ColumnCategory     = "Kategori"
)

// ErrNotLoaded is returned by lookups made before any successful load.
var ErrNotLoaded = errors.New("master data not loaded")

// Entry is one issuer of the reference dataset.
type Entry struct {
	Code         string `json:"kode"`
	Name         string `json:"namaEmiten"`
	PrimaryGroup string `json:"afiliasiUtama"`
	SubGroup     string `json:"subAfiliasi"`
	KeyPerson    string `json:"uboTokohKunci"`
	Category     string `json:"kategori"`
}

// LoadResult reports the outcome of a load.
type LoadResult struct {
	Success bool     `json:"success"`
	Count   int      `json:"count"`
	Errors  []string `json:"errors"`
}

// Stats summarises the loaded dataset.
type Stats struct {
	TotalEntries int            `json:"totalEmiten"`
	UniqueGroups int            `json:"uniqueGroups"`
	Categories   map[string]int `json:"categories"`
	Source       string         `json:"source,omitempty"`
	LoadedAt     *time.Time     `json:"loadedAt,omitempty"`
}

// Registry is the process-wide reference cache. Loads replace the whole
// dataset; readers never observe a partially loaded generation.
type Registry struct {
	defaultPath string
	logger      *slog.Logger
	loads       singleflight.Group

	mu       sync.RWMutex
	entries  map[string]Entry
	loaded   bool
	source   string
	loadedAt time.Time
}

// NewRegistry creates an empty registry whose LoadDefault reads defaultPath.
func NewRegistry(defaultPath string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		defaultPath: defaultPath,
		logger:      logger.With(slog.String("component", "masterdata")),
		entries:     make(map[string]Entry),
	}
}

// NormalizeCode is the lookup key form of an issuer code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Load reads a reference workbook from r.
func (r *Registry) Load(source string, rd io.Reader) LoadResult {
	data, err := io.ReadAll(rd)
	if err != nil {
		return r.failed(source, fmt.Errorf("read %s: %w", source, err))
	}
	return r.LoadBytes(source, data)
}

// LoadFile reads a reference workbook from disk.
func (r *Registry) LoadFile(path string) LoadResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return r.failed(path, err)
	}
	return r.LoadBytes(filepath.Base(path), data)
}

// LoadBytes parses data and, on success, replaces the cache with its
// entries. A failed load leaves the current generation in place.
func (r *Registry) LoadBytes(source string, data []byte) LoadResult {
	wb, err := dataprocessing.ReadWorkbookBytes(source, data)
	if err != nil {
		return r.failed(source, err)
	}
	if len(wb.Sheets) == 0 {
		return r.failed(source, fmt.Errorf("%s has no sheets", source))
	}

	entries := ParseEntries(wb.Sheets[0].Rows)

	r.mu.Lock()
	r.entries = entries
	r.loaded = true
	r.source = source
	r.loadedAt = time.Now()
	r.mu.Unlock()

	r.logger.Info("master data loaded",
		slog.String("source", source),
		slog.Int("entries", len(entries)))

	return LoadResult{Success: true, Count: len(entries), Errors: []string{}}
}

// LoadDefault loads the configured default workbook. Concurrent callers
// share a single load.
func (r *Registry) LoadDefault(ctx context.Context) (LoadResult, error) {
	ch := r.loads.DoChan("default", func() (interface{}, error) {
		res := r.LoadFile(r.defaultPath)
		if !res.Success {
			return res, fmt.Errorf("load default master data: %s", strings.Join(res.Errors, "; "))
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return LoadResult{}, ctx.Err()
	case out := <-ch:
		res, _ := out.Val.(LoadResult)
		return res, out.Err
	}
}

func (r *Registry) failed(source string, err error) LoadResult {
	r.logger.Warn("master data load failed",
		slog.String("source", source),
		slog.String("error", err.Error()))
	return LoadResult{
		Success: false,
		Errors:  []string{fmt.Sprintf("Gagal memuat master data: %v", err)},
	}
}

// ParseEntries reads a header-keyed grid whose first row names the
// reference columns. Rows without a code are skipped; later duplicates win.
func ParseEntries(grid [][]any) map[string]Entry {
	entries := make(map[string]Entry)

	headerIdx := -1
	for i, row := range grid {
		if !blankRow(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return entries
	}

	cols := make(map[string]int)
	for i, h := range grid[headerIdx] {
		name := strings.TrimSpace(dataprocessing.FormatCell(h))
		if _, dup := cols[name]; !dup && name != "" {
			cols[name] = i
		}
	}

	cell := func(row []any, column string) string {
		i, ok := cols[column]
		if !ok || i >= len(row) {
			return ""
		}
		return dataprocessing.FormatCell(row[i])
	}

	for _, row := range grid[headerIdx+1:] {
		if blankRow(row) {
			continue
		}
		code := NormalizeCode(cell(row, ColumnCode))
		if code == "" {
			continue
		}
		entries[code] = Entry{
			Code:         code,
			Name:         cell(row, ColumnName),
			PrimaryGroup: cell(row, ColumnPrimaryGroup),
			SubGroup:     cell(row, ColumnSubGroup),
			KeyPerson:    cell(row, ColumnKeyPerson),
			Category:     cell(row, ColumnCategory),
		}
	}
	return entries
}

func blankRow(row []any) bool {
	for _, c := range row {
		if !dataprocessing.IsEmptyCell(c) {
			return false
		}
	}
	return true
}

// Lookup finds an issuer by code, ignoring case and surrounding space.
func (r *Registry) Lookup(code string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[NormalizeCode(code)]
	return e, ok
}

// GroupName returns the issuer's primary group, or NonGroup.
func (r *Registry) GroupName(code string) string {
	if e, ok := r.Lookup(code); ok && e.PrimaryGroup != "" {
		return e.PrimaryGroup
	}
	return NonGroup
}

// IsLoaded reports whether a load has succeeded since the last Clear.
func (r *Registry) IsLoaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// All returns every entry sorted by code.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Stats counts entries, distinct primary groups and entries per category.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups := make(map[string]struct{})
	categories := make(map[string]int)
	for _, e := range r.entries {
		groups[e.PrimaryGroup] = struct{}{}
		categories[e.Category]++
	}

	st := Stats{
		TotalEntries: len(r.entries),
		UniqueGroups: len(groups),
		Categories:   categories,
		Source:       r.source,
	}
	if r.loaded {
		at := r.loadedAt
		st.LoadedAt = &at
	}
	return st
}

// Clear drops the dataset and marks the registry unloaded.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.entries = make(map[string]Entry)
	r.loaded = false
	r.source = ""
	r.loadedAt = time.Time{}
	r.mu.Unlock()

	r.logger.Info("master data cleared")
}
