package validation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gunturawaludins/mkbd-new/internal/shared/testutil"
)

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestIsWorkbookName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"MKBD_20240131.xlsx", true},
		{"old.XLS", true},
		{"~$MKBD_20240131.xlsx", false},
		{"report.csv", false},
		{"noext", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWorkbookName(tt.name))
		})
	}
}

func TestFileValidator_ValidateWorkbook(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	v := NewFileValidator(logger)
	dir := t.TempDir()

	ok := filepath.Join(dir, "a.xlsx")
	touch(t, ok, time.Now())
	assert.NoError(t, v.ValidateWorkbook(ok))

	csv := filepath.Join(dir, "a.csv")
	touch(t, csv, time.Now())
	assert.ErrorIs(t, v.ValidateWorkbook(csv), ErrNotWorkbook)
	testutil.AssertLogAttr(t, logs, "extension", ".csv")

	assert.ErrorContains(t, v.ValidateWorkbook(filepath.Join(dir, "missing.xlsx")), "does not exist")
	assert.ErrorContains(t, v.ValidateWorkbook(dir), "is a directory")
}

func TestFileValidator_FindWorkbooks(t *testing.T) {
	v := NewFileValidator(nil)
	dir := t.TempDir()
	base := time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC)

	touch(t, filepath.Join(dir, "newer.xlsx"), base.Add(time.Hour))
	touch(t, filepath.Join(dir, "older.xls"), base)
	touch(t, filepath.Join(dir, "~$newer.xlsx"), base)
	touch(t, filepath.Join(dir, "notes.txt"), base)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.xlsx"), 0o755))

	found, err := v.FindWorkbooks(dir)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "older.xls", found[0].Name)
	assert.Equal(t, "newer.xlsx", found[1].Name)

	_, err = v.FindWorkbooks(filepath.Join(dir, "absent"))
	assert.Error(t, err)
}

func TestFileValidator_ExpandInputs(t *testing.T) {
	v := NewFileValidator(nil)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.xlsx")
	b := filepath.Join(dir, "b.xlsx")
	touch(t, a, time.Now().Add(-time.Minute))
	touch(t, b, time.Now())

	got, err := v.ExpandInputs([]string{a, dir})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, got)

	_, err = v.ExpandInputs([]string{t.TempDir()})
	assert.ErrorContains(t, err, "no workbooks")

	_, err = v.ExpandInputs([]string{filepath.Join(dir, "c.xlsx")})
	assert.Error(t, err)
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	v := NewFileValidator(nil)
	out := filepath.Join(t.TempDir(), "nested", "out")
	require.NoError(t, v.ValidateOutputDirectory(out))
	assert.DirExists(t, out)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
