package dataprocessing

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

const maxHeaderLength = 64

var (
	numericHeaderRe = regexp.MustCompile(`^[\d.]+$`)
	headerSpecialRe = regexp.MustCompile(`[^\w\s\x{00C0}-\x{024F}]`)
	tableSpecialRe  = regexp.MustCompile(`[^\w\s]`)
	whitespaceRunRe = regexp.MustCompile(`\s+`)
	underscoreRunRe = regexp.MustCompile(`_+`)
	leadingDigitRe  = regexp.MustCompile(`^\d`)
)

// SanitizedHeaders is the outcome of SanitizeHeaders.
type SanitizedHeaders struct {
	Headers  []string
	Warnings []string
}

// SanitizeHeaders turns a raw header row into unique identifiers.
//
// Empty cells become Unnamed_N (1-based), purely numeric cells Meta_Baris_N,
// anything else is reduced to word characters and underscores. Duplicates are
// counted case-insensitively: the first keeps its name, later ones get _1,
// _2 and so on. A suffix is only skipped when that exact name was already
// emitted, so ["A_1", "A", "a"] yields "a_1".
func SanitizeHeaders(raw []any) SanitizedHeaders {
	out := SanitizedHeaders{Headers: make([]string, 0, len(raw))}
	counts := make(map[string]int, len(raw))
	emitted := make(map[string]struct{}, len(raw))
	// a Caser carries state, one per call
	folder := cases.Fold()

	for i, cell := range raw {
		base := sanitizeHeader(cell, i)
		key := folder.String(base)

		name := base
		n := counts[key]
		if n > 0 {
			name = fmt.Sprintf("%s_%d", base, n)
			// a literal "A_1" header earlier in the row must not collide
			for {
				if _, taken := emitted[name]; !taken {
					break
				}
				n++
				name = fmt.Sprintf("%s_%d", base, n)
			}
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("Kolom duplikat ditemukan: %q diubah menjadi %q", FormatCell(cell), name))
		}
		counts[key] = n + 1
		emitted[name] = struct{}{}
		out.Headers = append(out.Headers, name)
	}
	return out
}

func sanitizeHeader(cell any, index int) string {
	unnamed := fmt.Sprintf("Unnamed_%d", index+1)

	s := strings.TrimSpace(FormatCell(cell))
	if s == "" {
		return unnamed
	}

	if numericHeaderRe.MatchString(s) {
		if lit := numberPrefixRe.FindString(s); lit != "" {
			if f, err := strconv.ParseFloat(strings.TrimSuffix(lit, "."), 64); err == nil {
				return fmt.Sprintf("Meta_Baris_%d", int64(math.Floor(f+0.5)))
			}
		}
	}

	cleaned := headerSpecialRe.ReplaceAllString(s, "_")
	cleaned = whitespaceRunRe.ReplaceAllString(cleaned, "_")
	cleaned = underscoreRunRe.ReplaceAllString(cleaned, "_")
	cleaned = trimOneUnderscore(cleaned)

	if leadingDigitRe.MatchString(cleaned) {
		cleaned = "Col_" + cleaned
	}
	if r := []rune(cleaned); len(r) > maxHeaderLength {
		cleaned = string(r[:maxHeaderLength])
	}
	if cleaned == "" {
		return unnamed
	}
	return cleaned
}

// SanitizeTableName derives a storage table name from a sheet name. The
// result is stable under repeated application.
func SanitizeTableName(sheetName string) string {
	s := tableSpecialRe.ReplaceAllString(sheetName, "_")
	s = whitespaceRunRe.ReplaceAllString(s, "_")
	s = underscoreRunRe.ReplaceAllString(s, "_")
	s = strings.ToLower(trimOneUnderscore(s))

	if leadingDigitRe.MatchString(s) {
		s = "table_" + s
	}
	if s == "" {
		return "unknown_table"
	}
	return s
}

func trimOneUnderscore(s string) string {
	s = strings.TrimPrefix(s, "_")
	return strings.TrimSuffix(s, "_")
}
