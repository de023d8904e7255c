package dataprocessing

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	currencyRe   = regexp.MustCompile(`(?i)rp|[$€¥£]`)
	nonNumericRe = regexp.MustCompile(`[^\d.\-]`)
	// leading numeric literal, the way a lenient float parser reads it
	numberPrefixRe = regexp.MustCompile(`^[-+]?(\d+(\.\d*)?|\.\d+)`)
)

// ParseNumber converts a cell into a float64. It never fails: nil, empty,
// text and anything unparsable yield 0.
//
// Strings may carry currency symbols, a parenthesised negative "(500)" and
// either Indonesian ("1.234.567,89") or US ("1,234,567.89") separators. A
// comma decides the Indonesian reading only when it is the last separator and
// sits within the final three characters.
func ParseNumber(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		if math.IsNaN(x) {
			return 0
		}
		return x
	case float32:
		if math.IsNaN(float64(x)) {
			return 0
		}
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	case decimal.Decimal:
		return x.InexactFloat64()
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return f
	}

	lit, ok := numericLiteral(FormatCell(v))
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0
	}
	return f
}

// ParseDecimal is ParseNumber with exact decimal arithmetic for string input.
func ParseDecimal(v any) decimal.Decimal {
	switch x := v.(type) {
	case decimal.Decimal:
		return x
	case string:
		lit, ok := numericLiteral(x)
		if !ok {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(lit)
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	return decimal.NewFromFloat(ParseNumber(v))
}

func numericLiteral(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.Trim(s, "()")
	}

	s = strings.TrimSpace(currencyRe.ReplaceAllString(s, ""))

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	if lastComma > lastDot && lastComma > len(s)-4 {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	s = nonNumericRe.ReplaceAllString(s, "")
	lit := numberPrefixRe.FindString(s)
	if lit == "" {
		return "", false
	}
	if strings.HasSuffix(lit, ".") {
		lit = strings.TrimSuffix(lit, ".")
	}
	if negative {
		if strings.HasPrefix(lit, "-") {
			lit = lit[1:]
		} else {
			lit = "-" + lit
		}
	}
	return lit, true
}

// FormatCell renders a cell the way it reads in a spreadsheet: nil is empty,
// integral floats have no decimal point.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case decimal.Decimal:
		return x.String()
	case json.Number:
		return x.String()
	case interface{ String() string }:
		return x.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// IsEmptyCell reports whether a cell holds nothing but whitespace.
func IsEmptyCell(v any) bool {
	if v == nil {
		return true
	}
	return strings.TrimSpace(FormatCell(v)) == ""
}
