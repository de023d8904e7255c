// Package ranking computes the liabilities ranking figures of an MKBD
// workbook: the per-instrument concentration charge of VD510, the chained
// requirement lines of VD58, and the net adjusted working capital of VD59.
//
// Every calculation works on copies of the rows it is given. Rows or
// columns a calculation cannot locate are reported as warnings on the
// result and logged; they never abort the run.
package ranking

import (
	"fmt"
	"log/slog"
)

// Calculator runs the ranking calculations.
type Calculator struct {
	logger *slog.Logger
}

// NewCalculator returns a Calculator logging through logger, or
// slog.Default when nil.
func NewCalculator(logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{logger: logger.With(slog.String("component", "ranking"))}
}

// warnings collects the heuristic misses of one calculation.
type warnings struct {
	logger *slog.Logger
	table  string
	list   []string
}

func (c *Calculator) warnings(table string) *warnings {
	return &warnings{logger: c.logger, table: table}
}

func (w *warnings) add(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	w.logger.Warn(msg, slog.String("table", w.table))
	w.list = append(w.list, msg)
}
