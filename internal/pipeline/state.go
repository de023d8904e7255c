package pipeline

import "time"

// RunState is the cross-sheet state of one extraction run. A fresh value is
// created for every run, so concurrent runs never share figures.
type RunState struct {
	ID        string
	FileName  string
	Checksum  string
	StartedAt time.Time

	Equity      float64
	EquityFound bool

	GrandTotal float64
	VD510Done  bool
	VD59Count  int
	VD58Count  int
}

func newRunState(id, fileName, checksum string, now time.Time) *RunState {
	return &RunState{ID: id, FileName: fileName, Checksum: checksum, StartedAt: now}
}
