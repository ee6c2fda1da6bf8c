package pipeline

import (
	"time"

	"github.com/backmassage/gltfpress/internal/stats"
)

// Totals aggregates byte totals and time across a completed batch.
type Totals struct {
	Files            int
	TotalInputBytes  int64
	TotalOutputBytes int64
	Elapsed          time.Duration
}

// Summarize folds per-run records into batch totals.
func Summarize(records []stats.RunStatistics) Totals {
	var t Totals
	for _, r := range records {
		t.Files++
		t.TotalInputBytes += r.InputSizeBytes
		t.TotalOutputBytes += r.OutputSizeBytes
		t.Elapsed += r.Elapsed
	}
	return t
}

// SpaceSaved returns the aggregate byte difference between inputs and outputs.
// Positive means outputs are smaller; negative means they grew.
func (t Totals) SpaceSaved() int64 {
	return t.TotalInputBytes - t.TotalOutputBytes
}
