package display

import (
	"github.com/backmassage/gltfpress/internal/stats"
)

// SummaryLines renders a run record as the labelled lines shown after an
// optimization. Output and savings appear only once an output size is
// known; counts appear only when the report carried them.
func SummaryLines(rec stats.RunStatistics) []string {
	lines := []string{"Input: " + FormatBytes(rec.InputSizeBytes)}

	if rec.OutputSizeBytes > 0 {
		lines = append(lines,
			"Output: "+FormatBytes(rec.OutputSizeBytes),
			"Saved: "+FormatBytes(rec.BytesSaved())+" ("+FormatPercent(rec.CompressionPercent())+")",
		)
	}
	if rec.Elapsed > 0 {
		lines = append(lines, "Time: "+FormatSeconds(rec.Elapsed))
	}
	if v := rec.Counts.Vertices; v != nil {
		lines = append(lines, "Vertices: "+FormatCount(*v))
	}
	if v := rec.Counts.Triangles; v != nil {
		lines = append(lines, "Triangles: "+FormatCount(*v))
	}
	if v := rec.Counts.Meshes; v != nil {
		lines = append(lines, "Meshes: "+FormatCount(*v))
	}
	if gpu := rec.EstimatedGPUMemory(); gpu > 0 {
		lines = append(lines, "Est. GPU Memory: "+FormatBytes(gpu))
	}
	return lines
}
