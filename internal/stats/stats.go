// Package stats measures one optimization run: file sizes before and after,
// wall-clock time, and the scene counts gltfpack prints in its report.
package stats

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/backmassage/gltfpress/internal/failure"
)

// BytesPerVertex is the average vertex footprint used for the GPU memory
// estimate.
const BytesPerVertex = 32

// Counts holds scene counts parsed from the tool report. A nil field means
// the report did not carry a usable value.
type Counts struct {
	Vertices  *int `json:"vertices,omitempty"`
	Triangles *int `json:"triangles,omitempty"`
	Meshes    *int `json:"meshes,omitempty"`
	Materials *int `json:"materials,omitempty"`
	Textures  *int `json:"textures,omitempty"`
}

// Report prefixes, tried in this order; the first match wins per line.
var reportFields = []struct {
	prefix string
	field  func(c *Counts) **int
}{
	{"Vertices:", func(c *Counts) **int { return &c.Vertices }},
	{"Triangles:", func(c *Counts) **int { return &c.Triangles }},
	{"Meshes:", func(c *Counts) **int { return &c.Meshes }},
	{"Materials:", func(c *Counts) **int { return &c.Materials }},
	{"Textures:", func(c *Counts) **int { return &c.Textures }},
}

// ParseReport extracts counts from free-form tool output. Lines without a
// known prefix are ignored, and a value that does not parse as an integer
// leaves the field as it was. It never fails.
func ParseReport(text string) Counts {
	var c Counts
	c.Apply(text)
	return c
}

// Apply merges the counts found in text into c.
func (c *Counts) Apply(text string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		for _, f := range reportFields {
			if !strings.HasPrefix(line, f.prefix) {
				continue
			}
			if n, ok := parseValue(line); ok {
				*f.field(c) = &n
			}
			break
		}
	}
}

// parseValue reads the integer between the first colon and the next one.
func parseValue(line string) (int, bool) {
	_, rest, ok := strings.Cut(line, ":")
	if !ok {
		return 0, false
	}
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		rest = rest[:i]
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsZero reports whether no count was parsed.
func (c Counts) IsZero() bool {
	return c.Vertices == nil && c.Triangles == nil && c.Meshes == nil &&
		c.Materials == nil && c.Textures == nil
}

// RunStatistics records one run. Sizes always come from the filesystem.
type RunStatistics struct {
	RunID           string        `json:"run_id"`
	InputPath       string        `json:"input_path"`
	OutputPath      string        `json:"output_path"`
	InputSizeBytes  int64         `json:"input_size_bytes"`
	OutputSizeBytes int64         `json:"output_size_bytes"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	Elapsed         time.Duration `json:"elapsed"`
	Counts          Counts        `json:"counts"`
}

// Start opens a record for a run, capturing the input size and start time.
func Start(input, output string) (RunStatistics, error) {
	fi, err := os.Stat(input)
	if err != nil {
		return RunStatistics{}, failure.FromOS(err, input)
	}
	return RunStatistics{
		RunID:          uuid.NewString(),
		InputPath:      input,
		OutputPath:     output,
		InputSizeBytes: fi.Size(),
		StartTime:      time.Now(),
	}, nil
}

// Finish captures the output size, end time, elapsed time and the counts
// parsed from report.
func (s *RunStatistics) Finish(report string) error {
	fi, err := os.Stat(s.OutputPath)
	if err != nil {
		return failure.FromOS(err, s.OutputPath)
	}
	s.OutputSizeBytes = fi.Size()
	s.EndTime = time.Now()
	s.Elapsed = s.EndTime.Sub(s.StartTime)
	s.Counts.Apply(report)
	return nil
}

func (s RunStatistics) sized() bool {
	return s.InputSizeBytes > 0 && s.OutputSizeBytes > 0
}

// CompressionRatio is output size over input size, or 0 when either is 0.
func (s RunStatistics) CompressionRatio() float64 {
	if !s.sized() {
		return 0
	}
	return float64(s.OutputSizeBytes) / float64(s.InputSizeBytes)
}

// BytesSaved is input size minus output size, or 0 when either is 0. It is
// negative when the output grew.
func (s RunStatistics) BytesSaved() int64 {
	if !s.sized() {
		return 0
	}
	return s.InputSizeBytes - s.OutputSizeBytes
}

// CompressionPercent is the size reduction in percent.
func (s RunStatistics) CompressionPercent() float64 {
	if !s.sized() {
		return 0
	}
	return (1 - s.CompressionRatio()) * 100
}

// EstimatedGPUMemory approximates vertex buffer memory from the vertex count.
func (s RunStatistics) EstimatedGPUMemory() int64 {
	if s.Counts.Vertices == nil {
		return 0
	}
	return int64(*s.Counts.Vertices) * BytesPerVertex
}
