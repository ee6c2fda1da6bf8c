package pipeline

import "github.com/backmassage/gltfpress/internal/stats"

// Stage is a step of a single run. Runs advance in declaration order and
// may jump to StageFailed from any step. StageFeatureInspected is skipped
// when the container cannot be inspected.
type Stage int

const (
	StageNotStarted Stage = iota
	StageBinaryLocated
	StageFeatureInspected
	StageArgumentsCompiled
	StageProcessRunning
	StageOutputVerified
	StageStatsExtracted
	StageDone
	StageFailed
)

var stageNames = [...]string{
	"not_started",
	"binary_located",
	"feature_inspected",
	"arguments_compiled",
	"process_running",
	"output_verified",
	"stats_extracted",
	"done",
	"failed",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// StatusKind discriminates Status.
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
)

// Status is the externally visible state of an Optimizer. Exactly one of the
// payloads is meaningful, selected by Kind: the input path while processing,
// the statistics when completed, the error when failed.
type Status struct {
	kind  StatusKind
	input string
	stats stats.RunStatistics
	err   error
}

func idleStatus() Status { return Status{kind: StatusIdle} }

func processingStatus(in string) Status { return Status{kind: StatusProcessing, input: in} }

func failedStatus(err error) Status { return Status{kind: StatusFailed, err: err} }

func completedStatus(s stats.RunStatistics) Status {
	return Status{kind: StatusCompleted, stats: s}
}

func (s Status) Kind() StatusKind { return s.kind }

func (s Status) IsIdle() bool { return s.kind == StatusIdle }

func (s Status) IsProcessing() bool { return s.kind == StatusProcessing }

func (s Status) IsCompleted() bool { return s.kind == StatusCompleted }

func (s Status) IsFailed() bool { return s.kind == StatusFailed }

// Input returns the file being processed.
func (s Status) Input() (string, bool) { return s.input, s.kind == StatusProcessing }

// Stats returns the statistics of a completed run.
func (s Status) Stats() (stats.RunStatistics, bool) { return s.stats, s.kind == StatusCompleted }

// Err returns the error of a failed run.
func (s Status) Err() error {
	if s.kind != StatusFailed {
		return nil
	}
	return s.err
}

func (s Status) String() string {
	switch s.kind {
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}
