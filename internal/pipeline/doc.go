// Package pipeline orchestrates gltfpack runs: input validation, binary
// discovery, best-effort model inspection, argument compilation, execution
// and statistics, for one file or a sequential all-or-nothing batch.
//
// A run advances through the stages NotStarted, BinaryLocated,
// FeatureInspected, ArgumentsCompiled, ProcessRunning, OutputVerified,
// StatsExtracted and Done, or ends in Failed. Every failure is a
// *failure.Error; inspection problems are logged and never fail a run.
package pipeline
