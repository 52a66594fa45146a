package model

import "time"

// ProcessingError is a typed failure recorded on a repository's processing
// result. Message carries the underlying error text for diagnostics.
type ProcessingError struct {
	Type    ErrorType
	Message string
}

// ProcessingResult is the outcome of one repository's full processing cycle.
// Counts from completed phases are retained even when a later phase fails.
type ProcessingResult struct {
	RepoFullName        string
	Success             bool
	Phase               Phase
	PRsDiscovered       int
	CheckRunsDiscovered int
	NewPRs              int
	UpdatedPRs          int
	NewCheckRuns        int
	UpdatedCheckRuns    int
	ChangesSynchronized int
	Errors              []ProcessingError
	Duration            time.Duration
}

// BatchProcessingResult aggregates the outcomes of one batch cycle. Results
// preserves the input repository order regardless of completion order.
type BatchProcessingResult struct {
	Results   []ProcessingResult
	Processed int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// SuccessRate returns the percentage of repositories that fully processed,
// or zero for an empty batch.
func (b *BatchProcessingResult) SuccessRate() float64 {
	if b.Processed == 0 {
		return 0
	}
	return float64(b.Succeeded) / float64(b.Processed) * 100
}

// NewBatchProcessingResult derives the aggregate counters from a result list.
func NewBatchProcessingResult(results []ProcessingResult, duration time.Duration) BatchProcessingResult {
	batch := BatchProcessingResult{
		Results:   results,
		Processed: len(results),
		Duration:  duration,
	}
	for _, r := range results {
		if r.Success {
			batch.Succeeded++
		} else {
			batch.Failed++
		}
	}
	return batch
}
