package application

import (
	"fmt"

	"github.com/evanfisk/citriage/internal/domain/model"
)

// PhaseError wraps a failure from one pipeline phase with its taxonomy type.
// The monitor converts these into ProcessingError entries on the repository's
// result instead of letting them propagate into the batch.
type PhaseError struct {
	Type model.ErrorType
	Repo string
	Err  error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Type, e.Repo, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

func discoveryError(repo string, err error) *PhaseError {
	return &PhaseError{Type: model.ErrorTypeDiscovery, Repo: repo, Err: err}
}

func detectionError(repo string, err error) *PhaseError {
	return &PhaseError{Type: model.ErrorTypeChangeDetection, Repo: repo, Err: err}
}

func syncError(repo string, err error) *PhaseError {
	return &PhaseError{Type: model.ErrorTypeSynchronization, Repo: repo, Err: err}
}
