package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanfisk/citriage/internal/domain/model"
)

func TestValidTransition(t *testing.T) {
	// Merged is terminal; everything else may change freely.
	assert.True(t, model.ValidTransition(model.PRStateOpen, model.PRStateClosed))
	assert.True(t, model.ValidTransition(model.PRStateOpen, model.PRStateMerged))
	assert.True(t, model.ValidTransition(model.PRStateClosed, model.PRStateOpen))
	assert.True(t, model.ValidTransition(model.PRStateMerged, model.PRStateMerged))

	assert.False(t, model.ValidTransition(model.PRStateMerged, model.PRStateOpen))
	assert.False(t, model.ValidTransition(model.PRStateMerged, model.PRStateClosed))
}

func TestCheckRunSnapshot_Failed(t *testing.T) {
	failed := model.CheckRunSnapshot{Status: model.CheckStatusCompleted, Conclusion: model.CheckConclusionFailure}
	assert.True(t, failed.Failed())

	timedOut := model.CheckRunSnapshot{Status: model.CheckStatusCompleted, Conclusion: model.CheckConclusionTimedOut}
	assert.True(t, timedOut.Failed())

	passed := model.CheckRunSnapshot{Status: model.CheckStatusCompleted, Conclusion: model.CheckConclusionSuccess}
	assert.False(t, passed.Failed())

	// An in-progress run has not failed yet, whatever its conclusion field says.
	running := model.CheckRunSnapshot{Status: model.CheckStatusInProgress}
	assert.False(t, running.Failed())
}

func TestSplitRepoFullName(t *testing.T) {
	owner, name, err := model.SplitRepoFullName("octocat/hello-world")
	require.NoError(t, err)
	assert.Equal(t, "octocat", owner)
	assert.Equal(t, "hello-world", name)

	for _, invalid := range []string{"", "no-slash", "/name", "owner/"} {
		_, _, err := model.SplitRepoFullName(invalid)
		assert.Error(t, err, "input %q", invalid)
	}
}

func TestBatchProcessingResult_SuccessRate(t *testing.T) {
	batch := model.NewBatchProcessingResult([]model.ProcessingResult{
		{Success: true}, {Success: false}, {Success: true},
	}, 0)

	assert.Equal(t, 3, batch.Processed)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	assert.InDelta(t, 66.67, batch.SuccessRate(), 0.01)

	empty := model.NewBatchProcessingResult(nil, 0)
	assert.Zero(t, empty.SuccessRate())
}
