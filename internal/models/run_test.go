package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordStepReplaces(t *testing.T) {
	r := &OrchestrationRun{}
	r.RecordStep(StepRecord{Name: "deploy", Outcome: StepFailed})
	require.False(t, r.StepDone("deploy"))

	r.RecordStep(StepRecord{Name: "deploy", Outcome: StepSucceeded})
	require.Len(t, r.Steps, 1)
	require.True(t, r.StepDone("deploy"))
}

func TestStepDoneCountsFallback(t *testing.T) {
	r := &OrchestrationRun{}
	r.RecordStep(StepRecord{Name: "plan", Outcome: StepFallback})
	require.True(t, r.StepDone("plan"))
	require.False(t, r.StepDone("codegen"))
}

func TestTerminal(t *testing.T) {
	for status, want := range map[string]bool{
		RunPending: false, RunRunning: false,
		RunSucceeded: true, RunFailed: true, RunAborted: true,
	} {
		require.Equal(t, want, (&OrchestrationRun{Status: status}).Terminal(), status)
	}
}
