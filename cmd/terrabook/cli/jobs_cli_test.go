package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/terrabook/terrabook/jobs"
)

func TestBuildTaskKnownJobs(t *testing.T) {
	for _, name := range []string{jobs.TaskOverdueScan, jobs.TaskReportWarmup, jobs.TaskIdempotencyCleanup} {
		task, err := BuildTask(name)
		require.NoError(t, err)
		require.Equal(t, name, task.Type())
		require.True(t, json.Valid(task.Payload()), "payload for %s must be JSON", name)
	}
}

func TestBuildTaskUnsupportedJob(t *testing.T) {
	_, err := BuildTask("finance:unknown")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported job")
}

func TestTriggerWithoutClient(t *testing.T) {
	var cli *JobsCLI
	_, err := cli.Trigger(context.Background(), jobs.TaskOverdueScan)
	require.Error(t, err)
}
