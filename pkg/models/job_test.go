package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusCanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to JobStatus
		allowed  bool
	}{
		{JobPending, JobRunning, true},
		{JobPending, JobCancelled, true},
		{JobPending, JobCompleted, false},
		{JobPending, JobFailed, false},
		{JobRunning, JobCompleted, true},
		{JobRunning, JobFailed, true},
		{JobRunning, JobCancelled, true},
		{JobRunning, JobPending, false},
		{JobCompleted, JobRunning, false},
		{JobFailed, JobRunning, false},
		{JobCancelled, JobRunning, false},
		{JobCompleted, JobFailed, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestJobTransition(t *testing.T) {
	t.Run("running stamps started_at", func(t *testing.T) {
		job := NewJob("ds-1", "summarize", "abc123def456", map[string]any{"text": "hi"})
		assert.Equal(t, JobPending, job.Status)
		assert.Nil(t, job.StartedAt)

		require.NoError(t, job.Transition(JobRunning))
		assert.Equal(t, JobRunning, job.Status)
		assert.NotNil(t, job.StartedAt)
		assert.Nil(t, job.CompletedAt)
	})

	t.Run("completed stamps completed_at", func(t *testing.T) {
		job := NewJob("ds-1", "summarize", "abc123def456", nil)
		require.NoError(t, job.Transition(JobRunning))
		require.NoError(t, job.Transition(JobCompleted))
		assert.NotNil(t, job.CompletedAt)
	})

	t.Run("illegal transition is rejected and leaves state untouched", func(t *testing.T) {
		job := NewJob("ds-1", "summarize", "abc123def456", nil)
		require.NoError(t, job.Transition(JobRunning))
		require.NoError(t, job.Transition(JobCompleted))

		err := job.Transition(JobRunning)
		var illegal *IllegalTransitionError
		require.ErrorAs(t, err, &illegal)
		assert.Equal(t, JobCompleted, illegal.From)
		assert.Equal(t, JobRunning, illegal.To)
		assert.ErrorIs(t, err, ErrIllegalTransition)
		assert.Equal(t, JobCompleted, job.Status)
	})

	t.Run("cancel from pending", func(t *testing.T) {
		job := NewJob("ds-1", "summarize", "abc123def456", nil)
		require.NoError(t, job.Transition(JobCancelled))
		assert.True(t, job.Status.Terminal())
		assert.Nil(t, job.CompletedAt)
	})
}

func TestJobRecordError(t *testing.T) {
	// Recording an error does not force a status change; callers decide
	// whether the job is actually FAILED.
	job := NewJob("ds-1", "summarize", "abc123def456", nil)
	require.NoError(t, job.Transition(JobRunning))
	job.RecordError("upstream flaked once")
	assert.Equal(t, JobRunning, job.Status)
	assert.Equal(t, "upstream flaked once", job.Error)
}

func TestNewJobHasUniqueIDs(t *testing.T) {
	a := NewJob("ds-1", "summarize", "v1", nil)
	b := NewJob("ds-1", "summarize", "v1", nil)
	assert.NotEqual(t, a.JobID, b.JobID)
}
