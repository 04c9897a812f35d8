package domain

// JobStatus enumerates the lifecycle states of one assistant run.
type JobStatus string

const (
	JobStatusQueued         JobStatus = "queued"
	JobStatusRunning        JobStatus = "in_progress"
	JobStatusRequiresAction JobStatus = "requires_action"
	JobStatusCancelling     JobStatus = "cancelling"
	JobStatusCompleted      JobStatus = "completed"
	JobStatusFailed         JobStatus = "failed"
	JobStatusCancelled      JobStatus = "cancelled"
	JobStatusExpired        JobStatus = "expired"
	JobStatusIncomplete     JobStatus = "incomplete"

	// JobStatusTimedOutLocally is never reported by the assistant service. It
	// marks a wait loop that ran out of polls before the run settled.
	JobStatusTimedOutLocally JobStatus = "timed_out_locally"
)

// IsTerminal reports whether no further remote transition will happen.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s.IsTerminalError()
}

// IsTerminalError reports whether the run ended without producing output.
func (s JobStatus) IsTerminalError() bool {
	switch s {
	case JobStatusFailed, JobStatusCancelled, JobStatusExpired, JobStatusIncomplete, JobStatusTimedOutLocally:
		return true
	default:
		return false
	}
}

// RunState is the polling-observable part of a remote run.
type RunState struct {
	ID        string
	Status    JobStatus
	LastError string
}
