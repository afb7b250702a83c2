package model

// RunRecorder persists finished playback runs.
type RunRecorder interface {
	RecordRun(run RunSummary) (uint64, error)
}

// RunQuerier provides read-only access to recorded runs.
type RunQuerier interface {
	RecentRuns(limit int) ([]RunSummary, error)
	RunCount() (int64, error)
}

// RunStore is the unified run history contract.
type RunStore interface {
	RunRecorder
	RunQuerier
}
