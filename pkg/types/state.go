package types

// JobState is the lifecycle state of a directory's indexing job
type JobState string

const (
	StateIdle      JobState = "idle"
	StateIndexing  JobState = "indexing"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// Terminal reports whether no further transitions happen without a new job
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Valid reports whether s is a known state
func (s JobState) Valid() bool {
	switch s {
	case StateIdle, StateIndexing, StateCompleted, StateFailed:
		return true
	}
	return false
}
