package branches

import "time"

// BranchMergedEvent is published after a merge commits so activity logging
// and notification collaborators can react. The engine has no opinion on what
// subscribers do with it.
type BranchMergedEvent struct {
	ProjectID      string
	SourceBranchID string
	TargetBranchID string
	ActorID        string
	Counts         MergeResult
	OccurredAt     time.Time
}

// EventPublisher receives domain events from the merge executor. Implementations
// must not block: publishing happens after the transaction commits and a slow
// subscriber must not delay the response.
type EventPublisher interface {
	PublishBranchMerged(event BranchMergedEvent)
}
