package engine

import "fmt"

// SyncErrorKind classifies orchestration failures.
type SyncErrorKind string

const (
	NotConnected SyncErrorKind = "not_connected"
	SyncAborted  SyncErrorKind = "aborted"
)

// SyncError is returned when a sync run cannot proceed at all. Per-post
// failures do not produce a SyncError; they are reported in SyncResult.
type SyncError struct {
	Kind      SyncErrorKind
	AccountID string
	Err       error
}

func (e *SyncError) Error() string {
	msg := fmt.Sprintf("sync %s: account %s", e.Kind, e.AccountID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SyncError) Unwrap() error { return e.Err }

// PostFailure records one skipped per-post fetch during a sync run.
type PostFailure struct {
	PostID string
	Step   string // "likers", "resharers", "followers", "posts"
	Err    string
}
