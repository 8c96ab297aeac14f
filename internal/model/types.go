package model

import "time"

// ActionKind enumerates the engagement kinds we track.
type ActionKind string

const (
	KindLike   ActionKind = "LIKE"
	KindRepost ActionKind = "REPOST"
	KindReply  ActionKind = "REPLY"
)

// Credential holds the tokens for one tracked account.
type Credential struct {
	AccountID    string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	// Resolved identity of the authenticated account on the platform.
	ExternalID string
	Handle     string
}

// Expired reports whether the access token is past its expiry.
// A zero expiry means the provider did not report one.
func (c Credential) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && now.After(c.Expiry)
}

// User represents a subset of platform user fields used by the engine.
type User struct {
	ID        string
	Handle    string
	Name      string
	AvatarURL string
}

// Post represents a subset of platform post fields used by the engine.
type Post struct {
	ID        string
	AuthorID  string
	Text      string
	CreatedAt time.Time
}

// Follower is a tracked follower of an account.
// ExternalID is the natural key; ID is derived from it and never regenerated.
type Follower struct {
	ID          string
	ExternalID  string
	Handle      string
	DisplayName string
	AvatarURL   string
	Excluded    bool
	AddedAt     time.Time
}

// EngagementAction records one engagement by a follower on one post.
// ID is a deterministic function of (Kind, PostID, FollowerID), so re-syncing
// the same pair overwrites instead of duplicating.
type EngagementAction struct {
	ID         string
	FollowerID string
	Kind       ActionKind
	PostID     string
	PostURL    string
	Text       string
	CreatedAt  time.Time
}

// Snapshot is the follower and action state for one account.
// Every action's FollowerID references a follower in the same snapshot.
type Snapshot struct {
	AccountID string
	Followers []Follower
	Actions   []EngagementAction
}
