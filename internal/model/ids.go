package model

import "fmt"

// FollowerID derives the stable local id for a platform user id.
func FollowerID(externalID string) string {
	return "follower_" + externalID
}

// ActionID derives the deterministic id for an engagement action.
// Equal inputs always produce equal ids, across runs and processes.
func ActionID(kind ActionKind, postID, followerID string) string {
	var prefix string
	switch kind {
	case KindLike:
		prefix = "like"
	case KindRepost:
		prefix = "rt"
	case KindReply:
		prefix = "re"
	default:
		prefix = "act"
	}
	return fmt.Sprintf("%s_%s_%s", prefix, postID, followerID)
}
