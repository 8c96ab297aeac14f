// Package rank computes weighted follower scores and the leaderboard.
// Everything here is pure over a snapshot; no network or store access.
package rank

import (
	"math"
	"sort"
	"time"

	"flockrank/internal/model"
)

// DefaultWeights are the per-kind score weights.
var DefaultWeights = map[model.ActionKind]int{
	model.KindRepost: 3,
	model.KindReply:  2,
	model.KindLike:   1,
}

// Entry is one ranked follower.
type Entry struct {
	FollowerID  string
	ExternalID  string
	Handle      string
	DisplayName string
	AvatarURL   string
	Score       int
	LikeCount   int
	ReplyCount  int
	RepostCount int
	// EngagementRate is score divided by days since the follower was added
	// (at least one day), rounded to three decimals.
	EngagementRate float64
	LastActionAt   time.Time
}

// Board is a paginated leaderboard view.
type Board struct {
	Entries  []Entry
	Weights  map[model.ActionKind]int
	Page     int
	PageSize int
	Total    int
}

// Build ranks all non-excluded followers by weighted score, descending.
// Ties keep snapshot order, so repeated renders of the same snapshot are
// reproducible.
func Build(snap model.Snapshot, now time.Time) []Entry {
	byFollower := make(map[string][]model.EngagementAction)
	for _, a := range snap.Actions {
		byFollower[a.FollowerID] = append(byFollower[a.FollowerID], a)
	}
	entries := make([]Entry, 0, len(snap.Followers))
	for _, f := range snap.Followers {
		if f.Excluded {
			continue
		}
		e := Entry{
			FollowerID:  f.ID,
			ExternalID:  f.ExternalID,
			Handle:      f.Handle,
			DisplayName: f.DisplayName,
			AvatarURL:   f.AvatarURL,
		}
		for _, a := range byFollower[f.ID] {
			e.Score += DefaultWeights[a.Kind]
			switch a.Kind {
			case model.KindLike:
				e.LikeCount++
			case model.KindReply:
				e.ReplyCount++
			case model.KindRepost:
				e.RepostCount++
			}
			if a.CreatedAt.After(e.LastActionAt) {
				e.LastActionAt = a.CreatedAt
			}
		}
		e.EngagementRate = engagementRate(e.Score, f.AddedAt, now)
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	return entries
}

// Page returns the 1-indexed page of a ranked entry list. Pages past the end
// are empty, never an error.
func Page(entries []Entry, page, pageSize int) Board {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	b := Board{Weights: DefaultWeights, Page: page, PageSize: pageSize, Total: len(entries)}
	lo := (page - 1) * pageSize
	if lo >= len(entries) {
		b.Entries = []Entry{}
		return b
	}
	hi := lo + pageSize
	if hi > len(entries) {
		hi = len(entries)
	}
	b.Entries = entries[lo:hi]
	return b
}

func engagementRate(score int, addedAt, now time.Time) float64 {
	days := math.Ceil(now.Sub(addedAt).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return math.Round(float64(score)/days*1000) / 1000
}
