// Package demo seeds a canned snapshot for running without platform access.
// It is wired only at the composition boundary behind the demo config flag.
package demo

import (
	"context"
	"time"

	"flockrank/internal/model"
	"flockrank/internal/store"
)

type seedFollower struct {
	externalID  string
	handle      string
	displayName string
	actions     []seedAction
}

type seedAction struct {
	kind    model.ActionKind
	postID  string
	text    string
	daysAgo int
}

var followers = []seedFollower{
	{"demo_1", "tech_enthusiast", "Tech Enthusiast", []seedAction{
		{model.KindRepost, "t1", "Great post!", 0},
		{model.KindLike, "t2", "", 1},
	}},
	{"demo_2", "crypto_insider", "Crypto Insider", []seedAction{
		{model.KindRepost, "t1", "Wow!", 0},
		{model.KindReply, "t3", "Totally agree", 0},
		{model.KindLike, "t4", "", 2},
	}},
	{"demo_3", "design_lover", "Design Lover", []seedAction{
		{model.KindLike, "t5", "", 0},
		{model.KindLike, "t6", "", 1},
		{model.KindLike, "t7", "", 2},
	}},
	{"demo_4", "marketing_guru", "Marketing Guru", []seedAction{
		{model.KindReply, "t8", "Great insights!", 0},
		{model.KindLike, "t9", "", 0},
	}},
	{"demo_5", "startup_founder", "Startup Founder", []seedAction{
		{model.KindRepost, "t10", "Must read!", 0},
		{model.KindRepost, "t11", "Sharing with my network", 1},
		{model.KindReply, "t12", "Question?", 2},
		{model.KindLike, "t13", "", 3},
	}},
}

// Seed fills the store with the demo snapshot. Re-seeding is an overwrite,
// same as a real sync.
func Seed(ctx context.Context, st store.Store, accountID string, now time.Time) error {
	for _, sf := range followers {
		f := model.Follower{
			ID:          model.FollowerID(sf.externalID),
			ExternalID:  sf.externalID,
			Handle:      sf.handle,
			DisplayName: sf.displayName,
			AddedAt:     now.AddDate(0, 0, -7),
		}
		if err := st.UpsertFollower(ctx, accountID, f); err != nil {
			return err
		}
		for _, sa := range sf.actions {
			a := model.EngagementAction{
				ID:         model.ActionID(sa.kind, sa.postID, f.ID),
				FollowerID: f.ID,
				Kind:       sa.kind,
				PostID:     sa.postID,
				PostURL:    "https://x.com/user/status/" + sa.postID,
				Text:       sa.text,
				CreatedAt:  now.AddDate(0, 0, -sa.daysAgo),
			}
			if err := st.UpsertAction(ctx, accountID, a); err != nil {
				return err
			}
		}
	}
	return nil
}
