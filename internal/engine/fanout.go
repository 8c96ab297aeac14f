package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flockrank/internal/model"
	"flockrank/internal/xclient"
)

// fanOut fetches likers and re-sharers for each post with bounded
// concurrency and joins the returned users against the follower map. Users
// not in the map are skipped: they are not currently followers, or the
// paginated follower list was incomplete. A failed fetch skips that post's
// kind only; the run continues.
func (e *Engine) fanOut(ctx context.Context, client xclient.Client, handle string, posts []model.Post, followerIDs map[string]string, now time.Time) ([]model.EngagementAction, []PostFailure) {
	type result struct {
		actions  []model.EngagementAction
		failures []PostFailure
	}

	jobs := make(chan model.Post)
	results := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < e.opts.FanOut; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for post := range jobs {
				var r result
				likers, err := client.Likers(ctx, post.ID)
				if err != nil {
					r.failures = append(r.failures, PostFailure{PostID: post.ID, Step: "likers", Err: err.Error()})
				} else {
					r.actions = append(r.actions, joinUsers(model.KindLike, post, handle, likers, followerIDs, now)...)
				}
				resharers, err := client.Resharers(ctx, post.ID)
				if err != nil {
					r.failures = append(r.failures, PostFailure{PostID: post.ID, Step: "resharers", Err: err.Error()})
				} else {
					r.actions = append(r.actions, joinUsers(model.KindRepost, post, handle, resharers, followerIDs, now)...)
				}
				results <- r
			}
		}()
	}
	go func() {
		for _, p := range posts {
			jobs <- p
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var actions []model.EngagementAction
	var failures []PostFailure
	for r := range results {
		actions = append(actions, r.actions...)
		failures = append(failures, r.failures...)
	}
	return actions, failures
}

func joinUsers(kind model.ActionKind, post model.Post, handle string, users []model.User, followerIDs map[string]string, now time.Time) []model.EngagementAction {
	var out []model.EngagementAction
	for _, u := range users {
		localID, ok := followerIDs[u.ID]
		if !ok {
			continue
		}
		out = append(out, model.EngagementAction{
			ID:         model.ActionID(kind, post.ID, localID),
			FollowerID: localID,
			Kind:       kind,
			PostID:     post.ID,
			PostURL:    postURL(handle, post.ID),
			Text:       post.Text,
			CreatedAt:  now,
		})
	}
	return out
}

func postURL(handle, postID string) string {
	return fmt.Sprintf("https://x.com/%s/status/%s", handle, postID)
}
