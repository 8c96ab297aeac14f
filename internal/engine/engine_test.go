package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flockrank/internal/model"
	"flockrank/internal/store"
	"flockrank/internal/xauth"
	"flockrank/internal/xclient"
)

// fakeClient serves canned API responses and records which token built it.
type fakeClient struct {
	token     string
	me        model.User
	pages     []xclient.FollowerPage
	posts     []model.Post
	likers    map[string][]model.User
	resharers map[string][]model.User
	likerErr  map[string]error
	meErr     error
}

func (f *fakeClient) Me(ctx context.Context) (model.User, error) {
	if f.meErr != nil {
		return model.User{}, f.meErr
	}
	return f.me, nil
}

func (f *fakeClient) FollowerPage(ctx context.Context, userID, cursor string) (xclient.FollowerPage, error) {
	idx := 0
	if cursor != "" {
		for i, p := range f.pages {
			if p.NextToken == cursor {
				idx = i + 1
			}
		}
	}
	if idx >= len(f.pages) {
		return xclient.FollowerPage{}, nil
	}
	return f.pages[idx], nil
}

func (f *fakeClient) RecentPosts(ctx context.Context, userID string, limit int) ([]model.Post, error) {
	return f.posts, nil
}

func (f *fakeClient) Likers(ctx context.Context, postID string) ([]model.User, error) {
	if err := f.likerErr[postID]; err != nil {
		return nil, err
	}
	return f.likers[postID], nil
}

func (f *fakeClient) Resharers(ctx context.Context, postID string) ([]model.User, error) {
	return f.resharers[postID], nil
}

func fixedFactory(f *fakeClient) ClientFactory {
	return func(token string) xclient.Client {
		f.token = token
		return f
	}
}

func testEngine(t *testing.T, f *fakeClient) (*Engine, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	auth := xauth.NewClient(xauth.Config{ClientID: "cid", TokenURL: "http://invalid.test/token"})
	return New(st, auth, fixedFactory(f), Options{FanOut: 2}), st
}

func connectedClient() *fakeClient {
	now := time.Now().UTC()
	return &fakeClient{
		me: model.User{ID: "owner", Handle: "ownerhandle"},
		pages: []xclient.FollowerPage{
			{Users: []model.User{{ID: "1", Handle: "a"}, {ID: "2", Handle: "b"}}, NextToken: "n1"},
			{Users: []model.User{{ID: "3", Handle: "c"}}},
		},
		posts: []model.Post{
			{ID: "P1", AuthorID: "owner", Text: "first", CreatedAt: now},
			{ID: "P2", AuthorID: "owner", Text: "second", CreatedAt: now},
		},
		likers: map[string][]model.User{
			"P1": {{ID: "1"}, {ID: "999"}}, // 999 is not a follower
			"P2": {{ID: "2"}},
		},
		resharers: map[string][]model.User{
			"P1": {{ID: "3"}},
		},
	}
}

func connect(t *testing.T, st *store.Memory) {
	t.Helper()
	if err := st.SetCredential(context.Background(), model.Credential{AccountID: "acc", AccessToken: "tok"}); err != nil {
		t.Fatal(err)
	}
}

func TestSyncNotConnected(t *testing.T) {
	e, _ := testEngine(t, connectedClient())
	_, err := e.Sync(context.Background(), "acc")
	var se *SyncError
	if !errors.As(err, &se) || se.Kind != NotConnected {
		t.Fatalf("expected NotConnected, got %v", err)
	}
}

func TestSyncPopulatesSnapshot(t *testing.T) {
	f := connectedClient()
	e, st := testEngine(t, f)
	connect(t, st)

	res, err := e.Sync(context.Background(), "acc")
	if err != nil {
		t.Fatal(err)
	}
	if res.Handle != "ownerhandle" {
		t.Fatalf("handle = %q", res.Handle)
	}
	if res.FollowersSynced != 3 {
		t.Fatalf("followers synced = %d", res.FollowersSynced)
	}
	// liker 1 on P1, liker 2 on P2, resharer 3 on P1; user 999 skipped
	if res.ActionsSynced != 3 {
		t.Fatalf("actions synced = %d", res.ActionsSynced)
	}
	if len(res.Failures) != 0 {
		t.Fatalf("unexpected failures: %+v", res.Failures)
	}
	snap, _ := st.Snapshot(context.Background(), "acc")
	if len(snap.Followers) != 3 || len(snap.Actions) != 3 {
		t.Fatalf("snapshot %d followers / %d actions", len(snap.Followers), len(snap.Actions))
	}
	// who-am-I result persisted into the credential
	cred, _, _ := st.Credential(context.Background(), "acc")
	if cred.ExternalID != "owner" || cred.Handle != "ownerhandle" {
		t.Fatalf("identity not persisted: %+v", cred)
	}
}

func TestSyncIdempotent(t *testing.T) {
	f := connectedClient()
	e, st := testEngine(t, f)
	connect(t, st)
	ctx := context.Background()

	if _, err := e.Sync(ctx, "acc"); err != nil {
		t.Fatal(err)
	}
	first, _ := st.Snapshot(ctx, "acc")
	if _, err := e.Sync(ctx, "acc"); err != nil {
		t.Fatal(err)
	}
	second, _ := st.Snapshot(ctx, "acc")

	if len(first.Followers) != len(second.Followers) {
		t.Fatalf("follower count changed: %d -> %d", len(first.Followers), len(second.Followers))
	}
	if len(first.Actions) != len(second.Actions) {
		t.Fatalf("action count changed: %d -> %d", len(first.Actions), len(second.Actions))
	}
	b1, _ := e.GetLeaderboard(ctx, "acc", 1, 50)
	b2, _ := e.GetLeaderboard(ctx, "acc", 1, 50)
	for i := range b1.Entries {
		if b1.Entries[i].Score != b2.Entries[i].Score {
			t.Fatalf("scores changed between identical syncs")
		}
	}
}

func TestSyncPreservesExclusion(t *testing.T) {
	f := connectedClient()
	e, st := testEngine(t, f)
	connect(t, st)
	ctx := context.Background()

	if _, err := e.Sync(ctx, "acc"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetExcluded(ctx, "acc", model.FollowerID("1"), true); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Sync(ctx, "acc"); err != nil {
		t.Fatal(err)
	}
	snap, _ := st.Snapshot(ctx, "acc")
	for _, fo := range snap.Followers {
		if fo.ExternalID == "1" && !fo.Excluded {
			t.Fatal("excluded flag lost after re-sync")
		}
	}
}

func TestSyncPartialFailure(t *testing.T) {
	now := time.Now().UTC()
	f := connectedClient()
	f.posts = []model.Post{
		{ID: "P1", Text: "one", CreatedAt: now},
		{ID: "P2", Text: "two", CreatedAt: now},
		{ID: "P3", Text: "three", CreatedAt: now},
	}
	f.likers = map[string][]model.User{
		"P1": {{ID: "1"}},
		"P3": {{ID: "2"}},
	}
	f.likerErr = map[string]error{
		"P2": &xclient.APIError{Kind: xclient.RateLimited, Endpoint: "/tweets/P2/liking_users"},
	}
	f.resharers = nil

	e, st := testEngine(t, f)
	connect(t, st)

	res, err := e.Sync(context.Background(), "acc")
	if err != nil {
		t.Fatalf("partial failure must not abort the run: %v", err)
	}
	if res.ActionsSynced != 2 {
		t.Fatalf("actions from posts 1 and 3 should be recorded, got %d", res.ActionsSynced)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("expected exactly one failure entry, got %+v", res.Failures)
	}
	if res.Failures[0].PostID != "P2" || res.Failures[0].Step != "likers" {
		t.Fatalf("failure should name post 2 likers: %+v", res.Failures[0])
	}
}

func TestSyncAbortsOnUnauthorized(t *testing.T) {
	f := connectedClient()
	f.meErr = &xclient.APIError{Kind: xclient.Unauthorized, Status: 401, Endpoint: "/users/me"}
	e, st := testEngine(t, f)
	connect(t, st)

	_, err := e.Sync(context.Background(), "acc")
	var se *SyncError
	if !errors.As(err, &se) || se.Kind != SyncAborted {
		t.Fatalf("expected abort on unauthorized, got %v", err)
	}
}

func TestSyncRefreshesExpiredCredential(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("grant_type") != "refresh_token" {
			t.Fatalf("grant_type = %q", r.Form.Get("grant_type"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","refresh_token":"rt2","expires_in":7200}`))
	}))
	defer ts.Close()

	f := connectedClient()
	st := store.NewMemory()
	auth := xauth.NewClient(xauth.Config{ClientID: "cid", TokenURL: ts.URL})
	e := New(st, auth, fixedFactory(f), Options{FanOut: 2})
	ctx := context.Background()
	_ = st.SetCredential(ctx, model.Credential{
		AccountID:    "acc",
		AccessToken:  "stale",
		RefreshToken: "rt1",
		Expiry:       time.Now().UTC().Add(-time.Hour),
	})

	if _, err := e.Sync(ctx, "acc"); err != nil {
		t.Fatal(err)
	}
	if f.token != "fresh" {
		t.Fatalf("client should use the refreshed token, got %q", f.token)
	}
	cred, _, _ := st.Credential(ctx, "acc")
	if cred.AccessToken != "fresh" || cred.RefreshToken != "rt2" {
		t.Fatalf("refreshed credential not persisted: %+v", cred)
	}
}

func TestConnectVerifiesToken(t *testing.T) {
	f := connectedClient()
	e, st := testEngine(t, f)

	handle, err := e.Connect(context.Background(), "acc", "manual-token")
	if err != nil {
		t.Fatal(err)
	}
	if handle != "ownerhandle" {
		t.Fatalf("handle = %q", handle)
	}
	cred, ok, _ := st.Credential(context.Background(), "acc")
	if !ok || cred.AccessToken != "manual-token" || cred.ExternalID != "owner" {
		t.Fatalf("credential not persisted: %+v", cred)
	}
}

func TestDisconnectClearsState(t *testing.T) {
	f := connectedClient()
	e, st := testEngine(t, f)
	connect(t, st)
	ctx := context.Background()
	if _, err := e.Sync(ctx, "acc"); err != nil {
		t.Fatal(err)
	}
	if err := e.Disconnect(ctx, "acc"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := st.Credential(ctx, "acc"); ok {
		t.Fatal("credential should be cleared")
	}
	snap, _ := st.Snapshot(ctx, "acc")
	if len(snap.Followers) != 0 || len(snap.Actions) != 0 {
		t.Fatal("snapshot should be cleared")
	}
}

func TestSeedReplyCountsInLeaderboard(t *testing.T) {
	f := connectedClient()
	e, st := testEngine(t, f)
	connect(t, st)
	ctx := context.Background()
	if _, err := e.Sync(ctx, "acc"); err != nil {
		t.Fatal(err)
	}
	fid := model.FollowerID("1")
	if err := e.SeedReply(ctx, "acc", fid, "P1", "https://x.com/ownerhandle/status/P1", "nice"); err != nil {
		t.Fatal(err)
	}
	// seeding the same reply twice is an overwrite, not a duplicate
	if err := e.SeedReply(ctx, "acc", fid, "P1", "https://x.com/ownerhandle/status/P1", "nice"); err != nil {
		t.Fatal(err)
	}
	acts, _ := e.Actions(ctx, "acc", fid)
	replies := 0
	for _, a := range acts {
		if a.Kind == model.KindReply {
			replies++
		}
	}
	if replies != 1 {
		t.Fatalf("expected 1 reply action, got %d", replies)
	}
}

func TestFollowersFilter(t *testing.T) {
	f := connectedClient()
	e, st := testEngine(t, f)
	connect(t, st)
	ctx := context.Background()
	if _, err := e.Sync(ctx, "acc"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetExcluded(ctx, "acc", model.FollowerID("2"), true); err != nil {
		t.Fatal(err)
	}
	visible, err := e.Followers(ctx, "acc", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible followers, got %d", len(visible))
	}
	all, _ := e.Followers(ctx, "acc", "", true)
	if len(all) != 3 {
		t.Fatalf("expected 3 followers including excluded, got %d", len(all))
	}
	matched, _ := e.Followers(ctx, "acc", "A", true)
	if len(matched) != 1 || matched[0].Handle != "a" {
		t.Fatalf("case-insensitive search failed: %+v", matched)
	}
}
