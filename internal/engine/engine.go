// Package engine drives follower and engagement synchronization and exposes
// the read surface consumed by presentation layers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"flockrank/internal/logging"
	"flockrank/internal/metrics"
	"flockrank/internal/model"
	"flockrank/internal/rank"
	"flockrank/internal/store"
	"flockrank/internal/util"
	"flockrank/internal/xauth"
	"flockrank/internal/xclient"
)

// ClientFactory builds an API client for an access token. Injected so tests
// can substitute fakes.
type ClientFactory func(accessToken string) xclient.Client

// Options tune a sync run.
type Options struct {
	PostLimit int           // recent posts to fan out over, default 100
	FanOut    int           // concurrent per-post fetches, default 6
	Timeout   time.Duration // overall run timeout, 0 = none
}

// SyncResult reports a completed (possibly partial) sync run.
type SyncResult struct {
	FollowersSynced int
	ActionsSynced   int
	Handle          string
	// Failures lists per-post fetches that were skipped. A non-empty list
	// alongside a result is partial completion, not a fatal error.
	Failures []PostFailure
}

// Engine owns sync orchestration. Runs for the same account are serialized;
// different accounts proceed independently.
type Engine struct {
	store     store.Store
	auth      *xauth.Client
	newClient ClientFactory
	opts      Options
	nowFn     func() time.Time

	mu       sync.Mutex
	runLocks map[string]*sync.Mutex
}

func New(st store.Store, auth *xauth.Client, factory ClientFactory, opts Options) *Engine {
	if opts.PostLimit <= 0 {
		opts.PostLimit = 100
	}
	if opts.FanOut <= 0 {
		opts.FanOut = 6
	}
	return &Engine{
		store:     st,
		auth:      auth,
		newClient: factory,
		opts:      opts,
		nowFn:     time.Now,
		runLocks:  make(map[string]*sync.Mutex),
	}
}

func (e *Engine) runLock(accountID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.runLocks[accountID]
	if !ok {
		l = &sync.Mutex{}
		e.runLocks[accountID] = l
	}
	return l
}

// Connect normalizes a manually supplied bearer token into a credential,
// verifying it with a who-am-I call first.
func (e *Engine) Connect(ctx context.Context, accountID, accessToken string) (string, error) {
	if accessToken == "" {
		return "", &SyncError{Kind: NotConnected, AccountID: accountID, Err: errors.New("empty access token")}
	}
	me, err := e.newClient(accessToken).Me(ctx)
	if err != nil {
		return "", fmt.Errorf("verify token: %w", err)
	}
	cred := model.Credential{
		AccountID:   accountID,
		AccessToken: accessToken,
		ExternalID:  me.ID,
		Handle:      me.Handle,
	}
	if err := e.store.SetCredential(ctx, cred); err != nil {
		return "", err
	}
	return me.Handle, nil
}

// ConnectAuthorized persists a credential obtained from the OAuth exchange,
// resolving the account's identity on the way in.
func (e *Engine) ConnectAuthorized(ctx context.Context, accountID string, cred model.Credential) (string, error) {
	me, err := e.newClient(cred.AccessToken).Me(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve identity: %w", err)
	}
	cred.AccountID = accountID
	cred.ExternalID = me.ID
	cred.Handle = me.Handle
	if err := e.store.SetCredential(ctx, cred); err != nil {
		return "", err
	}
	return me.Handle, nil
}

// Sync runs the full pipeline for one account: credential check, identity
// resolution, follower pagination, recent posts, per-post engagement fan-out.
// Already-upserted records are kept on timeout or late failure.
func (e *Engine) Sync(ctx context.Context, accountID string) (SyncResult, error) {
	lock := e.runLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	start := e.nowFn()
	metrics.SyncRuns.Inc()
	res, err := e.sync(ctx, accountID)
	metrics.ObserveSyncDuration(start)
	if err != nil {
		metrics.SyncErrors.Inc()
		logging.Error("sync_failed", map[string]any{"account": accountID, "error": err.Error()})
		return res, err
	}
	if len(res.Failures) > 0 {
		metrics.PartialFailures.Add(float64(len(res.Failures)))
		logging.Warn("sync_partial", map[string]any{
			"account": accountID, "failures": len(res.Failures),
			"followers": res.FollowersSynced, "actions": res.ActionsSynced,
		})
	} else {
		logging.Info("sync_ok", map[string]any{
			"account": accountID, "followers": res.FollowersSynced, "actions": res.ActionsSynced,
		})
	}
	return res, nil
}

func (e *Engine) sync(ctx context.Context, accountID string) (SyncResult, error) {
	var res SyncResult
	now := e.nowFn().UTC()

	// step 1: valid credential, refreshing if possible
	cred, ok, err := e.store.Credential(ctx, accountID)
	if err != nil {
		return res, err
	}
	if !ok || cred.AccessToken == "" {
		return res, &SyncError{Kind: NotConnected, AccountID: accountID}
	}
	if cred.Expired(now) {
		if cred.RefreshToken == "" {
			return res, &SyncError{Kind: NotConnected, AccountID: accountID, Err: errors.New("token expired, no refresh token")}
		}
		fresh, err := e.auth.Refresh(ctx, cred.RefreshToken)
		if err != nil {
			return res, &SyncError{Kind: SyncAborted, AccountID: accountID, Err: err}
		}
		cred.AccessToken = fresh.AccessToken
		if fresh.RefreshToken != "" {
			cred.RefreshToken = fresh.RefreshToken
		}
		cred.Expiry = fresh.Expiry
		if err := e.store.SetCredential(ctx, cred); err != nil {
			return res, err
		}
	}
	client := e.newClient(cred.AccessToken)

	// step 2: resolve own identity
	me, err := client.Me(ctx)
	if err != nil {
		return res, &SyncError{Kind: SyncAborted, AccountID: accountID, Err: err}
	}
	cred.ExternalID = me.ID
	cred.Handle = me.Handle
	if err := e.store.SetCredential(ctx, cred); err != nil {
		return res, err
	}
	res.Handle = me.Handle

	// step 3: paginate the full follower list
	followerIDs := make(map[string]string) // externalID -> local follower id
	stream := xclient.NewFollowerStream(client, me.ID)
	for {
		u, more, err := stream.Next(ctx)
		if err != nil {
			if isUnauthorized(err) {
				return res, &SyncError{Kind: SyncAborted, AccountID: accountID, Err: err}
			}
			// keep what we have; the partial map still joins correctly
			res.Failures = append(res.Failures, PostFailure{Step: "followers", Err: err.Error()})
			break
		}
		if !more {
			break
		}
		localID := model.FollowerID(u.ID)
		f := model.Follower{
			ID:          localID,
			ExternalID:  u.ID,
			Handle:      u.Handle,
			DisplayName: u.Name,
			AvatarURL:   u.AvatarURL,
			AddedAt:     now,
		}
		if err := e.store.UpsertFollower(ctx, accountID, f); err != nil {
			return res, err
		}
		followerIDs[u.ID] = localID
		res.FollowersSynced++
	}

	// step 4: recent posts, single bounded page
	posts, err := client.RecentPosts(ctx, me.ID, e.opts.PostLimit)
	if err != nil {
		if isUnauthorized(err) {
			return res, &SyncError{Kind: SyncAborted, AccountID: accountID, Err: err}
		}
		res.Failures = append(res.Failures, PostFailure{Step: "posts", Err: err.Error()})
		return res, nil
	}

	// step 5: per-post engagement fan-out
	actions, failures := e.fanOut(ctx, client, me.Handle, posts, followerIDs, now)
	res.Failures = append(res.Failures, failures...)
	for _, a := range actions {
		if err := e.store.UpsertAction(ctx, accountID, a); err != nil {
			return res, err
		}
		res.ActionsSynced++
	}
	return res, nil
}

// Disconnect clears the account's credential and snapshot.
func (e *Engine) Disconnect(ctx context.Context, accountID string) error {
	return e.store.Clear(ctx, accountID)
}

// GetSnapshot returns the account's current snapshot.
func (e *Engine) GetSnapshot(ctx context.Context, accountID string) (model.Snapshot, error) {
	return e.store.Snapshot(ctx, accountID)
}

// GetLeaderboard returns one page of the weighted leaderboard.
func (e *Engine) GetLeaderboard(ctx context.Context, accountID string, page, pageSize int) (rank.Board, error) {
	snap, err := e.store.Snapshot(ctx, accountID)
	if err != nil {
		return rank.Board{}, err
	}
	return rank.Page(rank.Build(snap, e.nowFn().UTC()), page, pageSize), nil
}

// SetExcluded toggles a follower's local-only exclusion flag.
func (e *Engine) SetExcluded(ctx context.Context, accountID, followerID string, excluded bool) error {
	ok, err := e.store.SetExcluded(ctx, accountID, followerID, excluded)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("follower %s not found for account %s", followerID, accountID)
	}
	return nil
}

// Followers lists the account's followers, optionally filtered by a
// case-insensitive handle/name query and excluding excluded ones.
func (e *Engine) Followers(ctx context.Context, accountID, query string, includeExcluded bool) ([]model.Follower, error) {
	snap, err := e.store.Snapshot(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Follower, 0, len(snap.Followers))
	for _, f := range snap.Followers {
		if f.Excluded && !includeExcluded {
			continue
		}
		if query != "" && !util.ContainsFold(f.Handle, query) && !util.ContainsFold(f.DisplayName, query) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// Actions lists one follower's engagement actions.
func (e *Engine) Actions(ctx context.Context, accountID, followerID string) ([]model.EngagementAction, error) {
	snap, err := e.store.Snapshot(ctx, accountID)
	if err != nil {
		return nil, err
	}
	var out []model.EngagementAction
	for _, a := range snap.Actions {
		if a.FollowerID == followerID {
			out = append(out, a)
		}
	}
	return out, nil
}

// SeedReply records a reply action by hand. The platform has no endpoint
// listing repliers of a post, so replies are never discovered by Sync; manual
// seeding is the only way in until a mentions-search extension exists.
func (e *Engine) SeedReply(ctx context.Context, accountID, followerID, postID, postURL, text string) error {
	a := model.EngagementAction{
		ID:         model.ActionID(model.KindReply, postID, followerID),
		FollowerID: followerID,
		Kind:       model.KindReply,
		PostID:     postID,
		PostURL:    postURL,
		Text:       text,
		CreatedAt:  e.nowFn().UTC(),
	}
	return e.store.UpsertAction(ctx, accountID, a)
}

func isUnauthorized(err error) bool {
	var ae *xclient.APIError
	return errors.As(err, &ae) && ae.Kind == xclient.Unauthorized
}
