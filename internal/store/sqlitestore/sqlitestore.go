// Package sqlitestore is the durable SQLite backend for the account store.
package sqlitestore

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"flockrank/internal/model"
)

// DB wraps a SQLite database holding credentials and snapshots.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS credentials (
	  account_id TEXT PRIMARY KEY,
	  access_token TEXT NOT NULL,
	  refresh_token TEXT,
	  expiry INTEGER,
	  external_id TEXT,
	  handle TEXT
	);
	CREATE TABLE IF NOT EXISTS followers (
	  account_id TEXT NOT NULL,
	  id TEXT NOT NULL,
	  external_id TEXT NOT NULL,
	  handle TEXT,
	  display_name TEXT,
	  avatar_url TEXT,
	  excluded INTEGER NOT NULL DEFAULT 0,
	  added_at INTEGER NOT NULL,
	  PRIMARY KEY(account_id, external_id)
	);
	CREATE TABLE IF NOT EXISTS actions (
	  account_id TEXT NOT NULL,
	  id TEXT NOT NULL,
	  follower_id TEXT NOT NULL,
	  kind TEXT NOT NULL,
	  post_id TEXT NOT NULL,
	  post_url TEXT,
	  text TEXT,
	  created_at INTEGER NOT NULL,
	  PRIMARY KEY(account_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_actions_follower ON actions(account_id, follower_id);
	`)
	return err
}

func (d *DB) SetCredential(ctx context.Context, cred model.Credential) error {
	var expiry int64
	if !cred.Expiry.IsZero() {
		expiry = cred.Expiry.Unix()
	}
	_, err := d.sql.ExecContext(ctx, `
	INSERT INTO credentials(account_id, access_token, refresh_token, expiry, external_id, handle)
	VALUES(?,?,?,?,?,?)
	ON CONFLICT(account_id) DO UPDATE SET
	  access_token=excluded.access_token,
	  refresh_token=excluded.refresh_token,
	  expiry=excluded.expiry,
	  external_id=excluded.external_id,
	  handle=excluded.handle`,
		cred.AccountID, cred.AccessToken, cred.RefreshToken, expiry, cred.ExternalID, cred.Handle)
	return err
}

func (d *DB) Credential(ctx context.Context, accountID string) (model.Credential, bool, error) {
	row := d.sql.QueryRowContext(ctx,
		`SELECT access_token, COALESCE(refresh_token,''), COALESCE(expiry,0), COALESCE(external_id,''), COALESCE(handle,'')
		 FROM credentials WHERE account_id=?`, accountID)
	cred := model.Credential{AccountID: accountID}
	var expiry int64
	if err := row.Scan(&cred.AccessToken, &cred.RefreshToken, &expiry, &cred.ExternalID, &cred.Handle); err != nil {
		if err == sql.ErrNoRows {
			return model.Credential{}, false, nil
		}
		return model.Credential{}, false, err
	}
	if expiry != 0 {
		cred.Expiry = time.Unix(expiry, 0).UTC()
	}
	return cred, true, nil
}

func (d *DB) UpsertFollower(ctx context.Context, accountID string, f model.Follower) error {
	// excluded, added_at and id stay as first written
	_, err := d.sql.ExecContext(ctx, `
	INSERT INTO followers(account_id, id, external_id, handle, display_name, avatar_url, excluded, added_at)
	VALUES(?,?,?,?,?,?,?,?)
	ON CONFLICT(account_id, external_id) DO UPDATE SET
	  handle=excluded.handle,
	  display_name=excluded.display_name,
	  avatar_url=excluded.avatar_url`,
		accountID, f.ID, f.ExternalID, f.Handle, f.DisplayName, f.AvatarURL, boolInt(f.Excluded), f.AddedAt.Unix())
	return err
}

func (d *DB) UpsertAction(ctx context.Context, accountID string, a model.EngagementAction) error {
	_, err := d.sql.ExecContext(ctx, `
	INSERT INTO actions(account_id, id, follower_id, kind, post_id, post_url, text, created_at)
	VALUES(?,?,?,?,?,?,?,?)
	ON CONFLICT(account_id, id) DO UPDATE SET
	  follower_id=excluded.follower_id,
	  kind=excluded.kind,
	  post_id=excluded.post_id,
	  post_url=excluded.post_url,
	  text=excluded.text,
	  created_at=excluded.created_at`,
		accountID, a.ID, a.FollowerID, string(a.Kind), a.PostID, a.PostURL, a.Text, a.CreatedAt.Unix())
	return err
}

func (d *DB) SetExcluded(ctx context.Context, accountID, followerID string, excluded bool) (bool, error) {
	res, err := d.sql.ExecContext(ctx,
		`UPDATE followers SET excluded=? WHERE account_id=? AND id=?`,
		boolInt(excluded), accountID, followerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (d *DB) Snapshot(ctx context.Context, accountID string) (model.Snapshot, error) {
	snap := model.Snapshot{AccountID: accountID}
	rows, err := d.sql.QueryContext(ctx,
		`SELECT id, external_id, COALESCE(handle,''), COALESCE(display_name,''), COALESCE(avatar_url,''), excluded, added_at
		 FROM followers WHERE account_id=? ORDER BY rowid`, accountID)
	if err != nil {
		return snap, err
	}
	defer rows.Close()
	for rows.Next() {
		var f model.Follower
		var excluded int
		var addedAt int64
		if err := rows.Scan(&f.ID, &f.ExternalID, &f.Handle, &f.DisplayName, &f.AvatarURL, &excluded, &addedAt); err != nil {
			return snap, err
		}
		f.Excluded = excluded != 0
		f.AddedAt = time.Unix(addedAt, 0).UTC()
		snap.Followers = append(snap.Followers, f)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}
	// join drops actions whose follower is gone from the snapshot
	arows, err := d.sql.QueryContext(ctx,
		`SELECT a.id, a.follower_id, a.kind, a.post_id, COALESCE(a.post_url,''), COALESCE(a.text,''), a.created_at
		 FROM actions a
		 JOIN followers f ON f.account_id = a.account_id AND f.id = a.follower_id
		 WHERE a.account_id=? ORDER BY a.rowid`, accountID)
	if err != nil {
		return snap, err
	}
	defer arows.Close()
	for arows.Next() {
		var a model.EngagementAction
		var kind string
		var createdAt int64
		if err := arows.Scan(&a.ID, &a.FollowerID, &kind, &a.PostID, &a.PostURL, &a.Text, &createdAt); err != nil {
			return snap, err
		}
		a.Kind = model.ActionKind(kind)
		a.CreatedAt = time.Unix(createdAt, 0).UTC()
		snap.Actions = append(snap.Actions, a)
	}
	return snap, arows.Err()
}

func (d *DB) Clear(ctx context.Context, accountID string) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range []string{
		`DELETE FROM actions WHERE account_id=?`,
		`DELETE FROM followers WHERE account_id=?`,
		`DELETE FROM credentials WHERE account_id=?`,
	} {
		if _, err := tx.ExecContext(ctx, q, accountID); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
