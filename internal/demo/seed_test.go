package demo

import (
	"context"
	"testing"
	"time"

	"flockrank/internal/rank"
	"flockrank/internal/store"
)

func TestSeedIsIdempotent(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()
	if err := Seed(ctx, st, "acc", now); err != nil {
		t.Fatal(err)
	}
	if err := Seed(ctx, st, "acc", now); err != nil {
		t.Fatal(err)
	}
	snap, err := st.Snapshot(ctx, "acc")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Followers) != 5 {
		t.Fatalf("expected 5 demo followers, got %d", len(snap.Followers))
	}
	if len(snap.Actions) != 14 {
		t.Fatalf("expected 14 demo actions, got %d", len(snap.Actions))
	}
	entries := rank.Build(snap, now)
	// startup_founder: 2 reposts, 1 reply, 1 like = 9, the top score
	if entries[0].Handle != "startup_founder" || entries[0].Score != 9 {
		t.Fatalf("unexpected top entry: %+v", entries[0])
	}
}
