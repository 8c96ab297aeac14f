package model

import "testing"

func TestActionIDDeterministic(t *testing.T) {
	a := ActionID(KindLike, "P1", "F1")
	b := ActionID(KindLike, "P1", "F1")
	if a != b {
		t.Fatalf("same inputs produced different ids: %q vs %q", a, b)
	}
	if a == ActionID(KindRepost, "P1", "F1") {
		t.Fatal("different kinds must produce different ids")
	}
	if a == ActionID(KindLike, "P2", "F1") {
		t.Fatal("different posts must produce different ids")
	}
}

func TestFollowerIDStable(t *testing.T) {
	if FollowerID("42") != FollowerID("42") {
		t.Fatal("follower id must be stable")
	}
	if FollowerID("42") == FollowerID("43") {
		t.Fatal("distinct external ids must map to distinct local ids")
	}
}
