package util

import "testing"

func TestContainsFold(t *testing.T) {
	if !ContainsFold("Tech Enthusiast", "tech") {
		t.Fatal("expected case-insensitive match")
	}
	if ContainsFold("abc", "xyz") {
		t.Fatal("unexpected match")
	}
	if !ContainsAnyFold("hello WORLD", []string{"nope", "world"}) {
		t.Fatal("expected any-match")
	}
}
