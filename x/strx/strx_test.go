package strx

import "testing"

func TestCoalesce(t *testing.T) {
	if got := Coalesce("", "", "c"); got != "c" {
		t.Fatalf("got %q", got)
	}
	if got := Coalesce("a", "b"); got != "a" {
		t.Fatalf("got %q", got)
	}
	if got := Coalesce(); got != "" {
		t.Fatalf("got %q", got)
	}
}
