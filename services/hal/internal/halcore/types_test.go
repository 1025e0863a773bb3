package halcore

import "testing"

func TestParseEdgeRoundTrip(t *testing.T) {
	for _, e := range []Edge{EdgeRising, EdgeFalling, EdgeBoth, EdgeNone} {
		got, ok := ParseEdge(EdgeToString(e))
		if !ok || got != e {
			t.Fatalf("ParseEdge(%q) = %v,%v", EdgeToString(e), got, ok)
		}
	}
	if e, ok := ParseEdge(""); !ok || e != EdgeRising {
		t.Fatalf("empty edge should default to rising, got %v", e)
	}
	if _, ok := ParseEdge("sideways"); ok {
		t.Fatal("expected rejection")
	}
}

func TestParsePull(t *testing.T) {
	cases := map[string]Pull{"": PullNone, "none": PullNone, "up": PullUp, "down": PullDown}
	for in, want := range cases {
		if got, ok := ParsePull(in); !ok || got != want {
			t.Errorf("ParsePull(%q) = %v,%v", in, got, ok)
		}
	}
	if _, ok := ParsePull("float"); ok {
		t.Fatal("expected rejection")
	}
}
