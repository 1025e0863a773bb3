package boards

import (
	"testing"

	"flowcode-go/errcode"
)

func TestRevisionsValidate(t *testing.T) {
	for _, m := range []PinMap{Rev1, Rev2} {
		if err := m.Validate(); err != nil {
			t.Errorf("%s: %v", m.Name, err)
		}
	}
}

func TestRev1MatchesHeader(t *testing.T) {
	if Rev1.OneWire != 5 || Rev1.HeatFlow != 2 || Rev1.PipeFlow != 3 {
		t.Fatalf("rev1 sensors: %+v", Rev1)
	}
	want := [][]int{{14, 15, 16, 17, 18, 19, 9, 8}, {4, 6, 7}}
	for b := range want {
		for n, pin := range want[b] {
			if got, ok := Rev1.Relay(b, n); !ok || got != pin {
				t.Fatalf("relay %d_%d = %d, want %d", b, n, got, pin)
			}
		}
	}
	if !Rev1.IsReserved(4) {
		t.Fatal("pin 4 must be reserved")
	}
	if _, ok := Rev1.Relay(2, 0); ok {
		t.Fatal("rev1 has two relay banks")
	}
}

func TestRev1AnalogHeaderUsesUnoNumbering(t *testing.T) {
	for n, pin := range UnoAnalog {
		got, ok := Rev1.Relay(0, n)
		if !ok || got != pin {
			t.Fatalf("relay 0_%d = %d, want A%d = %d", n, got, n, pin)
		}
		if got >= 26 {
			t.Fatalf("relay 0_%d on GPIO%d, the Pico ADC range", n, got)
		}
	}
}

func TestRevisionsAreIncompatible(t *testing.T) {
	if Rev1.HeatFlow == Rev2.HeatFlow || Rev1.PipeFlow == Rev2.PipeFlow {
		t.Fatal("flow inputs should differ between revisions")
	}
}

func TestValidateCatchesDuplicates(t *testing.T) {
	m := Rev1
	m.PipeFlow = m.HeatFlow
	if err := m.Validate(); errcode.Of(err) != errcode.PinInUse {
		t.Fatalf("expected pin_in_use, got %v", err)
	}
	m = Rev1
	m.Reserved = []int{m.OneWire}
	if err := m.Validate(); errcode.Of(err) != errcode.PinInUse {
		t.Fatalf("reserved collision not caught: %v", err)
	}
}
