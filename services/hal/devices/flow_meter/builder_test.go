package flow_meter

import (
	"testing"
	"time"
)

func TestSamplePeriod(t *testing.T) {
	cases := []struct {
		ms   uint32
		want time.Duration
	}{
		{0, DefaultSample},
		{1, MinSample},
		{250, 250 * time.Millisecond},
		{3_600_000, MaxSample},
	}
	for _, c := range cases {
		if got := samplePeriod(c.ms); got != c.want {
			t.Errorf("samplePeriod(%d) = %v, want %v", c.ms, got, c.want)
		}
	}
}
