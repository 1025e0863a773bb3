package simulate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeBoard struct {
	pulses map[int]int
	levels map[int]bool
}

func newBoard() *fakeBoard { return &fakeBoard{pulses: map[int]int{}, levels: map[int]bool{}} }

func (b *fakeBoard) Pulse(pin, n int) bool {
	b.pulses[pin] += n
	return pin < 30
}

func (b *fakeBoard) Level(pin int) bool { return b.levels[pin] }

func TestStepRateWithCarry(t *testing.T) {
	b := newBoard()
	// 1 L/s at 2 p/L is half a pulse per 250 ms step.
	d := New(b, []Flow{{Pin: 2, LPM: 60, PulsesPerLitre: 2, ValvePin: -1}}, 0)

	d.Step(250 * time.Millisecond)
	assert.Zero(t, b.pulses[2])
	for i := 0; i < 3; i++ {
		d.Step(250 * time.Millisecond)
	}
	assert.Equal(t, 2, b.pulses[2])
}

func TestValveGatesFlow(t *testing.T) {
	b := newBoard()
	d := New(b, []Flow{{Pin: 3, LPM: 60, PulsesPerLitre: 450, ValvePin: 14}}, 0)

	d.Step(time.Second)
	assert.Zero(t, b.pulses[3], "closed valve")

	b.levels[14] = true
	d.Step(time.Second)
	assert.Equal(t, 450, b.pulses[3])
}

func TestActiveLowValve(t *testing.T) {
	b := newBoard()
	d := New(b, []Flow{{Pin: 3, LPM: 60, PulsesPerLitre: 450, ValvePin: 14, ValveActiveLow: true}}, 0)

	d.Step(time.Second)
	assert.Equal(t, 450, b.pulses[3], "low level means open")
}

func TestZeroRateIdle(t *testing.T) {
	b := newBoard()
	d := New(b, []Flow{{Pin: 2, LPM: 0, PulsesPerLitre: 450, ValvePin: -1}}, 0)
	d.Step(time.Minute)
	assert.Empty(t, b.pulses)
}
