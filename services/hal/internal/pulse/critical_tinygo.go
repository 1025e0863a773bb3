//go:build tinygo

package pulse

import "runtime/interrupt"

// On MCU builds the read-and-reset runs with interrupts masked so the pulse
// ISR cannot preempt it.
func enterCritical() interrupt.State { return interrupt.Disable() }

func exitCritical(st interrupt.State) { interrupt.Restore(st) }
