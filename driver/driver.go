// Package driver implements the External Interfaces (§6) a protocol
// adapter is built on: a byte-level UART port, a bit-bang contract for
// the 5-baud/fast-init wakeup sequences and J1850 pulse-width encoding,
// a wall-clock/timer abstraction, and TX/RX activity indicators. Real
// implementations wrap github.com/tarm/serial; the MCU-level bit-bang and
// GPIO layer itself is out of scope (spec §1 Non-goals), so BitBang has
// only a simulated implementation, used by protocol adapter tests to
// drive the VPW/PWM/slow-init state machines deterministically.
package driver

import "time"

// Port is the byte-level UART contract the ISO 9141/14230 serial adapter
// sends requests through and receives replies from, grounded on
// original_source/src/adapter/EcuUart.h's send/getEcho/ready/get/clear
// contract.
type Port interface {
	// Send transmits one byte.
	Send(b byte) error
	// GetEcho reads the single byte echoed back by the bus after Send,
	// returning ok=false if no echo arrived (a wiring problem).
	GetEcho() (echoed byte, ok bool)
	// Ready reports whether a received byte is waiting.
	Ready() bool
	// Get reads one received byte; only valid when Ready() is true.
	Get() byte
	// Clear drops any pending error flags (framing/overrun) from the
	// UART, called before each new request.
	Clear()
}

// BitBang is the bit-level contract the slow/fast KWP init sequences and
// the J1850 VPW/PWM pulse-width encoders drive the bus line with directly,
// bypassing the UART's byte framing. Only a simulated implementation
// ships here (FakeBitBang in fake.go) — the real target's GPIO
// bit-bang layer is MCU-specific and out of scope.
type BitBang interface {
	// Enable switches the line between UART byte mode and raw bit-bang
	// mode.
	Enable(bitBang bool)
	// SetBit drives the line to v (0 or 1).
	SetBit(v byte)
	// GetBit samples the line's current level.
	GetBit() byte
}

// Clock abstracts wall-clock time so tests can inject a fake one instead
// of sleeping in real time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real Clock, backed by the standard library.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Timer realizes the original firmware's busy-wait Timer/LongTimer as a
// deadline check against a Clock, the Go equivalent of "start a countdown,
// poll isExpired()".
type Timer struct {
	clock    Clock
	deadline time.Time
}

func NewTimer(clock Clock) *Timer {
	return &Timer{clock: clock}
}

// Start arms the timer to expire after d.
func (t *Timer) Start(d time.Duration) {
	t.deadline = t.clock.Now().Add(d)
}

// Expired reports whether the timer's deadline has passed.
func (t *Timer) Expired() bool {
	return !t.clock.Now().Before(t.deadline)
}

// Elapsed returns how long ago the timer was started (used to measure a
// P2 response time for the Timeout Manager).
func (t *Timer) Elapsed(startedAt time.Time) time.Duration {
	return t.clock.Now().Sub(startedAt)
}

// Now is a convenience passthrough to the underlying clock, used to stamp
// the moment a timer was started for later Elapsed calls.
func (t *Timer) Now() time.Time {
	return t.clock.Now()
}

// Indicator drives the adapter's TX/RX activity LEDs; a real adapter
// toggles GPIO pins, tests use NoopIndicator.
type Indicator interface {
	TX(on bool)
	RX(on bool)
}

// NoopIndicator implements Indicator with no hardware behind it.
type NoopIndicator struct{}

func (NoopIndicator) TX(bool) {}
func (NoopIndicator) RX(bool) {}
