// Package timing implements the Timeout Manager (C5): adaptive P2 timing
// across AT0 (fixed)/AT1 (lower adaptive bound)/AT2 (tighter adaptive
// bound) modes, grounded directly on
// original_source/src/adapter/timeoutmgr.{h,cpp}.
package timing

import "github.com/vconn/obdlink/config"

// Mode selects the adaptive timing algorithm, set by the "ATAT0/1/2"
// commands upstream of this module.
type Mode uint8

const (
	AT0 Mode = iota
	AT1
	AT2
)

const (
	at1Margin        uint32 = 30
	at2Margin        uint32 = 10
	sampleThreshold         = 2
	defaultTimeoutMs uint32 = 200
)

// Manager tracks the adapter's learned P2 response time and produces the
// timeout the next receive loop should use. mode_ defaults to AT1, not
// AT0, matching the original constructor's default exactly.
type Manager struct {
	store       *config.Store
	mode        Mode
	timeoutMs   uint32
	threshold   int
	canEligible bool
}

// New builds a Manager in the default AT1 mode.
func New(store *config.Store) *Manager {
	return &Manager{store: store, mode: AT1}
}

func (m *Manager) SetMode(mode Mode) { m.mode = mode }
func (m *Manager) Mode() Mode        { return m.mode }

// SetCANEligible marks whether the currently open protocol is one of the
// ISO 15765-4 CAN variants (11/29-bit, or the user-defined CAN profile),
// the only protocols PAR_CAN_TIMEOUT_MLT's 5x multiplier applies to —
// mirrors TimeoutManager::multiplier's protocol check, pushed to the
// protocol adapter's Open() to avoid timing depending on the protocol
// package.
func (m *Manager) SetCANEligible(eligible bool) { m.canEligible = eligible }

// Reset clears the learned timeout and sample threshold, called whenever
// a protocol adapter (re)opens the bus.
func (m *Manager) Reset() {
	m.timeoutMs = 0
	m.threshold = 0
}

// RecordP2 feeds a measured response time in milliseconds into the
// adaptive estimator (TimeoutManager::p2Timeout(val) setter): the first
// sampleThreshold samples are discarded, then the learned timeout tracks
// the maximum observed value, capped at the AT0 ceiling.
func (m *Manager) RecordP2(measuredMs uint32) {
	if m.threshold < sampleThreshold {
		m.threshold++
		return
	}
	ceiling := m.at0Timeout()
	if measuredMs > m.timeoutMs {
		m.timeoutMs = measuredMs
	}
	if m.timeoutMs > ceiling {
		m.timeoutMs = ceiling
	}
}

// P2Timeout returns the timeout (ms) the next receive loop should use,
// selected by mode (TimeoutManager::p2Timeout getter). The very first
// call, before any sample has ever been recorded, always returns the AT0
// ceiling regardless of mode.
func (m *Manager) P2Timeout() uint32 {
	if m.timeoutMs == 0 {
		return m.at0Timeout()
	}
	switch m.mode {
	case AT1:
		return m.at1Timeout()
	case AT2:
		return m.at2Timeout()
	default:
		return m.at0Timeout()
	}
}

func (m *Manager) at0Timeout() uint32 {
	configured := m.store.GetInt(config.ParTimeout)
	mult := uint32(1)
	if m.canEligible && m.store.GetBool(config.ParCanTimeoutMlt) {
		mult = 5
	}
	if configured == 0 {
		return defaultTimeoutMs
	}
	return configured * 4 * mult
}

func (m *Manager) at1Timeout() uint32 { return m.timeoutMs + at1Margin }
func (m *Manager) at2Timeout() uint32 { return m.timeoutMs + at2Margin }
