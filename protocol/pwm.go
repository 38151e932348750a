package protocol

import (
	"time"

	"github.com/vconn/obdlink/driver"
	"github.com/vconn/obdlink/ecumsg"
	"github.com/vconn/obdlink/profile"
	"github.com/vconn/obdlink/timing"
)

// SAE J1850 PWM (Pulse Width Modulation) bit timing: unlike VPW's
// variable-width single-wire encoding, PWM carries fixed-width bit cells
// (~16us) whose duty cycle (1/3 vs 2/3 active) encodes 1 vs 0, over a
// differential two-wire bus. Only pwm.h exists in original_source — no
// corresponding .cpp shipped with this distillation — so the bit-cell
// timing here is inferred from the J1850 PWM spec and VPW's structural
// analog (sendByte/receiveByte/sendSof/sendIfr/getIfr) rather than a
// line-for-line port.
const (
	pwmBitCell     = 16 * time.Microsecond
	pwmOneActive   = pwmBitCell / 3
	pwmZeroActive  = pwmBitCell * 2 / 3
	pwmSOF         = 48 * time.Microsecond
	pwmEOD         = 48 * time.Microsecond
	pwmEOF         = 96 * time.Microsecond
	pwmIFRDelay    = 96 * time.Microsecond
	pwmInterbyteGW = 8 * time.Microsecond
)

// PWMAdapter implements SAE J1850 PWM, grounded on
// original_source/src/adapter/obd/pwm.h's declared method set.
type PWMAdapter struct {
	bb    driver.BitBang
	clock driver.Clock
	tmgr  *timing.Manager
	auto  bool
}

func NewPWMAdapter(bb driver.BitBang, clock driver.Clock, tmgr *timing.Manager) *PWMAdapter {
	return &PWMAdapter{bb: bb, clock: clock, tmgr: tmgr}
}

func (a *PWMAdapter) Protocol() profile.Protocol { return profile.ProtocolJ1850PWM }

func (a *PWMAdapter) Open() error {
	a.bb.Enable(true)
	a.tmgr.SetCANEligible(false)
	a.tmgr.Reset()
	return nil
}

func (a *PWMAdapter) Close() { a.bb.Enable(false) }

func (a *PWMAdapter) Description() string {
	if a.auto {
		return "AUTO, SAE J1850 PWM"
	}
	return "SAE J1850 PWM"
}

func (a *PWMAdapter) DescriptionNum() string {
	if a.auto {
		return "A1"
	}
	return "1"
}

func (a *PWMAdapter) sendByte(b byte) {
	for bit := 7; bit >= 0; bit-- {
		v := (b >> uint(bit)) & 1
		active := pwmZeroActive
		if v == 1 {
			active = pwmOneActive
		}
		a.bb.SetBit(1)
		time.Sleep(active)
		a.bb.SetBit(0)
		time.Sleep(pwmBitCell - active)
	}
}

func (a *PWMAdapter) sendSOF() {
	a.bb.SetBit(1)
	time.Sleep(pwmSOF)
	a.bb.SetBit(0)
}

func (a *PWMAdapter) sendEOF() {
	time.Sleep(pwmEOD)
	a.bb.SetBit(0)
	time.Sleep(pwmEOF)
}

func (a *PWMAdapter) sendMsg(data []byte) {
	m := ecumsg.New(ecumsg.PWM)
	m.SetData(data)
	m.AddHeaderAndChecksum()
	a.sendSOF()
	for _, b := range m.Data() {
		a.sendByte(b)
	}
	a.sendEOF()
}

func (a *PWMAdapter) OnConnectEcu(sendReply bool) bool {
	a.auto = !sendReply
	a.sendMsg([]byte{0x01, 0x00})
	return a.waitForReply(300 * time.Millisecond)
}

func (a *PWMAdapter) waitForReply(timeout time.Duration) bool {
	deadline := a.clock.Now().Add(timeout)
	for a.clock.Now().Before(deadline) {
		if a.bb.GetBit() == 1 {
			return true
		}
		time.Sleep(100 * time.Microsecond)
	}
	return false
}

// OnRequest sends data and records one empty line per reply it detects
// (the line reading active within P2); reply bytes are not read. A
// numResponses of 0 is treated as 1.
func (a *PWMAdapter) OnRequest(data []byte, numResponses int, collector profile.ResponseCollector) profile.Status {
	a.sendMsg(data)
	want := numResponses
	if want == 0 {
		want = 1
	}
	for collector.Count() < want {
		if !a.waitForReply(time.Duration(a.tmgr.P2Timeout()) * time.Millisecond) {
			if collector.Count() > 0 {
				return profile.StatusNone
			}
			return profile.StatusNoData
		}
		collector.AddResponse("")
	}
	return profile.StatusNone
}

func (a *PWMAdapter) WiringCheck() string {
	a.bb.SetBit(1)
	ok := a.bb.GetBit() == 1
	a.bb.SetBit(0)
	if !ok {
		return "FB ERROR"
	}
	return "OK"
}

func (a *PWMAdapter) Monitor(collector profile.ResponseCollector) profile.Status {
	return profile.StatusNone
}
