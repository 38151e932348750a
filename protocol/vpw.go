package protocol

import (
	"time"

	"github.com/vconn/obdlink/driver"
	"github.com/vconn/obdlink/ecumsg"
	"github.com/vconn/obdlink/profile"
	"github.com/vconn/obdlink/timing"
)

// SAE J1850 VPW (Variable Pulse Width) bit timing, approximate nominal
// values from the J1850 spec (a real adapter tunes these against its own
// oscillator); grounded on original_source/src/adapter/obd/vpw.{h,cpp}.
const (
	vpwActiveOne    = 64 * time.Microsecond
	vpwPassiveOne   = 128 * time.Microsecond
	vpwActiveZero   = 128 * time.Microsecond
	vpwPassiveZero  = 64 * time.Microsecond
	vpwSOF          = 200 * time.Microsecond
	vpwEOD          = 200 * time.Microsecond
	vpwEOF          = 280 * time.Microsecond
	vpwIFRDelay     = 96 * time.Microsecond
	vpwByteInterval = 2 * time.Millisecond
)

// VPWAdapter implements SAE J1850 VPW, pulse-width bit-banging the bus
// line via driver.BitBang and framing requests with package ecumsg's VPW
// checksum (CRC-8). Replies are not decoded: OnRequest only detects that
// the line went active.
type VPWAdapter struct {
	bb    driver.BitBang
	clock driver.Clock
	tmgr  *timing.Manager
	auto  bool
}

func NewVPWAdapter(bb driver.BitBang, clock driver.Clock, tmgr *timing.Manager) *VPWAdapter {
	return &VPWAdapter{bb: bb, clock: clock, tmgr: tmgr}
}

func (a *VPWAdapter) Protocol() profile.Protocol { return profile.ProtocolJ1850VPW }

func (a *VPWAdapter) Open() error {
	a.bb.Enable(true)
	a.tmgr.SetCANEligible(false)
	a.tmgr.Reset()
	return nil
}

func (a *VPWAdapter) Close() {
	a.bb.Enable(false)
}

func (a *VPWAdapter) Description() string {
	if a.auto {
		return "AUTO, SAE J1850 VPW"
	}
	return "SAE J1850 VPW"
}

func (a *VPWAdapter) DescriptionNum() string {
	if a.auto {
		return "A2"
	}
	return "2"
}

func (a *VPWAdapter) sendByte(b byte) {
	for bit := 7; bit >= 0; bit-- {
		v := (b >> uint(bit)) & 1
		if v == 1 {
			a.bb.SetBit(1)
			time.Sleep(vpwActiveOne)
			a.bb.SetBit(0)
			time.Sleep(vpwPassiveOne)
		} else {
			a.bb.SetBit(1)
			time.Sleep(vpwActiveZero)
			a.bb.SetBit(0)
			time.Sleep(vpwPassiveZero)
		}
	}
}

func (a *VPWAdapter) sendSOF() {
	a.bb.SetBit(1)
	time.Sleep(vpwSOF)
	a.bb.SetBit(0)
}

func (a *VPWAdapter) sendEOF() {
	time.Sleep(vpwEOD)
	a.bb.SetBit(0)
	time.Sleep(vpwEOF)
}

// sendMsg frames data through ecumsg (header + CRC-8) and bit-bangs the
// resulting bytes onto the bus.
func (a *VPWAdapter) sendMsg(data []byte) {
	m := ecumsg.New(ecumsg.VPW)
	m.SetData(data)
	m.AddHeaderAndChecksum()
	a.sendSOF()
	for _, b := range m.Data() {
		a.sendByte(b)
	}
	a.sendEOF()
}

// OnConnectEcu sends a functional request ("mode 1 PID 0") and waits for
// any reply within W1, matching Vpw::onConnectEcu's "does anything answer
// at all" handshake — VPW, like PWM (and unlike the ISO serial protocols'
// slow/fast init), has no dedicated init sequence distinct from a normal
// request/response.
func (a *VPWAdapter) OnConnectEcu(sendReply bool) bool {
	a.auto = !sendReply
	a.sendMsg([]byte{0x01, 0x00})
	return a.waitForReply(300 * time.Millisecond)
}

func (a *VPWAdapter) waitForReply(timeout time.Duration) bool {
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
func (a *VPWAdapter) OnRequest(data []byte, numResponses int, collector profile.ResponseCollector) profile.Status {
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

func (a *VPWAdapter) WiringCheck() string {
	a.bb.SetBit(1)
	ok := a.bb.GetBit() == 1
	a.bb.SetBit(0)
	if !ok {
		return "FB ERROR"
	}
	return "OK"
}

func (a *VPWAdapter) Monitor(collector profile.ResponseCollector) profile.Status {
	return profile.StatusNone
}
