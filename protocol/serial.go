package protocol

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vconn/obdlink/config"
	"github.com/vconn/obdlink/driver"
	"github.com/vconn/obdlink/ecumsg"
	"github.com/vconn/obdlink/hexcodec"
	"github.com/vconn/obdlink/history"
	"github.com/vconn/obdlink/profile"
	"github.com/vconn/obdlink/timing"
)

// historyBufferSize mirrors CanHistory's byte-ring counterpart for the
// serial protocols, grounded on isoserial.cpp's appendToHistory call sites
// in sendToEcu/receiveFromEcu.
const historyBufferSize = 512

// J1979 timing windows (milliseconds unless noted), grounded on
// original_source/src/adapter/obd/j1979.h.
const (
	w1MaxTimeoutMs   = 300
	w3TimeoutMs      = 20
	w4MaxTimeoutMs   = 50
	w4TimeoutMs      = 33
	p1MaxTimeoutMs   = 20
	p2NormalTimeoutMs = 50
	p3MinTimeoutMs   = 55
	p4TimeoutMs      = 7
	keepAliveMaxNum  = 5
	defaultWakeupMs  = 3000
	p2ExtTimeoutMs   = 5000 // P2_MAX_TIMEOUT_S: extended window during 7F xx 78
	serialTesterAddr = 0xF1
)

// serialProtocol distinguishes the three variants SerialAdapter can end
// up speaking after OnConnectEcu decides, since ISO 9141-2 and ISO
// 14230-4 share the same wire-level slow-init dance but diverge on
// framing (ecumsg.ISO9141 vs ecumsg.ISO14230) and reply description.
type serialProtocol int

const (
	serialISO9141 serialProtocol = iota
	serialISO14230_5Baud
	serialISO14230Fast
)

// SerialAdapter implements ISO 9141-2 and ISO 14230-4 (KWP2000), both the
// 5-baud slow-init and fast-init variants, over a shared K-line UART plus
// a bit-bang line for the sub-baud wakeup sequence. Grounded directly on
// original_source/src/adapter/obd/isoserial.{h,cpp}.
type SerialAdapter struct {
	uart  driver.Port
	bb    driver.BitBang
	clock driver.Clock
	store *config.Store
	tmgr  *timing.Manager

	proto      serialProtocol
	kwCheck    bool
	initByte   byte
	kwrds      [2]byte
	connected  bool
	keepAlives int
	lastActive time.Time
	hist       *history.Buffer

	auto bool
}

func NewSerialAdapter(uart driver.Port, bb driver.BitBang, clock driver.Clock, store *config.Store, tmgr *timing.Manager) *SerialAdapter {
	return &SerialAdapter{uart: uart, bb: bb, clock: clock, store: store, tmgr: tmgr, initByte: 0x33}
}

// Protocol reports the currently active serial variant; ISO 9141-2 until a
// successful OnConnectEcu has decided another.
func (a *SerialAdapter) Protocol() profile.Protocol {
	switch a.proto {
	case serialISO9141:
		return profile.ProtocolISO9141
	case serialISO14230_5Baud:
		return profile.ProtocolISO14230_5BAUD
	case serialISO14230Fast:
		return profile.ProtocolISO14230Fast
	default:
		return profile.ProtocolISO9141
	}
}

func (a *SerialAdapter) configureProperties() {
	a.kwCheck = a.store.GetBool(config.ParKwCheck)
	if addr := a.store.GetInt(config.ParIsoInitAddress); addr != 0 {
		a.initByte = byte(addr)
	} else {
		a.initByte = 0x33
	}
}

func (a *SerialAdapter) Open() error {
	a.configureProperties()
	a.tmgr.SetCANEligible(false)
	a.tmgr.Reset()
	a.connected = false
	a.keepAlives = 0
	a.hist = history.NewBuffer(historyBufferSize)
	return nil
}

// DumpHistory returns every byte sent to or received from the ECU since the
// last Open, without consuming the ring, matching isoserial.cpp's
// appendToHistory/dumpBuffer pairing.
func (a *SerialAdapter) DumpHistory() []byte { return a.hist.Peek() }

func (a *SerialAdapter) Close() {
	a.connected = false
}

func (a *SerialAdapter) Description() string {
	base := "ISO 9141-2"
	switch a.proto {
	case serialISO14230_5Baud, serialISO14230Fast:
		base = "ISO 14230-4 (KWP "
		if a.proto == serialISO14230_5Baud {
			base += "5BAUD)"
		} else {
			base += "FAST)"
		}
	}
	if a.auto {
		return "AUTO, " + base
	}
	return base
}

func (a *SerialAdapter) DescriptionNum() string {
	n := "3"
	switch a.proto {
	case serialISO14230_5Baud:
		n = "4"
	case serialISO14230Fast:
		n = "5"
	}
	if a.auto {
		return "A" + n
	}
	return n
}

func (a *SerialAdapter) msgType() ecumsg.Type {
	if a.proto == serialISO9141 {
		return ecumsg.ISO9141
	}
	return ecumsg.ISO14230
}

// sendToEcu writes msg's framed bytes one at a time, verifying each is
// echoed back by the bus before sending the next (the K-line is a single
// wire every transceiver echoes its own transmission on), pacing P4
// between bytes, matching IsoSerialAdapter::sendToEcu.
func (a *SerialAdapter) sendToEcu(data []byte) bool {
	a.hist.Write(data)
	for i, b := range data {
		if err := a.uart.Send(b); err != nil {
			return false
		}
		echoed, ok := a.waitEcho(p1MaxTimeoutMs)
		if !ok || echoed != b {
			return false
		}
		if i < len(data)-1 {
			time.Sleep(p4TimeoutMs * time.Millisecond)
		}
	}
	return true
}

func (a *SerialAdapter) waitEcho(timeoutMs int) (byte, bool) {
	deadline := a.clock.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for a.clock.Now().Before(deadline) {
		if echoed, ok := a.uart.GetEcho(); ok {
			return echoed, true
		}
		time.Sleep(100 * time.Microsecond)
	}
	return 0, false
}

// receiveFromEcu reads up to maxLen bytes, measuring the first byte's
// arrival time as the P2 sample fed to the Timeout Manager and reloading
// a P1 window after every subsequent byte, matching
// IsoSerialAdapter::receiveFromEcu.
func (a *SerialAdapter) receiveFromEcu(maxLen int, p2TimeoutMs uint32) []byte {
	buf := make([]byte, 0, maxLen)
	start := a.clock.Now()
	firstDeadline := start.Add(time.Duration(p2TimeoutMs) * time.Millisecond)
	for a.clock.Now().Before(firstDeadline) {
		if a.uart.Ready() {
			buf = append(buf, a.uart.Get())
			a.tmgr.RecordP2(uint32(a.clock.Now().Sub(start).Milliseconds()))
			break
		}
		time.Sleep(100 * time.Microsecond)
	}
	if len(buf) == 0 {
		return buf
	}
	for len(buf) < maxLen {
		deadline := a.clock.Now().Add(p1MaxTimeoutMs * time.Millisecond)
		got := false
		for a.clock.Now().Before(deadline) {
			if a.uart.Ready() {
				buf = append(buf, a.uart.Get())
				got = true
				break
			}
			time.Sleep(100 * time.Microsecond)
		}
		if !got {
			break
		}
	}
	a.hist.Write(buf)
	return buf
}

// ecuSlowInit bit-bangs the init byte at 5 bit/s (start bit, 8 data bits
// LSB-first, stop bit) and checks the line feedback to confirm the K-line
// wiring is live, matching IsoSerialAdapter::ecuSlowInit.
func (a *SerialAdapter) ecuSlowInit() bool {
	const bitTime = 200 * time.Millisecond // 1/5 bit/s
	a.bb.Enable(true)
	defer a.bb.Enable(false)

	a.bb.SetBit(0) // start bit
	time.Sleep(bitTime)
	for bit := 0; bit < 8; bit++ {
		v := (a.initByte >> uint(bit)) & 1
		a.bb.SetBit(v)
		time.Sleep(bitTime)
	}
	a.bb.SetBit(1) // stop bit
	time.Sleep(bitTime)
	return a.bb.GetBit() == 1
}

// onConnectEcuSlow performs the 5-baud init handshake: send the init byte
// at 5bps, expect 0x55 KB1 KB2 within W1, wait W4, send the inverted KB2,
// expect the inverted init byte within W4, then decide ISO 9141-2 vs ISO
// 14230-4 from KB2 (KB2 0x8F means ISO 14230-4, and then KB1 must pass
// checkIso14230Header or the handshake fails), matching
// IsoSerialAdapter::onConnectEcuSlow.
func (a *SerialAdapter) onConnectEcuSlow() bool {
	if !a.ecuSlowInit() {
		return false
	}
	sync := a.receiveFromEcu(3, w1MaxTimeoutMs)
	if len(sync) != 3 || sync[0] != 0x55 {
		return false
	}
	kb1, kb2 := sync[1], sync[2]
	time.Sleep(w4TimeoutMs * time.Millisecond)
	if !a.sendToEcu([]byte{^kb2}) {
		return false
	}
	ack := a.receiveFromEcu(1, w4MaxTimeoutMs)
	if len(ack) != 1 || ack[0] != ^a.initByte {
		return false
	}
	a.kwrds = [2]byte{kb1, kb2}
	if kb2 == 0x8F {
		if !checkIso14230Header(kb1) {
			return false
		}
		a.proto = serialISO14230_5Baud
	} else {
		a.proto = serialISO9141
	}
	return true
}

// checkIso14230Header reports whether kb1's low nibble identifies an ISO
// 14230-4 keyword (as opposed to an ISO 9141-2 one), matching
// isoserial.cpp's CheckIso14230Header table.
func checkIso14230Header(kb1 byte) bool {
	switch kb1 & 0x0F {
	case 0x9, 0xB, 0xD, 0xF:
		return true
	case 0x5, 0x6, 0x7, 0xA, 0xE:
		return false
	default:
		return false
	}
}

// ecuFastInit issues the 25ms low-then-high wakeup pulse ISO 14230-4 fast
// init uses instead of the 5-baud dance.
func (a *SerialAdapter) ecuFastInit() bool {
	a.bb.Enable(true)
	defer a.bb.Enable(false)
	a.bb.SetBit(0)
	time.Sleep(25 * time.Millisecond)
	a.bb.SetBit(1)
	time.Sleep(25 * time.Millisecond)
	return a.bb.GetBit() == 1
}

// onConnectEcuFast performs the fast-init handshake: a StartCommunication
// (0x81) request framed via ecumsg.ISO14230, scanning the reply for the
// 0xC1 status byte past the (header-size-dependent) offset, matching
// IsoSerialAdapter::onConnectEcuFast.
func (a *SerialAdapter) onConnectEcuFast() bool {
	if !a.ecuFastInit() {
		return false
	}
	m := ecumsg.New(ecumsg.ISO14230)
	m.SetData([]byte{0x81})
	m.AddHeaderAndChecksum()
	if !a.sendToEcu(m.Data()) {
		return false
	}
	reply := a.receiveFromEcu(260, w1MaxTimeoutMs)
	if len(reply) < 2 {
		return false
	}
	r := ecumsg.New(ecumsg.ISO14230)
	r.SetData(reply)
	n := r.HeaderLength()
	if n >= len(reply) || reply[n] != 0xC1 {
		return false
	}
	if n+2 < len(reply) {
		a.kwrds = [2]byte{reply[n+1], reply[n+2]}
	}
	a.proto = serialISO14230Fast
	return true
}

// OnConnectEcu tries the protocol-appropriate handshake. During
// auto-detect (sendReply=false) it tries slow init then, failing that,
// fast init, matching AutoAdapter delegating to
// IsoSerialAdapter::onConnectEcu(PROT_AUTO).
func (a *SerialAdapter) OnConnectEcu(sendReply bool) bool {
	a.auto = !sendReply
	switch a.proto {
	case serialISO14230Fast:
		if a.onConnectEcuFast() {
			log.Infof("[SERIAL] connected via fast init, protocol %v", a.Protocol())
			a.connected = true
			return true
		}
	default:
		if a.onConnectEcuSlow() {
			log.Infof("[SERIAL] connected via slow init, protocol %v", a.Protocol())
			a.connected = true
			return true
		}
		if a.onConnectEcuFast() {
			log.Infof("[SERIAL] connected via fast init, protocol %v", a.Protocol())
			a.connected = true
			return true
		}
	}
	log.Debugf("[SERIAL] onConnectEcu: no ECU responded")
	return false
}

func (a *SerialAdapter) maxReplyLen() int {
	const obdInMsgLen = 260
	if a.store.GetBool(config.ParAllowLong) {
		return obdInMsgLen + 6
	}
	return obdInMsgLen
}

// isNegativeResponsePendingSerial checks the UDS 7F xx 78 pattern past
// the header, matching IsoSerialAdapter::checkResponsePending.
func (a *SerialAdapter) isNegativeResponsePendingSerial(data []byte, headerLen int) bool {
	return len(data) >= headerLen+3 && data[headerLen] == 0x7F && data[headerLen+2] == 0x78
}

// OnRequest sends a framed request and collects replies, extending the
// wait through up to maxPendRespNum negative-response-pending replies
// (each granted the extended P2_MAX_TIMEOUT_S window), stripping the
// header/checksum from each unless PAR_HEADER_SHOW is set, matching
// IsoSerialAdapter::onRequest.
func (a *SerialAdapter) OnRequest(data []byte, numResponses int, collector profile.ResponseCollector) profile.Status {
	m := ecumsg.New(a.msgType())
	m.SetData(data)
	m.AddHeaderAndChecksum()
	if !a.sendToEcu(m.Data()) {
		return profile.StatusBusError
	}
	pending := 0
	waitPending := false
	headerShow := a.store.GetBool(config.ParHeaderShow)
	for numResponses == 0 || collector.Count() < numResponses {
		timeout := a.tmgr.P2Timeout()
		if waitPending {
			timeout = p2ExtTimeoutMs
		}
		reply := a.receiveFromEcu(a.maxReplyLen(), timeout)
		if len(reply) == 0 {
			if collector.Count() > 0 {
				return profile.StatusNone
			}
			return profile.StatusNoData
		}
		r := ecumsg.New(a.msgType())
		r.SetData(reply)
		headerLen := r.HeaderLength()
		if a.isNegativeResponsePendingSerial(reply, headerLen) {
			pending++
			if pending > maxPendRespNum {
				log.Warnf("[SERIAL] exceeded %d pending-response retries, giving up", maxPendRespNum)
				return profile.StatusNoData
			}
			waitPending = true
			continue
		}
		waitPending = false
		if !r.StripHeaderAndChecksum() {
			return profile.StatusDataError
		}
		out := r.Data()
		if headerShow {
			out = reply
		}
		collector.AddResponse(hexcodec.BytesToHex(out, config.NewSpacer(a.store).IsSpaces()))
	}
	return profile.StatusNone
}

// sendHeartBeat issues the keep-alive wakeup message (PAR_WM_HEADER's
// custom sequence if configured, else the protocol's default wakeup
// bytes), needed only on protocols (ISO 9141/14230) whose ECUs time out
// and drop the session without bus traffic, matching
// IsoSerialAdapter::sendHeartBeat.
func (a *SerialAdapter) sendHeartBeat() {
	if !a.connected || a.keepAlives >= keepAliveMaxNum {
		return
	}
	wm := a.store.GetBytes(config.ParWmHeader)
	var wakeup []byte
	if wm.Length > 0 {
		wakeup = append([]byte(nil), wm.Data[:wm.Length]...)
	} else if a.proto == serialISO9141 {
		wakeup = []byte{0x01, 0x00}
	} else {
		wakeup = []byte{0x3E}
	}
	m := ecumsg.New(a.msgType())
	m.SetData(wakeup)
	m.AddChecksum()
	if a.sendToEcu(m.Data()) {
		a.keepAlives++
	}
}

func (a *SerialAdapter) WiringCheck() string {
	a.bb.Enable(true)
	defer a.bb.Enable(false)
	a.bb.SetBit(1)
	ok := a.bb.GetBit() == 1
	a.bb.SetBit(0)
	if !ok {
		return "FB ERROR"
	}
	return "OK"
}

func (a *SerialAdapter) Monitor(collector profile.ResponseCollector) profile.Status {
	a.sendHeartBeat()
	return profile.StatusNone
}
