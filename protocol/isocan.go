// Package protocol implements the Protocol Adapters (C7) and the
// auto-detect adapter (C8): one concrete type per supported protocol,
// each satisfying profile.Adapter so the OBD Profile Dispatcher can drive
// it without knowing which bus it actually talks over.
package protocol

import (
	"fmt"
	"time"

	"github.com/vconn/obdlink/canbus"
	"github.com/vconn/obdlink/config"
	"github.com/vconn/obdlink/hexcodec"
	"github.com/vconn/obdlink/history"
	"github.com/vconn/obdlink/profile"
	"github.com/vconn/obdlink/timing"
)

// historyLogCapacity mirrors CanHistory's fixed-size message log, the
// backing store for the "ATBD"-style buffer-dump command, grounded on
// isocan.cpp's history_->add2Buffer/dumpCurrentBuffer call sites.
const historyLogCapacity = 64

// ISO-TP (ISO 15765-2) PCI (protocol control information) nibbles,
// grounded on isocan.cpp's processFrame/processFirstFrame/processNextFrame.
const (
	pciSingleFrame     = 0x0
	pciFirstFrame      = 0x1
	pciConsecutive     = 0x2
	pciFlowControl     = 0x3
	flowControlClear   = 0x0
	maxSingleFramePayl = 7
	firstFrameHeadLen  = 2
	consecutiveHeadLen = 1
)

// maxPendRespNum and p2MaxTimeoutMs mirror MAX_PEND_RESP_NUM (100) and
// P2_MAX_TIMEOUT_S (5000ms), the ceiling on how many "negative response
// pending" (7F xx 78) replies a request will wait through before giving
// up, and the extended timeout used while one is outstanding.
const (
	maxPendRespNum       = 100
	p2MaxTimeoutMs       = 5000
	isoTpFlowControlWait = 25 * time.Millisecond
)

// isoCanAdapter is the shared ISO 15765-4 implementation behind both the
// 11-bit and 29-bit CAN adapters, grounded directly on
// original_source/src/adapter/obd/isocan.{h,cpp}. The 11/29-bit-specific
// pieces (default IDs, filter/mask, header formatting) live in isocan11.go
// and isocan29.go.
type isoCanAdapter struct {
	bus   *canbus.BusManager
	store *config.Store
	tmgr  *timing.Manager

	proto    profile.Protocol
	extended bool

	txID     uint32
	rxID     uint32
	rxMask   uint32
	rxFilter uint32

	rx   chan canbus.CanMsgBuffer
	n    int
	hist *history.Log
}

func newIsoCanAdapter(bus *canbus.BusManager, store *config.Store, tmgr *timing.Manager, proto profile.Protocol, extended bool, txID, rxID, rxMask, rxFilter uint32) *isoCanAdapter {
	return &isoCanAdapter{
		bus: bus, store: store, tmgr: tmgr,
		proto: proto, extended: extended,
		txID: txID, rxID: rxID, rxMask: rxMask, rxFilter: rxFilter,
	}
}

func (a *isoCanAdapter) Protocol() profile.Protocol { return a.proto }

// Handle implements canbus.FrameHandler: every frame matching this
// adapter's registered filter lands here and is forwarded to whichever
// goroutine is waiting in receive().
func (a *isoCanAdapter) Handle(frame canbus.Frame) {
	a.n++
	msg := canbus.FromFrame(frame, a.n)
	a.hist.Append(history.Entry{Direction: history.RX, ID: msg.ID, Data: append([]byte(nil), msg.Data[:msg.DLC]...), DLC: msg.DLC, Seq: uint32(a.n)})
	select {
	case a.rx <- msg:
	default:
		// Receiver isn't listening (e.g. between requests); drop rather
		// than block the bus dispatch goroutine.
	}
}

// DumpHistory returns every TX/RX frame recorded since the last open,
// matching isocan.cpp's dumpBuffer.
func (a *isoCanAdapter) DumpHistory() []history.Entry { return a.hist.Dump() }

func (a *isoCanAdapter) open() error {
	a.rx = make(chan canbus.CanMsgBuffer, 32)
	a.n = 0
	a.hist = history.NewLog(historyLogCapacity)
	a.applyOverrides()
	a.bus.InsertRxBuffer(a.rxFilter, a.rxMask, a)
	a.tmgr.SetCANEligible(true)
	a.tmgr.Reset()
	return nil
}

// applyOverrides reads PAR_CAN_EXT/PAR_CAN_FILTER/PAR_CAN_MASK from the
// config store, falling back to this adapter's compiled-in defaults when
// unset, mirroring IsoCan::configureProperties.
func (a *isoCanAdapter) applyOverrides() {
	if ext := a.store.GetBytes(config.ParCanExt); ext.Length > 0 {
		if id := ext.AsCanID(); id != 0 {
			a.txID = id
		}
	}
	if f := a.store.GetBytes(config.ParCanFilter); f.Length > 0 {
		if id := f.AsCanID(); id != 0 {
			a.rxFilter = id
		}
	}
	if m := a.store.GetBytes(config.ParCanMask); m.Length > 0 {
		if id := m.AsCanID(); id != 0 {
			a.rxMask = id
		}
	}
}

func (a *isoCanAdapter) close() {
	a.bus.ClearRxBuffers()
}

// sendRequest frames data as one or more ISO-TP frames (single frame if
// it fits in 7 bytes, otherwise a First Frame followed by Consecutive
// Frames paced by the flow-control response), matching
// IsoCan::sendToEcu/sendFrameToEcu.
func (a *isoCanAdapter) sendRequest(data []byte) error {
	if len(data) <= maxSingleFramePayl {
		payload := make([]byte, 0, 8)
		payload = append(payload, byte(pciSingleFrame<<4)|byte(len(data)))
		payload = append(payload, data...)
		return a.send(payload)
	}
	first := make([]byte, 0, 8)
	first = append(first, byte(pciFirstFrame<<4)|byte(len(data)>>8), byte(len(data)))
	first = append(first, data[:min(6, len(data))]...)
	if err := a.send(first); err != nil {
		return err
	}
	remaining := data[6:]
	fc, err := a.awaitFlowControl()
	if err != nil {
		return err
	}
	seq := 1
	for len(remaining) > 0 {
		chunk := remaining
		if len(chunk) > 7 {
			chunk = chunk[:7]
		}
		cf := make([]byte, 0, 8)
		cf = append(cf, byte(pciConsecutive<<4)|byte(seq&0x0F))
		cf = append(cf, chunk...)
		if err := a.send(cf); err != nil {
			return err
		}
		remaining = remaining[len(chunk):]
		seq++
		if fc.separationMs > 0 {
			time.Sleep(time.Duration(fc.separationMs) * time.Millisecond)
		}
	}
	return nil
}

type flowControl struct {
	blockSize    byte
	separationMs int
}

// awaitFlowControl waits for the ECU's Flow Control frame after a First
// Frame, matching IsoCan::receiveControlFrame's narrow purpose.
func (a *isoCanAdapter) awaitFlowControl() (flowControl, error) {
	deadline := time.After(isoTpFlowControlWait)
	select {
	case msg := <-a.rx:
		if byte(msg.Data[0]>>4) == pciFlowControl {
			return flowControl{blockSize: msg.Data[1], separationMs: int(msg.Data[2])}, nil
		}
	case <-deadline:
	}
	return flowControl{}, nil
}

func (a *isoCanAdapter) send(payload []byte) error {
	msg := canbus.NewCanMsgBuffer(a.txID, a.extended, uint8(len(payload)), payload...)
	a.hist.Append(history.Entry{Direction: history.TX, ID: msg.ID, Data: append([]byte(nil), msg.Data[:msg.DLC]...), DLC: msg.DLC})
	return a.bus.Send(msg.ToTxFrame())
}

// receiveFrame blocks until one physical CAN frame arrives on this
// adapter's filter or timeoutMs elapses.
func (a *isoCanAdapter) receiveFrame(timeoutMs uint32) (canbus.CanMsgBuffer, bool) {
	select {
	case msg := <-a.rx:
		return msg, true
	case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
		return canbus.CanMsgBuffer{}, false
	}
}

// onRequest is the shared ISO 15765-4 request/collect loop behind both
// IsoCan11Adapter.OnRequest and IsoCan29Adapter.OnRequest, grounded
// directly on IsoCan::onRequest/receiveFromEcu. Unlike a blob-reassembling
// design, every physical frame produces its own host reply line(s): a
// Single Frame yields one line, a First Frame yields the 3-hex-digit total
// length line followed by its own "0: " data line (matching
// processFrame/processFirstFrame), and each Consecutive Frame yields its
// own "n: " line (processNextFrame) — or, with PAR_HEADER_SHOW set, a
// combined header+raw-frame line per physical frame instead of the "n: "
// index, since the CAN identifier already distinguishes the frames.
func (a *isoCanAdapter) onRequest(data []byte, numResponses int, collector profile.ResponseCollector) profile.Status {
	if err := a.sendRequest(data); err != nil {
		return profile.StatusBusError
	}
	pending := 0
	waitPending := false
	received := 0
	headerShow := a.store.GetBool(config.ParHeaderShow)
	spacer := config.NewSpacer(a.store)
	for numResponses == 0 || received < numResponses {
		timeoutMs := a.tmgr.P2Timeout()
		if waitPending {
			timeoutMs = p2MaxTimeoutMs
		}
		start := time.Now()
		msg, ok := a.receiveFrame(timeoutMs)
		if !ok {
			if received > 0 {
				return profile.StatusNone
			}
			return profile.StatusNoData
		}
		a.tmgr.RecordP2(uint32(time.Since(start).Milliseconds()))
		waitPending = false

		pci := msg.Data[0] >> 4
		switch pci {
		case pciSingleFrame:
			n := int(msg.Data[0] & 0x0F)
			if n > len(msg.Data)-1 {
				n = len(msg.Data) - 1
			}
			payload := msg.Data[1 : 1+n]
			if isNegativeResponsePending(payload) {
				pending++
				if pending > maxPendRespNum {
					return profile.StatusNoData
				}
				waitPending = true
				continue
			}
			received++
			collector.AddResponse(formatCanLine(a.store, msg, payload))
		case pciFirstFrame:
			received++
			total := int(msg.Data[0]&0x0F)<<8 | int(msg.Data[1])
			collector.AddResponse(fmt.Sprintf("%03X", total))
			if headerShow {
				collector.AddResponse(formatCanLine(a.store, msg, msg.Data[:msg.DLC]))
			} else {
				collector.AddResponse(frameIndexLine(0, msg.Data[2:msg.DLC], spacer))
			}
			a.sendFlowControl()
			a.collectConsecutive(total, len(msg.Data)-2, headerShow, spacer, collector)
		default:
			continue
		}
	}
	return profile.StatusNone
}

// collectConsecutive drains Consecutive Frames following a First Frame
// until total bytes have arrived or P2 elapses, emitting one host line per
// frame exactly as onRequest does for the First Frame, matching
// IsoCan::processNextFrame's per-frame AdptSendReply call.
func (a *isoCanAdapter) collectConsecutive(total, got int, headerShow bool, spacer config.Spacer, collector profile.ResponseCollector) {
	deadline := time.Now().Add(time.Duration(a.tmgr.P2Timeout()) * time.Millisecond)
	seq := 1
	for got < total {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		cf, ok := a.receiveFrame(uint32(remaining.Milliseconds()))
		if !ok || cf.Data[0]>>4 != pciConsecutive || int(cf.Data[0]&0x0F) != seq&0x0F {
			return
		}
		need := total - got
		if need > 7 {
			need = 7
		}
		if headerShow {
			collector.AddResponse(formatCanLine(a.store, cf, cf.Data[:cf.DLC]))
		} else {
			collector.AddResponse(frameIndexLine(seq, cf.Data[1:1+need], spacer))
		}
		got += need
		seq++
	}
}

// frameIndexLine builds a Consecutive Frame host line of the form "n: hex",
// matching isocan.cpp's processNextFrame (the sequence nibble formatted as
// a single hex digit, same as the PCI's own low nibble).
func frameIndexLine(seq int, payload []byte, spacer config.Spacer) string {
	return fmt.Sprintf("%X: ", seq&0x0F) + hexcodec.BytesToHex(payload, spacer.IsSpaces())
}

func (a *isoCanAdapter) sendFlowControl() {
	fc := []byte{byte(pciFlowControl<<4) | flowControlClear, 0x00, 0x00}
	a.send(fc)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
