package protocol

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vconn/obdlink/canbus"
	"github.com/vconn/obdlink/config"
	"github.com/vconn/obdlink/hexcodec"
	"github.com/vconn/obdlink/history"
	j1939conn "github.com/vconn/obdlink/j1939"
	"github.com/vconn/obdlink/profile"
	"github.com/vconn/obdlink/timing"
)

// J1939 runs over 29-bit CAN at 250 kbit/s. j1939TesterAddress mirrors
// TESTER_ADDRESS from j1979.h; requestPF is the PDU format byte of PGN
// 59904 (0xEA00), the standard "Request" PG every J1939 node answers.
const (
	j1939TesterAddress byte   = 0xF1
	requestPF          uint32 = 0xEA
	globalAddress      byte   = 0xFF
	// j1939Priority mirrors the same constant in package j1939 (priority 7
	// in the top 3 bits of a 29-bit identifier); duplicated here since that
	// package's copy is unexported.
	j1939Priority uint32 = 0x1C000000

	// PDU format bytes the four-slot filter set matches on, grounded on
	// j1939.cpp's setFilterAndMaskForPGN: the ACK that closes a TP.CM
	// transfer, the RTS/CTS control PGN, and the data PGN.
	ackPF  uint32 = 0xE8
	tpCmPF uint32 = 0xEC
	tpDtPF uint32 = 0xEB

	// engineHoursPGN is PGN 0x00FEEE, used as the OnConnectEcu handshake
	// probe since every engine ECU answers it.
	engineHoursPGN uint32 = 0x00FEEE
	// dm1PGN is PGN 0x00FECA (Active Diagnostic Trouble Codes), the
	// broadcast Monitor listens for between requests.
	dm1PGN uint32 = 0x00FECA
)

// J1939Adapter implements SAE J1939-21 (TP.CM/TP.DT multi-frame transport
// plus single-frame PDU2 broadcasts) over 29-bit CAN at 250 kbit/s,
// grounded directly on original_source/src/adapter/obd/j1939.{h,cpp} and
// j1939connmgr.{h,cpp} (the latter already implemented in package j1939).
type J1939Adapter struct {
	bus   *canbus.BusManager
	store *config.Store
	tmgr  *timing.Manager

	conn *j1939conn.ConnMgr
	rx   chan canbus.CanMsgBuffer
	n    int
	hist *history.Log

	auto bool
}

func NewJ1939Adapter(bus *canbus.BusManager, store *config.Store, tmgr *timing.Manager) *J1939Adapter {
	a := &J1939Adapter{bus: bus, store: store, tmgr: tmgr}
	a.conn = j1939conn.New(a, func() byte { return j1939TesterAddress })
	return a
}

// SendFrame implements j1939.Sender.
func (a *J1939Adapter) SendFrame(msg canbus.CanMsgBuffer) error {
	a.hist.Append(history.Entry{Direction: history.TX, ID: msg.ID, Data: append([]byte(nil), msg.Data[:msg.DLC]...), DLC: msg.DLC})
	return a.bus.Send(msg.ToTxFrame())
}

func (a *J1939Adapter) Protocol() profile.Protocol { return profile.ProtocolJ1939 }

func (a *J1939Adapter) Handle(frame canbus.Frame) {
	a.n++
	msg := canbus.FromFrame(frame, a.n)
	a.hist.Append(history.Entry{Direction: history.RX, ID: msg.ID, Data: append([]byte(nil), msg.Data[:msg.DLC]...), DLC: msg.DLC, Seq: uint32(a.n)})
	select {
	case a.rx <- msg:
	default:
	}
}

// DumpHistory returns every TX/RX frame recorded since the last open,
// matching isocan.cpp's dumpBuffer (J1939 shares CanHistory's design).
func (a *J1939Adapter) DumpHistory() []history.Entry { return a.hist.Dump() }

// Open prepares the channel a.Handle feeds; no RX filter is installed yet,
// since which PGN to listen for is only known once a request (or Monitor)
// is about to wait for a reply — installFilters sets that up fresh each
// time, matching j1939.cpp calling setFilterAndMaskForPGN per request
// rather than once at open.
func (a *J1939Adapter) Open() error {
	a.rx = make(chan canbus.CanMsgBuffer, 32)
	a.n = 0
	a.hist = history.NewLog(historyLogCapacity)
	a.tmgr.SetCANEligible(false)
	a.tmgr.Reset()
	return nil
}

// installFilters replaces whatever filters are currently registered with
// the four slots j1939.cpp's setFilterAndMaskForPGN installs before
// waiting for a reply to a request for pgn: the exact PGN a single-frame
// broadcast response carries, the ACK that closes a TP.CM transfer, and
// the TP.CM/TP.DT control PGNs that carry a multi-frame one.
//
// The TP.CM and TP.DT slots match on PDU format alone (mask 0x00FF0000)
// rather than the original's PS-keyed mask (0x00FFFF00, filter including
// the requested PGN's low byte as PS): a BAM transfer such as DM1 carries
// PS=0xFF (the global destination), which would never match a PS derived
// from the requested PGN, so the literal original scheme misses exactly
// the broadcast transfers this adapter needs to receive.
func (a *J1939Adapter) installFilters(pgn uint32) {
	a.bus.ClearRxBuffers()
	const pfPsMask = 0x00FFFF00
	const pfMask = 0x00FF0000
	a.bus.InsertRxBuffer(j1939Priority|((pgn<<8)&pfPsMask), j1939Priority|pfPsMask, a)
	a.bus.InsertRxBuffer(j1939Priority|ackPF<<16, j1939Priority|pfMask, a)
	a.bus.InsertRxBuffer(j1939Priority|tpCmPF<<16, j1939Priority|pfMask, a)
	a.bus.InsertRxBuffer(j1939Priority|tpDtPF<<16, j1939Priority|pfMask, a)
}

func (a *J1939Adapter) Close() {
	a.bus.ClearRxBuffers()
}

func (a *J1939Adapter) Description() string {
	if a.auto {
		return "AUTO, SAE J1939"
	}
	return "SAE J1939 (CAN 29/250)"
}

func (a *J1939Adapter) DescriptionNum() string {
	if a.auto {
		return "A9"
	}
	return "9"
}

// sendRequestPGN builds and sends a PGN 59904 Request for pgn, targeted
// at dst (globalAddress for a broadcast request).
func (a *J1939Adapter) sendRequestPGN(pgn uint32, dst byte) error {
	id := j1939Priority | requestPF<<16 | uint32(dst)<<8 | uint32(j1939TesterAddress)
	msg := canbus.NewCanMsgBuffer(id, true, 3, byte(pgn), byte(pgn>>8), byte(pgn>>16))
	return a.SendFrame(msg)
}

// OnConnectEcu requests PGN 0x00FEEE (Engine Hours, a PGN every engine
// ECU supports) as a handshake probe and waits for any reply frame.
func (a *J1939Adapter) OnConnectEcu(sendReply bool) bool {
	a.auto = !sendReply
	a.installFilters(engineHoursPGN)
	defer a.bus.ClearRxBuffers()
	if err := a.sendRequestPGN(engineHoursPGN, globalAddress); err != nil {
		return false
	}
	select {
	case <-a.rx:
		return true
	case <-time.After(time.Duration(a.tmgr.P2Timeout()) * time.Millisecond):
		return false
	}
}

// OnRequest treats the first 3 bytes of data as the little-endian PGN to
// request, collecting either a single broadcast frame or a full RTS/CTS/
// DT transfer per response, until numResponses have arrived (0 meaning no
// limit) or P2 elapses with no further frame.
// Every physical frame produces its own host reply line, matching
// j1939.cpp's processFrame/processRtsFrame/processDtFrame calling
// AdptSendReply once per frame rather than reassembling a transfer before
// replying.
func (a *J1939Adapter) OnRequest(data []byte, numResponses int, collector profile.ResponseCollector) profile.Status {
	if len(data) < 3 {
		return profile.StatusDataError
	}
	pgn := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16
	a.conn.SetPGN(data[0], data[1], data[2])
	a.installFilters(pgn)
	defer a.bus.ClearRxBuffers()
	if err := a.sendRequestPGN(pgn, globalAddress); err != nil {
		return profile.StatusBusError
	}
	headerShow := a.store.GetBool(config.ParHeaderShow)
	spacer := config.NewSpacer(a.store)
	received := 0
	for numResponses == 0 || received < numResponses {
		timeoutMs := a.tmgr.P2Timeout()
		msg, ok := a.waitFrame(timeoutMs)
		if !ok {
			if received > 0 {
				return profile.StatusNone
			}
			return profile.StatusNoData
		}
		switch {
		case j1939conn.IsControlFrame(msg.ID) && msg.Data[0] == 0x10:
			if err := a.conn.RTS(msg); err != nil {
				return profile.StatusBusError
			}
			received++
			collector.AddResponse(fmt.Sprintf("%03X", a.conn.Size()))
			if !a.collectTransfer(collector, headerShow, spacer, timeoutMs) {
				return profile.StatusNoData
			}
		case !j1939conn.IsControlFrame(msg.ID) && !j1939conn.IsDataFrame(msg.ID):
			received++
			collector.AddResponse(formatCanLine(a.store, msg, msg.Data[:msg.DLC]))
		}
	}
	return profile.StatusNone
}

// collectTransfer drains TP.DT frames into a.conn until the RTS-announced
// frame count is reached, emitting each frame's own host line as it
// arrives rather than reassembling the transfer first, matching
// j1939.cpp's processDtFrame.
func (a *J1939Adapter) collectTransfer(collector profile.ResponseCollector, headerShow bool, spacer config.Spacer, timeoutMs uint32) bool {
	for {
		msg, ok := a.waitFrame(timeoutMs)
		if !ok || !j1939conn.IsDataFrame(msg.ID) {
			return false
		}
		valid, err := a.conn.Data(msg)
		if !valid {
			log.Warnf("[J1939] sequence number mismatch from source 0x%x, aborting transfer", msg.ID&0xFF)
			return false
		}
		seq := msg.Data[0]
		if headerShow {
			collector.AddResponse(formatCanLine(a.store, msg, msg.Data[:msg.DLC]))
		} else {
			collector.AddResponse(fmt.Sprintf("%.2X: ", seq) + hexcodec.BytesToHex(msg.Data[1:msg.DLC], spacer.IsSpaces()))
		}
		if int(seq) >= a.conn.NumFrames() {
			return err == nil
		}
	}
}

func (a *J1939Adapter) waitFrame(timeoutMs uint32) (canbus.CanMsgBuffer, bool) {
	select {
	case msg := <-a.rx:
		return msg, true
	case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
		return canbus.CanMsgBuffer{}, false
	}
}

func (a *J1939Adapter) WiringCheck() string { return "OK" }

// Monitor drains DM1 (active diagnostic trouble code) broadcasts that
// arrive unsolicited between requests, matching J1939::monitor. It installs
// the same four-slot filter set OnRequest does, keyed on the DM1 PGN, since
// DM1 is itself delivered as a BAM (broadcast TP.CM/TP.DT) transfer.
func (a *J1939Adapter) Monitor(collector profile.ResponseCollector) profile.Status {
	a.installFilters(dm1PGN)
	defer a.bus.ClearRxBuffers()
	headerShow := a.store.GetBool(config.ParHeaderShow)
	spacer := config.NewSpacer(a.store)
	for {
		select {
		case msg := <-a.rx:
			switch {
			case j1939conn.IsControlFrame(msg.ID) && msg.Data[0] == 0x10:
				if err := a.conn.RTS(msg); err != nil {
					return profile.StatusBusError
				}
				collector.AddResponse(fmt.Sprintf("%03X", a.conn.Size()))
				a.collectTransfer(collector, headerShow, spacer, a.tmgr.P2Timeout())
			case !j1939conn.IsControlFrame(msg.ID) && !j1939conn.IsDataFrame(msg.ID):
				collector.AddResponse(formatCanLine(a.store, msg, msg.Data[:msg.DLC]))
			}
		default:
			return profile.StatusNone
		}
	}
}
