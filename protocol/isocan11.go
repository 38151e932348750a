package protocol

import (
	"github.com/vconn/obdlink/canbus"
	"github.com/vconn/obdlink/config"
	"github.com/vconn/obdlink/profile"
	"github.com/vconn/obdlink/timing"
)

// Default 11-bit functional request/response identifiers and filter, per
// ISO 15765-4: the tester broadcasts to 0x7DF, ECUs reply on 0x7E8-0x7EF;
// the filter/mask below accept any of those, matching isocan11.cpp.
const (
	can11DefaultTxID   = 0x7DF
	can11DefaultRxID   = 0x7E8
	can11DefaultMask   = 0x7F8
	can11DefaultFilter = 0x7E8
)

// IsoCan11Adapter implements ISO 15765-4 over 11-bit CAN identifiers at
// 500 kbit/s, grounded directly on
// original_source/src/adapter/obd/isocan11.{h,cpp}.
type IsoCan11Adapter struct {
	*isoCanAdapter
	auto bool
}

// NewIsoCan11Adapter builds the adapter; bus must already be wired to a
// 500 kbit/s CAN interface.
func NewIsoCan11Adapter(bus *canbus.BusManager, store *config.Store, tmgr *timing.Manager) *IsoCan11Adapter {
	return &IsoCan11Adapter{
		isoCanAdapter: newIsoCanAdapter(bus, store, tmgr, profile.ProtocolISO15765_11_500, false,
			can11DefaultTxID, can11DefaultRxID, can11DefaultMask, can11DefaultFilter),
	}
}

func (a *IsoCan11Adapter) Open() error { return a.open() }
func (a *IsoCan11Adapter) Close()      { a.close() }

func (a *IsoCan11Adapter) Description() string {
	if a.auto {
		return "AUTO, ISO 15765-4 (CAN 11/500)"
	}
	return "ISO 15765-4 (CAN 11/500)"
}

func (a *IsoCan11Adapter) DescriptionNum() string {
	if a.auto {
		return "A6"
	}
	return "6"
}

// OnConnectEcu probes the bus with a service-0x01 PID-0x00 request and
// waits for any reply, matching IsoCan::onConnectEcu's behaviour of
// treating "got any frame back" as a successful handshake (ISO 15765-4
// has no explicit init sequence, unlike the serial protocols).
func (a *IsoCan11Adapter) OnConnectEcu(sendReply bool) bool {
	a.auto = !sendReply
	if err := a.sendRequest([]byte{0x01, 0x00}); err != nil {
		return false
	}
	_, ok := a.receiveFrame(a.tmgr.P2Timeout())
	return ok
}

// OnRequest sends data and collects responses until numResponses replies
// have arrived (0 meaning "collect whatever shows up before P2 elapses"),
// waiting through up to maxPendRespNum negative-response-pending (7F xx
// 78) replies, each followed by the extended p2MaxTimeoutMs window, as
// IsoCan::onRequest does. The actual frame-by-frame
// work is shared with IsoCan29Adapter in isoCanAdapter.onRequest.
func (a *IsoCan11Adapter) OnRequest(data []byte, numResponses int, collector profile.ResponseCollector) profile.Status {
	return a.onRequest(data, numResponses, collector)
}

// isNegativeResponsePending reports whether resp is a UDS negative
// response with responsePending (0x78), the "ECU needs more time" signal
// that extends the wait instead of failing the request, matching
// IsoCan::checkResponsePending.
func isNegativeResponsePending(resp []byte) bool {
	return len(resp) >= 3 && resp[0] == 0x7F && resp[2] == 0x78
}

func (a *IsoCan11Adapter) WiringCheck() string {
	return "OK"
}

// Monitor is a no-op for ISO 15765-4: unlike J1939 there is no standing
// broadcast traffic this adapter listens to between requests.
func (a *IsoCan11Adapter) Monitor(collector profile.ResponseCollector) profile.Status {
	return profile.StatusNone
}
