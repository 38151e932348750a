package protocol

import (
	"github.com/vconn/obdlink/canbus"
	"github.com/vconn/obdlink/config"
	"github.com/vconn/obdlink/profile"
	"github.com/vconn/obdlink/timing"
)

// Default 29-bit functional request/response identifiers and filter,
// matching isocan29.cpp: tester broadcasts on 0x18DB33F1, ECUs reply
// starting at 0x18DAF100 + source address.
const (
	can29DefaultTxID   = 0x18DB33F1
	can29DefaultRxID   = 0x18DAF100
	can29DefaultMask   = 0x1FFFFF00
	can29DefaultFilter = 0x18DAF100
)

// IsoCan29Adapter implements ISO 15765-4 over 29-bit (extended) CAN
// identifiers at 500 kbit/s, grounded directly on
// original_source/src/adapter/obd/isocan29.{h,cpp}.
type IsoCan29Adapter struct {
	*isoCanAdapter
	auto bool
}

func NewIsoCan29Adapter(bus *canbus.BusManager, store *config.Store, tmgr *timing.Manager) *IsoCan29Adapter {
	return &IsoCan29Adapter{
		isoCanAdapter: newIsoCanAdapter(bus, store, tmgr, profile.ProtocolISO15765_29_500, true,
			can29DefaultTxID, can29DefaultRxID, can29DefaultMask, can29DefaultFilter),
	}
}

func (a *IsoCan29Adapter) Open() error { return a.open() }
func (a *IsoCan29Adapter) Close()      { a.close() }

func (a *IsoCan29Adapter) Description() string {
	if a.auto {
		return "AUTO, ISO 15765-4 (CAN 29/500)"
	}
	return "ISO 15765-4 (CAN 29/500)"
}

func (a *IsoCan29Adapter) DescriptionNum() string {
	if a.auto {
		return "A7"
	}
	return "7"
}

func (a *IsoCan29Adapter) OnConnectEcu(sendReply bool) bool {
	a.auto = !sendReply
	if err := a.sendRequest([]byte{0x01, 0x00}); err != nil {
		return false
	}
	_, ok := a.receiveFrame(a.tmgr.P2Timeout())
	return ok
}

// OnRequest delegates the frame-by-frame work to isoCanAdapter.onRequest,
// shared with IsoCan11Adapter.
func (a *IsoCan29Adapter) OnRequest(data []byte, numResponses int, collector profile.ResponseCollector) profile.Status {
	return a.onRequest(data, numResponses, collector)
}

func (a *IsoCan29Adapter) WiringCheck() string { return "OK" }

func (a *IsoCan29Adapter) Monitor(collector profile.ResponseCollector) profile.Status {
	return profile.StatusNone
}
