package protocol

import "github.com/vconn/obdlink/profile"

// AutoAdapter implements the Auto-detect Adapter (C8): it never itself
// handles a request, it only tells the Dispatcher the order to probe the
// real adapters in. Grounded directly on
// original_source/src/adapter/obd/autoadapter.cpp.
type AutoAdapter struct{}

func NewAutoAdapter() *AutoAdapter { return &AutoAdapter{} }

func (a *AutoAdapter) Protocol() profile.Protocol { return profile.ProtocolAuto }
func (a *AutoAdapter) Open() error                { return nil }
func (a *AutoAdapter) Close()                     {}
func (a *AutoAdapter) Description() string        { return "AUTO" }
func (a *AutoAdapter) DescriptionNum() string      { return "0" }

// OnConnectEcu always fails: the auto-detect adapter is never itself the
// thing that connects, matching AutoAdapter::onConnectEcu returning false
// when called directly rather than through doConnect.
func (a *AutoAdapter) OnConnectEcu(sendReply bool) bool { return false }

// OnRequest always reports NO DATA: the auto-detect adapter never handles
// a request itself, matching AutoAdapter::onRequest always returning
// REPLY_NO_DATA.
func (a *AutoAdapter) OnRequest(data []byte, numResponses int, collector profile.ResponseCollector) profile.Status {
	return profile.StatusNoData
}

func (a *AutoAdapter) WiringCheck() string { return "" }

func (a *AutoAdapter) Monitor(collector profile.ResponseCollector) profile.Status {
	return profile.StatusNone
}

// ProbeOrder is the exact sequence AutoAdapter::onConnectEcu tries each
// real protocol in: PWM, VPW, ISO (9141/14230), CAN 11-bit, then CAN
// 29-bit — the first one whose OnConnectEcu succeeds wins.
func (a *AutoAdapter) ProbeOrder() []profile.Protocol {
	return []profile.Protocol{
		profile.ProtocolJ1850PWM,
		profile.ProtocolJ1850VPW,
		profile.ProtocolISO9141,
		profile.ProtocolISO15765_11_500,
		profile.ProtocolISO15765_29_500,
	}
}
