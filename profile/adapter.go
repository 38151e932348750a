package profile

// Adapter is the Protocol Adapter contract (C7/C8): one concrete instance
// exists per supported protocol plus the auto-detect adapter, and the
// Dispatcher below drives requests through whichever one is currently
// selected. The interface is declared here, not in package protocol, so
// that protocol's concrete adapters can depend on profile for Status/
// Protocol without profile ever importing protocol back — the wiring code
// that constructs concrete adapters and registers them is the only
// package that imports both.
type Adapter interface {
	// Open prepares the adapter to talk to the bus (opens the UART/CAN
	// interface, resets the timing manager). It does not attempt an ECU
	// handshake; OnConnectEcu does that.
	Open() error
	// Close releases whatever Open acquired.
	Close()
	// Protocol identifies which protocol this adapter implements.
	Protocol() Protocol
	// Description is the human-readable protocol name ("ISO 9141-2"),
	// prefixed with "AUTO, " when the protocol was auto-detected.
	Description() string
	// DescriptionNum is the host dialect's numeric/alpha protocol code
	// ("3", "A3", ...).
	DescriptionNum() string
	// OnConnectEcu attempts the protocol-specific handshake/init
	// sequence. sendReply is false during auto-detect probing, where a
	// failed attempt must stay silent.
	OnConnectEcu(sendReply bool) bool
	// OnRequest sends data (already stripped of any host-level framing)
	// to the ECU and collects the reply into collector, returning the
	// outcome. numResponses is the number of replies to wait for (0
	// means "as many as arrive before P2 elapses with nothing more"; the
	// J1850 VPW/PWM adapters treat 0 as 1).
	OnRequest(data []byte, numResponses int, collector ResponseCollector) Status
	// WiringCheck runs the adapter's physical-layer continuity test,
	// returning the ASCII line to report.
	WiringCheck() string
	// Monitor drains any unsolicited/broadcast traffic already received
	// (J1939 DM1) into collector, returning as soon as none is waiting;
	// the serial adapter uses the call to send its keep-alive, and the
	// CAN and J1850 adapters return StatusNone at once.
	Monitor(collector ResponseCollector) Status
}

// ResponseCollector is the subset of the Data Collector (C10) a protocol
// adapter needs: somewhere to append each already-formatted reply line.
// A protocol adapter builds the full ASCII line itself — hex payload, plus
// any CAN id/DLC header prefix PAR_HEADER_SHOW calls for, plus a J1939
// "n: " frame index — exactly the way the original firmware's AdptSendReply
// is called once per physical frame from inside processFrame/
// processFirstFrame/processNextFrame (isocan.cpp) and processFrame/
// processRtsFrame/processDtFrame (j1939.cpp), rather than the adapter
// handing back raw bytes for some other layer to format. Declared here
// (rather than importing package collector) for the same import-direction
// reason as Adapter.
type ResponseCollector interface {
	AddResponse(line string)
	Count() int
}
