// Package profile implements the OBD Profile Dispatcher (C9): the single
// entry point a command-line request comes through, translating a
// request into a call on the currently selected Protocol Adapter and its
// discriminated result into the ASCII line the host sees. Grounded
// directly on original_source/src/adapter/obd/obdprofile.{h,cpp}.
package profile

// Status is the discriminated result a Protocol Adapter hands back from
// OnRequest/OnConnectEcu, translated to an ASCII reply line only here —
// matching spec §7's rule that the dispatcher is the sole translator of
// codes to user-visible lines. It implements error via a table exactly
// like the teacher's CANopenError/CANOPEN_ERRORS idiom.
type Status int8

const (
	StatusNone Status = iota
	StatusOK
	StatusCmdWrong
	StatusDataError
	StatusNoData
	StatusError
	StatusUnableToConnect
	StatusBusBusy
	StatusBusError
	StatusChecksumError
	StatusWiringError
)

func (s Status) Error() string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	return "Program Error"
}

var statusMessages = map[Status]string{
	StatusCmdWrong:        "?",
	StatusDataError:       "DATA ERROR",
	StatusNoData:          "NO DATA",
	StatusError:           "ERROR",
	StatusUnableToConnect: "UNABLE TO CONNECT",
	StatusBusBusy:         "BUS BUSY",
	StatusBusError:        "BUS ERROR",
	StatusChecksumError:   "DATA ERROR>",
	StatusWiringError:     "FB ERROR",
}

// Protocol numbers the ten protocols this link layer supports, matching
// the original firmware's PROT_* constants (the later 11/250, 29/250 and
// USER2 variants from the original are outside this spec's scope).
type Protocol int

const (
	ProtocolAuto Protocol = iota
	ProtocolJ1850PWM
	ProtocolJ1850VPW
	ProtocolISO9141
	ProtocolISO14230_5BAUD
	ProtocolISO14230Fast
	ProtocolISO15765_11_500
	ProtocolISO15765_29_500
	ProtocolISO15765_UserB
	ProtocolJ1939
)
