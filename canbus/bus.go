// Package canbus implements the CAN transport C4/C7 protocol adapters send
// and receive frames over: a neutral Frame/CanMsgBuffer representation, a
// Bus interface with a real socketcan-backed implementation and a
// TCP-based virtual bus used by tests, and a BusManager that dispatches
// received frames to the handler registered for their identifier.
package canbus

// Bus is the transport a protocol adapter drives. Exactly one goroutine
// reads responses from it at a time, matching the link layer's "no task
// switching while a request is outstanding" guarantee (spec §5).
type Bus interface {
	Send(frame BufferTxFrame) error
	Subscribe(handler FrameHandler)
	Connect(...any) error
}

// Frame is the wire-level representation of one CAN frame. ID carries the
// CAN_EFF_FLAG/CAN_RTR_FLAG bits the same way a socketcan sockaddr does,
// so conversions to/from github.com/brutella/can are a straight copy.
type Frame struct {
	ID    uint32
	DLC   uint8
	Data  [8]byte
	Flags uint8
}

// FrameHandler receives frames as they arrive off the bus.
type FrameHandler interface {
	Handle(frame Frame)
}

const (
	CAN_RTR_FLAG uint32 = 0x40000000
	CAN_SFF_MASK uint32 = 0x000007FF
	CAN_EFF_FLAG uint32 = 0x80000000
)

// Extended reports whether id carries the 29-bit extended-frame flag, the
// distinction the ISO 15765-4 CAN11/CAN29 and J1939 adapters dispatch on.
func Extended(id uint32) bool {
	return id&CAN_EFF_FLAG != 0
}

/* Received message object buffer */
type BufferRxFrame struct {
	Ident   uint32
	Mask    uint32
	handler FrameHandler
}

func NewBufferRxFrame(ident, mask uint32, handler FrameHandler) BufferRxFrame {
	return BufferRxFrame{Ident: ident, Mask: mask, handler: handler}
}

/* Transmit message object */
type BufferTxFrame struct {
	Ident      uint32
	DLC        uint8
	Data       [8]byte
	BufferFull bool
}

func NewBufferTxFrame(ident uint32, length uint8) BufferTxFrame {
	return BufferTxFrame{Ident: ident, DLC: length}
}

// BusManager owns the Bus and dispatches inbound frames to whichever
// protocol adapter registered for that identifier, and retries queued
// outbound frames that could not be sent immediately.
type BusManager struct {
	Bus        Bus
	rxBuffer   map[uint32]BufferRxFrame
	txPending  []BufferTxFrame
	errStatus  uint16
	txFailures uint32
}

func NewBusManager(bus Bus) *BusManager {
	bm := &BusManager{
		Bus:      bus,
		rxBuffer: make(map[uint32]BufferRxFrame),
	}
	bus.Subscribe(bm)
	return bm
}

// Handle implements canbus.FrameHandler, feeding a received frame to the
// adapter registered for its identifier (masked the same way socketcan
// filters do).
func (bm *BusManager) Handle(frame Frame) {
	for ident, rx := range bm.rxBuffer {
		if frame.ID&rx.Mask == ident&rx.Mask {
			rx.handler.Handle(frame)
			return
		}
	}
}

// Send transmits buf immediately; on failure it is queued for a retry on
// the next Process call, mirroring the original firmware's "bus busy,
// try again" behaviour instead of blocking the caller.
func (bm *BusManager) Send(buf BufferTxFrame) error {
	err := bm.Bus.Send(buf)
	if err != nil {
		buf.BufferFull = true
		bm.txPending = append(bm.txPending, buf)
		bm.txFailures++
	}
	return err
}

// Process retries any frame that failed to send on a previous Send call.
func (bm *BusManager) Process() error {
	if len(bm.txPending) == 0 {
		return nil
	}
	remaining := bm.txPending[:0]
	for _, buf := range bm.txPending {
		if err := bm.Bus.Send(buf); err != nil {
			remaining = append(remaining, buf)
			continue
		}
		bm.txFailures--
	}
	bm.txPending = remaining
	return nil
}

// InsertRxBuffer registers handler to receive frames matching ident under
// mask, and returns nothing to undo — callers track identifiers they
// registered themselves, matching isocan.cpp's one-filter-per-open model.
func (bm *BusManager) InsertRxBuffer(ident, mask uint32, handler FrameHandler) {
	bm.rxBuffer[ident] = NewBufferRxFrame(ident, mask, handler)
}

// ClearRxBuffers drops every registered filter, used when a protocol
// adapter closes or switches the PGN it is listening for (J1939's
// setFilterAndMaskForPGN clears its four slots the same way).
func (bm *BusManager) ClearRxBuffers() {
	bm.rxBuffer = make(map[uint32]BufferRxFrame)
}
