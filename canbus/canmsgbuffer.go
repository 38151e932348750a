package canbus

// CanMsgBuffer is the neutral CAN frame record the ISO 15765-4 and J1939
// protocol adapters build before handing it to a Bus, and the shape they
// receive frames back in. It mirrors how isocan.cpp/j1939connmgr.cpp in
// the original firmware construct a frame: identifier, extended-addressing
// flag, data length code and up to 8 payload bytes, plus a sequence number
// used only for history/log correlation (never sent on the wire).
type CanMsgBuffer struct {
	ID       uint32
	Extended bool
	DLC      uint8
	Data     [8]byte
	SeqNum   int
}

// DefaultByte pads an unused CAN data byte the way the original firmware's
// flow-control frame construction pads trailing bytes (0xCC, chosen by the
// ISO 15765-4 spec as a conventional "don't care" filler).
const DefaultByte byte = 0xCC

// NewCanMsgBuffer builds a CanMsgBuffer from up to 8 explicit data bytes,
// padding any remainder with DefaultByte.
func NewCanMsgBuffer(id uint32, extended bool, dlc uint8, data ...byte) CanMsgBuffer {
	msg := CanMsgBuffer{ID: id, Extended: extended, DLC: dlc}
	for i := range msg.Data {
		msg.Data[i] = DefaultByte
	}
	copy(msg.Data[:], data)
	return msg
}

// ToFrame converts to the wire-level Frame a Bus transmits.
func (m CanMsgBuffer) ToFrame() Frame {
	id := m.ID & CAN_SFF_MASK
	if m.Extended {
		id = m.ID | CAN_EFF_FLAG
	}
	return Frame{ID: id, DLC: m.DLC, Data: m.Data}
}

// ToTxFrame converts to the BufferTxFrame a BusManager.Send expects,
// folding in the extended-addressing flag the same way ToFrame does.
func (m CanMsgBuffer) ToTxFrame() BufferTxFrame {
	id := m.ID & CAN_SFF_MASK
	if m.Extended {
		id = m.ID | CAN_EFF_FLAG
	}
	return BufferTxFrame{Ident: id, DLC: m.DLC, Data: m.Data}
}

// FromFrame builds a CanMsgBuffer from a received Frame, recovering the
// extended-addressing flag from the CAN_EFF_FLAG bit socketcan sets.
func FromFrame(f Frame, seqNum int) CanMsgBuffer {
	extended := Extended(f.ID)
	id := f.ID &^ (CAN_EFF_FLAG | CAN_RTR_FLAG)
	return CanMsgBuffer{ID: id, Extended: extended, DLC: f.DLC, Data: f.Data, SeqNum: seqNum}
}
