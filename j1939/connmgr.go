// Package j1939 implements the J1939 Connection Manager (C6): the
// transport-protocol (TP.CM/TP.DT) state machine that reassembles a
// multi-frame broadcast announce/request-to-send sequence, grounded
// directly on original_source/src/adapter/obd/j1939connmgr.{h,cpp}.
package j1939

import "github.com/vconn/obdlink/canbus"

// TP.CM control bytes (SAE J1939-21).
const (
	ctrlRTS         = 0x10
	ctrlCTS         = 0x11
	ctrlEndOfMsgAck = 0x13
)

// PDU format bytes identifying the TP.CM and TP.DT PGNs (0xEC00, 0xEB00).
const (
	tpCmPF = 0xEC
	tpDtPF = 0xEB
)

const j1939Priority = 0x1C000000

// Sender transmits a pre-built CanMsgBuffer, the capability the
// connection manager needs from whichever protocol adapter owns it
// (J1939Adapter::sendFrameToEcu in the original).
type Sender interface {
	SendFrame(msg canbus.CanMsgBuffer) error
}

// ConnMgr tracks one in-progress multi-frame transfer initiated by the
// ECU via RTS, replying with CTS and finally EndOfMsgACK.
type ConnMgr struct {
	sender  Sender
	ownAddr func() byte

	nFrames int
	size    int
	src     byte
	dst     byte
	currNum int
	pgn     [3]byte
}

// New builds a ConnMgr that sends frames through sender and reports the
// adapter's own source address via ownAddr (deferred, since the address
// can change with PAR_HEADER_BYTES/PAR_TESTER_ADDRESS overrides).
func New(sender Sender, ownAddr func() byte) *ConnMgr {
	return &ConnMgr{sender: sender, ownAddr: ownAddr}
}

// SetPGN records the PGN of the message being transported, echoed back
// verbatim in the CTS and EndOfMsgACK data fields.
func (c *ConnMgr) SetPGN(p0, p1, p2 byte) {
	c.pgn = [3]byte{p0, p1, p2}
}

func (c *ConnMgr) Size() int { return c.size }

// NumFrames returns the frame count announced by the RTS currently being
// transported, used by the TP.DT receive loop to recognize the final frame
// without relying on accumulated-byte-length math alone.
func (c *ConnMgr) NumFrames() int { return c.nFrames }

// RTS processes an incoming Request To Send, recording the announced
// total size and frame count, then answers with Clear To Send.
func (c *ConnMgr) RTS(msg canbus.CanMsgBuffer) error {
	data := msg.Data
	c.size = int(data[1]) | int(data[2])<<8
	c.nFrames = int(data[3])
	c.dst = byte(msg.ID)
	c.src = c.ownAddr()
	c.currNum = 0

	cts := canbus.NewCanMsgBuffer(
		ctsID(c.dst, c.src), true, 8,
		ctrlCTS, byte(c.nFrames), 1, 0xFF, 0xFF, c.pgn[0], c.pgn[1], c.pgn[2],
	)
	return c.sender.SendFrame(cts)
}

// Data processes one Transfer Data (TP.DT) frame. It returns false if the
// sequence number does not match what was expected (the ECU must restart
// the transfer), and sends EndOfMsgACK once the announced frame count is
// reached.
func (c *ConnMgr) Data(msg canbus.CanMsgBuffer) (bool, error) {
	c.currNum++
	if int(msg.Data[0]) != c.currNum {
		return false, nil
	}
	if c.currNum == c.nFrames {
		return true, c.sendAck()
	}
	return true, nil
}

func (c *ConnMgr) sendAck() error {
	ack := canbus.NewCanMsgBuffer(
		ackID(c.dst, c.src), true, 8,
		ctrlEndOfMsgAck, byte(c.size), byte(c.size>>8), byte(c.nFrames), 0xFF,
		c.pgn[0], c.pgn[1], c.pgn[2],
	)
	return c.sender.SendFrame(ack)
}

// IsValidAck reports whether a received TP.CM ACK frame's PGN bytes match
// the PGN currently being transported.
func (c *ConnMgr) IsValidAck(msg canbus.CanMsgBuffer) bool {
	return msg.Data[5] == c.pgn[0] && msg.Data[6] == c.pgn[1] && msg.Data[7] == c.pgn[2]
}

func ctsID(dst, src byte) uint32 {
	return j1939Priority | tpCmPF<<16 | uint32(dst)<<8 | uint32(src)
}

func ackID(dst, src byte) uint32 {
	return j1939Priority | tpCmPF<<16 | uint32(dst)<<8 | uint32(src)
}

// IsControlFrame reports whether id's PDU format byte identifies a TP.CM
// frame (RTS/CTS/ACK/BAM/Abort).
func IsControlFrame(id uint32) bool {
	return byte(id>>16) == tpCmPF
}

// IsDataFrame reports whether id's PDU format byte identifies a TP.DT
// frame.
func IsDataFrame(id uint32) bool {
	return byte(id>>16) == tpDtPF
}
