// Package ecumsg implements Ecumsg (C3): the serial-protocol message
// buffer shared by the ISO 9141-2 and ISO 14230-4 (KWP2000) adapters,
// adding and stripping the protocol-specific header and checksum.
// Grounded directly on original_source/src/adapter/ecumsg.{h,cpp}.
package ecumsg

import "errors"

// Type identifies which of the four serial/J1850 framing variants a
// message uses.
type Type uint8

const (
	ISO9141 Type = iota + 1
	ISO14230
	PWM
	VPW
)

const headerSize = 3

var defaultHeaders = map[Type][3]byte{
	ISO9141:  {0x68, 0x6A, 0xF1},
	ISO14230: {0xC0, 0x33, 0xF1},
	VPW:      {0x68, 0x6A, 0xF1},
	PWM:      {0x61, 0x6A, 0xF1},
}

var ErrTruncated = errors.New("ecumsg: message too short to strip header/checksum")

// Msg is the byte buffer a protocol adapter builds a request into (or
// receives a response into), plus the header bytes it will be framed
// with. Capacity mirrors OBD_OUT_MSG_LEN (260 bytes) from adaptertypes.h.
type Msg struct {
	typ    Type
	header [3]byte
	data   []byte
}

// New builds an empty Msg of the given type with that type's default
// header.
func New(typ Type) *Msg {
	return &Msg{typ: typ, header: defaultHeaders[typ], data: make([]byte, 0, 260)}
}

// SetHeader overrides the default 3-byte header, e.g. from the
// PAR_HEADER_BYTES config override.
func (m *Msg) SetHeader(h [3]byte) { m.header = h }

func (m *Msg) Type() Type { return m.typ }

// SetData replaces the payload (pre-header, pre-checksum).
func (m *Msg) SetData(data []byte) {
	m.data = append(m.data[:0], data...)
}

func (m *Msg) Data() []byte { return m.data }

func (m *Msg) Length() int { return len(m.data) }

func (m *Msg) SetLength(n int) {
	if n <= cap(m.data) {
		m.data = m.data[:n]
		return
	}
	grown := make([]byte, n)
	copy(grown, m.data)
	m.data = grown
}

func (m *Msg) addHeader(headerLen int) {
	hdr := make([]byte, headerLen, headerLen+len(m.data)+1)
	copy(hdr, m.header[:])
	m.data = append(hdr, m.data...)
}

// isoAddChecksum appends an 8-bit additive checksum over every byte
// currently in the buffer.
func (m *Msg) isoAddChecksum() {
	var sum byte
	for _, b := range m.data {
		sum += b
	}
	m.data = append(m.data, sum)
}

// j1850AddChecksum appends the CRC-8 (poly 0x1D, init 0xFF, inverted
// output) J1850 checksum, computed bitwise MSB-first exactly as
// ecumsg.cpp's __j1850AddChecksum does.
func (m *Msg) j1850AddChecksum() {
	chksum := byte(0xFF)
	for _, val := range m.data {
		v := val
		for bit := 0; bit < 8; bit++ {
			if (v^chksum)&0x80 != 0 {
				chksum = ((chksum ^ 0x0E) << 1) | 1
			} else {
				chksum <<= 1
			}
			v <<= 1
		}
	}
	m.data = append(m.data, ^chksum)
}

func (m *Msg) stripChecksum() {
	if len(m.data) > 0 {
		m.data = m.data[:len(m.data)-1]
	}
}

func (m *Msg) removeHeader(headerLen int) {
	if headerLen > len(m.data) {
		headerLen = len(m.data)
	}
	m.data = m.data[headerLen:]
}

// headerLength computes the ISO 14230 header size from the form byte
// (bits 7:6) and the length-in-format-byte field, matching
// EcumsgISO14230::headerLength.
func (m *Msg) headerLength() int {
	if len(m.data) == 0 {
		return headerSize
	}
	formByte := m.data[0]
	headerForm := formByte >> 6
	formatLen := formByte & 0x3F
	length := 1
	if headerForm != 0 {
		length = 3
	}
	if formatLen == 0 {
		length++
	}
	return length
}

// AddHeaderAndChecksum frames the message: prepends the header (ISO 14230
// header size varies with form byte / length-in-format-byte, the other
// three variants always use the fixed 3-byte header) and appends the
// variant's checksum.
func (m *Msg) AddHeaderAndChecksum() {
	switch m.typ {
	case ISO9141, VPW, PWM:
		m.addHeader(headerSize)
	case ISO14230:
		headerForm := m.header[0] >> 6
		hdrSize := 1
		if headerForm != 0 {
			hdrSize = 3
		}
		payloadLen := len(m.data)
		byteLenPresent := payloadLen > 63 || (m.header[0]&0x0F) == 0
		if byteLenPresent {
			hdrSize++
		}
		m.addHeader(hdrSize)
		if byteLenPresent {
			m.data[hdrSize-1] = byte(payloadLen)
			m.data[0] &= 0xC0
		} else {
			m.data[0] = (m.data[0] & 0xC0) | byte(payloadLen)
		}
	}

	switch m.typ {
	case ISO9141, ISO14230:
		m.isoAddChecksum()
	case VPW, PWM:
		m.j1850AddChecksum()
	}
}

// AddChecksum appends only the checksum, no header — used for the
// keep-alive wakeup messages that carry a custom header already baked in.
func (m *Msg) AddChecksum() {
	switch m.typ {
	case ISO9141, ISO14230:
		m.isoAddChecksum()
	case VPW, PWM:
		m.j1850AddChecksum()
	}
}

// HeaderLength returns the number of header bytes currently framing the
// message (exported for protocol adapters that need to locate the
// negative-response byte past the header, e.g. checkResponsePending).
func (m *Msg) HeaderLength() int {
	if m.typ == ISO14230 {
		return m.headerLength()
	}
	return headerSize
}

// StripHeaderAndChecksum removes the header and checksum added by
// AddHeaderAndChecksum, returning false if the buffer is too short to
// safely strip (a malformed/truncated reply).
func (m *Msg) StripHeaderAndChecksum() bool {
	var hdrLen int
	switch m.typ {
	case ISO9141, VPW, PWM:
		hdrLen = headerSize
	case ISO14230:
		hdrLen = m.headerLength()
	}
	if len(m.data) < hdrLen+1 {
		return false
	}
	m.removeHeader(hdrLen)
	m.stripChecksum()
	return true
}

// TxChunkLen mirrors TX_BUFFER_LEN from adaptertypes.h: Ecumsg::sendReply
// splits long replies (J1850 VPW long messages) into chunks this size
// before converting to ASCII and writing to the host.
const TxChunkLen = 64

// Chunks splits the buffer into TxChunkLen-byte pieces for transmission,
// the Go equivalent of Ecumsg::sendReply's splitting loop; formatting to
// ASCII and writing to the host is the caller's responsibility (hexcodec
// and the host writer live above this package).
func (m *Msg) Chunks() [][]byte {
	if len(m.data) == 0 {
		return nil
	}
	var chunks [][]byte
	for i := 0; i < len(m.data); i += TxChunkLen {
		end := i + TxChunkLen
		if end > len(m.data) {
			end = len(m.data)
		}
		chunks = append(chunks, m.data[i:end])
	}
	return chunks
}
