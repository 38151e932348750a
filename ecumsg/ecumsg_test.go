package ecumsg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestISO9141AddHeaderAndChecksum(t *testing.T) {
	m := New(ISO9141)
	m.SetData([]byte{0x01, 0x00})
	m.AddHeaderAndChecksum()
	// header (3) + payload (2) + checksum (1)
	require.Equal(t, 6, m.Length())
	require.Equal(t, []byte{0x68, 0x6A, 0xF1}, m.Data()[:3])

	var sum byte
	for _, b := range m.Data()[:5] {
		sum += b
	}
	require.Equal(t, sum, m.Data()[5])
}

func TestISO9141StripHeaderAndChecksum(t *testing.T) {
	m := New(ISO9141)
	m.SetData([]byte{0x01, 0x00})
	m.AddHeaderAndChecksum()
	ok := m.StripHeaderAndChecksum()
	require.True(t, ok)
	require.Equal(t, []byte{0x01, 0x00}, m.Data())
}

func TestISO14230HeaderLengthShortForm(t *testing.T) {
	m := New(ISO14230)
	m.SetHeader([3]byte{0x80, 0x33, 0xF1}) // form != 0 but format len 0 -> byteLenPresent
	m.SetData([]byte{0x01, 0x00})
	m.AddHeaderAndChecksum()
	require.True(t, m.StripHeaderAndChecksum())
	require.Equal(t, []byte{0x01, 0x00}, m.Data())
}

func TestISO14230HeaderLengthEmbeddedLength(t *testing.T) {
	m := New(ISO14230)
	m.SetHeader([3]byte{0xC2, 0x33, 0xF1}) // form=3 (11), format len=2 embedded
	m.SetData([]byte{0x01, 0x00})
	m.AddHeaderAndChecksum()
	require.True(t, m.StripHeaderAndChecksum())
	require.Equal(t, []byte{0x01, 0x00}, m.Data())
}

func TestVPWChecksumCRC8(t *testing.T) {
	m := New(VPW)
	m.SetData([]byte{0x68, 0x6A, 0xF1, 0x01, 0x00})
	m.AddChecksum()
	require.Equal(t, 6, m.Length())
}

func TestStripTooShortFails(t *testing.T) {
	m := New(ISO9141)
	m.SetData([]byte{0x01})
	require.False(t, m.StripHeaderAndChecksum())
}

func TestChunksSplitsAtTxChunkLen(t *testing.T) {
	m := New(VPW)
	data := make([]byte, 130)
	m.SetData(data)
	chunks := m.Chunks()
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], TxChunkLen)
	require.Len(t, chunks[1], TxChunkLen)
	require.Len(t, chunks[2], 2)
}
