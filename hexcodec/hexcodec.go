// Package hexcodec implements the Hex/ASCII Codec (C2): conversion between
// raw bytes and the upper-case hex ASCII the host dialect speaks, and CAN
// identifier formatting for reply headers. Grounded on
// original_source/src/util/algorithms.{h,cpp} (to_ascii, to_int, lsb,
// _2nd) and isocan.cpp's CanIDToString/formatReplyWithHeader.
package hexcodec

import (
	"strconv"

	"github.com/vconn/obdlink/config"
)

var nibbleTable = [16]byte{
	'0', '1', '2', '3', '4', '5', '6', '7',
	'8', '9', 'A', 'B', 'C', 'D', 'E', 'F',
}

// NibbleToASCII maps 0..15 to '0'..'9','A'..'F'; any other value yields 0,
// the sentinel algorithms.cpp's to_ascii uses for "not a nibble".
func NibbleToASCII(n byte) byte {
	if n > 0xF {
		return 0
	}
	return nibbleTable[n]
}

// BytesToHex renders data as two ASCII hex characters per byte, with an
// optional space separating each byte (the SPACES property).
func BytesToHex(data []byte, spaced bool) string {
	out := make([]byte, 0, len(data)*3)
	for i, b := range data {
		out = append(out, NibbleToASCII(b>>4), NibbleToASCII(b&0x0F))
		if spaced && i != len(data)-1 {
			out = append(out, ' ')
		}
	}
	return string(out)
}

// AppendHex is the in-place analog of BytesToHex, used by formatters that
// build a reply line incrementally with a shared config.Spacer; every byte,
// the last included, is followed by the spacer's separator.
func AppendHex(dst []byte, data []byte, spacer config.Spacer) []byte {
	for _, b := range data {
		dst = append(dst, NibbleToASCII(b>>4), NibbleToASCII(b&0x0F))
		dst = spacer.Space(dst)
	}
	return dst
}

// HexToBytes parses a run of hex ASCII characters into bytes, truncating
// a trailing odd nibble (the host command line may have an odd-length
// tail that Data Collector separately interprets as a response count).
func HexToBytes(s string) ([]byte, int) {
	n := len(s) / 2
	out := make([]byte, 0, n)
	for i := 0; i+1 < len(s); i += 2 {
		v, err := strconv.ParseUint(s[i:i+2], 16, 8)
		if err != nil {
			break
		}
		out = append(out, byte(v))
	}
	return out, len(out)
}

// CanIDToHex formats a CAN identifier the way the host dialect's header
// display does: an 11-bit id as 3 ASCII nibbles with a gap after the
// first, a 29-bit id as 8 ASCII nibbles in two-nibble groups separated by
// spaces. Either form is followed by the spacer's separator, which sets the
// id apart from the payload that follows it in a reply line.
func CanIDToHex(id uint32, extended bool, spacer config.Spacer) string {
	if !extended {
		b := []byte{
			NibbleToASCII(byte((id >> 8) & 0xF)),
			' ',
			NibbleToASCII(byte((id >> 4) & 0xF)),
			NibbleToASCII(byte(id & 0xF)),
		}
		return string(spacer.Space(b))
	}
	b := make([]byte, 0, 11)
	for shift := 28; shift >= 0; shift -= 4 {
		b = append(b, NibbleToASCII(byte((id>>uint(shift))&0xF)))
		if shift%8 == 0 && shift != 0 {
			b = append(b, ' ')
		}
	}
	return string(spacer.Space(b))
}

// Lsb returns the low byte of v.
func Lsb(v uint32) byte { return byte(v) }

// Second returns the second-lowest byte of v (bits 8..15).
func Second(v uint32) byte { return byte(v >> 8) }

// ToInt16 combines two little-endian bytes, matching algorithms.cpp's
// to_int(b0, b1).
func ToInt16(b0, b1 byte) uint16 {
	return uint16(b1)<<8 | uint16(b0)
}

// ToInt24 combines three little-endian bytes.
func ToInt24(b0, b1, b2 byte) uint32 {
	return uint32(b2)<<16 | uint32(b1)<<8 | uint32(b0)
}

// ToInt32 combines four little-endian bytes.
func ToInt32(b0, b1, b2, b3 byte) uint32 {
	return uint32(b3)<<24 | uint32(b2)<<16 | uint32(b1)<<8 | uint32(b0)
}
