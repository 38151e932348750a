package driver

import (
	"errors"
	"time"

	"github.com/tarm/serial"
)

// ECUSpeed is the UART baud rate ISO 9141/14230 communicate at once
// initialized (10400 bps, per J1979); the 5-baud slow-init sequence is
// driven over BitBang instead, since no real UART can clock that low.
const ECUSpeed = 10400

// UART is the real Port, wrapping github.com/tarm/serial against the
// adapter's K-line transceiver.
type UART struct {
	port *serial.Port
}

// NewUART opens devicePath at baud (10400 for ISO 9141/14230, 115200 for
// the host-facing link in the original firmware's adapter.cpp).
func NewUART(devicePath string, baud int) (*UART, error) {
	cfg := &serial.Config{Name: devicePath, Baud: baud, ReadTimeout: 50 * time.Millisecond}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	return &UART{port: port}, nil
}

func (u *UART) Send(b byte) error {
	_, err := u.port.Write([]byte{b})
	return err
}

func (u *UART) GetEcho() (byte, bool) {
	buf := make([]byte, 1)
	n, err := u.port.Read(buf)
	if err != nil || n != 1 {
		return 0, false
	}
	return buf[0], true
}

func (u *UART) Ready() bool {
	buf := make([]byte, 1)
	n, _ := u.port.Read(buf)
	return n == 1
}

func (u *UART) Get() byte {
	buf := make([]byte, 1)
	u.port.Read(buf)
	return buf[0]
}

func (u *UART) Clear() {
	u.port.Flush()
}

func (u *UART) Close() error {
	return u.port.Close()
}

// ErrNoBitBang reports that a generic serial port has no GPIO line to
// toggle directly. UART has no bit-bang methods, and nothing in this
// module returns this error.
var ErrNoBitBang = errors.New("driver: UART has no bit-bang capability")
