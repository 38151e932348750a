package canbus

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// VirtualBus is a TCP-backed CAN transport used by protocol adapter tests
// and bench harnesses that have no socketcan interface available — a fake
// ECU goroutine listens on the same TCP port and answers requests exactly
// the way a real bus would, letting the ISO-TP and J1939 state machines be
// exercised end to end without hardware.
type VirtualBus struct {
	addr          string
	conn          net.Conn
	frameHandler  FrameHandler
	stopChan      chan bool
	mu            sync.Mutex
	wg            sync.WaitGroup
	isRunning     bool
	errSubscriber bool
}

func serializeFrame(frame Frame) ([]byte, error) {
	buffer := new(bytes.Buffer)
	if err := binary.Write(buffer, binary.BigEndian, frame); err != nil {
		return nil, err
	}
	body := buffer.Bytes()
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(body)))
	return append(header, body...), nil
}

func deserializeFrame(raw []byte) (*Frame, error) {
	var frame Frame
	if err := binary.Read(bytes.NewBuffer(raw), binary.BigEndian, &frame); err != nil {
		return nil, err
	}
	return &frame, nil
}

func (v *VirtualBus) Send(buffer BufferTxFrame) error {
	if v.conn == nil {
		return errors.New("no active connection")
	}
	frame := Frame{ID: buffer.Ident, DLC: buffer.DLC, Data: buffer.Data}
	raw, err := serializeFrame(frame)
	if err != nil {
		return err
	}
	_, err = v.conn.Write(raw)
	return err
}

func (v *VirtualBus) Subscribe(handler FrameHandler) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.frameHandler = handler
	if v.isRunning {
		return
	}
	v.wg.Add(1)
	v.isRunning = true
	v.errSubscriber = false
	go v.handleReception()
}

func (v *VirtualBus) Connect(...any) error {
	conn, err := net.Dial("tcp", v.addr)
	if err != nil {
		return err
	}
	v.conn = conn
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			return err
		}
	}
	return nil
}

func (v *VirtualBus) recv() (*Frame, error) {
	v.conn.SetDeadline(time.Now().Add(200 * time.Millisecond))
	header := make([]byte, 4)
	n, err := v.conn.Read(header)
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return nil, err
	}
	if n < 4 || err != nil {
		return nil, fmt.Errorf("deserializing frame header: expected %d bytes, got %d, err: %v", 4, n, err)
	}
	length := binary.BigEndian.Uint32(header)
	body := make([]byte, length)
	v.conn.SetDeadline(time.Now().Add(200 * time.Millisecond))
	n, err = v.conn.Read(body)
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return nil, err
	}
	if n != int(length) || err != nil {
		return nil, fmt.Errorf("deserializing frame body: expected %d bytes, got %d", length, n)
	}
	return deserializeFrame(body)
}

func (v *VirtualBus) handleReception() {
	defer func() {
		v.isRunning = false
		v.wg.Done()
	}()
	for {
		select {
		case <-v.stopChan:
			return
		default:
			frame, err := v.recv()
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			} else if err != nil {
				log.Errorf("[virtual canbus] reception loop closed: %v", err)
				v.errSubscriber = true
				return
			} else if v.frameHandler != nil {
				v.frameHandler.Handle(*frame)
			}
		}
	}
}

func (v *VirtualBus) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.errSubscriber {
		v.stopChan <- true
		v.wg.Wait()
	}
	if v.conn != nil {
		return v.conn.Close()
	}
	return nil
}

func NewVirtualBus(addr string) *VirtualBus {
	return &VirtualBus{addr: addr, stopChan: make(chan bool)}
}
