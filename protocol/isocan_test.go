package protocol

import (
	"testing"
	"time"

	"github.com/vconn/obdlink/canbus"
	"github.com/vconn/obdlink/collector"
	"github.com/vconn/obdlink/config"
	"github.com/vconn/obdlink/history"
	"github.com/vconn/obdlink/profile"
	"github.com/vconn/obdlink/timing"
)

type fakeBus struct {
	sent []canbus.BufferTxFrame
}

func (b *fakeBus) Send(f canbus.BufferTxFrame) error { b.sent = append(b.sent, f); return nil }
func (b *fakeBus) Subscribe(h canbus.FrameHandler)   {}
func (b *fakeBus) Connect(...any) error              { return nil }

func newTestIsoCan11(t *testing.T) (*IsoCan11Adapter, *fakeBus) {
	t.Helper()
	bus := &fakeBus{}
	bm := canbus.NewBusManager(bus)
	store := config.NewDefault()
	tmgr := timing.New(store)
	a := NewIsoCan11Adapter(bm, store, tmgr)
	if err := a.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return a, bus
}

func TestIsoCan11SendsSingleFrameRequest(t *testing.T) {
	a, bus := newTestIsoCan11(t)
	if err := a.sendRequest([]byte{0x01, 0x00}); err != nil {
		t.Fatalf("sendRequest: %v", err)
	}
	if len(bus.sent) != 1 {
		t.Fatalf("expected 1 frame sent, got %d", len(bus.sent))
	}
	frame := bus.sent[0]
	if frame.Data[0] != 0x02 || frame.Data[1] != 0x01 || frame.Data[2] != 0x00 {
		t.Fatalf("unexpected single-frame payload: %v", frame.Data)
	}
}

func TestIsoCan11ReceivesSingleFrameResponse(t *testing.T) {
	a, _ := newTestIsoCan11(t)
	frame := canbus.Frame{ID: can11DefaultFilter, DLC: 8}
	frame.Data = [8]byte{0x06, 0x41, 0x00, 0xBE, 0x3E, 0xB8, 0x10, 0x00}
	a.Handle(frame)

	msg, ok := a.receiveFrame(100)
	if !ok {
		t.Fatal("expected a response")
	}
	if msg.Data[0]>>4 != pciSingleFrame || msg.Data[1] != 0x41 {
		t.Fatalf("unexpected response: %v", msg.Data)
	}
}

// TestIsoCan11DumpHistoryRecordsFrames exercises the history.Log wired into
// isoCanAdapter's send/Handle paths (comment (d): previously history was
// fully implemented but had no production call site).
func TestIsoCan11DumpHistoryRecordsFrames(t *testing.T) {
	a, _ := newTestIsoCan11(t)
	if err := a.sendRequest([]byte{0x01, 0x00}); err != nil {
		t.Fatalf("sendRequest: %v", err)
	}
	frame := canbus.Frame{ID: can11DefaultFilter, DLC: 8}
	frame.Data = [8]byte{0x03, 0x41, 0x00, 0xBE, 0xCC, 0xCC, 0xCC, 0xCC}
	a.Handle(frame)

	entries := a.DumpHistory()
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries (1 TX + 1 RX), got %d", len(entries))
	}
	if entries[0].Direction != history.TX {
		t.Fatalf("expected first entry to be TX, got %v", entries[0].Direction)
	}
	if entries[1].Direction != history.RX {
		t.Fatalf("expected second entry to be RX, got %v", entries[1].Direction)
	}
}

func TestIsoCan11NegativeResponsePendingDetection(t *testing.T) {
	if !isNegativeResponsePending([]byte{0x7F, 0x01, 0x78}) {
		t.Fatal("expected 7F xx 78 to be detected as pending")
	}
	if isNegativeResponsePending([]byte{0x41, 0x00}) {
		t.Fatal("expected a normal positive response not to be flagged")
	}
}

// TestIsoCan11OnRequestMultiFrameResponse exercises a First Frame followed
// by two Consecutive Frames, asserting each physical frame produces its
// own host reply line (the 3-hex-digit length line, then "0: "/"1: "/"2: "
// lines) instead of being reassembled into one collected response.
func TestIsoCan11OnRequestMultiFrameResponse(t *testing.T) {
	a, _ := newTestIsoCan11(t)
	go func() {
		ff := canbus.Frame{ID: can11DefaultFilter, DLC: 8}
		ff.Data = [8]byte{0x10, 0x14, 0x49, 0x02, 0x01, 0x00, 0x00, 0x00}
		a.Handle(ff)
		time.Sleep(5 * time.Millisecond)

		cf1 := canbus.Frame{ID: can11DefaultFilter, DLC: 8}
		cf1.Data = [8]byte{0x21, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77}
		a.Handle(cf1)
		time.Sleep(5 * time.Millisecond)

		cf2 := canbus.Frame{ID: can11DefaultFilter, DLC: 8}
		cf2.Data = [8]byte{0x22, 0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE}
		a.Handle(cf2)
	}()

	c := collector.New()
	status := a.OnRequest([]byte{0x09, 0x02}, 1, c)
	if status != profile.StatusNone {
		t.Fatalf("expected StatusNone, got %v", status)
	}

	want := []string{"014", "0: 49 02 01 00 00 00", "1: 11 22 33 44 55 66 77", "2: 88 99 AA BB CC DD EE"}
	got := c.Responses()
	if len(got) != len(want) {
		t.Fatalf("expected %d reply lines, got %d: %v", len(want), len(got), got)
	}
	for i, line := range want {
		if got[i] != line {
			t.Fatalf("line %d: expected %q, got %q", i, line, got[i])
		}
	}
}

func TestIsoCan11OnRequestCollectsSingleResponse(t *testing.T) {
	a, _ := newTestIsoCan11(t)
	go func() {
		frame := canbus.Frame{ID: can11DefaultFilter, DLC: 8}
		frame.Data = [8]byte{0x03, 0x41, 0x00, 0xBE, 0xCC, 0xCC, 0xCC, 0xCC}
		a.Handle(frame)
	}()
	c := collector.New()
	status := a.OnRequest([]byte{0x01, 0x00}, 1, c)
	if status != profile.StatusNone {
		t.Fatalf("expected StatusNone, got %v", status)
	}
	if c.Count() != 1 {
		t.Fatalf("expected 1 collected response, got %d", c.Count())
	}
}
