package j1939

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vconn/obdlink/canbus"
)

type fakeSender struct {
	sent []canbus.CanMsgBuffer
}

func (f *fakeSender) SendFrame(msg canbus.CanMsgBuffer) error {
	f.sent = append(f.sent, msg)
	return nil
}

func TestRTSRepliesWithCTS(t *testing.T) {
	sender := &fakeSender{}
	mgr := New(sender, func() byte { return 0xF1 })
	mgr.SetPGN(0xCA, 0xFE, 0x00)

	rts := canbus.NewCanMsgBuffer(0x18EC1700, true, 8, ctrlRTS, 20, 0, 3, 0xFF, 0xCA, 0xFE, 0x00)
	require.NoError(t, mgr.RTS(rts))
	require.Len(t, sender.sent, 1)
	cts := sender.sent[0]
	require.Equal(t, byte(ctrlCTS), cts.Data[0])
	require.Equal(t, byte(3), cts.Data[1])
	require.Equal(t, 20, mgr.Size())
}

func TestDataSequenceMismatchRejected(t *testing.T) {
	sender := &fakeSender{}
	mgr := New(sender, func() byte { return 0xF1 })
	mgr.SetPGN(0xCA, 0xFE, 0x00)
	rts := canbus.NewCanMsgBuffer(0x18EC1700, true, 8, ctrlRTS, 20, 0, 3, 0xFF, 0xCA, 0xFE, 0x00)
	require.NoError(t, mgr.RTS(rts))

	dt := canbus.NewCanMsgBuffer(0x18EB1700, true, 8, 2 /* expected 1 */, 1, 2, 3, 4, 5, 6, 7)
	ok, err := mgr.Data(dt)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDataCompletesSendsAck(t *testing.T) {
	sender := &fakeSender{}
	mgr := New(sender, func() byte { return 0xF1 })
	mgr.SetPGN(0xCA, 0xFE, 0x00)
	rts := canbus.NewCanMsgBuffer(0x18EC1700, true, 8, ctrlRTS, 20, 0, 2, 0xFF, 0xCA, 0xFE, 0x00)
	require.NoError(t, mgr.RTS(rts))

	dt1 := canbus.NewCanMsgBuffer(0x18EB1700, true, 8, 1, 1, 2, 3, 4, 5, 6, 7)
	ok, err := mgr.Data(dt1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, sender.sent, 1) // just CTS so far

	dt2 := canbus.NewCanMsgBuffer(0x18EB1700, true, 8, 2, 8, 9, 10, 11, 12, 13, 0xCC)
	ok, err = mgr.Data(dt2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, sender.sent, 2) // CTS + EndOfMsgACK
	require.Equal(t, byte(ctrlEndOfMsgAck), sender.sent[1].Data[0])
}

func TestIsValidAck(t *testing.T) {
	mgr := New(&fakeSender{}, func() byte { return 0xF1 })
	mgr.SetPGN(0xCA, 0xFE, 0x00)
	ack := canbus.NewCanMsgBuffer(0, true, 8, ctrlEndOfMsgAck, 0, 0, 0, 0, 0xCA, 0xFE, 0x00)
	require.True(t, mgr.IsValidAck(ack))
	ack.Data[5] = 0x00
	require.False(t, mgr.IsValidAck(ack))
}

func TestFrameKindDetection(t *testing.T) {
	require.True(t, IsControlFrame(0x18EC1700))
	require.True(t, IsDataFrame(0x18EB1700))
	require.False(t, IsControlFrame(0x18EB1700))
}
