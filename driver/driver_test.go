package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerExpiry(t *testing.T) {
	clock := NewFakeClock()
	timer := NewTimer(clock)
	timer.Start(50 * time.Millisecond)
	require.False(t, timer.Expired())
	clock.Advance(60 * time.Millisecond)
	require.True(t, timer.Expired())
}

func TestFakePortSendEcho(t *testing.T) {
	port := NewFakePort()
	require.NoError(t, port.Send(0x41))
	echoed, ok := port.GetEcho()
	require.True(t, ok)
	require.Equal(t, byte(0x41), echoed)

	port.QueueRx(0x55, 0x08, 0x08)
	require.True(t, port.Ready())
	require.Equal(t, byte(0x55), port.Get())
}

func TestFakeBitBangFeedback(t *testing.T) {
	bb := NewFakeBitBang()
	bb.Enable(true)
	require.True(t, bb.Enabled())
	bb.SetBit(1)
	require.Equal(t, byte(1), bb.GetBit())
	bb.SetNextReadBit(0)
	require.Equal(t, byte(0), bb.GetBit())
	// after consuming the primed read, falls back to the line value
	require.Equal(t, byte(1), bb.GetBit())
}
