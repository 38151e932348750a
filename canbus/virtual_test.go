package canbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var virtualAddr = "localhost:18888"

type frameRecorder struct {
	frames []Frame
}

func (r *frameRecorder) Handle(frame Frame) {
	r.frames = append(r.frames, frame)
}

func TestVirtualBusSendAndSubscribe(t *testing.T) {
	bus1 := NewVirtualBus(virtualAddr)
	bus2 := NewVirtualBus(virtualAddr)
	require.NoError(t, bus1.Connect())
	require.NoError(t, bus2.Connect())
	defer bus1.Close()
	defer bus2.Close()

	rx := &frameRecorder{}
	bus2.Subscribe(rx)

	for i := 0; i < 10; i++ {
		buf := NewBufferTxFrame(0x7E8, 8)
		buf.Data[0] = byte(i)
		require.NoError(t, bus1.Send(buf))
	}

	time.Sleep(200 * time.Millisecond)
	assert.GreaterOrEqual(t, len(rx.frames), 10)
	for i, frame := range rx.frames {
		assert.EqualValues(t, 0x7E8, frame.ID)
		assert.EqualValues(t, byte(i), frame.Data[0])
	}
}
