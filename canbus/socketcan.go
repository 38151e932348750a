package canbus

import (
	"github.com/brutella/can"
)

// SocketcanBus is the real CAN transport, wrapping github.com/brutella/can
// against a physical or virtual Linux socketcan interface (e.g. "can0" or
// "vcan0"). It is the production Bus behind the ISO 15765-4 and J1939
// protocol adapters; NewVirtualBus below stands in for it in tests that
// have no socketcan interface available.
type SocketcanBus struct {
	bus          *can.Bus
	frameHandler FrameHandler
}

func (s *SocketcanBus) Send(frame BufferTxFrame) error {
	wire := can.Frame{ID: frame.Ident, Length: frame.DLC, Flags: 0, Res0: 0, Res1: 0, Data: frame.Data}
	return s.bus.Publish(wire)
}

func (s *SocketcanBus) Subscribe(handler FrameHandler) {
	s.frameHandler = handler
	s.bus.Subscribe(s)
}

func (s *SocketcanBus) Connect(...any) error {
	go s.bus.ConnectAndPublish()
	return nil
}

// Handle implements brutella/can's Handler interface.
func (s *SocketcanBus) Handle(frame can.Frame) {
	s.frameHandler.Handle(Frame{ID: frame.ID, DLC: frame.Length, Flags: frame.Flags, Data: frame.Data})
}

func NewSocketcanBus(iface string) (*SocketcanBus, error) {
	bus, err := can.NewBusForInterfaceWithName(iface)
	if err != nil {
		return nil, err
	}
	return &SocketcanBus{bus: bus}, nil
}
