package protocol

import (
	"testing"

	"github.com/vconn/obdlink/profile"
)

func TestAutoAdapterProbeOrder(t *testing.T) {
	a := NewAutoAdapter()
	order := a.ProbeOrder()
	want := []profile.Protocol{
		profile.ProtocolJ1850PWM,
		profile.ProtocolJ1850VPW,
		profile.ProtocolISO9141,
		profile.ProtocolISO15765_11_500,
		profile.ProtocolISO15765_29_500,
	}
	if len(order) != len(want) {
		t.Fatalf("expected %d protocols, got %d", len(want), len(order))
	}
	for i, p := range want {
		if order[i] != p {
			t.Fatalf("probe order[%d]: expected %v, got %v", i, p, order[i])
		}
	}
}

func TestAutoAdapterNeverHandlesRequestsDirectly(t *testing.T) {
	a := NewAutoAdapter()
	if status := a.OnRequest([]byte{0x01, 0x00}, 1, nil); status != profile.StatusNoData {
		t.Fatalf("expected StatusNoData, got %v", status)
	}
	if a.OnConnectEcu(true) {
		t.Fatal("expected AutoAdapter.OnConnectEcu to always fail")
	}
}
