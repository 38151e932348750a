package profile

import "testing"

type fakeAdapter struct {
	proto      Protocol
	desc       string
	descNum    string
	connectOK  bool
	reqStatus  Status
	opened     bool
	closed     bool
	gotData    []byte
	gotNumResp int
}

func (f *fakeAdapter) Open() error                 { f.opened = true; return nil }
func (f *fakeAdapter) Close()                      { f.closed = true }
func (f *fakeAdapter) Protocol() Protocol           { return f.proto }
func (f *fakeAdapter) Description() string          { return f.desc }
func (f *fakeAdapter) DescriptionNum() string       { return f.descNum }
func (f *fakeAdapter) OnConnectEcu(sendReply bool) bool { return f.connectOK }
func (f *fakeAdapter) OnRequest(data []byte, numResponses int, c ResponseCollector) Status {
	f.gotData = data
	f.gotNumResp = numResponses
	return f.reqStatus
}
func (f *fakeAdapter) WiringCheck() string              { return "OK" }
func (f *fakeAdapter) Monitor(c ResponseCollector) Status { return StatusNone }

type fakeAuto struct {
	order []Protocol
}

func (a *fakeAuto) Open() error                      { return nil }
func (a *fakeAuto) Close()                           {}
func (a *fakeAuto) Protocol() Protocol                { return ProtocolAuto }
func (a *fakeAuto) Description() string               { return "AUTO" }
func (a *fakeAuto) DescriptionNum() string            { return "0" }
func (a *fakeAuto) OnConnectEcu(sendReply bool) bool  { return false }
func (a *fakeAuto) OnRequest(data []byte, n int, c ResponseCollector) Status {
	return StatusNoData
}
func (a *fakeAuto) WiringCheck() string               { return "" }
func (a *fakeAuto) Monitor(c ResponseCollector) Status { return StatusNone }
func (a *fakeAuto) ProbeOrder() []Protocol            { return a.order }

type fakeCollector struct {
	responses []string
}

func (c *fakeCollector) AddResponse(line string) { c.responses = append(c.responses, line) }
func (c *fakeCollector) Count() int              { return len(c.responses) }

func TestSetProtocolOpensAndClosesPrevious(t *testing.T) {
	d := NewDispatcher()
	iso := &fakeAdapter{proto: ProtocolISO9141, connectOK: true}
	can := &fakeAdapter{proto: ProtocolISO15765_11_500, connectOK: true}
	d.Register(iso)
	d.Register(can)

	if err := d.SetProtocol(ProtocolISO9141); err != nil {
		t.Fatalf("SetProtocol: %v", err)
	}
	if !iso.opened {
		t.Fatal("expected iso adapter opened")
	}
	if err := d.SetProtocol(ProtocolISO15765_11_500); err != nil {
		t.Fatalf("SetProtocol: %v", err)
	}
	if !iso.closed {
		t.Fatal("expected iso adapter closed on switch")
	}
	if !can.opened {
		t.Fatal("expected can adapter opened")
	}
}

func TestConnectWithSpecificProtocol(t *testing.T) {
	d := NewDispatcher()
	iso := &fakeAdapter{proto: ProtocolISO9141, connectOK: true}
	d.Register(iso)
	d.SetProtocol(ProtocolISO9141)

	status, ok := d.Connect(true)
	if !ok || status != StatusNone {
		t.Fatalf("expected connect ok, got %v %v", status, ok)
	}
}

func TestConnectFailureReportsUnableToConnect(t *testing.T) {
	d := NewDispatcher()
	iso := &fakeAdapter{proto: ProtocolISO9141, connectOK: false}
	d.Register(iso)
	d.SetProtocol(ProtocolISO9141)

	status, ok := d.Connect(true)
	if ok || status != StatusUnableToConnect {
		t.Fatalf("expected unable to connect, got %v %v", status, ok)
	}
}

func TestAutoProbesInOrderUntilSuccess(t *testing.T) {
	d := NewDispatcher()
	pwm := &fakeAdapter{proto: ProtocolJ1850PWM, connectOK: false}
	vpw := &fakeAdapter{proto: ProtocolJ1850VPW, connectOK: true}
	d.Register(pwm)
	d.Register(vpw)
	d.Register(&fakeAuto{order: []Protocol{ProtocolJ1850PWM, ProtocolJ1850VPW}})

	status, ok := d.Connect(true)
	if !ok || status != StatusNone {
		t.Fatalf("expected connect via vpw, got %v %v", status, ok)
	}
	if d.Current() != vpw {
		t.Fatal("expected vpw selected as current adapter")
	}
	if !pwm.opened || !pwm.closed {
		t.Fatal("expected pwm probed and closed after failing")
	}
}

func TestOnRequestWithoutProtocolFails(t *testing.T) {
	d := NewDispatcher()
	if _, err := d.OnRequest([]byte{0x01, 0x00}, 1, &fakeCollector{}); err != ErrNoProtocol {
		t.Fatalf("expected ErrNoProtocol, got %v", err)
	}
}

func TestOnRequestForwardsToCurrentAdapter(t *testing.T) {
	d := NewDispatcher()
	iso := &fakeAdapter{proto: ProtocolISO9141, connectOK: true, reqStatus: StatusNoData}
	d.Register(iso)
	d.SetProtocol(ProtocolISO9141)

	status, err := d.OnRequest([]byte{0x01, 0x00}, 1, &fakeCollector{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusNoData {
		t.Fatalf("expected StatusNoData, got %v", status)
	}
	if len(iso.gotData) != 2 {
		t.Fatalf("expected adapter to receive request bytes, got %v", iso.gotData)
	}
}

func TestReplyLineSuppressesSuccessStatuses(t *testing.T) {
	if line, isErr := ReplyLine(StatusNone); line != "" || isErr {
		t.Fatalf("expected no reply line for StatusNone, got %q %v", line, isErr)
	}
	if line, isErr := ReplyLine(StatusNoData); line != "NO DATA" || !isErr {
		t.Fatalf("expected NO DATA error line, got %q %v", line, isErr)
	}
	if line, isErr := ReplyLine(StatusChecksumError); line != "DATA ERROR>" || !isErr {
		t.Fatalf("expected DATA ERROR> line, got %q %v", line, isErr)
	}
}
