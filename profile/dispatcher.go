package profile

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// ErrNoProtocol is returned by Dispatcher methods when no protocol has
// been selected yet (before the first successful SetProtocol/connect).
var ErrNoProtocol = errors.New("profile: no protocol selected")

// Dispatcher is the OBD Profile Dispatcher (C9): the single owner of
// "which Adapter is current", translating a raw request into a call on
// that Adapter and its Status result into the ASCII line the host sees.
// Grounded directly on original_source/src/adapter/obd/obdprofile.{h,cpp}.
type Dispatcher struct {
	adapters map[Protocol]Adapter
	auto     Adapter
	current  Adapter
}

// NewDispatcher builds an empty Dispatcher; adapters are registered with
// Register before use.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{adapters: make(map[Protocol]Adapter)}
}

// Register associates an Adapter with the protocol it implements. Passing
// ProtocolAuto registers the auto-detect adapter (C8) separately, since it
// is never itself a dispatch target for OnRequest/OnConnectEcu — only for
// SetProtocol(ProtocolAuto).
func (d *Dispatcher) Register(a Adapter) {
	if a.Protocol() == ProtocolAuto {
		d.auto = a
		return
	}
	d.adapters[a.Protocol()] = a
}

// SetProtocol selects p as the current protocol, opening it (closing
// whatever was open before). Selecting ProtocolAuto defers the actual
// protocol choice to Connect, which probes every registered adapter in
// turn via the auto-detect adapter.
func (d *Dispatcher) SetProtocol(p Protocol) error {
	if d.current != nil {
		log.Debugf("[PROFILE] closing protocol %v", d.current.Protocol())
		d.current.Close()
		d.current = nil
	}
	if p == ProtocolAuto {
		return nil
	}
	a, ok := d.adapters[p]
	if !ok {
		return fmt.Errorf("profile: no adapter registered for protocol %d", p)
	}
	if err := a.Open(); err != nil {
		log.Warnf("[PROFILE] opening protocol %v failed : %v", p, err)
		return err
	}
	log.Infof("[PROFILE] protocol %v selected", p)
	d.current = a
	return nil
}

// Connect performs the ECU handshake: if a specific protocol was already
// selected it just calls that adapter's OnConnectEcu, otherwise it probes
// every registered protocol (via the auto-detect adapter's declared
// order) until one succeeds, matching AutoAdapter::onConnectEcu.
func (d *Dispatcher) Connect(sendReply bool) (Status, bool) {
	if d.current != nil {
		ok := d.current.OnConnectEcu(sendReply)
		if !ok {
			return StatusUnableToConnect, false
		}
		return StatusNone, true
	}
	if d.auto == nil {
		return StatusUnableToConnect, false
	}
	for _, candidate := range d.auto.(interface{ ProbeOrder() []Protocol }).ProbeOrder() {
		a, ok := d.adapters[candidate]
		if !ok {
			continue
		}
		if err := a.Open(); err != nil {
			continue
		}
		log.Debugf("[PROFILE] probing protocol %v", candidate)
		if a.OnConnectEcu(false) {
			log.Infof("[PROFILE] auto-detected protocol %v", candidate)
			d.current = a
			if sendReply {
				// success line is emitted by the caller once Connect
				// returns true, matching OBDProfile::onConnectEcu's
				// single reply point regardless of which protocol won.
			}
			return StatusNone, true
		}
		a.Close()
	}
	log.Warnf("[PROFILE] auto-detect exhausted probe order, no ECU responded")
	return StatusUnableToConnect, false
}

// OnRequest forwards data to the current adapter and returns the status;
// ErrNoProtocol if none is selected (checkProtocol() in the original).
func (d *Dispatcher) OnRequest(data []byte, numResponses int, collector ResponseCollector) (Status, error) {
	if d.current == nil {
		return StatusUnableToConnect, ErrNoProtocol
	}
	return d.current.OnRequest(data, numResponses, collector), nil
}

// Monitor drains unsolicited traffic from the current adapter.
func (d *Dispatcher) Monitor(collector ResponseCollector) (Status, error) {
	if d.current == nil {
		return StatusNone, ErrNoProtocol
	}
	return d.current.Monitor(collector), nil
}

// WiringCheck runs the current adapter's physical-layer test.
func (d *Dispatcher) WiringCheck() (string, error) {
	if d.current == nil {
		return "", ErrNoProtocol
	}
	return d.current.WiringCheck(), nil
}

// Description and DescriptionNum report the current adapter's identity,
// empty if none is selected.
func (d *Dispatcher) Description() string {
	if d.current == nil {
		return ""
	}
	return d.current.Description()
}

func (d *Dispatcher) DescriptionNum() string {
	if d.current == nil {
		return ""
	}
	return d.current.DescriptionNum()
}

// Current returns the presently selected adapter, or nil.
func (d *Dispatcher) Current() Adapter { return d.current }

// ReplyLine translates a Status into the ASCII line OnRequest's caller
// should write to the host, exactly mirroring OBDProfile::sendReply's
// switch over ECU_RESULT — StatusOK and StatusNone both mean "the success
// reply line was already written by the adapter itself", so neither
// produces an error line here.
func ReplyLine(s Status) (line string, isError bool) {
	if s == StatusNone || s == StatusOK {
		return "", false
	}
	return s.Error(), true
}
