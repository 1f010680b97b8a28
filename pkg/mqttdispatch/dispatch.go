// Package mqttdispatch implements the MQTT Subscription Dispatcher
// (spec.md §4.5, component C5): a fixed-capacity table mapping topic
// filters to corebus handles, connection-status fan-out, and
// reconnect-triggered re-subscription. Grounded on
// original_source/iotcored/src/subscription_dispatch.c, generalized from
// that file's fixed C arrays into a mutex-protected Go slice table.
package mqttdispatch

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/corebus"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggobject"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/topicfilter"
)

// MaxTopicLen is AWS_IOT_MAX_TOPIC_SIZE from the source: the limit on a
// topic filter this dispatcher will register (spec.md §4.5).
const MaxTopicLen = 256

// DefaultCapacity is IOTCORED_MAX_SUBSCRIPTIONS's compile-time default,
// generalized to a runtime constructor argument per spec.md §9's
// "runtime configurable instead of compile-time constant" decision.
const DefaultCapacity = 128

// ConnState is the dispatcher's connection lifecycle state (spec.md
// §4.5: INIT -> CONNECTED -> RECONNECTING -> CONNECTED -> ...).
type ConnState int

const (
	StateInit ConnState = iota
	StateConnected
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	default:
		return "UNKNOWN"
	}
}

// Resubscriber is implemented by the MQTT transport; ReRegisterAll calls
// it once per surviving topic filter after a reconnect.
type Resubscriber interface {
	Subscribe(topicFilter string, qos byte) error
}

// Unsubscriber is implemented by the MQTT transport for the "last
// registrant on this filter is gone" case.
type Unsubscriber interface {
	Unsubscribe(topicFilter string) error
}

type subscription struct {
	filter string
	handle corebus.Handle
	qos    byte
}

// Dispatcher fans out incoming MQTT messages to subscribed corebus
// handles by topic filter match, and broadcasts connection status
// changes to a separate table of status watchers.
type Dispatcher struct {
	capacity int
	log      *logrus.Entry

	mu   sync.Mutex
	subs []subscription

	statusMu sync.Mutex
	status   []corebus.Handle
	state    ConnState
}

// New builds a Dispatcher with the given subscription-table capacity
// (pass DefaultCapacity for the source's historical default).
func New(capacity int, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{capacity: capacity, log: log}
}

// Register adds one subscription row per topic filter, each bound to
// handle at the given QoS. All filters must be non-empty and no longer than
// MaxTopicLen, checked before any are registered so a failure leaves the
// table unchanged (spec.md's "validated before any have been added").
func (d *Dispatcher) Register(filters []string, handle corebus.Handle, qos byte) error {
	for _, f := range filters {
		if f == "" {
			return ggerr.New(ggerr.Invalid, "attempted to register a 0 length topic filter")
		}
		if len(f) > MaxTopicLen {
			return ggerr.New(ggerr.Range, "topic filter exceeds max length")
		}
		if err := topicfilter.Validate(f); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.subs)+len(filters) > d.capacity {
		return ggerr.New(ggerr.NoMem, "configured maximum subscriptions exceeded")
	}
	for _, f := range filters {
		d.subs = append(d.subs, subscription{filter: f, handle: handle, qos: qos})
	}
	return nil
}

// Unregister removes every subscription owned by handle. If unsub is
// non-nil and a removed filter has no other registrant left, unsub is
// called to actually unsubscribe at the transport (spec.md: "the last
// registrant leaving triggers an MQTT UNSUBSCRIBE").
func (d *Dispatcher) Unregister(handle corebus.Handle, unsub Unsubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()

	remaining := d.subs[:0]
	for _, s := range d.subs {
		if s.handle != handle {
			remaining = append(remaining, s)
			continue
		}
		if unsub != nil && !d.hasOtherRegistrant(s.filter, handle) {
			if err := unsub.Unsubscribe(s.filter); err != nil {
				d.log.WithError(err).WithField("filter", s.filter).Warn("unsubscribe failed")
			}
		}
	}
	d.subs = remaining
}

func (d *Dispatcher) hasOtherRegistrant(filter string, exclude corebus.Handle) bool {
	for _, s := range d.subs {
		if s.handle != exclude && s.filter == filter {
			return true
		}
	}
	return false
}

// Deliver fans an incoming message out to every registered filter that
// matches topic, pushing {topic, payload} to each matching handle via
// respond.
func (d *Dispatcher) Deliver(topic string, payload []byte, respond func(corebus.Handle, ggobject.Value) error) {
	d.mu.Lock()
	matches := make([]corebus.Handle, 0, 4)
	for _, s := range d.subs {
		if topicfilter.Match(s.filter, topic) {
			matches = append(matches, s.handle)
		}
	}
	d.mu.Unlock()

	msg, err := ggobject.Map(
		ggobject.Pair("topic", ggobject.BufString(topic)),
		ggobject.Pair("payload", ggobject.Buf(payload)),
	)
	if err != nil {
		d.log.WithError(err).Error("failed to build message object")
		return
	}

	for _, h := range matches {
		if err := respond(h, msg); err != nil {
			d.log.WithError(err).WithField("handle", h).Debug("sub_respond failed, leaving table for disconnect cleanup")
		}
	}
}

// StatusRegister adds handle to the set that receives connection status
// broadcasts.
func (d *Dispatcher) StatusRegister(handle corebus.Handle) error {
	d.statusMu.Lock()
	defer d.statusMu.Unlock()
	if len(d.status) >= d.capacity {
		return ggerr.New(ggerr.NoMem, "configured maximum status subscriptions exceeded")
	}
	d.status = append(d.status, handle)
	return nil
}

// StatusUnregister removes handle from the status broadcast set.
func (d *Dispatcher) StatusUnregister(handle corebus.Handle) {
	d.statusMu.Lock()
	defer d.statusMu.Unlock()
	for i, h := range d.status {
		if h == handle {
			d.status = append(d.status[:i], d.status[i+1:]...)
			return
		}
	}
}

// SetState updates the dispatcher's connection lifecycle state and
// broadcasts it to every status watcher.
func (d *Dispatcher) SetState(state ConnState, respond func(corebus.Handle, ggobject.Value) error) {
	d.statusMu.Lock()
	d.state = state
	watchers := append([]corebus.Handle(nil), d.status...)
	d.statusMu.Unlock()

	status := ggobject.Bool(state == StateConnected)
	for _, h := range watchers {
		if err := respond(h, status); err != nil {
			d.log.WithError(err).WithField("handle", h).Debug("status broadcast failed, leaving table for disconnect cleanup")
		}
	}
}

// CurrentState reports the dispatcher's present connection state, used
// to send a status watcher its initial value immediately on subscribe
// (spec.md §8 scenario 6: "delivers the current status first").
func (d *Dispatcher) CurrentState() ConnState {
	d.statusMu.Lock()
	defer d.statusMu.Unlock()
	return d.state
}

// ReRegisterAll re-subscribes every surviving topic filter at the
// transport after a reconnect. A filter whose re-subscribe fails is
// dropped from the table (matching the source's "failed subscriptions
// are forgotten rather than retried forever").
func (d *Dispatcher) ReRegisterAll(sub Resubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()

	kept := d.subs[:0]
	for _, s := range d.subs {
		d.log.WithField("filter", s.filter).Debug("re-subscribing")
		if err := sub.Subscribe(s.filter, s.qos); err != nil {
			d.log.WithError(err).WithField("filter", s.filter).Error("failed to subscribe to topic filter")
			continue
		}
		kept = append(kept, s)
	}
	d.subs = kept
}
