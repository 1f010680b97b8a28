package mqttdispatch

import (
	"testing"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/corebus"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggobject"
)

func collectDeliveries(d *Dispatcher, topic string, payload []byte) map[corebus.Handle]ggobject.Value {
	out := make(map[corebus.Handle]ggobject.Value)
	d.Deliver(topic, payload, func(h corebus.Handle, v ggobject.Value) error {
		out[h] = v
		return nil
	})
	return out
}

func TestDeliverMatchesRegisteredFilter(t *testing.T) {
	d := New(DefaultCapacity, nil)
	if err := d.Register([]string{"home/+/temp"}, corebus.Handle(1), 0); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got := collectDeliveries(d, "home/kitchen/temp", []byte("21"))
	if _, ok := got[corebus.Handle(1)]; !ok {
		t.Fatalf("expected handle 1 to receive the message, got %v", got)
	}

	got = collectDeliveries(d, "home/kitchen/humidity", []byte("40"))
	if len(got) != 0 {
		t.Fatalf("expected no match, got %v", got)
	}
}

func TestRegisterRejectsOverCapacityWithNoPartialState(t *testing.T) {
	d := New(2, nil)
	if err := d.Register([]string{"a", "b"}, corebus.Handle(1), 0); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := d.Register([]string{"c"}, corebus.Handle(2), 0)
	if ggerr.KindOf(err) != ggerr.NoMem {
		t.Fatalf("expected NoMem, got %v", err)
	}

	got := collectDeliveries(d, "c", nil)
	if len(got) != 0 {
		t.Fatalf("rejected registration must not leave partial state, got %v", got)
	}
}

func TestRegisterRejectsEmptyFilter(t *testing.T) {
	d := New(DefaultCapacity, nil)
	err := d.Register([]string{""}, corebus.Handle(1), 0)
	if ggerr.KindOf(err) != ggerr.Invalid {
		t.Fatalf("expected Invalid, got %v", err)
	}
}

func TestUnregisterRemovesAllFiltersForHandle(t *testing.T) {
	d := New(DefaultCapacity, nil)
	_ = d.Register([]string{"x/1", "x/2"}, corebus.Handle(1), 0)

	d.Unregister(corebus.Handle(1), nil)

	got := collectDeliveries(d, "x/1", nil)
	if len(got) != 0 {
		t.Fatalf("expected no subscriptions left, got %v", got)
	}
}

type fakeUnsubscriber struct {
	calls []string
}

func (f *fakeUnsubscriber) Unsubscribe(filter string) error {
	f.calls = append(f.calls, filter)
	return nil
}

func TestUnregisterOnlyUnsubscribesWhenLastRegistrantLeaves(t *testing.T) {
	d := New(DefaultCapacity, nil)
	_ = d.Register([]string{"shared"}, corebus.Handle(1), 0)
	_ = d.Register([]string{"shared"}, corebus.Handle(2), 0)

	u := &fakeUnsubscriber{}
	d.Unregister(corebus.Handle(1), u)
	if len(u.calls) != 0 {
		t.Fatalf("expected no unsubscribe while handle 2 still registered, got %v", u.calls)
	}

	d.Unregister(corebus.Handle(2), u)
	if len(u.calls) != 1 || u.calls[0] != "shared" {
		t.Fatalf("expected exactly one unsubscribe of 'shared', got %v", u.calls)
	}
}

func TestStatusBroadcastDeliversCurrentThenToggles(t *testing.T) {
	d := New(DefaultCapacity, nil)
	h := corebus.Handle(9)
	if err := d.StatusRegister(h); err != nil {
		t.Fatalf("StatusRegister: %v", err)
	}

	var received []bool
	respond := func(target corebus.Handle, v ggobject.Value) error {
		if target != h {
			return nil
		}
		received = append(received, v.AsBool())
		return nil
	}

	if d.CurrentState() != StateInit {
		t.Fatalf("expected initial state INIT, got %v", d.CurrentState())
	}
	received = append(received, d.CurrentState() == StateConnected)

	d.SetState(StateConnected, respond)
	d.SetState(StateReconnecting, respond)
	d.SetState(StateConnected, respond)

	want := []bool{false, true, false, true}
	if len(received) != len(want) {
		t.Fatalf("got %v, want %v", received, want)
	}
	for i := range want {
		if received[i] != want[i] {
			t.Fatalf("got %v, want %v", received, want)
		}
	}
}

type fakeResubscriber struct {
	subscribed []string
	fail       map[string]bool
}

func (f *fakeResubscriber) Subscribe(filter string, qos byte) error {
	if f.fail[filter] {
		return ggerr.New(ggerr.Remote, "broker rejected subscribe")
	}
	f.subscribed = append(f.subscribed, filter)
	return nil
}

func TestReRegisterAllResubscribesSurvivingFilters(t *testing.T) {
	d := New(DefaultCapacity, nil)
	_ = d.Register([]string{"a", "b"}, corebus.Handle(1), 1)

	r := &fakeResubscriber{fail: map[string]bool{"b": true}}
	d.ReRegisterAll(r)

	if len(r.subscribed) != 1 || r.subscribed[0] != "a" {
		t.Fatalf("expected only 'a' resubscribed, got %v", r.subscribed)
	}

	// "b" should have been dropped from the table after the failed
	// resubscribe.
	got := collectDeliveries(d, "b", nil)
	if len(got) != 0 {
		t.Fatalf("expected 'b' dropped from table, got %v", got)
	}
	got = collectDeliveries(d, "a", nil)
	if _, ok := got[corebus.Handle(1)]; !ok {
		t.Fatalf("expected 'a' still delivering, got %v", got)
	}
}
