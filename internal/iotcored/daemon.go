package iotcored

import (
	"github.com/sirupsen/logrus"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/corebus"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggobject"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/mqttdispatch"
)

// Daemon wires a Transport and a mqttdispatch.Dispatcher into a corebus
// Interface implementing aws_iot_mqtt's publish/subscribe/
// connection_status methods exactly per spec.md §6's shape table.
type Daemon struct {
	transport *Transport
	disp      *mqttdispatch.Dispatcher
	log       *logrus.Entry
	srv       *corebus.Server
}

// NewDaemon builds the aws_iot_mqtt daemon.
func NewDaemon(transport *Transport, disp *mqttdispatch.Dispatcher, log *logrus.Entry) *Daemon {
	return &Daemon{transport: transport, disp: disp, log: log}
}

// Interface returns the registered corebus.Interface for "aws_iot_mqtt".
func (d *Daemon) Interface() *corebus.Interface {
	return corebus.NewInterface("aws_iot_mqtt",
		corebus.MethodDescriptor{Name: "publish", Handler: d.handlePublish},
		corebus.MethodDescriptor{Name: "subscribe", IsSubscription: true, Handler: d.handleSubscribe},
		corebus.MethodDescriptor{Name: "connection_status", IsSubscription: true, Handler: d.handleConnectionStatus},
	)
}

// BindServer attaches the corebus.Server this daemon registered its
// interface on, and plumbs its SubRespond into the Transport so inbound
// MQTT messages and status changes can reach subscribers.
func (d *Daemon) BindServer(srv *corebus.Server) {
	d.srv = srv
	d.transport.SetResponder(srv.SubRespond)
}

func (d *Daemon) handlePublish(call *corebus.Call) error {
	var topic, payload, qos ggobject.Value
	if err := ggobject.MapValidate(call.Params, []ggobject.FieldSchema{
		{Key: "topic", Required: true, Kind: ggobject.KindBuf, Out: &topic},
		{Key: "payload", Required: false, Kind: ggobject.KindBuf, Out: &payload},
		{Key: "qos", Required: false, Kind: ggobject.KindInt64, Out: &qos},
	}); err != nil {
		return call.RespondError(ggerr.KindOf(err), err.Error())
	}

	q := qos.AsInt64()
	if q < 0 || q > 2 {
		return call.RespondError(ggerr.Invalid, "qos must be in [0, 2]")
	}

	if err := d.transport.Publish(string(topic.AsBuf()), byte(q), payload.AsBuf()); err != nil {
		return call.RespondError(ggerr.KindOf(err), err.Error())
	}
	return call.Respond(ggobject.Null())
}

func topicFiltersFromParams(v ggobject.Value) ([]string, error) {
	switch v.Kind() {
	case ggobject.KindBuf:
		return []string{string(v.AsBuf())}, nil
	case ggobject.KindList:
		items := v.AsList()
		out := make([]string, 0, len(items))
		for _, item := range items {
			if item.Kind() != ggobject.KindBuf {
				return nil, ggerr.New(ggerr.Invalid, "topic_filter list elements must be buffers")
			}
			out = append(out, string(item.AsBuf()))
		}
		return out, nil
	default:
		return nil, ggerr.New(ggerr.Invalid, "topic_filter must be a buffer or list of buffers")
	}
}

func (d *Daemon) handleSubscribe(call *corebus.Call) error {
	topicFilter, ok := call.Params.Get("topic_filter")
	if !ok {
		return call.RespondError(ggerr.Invalid, "missing required key \"topic_filter\"")
	}
	filters, err := topicFiltersFromParams(topicFilter)
	if err != nil {
		return call.RespondError(ggerr.KindOf(err), err.Error())
	}

	qos := byte(0)
	if qv, ok := call.Params.Get("qos"); ok {
		if qv.Kind() != ggobject.KindInt64 {
			return call.RespondError(ggerr.Invalid, "qos must be an integer")
		}
		q := qv.AsInt64()
		if q < 0 || q > 2 {
			return call.RespondError(ggerr.Invalid, "qos must be in [0, 2]")
		}
		qos = byte(q)
	}

	h := call.Handle()
	if err := d.disp.Register(filters, h, qos); err != nil {
		return call.RespondError(ggerr.KindOf(err), err.Error())
	}

	for _, f := range filters {
		if err := d.transport.Subscribe(f, qos); err != nil {
			d.disp.Unregister(h, nil)
			return call.RespondError(ggerr.KindOf(err), err.Error())
		}
	}

	return call.SubAccept(func() {
		d.disp.Unregister(h, d.transport)
	})
}

func (d *Daemon) handleConnectionStatus(call *corebus.Call) error {
	h := call.Handle()
	if err := d.disp.StatusRegister(h); err != nil {
		return call.RespondError(ggerr.KindOf(err), err.Error())
	}

	if err := call.SubAccept(func() {
		d.disp.StatusUnregister(h)
	}); err != nil {
		return err
	}

	// Deliver the current state immediately, then rely on SetState
	// broadcasts for every subsequent transition (spec.md §8 scenario 6).
	current := d.disp.CurrentState()
	return call.SubRespond(ggobject.Bool(current == mqttdispatch.StateConnected))
}
