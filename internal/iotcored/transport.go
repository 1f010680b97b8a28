// Package iotcored implements the aws_iot_mqtt well-known interface
// (spec.md §6): publish, subscribe (stream), and connection_status
// (stream), backed by an upstream eclipse/paho.mqtt.golang client and
// pkg/mqttdispatch's fan-out table. The Connect/Disconnect/Publish/
// Subscribe shape here follows the messenger interface sketched in
// hspaay-iotc.golang's MqttMessenger, filled in against paho's real API.
package iotcored

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/corebus"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggobject"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/mqttdispatch"
)

// Responder pushes a stream message to a live subscriber handle; bound
// to corebus.Server.SubRespond once the server owning this daemon's
// interface exists.
type Responder func(corebus.Handle, ggobject.Value) error

// Config carries the upstream broker connection parameters. TLS
// material handling (certificate provisioning, credential rotation) is
// explicitly out of scope per spec.md §1; Config has no TLS field, and
// NewTransport passes no TLS settings to the paho client.
type Config struct {
	BrokerURL string
	ClientID  string
	KeepAlive time.Duration
}

// Transport owns the paho client and feeds inbound messages and
// connection lifecycle transitions into a mqttdispatch.Dispatcher.
type Transport struct {
	client  mqtt.Client
	disp    *mqttdispatch.Dispatcher
	log     *logrus.Entry
	respond Responder
}

// SetResponder attaches the function used to push messages to
// subscriber handles. Must be called before Connect; Daemon does this
// with the bound corebus.Server's SubRespond.
func (t *Transport) SetResponder(r Responder) { t.respond = r }

func (t *Transport) subRespond(h corebus.Handle, v ggobject.Value) error {
	if t.respond == nil {
		return nil
	}
	return t.respond(h, v)
}

// NewTransport builds (but does not connect) a Transport.
func NewTransport(cfg Config, disp *mqttdispatch.Dispatcher, log *logrus.Entry) *Transport {
	t := &Transport{disp: disp, log: log}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetKeepAlive(cfg.KeepAlive).
		SetAutoReconnect(true).
		SetOnConnectHandler(t.onConnect).
		SetConnectionLostHandler(t.onConnectionLost).
		SetDefaultPublishHandler(t.onMessage)

	t.client = mqtt.NewClient(opts)
	return t
}

// Connect blocks until the initial connection succeeds or fails.
func (t *Transport) Connect() error {
	token := t.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return ggerr.Wrap(ggerr.NoConn, err)
	}
	return nil
}

// Disconnect gracefully disconnects from the broker, waiting up to
// quiesce for in-flight work to finish.
func (t *Transport) Disconnect(quiesce uint) {
	t.client.Disconnect(quiesce)
}

func (t *Transport) onConnect(mqtt.Client) {
	wasReconnect := t.disp.CurrentState() != mqttdispatch.StateInit
	t.disp.SetState(mqttdispatch.StateConnected, t.subRespond)
	if wasReconnect {
		t.disp.ReRegisterAll(t)
	}
}

func (t *Transport) onConnectionLost(_ mqtt.Client, err error) {
	t.log.WithError(err).Warn("lost connection to broker")
	t.disp.SetState(mqttdispatch.StateReconnecting, t.subRespond)
}

func (t *Transport) onMessage(_ mqtt.Client, msg mqtt.Message) {
	t.disp.Deliver(msg.Topic(), msg.Payload(), t.subRespond)
}

// Publish sends payload to topic at qos.
func (t *Transport) Publish(topic string, qos byte, payload []byte) error {
	token := t.client.Publish(topic, qos, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return ggerr.Wrap(ggerr.Remote, err)
	}
	return nil
}

// Subscribe implements mqttdispatch.Resubscriber by issuing an upstream
// MQTT SUBSCRIBE.
func (t *Transport) Subscribe(topicFilter string, qos byte) error {
	token := t.client.Subscribe(topicFilter, qos, nil)
	token.Wait()
	if err := token.Error(); err != nil {
		return ggerr.Wrap(ggerr.Remote, err)
	}
	return nil
}

// Unsubscribe implements mqttdispatch.Unsubscriber.
func (t *Transport) Unsubscribe(topicFilter string) error {
	token := t.client.Unsubscribe(topicFilter)
	token.Wait()
	if err := token.Error(); err != nil {
		return ggerr.Wrap(ggerr.Remote, err)
	}
	return nil
}
