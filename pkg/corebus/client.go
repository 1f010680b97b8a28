package corebus

import (
	"net"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/corebus/wire"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggobject"
)

// ClientArenaCap sizes the arena a client call allocates to decode its
// response. A single reply rarely approaches wire.MaxFrameLen, but the
// ceiling keeps a pathological server from forcing unbounded allocation.
const ClientArenaCap = 16 * 1024

func dial(socketDir, interfaceName string) (net.Conn, error) {
	path := socketPath(socketDir, interfaceName)
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, ggerr.Wrap(ggerr.NoConn, err)
	}
	return conn, nil
}

// Notify sends a fire-and-forget message to method on interfaceName and
// returns as soon as the frame is written; it opens and closes its own
// connection (spec.md §4.3's "the reference client dials a fresh
// connection per operation").
func Notify(socketDir, interfaceName, method string, params ggobject.Value) error {
	conn, err := dial(socketDir, interfaceName)
	if err != nil {
		return err
	}
	defer conn.Close()

	payload, err := ggobject.Encode(params)
	if err != nil {
		return err
	}
	return wire.WriteFrame(conn, wire.Frame{Type: wire.Notify, Method: []byte(method), Payload: payload})
}

// Call sends a request to method on interfaceName and blocks for its
// single Response or ErrorResponse frame.
func Call(socketDir, interfaceName, method string, params ggobject.Value) (ggobject.Value, error) {
	conn, err := dial(socketDir, interfaceName)
	if err != nil {
		return ggobject.Value{}, err
	}
	defer conn.Close()

	payload, err := ggobject.Encode(params)
	if err != nil {
		return ggobject.Value{}, err
	}
	if err := wire.WriteFrame(conn, wire.Frame{Type: wire.Call, Method: []byte(method), Payload: payload}); err != nil {
		return ggobject.Value{}, err
	}

	f, err := wire.ReadFrame(conn)
	if err != nil {
		return ggobject.Value{}, err
	}
	if f.Type == wire.ErrorResponse {
		cause := ggerr.New(f.ErrorKind, "call to %s.%s failed", interfaceName, method)
		return ggobject.Value{}, ggerr.Wrap(ggerr.Remote, cause)
	}

	arena := ggobject.NewArena(ClientArenaCap, 1024, 256)
	return ggobject.Decode(f.Payload, arena)
}

// Subscription is a live client-side stream opened by Subscribe.
type Subscription struct {
	conn net.Conn
	done chan struct{}
}

// Close ends the subscription by closing its connection; the server
// observes the disconnect and fires its own onClose bookkeeping.
func (s *Subscription) Close() error {
	err := s.conn.Close()
	<-s.done
	return err
}

// Subscribe opens method as a subscription on interfaceName and delivers
// every StreamMessage to onMessage on a dedicated goroutine until the
// server sends StreamClose, the connection drops, or the caller calls
// Close. onMessage errors are not fatal to the stream; only connection
// errors end it.
func Subscribe(socketDir, interfaceName, method string, params ggobject.Value, onMessage func(ggobject.Value) error) (*Subscription, error) {
	conn, err := dial(socketDir, interfaceName)
	if err != nil {
		return nil, err
	}

	payload, err := ggobject.Encode(params)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := wire.WriteFrame(conn, wire.Frame{Type: wire.Call, Method: []byte(method), Payload: payload}); err != nil {
		conn.Close()
		return nil, err
	}

	ack, err := wire.ReadFrame(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if ack.Type == wire.ErrorResponse {
		conn.Close()
		cause := ggerr.New(ack.ErrorKind, "subscribe to %s.%s failed", interfaceName, method)
		return nil, ggerr.Wrap(ggerr.Remote, cause)
	}

	sub := &Subscription{conn: conn, done: make(chan struct{})}
	go sub.readLoop(onMessage)
	return sub, nil
}

func (s *Subscription) readLoop(onMessage func(ggobject.Value) error) {
	defer close(s.done)
	arena := ggobject.NewArena(ClientArenaCap, 1024, 256)
	for {
		f, err := wire.ReadFrame(s.conn)
		if err != nil {
			return
		}
		if f.Type == wire.StreamClose {
			return
		}
		if f.Type != wire.StreamMessage {
			continue
		}
		arena.Reset()
		v, err := ggobject.Decode(f.Payload, arena)
		if err != nil {
			continue
		}
		_ = onMessage(v)
	}
}
