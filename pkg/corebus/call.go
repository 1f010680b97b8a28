package corebus

import (
	"sync/atomic"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/corebus/wire"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggobject"
)

// Call is handed to a Handler for exactly one Call or Notify frame. Its
// embedded Handle stays valid after the handler returns when the method
// is a subscription and SubAccept was called: SubRespond/SubClose can
// then be invoked later from any goroutine, not just the handler's own
// (spec.md §4.3, mirroring the source's free-function
// `ggl_sub_respond(uint32_t handle, ...)` signature).
type Call struct {
	srv    *Server
	conn   *serverConn
	handle Handle

	isNotify bool
	streamed bool

	responded atomic.Bool

	// Method is the dispatched method name.
	Method string
	// Params is the decoded request payload, valid only for the
	// duration of the handler call (it is arena-backed).
	Params ggobject.Value
	// Ctx is the MethodDescriptor's opaque Ctx value, passed through
	// unexamined.
	Ctx any
}

// Handle returns the Call's process-wide handle. Subscription handlers
// that intend to push messages from a different goroutine must capture
// this before returning from SubAccept.
func (c *Call) Handle() Handle { return c.handle }

// Respond completes a unary Call with a successful result. It is a
// programming error to call Respond on a Notify (no reply is expected)
// or more than once; both cases return ggerr.Invalid without touching
// the wire.
func (c *Call) Respond(v ggobject.Value) error {
	if c.isNotify {
		return ggerr.New(ggerr.Invalid, "cannot respond to a notify")
	}
	if !c.responded.CompareAndSwap(false, true) {
		return ggerr.New(ggerr.Invalid, "call already responded to")
	}
	defer c.release()

	payload, err := ggobject.Encode(v)
	if err != nil {
		return err
	}
	return c.conn.writeFrame(wire.Frame{Type: wire.Response, Payload: payload})
}

// RespondError completes a unary Call with a failure. Only kind goes on
// the wire; format and args are not sent. On a Notify it writes nothing
// and returns nil; on a call that has already responded it returns
// ggerr.Invalid without touching the wire.
func (c *Call) RespondError(kind ggerr.Kind, format string, args ...any) error {
	if c.isNotify {
		return nil
	}
	if !c.responded.CompareAndSwap(false, true) {
		return ggerr.New(ggerr.Invalid, "call already responded to")
	}
	defer c.release()

	_ = format
	_ = args
	return c.conn.writeFrame(wire.Frame{Type: wire.ErrorResponse, ErrorKind: kind})
}

// SubAccept upgrades a subscription-method call into a live stream: it
// allocates a connection-scoped stream id, marks the Call's handle as a
// stream (so a subsequent disconnect fires onClose), and acknowledges
// the subscription to the client with an initial Response frame.
// onClose runs at most once, whenever the subscription ends — via
// SubClose, via peer disconnect, or never if the subscription outlives
// the process.
func (c *Call) SubAccept(onClose func()) error {
	if c.isNotify {
		return ggerr.New(ggerr.Invalid, "notify cannot become a subscription")
	}
	if !c.responded.CompareAndSwap(false, true) {
		return ggerr.New(ggerr.Invalid, "call already responded to")
	}

	streamID := c.conn.allocStreamID()
	c.srv.markStream(c.handle, streamID, onClose)
	c.streamed = true

	return c.conn.writeFrame(wire.Frame{Type: wire.Response, StreamID: streamID})
}

// SubRespond pushes one message on the subscription this Call accepted.
// Equivalent to c.srv.SubRespond(c.Handle(), v); provided so handler code
// that stays on the accepting goroutine doesn't need to hold the Server
// reference itself.
func (c *Call) SubRespond(v ggobject.Value) error {
	return c.srv.SubRespond(c.handle, v)
}

// SubClose ends the subscription this Call accepted.
func (c *Call) SubClose() error {
	return c.srv.SubClose(c.handle)
}

// release reclaims a unary (non-streaming) call's handle immediately
// after it responds; streaming calls keep their handle alive until
// SubClose or disconnect.
func (c *Call) release() {
	if c.streamed {
		return
	}
	if _, ok := c.srv.releaseHandle(c.handle); ok {
		c.conn.disown(c.handle)
	}
}
