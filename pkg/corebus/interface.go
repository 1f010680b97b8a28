// Package corebus implements the Core Bus Dispatcher (spec.md §4.3,
// component C3): interface registry, call/notify/subscribe semantics,
// handle allocation, and subscription lifetimes, built on top of
// pkg/corebus/wire's frames and pkg/ggobject's Value codec.
package corebus

import "github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggobject"

// Handler processes one Call or Notify frame dispatched to a method. It
// receives a *Call carrying the decoded params (Call.Params), through
// which it replies — synchronously via Respond/RespondError for a unary method,
// or by calling SubAccept and then SubRespond/SubClose (from this
// goroutine or any other) for a subscription method.
type Handler func(call *Call) error

// MethodDescriptor is spec.md's `{name, is_subscription, handler, ctx}`.
// The Ctx field is opaque user data threaded through to Handler via
// Call.Ctx; corebus never inspects it.
type MethodDescriptor struct {
	Name           string
	IsSubscription bool
	Handler        Handler
	Ctx            any
}

// Interface is a named registrar identified by a buffer in the source;
// here, by a plain string (e.g. "gg_config", "aws_iot_mqtt").
type Interface struct {
	Name    string
	methods map[string]MethodDescriptor
}

// NewInterface creates an interface with the given methods.
func NewInterface(name string, methods ...MethodDescriptor) *Interface {
	iface := &Interface{Name: name, methods: make(map[string]MethodDescriptor, len(methods))}
	for _, m := range methods {
		iface.methods[m.Name] = m
	}
	return iface
}

func (i *Interface) lookup(method string) (MethodDescriptor, bool) {
	m, ok := i.methods[method]
	return m, ok
}

// socketPath derives the well-known Unix socket path for an interface
// name, rooted at dir (GGL_SOCKET_DIR by convention, spec.md §6).
func socketPath(dir, interfaceName string) string {
	if dir == "" {
		dir = "/run/greengrass/ipc"
	}
	return dir + "/" + interfaceName + ".socket"
}

// Value is a convenience re-export so callers of this package rarely
// need to import ggobject directly for the common case.
type Value = ggobject.Value
