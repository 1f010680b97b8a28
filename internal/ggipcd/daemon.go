// Package ggipcd implements the one aws.greengrass.ipc.private method
// spec.md §6 names: GetSystemConfig. It exists to prove a daemon-to-
// daemon call path through corebus, not to specify the private IPC
// surface (explicitly out of scope per spec.md §1).
package ggipcd

import (
	"github.com/sirupsen/logrus"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/corebus"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggobject"
)

// Daemon relays GetSystemConfig calls to the gg_config daemon's read
// method over a fresh corebus connection per request.
type Daemon struct {
	socketDir string
	log       *logrus.Entry
}

// NewDaemon builds the aws.greengrass.ipc.private daemon. socketDir is
// the directory both this daemon's own socket and gg_config's socket
// live under.
func NewDaemon(socketDir string, log *logrus.Entry) *Daemon {
	return &Daemon{socketDir: socketDir, log: log}
}

// Interface returns the registered corebus.Interface for
// "aws.greengrass.ipc.private".
func (d *Daemon) Interface() *corebus.Interface {
	return corebus.NewInterface("aws.greengrass.ipc.private",
		corebus.MethodDescriptor{Name: "GetSystemConfig", Handler: d.handleGetSystemConfig},
	)
}

func (d *Daemon) handleGetSystemConfig(call *corebus.Call) error {
	var key ggobject.Value
	if err := ggobject.MapValidate(call.Params, []ggobject.FieldSchema{
		{Key: "key", Required: true, Kind: ggobject.KindBuf, Out: &key},
	}); err != nil {
		return call.RespondError(ggerr.KindOf(err), err.Error())
	}

	params := ggobject.MustMap(ggobject.Pair("key_path", ggobject.List(key)))
	result, err := corebus.Call(d.socketDir, "gg_config", "read", params)
	if err != nil {
		d.log.WithError(err).WithField("key", string(key.AsBuf())).Debug("GetSystemConfig relay to gg_config failed")
		return call.RespondError(ggerr.RelayKind(err), err.Error())
	}
	return call.Respond(result)
}
