package ggconfigd

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/corebus"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggobject"
)

// Daemon wires a Store into a corebus Interface implementing gg_config's
// read/write/subscribe methods (spec.md §6).
type Daemon struct {
	store *Store
	log   *logrus.Entry
	srv   *corebus.Server

	watchersMu sync.Mutex
	watchers   map[corebus.Handle][]string
}

// NewDaemon builds the gg_config daemon over store.
func NewDaemon(store *Store, log *logrus.Entry) *Daemon {
	return &Daemon{store: store, log: log, watchers: make(map[corebus.Handle][]string)}
}

// BindServer attaches the corebus.Server this daemon's interface was
// registered on, needed so write handlers can push subscribe-stream
// updates via SubRespond. Must be called once, after the Server is
// constructed from Interface().
func (d *Daemon) BindServer(srv *corebus.Server) { d.srv = srv }

// Interface returns the registered corebus.Interface for "gg_config".
func (d *Daemon) Interface() *corebus.Interface {
	return corebus.NewInterface("gg_config",
		corebus.MethodDescriptor{Name: "read", Handler: d.handleRead},
		corebus.MethodDescriptor{Name: "write", Handler: d.handleWrite},
		corebus.MethodDescriptor{Name: "subscribe", IsSubscription: true, Handler: d.handleSubscribe},
	)
}

func keyPathFromValue(v ggobject.Value) ([]string, error) {
	items := v.AsList()
	if items == nil {
		return nil, ggerr.New(ggerr.Invalid, "key_path must be a list of buffers")
	}
	path := make([]string, 0, len(items))
	for _, item := range items {
		if item.Kind() != ggobject.KindBuf {
			return nil, ggerr.New(ggerr.Invalid, "key_path elements must be buffers")
		}
		path = append(path, string(item.AsBuf()))
	}
	return path, nil
}

func (d *Daemon) handleRead(call *corebus.Call) error {
	var keyPath ggobject.Value
	if err := ggobject.MapValidate(call.Params, []ggobject.FieldSchema{
		{Key: "key_path", Required: true, Kind: ggobject.KindList, Out: &keyPath},
	}); err != nil {
		return call.RespondError(ggerr.KindOf(err), err.Error())
	}

	path, err := keyPathFromValue(keyPath)
	if err != nil {
		return call.RespondError(ggerr.KindOf(err), err.Error())
	}

	arena := ggobject.NewArena(16*1024, 1024, 256)
	v, err := d.store.Read(path, arena)
	if err != nil {
		return call.RespondError(ggerr.KindOf(err), err.Error())
	}
	return call.Respond(v)
}

func (d *Daemon) handleWrite(call *corebus.Call) error {
	var keyPath, value, timestamp ggobject.Value
	if err := ggobject.MapValidate(call.Params, []ggobject.FieldSchema{
		{Key: "key_path", Required: true, Kind: ggobject.KindList, Out: &keyPath},
		{Key: "value", Required: true, AnyKind: true, Out: &value},
		{Key: "timestamp", Required: true, Kind: ggobject.KindInt64, Out: &timestamp},
	}); err != nil {
		return call.RespondError(ggerr.KindOf(err), err.Error())
	}

	path, err := keyPathFromValue(keyPath)
	if err != nil {
		return call.RespondError(ggerr.KindOf(err), err.Error())
	}
	ts := timestamp.AsInt64()
	if ts < 0 {
		return call.RespondError(ggerr.Invalid, "timestamp must be >= 0")
	}

	if err := d.store.Write(path, value, ts); err != nil {
		return call.RespondError(ggerr.KindOf(err), err.Error())
	}

	d.notifyWatchers(path, value)
	return call.Respond(ggobject.Null())
}

func (d *Daemon) handleSubscribe(call *corebus.Call) error {
	var keyPath ggobject.Value
	if err := ggobject.MapValidate(call.Params, []ggobject.FieldSchema{
		{Key: "key_path", Required: true, Kind: ggobject.KindList, Out: &keyPath},
	}); err != nil {
		return call.RespondError(ggerr.KindOf(err), err.Error())
	}
	path, err := keyPathFromValue(keyPath)
	if err != nil {
		return call.RespondError(ggerr.KindOf(err), err.Error())
	}

	h := call.Handle()
	if err := call.SubAccept(func() {
		d.watchersMu.Lock()
		delete(d.watchers, h)
		d.watchersMu.Unlock()
	}); err != nil {
		return err
	}

	d.watchersMu.Lock()
	d.watchers[h] = path
	d.watchersMu.Unlock()
	return nil
}

// notifyWatchers pushes the new value to every subscriber whose key
// path is writtenPath or a prefix of it (writtenPath is at or beneath
// the subscribed path).
func (d *Daemon) notifyWatchers(writtenPath []string, value ggobject.Value) {
	key, err := joinKeyPath(writtenPath)
	if err != nil {
		return
	}

	d.watchersMu.Lock()
	targets := make([]corebus.Handle, 0, len(d.watchers))
	for h, p := range d.watchers {
		if IsUnderPath(key, p) {
			targets = append(targets, h)
		}
	}
	d.watchersMu.Unlock()

	if d.srv == nil {
		return
	}
	for _, h := range targets {
		if err := d.srv.SubRespond(h, value); err != nil {
			d.log.WithError(err).WithField("handle", h).Debug("config watcher push failed")
		}
	}
}
