//go:build linux

// Package dbusapi exposes the same Manager/Watcher/System operations the
// Unix-socket transport does, as a session-bus D-Bus object, for desktop
// integrations that expect a bus name rather than a socket path.
package dbusapi

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"go.uber.org/zap"

	"github.com/clipcatd/clipcat/internal/rpc"
	"github.com/clipcatd/clipcat/internal/types"
)

const (
	busName       = "io.clipcatd.Clipcat"
	objectPath    = dbus.ObjectPath("/io/clipcatd/Clipcat")
	interfaceName = "io.clipcatd.Clipcat1"
)

// Server owns the session-bus connection and exports clipcatObject on it.
type Server struct {
	logger *zap.Logger
	conn   *dbus.Conn
	obj    *clipcatObject
}

// clipcatObject's exported methods become the D-Bus interface's methods.
// Every method returns (result..., *dbus.Error); nil error means success.
type clipcatObject struct {
	service *rpc.Service
}

func (o *clipcatObject) Insert(kind int32, mimeEssence string, text string, imageBytes []byte) (uint64, *dbus.Error) {
	content, derr := contentFromWire(mimeEssence, text, imageBytes)
	if derr != nil {
		return 0, derr
	}
	entry, err := o.service.Insert(types.ClipboardKind(kind), content)
	if err != nil {
		return 0, dbusError(err)
	}
	return entry.ID, nil
}

func (o *clipcatObject) Get(id uint64) (uint64, int32, string, string, []byte, int64, *dbus.Error) {
	entry, err := o.service.Get(id)
	if err != nil {
		return 0, 0, "", "", nil, 0, dbusError(err)
	}
	return entryToWire(entry)
}

func (o *clipcatObject) GetCurrentClip(kind int32) (uint64, int32, string, string, []byte, int64, *dbus.Error) {
	entry, err := o.service.GetCurrentClip(types.ClipboardKind(kind))
	if err != nil {
		return 0, 0, "", "", nil, 0, dbusError(err)
	}
	return entryToWire(entry)
}

func (o *clipcatObject) Mark(id uint64, kind int32) *dbus.Error {
	_, err := o.service.Mark(context.Background(), id, types.ClipboardKind(kind))
	if err != nil {
		return dbusError(err)
	}
	return nil
}

func (o *clipcatObject) Remove(id uint64) (bool, *dbus.Error) {
	return o.service.Remove(id), nil
}

func (o *clipcatObject) Clear() *dbus.Error {
	o.service.Clear()
	return nil
}

func (o *clipcatObject) Length() (int32, *dbus.Error) {
	return int32(o.service.Length()), nil
}

func (o *clipcatObject) List(previewLength int32) ([]dbus.Variant, *dbus.Error) {
	metas := o.service.List(int(previewLength))
	out := make([]dbus.Variant, len(metas))
	for i, m := range metas {
		out[i] = dbus.MakeVariant(m)
	}
	return out, nil
}

func (o *clipcatObject) WatcherEnable() *dbus.Error {
	o.service.WatcherEnable()
	return nil
}

func (o *clipcatObject) WatcherDisable() *dbus.Error {
	o.service.WatcherDisable()
	return nil
}

func (o *clipcatObject) WatcherToggle() (int32, *dbus.Error) {
	return int32(o.service.WatcherToggle()), nil
}

func (o *clipcatObject) WatcherGetState() (int32, *dbus.Error) {
	return int32(o.service.WatcherState()), nil
}

func (o *clipcatObject) GetVersion() (int32, int32, int32, *dbus.Error) {
	v := o.service.GetVersion()
	return int32(v.Major), int32(v.Minor), int32(v.Patch), nil
}

func contentFromWire(mimeEssence, text string, imageBytes []byte) (types.Content, *dbus.Error) {
	if mimeEssence == "image/png" {
		img, err := types.DecodePNG(imageBytes)
		if err != nil {
			return types.Content{}, dbusError(err)
		}
		return types.Content{Kind: types.ContentImage, Image: img}, nil
	}
	return types.Content{Kind: types.ContentText, Text: text}, nil
}

func entryToWire(e types.ClipEntry) (uint64, int32, string, string, []byte, int64, *dbus.Error) {
	mime := e.Content.MimeEssence()
	if e.Content.Kind == types.ContentImage {
		data, err := types.EncodePNG(e.Content.Image)
		if err != nil {
			return 0, 0, "", "", nil, 0, dbusError(err)
		}
		return e.ID, int32(e.ClipboardKind), mime, "", data, e.Timestamp.UnixNano(), nil
	}
	return e.ID, int32(e.ClipboardKind), mime, e.Content.Text, nil, e.Timestamp.UnixNano(), nil
}

func dbusError(err error) *dbus.Error {
	return dbus.NewError("io.clipcatd.Clipcat1.Error", []interface{}{err.Error()})
}

// New connects to the session bus, exports the service, and requests
// busName. The object remains reachable until ctx is cancelled.
func New(logger *zap.Logger, service *rpc.Service) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("dbusapi: connect session bus: %w", err)
	}

	obj := &clipcatObject{service: service}
	if err := conn.Export(obj, objectPath, interfaceName); err != nil {
		conn.Close()
		return nil, fmt.Errorf("dbusapi: export object: %w", err)
	}

	node := &introspect.Node{
		Name: string(objectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: interfaceName,
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), objectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("dbusapi: export introspection: %w", err)
	}

	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("dbusapi: request name %s: %w", busName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("dbusapi: bus name %s already owned", busName)
	}

	return &Server{logger: logger, conn: conn, obj: obj}, nil
}

// Run blocks until ctx is cancelled, then releases the bus name and closes
// the connection.
func (s *Server) Run(ctx context.Context) error {
	<-ctx.Done()
	_, _ = s.conn.ReleaseName(busName)
	return s.conn.Close()
}
