package topshim

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Floss D-Bus names.
const (
	FlossService       = "org.chromium.bluetooth"
	FlossAdapterIface  = "org.chromium.bluetooth.Bluetooth"
	FlossGattIface     = "org.chromium.bluetooth.BluetoothGatt"
	flossObjectPattern = "/org/chromium/bluetooth/hci%d/%s"
)

// AdapterPath returns the Floss adapter object path for HCI index hci.
func AdapterPath(hci int) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf(flossObjectPattern, hci, "adapter"))
}

// GattPath returns the Floss GATT object path for HCI index hci.
func GattPath(hci int) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf(flossObjectPattern, hci, "gatt"))
}

// DBusTransport issues calls as method calls on the Floss daemon over the
// system bus. It is used when the harness runs on the DUT itself.
type DBusTransport struct {
	conn    *dbus.Conn
	adapter dbus.BusObject
	gatt    dbus.BusObject
	owned   bool
}

// NewDBus connects to the system bus and targets adapter hci.
func NewDBus(hci int) (*DBusTransport, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("topshim: connect system bus: %w", err)
	}
	t := NewDBusConn(conn, hci)
	t.owned = true
	return t, nil
}

// NewDBusConn uses an existing bus connection; Close leaves it open.
func NewDBusConn(conn *dbus.Conn, hci int) *DBusTransport {
	return &DBusTransport{
		conn:    conn,
		adapter: conn.Object(FlossService, AdapterPath(hci)),
		gatt:    conn.Object(FlossService, GattPath(hci)),
	}
}

func (t *DBusTransport) Invoke(ctx context.Context, call string) (uint64, error) {
	rm, ok := lookup(call)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCall, call)
	}
	obj, iface := t.adapter, FlossAdapterIface
	if rm.service == gattService {
		obj, iface = t.gatt, FlossGattIface
	}

	c := obj.CallWithContext(ctx, iface+"."+rm.method, 0)
	if c.Err != nil {
		return 0, c.Err
	}
	if !rm.value {
		return 0, nil
	}
	var v uint64
	if err := c.Store(&v); err != nil {
		return 0, fmt.Errorf("decode %s reply: %w", rm.method, err)
	}
	return v, nil
}

func (t *DBusTransport) Close() error {
	if t.owned {
		return t.conn.Close()
	}
	return nil
}

var _ Transport = (*DBusTransport)(nil)
