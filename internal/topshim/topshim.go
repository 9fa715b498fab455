// Package topshim provides clients for the adapter and GATT control
// interfaces exposed by the Bluetooth stack on a device under test (DUT).
//
// Every transport (gRPC facade, Floss D-Bus, in-memory fake) implements
// Transport, a single Invoke entry point keyed by call name. Client layers
// pacing, per-call timeouts and call observation on top of a Transport and
// satisfies both Adapter and Gatt.
package topshim

import (
	"context"
	"errors"
)

// Call names, as they appear in transcripts, metrics and events.
const (
	CallClearEventMask                          = "clear_event_mask"
	CallClearEventFilter                        = "clear_event_filter"
	CallClearFilterAcceptList                   = "clear_filter_accept_list"
	CallDisconnectAllACLs                       = "disconnect_all_acls"
	CallLeRand                                  = "le_rand"
	CallSetDefaultEventMask                     = "set_default_event_mask"
	CallSetEventFilterInquiryResultAllDevices   = "set_event_filter_inquiry_result_all_devices"
	CallSetEventFilterConnectionSetupAllDevices = "set_event_filter_connection_setup_all_devices"
	CallAllowWakeByHID                          = "allow_wake_by_hid"
	CallRestoreFilterAcceptList                 = "restore_filter_accept_list"
	CallUnregisterAdvertiser                    = "unregister_advertiser"
	CallStopScan                                = "stop_scan"
)

// ErrUnknownCall is returned by transports for a call name they do not know.
var ErrUnknownCall = errors.New("topshim: unknown call")

// Adapter is the adapter control surface of the DUT.
type Adapter interface {
	ClearEventMask(ctx context.Context) error
	ClearEventFilter(ctx context.Context) error
	ClearFilterAcceptList(ctx context.Context) error
	DisconnectAllACLs(ctx context.Context) error
	// LeRand requests a random number from the controller. The value itself
	// carries no meaning to callers beyond proving the stack is responsive.
	LeRand(ctx context.Context) (uint64, error)
	SetDefaultEventMask(ctx context.Context) error
	SetEventFilterInquiryResultAllDevices(ctx context.Context) error
	SetEventFilterConnectionSetupAllDevices(ctx context.Context) error
	AllowWakeByHID(ctx context.Context) error
	RestoreFilterAcceptList(ctx context.Context) error
}

// Gatt is the GATT control surface of the DUT.
type Gatt interface {
	UnregisterAdvertiser(ctx context.Context) error
	StopScan(ctx context.Context) error
}

// Invoker issues one named call. The returned value is only meaningful for
// le_rand and is zero for every other call.
type Invoker interface {
	Invoke(ctx context.Context, call string) (uint64, error)
}

// Transport is an Invoker bound to a connection that must be closed.
type Transport interface {
	Invoker
	Close() error
}

type service int

const (
	adapterService service = iota
	gattService
)

// rpcMethod maps a call name onto the RPC/D-Bus method that carries it.
type rpcMethod struct {
	name    string
	service service
	method  string
	value   bool // reply carries a uint64
}

var calls = []rpcMethod{
	{CallClearEventMask, adapterService, "ClearEventMask", false},
	{CallClearEventFilter, adapterService, "ClearEventFilter", false},
	{CallClearFilterAcceptList, adapterService, "ClearFilterAcceptList", false},
	{CallDisconnectAllACLs, adapterService, "DisconnectAllAcls", false},
	{CallLeRand, adapterService, "LeRand", true},
	{CallSetDefaultEventMask, adapterService, "SetDefaultEventMask", false},
	{CallSetEventFilterInquiryResultAllDevices, adapterService, "SetEventFilterInquiryResultAllDevices", false},
	{CallSetEventFilterConnectionSetupAllDevices, adapterService, "SetEventFilterConnectionSetupAllDevices", false},
	{CallAllowWakeByHID, adapterService, "AllowWakeByHid", false},
	{CallRestoreFilterAcceptList, adapterService, "RestoreFilterAcceptList", false},
	{CallUnregisterAdvertiser, gattService, "UnregisterAdvertiser", false},
	{CallStopScan, gattService, "StopScan", false},
}

func lookup(name string) (rpcMethod, bool) {
	for _, c := range calls {
		if c.name == name {
			return c, true
		}
	}
	return rpcMethod{}, false
}

// Calls returns every call name known to the transports.
func Calls() []string {
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.name
	}
	return names
}
