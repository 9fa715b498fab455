// Package zeroconf advertises the harness and topshim facades over
// mDNS/DNS-SD and discovers DUTs on the bench network.
package zeroconf

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
)

// Service types.
const (
	ServiceHarness = "_powertest._tcp"
	ServiceDUT     = "_topshim._tcp"
	domain         = "local."
)

// Service manages one mDNS registration.
type Service struct {
	name    string
	service string
	port    int
	txt     []string
	server  *zeroconf.Server
}

// New creates a registration of instance name for service on port.
func New(name, service string, port int, txt ...string) *Service {
	return &Service{
		name:    name,
		service: service,
		port:    port,
		txt:     txt,
	}
}

// Start registers the service and blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	server, err := zeroconf.Register(s.name, s.service, domain, s.port, s.txt, nil)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	s.server = server
	slog.Info("zeroconf: registered mDNS service",
		"name", s.name,
		"service", s.service,
		"port", s.port,
		"txt", s.txt,
	)

	<-ctx.Done()

	server.Shutdown()
	slog.Info("zeroconf: mDNS service unregistered", "service", s.service)
	return nil
}

// Entry is a discovered service instance.
type Entry struct {
	Instance string
	Host     string
	Port     int
	Addrs    []net.IP
	Text     []string
}

// Target returns host:port using the first address, or the host name when
// no address was resolved.
func (e Entry) Target() string {
	host := e.Host
	if len(e.Addrs) > 0 {
		host = e.Addrs[0].String()
	}
	return net.JoinHostPort(host, strconv.Itoa(e.Port))
}

// Discover browses for service until ctx is done or wait elapses.
func Discover(ctx context.Context, service string, wait time.Duration) ([]Entry, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("zeroconf resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	found := make(chan *zeroconf.ServiceEntry, 8)
	if err := resolver.Browse(ctx, service, domain, found); err != nil {
		return nil, fmt.Errorf("zeroconf browse: %w", err)
	}

	var out []Entry
	for {
		select {
		case <-ctx.Done():
			return out, nil
		case se, ok := <-found:
			if !ok {
				return out, nil
			}
			e := Entry{
				Instance: se.Instance,
				Host:     se.HostName,
				Port:     se.Port,
				Text:     se.Text,
			}
			e.Addrs = append(e.Addrs, se.AddrIPv4...)
			e.Addrs = append(e.Addrs, se.AddrIPv6...)
			slog.Debug("zeroconf: discovered", "instance", e.Instance, "target", e.Target())
			out = append(out, e)
		}
	}
}

// FirstDUT returns the target of the first topshim facade found.
func FirstDUT(ctx context.Context, wait time.Duration) (string, error) {
	entries, err := Discover(ctx, ServiceDUT, wait)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("zeroconf: no %s service found within %s", ServiceDUT, wait)
	}
	return entries[0].Target(), nil
}
