package topshim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/models"
	"golang.org/x/time/rate"
)

// Observer receives every call issued through a Client, after it completes.
// Observers run synchronously on the calling goroutine.
type Observer func(models.Call)

// Client is the adapter and GATT client handed to test sequences.
// Calls are issued one at a time in the order they are made.
type Client struct {
	t         Transport
	limiter   *rate.Limiter
	timeout   time.Duration
	observers []Observer
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit paces calls to at most perSec per second with the given burst.
// A non-positive perSec disables pacing.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *Client) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithCallTimeout bounds every call. Zero means no per-call bound.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithObserver adds an observer. May be given more than once.
func WithObserver(obs Observer) Option {
	return func(c *Client) {
		if obs != nil {
			c.observers = append(c.observers, obs)
		}
	}
}

// NewClient wraps a transport.
func NewClient(t Transport, opts ...Option) *Client {
	c := &Client{t: t}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Close closes the underlying transport.
func (c *Client) Close() error { return c.t.Close() }

func (c *Client) invoke(ctx context.Context, call string) (uint64, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("%s: rate limit: %w", call, err)
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	v, err := c.t.Invoke(ctx, call)
	rec := models.Call{Name: call, At: start, Duration: time.Since(start)}
	if err != nil {
		rec.Error = err.Error()
	}
	for _, obs := range c.observers {
		obs(rec)
	}

	if err != nil {
		slog.Debug("topshim: call failed", "call", call, "duration", rec.Duration, "err", err)
		return 0, fmt.Errorf("%s: %w", call, err)
	}
	slog.Debug("topshim: call", "call", call, "duration", rec.Duration)
	return v, nil
}

func (c *Client) do(ctx context.Context, call string) error {
	_, err := c.invoke(ctx, call)
	return err
}

func (c *Client) ClearEventMask(ctx context.Context) error {
	return c.do(ctx, CallClearEventMask)
}

func (c *Client) ClearEventFilter(ctx context.Context) error {
	return c.do(ctx, CallClearEventFilter)
}

func (c *Client) ClearFilterAcceptList(ctx context.Context) error {
	return c.do(ctx, CallClearFilterAcceptList)
}

func (c *Client) DisconnectAllACLs(ctx context.Context) error {
	return c.do(ctx, CallDisconnectAllACLs)
}

func (c *Client) LeRand(ctx context.Context) (uint64, error) {
	return c.invoke(ctx, CallLeRand)
}

func (c *Client) SetDefaultEventMask(ctx context.Context) error {
	return c.do(ctx, CallSetDefaultEventMask)
}

func (c *Client) SetEventFilterInquiryResultAllDevices(ctx context.Context) error {
	return c.do(ctx, CallSetEventFilterInquiryResultAllDevices)
}

func (c *Client) SetEventFilterConnectionSetupAllDevices(ctx context.Context) error {
	return c.do(ctx, CallSetEventFilterConnectionSetupAllDevices)
}

func (c *Client) AllowWakeByHID(ctx context.Context) error {
	return c.do(ctx, CallAllowWakeByHID)
}

func (c *Client) RestoreFilterAcceptList(ctx context.Context) error {
	return c.do(ctx, CallRestoreFilterAcceptList)
}

func (c *Client) UnregisterAdvertiser(ctx context.Context) error {
	return c.do(ctx, CallUnregisterAdvertiser)
}

func (c *Client) StopScan(ctx context.Context) error {
	return c.do(ctx, CallStopScan)
}

var (
	_ Adapter = (*Client)(nil)
	_ Gatt    = (*Client)(nil)
)
