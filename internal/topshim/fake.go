package topshim

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// ErrInjected is the default failure returned for calls configured with FailOn.
var ErrInjected = errors.New("topshim: injected failure")

// Fake is a thread-safe in-memory DUT for tests and local development.
// It records calls in order, including calls configured to fail. By default
// every call is kept; SetLimit bounds the record for long-lived fakes.
type Fake struct {
	mu     sync.Mutex
	calls  []string
	limit  int
	total  int
	fail   map[string]error
	delay  time.Duration
	closed bool
}

// NewFake creates a fake DUT that accepts every call.
func NewFake() *Fake {
	return &Fake{fail: make(map[string]error)}
}

// FailOn makes every subsequent invocation of call return err.
// A nil err means ErrInjected.
func (f *Fake) FailOn(call string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	f.fail[call] = err
}

// ClearFailures removes all configured failures.
func (f *Fake) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = make(map[string]error)
}

// SetDelay simulates remote latency on every call.
func (f *Fake) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// SetLimit keeps only the n most recent calls. n <= 0 keeps every call.
func (f *Fake) SetLimit(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 0 {
		n = 0
	}
	f.limit = n
	f.trim()
}

// trim drops the oldest calls beyond the limit. It lets the record grow to
// twice the limit before compacting so Invoke does not copy on every call.
func (f *Fake) trim() {
	if f.limit == 0 || len(f.calls) <= 2*f.limit {
		return
	}
	n := copy(f.calls, f.calls[len(f.calls)-f.limit:])
	clear(f.calls[n:])
	f.calls = f.calls[:n]
}

// Calls returns a copy of the recorded call names, oldest first.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.calls
	if f.limit > 0 && len(calls) > f.limit {
		calls = calls[len(calls)-f.limit:]
	}
	out := make([]string, len(calls))
	copy(out, calls)
	return out
}

// Total returns how many calls were made since creation or the last Reset,
// including those no longer retained.
func (f *Fake) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// Reset forgets recorded calls.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	f.total = 0
}

// Closed reports whether Close has been called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) Invoke(ctx context.Context, call string) (uint64, error) {
	if _, ok := lookup(call); !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCall, call)
	}

	f.mu.Lock()
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.total++
	f.trim()
	if err, ok := f.fail[call]; ok {
		return 0, err
	}
	if call == CallLeRand {
		return rand.Uint64(), nil
	}
	return 0, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

var _ Transport = (*Fake)(nil)
