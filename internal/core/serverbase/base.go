// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Base is embedded by servers. State reads are lock-free; the error and
// lifecycle context are guarded by mu.
type Base struct {
	state atomic.Int32

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	lastErr error

	wg      sync.WaitGroup
	started chan struct{}
	errCh   chan error
}

// NewBase returns a Base in StateCreated.
func NewBase() *Base {
	b := &Base{
		started: make(chan struct{}),
		errCh:   make(chan error, 1),
	}
	b.state.Store(int32(StateCreated))
	return b
}

// State returns the current state.
func (b *Base) State() State { return State(b.state.Load()) }

// IsRunning reports whether the state is StateRunning.
func (b *Base) IsRunning() bool { return b.State() == StateRunning }

// Err delivers asynchronous failures. It is closed by MarkStopped.
func (b *Base) Err() <-chan error { return b.errCh }

// Ready is closed once the server is running.
func (b *Base) Ready() <-chan struct{} { return b.started }

// LastError returns the cause of StateFailed.
func (b *Base) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Context is canceled when the server stops or fails. It is nil before Begin.
func (b *Base) Context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

// Begin moves Created to Starting. A canceled ctx fails the server instead.
func (b *Base) Begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("context canceled before start: %w", err)
		b.Fail(err)
		return err
	}
	if !b.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start server in state %s", b.State())
	}
	b.mu.Lock()
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.mu.Unlock()
	return nil
}

// MarkRunning moves Starting to Running and releases Ready waiters.
func (b *Base) MarkRunning() {
	if b.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(b.started)
	}
}

// Fail records err, moves to StateFailed and cancels the lifecycle context.
func (b *Base) Fail(err error) {
	b.mu.Lock()
	b.lastErr = err
	cancel := b.cancel
	b.mu.Unlock()

	b.state.Store(int32(StateFailed))
	if cancel != nil {
		cancel()
	}
	b.Report(err)
}

// BeginStop moves a starting or running server to Stopping and cancels its
// context. It returns false when there is nothing to stop; a server that
// never started goes straight to Stopped.
func (b *Base) BeginStop() bool {
	for {
		cur := b.State()
		switch cur {
		case StateCreated:
			if b.state.CompareAndSwap(int32(cur), int32(StateStopped)) {
				return false
			}
		case StateStarting, StateRunning:
			if b.state.CompareAndSwap(int32(cur), int32(StateStopping)) {
				b.mu.Lock()
				cancel := b.cancel
				b.mu.Unlock()
				if cancel != nil {
					cancel()
				}
				return true
			}
		default:
			return false
		}
	}
}

// MarkStopped waits for tracked goroutines, then moves to Stopped and
// closes Err.
func (b *Base) MarkStopped() {
	b.wg.Wait()
	b.state.Store(int32(StateStopped))
	close(b.errCh)
}

// Go runs f on a goroutine tracked by Wait.
func (b *Base) Go(f func()) { b.wg.Go(f) }

// Wait blocks until every goroutine started with Go has returned.
func (b *Base) Wait() { b.wg.Wait() }

// Report delivers err on Err without blocking; it is dropped when a
// previous error is still pending.
func (b *Base) Report(err error) {
	if b.State() == StateStopped {
		return
	}
	select {
	case b.errCh <- err:
	default:
	}
}

// WaitReady blocks until the server runs or ctx ends.
func (b *Base) WaitReady(ctx context.Context) error {
	select {
	case <-b.started:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for server ready: %w", ctx.Err())
	}
}
