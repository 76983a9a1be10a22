package infra

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ServerTimeFunc returns the exchange clock in epoch milliseconds.
type ServerTimeFunc func(ctx context.Context) (int64, error)

// TimeSync tracks the drift between the local clock and the exchange
// clock. Signed requests stamp Now() so a skewed local clock stays
// inside the recv window instead of tripping timestamp rejections.
type TimeSync struct {
	getServerTime ServerTimeFunc
	offset        int64 // serverTime - localTime, milliseconds
	mu            sync.RWMutex
	syncInterval  time.Duration
	logger        *slog.Logger
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewTimeSync creates a time sync service polling the given source.
func NewTimeSync(getServerTime ServerTimeFunc, logger *slog.Logger) *TimeSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimeSync{
		getServerTime: getServerTime,
		syncInterval:  30 * time.Minute, // Default: resync twice an hour
		logger:        logger.With("module", "timesync"),
	}
}

// Start syncs once immediately, then keeps the offset fresh in the
// background. A failed sync is logged and left to the next tick;
// trading calls proceed on whatever offset is current.
func (t *TimeSync) Start(ctx context.Context) error {
	// Create a cancellable context
	ctx, t.cancel = context.WithCancel(ctx)

	// Sync immediately on start
	if err := t.Sync(ctx); err != nil {
		t.logger.Warn("Initial time sync failed", slog.Any("error", err))
		// Continue anyway - will retry on next tick
	}

	// Start polling goroutine
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error("Time sync polling panic recovered", slog.Any("panic", r))
			}
		}()

		ticker := time.NewTicker(t.syncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				t.logger.Info("Time sync polling stopped")
				return
			case <-ticker.C:
				if err := t.Sync(ctx); err != nil {
					t.logger.Warn("Time sync failed", slog.Any("error", err))
				}
			}
		}
	}()

	return nil
}

// Sync measures the offset once. Half the round trip approximates the
// one-way latency, so server time is compared against the midpoint of
// the local clocks at send and receive.
func (t *TimeSync) Sync(ctx context.Context) error {
	before := time.Now().UnixMilli()
	serverTime, err := t.getServerTime(ctx)
	if err != nil {
		return err
	}
	after := time.Now().UnixMilli()

	local := before + (after-before)/2
	newOffset := serverTime - local

	t.mu.Lock()
	oldOffset := t.offset
	t.offset = newOffset
	t.mu.Unlock()

	if oldOffset != newOffset {
		t.logger.Debug("Clock offset updated",
			slog.Int64("offset_ms", newOffset),
			slog.Int64("old_offset_ms", oldOffset),
		)
	}
	return nil
}

// Now returns the drift-corrected time in epoch milliseconds.
func (t *TimeSync) Now() int64 {
	return time.Now().UnixMilli() + t.Offset()
}

// Offset returns the current clock offset in milliseconds.
func (t *TimeSync) Offset() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.offset
}

// Stop stops the background sync
func (t *TimeSync) Stop() {
	if t.cancel != nil {
		t.cancel()
		t.wg.Wait()
	}
}
