package ratelimit

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newLocalTracker() *Tracker {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return NewTracker(nil, logger)
}

func TestTracker_DefaultAllows(t *testing.T) {
	tracker := newLocalTracker()
	ctx := context.Background()

	if tracker.Shared() {
		t.Error("Shared() = true without redis")
	}

	allowed, wait, err := tracker.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if !allowed || wait != 0 {
		t.Errorf("ShouldAllowRequest() = %v, %v; want true, 0", allowed, wait)
	}
}

func TestTracker_RecordRateLimited(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter time.Duration
		wantMin    time.Duration
		wantMax    time.Duration
	}{
		{
			name:       "explicit window",
			retryAfter: 30 * time.Second,
			wantMin:    29 * time.Second,
			wantMax:    30 * time.Second,
		},
		{
			name:       "missing window uses default",
			retryAfter: 0,
			wantMin:    DefaultRetryAfter - time.Second,
			wantMax:    DefaultRetryAfter,
		},
		{
			name:       "window above cap",
			retryAfter: time.Hour,
			wantMin:    MaxRetryAfter - time.Second,
			wantMax:    MaxRetryAfter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newLocalTracker()
			ctx := context.Background()

			if err := tracker.RecordRateLimited(ctx, tt.retryAfter); err != nil {
				t.Fatalf("RecordRateLimited() error = %v", err)
			}

			allowed, wait, err := tracker.ShouldAllowRequest(ctx)
			if err != nil {
				t.Fatalf("ShouldAllowRequest() error = %v", err)
			}
			if allowed {
				t.Error("ShouldAllowRequest() = true during backoff")
			}
			if wait < tt.wantMin || wait > tt.wantMax {
				t.Errorf("wait = %v, want within [%v, %v]", wait, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestTracker_KeepsLongerWindow(t *testing.T) {
	tracker := newLocalTracker()
	ctx := context.Background()

	if err := tracker.RecordRateLimited(ctx, time.Minute); err != nil {
		t.Fatalf("RecordRateLimited() error = %v", err)
	}
	if err := tracker.RecordRateLimited(ctx, time.Second); err != nil {
		t.Fatalf("RecordRateLimited() error = %v", err)
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Remaining() < 50*time.Second {
		t.Errorf("Remaining() = %v, shorter window replaced the longer one", state.Remaining())
	}
	if state.Hits != 2 {
		t.Errorf("Hits = %d, want 2", state.Hits)
	}
}

func TestTracker_Reset(t *testing.T) {
	tracker := newLocalTracker()
	ctx := context.Background()

	if err := tracker.RecordRateLimited(ctx, time.Minute); err != nil {
		t.Fatalf("RecordRateLimited() error = %v", err)
	}
	if err := tracker.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	allowed, _, err := tracker.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if !allowed {
		t.Error("ShouldAllowRequest() = false after Reset")
	}
}

func TestTracker_WaitHonoursContext(t *testing.T) {
	tracker := newLocalTracker()

	if err := tracker.RecordRateLimited(context.Background(), time.Minute); err != nil {
		t.Fatalf("RecordRateLimited() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := tracker.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestTracker_WaitReturnsWhenWindowEnds(t *testing.T) {
	tracker := newLocalTracker()
	tracker.local.Until = time.Now().Add(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := tracker.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Wait() returned before the window ended")
	}
}
