//go:build integration

package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestTracker_Integration_GetState(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	tracker := NewTracker(redisClient, logger)
	ctx := context.Background()

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Active() || state.Hits != 0 {
		t.Errorf("empty redis state = %+v, want zero", state)
	}

	if err := tracker.RecordRateLimited(ctx, 2*time.Minute); err != nil {
		t.Fatalf("RecordRateLimited() error = %v", err)
	}

	state, err = tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() after record error = %v", err)
	}
	if state.Hits != 1 {
		t.Errorf("Hits = %d, want 1", state.Hits)
	}

	expected := 2 * time.Minute
	tolerance := 5 * time.Second
	if got := state.Remaining(); got < expected-tolerance || got > expected {
		t.Errorf("Remaining() = %v, want approximately %v", got, expected)
	}
}

func TestTracker_Integration_SharedAcrossTrackers(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	first := NewTracker(redisClient, logger)
	second := NewTracker(redisClient, logger)
	ctx := context.Background()

	if err := first.RecordRateLimited(ctx, time.Minute); err != nil {
		t.Fatalf("RecordRateLimited() error = %v", err)
	}

	allowed, wait, err := second.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("second tracker allowed a request during a shared backoff window")
	}
	if wait <= 0 {
		t.Errorf("wait = %v, want positive", wait)
	}

	if err := second.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	allowed, _, err = first.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if !allowed {
		t.Error("first tracker still blocked after shared Reset")
	}
}

func TestTracker_Integration_WindowExpires(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	tracker := NewTracker(redisClient, logger)
	ctx := context.Background()

	if err := tracker.RecordRateLimited(ctx, time.Second); err != nil {
		t.Fatalf("RecordRateLimited() error = %v", err)
	}

	time.Sleep(1500 * time.Millisecond)

	allowed, _, err := tracker.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if !allowed {
		t.Error("ShouldAllowRequest() = false after the window expired")
	}
}

func TestTracker_Integration_LongerWindowKept(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, zerolog.Nop())
	ctx := context.Background()

	if err := tracker.RecordRateLimited(ctx, time.Minute); err != nil {
		t.Fatalf("RecordRateLimited() error = %v", err)
	}
	if err := tracker.RecordRateLimited(ctx, 5*time.Second); err != nil {
		t.Fatalf("RecordRateLimited() error = %v", err)
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Hits != 2 {
		t.Errorf("Hits = %d, want 2", state.Hits)
	}
	if got := state.Remaining(); got < 50*time.Second {
		t.Errorf("Remaining() = %v, a shorter 429 must not shrink the window", got)
	}

	ttl, err := redisClient.TTL(ctx, RedisKeyBackoffUntil).Result()
	if err != nil {
		t.Fatalf("TTL error = %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("backoff key TTL = %v, want within (0, 1m]", ttl)
	}
}

func TestTracker_Integration_WaitHonoursContext(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, zerolog.Nop())
	if err := tracker.RecordRateLimited(context.Background(), time.Minute); err != nil {
		t.Fatalf("RecordRateLimited() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := tracker.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}
