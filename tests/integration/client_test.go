//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/character-catalog/internal/config"
	"github.com/Sternrassler/character-catalog/internal/testutil"
	"github.com/Sternrassler/character-catalog/pkg/browse"
	"github.com/Sternrassler/character-catalog/pkg/cache"
	"github.com/Sternrassler/character-catalog/pkg/catalog"
	"github.com/Sternrassler/character-catalog/pkg/filter"
	"github.com/Sternrassler/character-catalog/pkg/pagination"
	"github.com/Sternrassler/character-catalog/pkg/ratelimit"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	addr := host + ":" + port.Port()
	redisClient := redis.NewClient(&redis.Options{Addr: addr})

	t.Cleanup(func() {
		redisClient.Close()
		container.Terminate(ctx)
	})

	return redisClient, addr
}

func newClient(t *testing.T, mock *testutil.MockCatalog, rdb *redis.Client, attempts int) *catalog.Client {
	t.Helper()

	cfg := catalog.DefaultConfig("catalog-integration/1.0")
	cfg.BaseURL = mock.URL()
	cfg.RateLimit = 0
	cfg.Redis = rdb
	cfg.Retry.MaxAttempts = attempts
	cfg.Retry.InitialBackoff = 10 * time.Millisecond
	cfg.Retry.MaxBackoff = 50 * time.Millisecond

	c, err := catalog.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// TestFullRequestFlow covers collection -> client -> catalog and a
// conditional refetch answered with 304.
func TestFullRequestFlow(t *testing.T) {
	rdb, _ := setupRedis(t)

	mock := testutil.NewMockCatalog(testutil.Characters(45))
	defer mock.Close()

	collection := browse.NewCollection(newClient(t, mock, rdb, 3), zerolog.Nop())
	defer collection.Close()

	ctx := context.Background()
	state := filter.Default()

	page, err := collection.LoadPage(ctx, state)
	if err != nil {
		t.Fatalf("Initial load failed: %v", err)
	}
	if len(page.Results) != catalog.PageSize || page.Info.Count != 45 {
		t.Errorf("page = %d results of %d, want %d of 45", len(page.Results), page.Info.Count, catalog.PageSize)
	}

	// cached, no request
	if _, err := collection.LoadPage(ctx, state); err != nil {
		t.Fatalf("Cached load failed: %v", err)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("requests after cached load = %d, want 1", mock.GetRequestCount())
	}

	refreshed, err := collection.LoadPage(ctx, state, cache.WithRefresh())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if mock.GetConditionalCount() != 1 || mock.GetNotModifiedCount() != 1 {
		t.Errorf("conditional=%d notModified=%d, want 1/1", mock.GetConditionalCount(), mock.GetNotModifiedCount())
	}
	if refreshed.Results[0].Name != page.Results[0].Name {
		t.Errorf("304 must reuse the cached body, got %q", refreshed.Results[0].Name)
	}
}

// TestSharedBackoff checks that a 429 seen by one client holds back another
// client using the same Redis.
func TestSharedBackoff(t *testing.T) {
	rdb, _ := setupRedis(t)

	mock := testutil.NewMockCatalog(testutil.Characters(5))
	defer mock.Close()

	first := newClient(t, mock, rdb, 1)
	second := newClient(t, mock, rdb, 1)

	ctx := context.Background()
	mock.QueueResponses(testutil.NewRateLimitResponse("1"))

	_, err := first.FetchPage(ctx, filter.Default())
	if catalog.ClassOf(err) != catalog.ErrorClassRateLimit {
		t.Fatalf("error = %v, want rate_limit class", err)
	}

	state, err := second.Tracker().GetState(ctx)
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if !state.Active() || state.Hits != 1 {
		t.Errorf("shared state = %+v, want active window with 1 hit", state)
	}

	start := time.Now()
	if _, err := second.FetchPage(ctx, filter.Default()); err != nil {
		t.Fatalf("FetchPage after window failed: %v", err)
	}
	if waited := time.Since(start); waited < 500*time.Millisecond {
		t.Errorf("second client waited %s, want it held back by the window", waited)
	}

	if err := second.Tracker().Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if n, _ := rdb.Exists(ctx, ratelimit.RedisKeyHits).Result(); n != 0 {
		t.Errorf("hits key still present after Reset")
	}
}

func TestRetryServerErrors(t *testing.T) {
	rdb, _ := setupRedis(t)

	mock := testutil.NewMockCatalog(testutil.Characters(5))
	defer mock.Close()
	mock.QueueResponses(testutil.NewServerErrorResponse(), testutil.NewServerErrorResponse())

	c := newClient(t, mock, rdb, 3)
	page, err := c.FetchPage(context.Background(), filter.Default())
	if err != nil {
		t.Fatalf("FetchPage failed after retries: %v", err)
	}
	if len(page.Results) != 5 {
		t.Errorf("results = %d, want 5", len(page.Results))
	}
	if mock.GetRequestCount() != 3 {
		t.Errorf("requests = %d, want 3", mock.GetRequestCount())
	}
}

func TestNoRetryNotFound(t *testing.T) {
	rdb, _ := setupRedis(t)

	mock := testutil.NewMockCatalog(testutil.Characters(5))
	defer mock.Close()

	collection := browse.NewCollection(newClient(t, mock, rdb, 3), zerolog.Nop())
	defer collection.Close()

	_, err := collection.LoadEntity(context.Background(), 999)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("requests = %d, want 1", mock.GetRequestCount())
	}
}

// TestExportThroughConfig wires the stack from a config the way the command
// line does and exports every page.
func TestExportThroughConfig(t *testing.T) {
	_, addr := setupRedis(t)

	mock := testutil.NewMockCatalog(testutil.Characters(65))
	defer mock.Close()

	t.Setenv(config.EnvBaseURL, mock.URL())
	t.Setenv(config.EnvRedisURL, "redis://"+addr)
	t.Chdir(t.TempDir())

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	rdb := cfg.RedisClient()
	if rdb == nil {
		t.Fatal("RedisClient() = nil with REDIS_URL set")
	}
	defer rdb.Close()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	client, err := catalog.New(cfg.ClientConfig(rdb))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()
	if !client.Tracker().Shared() {
		t.Error("tracker should share state through Redis")
	}

	collection := browse.NewCollection(client, zerolog.Nop())
	defer collection.Close()

	res, err := pagination.NewBatchFetcher(collection, pagination.DefaultConfig()).FetchAll(ctx, filter.Default())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if !res.Complete() || res.TotalPages != 4 || len(res.Characters()) != 65 {
		t.Errorf("result = %d pages, %d characters, complete %v", res.TotalPages, len(res.Characters()), res.Complete())
	}

	if pages, _ := collection.Stats(); pages != 4 {
		t.Errorf("cached pages = %d, want 4", pages)
	}
}
