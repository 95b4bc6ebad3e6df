package ratelimit

import (
	"context"
	"testing"
	"time"

	"inspira/internal/storage/stubs"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
}

func startRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("skip: miniredis unavailable: %v", err)
	}
	t.Cleanup(srv.Close)

	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return srv, NewRedisStore(client, "test")
}

func newRedisStore(t *testing.T) *RedisStore {
	_, store := startRedis(t)
	return store
}

var stateStores = map[string]func(t *testing.T) StateStore{
	"memory": func(*testing.T) StateStore { return NewMemoryStore() },
	"redis":  func(t *testing.T) StateStore { return newRedisStore(t) },
}

func TestGuard_FloodThresholds(t *testing.T) {
	for name, newStore := range stateStores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newClock()
			db := stubs.NewMockDB()
			g := NewGuard(DefaultConfig(), newStore(t), db, zap.NewNop(), WithClock(clock.Now))

			for i := 1; i <= 12; i++ {
				d, err := g.Check(ctx, 1)
				require.NoError(t, err)
				assert.Equal(t, Allowed, d.Verdict, "interaction %d", i)
				clock.Advance(100 * time.Millisecond)
			}

			d, err := g.Check(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, RateLimited, d.Verdict, "13th interaction")
			assert.Equal(t, clock.Now().Add(30*time.Minute), d.BlockedUntil)

			for i := 14; i <= 31; i++ {
				clock.Advance(100 * time.Millisecond)
				d, err := g.Check(ctx, 1)
				require.NoError(t, err)
				assert.Equal(t, TempBlocked, d.Verdict, "interaction %d", i)
			}

			clock.Advance(100 * time.Millisecond)
			d, err = g.Check(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, Banned, d.Verdict, "32nd interaction")
			assert.True(t, d.NewlyBanned)

			banned, err := db.IsBanned(ctx, 1)
			require.NoError(t, err)
			assert.True(t, banned)

			clock.Advance(100 * time.Millisecond)
			d, err = g.Check(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, Banned, d.Verdict, "33rd interaction")
			assert.False(t, d.NewlyBanned)
			assert.False(t, d.FirstNotice)
		})
	}
}

func TestGuard_TemporaryBlockExpires(t *testing.T) {
	for name, newStore := range stateStores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newClock()
			g := NewGuard(DefaultConfig(), newStore(t), stubs.NewMockDB(), zap.NewNop(), WithClock(clock.Now))

			for i := 0; i < 13; i++ {
				_, err := g.Check(ctx, 1)
				require.NoError(t, err)
			}

			clock.Advance(29 * time.Minute)
			d, err := g.Check(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, TempBlocked, d.Verdict)

			clock.Advance(2 * time.Minute)
			d, err = g.Check(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, Allowed, d.Verdict)

			d, err = g.Check(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, Allowed, d.Verdict)
			assert.Equal(t, 1, d.Count)
		})
	}
}

func TestRedisStore_BlockTTLFollowsGuardClock(t *testing.T) {
	srv, store := startRedis(t)
	ctx := context.Background()
	// far from the wall clock
	clock := &fakeClock{t: time.Date(2001, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := NewGuard(DefaultConfig(), store, stubs.NewMockDB(), zap.NewNop(), WithClock(clock.Now))

	var d Decision
	for i := 0; i < 13; i++ {
		var err error
		d, err = g.Check(ctx, 1)
		require.NoError(t, err)
	}
	require.Equal(t, RateLimited, d.Verdict)

	// twice the 30 minute block
	assert.Equal(t, time.Hour, srv.TTL("test:block:1"))

	srv.FastForward(29 * time.Minute)
	clock.Advance(29 * time.Minute)
	d, err := g.Check(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, TempBlocked, d.Verdict)
}

func TestGuard_WindowSlides(t *testing.T) {
	for name, newStore := range stateStores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newClock()
			g := NewGuard(DefaultConfig(), newStore(t), stubs.NewMockDB(), zap.NewNop(), WithClock(clock.Now))

			for round := 0; round < 3; round++ {
				for i := 0; i < 12; i++ {
					d, err := g.Check(ctx, 1)
					require.NoError(t, err)
					assert.True(t, d.Allowed())
				}
				clock.Advance(31 * time.Second)
			}
		})
	}
}

func TestGuard_UsersAreIndependent(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	g := NewGuard(DefaultConfig(), NewMemoryStore(), stubs.NewMockDB(), nil, WithClock(clock.Now))

	for i := 0; i < 13; i++ {
		_, err := g.Check(ctx, 1)
		require.NoError(t, err)
	}
	d, err := g.Check(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, Allowed, d.Verdict)
}

func TestGuard_BannedElsewhereNoticeOnce(t *testing.T) {
	ctx := context.Background()
	db := stubs.NewMockDB()
	g := NewGuard(DefaultConfig(), NewMemoryStore(), db, zap.NewNop())

	_, err := db.BanUser(ctx, 5)
	require.NoError(t, err)

	d, err := g.Check(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, Banned, d.Verdict)
	assert.True(t, d.FirstNotice)

	d, err = g.Check(ctx, 5)
	require.NoError(t, err)
	assert.False(t, d.FirstNotice)

	_, err = db.UnbanUser(ctx, 5)
	require.NoError(t, err)
	require.NoError(t, g.Reset(ctx, 5))

	d, err = g.Check(ctx, 5)
	require.NoError(t, err)
	assert.True(t, d.Allowed())

	_, err = db.BanUser(ctx, 5)
	require.NoError(t, err)
	d, err = g.Check(ctx, 5)
	require.NoError(t, err)
	assert.True(t, d.FirstNotice)
}

func TestNewGuard_Defaults(t *testing.T) {
	g := NewGuard(Config{RequestLimit: 3}, NewMemoryStore(), stubs.NewMockDB(), nil)
	cfg := g.Config()
	assert.Equal(t, 3, cfg.RequestLimit)
	assert.Equal(t, 32, cfg.BanThreshold)
	assert.Equal(t, 30*time.Second, cfg.Window)
	assert.Equal(t, 30*time.Minute, cfg.TempBlock)
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "rate_limited", RateLimited.String())
	assert.Equal(t, "banned", Banned.String())
}
