package access

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"courier/internal/auth"
	"courier/internal/types"
)

type fakeLoader struct {
	mu      sync.Mutex
	records map[types.ID]Record
	calls   int
	err     error
}

func (f *fakeLoader) LoadAccess(_ context.Context, orderID types.ID) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return Record{}, f.err
	}
	rec, ok := f.records[orderID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func ptr(id types.ID) *types.ID { return &id }

func newRedisCache(t *testing.T) (*miniredis.Miniredis, Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisCache(client)
}

func TestRecordAllows(t *testing.T) {
	rec := Record{CustomerID: "c1", VendorOwnerID: "v1", RiderOwnerID: ptr("r1")}
	unassigned := Record{CustomerID: "c1", VendorOwnerID: "v1"}

	tests := []struct {
		name string
		rec  Record
		p    auth.Principal
		want bool
	}{
		{"customer owner", rec, auth.Principal{UserID: "c1", Role: auth.RoleCustomer}, true},
		{"other customer", rec, auth.Principal{UserID: "c2", Role: auth.RoleCustomer}, false},
		{"vendor owner", rec, auth.Principal{UserID: "v1", Role: auth.RoleVendor}, true},
		{"assigned rider", rec, auth.Principal{UserID: "r1", Role: auth.RoleRider}, true},
		{"other rider", rec, auth.Principal{UserID: "r2", Role: auth.RoleRider}, false},
		{"rider before assignment", unassigned, auth.Principal{UserID: "r1", Role: auth.RoleRider}, false},
		{"customer id under rider role", rec, auth.Principal{UserID: "c1", Role: auth.RoleRider}, false},
		{"rider id under customer role", rec, auth.Principal{UserID: "r1", Role: auth.RoleCustomer}, false},
		{"admin", rec, auth.Principal{UserID: "c1", Role: auth.RoleAdmin}, false},
		{"unknown role", rec, auth.Principal{UserID: "c1", Role: "guest"}, false},
		{"empty user", Record{}, auth.Principal{Role: auth.RoleCustomer}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.Allows(tt.p))
		})
	}
}

func TestResolveLoadsAndCaches(t *testing.T) {
	ctx := context.Background()
	mr, cache := newRedisCache(t)
	loader := &fakeLoader{records: map[types.ID]Record{
		"o1": {CustomerID: "c1", VendorOwnerID: "v1"},
	}}
	svc := NewService(cache, loader, time.Hour, zaptest.NewLogger(t))

	rec, err := svc.Resolve(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, types.ID("c1"), rec.CustomerID)
	assert.True(t, mr.Exists("order_access:o1"))
	assert.Equal(t, time.Hour, mr.TTL("order_access:o1"))

	_, err = svc.Resolve(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 1, loader.calls, "second resolve must be served from cache")
}

func TestResolveUnknownOrder(t *testing.T) {
	_, cache := newRedisCache(t)
	svc := NewService(cache, &fakeLoader{}, 0, zaptest.NewLogger(t))

	_, err := svc.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveExpiredEntryReloads(t *testing.T) {
	ctx := context.Background()
	mr, cache := newRedisCache(t)
	loader := &fakeLoader{records: map[types.ID]Record{"o1": {CustomerID: "c1", VendorOwnerID: "v1"}}}
	svc := NewService(cache, loader, time.Minute, zaptest.NewLogger(t))

	_, err := svc.Resolve(ctx, "o1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = svc.Resolve(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestResolveCacheDownFallsBackToLoader(t *testing.T) {
	mr, cache := newRedisCache(t)
	loader := &fakeLoader{records: map[types.ID]Record{"o1": {CustomerID: "c1", VendorOwnerID: "v1"}}}
	svc := NewService(cache, loader, time.Minute, zaptest.NewLogger(t))
	mr.Close()

	rec, err := svc.Resolve(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, types.ID("v1"), rec.VendorOwnerID)
}

func TestResolveLoaderErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	svc := NewService(NopCache{}, &fakeLoader{err: boom}, time.Minute, zaptest.NewLogger(t))

	_, err := svc.Resolve(context.Background(), "o1")
	assert.ErrorIs(t, err, boom)
}

func TestRefreshOverwritesCachedRecord(t *testing.T) {
	ctx := context.Background()
	_, cache := newRedisCache(t)
	loader := &fakeLoader{records: map[types.ID]Record{"o1": {CustomerID: "c1", VendorOwnerID: "v1"}}}
	svc := NewService(cache, loader, time.Hour, zaptest.NewLogger(t))

	_, err := svc.Resolve(ctx, "o1")
	require.NoError(t, err)

	svc.Refresh(ctx, "o1", Record{CustomerID: "c1", VendorOwnerID: "v1", RiderOwnerID: ptr("r1")})
	rec, err := svc.Resolve(ctx, "o1")
	require.NoError(t, err)
	require.NotNil(t, rec.RiderOwnerID)
	assert.Equal(t, types.ID("r1"), *rec.RiderOwnerID)
	assert.Equal(t, 1, loader.calls)
}

func TestRecordWithoutVendorOwnerIsNeverCached(t *testing.T) {
	ctx := context.Background()
	mr, cache := newRedisCache(t)
	loader := &fakeLoader{records: map[types.ID]Record{"o1": {CustomerID: "c1"}}}
	svc := NewService(cache, loader, time.Hour, zaptest.NewLogger(t))

	svc.Refresh(ctx, "o1", Record{CustomerID: "c1"})
	assert.False(t, mr.Exists("order_access:o1"))

	_, err := svc.Resolve(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, mr.Exists("order_access:o1"))
}

func TestNopCacheAlwaysMisses(t *testing.T) {
	loader := &fakeLoader{records: map[types.ID]Record{"o1": {CustomerID: "c1", VendorOwnerID: "v1"}}}
	svc := NewService(nil, loader, 0, nil)

	for i := 0; i < 3; i++ {
		_, err := svc.Resolve(context.Background(), "o1")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, loader.calls)
}
