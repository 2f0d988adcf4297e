package rider

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"courier/internal/infra"
	"courier/internal/modules/matching"
	"courier/internal/types"
)

type memStore struct {
	mu       sync.Mutex
	profiles map[types.ID]Profile
}

func newMemStore() *memStore {
	return &memStore{profiles: map[types.ID]Profile{}}
}

func (m *memStore) getOrCreate(userID types.ID) Profile {
	p, ok := m.profiles[userID]
	if !ok {
		p = Profile{ID: "r_" + userID, UserID: userID, Verification: matching.VerificationPending}
		m.profiles[userID] = p
	}
	return p
}

func (m *memStore) GetOrCreate(_ context.Context, userID types.ID) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.getOrCreate(userID)
	return &p, nil
}

func (m *memStore) SetOnline(_ context.Context, userID types.ID, online bool) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.getOrCreate(userID)
	p.Online = online
	m.profiles[userID] = p
	return &p, nil
}

func (m *memStore) SetLocation(_ context.Context, userID types.ID, at types.Point) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.getOrCreate(userID)
	p.Location = &at
	m.profiles[userID] = p
	return &p, nil
}

func TestGetOrCreateIsStable(t *testing.T) {
	svc := NewService(newMemStore(), zaptest.NewLogger(t))
	ctx := context.Background()

	a, err := svc.GetOrCreate(ctx, "u1")
	require.NoError(t, err)
	b, err := svc.GetOrCreate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.False(t, a.Online)
	assert.Equal(t, matching.VerificationPending, a.Verification)

	_, err = svc.GetOrCreate(ctx, "")
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestOnlineAndLocationMakeRiderDispatchable(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, zaptest.NewLogger(t))
	ctx := context.Background()

	p, err := svc.SetOnline(ctx, "u1", true)
	require.NoError(t, err)
	assert.True(t, p.Online)
	assert.False(t, p.Dispatch().Eligible(), "not approved and not located")

	p, err = svc.UpdateLocation(ctx, "u1", types.Point{Lat: 12.97, Lng: 77.59})
	require.NoError(t, err)
	require.NotNil(t, p.Location)

	p.Verification = matching.VerificationApproved
	assert.True(t, p.Dispatch().Eligible())
}

func TestUpdateLocationRejectsOutOfRange(t *testing.T) {
	svc := NewService(newMemStore(), zaptest.NewLogger(t))

	_, err := svc.UpdateLocation(context.Background(), "u1", types.Point{Lat: 91, Lng: 0})
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestPGStore(t *testing.T) {
	dsn := os.Getenv("COURIER_TEST_DSN")
	if dsn == "" {
		t.Skip("COURIER_TEST_DSN not set")
	}
	ctx := context.Background()
	require.NoError(t, infra.Migrate(dsn))
	db, err := infra.NewDB(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(ctx, `DELETE FROM riders WHERE user_id = 'u_rider_store'`)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `INSERT INTO users (id, role) VALUES ('u_rider_store', 'rider') ON CONFLICT DO NOTHING`)
	require.NoError(t, err)

	store := NewStore(db)
	a, err := store.GetOrCreate(ctx, "u_rider_store")
	require.NoError(t, err)
	b, err := store.GetOrCreate(ctx, "u_rider_store")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Nil(t, a.Location)

	p, err := store.SetOnline(ctx, "u_rider_store", true)
	require.NoError(t, err)
	assert.True(t, p.Online)

	p, err = store.SetLocation(ctx, "u_rider_store", types.Point{Lat: 12.5, Lng: 77.25})
	require.NoError(t, err)
	require.NotNil(t, p.Location)
	assert.Equal(t, 12.5, p.Location.Lat)

	var before, after string
	require.NoError(t, db.QueryRow(ctx, `SELECT xmin::text FROM riders WHERE user_id = 'u_rider_store'`).Scan(&before))
	_, err = store.GetOrCreate(ctx, "u_rider_store")
	require.NoError(t, err)
	require.NoError(t, db.QueryRow(ctx, `SELECT xmin::text FROM riders WHERE user_id = 'u_rider_store'`).Scan(&after))
	assert.Equal(t, before, after, "reading an existing rider must not rewrite its row")
}

func TestPGStoreConcurrentFirstRequests(t *testing.T) {
	dsn := os.Getenv("COURIER_TEST_DSN")
	if dsn == "" {
		t.Skip("COURIER_TEST_DSN not set")
	}
	ctx := context.Background()
	require.NoError(t, infra.Migrate(dsn))
	db, err := infra.NewDB(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(ctx, `DELETE FROM riders WHERE user_id = 'u_rider_race'`)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `INSERT INTO users (id, role) VALUES ('u_rider_race', 'rider') ON CONFLICT DO NOTHING`)
	require.NoError(t, err)

	store := NewStore(db)
	const n = 8
	ids := make([]types.ID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := store.GetOrCreate(ctx, "u_rider_race")
			if assert.NoError(t, err) {
				ids[i] = p.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	var count int
	require.NoError(t, db.QueryRow(ctx, `SELECT count(*) FROM riders WHERE user_id = 'u_rider_race'`).Scan(&count))
	assert.Equal(t, 1, count)
}
