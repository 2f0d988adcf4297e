// README: Rider profile store backed by PostgreSQL.
package rider

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier/internal/modules/matching"
	"courier/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const (
	profileColumns   = `id, user_id, is_online, kyc_status, current_lat, current_lng`
	returningProfile = `RETURNING ` + profileColumns
)

func (s *PGStore) Get(ctx context.Context, userID types.ID) (*Profile, error) {
	return s.scan(s.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM riders WHERE user_id = $1`, string(userID)))
}

// GetOrCreate is a plain read for existing riders; the insert only runs for a
// rider's first request.
func (s *PGStore) GetOrCreate(ctx context.Context, userID types.ID) (*Profile, error) {
	p, err := s.Get(ctx, userID)
	if !errors.Is(err, ErrNotFound) {
		return p, err
	}
	if err := s.create(ctx, userID); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// create tolerates a concurrent first request inserting the same rider.
func (s *PGStore) create(ctx context.Context, userID types.ID) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO riders (id, user_id, is_online, kyc_status)
        VALUES ($1, $2, FALSE, $3)
        ON CONFLICT (user_id) DO NOTHING`,
		string(types.NewID()), string(userID), string(matching.VerificationPending),
	)
	return err
}

func (s *PGStore) SetOnline(ctx context.Context, userID types.ID, online bool) (*Profile, error) {
	return s.update(ctx, userID, func() pgx.Row {
		return s.db.QueryRow(ctx, `
        UPDATE riders SET is_online = $2
        WHERE user_id = $1
        `+returningProfile, string(userID), online)
	})
}

func (s *PGStore) SetLocation(ctx context.Context, userID types.ID, p types.Point) (*Profile, error) {
	return s.update(ctx, userID, func() pgx.Row {
		return s.db.QueryRow(ctx, `
        UPDATE riders SET current_lat = $2, current_lng = $3
        WHERE user_id = $1
        `+returningProfile, string(userID), p.Lat, p.Lng)
	})
}

// update runs the statement, creating the rider first when it has no row yet.
func (s *PGStore) update(ctx context.Context, userID types.ID, run func() pgx.Row) (*Profile, error) {
	p, err := s.scan(run())
	if !errors.Is(err, ErrNotFound) {
		return p, err
	}
	if err := s.create(ctx, userID); err != nil {
		return nil, err
	}
	return s.scan(run())
}

func (s *PGStore) scan(row pgx.Row) (*Profile, error) {
	var (
		p        Profile
		id, uid  string
		lat, lng *float64
	)
	err := row.Scan(&id, &uid, &p.Online, &p.Verification, &lat, &lng)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.ID, p.UserID = types.ID(id), types.ID(uid)
	if lat != nil && lng != nil {
		p.Location = &types.Point{Lat: *lat, Lng: *lng}
	}
	return &p, nil
}
