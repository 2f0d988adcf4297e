// README: Access service resolves order access records cache-first.
package access

import (
	"context"
	"time"

	"go.uber.org/zap"

	"courier/internal/types"
)

const DefaultTTL = 24 * time.Hour

// Loader reads the access record from the source of truth. Unknown orders
// yield ErrNotFound.
type Loader interface {
	LoadAccess(ctx context.Context, orderID types.ID) (Record, error)
}

type Service struct {
	cache  Cache
	loader Loader
	ttl    time.Duration
	log    *zap.Logger
}

func NewService(cache Cache, loader Loader, ttl time.Duration, log *zap.Logger) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{cache: cache, loader: loader, ttl: ttl, log: log}
}

// Resolve returns the access record for orderID. Cache failures count as a
// miss and are only logged.
func (s *Service) Resolve(ctx context.Context, orderID types.ID) (Record, error) {
	rec, ok, err := s.cache.Get(ctx, orderID)
	if err != nil {
		s.log.Warn("access cache read failed", zap.String("order_id", orderID.String()), zap.Error(err))
	}
	if err == nil && ok {
		return rec, nil
	}

	rec, err = s.loader.LoadAccess(ctx, orderID)
	if err != nil {
		return Record{}, err
	}
	s.store(ctx, orderID, rec)
	return rec, nil
}

// Refresh overwrites the cached record after the order's rider association
// changed or the order was created.
func (s *Service) Refresh(ctx context.Context, orderID types.ID, rec Record) {
	s.store(ctx, orderID, rec)
}

func (s *Service) store(ctx context.Context, orderID types.ID, rec Record) {
	if !rec.Cacheable() {
		s.log.Warn("access record missing vendor owner, not cached", zap.String("order_id", orderID.String()))
		return
	}
	if err := s.cache.Set(ctx, orderID, rec, s.ttl); err != nil {
		s.log.Warn("access cache write failed", zap.String("order_id", orderID.String()), zap.Error(err))
	}
}
