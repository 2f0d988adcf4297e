// README: Unit-of-work contracts for the order store and post-commit hooks.
package order

import (
	"context"

	"courier/internal/modules/matching"
	"courier/internal/types"
)

// Store is the order source of truth. Every state change goes through
// WithinTx; the reads outside it are plain snapshots.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Get(ctx context.Context, id types.ID) (*Order, error)
	ListByCustomer(ctx context.Context, customerID types.ID) ([]Order, error)
	ListByVendorOwner(ctx context.Context, ownerID types.ID, status *Status) ([]Order, error)
	ActiveForRider(ctx context.Context, riderID types.ID) (*Order, error)
	Earnings(ctx context.Context, riderID types.ID) (Earnings, error)
}

// Tx is one open transaction. Row locks taken through it are held until the
// surrounding WithinTx returns.
type Tx interface {
	matching.RiderPool

	Vendor(ctx context.Context, id types.ID) (*Vendor, error)
	AddressBelongsTo(ctx context.Context, addressID, customerID types.ID) (bool, error)
	// LockProducts locks the given rows in id order. Unknown ids are absent
	// from the result.
	LockProducts(ctx context.Context, ids []types.ID) (map[types.ID]Product, error)
	DecrementStock(ctx context.Context, productID types.ID, qty int) error

	Insert(ctx context.Context, o *Order) error
	// Lock re-reads the order under a row lock.
	Lock(ctx context.Context, id types.ID) (*Order, error)
	// Update writes status and rider if the stored version still equals
	// o.StatusVersion, bumping it on success.
	Update(ctx context.Context, o *Order) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
}

// hooks collects callbacks that must only run once the transaction committed.
type hooks struct {
	fns []func(ctx context.Context)
}

func (h *hooks) add(fn func(ctx context.Context)) {
	h.fns = append(h.fns, fn)
}

func (h *hooks) run(ctx context.Context) {
	for _, fn := range h.fns {
		fn(ctx)
	}
}
