// README: Order service implements state transitions and persistence.
package order

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"courier/internal/modules/access"
	"courier/internal/modules/matching"
	"courier/internal/types"
)

// Assigner picks a rider for a new order from the pool visible to the open
// transaction.
type Assigner interface {
	Assign(ctx context.Context, pool matching.RiderPool, origin types.Point) (matching.Candidate, bool, error)
}

// Publisher fans an order event out to the order's realtime group.
type Publisher interface {
	PublishOrderEvent(ctx context.Context, orderID types.ID, name string, payload map[string]any)
}

// AccessWriter receives the access record whenever it may have changed.
type AccessWriter interface {
	Refresh(ctx context.Context, orderID types.ID, rec access.Record)
}

type Service struct {
	store     Store
	assigner  Assigner
	publisher Publisher
	access    AccessWriter
	log       *zap.Logger
	now       func() time.Time
}

func NewService(store Store, assigner Assigner, publisher Publisher, acc AccessWriter, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:     store,
		assigner:  assigner,
		publisher: publisher,
		access:    acc,
		log:       log,
		now:       time.Now,
	}
}

var (
	ErrInvalidState = errors.New("invalid state transition")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("order state conflict")
	ErrBadRequest   = errors.New("bad request")
)

func invalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

type LineInput struct {
	ProductID types.ID
	Quantity  int
}

type CreateCommand struct {
	CustomerID    types.ID
	VendorID      types.ID
	AddressID     *types.ID
	PaymentMethod PaymentMethod
	Lines         []LineInput
}

// RiderCommand is issued by a rider; RiderUserID is the rider's login identity.
type RiderCommand struct {
	OrderID     types.ID
	RiderID     types.ID
	RiderUserID types.ID
}

// VendorCommand is issued by the owner of the order's vendor.
type VendorCommand struct {
	OrderID types.ID
	OwnerID types.ID
}

// Create reserves stock, prices the lines, assigns the nearest rider when one
// is available and inserts the order as placed, all in one transaction.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if cmd.CustomerID == "" || cmd.VendorID == "" {
		return nil, fmt.Errorf("%w: customer and vendor are required", ErrBadRequest)
	}
	if len(cmd.Lines) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrBadRequest)
	}
	method := cmd.PaymentMethod
	if method == "" {
		method = PaymentCOD
	}
	if method != PaymentCOD && method != PaymentOnline {
		return nil, fmt.Errorf("%w: unsupported payment method %q", ErrBadRequest, method)
	}

	wanted := make(map[types.ID]int, len(cmd.Lines))
	ids := make([]types.ID, 0, len(cmd.Lines))
	for _, l := range cmd.Lines {
		if l.ProductID == "" {
			return nil, fmt.Errorf("%w: product is required", ErrBadRequest)
		}
		if l.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be >= 1", ErrBadRequest)
		}
		if _, seen := wanted[l.ProductID]; !seen {
			ids = append(ids, l.ProductID)
		}
		wanted[l.ProductID] += l.Quantity
	}
	slices.Sort(ids)

	var out *Order
	err := s.inTx(ctx, func(ctx context.Context, tx Tx, h *hooks) error {
		v, err := tx.Vendor(ctx, cmd.VendorID)
		if err != nil {
			return err
		}
		if !v.Open {
			return invalidState("vendor is currently closed")
		}
		if cmd.AddressID != nil {
			ok, err := tx.AddressBelongsTo(ctx, *cmd.AddressID, cmd.CustomerID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: delivery address", ErrNotFound)
			}
		}

		products, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			p, ok := products[id]
			if !ok || !p.Active || p.VendorID != v.ID {
				return fmt.Errorf("%w: product %s is invalid or unavailable", ErrNotFound, id)
			}
			if p.Stock < wanted[id] {
				return invalidState("insufficient stock for product %s", id)
			}
		}

		now := s.now().UTC()
		o := &Order{
			ID:                types.NewID(),
			CustomerID:        cmd.CustomerID,
			VendorID:          v.ID,
			DeliveryAddressID: cmd.AddressID,
			Status:            StatusPlaced,
			PaymentMethod:     method,
			PaymentStatus:     PaymentPending,
			VendorOwnerID:     v.OwnerID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		total := decimal.Zero
		for _, l := range cmd.Lines {
			line := Line{ProductID: l.ProductID, Quantity: l.Quantity, Price: products[l.ProductID].Price}
			o.Lines = append(o.Lines, line)
			total = total.Add(line.Subtotal())
		}
		o.TotalAmount = total.Round(types.MoneyScale)

		if s.assigner != nil {
			c, ok, err := s.assigner.Assign(ctx, tx, v.Location)
			if err != nil {
				return fmt.Errorf("assign rider: %w", err)
			}
			if ok {
				riderID, riderUserID := c.Rider.ID, c.Rider.UserID
				o.RiderID = &riderID
				o.RiderUserID = &riderUserID
			}
		}

		if err := tx.Insert(ctx, o); err != nil {
			return err
		}
		for _, id := range ids {
			if err := tx.DecrementStock(ctx, id, wanted[id]); err != nil {
				return err
			}
		}
		customerID := cmd.CustomerID
		if err := tx.AppendEvent(ctx, &Event{
			OrderID:    o.ID,
			FromStatus: StatusNone,
			ToStatus:   StatusPlaced,
			ActorType:  ActorCustomer,
			ActorID:    &customerID,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		payload := map[string]any{
			"status":       string(o.Status),
			"total_amount": o.TotalAmount.StringFixed(types.MoneyScale),
		}
		if o.RiderID != nil {
			payload["rider_id"] = o.RiderID.String()
		}
		s.afterCommit(h, o, EventPlaced, payload, true)
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("order placed",
		zap.String("order_id", out.ID.String()),
		zap.String("vendor_id", out.VendorID.String()),
		zap.Bool("rider_assigned", out.RiderID != nil),
	)
	return out, nil
}

// Accept binds the acting rider to a placed order.
func (s *Service) Accept(ctx context.Context, cmd RiderCommand) (*Order, error) {
	return s.transition(ctx, cmd.OrderID, step{
		to:        StatusAccepted,
		event:     EventAccepted,
		actorType: ActorRider,
		actorID:   cmd.RiderID,
		refresh:   true,
		guard: func(o *Order) error {
			if o.Status != StatusPlaced {
				return invalidState("only placed orders can be accepted (current status: %s)", o.Status)
			}
			if o.RiderID != nil && *o.RiderID != cmd.RiderID {
				return invalidState("order is already assigned to another rider")
			}
			return nil
		},
		apply: func(o *Order) {
			riderID, riderUserID := cmd.RiderID, cmd.RiderUserID
			o.RiderID = &riderID
			o.RiderUserID = &riderUserID
		},
		payload: func(o *Order) map[string]any {
			return map[string]any{"status": string(o.Status), "rider_id": cmd.RiderID.String()}
		},
	})
}

func (s *Service) MarkPicked(ctx context.Context, cmd RiderCommand) (*Order, error) {
	return s.transition(ctx, cmd.OrderID, step{
		to:        StatusPicked,
		event:     EventPicked,
		actorType: ActorRider,
		actorID:   cmd.RiderID,
		guard: func(o *Order) error {
			if err := assignedTo(o, cmd.RiderID); err != nil {
				return err
			}
			if o.Status != StatusAccepted && o.Status != StatusReady {
				return invalidState("order must be accepted or ready before it can be picked (current status: %s)", o.Status)
			}
			return nil
		},
		payload: func(o *Order) map[string]any {
			return map[string]any{"status": string(o.Status), "rider_id": cmd.RiderID.String()}
		},
	})
}

func (s *Service) MarkDelivered(ctx context.Context, cmd RiderCommand) (*Order, error) {
	return s.transition(ctx, cmd.OrderID, step{
		to:        StatusDelivered,
		event:     EventDelivered,
		actorType: ActorRider,
		actorID:   cmd.RiderID,
		guard: func(o *Order) error {
			if err := assignedTo(o, cmd.RiderID); err != nil {
				return err
			}
			if o.Status != StatusPicked {
				return invalidState("order must be picked before it can be delivered (current status: %s)", o.Status)
			}
			return nil
		},
		payload: func(o *Order) map[string]any {
			return map[string]any{"status": string(o.Status), "rider_id": cmd.RiderID.String()}
		},
	})
}

func (s *Service) VendorAccept(ctx context.Context, cmd VendorCommand) (*Order, error) {
	return s.vendorTransition(ctx, cmd, StatusAccepted, EventAccepted, func(o *Order) error {
		if o.Status != StatusPlaced {
			return invalidState("only placed orders can be accepted (current status: %s)", o.Status)
		}
		return nil
	})
}

func (s *Service) MarkReady(ctx context.Context, cmd VendorCommand) (*Order, error) {
	return s.vendorTransition(ctx, cmd, StatusReady, EventReady, func(o *Order) error {
		if o.Status != StatusPlaced && o.Status != StatusAccepted {
			return invalidState("order must be placed or accepted before it can be marked ready (current status: %s)", o.Status)
		}
		return nil
	})
}

func (s *Service) Cancel(ctx context.Context, cmd VendorCommand) (*Order, error) {
	return s.vendorTransition(ctx, cmd, StatusCancelled, EventCancelled, cancellable)
}

// Reject is a vendor refusal; it ends in the same state as Cancel but is
// announced under its own event name.
func (s *Service) Reject(ctx context.Context, cmd VendorCommand) (*Order, error) {
	return s.vendorTransition(ctx, cmd, StatusCancelled, EventRejected, cancellable)
}

func cancellable(o *Order) error {
	switch o.Status {
	case StatusPicked, StatusDelivered:
		return invalidState("picked or delivered orders cannot be cancelled (current status: %s)", o.Status)
	case StatusCancelled:
		return invalidState("order is already cancelled")
	}
	return nil
}

func assignedTo(o *Order, riderID types.ID) error {
	if o.RiderID == nil || *o.RiderID != riderID {
		return fmt.Errorf("%w: order not assigned to this rider", ErrForbidden)
	}
	return nil
}

func (s *Service) vendorTransition(ctx context.Context, cmd VendorCommand, to Status, event string, guard func(*Order) error) (*Order, error) {
	return s.transition(ctx, cmd.OrderID, step{
		to:        to,
		event:     event,
		actorType: ActorVendor,
		actorID:   cmd.OwnerID,
		guard: func(o *Order) error {
			if o.VendorOwnerID != cmd.OwnerID {
				return fmt.Errorf("%w: order", ErrNotFound)
			}
			return guard(o)
		},
		payload: func(o *Order) map[string]any {
			return map[string]any{"status": string(o.Status), "vendor_id": o.VendorID.String()}
		},
	})
}

type step struct {
	to        Status
	event     string
	actorType string
	actorID   types.ID
	refresh   bool
	guard     func(o *Order) error
	apply     func(o *Order)
	payload   func(o *Order) map[string]any
}

// transition re-reads the order under lock, checks the guard against the
// current status and writes with a version compare-and-set.
func (s *Service) transition(ctx context.Context, id types.ID, st step) (*Order, error) {
	var out *Order
	err := s.inTx(ctx, func(ctx context.Context, tx Tx, h *hooks) error {
		o, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if err := st.guard(o); err != nil {
			return err
		}
		if !CanTransition(o.Status, st.to) {
			return invalidState("cannot move order from %s to %s", o.Status, st.to)
		}

		from := o.Status
		if st.apply != nil {
			st.apply(o)
		}
		o.Status = st.to
		ok, err := tx.Update(ctx, o)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}
		o.StatusVersion++
		o.UpdatedAt = s.now().UTC()

		actorID := st.actorID
		if err := tx.AppendEvent(ctx, &Event{
			OrderID:    o.ID,
			FromStatus: from,
			ToStatus:   o.Status,
			ActorType:  st.actorType,
			ActorID:    &actorID,
			CreatedAt:  o.UpdatedAt,
		}); err != nil {
			return err
		}

		s.afterCommit(h, o, st.event, st.payload(o), st.refresh)
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("order transition",
		zap.String("order_id", out.ID.String()),
		zap.String("status", string(out.Status)),
		zap.String("event", st.event),
		zap.String("actor_type", st.actorType),
	)
	return out, nil
}

// afterCommit queues the access write-through (first, so a subscriber reacting
// to the event already sees the new record) and the event publish.
func (s *Service) afterCommit(h *hooks, o *Order, event string, payload map[string]any, refresh bool) {
	if refresh && s.access != nil {
		id, rec := o.ID, AccessRecord(o)
		h.add(func(ctx context.Context) { s.access.Refresh(ctx, id, rec) })
	}
	if s.publisher != nil {
		id := o.ID
		h.add(func(ctx context.Context) { s.publisher.PublishOrderEvent(ctx, id, event, payload) })
	}
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, tx Tx, h *hooks) error) error {
	var h hooks
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		h = hooks{}
		return fn(ctx, tx, &h)
	})
	if err != nil {
		return err
	}
	h.run(context.WithoutCancel(ctx))
	return nil
}

// AccessRecord projects the identities allowed to observe o.
func AccessRecord(o *Order) access.Record {
	return access.Record{
		CustomerID:    o.CustomerID,
		VendorOwnerID: o.VendorOwnerID,
		RiderOwnerID:  o.RiderUserID,
	}
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

// GetForCustomer hides orders of other customers behind ErrNotFound.
func (s *Service) GetForCustomer(ctx context.Context, customerID, id types.ID) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, fmt.Errorf("%w: order", ErrNotFound)
	}
	return o, nil
}

func (s *Service) GetForVendor(ctx context.Context, ownerID, id types.ID) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.VendorOwnerID != ownerID {
		return nil, fmt.Errorf("%w: order", ErrNotFound)
	}
	return o, nil
}

func (s *Service) ListForCustomer(ctx context.Context, customerID types.ID) ([]Order, error) {
	return s.store.ListByCustomer(ctx, customerID)
}

func (s *Service) ListForVendor(ctx context.Context, ownerID types.ID, status *Status) ([]Order, error) {
	return s.store.ListByVendorOwner(ctx, ownerID, status)
}

// ActiveForRider returns the most recently updated order the rider is working.
func (s *Service) ActiveForRider(ctx context.Context, riderID types.ID) (*Order, error) {
	return s.store.ActiveForRider(ctx, riderID)
}

func (s *Service) Earnings(ctx context.Context, riderID types.ID) (Earnings, error) {
	return s.store.Earnings(ctx, riderID)
}
