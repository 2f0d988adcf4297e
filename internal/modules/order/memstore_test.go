package order

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"courier/internal/modules/matching"
	"courier/internal/types"
)

// memStore is an in-memory Store. A single mutex serializes transactions and
// each transaction works on a copy that is swapped in only on success.
type memStore struct {
	mu    sync.Mutex
	state memState

	failAppend error
}

type memState struct {
	vendors   map[types.ID]Vendor
	addresses map[types.ID]types.ID
	products  map[types.ID]Product
	riders    []matching.Rider
	orders    map[types.ID]Order
	events    []Event
	orderSeq  []types.ID
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		vendors:   map[types.ID]Vendor{},
		addresses: map[types.ID]types.ID{},
		products:  map[types.ID]Product{},
		orders:    map[types.ID]Order{},
	}}
}

func (s memState) clone() memState {
	c := s
	c.vendors = maps.Clone(s.vendors)
	c.addresses = maps.Clone(s.addresses)
	c.products = maps.Clone(s.products)
	c.riders = slices.Clone(s.riders)
	c.orders = make(map[types.ID]Order, len(s.orders))
	for id, o := range s.orders {
		o.Lines = slices.Clone(o.Lines)
		c.orders[id] = o
	}
	c.events = slices.Clone(s.events)
	c.orderSeq = slices.Clone(s.orderSeq)
	return c
}

func (s *memStore) addVendor(v Vendor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.vendors[v.ID] = v
}

func (s *memStore) addProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[p.ID] = p
}

func (s *memStore) addAddress(id, userID types.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.addresses[id] = userID
}

func (s *memStore) addRider(r matching.Rider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.riders = append(s.state.riders, r)
}

func (s *memStore) product(id types.ID) Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.products[id]
}

func (s *memStore) setPrice(id types.ID, price types.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.state.products[id]
	p.Price = price
	s.state.products[id] = p
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.orders)
}

func (s *memStore) eventLog(orderID types.ID) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.state.events {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.state.clone()
	if err := fn(ctx, &memTx{st: &work, failAppend: s.failAppend}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *memStore) Get(_ context.Context, id types.ID) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.get(id)
}

func (s *memStore) ListByCustomer(_ context.Context, customerID types.ID) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.list(func(o Order) bool { return o.CustomerID == customerID }), nil
}

func (s *memStore) ListByVendorOwner(_ context.Context, ownerID types.ID, status *Status) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.list(func(o Order) bool {
		return s.state.vendors[o.VendorID].OwnerID == ownerID && (status == nil || o.Status == *status)
	}), nil
}

func (s *memStore) ActiveForRider(_ context.Context, riderID types.ID) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := s.state.list(func(o Order) bool {
		return o.RiderID != nil && *o.RiderID == riderID && slices.Contains(ActiveStatuses, o.Status)
	})
	if len(active) == 0 {
		return nil, ErrNotFound
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].UpdatedAt.After(active[j].UpdatedAt) })
	return &active[0], nil
}

func (s *memStore) Earnings(_ context.Context, riderID types.ID) (Earnings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var e Earnings
	for _, o := range s.state.orders {
		if o.RiderID != nil && *o.RiderID == riderID && o.Status == StatusDelivered {
			e.DeliveredOrders++
			e.TotalDelivered = e.TotalDelivered.Add(o.TotalAmount)
		}
	}
	return e, nil
}

func (s *memState) get(id types.ID) (*Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o.Lines = slices.Clone(o.Lines)
	o.VendorOwnerID = s.vendors[o.VendorID].OwnerID
	o.RiderUserID = nil
	if o.RiderID != nil {
		for _, r := range s.riders {
			if r.ID == *o.RiderID {
				uid := r.UserID
				o.RiderUserID = &uid
			}
		}
	}
	return &o, nil
}

// list returns matching orders newest first.
func (s *memState) list(keep func(Order) bool) []Order {
	var out []Order
	for i := len(s.orderSeq) - 1; i >= 0; i-- {
		o, _ := s.get(s.orderSeq[i])
		if keep(*o) {
			out = append(out, *o)
		}
	}
	return out
}

type memTx struct {
	st         *memState
	failAppend error
}

func (t *memTx) EligibleRiders(context.Context) ([]matching.Rider, error) {
	var out []matching.Rider
	for _, r := range t.st.riders {
		if r.Eligible() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *memTx) Vendor(_ context.Context, id types.ID) (*Vendor, error) {
	v, ok := t.st.vendors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (t *memTx) AddressBelongsTo(_ context.Context, addressID, customerID types.ID) (bool, error) {
	owner, ok := t.st.addresses[addressID]
	return ok && owner == customerID, nil
}

func (t *memTx) LockProducts(_ context.Context, ids []types.ID) (map[types.ID]Product, error) {
	out := make(map[types.ID]Product, len(ids))
	for _, id := range ids {
		if p, ok := t.st.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *memTx) DecrementStock(_ context.Context, productID types.ID, qty int) error {
	p := t.st.products[productID]
	if p.Stock < qty {
		return invalidState("insufficient stock for product %s", productID)
	}
	p.Stock -= qty
	t.st.products[productID] = p
	return nil
}

func (t *memTx) Insert(_ context.Context, o *Order) error {
	if _, dup := t.st.orders[o.ID]; dup {
		return errors.New("duplicate order id")
	}
	c := *o
	c.Lines = slices.Clone(o.Lines)
	t.st.orders[o.ID] = c
	t.st.orderSeq = append(t.st.orderSeq, o.ID)
	return nil
}

func (t *memTx) Lock(_ context.Context, id types.ID) (*Order, error) {
	return t.st.get(id)
}

func (t *memTx) Update(_ context.Context, o *Order) (bool, error) {
	cur, ok := t.st.orders[o.ID]
	if !ok || cur.StatusVersion != o.StatusVersion {
		return false, nil
	}
	cur.Status = o.Status
	cur.RiderID = o.RiderID
	cur.StatusVersion++
	cur.UpdatedAt = time.Now()
	t.st.orders[o.ID] = cur
	return true, nil
}

func (t *memTx) AppendEvent(_ context.Context, e *Event) error {
	if t.failAppend != nil {
		return t.failAppend
	}
	t.st.events = append(t.st.events, *e)
	return nil
}
