// README: Order store backed by PostgreSQL.
package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier/internal/modules/access"
	"courier/internal/modules/matching"
	"courier/internal/types"
)

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return pgx.BeginFunc(ctx, s.db, func(t pgx.Tx) error {
		return fn(ctx, &pgTx{q: t})
	})
}

const selectOrder = `
    SELECT o.id, o.customer_id, o.vendor_id, o.rider_id, o.delivery_address_id,
           o.status, o.status_version, o.total_amount, o.payment_method, o.payment_status,
           o.created_at, o.updated_at, v.owner_id, r.user_id
    FROM orders o
    JOIN vendors v ON v.id = o.vendor_id
    LEFT JOIN riders r ON r.id = o.rider_id`

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Order, error) {
	return getOrder(ctx, s.db, selectOrder+` WHERE o.id = $1`, string(id))
}

func (s *PGStore) ListByCustomer(ctx context.Context, customerID types.ID) ([]Order, error) {
	return listOrders(ctx, s.db, selectOrder+`
        WHERE o.customer_id = $1
        ORDER BY o.created_at DESC`, string(customerID))
}

func (s *PGStore) ListByVendorOwner(ctx context.Context, ownerID types.ID, status *Status) ([]Order, error) {
	var st *string
	if status != nil {
		v := string(*status)
		st = &v
	}
	return listOrders(ctx, s.db, selectOrder+`
        WHERE v.owner_id = $1 AND ($2::text IS NULL OR o.status = $2)
        ORDER BY o.created_at DESC`, string(ownerID), st)
}

func (s *PGStore) ActiveForRider(ctx context.Context, riderID types.ID) (*Order, error) {
	active := make([]string, 0, len(ActiveStatuses))
	for _, st := range ActiveStatuses {
		active = append(active, string(st))
	}
	return getOrder(ctx, s.db, selectOrder+`
        WHERE o.rider_id = $1 AND o.status = ANY($2)
        ORDER BY o.updated_at DESC
        LIMIT 1`, string(riderID), active)
}

func (s *PGStore) Earnings(ctx context.Context, riderID types.ID) (Earnings, error) {
	var e Earnings
	err := s.db.QueryRow(ctx, `
        SELECT COUNT(*), COALESCE(SUM(total_amount), 0)
        FROM orders
        WHERE rider_id = $1 AND status = $2`,
		string(riderID), string(StatusDelivered),
	).Scan(&e.DeliveredOrders, &e.TotalDelivered)
	return e, err
}

// LoadAccess satisfies access.Loader.
func (s *PGStore) LoadAccess(ctx context.Context, orderID types.ID) (access.Record, error) {
	var (
		rec         access.Record
		customerID  string
		ownerID     string
		riderUserID *string
	)
	err := s.db.QueryRow(ctx, `
        SELECT o.customer_id, v.owner_id, r.user_id
        FROM orders o
        JOIN vendors v ON v.id = o.vendor_id
        LEFT JOIN riders r ON r.id = o.rider_id
        WHERE o.id = $1`, string(orderID),
	).Scan(&customerID, &ownerID, &riderUserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, access.ErrNotFound
	}
	if err != nil {
		return rec, err
	}
	rec.CustomerID = types.ID(customerID)
	rec.VendorOwnerID = types.ID(ownerID)
	rec.RiderOwnerID = toIDPtr(riderUserID)
	return rec, nil
}

type pgTx struct {
	q querier
}

func (t *pgTx) EligibleRiders(ctx context.Context) ([]matching.Rider, error) {
	rows, err := t.q.Query(ctx, `
        SELECT id, user_id, is_online, kyc_status, current_lat, current_lng
        FROM riders
        WHERE is_online AND kyc_status = $1
          AND current_lat IS NOT NULL AND current_lng IS NOT NULL`,
		string(matching.VerificationApproved),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []matching.Rider
	for rows.Next() {
		var (
			r        matching.Rider
			id, uid  string
			lat, lng *float64
		)
		if err := rows.Scan(&id, &uid, &r.Online, &r.Verification, &lat, &lng); err != nil {
			return nil, err
		}
		r.ID, r.UserID = types.ID(id), types.ID(uid)
		if lat != nil && lng != nil {
			r.Location = &types.Point{Lat: *lat, Lng: *lng}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *pgTx) Vendor(ctx context.Context, id types.ID) (*Vendor, error) {
	var (
		v       Vendor
		vid     string
		ownerID string
	)
	err := t.q.QueryRow(ctx, `
        SELECT id, owner_id, latitude, longitude, is_open
        FROM vendors WHERE id = $1`, string(id),
	).Scan(&vid, &ownerID, &v.Location.Lat, &v.Location.Lng, &v.Open)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: vendor", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	v.ID, v.OwnerID = types.ID(vid), types.ID(ownerID)
	return &v, nil
}

func (t *pgTx) AddressBelongsTo(ctx context.Context, addressID, customerID types.ID) (bool, error) {
	var ok bool
	err := t.q.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM addresses WHERE id = $1 AND user_id = $2)`,
		string(addressID), string(customerID),
	).Scan(&ok)
	return ok, err
}

func (t *pgTx) LockProducts(ctx context.Context, ids []types.ID) (map[types.ID]Product, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	rows, err := t.q.Query(ctx, `
        SELECT id, vendor_id, price, stock, is_active
        FROM products
        WHERE id = ANY($1)
        ORDER BY id
        FOR UPDATE`, raw,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[types.ID]Product, len(ids))
	for rows.Next() {
		var (
			p            Product
			id, vendorID string
		)
		if err := rows.Scan(&id, &vendorID, &p.Price, &p.Stock, &p.Active); err != nil {
			return nil, err
		}
		p.ID, p.VendorID = types.ID(id), types.ID(vendorID)
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (t *pgTx) DecrementStock(ctx context.Context, productID types.ID, qty int) error {
	tag, err := t.q.Exec(ctx, `
        UPDATE products SET stock = stock - $2
        WHERE id = $1 AND stock >= $2`, string(productID), qty,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return invalidState("insufficient stock for product %s", productID)
	}
	return nil
}

func (t *pgTx) Insert(ctx context.Context, o *Order) error {
	_, err := t.q.Exec(ctx, `
        INSERT INTO orders (
            id, customer_id, vendor_id, rider_id, delivery_address_id,
            status, status_version, total_amount, payment_method, payment_status,
            created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(o.ID),
		string(o.CustomerID),
		string(o.VendorID),
		toStringPtr(o.RiderID),
		toStringPtr(o.DeliveryAddressID),
		string(o.Status),
		o.StatusVersion,
		o.TotalAmount,
		string(o.PaymentMethod),
		string(o.PaymentStatus),
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return err
	}

	b := &pgx.Batch{}
	for _, l := range o.Lines {
		b.Queue(`
            INSERT INTO order_items (order_id, product_id, quantity, price)
            VALUES ($1, $2, $3, $4)`,
			string(o.ID), string(l.ProductID), l.Quantity, l.Price,
		)
	}
	return t.q.SendBatch(ctx, b).Close()
}

func (t *pgTx) Lock(ctx context.Context, id types.ID) (*Order, error) {
	return getOrder(ctx, t.q, selectOrder+` WHERE o.id = $1 FOR UPDATE OF o`, string(id))
}

func (t *pgTx) Update(ctx context.Context, o *Order) (bool, error) {
	tag, err := t.q.Exec(ctx, `
        UPDATE orders
        SET status = $1,
            rider_id = $2,
            status_version = status_version + 1,
            updated_at = NOW()
        WHERE id = $3 AND status_version = $4`,
		string(o.Status),
		toStringPtr(o.RiderID),
		string(o.ID),
		o.StatusVersion,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) AppendEvent(ctx context.Context, e *Event) error {
	_, err := t.q.Exec(ctx, `
        INSERT INTO order_state_events (
            order_id, from_status, to_status, actor_type, actor_id, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.OrderID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func getOrder(ctx context.Context, q querier, sql string, args ...any) (*Order, error) {
	rows, err := listOrders(ctx, q, sql, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: order", ErrNotFound)
	}
	return &rows[0], nil
}

func listOrders(ctx context.Context, q querier, sql string, args ...any) ([]Order, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, len(out))
	for i := range out {
		ids[i] = string(out[i].ID)
	}
	lines, err := loadLines(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, nil
}

func scanOrder(row pgx.CollectableRow) (Order, error) {
	var (
		o                               Order
		id, customerID, vendorID, owner string
		riderID, addressID, riderUserID *string
	)
	err := row.Scan(
		&id, &customerID, &vendorID, &riderID, &addressID,
		&o.Status, &o.StatusVersion, &o.TotalAmount, &o.PaymentMethod, &o.PaymentStatus,
		&o.CreatedAt, &o.UpdatedAt, &owner, &riderUserID,
	)
	if err != nil {
		return o, err
	}
	o.ID = types.ID(id)
	o.CustomerID = types.ID(customerID)
	o.VendorID = types.ID(vendorID)
	o.VendorOwnerID = types.ID(owner)
	o.RiderID = toIDPtr(riderID)
	o.DeliveryAddressID = toIDPtr(addressID)
	o.RiderUserID = toIDPtr(riderUserID)
	return o, nil
}

func loadLines(ctx context.Context, q querier, orderIDs []string) (map[types.ID][]Line, error) {
	rows, err := q.Query(ctx, `
        SELECT order_id, product_id, quantity, price
        FROM order_items
        WHERE order_id = ANY($1)
        ORDER BY id`, orderIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[types.ID][]Line, len(orderIDs))
	for rows.Next() {
		var (
			l                  Line
			orderID, productID string
		)
		if err := rows.Scan(&orderID, &productID, &l.Quantity, &l.Price); err != nil {
			return nil, err
		}
		l.ProductID = types.ID(productID)
		out[types.ID(orderID)] = append(out[types.ID(orderID)], l)
	}
	return out, rows.Err()
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toIDPtr(v *string) *types.ID {
	if v == nil {
		return nil
	}
	id := types.ID(*v)
	return &id
}
