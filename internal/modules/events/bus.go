// README: Event bus builds realtime frames and hands them to a transport.
package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"courier/internal/types"
)

const (
	FrameOrderEvent = "order_event"
	FrameLocation   = "location_update"
)

type OrderEventFrame struct {
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	OrderID    string         `json:"order_id"`
	Payload    map[string]any `json:"payload"`
	ServerTime time.Time      `json:"server_time"`
}

type LocationFrame struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"order_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RiderID    string    `json:"rider_id"`
	ServerTime time.Time `json:"server_time"`
}

// Transport moves an encoded frame to every subscriber of the order group,
// possibly across processes.
type Transport interface {
	Publish(ctx context.Context, orderID types.ID, frame []byte) error
}

// Sink receives order lifecycle frames for export outside the realtime path.
type Sink interface {
	Export(ctx context.Context, orderID types.ID, frame []byte) error
}

type Bus struct {
	transport Transport
	sink      Sink
	log       *zap.Logger
	now       func() time.Time
}

// NewBus wires a transport and an optional sink (nil disables export).
func NewBus(transport Transport, sink Sink, log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{transport: transport, sink: sink, log: log, now: time.Now}
}

// PublishOrderEvent never fails the caller; delivery problems are logged.
func (b *Bus) PublishOrderEvent(ctx context.Context, orderID types.ID, name string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	frame, err := json.Marshal(OrderEventFrame{
		Type:       FrameOrderEvent,
		Name:       name,
		OrderID:    orderID.String(),
		Payload:    payload,
		ServerTime: b.now().UTC(),
	})
	if err != nil {
		b.log.Error("encode order event", zap.String("order_id", orderID.String()), zap.Error(err))
		return
	}
	b.send(ctx, orderID, frame)
	if b.sink != nil {
		if err := b.sink.Export(ctx, orderID, frame); err != nil {
			b.log.Warn("order event export failed",
				zap.String("order_id", orderID.String()),
				zap.String("name", name),
				zap.Error(err),
			)
		}
	}
}

func (b *Bus) PublishLocation(ctx context.Context, orderID, riderID types.ID, lat, lng float64) {
	frame, err := json.Marshal(LocationFrame{
		Type:       FrameLocation,
		OrderID:    orderID.String(),
		Lat:        lat,
		Lng:        lng,
		RiderID:    riderID.String(),
		ServerTime: b.now().UTC(),
	})
	if err != nil {
		b.log.Error("encode location frame", zap.String("order_id", orderID.String()), zap.Error(err))
		return
	}
	b.send(ctx, orderID, frame)
}

func (b *Bus) send(ctx context.Context, orderID types.ID, frame []byte) {
	if b.transport == nil {
		return
	}
	if err := b.transport.Publish(ctx, orderID, frame); err != nil {
		b.log.Warn("realtime publish failed", zap.String("order_id", orderID.String()), zap.Error(err))
	}
}
