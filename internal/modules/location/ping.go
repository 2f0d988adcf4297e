// README: Rider location ping decoding and validation.
package location

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"courier/internal/types"
)

var ErrMalformedPing = errors.New("malformed location ping")

// Ping is one validated location sample for an order.
type Ping struct {
	OrderID types.ID
	Lat     float64
	Lng     float64
}

type rawPing struct {
	OrderID json.RawMessage `json:"order_id"`
	Lat     json.RawMessage `json:"lat"`
	Lng     json.RawMessage `json:"lng"`
}

// ParsePing decodes a client frame. Coordinates may be JSON numbers or numeric
// strings; anything else, or an out-of-range point, is ErrMalformedPing.
func ParsePing(frame []byte) (Ping, error) {
	var raw rawPing
	if err := json.Unmarshal(frame, &raw); err != nil {
		return Ping{}, ErrMalformedPing
	}
	var orderID string
	if err := json.Unmarshal(raw.OrderID, &orderID); err != nil {
		return Ping{}, ErrMalformedPing
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Ping{}, ErrMalformedPing
	}
	lat, ok := coordinate(raw.Lat)
	if !ok {
		return Ping{}, ErrMalformedPing
	}
	lng, ok := coordinate(raw.Lng)
	if !ok {
		return Ping{}, ErrMalformedPing
	}
	if !ValidPoint(lat, lng) {
		return Ping{}, ErrMalformedPing
	}
	return Ping{OrderID: types.ID(orderID), Lat: lat, Lng: lng}, nil
}

func coordinate(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
