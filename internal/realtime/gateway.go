// README: Realtime gateway: rider location ingestion and order subscriptions over websockets.
package realtime

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"courier/internal/auth"
	"courier/internal/modules/access"
	"courier/internal/modules/events"
	"courier/internal/modules/location"
	"courier/internal/types"
)

// Application close codes.
const (
	CloseBadRequest   = 4400
	CloseUnauthorized = 4401
	CloseForbidden    = 4403
)

// Location frames beyond this size are dropped as malformed; the connection
// stays open.
const maxLocationFrame = 4096

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Principal, error)
}

type AccessResolver interface {
	Resolve(ctx context.Context, orderID types.ID) (access.Record, error)
}

type Relay interface {
	Relay(ctx context.Context, riderUserID types.ID, p location.Ping)
}

type Config struct {
	LocationInterval time.Duration
	IdleTimeout      time.Duration
	PingInterval     time.Duration
	WriteTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.LocationInterval <= 0 {
		c.LocationInterval = location.DefaultInterval
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.IdleTimeout {
		c.PingInterval = c.IdleTimeout * 9 / 10
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

type Gateway struct {
	auth     Authenticator
	access   AccessResolver
	relay    Relay
	hub      *events.Hub
	cfg      Config
	log      *zap.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewGateway(authn Authenticator, acc AccessResolver, relay Relay, hub *events.Hub, cfg Config, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		auth:   authn,
		access: acc,
		relay:  relay,
		hub:    hub,
		cfg:    cfg.withDefaults(),
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are native apps; bearer tokens, not cookies, carry identity.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// Register mounts the websocket routes.
func (g *Gateway) Register(r gin.IRoutes) {
	r.GET("/ws/location", g.Location)
	r.GET("/ws/order", g.Order)
	r.GET("/ws/order/:order_id", g.Order)
}

// handshake authenticates the request. A missing credential yields an
// anonymous principal (ok=true, anonymous=true); an invalid one is answered
// with HTTP 401 before any upgrade and ok=false.
func (g *Gateway) handshake(c *gin.Context) (p auth.Principal, anonymous, ok bool) {
	token := auth.TokenFromRequest(c.Request)
	if token == "" {
		return auth.Principal{}, true, true
	}
	p, err := g.auth.Authenticate(c.Request.Context(), token)
	if errors.Is(err, auth.ErrInvalidCredential) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
		return auth.Principal{}, false, false
	}
	if err != nil {
		g.log.Error("ws authenticate", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return auth.Principal{}, false, false
	}
	return p, false, true
}

func (g *Gateway) upgrade(c *gin.Context) (*websocket.Conn, bool) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		g.log.Debug("ws upgrade failed", zap.Error(err))
		return nil, false
	}
	return conn, true
}

func (g *Gateway) reject(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(g.cfg.WriteTimeout))
	_ = conn.Close()
}

// Location ingests rider pings. The connection is publish-only and joins no
// group.
func (g *Gateway) Location(c *gin.Context) {
	p, anonymous, ok := g.handshake(c)
	if !ok {
		return
	}
	conn, ok := g.upgrade(c)
	if !ok {
		return
	}
	if anonymous {
		g.reject(conn, CloseUnauthorized, "unauthorized")
		return
	}
	if p.Role != auth.RoleRider {
		g.log.Info("ws_forbidden", zap.String("user_id", p.UserID.String()), zap.String("role", string(p.Role)), zap.String("kind", "location"))
		g.reject(conn, CloseForbidden, "forbidden")
		return
	}

	g.log.Info("ws_connected", zap.String("user_id", p.UserID.String()), zap.String("role", string(p.Role)), zap.String("kind", "location"))
	defer g.log.Info("ws_disconnected", zap.String("user_id", p.UserID.String()), zap.String("role", string(p.Role)), zap.String("kind", "location"))

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()
	go g.keepAlive(ctx, conn)
	defer conn.Close()

	throttle := location.NewThrottle(g.cfg.LocationInterval)
	g.prepareRead(conn)
	for {
		kind, r, err := conn.NextReader()
		if err != nil {
			return
		}
		// Unread remainder of an oversized frame is discarded by the next NextReader.
		frame, err := io.ReadAll(io.LimitReader(r, maxLocationFrame+1))
		if err != nil {
			return
		}
		g.extendRead(conn)
		if kind != websocket.TextMessage || len(frame) > maxLocationFrame {
			continue
		}
		ping, err := location.ParsePing(frame)
		if err != nil {
			continue
		}
		if !throttle.AllowAt(g.now()) {
			continue
		}
		g.relay.Relay(ctx, p.UserID, ping)
	}
}

// Order subscribes the caller to an order's event group after checking that
// the caller occupies its role's slot in the order's access record.
func (g *Gateway) Order(c *gin.Context) {
	p, anonymous, ok := g.handshake(c)
	if !ok {
		return
	}
	conn, ok := g.upgrade(c)
	if !ok {
		return
	}
	if anonymous {
		g.reject(conn, CloseUnauthorized, "unauthorized")
		return
	}

	orderID := types.ID(strings.TrimSpace(c.Param("order_id")))
	if orderID == "" {
		g.reject(conn, CloseBadRequest, "order id required")
		return
	}
	fields := []zap.Field{
		zap.String("user_id", p.UserID.String()),
		zap.String("role", string(p.Role)),
		zap.String("order_id", orderID.String()),
	}

	rec, err := g.access.Resolve(c.Request.Context(), orderID)
	if err != nil {
		if !errors.Is(err, access.ErrNotFound) {
			g.log.Warn("ws access resolve failed", append(fields, zap.Error(err))...)
		}
		g.reject(conn, CloseBadRequest, "unknown order")
		return
	}
	if !rec.Allows(p) {
		g.log.Info("ws_forbidden", fields...)
		g.reject(conn, CloseForbidden, "forbidden")
		return
	}

	sub := g.hub.Join(events.Group(orderID))
	g.log.Info("ws_connected", fields...)
	defer g.log.Info("ws_disconnected", fields...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		g.drain(conn)
	}()
	g.forward(conn, sub, done)

	g.hub.Leave(sub)
	_ = conn.Close()
	<-done
}

// forward writes every frame of sub to conn until the reader stops or a write
// fails.
func (g *Gateway) forward(conn *websocket.Conn, sub *events.Subscription, done <-chan struct{}) {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case frame, ok := <-sub.C():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(g.cfg.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

// drain discards client frames of any size without buffering them; it returns
// once the connection fails or idles past the read deadline.
func (g *Gateway) drain(conn *websocket.Conn) {
	g.prepareRead(conn)
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
		g.extendRead(conn)
	}
}

// keepAlive pings a publish-only connection so that idle peers are detected.
func (g *Gateway) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(g.cfg.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) prepareRead(conn *websocket.Conn) {
	g.extendRead(conn)
	conn.SetPongHandler(func(string) error {
		g.extendRead(conn)
		return nil
	})
}

func (g *Gateway) extendRead(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(g.cfg.IdleTimeout))
}
