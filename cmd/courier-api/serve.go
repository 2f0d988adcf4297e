// README: serve subcommand; wires stores, services, realtime fan-out and the HTTP server.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"courier/internal/auth"
	"courier/internal/config"
	apihttp "courier/internal/http"
	"courier/internal/http/handlers"
	"courier/internal/infra"
	"courier/internal/modules/access"
	"courier/internal/modules/events"
	"courier/internal/modules/location"
	"courier/internal/modules/matching"
	"courier/internal/modules/order"
	"courier/internal/modules/rider"
	"courier/internal/realtime"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			log, err := infra.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	if cfg.DB.MigrateOnStart {
		if err := infra.Migrate(cfg.DB.DSN); err != nil {
			return err
		}
	}

	db, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	rdb := infra.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if rdb != nil {
		defer rdb.Close()
	}

	tokens, err := tokenValidator(ctx, cfg.Auth)
	if err != nil {
		return err
	}
	authn := auth.NewAuthenticator(tokens, auth.NewStore(db))

	hub := events.NewHub(cfg.Realtime.HubBuffer, log.Named("hub"))
	var transport events.Transport = events.NewLocalTransport(hub)
	if rdb != nil {
		rt := events.NewRedisTransport(rdb, hub, log.Named("fanout"))
		// Subscribing retries in the background; publishes fail soft until it is up.
		go rt.Run(ctx, nil)
		transport = rt
	}

	var sink events.Sink
	producer, err := infra.NewKafkaProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Warn("kafka export disabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.Error(err))
	}
	if producer != nil {
		ks := events.NewKafkaSink(producer, cfg.Kafka.Topic, log.Named("kafka"))
		defer ks.Close()
		sink = ks
	}
	bus := events.NewBus(transport, sink, log.Named("bus"))

	orderStore := order.NewStore(db)
	var cache access.Cache = access.NopCache{}
	var positions location.PositionStore
	if rdb != nil {
		cache = access.NewRedisCache(rdb)
		positions = location.NewStore(rdb)
	}
	accessSvc := access.NewService(cache, orderStore, cfg.Access.TTL, log.Named("access"))
	orderSvc := order.NewService(orderStore, matching.NewService(log.Named("matching")), bus, accessSvc, log.Named("order"))
	riderSvc := rider.NewService(rider.NewStore(db), log.Named("rider"))
	locationSvc := location.NewService(bus, positions, log.Named("location"))

	gateway := realtime.NewGateway(authn, accessSvc, locationSvc, hub, realtime.Config{
		LocationInterval: cfg.Realtime.LocationInterval,
		IdleTimeout:      cfg.Realtime.IdleTimeout,
		PingInterval:     cfg.Realtime.PingInterval,
		WriteTimeout:     cfg.Realtime.WriteTimeout,
	}, log.Named("realtime"))

	router := apihttp.NewRouter(apihttp.RouterDeps{
		Authenticator: authn,
		Customer:      handlers.NewCustomerHandler(orderSvc),
		Rider:         handlers.NewRiderHandler(orderSvc, riderSvc),
		Vendor:        handlers.NewVendorHandler(orderSvc),
		Health:        handlers.NewHealthHandler(2*time.Second, readinessChecks(db, rdb)...),
		Realtime:      gateway,
		CORSOrigins:   cfg.HTTP.CORSOrigins,
		Log:           log.Named("http"),
	})

	return apihttp.NewServer(cfg.HTTP.Addr, router, cfg.HTTP.ShutdownTimeout, log).Run(ctx)
}

func tokenValidator(ctx context.Context, cfg config.AuthConfig) (auth.TokenValidator, error) {
	switch cfg.Provider {
	case "firebase":
		v, err := infra.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredsFile, cfg.CheckRevoked)
		if err != nil {
			return nil, fmt.Errorf("firebase init: %w", err)
		}
		return auth.NewFirebaseValidator(v), nil
	default:
		return auth.NewJWTValidator([]byte(cfg.JWTSecret)), nil
	}
}

func readinessChecks(db *pgxpool.Pool, rdb *redis.Client) []handlers.Check {
	checks := []handlers.Check{{Name: "postgres", Fn: db.Ping}}
	if rdb != nil {
		checks = append(checks, handlers.Check{Name: "redis", Fn: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	return checks
}
