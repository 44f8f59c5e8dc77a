package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/tutorslot/tutorslot/libs/config"
	"github.com/tutorslot/tutorslot/libs/db"
	"github.com/tutorslot/tutorslot/libs/httpx"
	"github.com/tutorslot/tutorslot/libs/kafkax"
	otelx "github.com/tutorslot/tutorslot/libs/otel"
	"github.com/tutorslot/tutorslot/libs/runtime"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/conflict"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/consumer"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/handlers"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/identity"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/inbox"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/outbox"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/reservation"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/restore"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/schedule"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if config.String("RUN_MIGRATIONS", "true") == "true" {
		if err := storage.Migrate(ctx, pool); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
	}

	windowRepo := storage.NewWindowRepository(pool)
	bookingRepo := storage.NewBookingRepository(pool)
	reservationRepo := storage.NewReservationRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	checker := conflict.NewChecker(pool, windowRepo, bookingRepo, reservationRepo)
	manager := reservation.NewManager(pool, reservationRepo, bookingRepo, outboxRepo, checker, logger,
		config.Duration("RESERVATION_TTL", model.ReservationTTL))
	defer manager.Shutdown()

	sweeper := reservation.NewSweeper(pool, reservationRepo, logger,
		config.Duration("RESERVATION_SWEEP_INTERVAL", 30*time.Second),
		config.Int("RESERVATION_SWEEP_BATCH", 100))
	go sweeper.Run(ctx)

	restorer := restore.NewRestorer(pool, windowRepo, bookingRepo, outboxRepo, logger)
	availabilitySvc := schedule.NewAvailabilityService(pool, windowRepo, bookingRepo, logger)
	bookingSvc := schedule.NewBookingService(pool, bookingRepo, outboxRepo, restorer, logger)
	slotSvc := schedule.NewSlotService(pool, windowRepo, bookingRepo, reservationRepo, logger)

	identityProvider, err := identity.NewProvider(config.String("IDENTITY_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("identity provider init failed; checks disabled", "err", err)
		identityProvider = nil
	}

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	// Payment completion drives promotion: a finished checkout turns the hold
	// into a pending booking.
	paymentTopic := config.String("KAFKA_CONSUME_TOPIC", "payment.checkout.completed.v1")
	if strings.TrimSpace(paymentTopic) != "" && strings.TrimSpace(brokers) != "" {
		paymentConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "scheduling-service"),
			Topic:   paymentTopic,
		}, func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				ReservationID string `json:"reservation_id"`
				Notes         string `json:"notes"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.ReservationID == "" {
				logger.Error("missing reservation_id in event", "topic", msg.Topic)
				return nil
			}

			_, err := manager.Promote(ctx, payload.ReservationID, reservation.BookingMeta{Notes: payload.Notes})
			switch model.KindOf(err) {
			case "":
				return err
			case model.ErrorKindReservationExpired, model.ErrorKindNotFound, model.ErrorKindSlotUnavailable:
				// Redelivery cannot fix these; payment reconciliation handles the refund.
				logger.Warn("promotion skipped", "reservation_id", payload.ReservationID, "err", err)
				return nil
			default:
				return err
			}
		})
		go paymentConsumer.Run(ctx)
	}

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}

	var rateLimit httpx.Middleware
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer func() { _ = rdb.Close() }()
		limiter := httpx.NewRedisRateLimiter(rdb,
			config.Int("RATE_LIMIT_REQUESTS", 60),
			config.Duration("RATE_LIMIT_WINDOW", time.Minute),
			service)
		rateLimit = limiter.Middleware(logger, true)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	}

	availabilityHandler := handlers.NewAvailabilityHandler(availabilitySvc, identityProvider, logger)
	slotHandler := handlers.NewSlotHandler(slotSvc, schedule.DefaultRefreshPolicy(), logger)
	reservationHandler := handlers.NewReservationHandler(manager, identityProvider, logger)
	bookingHandler := handlers.NewBookingHandler(bookingSvc, identityProvider, logger)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/slots", slotHandler.List)
	mux.HandleFunc("/api/v1/reservations", reservationHandler.Create)
	mux.HandleFunc("/api/v1/reservations/renew", reservationHandler.Renew)
	mux.HandleFunc("/api/v1/reservations/cancel", reservationHandler.Cancel)
	mux.HandleFunc("/api/v1/reservations/promote", reservationHandler.Promote)
	mux.HandleFunc("/api/v1/bookings", bookingHandler.List)
	mux.HandleFunc("/api/v1/bookings/confirm", bookingHandler.Confirm)
	mux.HandleFunc("/api/v1/bookings/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/availability", availabilityHandler.DeclareOrQuery)
	mux.HandleFunc("/api/v1/availability/toggle", availabilityHandler.Toggle)
	mux.HandleFunc("/api/v1/availability/delete", availabilityHandler.Delete)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithBodyLimit(1 << 20),
		httpx.WithAccessLog(logger),
	}
	if rateLimit != nil {
		middlewares = append(middlewares, rateLimit)
	}
	if origins := config.String("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		middlewares = append(middlewares, httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(origins, ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Idempotency-Key", "X-Request-Id"},
		}))
	}
	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
