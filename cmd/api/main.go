package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mentorbay/scheduling/internal/app"
	"github.com/mentorbay/scheduling/internal/clock"
	"github.com/mentorbay/scheduling/internal/config"
	"github.com/mentorbay/scheduling/internal/events"
	"github.com/mentorbay/scheduling/internal/meeting"
	"github.com/mentorbay/scheduling/internal/storage/postgres"
	transporthttp "github.com/mentorbay/scheduling/internal/transport/http"
	"github.com/mentorbay/scheduling/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.EventExchange)
		if err != nil {
			logger.Fatal("connect to broker", zap.Error(err))
		}
		publisher = amqpPub
	} else {
		logger.Warn("AMQP_URL not set, booking events will not be published")
	}
	defer func() { _ = publisher.Close() }()

	clk := clock.NewSystem()
	slotRepo := postgres.NewSlotRepository(pool)
	bookingRepo := postgres.NewBookingRepository(pool)
	ledgerRepo := postgres.NewLedgerRepository(pool)

	slotSvc := app.NewSlotService(slotRepo, bookingRepo, clk)
	bookingSvc := app.NewBookingService(bookingRepo, slotRepo, clk, publisher, logger,
		app.WithPaymentWindow(cfg.PaymentWindow))
	reconciler := app.NewReconciler(ledgerRepo, bookingRepo, slotRepo, clk, publisher, logger)
	binder := meeting.NewBinder(bookingRepo, clk, cfg.MeetingBaseURL, []byte(cfg.JoinTokenSecret),
		meeting.WithGraceWindows(cfg.JoinOpenGrace, cfg.JoinCloseGrace))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", transporthttp.HealthHandler)
	mux.Handle("GET /slots", transporthttp.HandleListSlots(slotSvc))
	mux.Handle("POST /slots", transporthttp.HandleCreateSlot(slotSvc))
	mux.Handle("DELETE /slots/{id}", transporthttp.HandleDeactivateSlot(slotSvc))
	mux.Handle("POST /bookings", transporthttp.HandleCreateBooking(bookingSvc))
	mux.Handle("GET /bookings/{id}", transporthttp.HandleGetBooking(bookingSvc))
	mux.Handle("POST /bookings/{id}/cancel", transporthttp.HandleCancelBooking(bookingSvc))
	mux.Handle("POST /bookings/{id}/join", transporthttp.HandleJoinBooking(binder))
	mux.Handle("POST /webhooks/payment", transporthttp.HandlePaymentWebhook(reconciler))
	mux.Handle("GET /admin/payment-events/unreviewed", transporthttp.HandleUnreviewedEvents(reconciler))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, mux), logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	sweeper := app.NewSweeper(bookingSvc, cfg.SweepInterval, logger)
	go sweeper.Run(sweepCtx)

	logger.Info("api listening", zap.String("port", cfg.Port))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	stopSweep()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}
