package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/booking"
	"github.com/iliyamo/bus-seat-reservation/internal/config"
	"github.com/iliyamo/bus-seat-reservation/internal/database"
	"github.com/iliyamo/bus-seat-reservation/internal/handler"
	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
	"github.com/iliyamo/bus-seat-reservation/internal/payment"
	"github.com/iliyamo/bus-seat-reservation/internal/queue"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
	"github.com/iliyamo/bus-seat-reservation/internal/router"
	"github.com/iliyamo/bus-seat-reservation/internal/store"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Repositories.
	trips := repository.NewTripRepo(db)
	seats := repository.NewSeatRepo(db)
	holds := repository.NewSeatHoldRepo(db)
	ledger := repository.NewLedgerRepo(db)
	users := repository.NewUserRepo(db)
	routes := repository.NewFrequentRouteRepo(db)

	// Snapshot synchronizer and in-memory booking registry.
	sync := store.New(db, cfg.DataDir, trips, seats, ledger)
	registry := booking.NewRegistry(time.Duration(cfg.HoldTTLMin) * time.Minute)
	gateway := payment.NewSimulated()

	// Write the initial snapshots so operator tooling sees committed
	// state even before the first booking.
	if err := sync.Flush(context.Background()); err != nil {
		log.Printf("initial snapshot flush failed: %v", err)
	}

	// Redis-backed middleware; nil client degrades to no-ops.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, running without cache and rate limiting")
	}
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	limitMW := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	// Notification consumer reads ticket events off the broker and
	// appends delivery lines to logs/notifications.log.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	// Drop abandoned in-memory transactions; the seat holds behind
	// them expire in the database on their own.
	go func() {
		tick := time.NewTicker(time.Minute)
		defer tick.Stop()
		for range tick.C {
			if n := registry.Sweep(); n > 0 {
				log.Printf("swept %d expired booking transactions", n)
			}
		}
	}()

	// Handlers.
	authH := handler.NewAuthHandler(cfg, users)
	tripH := handler.NewTripHandler(trips, seats)
	bookingH := handler.NewBookingHandler(trips, seats, holds, ledger, users, routes, sync, registry, gateway)
	cancelH := handler.NewCancellationHandler(trips, seats, ledger, users, sync)
	ticketH := handler.NewTicketHandler(trips, ledger)
	routeH := handler.NewRouteHandler(routes)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH)
	router.RegisterPublic(e, tripH, cacheMW)
	router.RegisterCustomer(e, cfg.JWTSecret, authH, bookingH, cancelH, ticketH, routeH, limitMW)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
