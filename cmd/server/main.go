package main // Entry point package

import (
	"context"
	"errors"
	"log" // Logging library
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/seat-admission/internal/admission"
	"github.com/iliyamo/seat-admission/internal/clock"
	"github.com/iliyamo/seat-admission/internal/config"
	"github.com/iliyamo/seat-admission/internal/database"
	"github.com/iliyamo/seat-admission/internal/handler"
	"github.com/iliyamo/seat-admission/internal/middleware"
	"github.com/iliyamo/seat-admission/internal/queue"
	"github.com/iliyamo/seat-admission/internal/repository"
	"github.com/iliyamo/seat-admission/internal/reservation"
	"github.com/iliyamo/seat-admission/internal/router"
	"github.com/iliyamo/seat-admission/internal/seathold"
	"github.com/iliyamo/seat-admission/internal/service"
	"github.com/iliyamo/seat-admission/internal/snapshot"
	"github.com/iliyamo/seat-admission/internal/sweeper"
	"github.com/iliyamo/seat-admission/internal/token"
)

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: .env not loaded: %v", err)
	}
	cfg := config.Load()
	acfg := config.LoadAdmissionConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db: open: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("db: migrate: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis: unavailable; caching, rate limiting and queue snapshots disabled")
	} else {
		defer rdb.Close()
	}

	clk := clock.Real()
	codec, err := token.NewCodec(cfg.TokenSecret, clk)
	if err != nil {
		log.Fatalf("token: %v", err)
	}

	reservations := repository.NewReservationRepo(db)
	holdRepo := repository.NewSeatHoldRepo(db)
	dateRepo := repository.NewSeatDateRepo(db)

	q := admission.New(admission.Config{
		EntryTTL:        acfg.QueueEntryTTL,
		BatchSize:       acfg.BatchSize,
		MinutesPerBatch: acfg.MinutesPerBatch,
	}, clk)
	seats := seathold.New(acfg.HoldTTL, clk)

	var events service.EventPublisher
	if cfg.RabbitMQURL != "" {
		pub := service.NewPublisher(cfg.RabbitMQURL)
		defer pub.Close()
		events = pub
	}

	svc := service.NewAdmissionService(service.Deps{
		Queue:        q,
		Seats:        seats,
		Committer:    reservation.New(seats, reservations, clk),
		Codec:        codec,
		Catalogue:    dateRepo,
		Reservations: reservations,
		Events:       events,
		Clock:        clk,
		SeatsPerDate: acfg.SeatsPerDate,
		SeatIDPrefix: acfg.SeatIDPrefix,
	})

	// Rebuild seats from the catalogue and reservations, then live holds
	// and the queue from their snapshots.
	var qstore snapshot.QueueStore
	if rdb != nil {
		qstore = repository.NewQueueSnapshotRepo(rdb, "admission:queue")
	}
	snap := snapshot.New(q, seats, qstore, holdRepo, dateRepo, reservations)
	dates, err := snap.Restore(ctx)
	if err != nil {
		log.Fatalf("snapshot: restore: %v", err)
	}
	log.Printf("snapshot: restored %d dates, %d queued", len(dates), q.Len())

	if acfg.SeedCurrentWeek {
		created, err := svc.InitializeWeek(ctx, clk.Now())
		if err != nil {
			log.Fatalf("seed: %v", err)
		}
		if len(created) > 0 {
			log.Printf("seed: created dates %v", created)
		}
	}

	var opts []sweeper.Option
	if acfg.SnapshotEnabled {
		opts = append(opts, sweeper.WithSnapshotter(snap))
	}
	go sweeper.New(q, seats, acfg.SweepInterval, opts...).Run(ctx)

	if cfg.RabbitMQURL != "" {
		go func() {
			if err := queue.StartReservationConsumer(ctx, cfg.RabbitMQURL, queue.DefaultLogPath); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("reservation-consumer: stopped: %v", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	respCache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)
	// Dates may have been seeded above; drop a list cached by an earlier run.
	if err := respCache.Invalidate(ctx, handler.RouteDates); err != nil {
		log.Printf("cache: %v", err)
	}
	h := handler.NewAdmissionHandler(svc)
	if respCache != nil {
		h.Cache = respCache
	}
	opt := router.Options{
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     respCache,
	}
	router.RegisterRoutes(e, h, opt)
	router.RegisterAdmission(e, h, opt)
	router.RegisterAdmin(e, h, opt)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http: shutdown: %v", err)
	}
	// Final snapshot so a restart resumes where this process stopped.
	if acfg.SnapshotEnabled {
		if err := snap.Save(shutdownCtx); err != nil {
			log.Printf("snapshot: final save: %v", err)
		}
	}
}
