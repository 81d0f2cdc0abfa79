package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"stagevote/internal/competition"
	compHandler "stagevote/internal/competition/handler"
	compService "stagevote/internal/competition/service"
	compstore "stagevote/internal/competition/store"
	"stagevote/internal/events"
	"stagevote/internal/events/kafka"
	"stagevote/internal/fraudguard"
	voteHandler "stagevote/internal/fraudguard/handler"
	fraudmetrics "stagevote/internal/fraudguard/metrics"
	voteService "stagevote/internal/fraudguard/service"
	"stagevote/internal/leaderboard"
	lbcache "stagevote/internal/leaderboard/cache"
	lbHandler "stagevote/internal/leaderboard/handler"
	lbmetrics "stagevote/internal/leaderboard/metrics"
	"stagevote/internal/ledger"
	ledgerstore "stagevote/internal/ledger/store"
	"stagevote/internal/participant"
	partHandler "stagevote/internal/participant/handler"
	partService "stagevote/internal/participant/service"
	partstore "stagevote/internal/participant/store"
	"stagevote/internal/platform/config"
	"stagevote/internal/platform/httpserver"
	"stagevote/internal/platform/logger"
	"stagevote/internal/platform/postgres"
	platformredis "stagevote/internal/platform/redis"
	"stagevote/internal/platform/token"
	"stagevote/internal/progression"
	progHandler "stagevote/internal/progression/handler"
	progmetrics "stagevote/internal/progression/metrics"
	progService "stagevote/internal/progression/service"
	advstore "stagevote/internal/progression/store"
	"stagevote/internal/ratelimit"
	"stagevote/internal/ratelimit/store/bucket"
	"stagevote/internal/scheduler"
	httptransport "stagevote/internal/transport/http"
)

const (
	eventInboxBuffer    = 1024
	leaderboardCacheTTL = 5 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// dbHealth adapts *sql.DB to the readiness probe.
type dbHealth struct{ db *sql.DB }

func (h dbHealth) Health(ctx context.Context) error { return h.db.PingContext(ctx) }

// main wires the engine's dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	health := httptransport.NewHealthHandler()

	// Persistence. An empty DSN selects the in-memory stores.
	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}

	var (
		competitions competition.Store
		participants participant.Store
		votes        ledger.Store
		advancements progression.Store
	)
	if db != nil {
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
		competitions = compstore.NewPostgresStore(db)
		participants = partstore.NewPostgresStore(db)
		votes = ledgerstore.NewPostgresStore(db)
		advancements = advstore.NewPostgresStore(db)
		health.AddCheck("postgres", dbHealth{db: db})
		log.Info("using postgres stores")
	} else {
		competitions = compstore.NewInMemoryStore()
		participants = partstore.NewInMemoryStore()
		votes = ledgerstore.NewInMemoryStore()
		advancements = advstore.NewInMemoryStore()
		log.Warn("no postgres DSN configured, using in-memory stores")
	}

	// Shared state. An empty Redis URL selects per-process equivalents.
	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}

	var buckets ratelimit.BucketStore
	var boardCache leaderboard.Cache
	if rdb != nil {
		defer rdb.Close()
		buckets = bucket.NewRedisStore(rdb.Client)
		boardCache = lbcache.NewRedisCache(rdb.Client, leaderboardCacheTTL)
		health.AddCheck("redis", rdb)
		log.Info("using redis for rate limits and leaderboard cache")
	} else {
		buckets = bucket.NewInMemoryStore()
		boardCache = lbcache.NewInMemoryCache(leaderboardCacheTTL)
		log.Warn("no redis URL configured, rate limits are per-process")
	}

	limiter, err := ratelimit.NewLimiter(buckets, ratelimit.Limits{
		VoterLimit:       cfg.RateLimit.VoterLimit,
		FingerprintLimit: cfg.RateLimit.FingerprintLimit,
		Window:           cfg.RateLimit.Window,
	})
	if err != nil {
		return err
	}

	// Events leave the engine through the dispatcher. Kafka is optional; the
	// memory sink keeps local development observable.
	dispatcher := events.NewDispatcher(eventInboxBuffer, log)
	sinks := []events.Sink{events.NewMemorySink()}
	publisher, err := kafka.New(cfg.Kafka)
	if err != nil {
		return err
	}
	if publisher != nil {
		defer publisher.Close()
		sinks = append(sinks, publisher)
		log.Info("publishing events to kafka", "topic", cfg.Kafka.Topic)
	}
	worker := events.NewWorker(dispatcher.Inbox(), log, sinks...)

	tracker := ledger.NewTracker()

	hasher, err := fraudguard.NewHasher(cfg.FingerprintKey)
	if err != nil {
		return err
	}
	tokens := token.NewService(cfg.JWTSigningKey, "stagevote")

	// Services.
	lifecycle, err := compService.New(competitions, participants, log)
	if err != nil {
		return err
	}
	applications, err := partService.New(participants, competitions, log)
	if err != nil {
		return err
	}
	standings, err := leaderboard.New(participants, votes, log,
		leaderboard.WithCache(boardCache),
		leaderboard.WithMetrics(lbmetrics.New()),
	)
	if err != nil {
		return err
	}
	admission, err := voteService.New(competitions, participants, votes, tracker, limiter, dispatcher, log,
		voteService.WithMetrics(fraudmetrics.New()),
		voteService.WithPolicy(voteService.Policy{
			SingleVotePerCompetition: cfg.Votes.SingleVotePerCompetition,
		}),
	)
	if err != nil {
		return err
	}
	finalizer, err := progService.New(competitions, participants, advancements, standings, tracker, dispatcher, log,
		progService.WithMetrics(progmetrics.New()),
		progService.WithDrainTimeout(cfg.DrainTimeout),
	)
	if err != nil {
		return err
	}

	sweeper, err := scheduler.New(lifecycle, finalizer, log)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Votes:          voteHandler.New(admission, hasher, log),
		Leaderboard:    lbHandler.New(standings, log),
		Competitions:   compHandler.New(lifecycle, log),
		Participants:   partHandler.New(applications, log),
		Progression:    progHandler.New(finalizer, advancements, log),
		TokenValidator: tokens,
		Health:         health,
		Logger:         log,
	})
	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return worker.Run(groupCtx)
	})

	group.Go(func() error {
		if err := sweeper.Start(groupCtx); err != nil {
			return err
		}
		<-groupCtx.Done()
		return sweeper.Stop()
	})

	group.Go(func() error {
		log.Info("starting stagevote engine", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("stagevote engine stopped")
	return nil
}
