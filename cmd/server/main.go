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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	accounthandler "tandem/internal/account/handler"
	accountservice "tandem/internal/account/service"
	"tandem/internal/audit"
	"tandem/internal/catalog"
	cataloghandler "tandem/internal/catalog/handler"
	"tandem/internal/jwtauth"
	ledgerhandler "tandem/internal/ledger/handler"
	ledgerservice "tandem/internal/ledger/service"
	entrystore "tandem/internal/ledger/store/entry"
	matchhandler "tandem/internal/match/handler"
	matchservice "tandem/internal/match/service"
	notifhandler "tandem/internal/notification/handler"
	notifservice "tandem/internal/notification/service"
	notifstore "tandem/internal/notification/store"
	"tandem/internal/platform/config"
	"tandem/internal/platform/httpserver"
	"tandem/internal/platform/logger"
	"tandem/internal/platform/metrics"
	platformpg "tandem/internal/platform/postgres"
	platformredis "tandem/internal/platform/redis"
	relhandler "tandem/internal/relationship/handler"
	relservice "tandem/internal/relationship/service"
	blockstore "tandem/internal/relationship/store/block"
	relstore "tandem/internal/relationship/store/relationship"
)

// entryStore is the union of the ledger, match, and cascade views over one
// consent entry store implementation.
type entryStore interface {
	ledgerservice.EntryStore
	matchservice.EntryReader
	relservice.LedgerStore
}

// main wires storage, services, and transport. Business rules live in the
// internal service packages; this file only chooses implementations.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	m := metrics.New()
	cat := catalog.New()
	jwtService := jwtauth.New(cfg.JWTSigningKey, "tandem", "tandem-api")

	db, err := platformpg.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Store selection: postgres when DATABASE_URL is set, in-memory otherwise.
	var (
		relationships relservice.RelationshipStore
		blocks        relservice.BlockStore
		entries       entryStore
		notifications notifservice.Store
		txRunner      relservice.TxRunner
	)
	if db != nil {
		relationships = relstore.NewPostgres(db)
		blocks = blockstore.NewPostgres(db)
		entries = entrystore.NewPostgres(db)
		notifications = notifstore.NewPostgres(db)
		txRunner = newPostgresTxRunner(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		relationships = relstore.NewInMemory()
		blocks = blockstore.NewInMemory()
		entries = entrystore.NewInMemory()
		notifications = notifstore.NewInMemory()
	}

	// Audit pipeline: buffered in front of Kafka when brokers are configured,
	// structured log sink otherwise.
	var auditSink audit.Publisher = audit.NewLogPublisher(log)
	var kafkaPublisher *audit.KafkaPublisher
	if cfg.KafkaBrokers != "" {
		kafkaPublisher, err = audit.NewKafkaPublisher(cfg.KafkaBrokers, audit.DefaultTopic, log)
		if err != nil {
			return err
		}
		auditSink = kafkaPublisher
	}
	auditor := audit.NewBuffered(auditSink, 256, log)

	emitterOpts := []notifservice.EmitterOption{notifservice.WithEmitterMetrics(m)}
	if redisClient != nil {
		emitterOpts = append(emitterOpts, notifservice.WithSignaler(
			notifservice.NewRedisSignaler(redisClient.Client, log),
		))
	}
	emitter := notifservice.NewEmitter(notifications, log, emitterOpts...)

	relOpts := []relservice.Option{
		relservice.WithLogger(log),
		relservice.WithAuditPublisher(auditor),
		relservice.WithMetrics(m),
	}
	if txRunner != nil {
		relOpts = append(relOpts, relservice.WithTxRunner(txRunner))
	}
	relationshipSvc := relservice.New(relationships, blocks, entries, notifications, emitter, relOpts...)

	ledgerSvc := ledgerservice.New(entries, relationships, cat, emitter,
		ledgerservice.WithLogger(log),
		ledgerservice.WithAuditPublisher(auditor),
		ledgerservice.WithMetrics(m),
		ledgerservice.WithNoteMaxLen(cfg.NoteMaxLen),
	)
	matchSvc := matchservice.New(entries, relationships, cat, matchservice.WithLogger(log))
	notificationSvc := notifservice.New(notifications)
	accountSvc := accountservice.New(relationshipSvc, ledgerSvc, notifications,
		accountservice.WithLogger(log),
		accountservice.WithAuditPublisher(auditor),
	)

	router := chi.NewRouter()
	router.Get("/healthz", healthz(db, redisClient))
	router.Handle("/metrics", promhttp.Handler())
	relhandler.New(relationshipSvc, log, m, jwtService).Register(router)
	ledgerhandler.New(ledgerSvc, log, m, jwtService).Register(router)
	matchhandler.New(matchSvc, log, m, jwtService).Register(router)
	notifhandler.New(notificationSvc, log, m, jwtService).Register(router)
	accounthandler.New(accountSvc, log, m, jwtService).Register(router)
	cataloghandler.New(cat, log, m, jwtService).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting tandem", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := auditor.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if kafkaPublisher != nil {
			defer kafkaPublisher.Close(shutdownCtx)
		}
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func healthz(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
