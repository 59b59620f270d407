package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/livebet-ledger/internal/ledger-service/auth"
	"github.com/radieske/livebet-ledger/internal/ledger-service/consumer"
	"github.com/radieske/livebet-ledger/internal/ledger-service/fanout"
	"github.com/radieske/livebet-ledger/internal/ledger-service/heartbeat"
	httpapi "github.com/radieske/livebet-ledger/internal/ledger-service/http"
	"github.com/radieske/livebet-ledger/internal/ledger-service/producer"
	"github.com/radieske/livebet-ledger/internal/ledger-service/service"
	"github.com/radieske/livebet-ledger/internal/ledger-service/sink"
	"github.com/radieske/livebet-ledger/internal/ledger-service/store"
	"github.com/radieske/livebet-ledger/internal/ledger-service/ws"
	"github.com/radieske/livebet-ledger/internal/shared/cache"
	"github.com/radieske/livebet-ledger/internal/shared/config"
	"github.com/radieske/livebet-ledger/internal/shared/db"
	"github.com/radieske/livebet-ledger/internal/shared/kafka"
	"github.com/radieske/livebet-ledger/internal/shared/logger"
	"github.com/radieske/livebet-ledger/internal/shared/metrics"
)

func main() {
	// carrega config
	cfg := config.Load()

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewLedger("livebet")
	checks := map[string]metrics.HealthFunc{}

	// store + hidratação do estado em memória
	repo, closeRepo := openStore(ctx, cfg, log)
	defer closeRepo()
	checks["store"] = repo.Ping

	snap, err := store.Load(ctx, repo)
	if err != nil {
		log.Fatal("failed to load state", zap.Error(err))
	}

	journal := store.NewJournal(repo, log.Named("journal"),
		store.WithErrorHook(func(error) { m.JournalErrors.Inc() }))
	// o journal para por último: precisa gravar o que o shutdown ainda produzir
	jctx, jcancel := context.WithCancel(context.Background())
	jdone := make(chan struct{})
	go func() {
		defer close(jdone)
		journal.Run(jctx)
	}()

	fan := fanout.New(fanout.WithDropHook(func(ch string) {
		m.FanoutDropped.WithLabelValues(scope(ch)).Inc()
	}))
	log.Info("fanout ready", zap.String("node", fan.Node()))

	brokers := cfg.Brokers()
	var (
		summaries service.SummaryPublisher
		writers   []*kafka.Writer
	)
	if len(brokers) > 0 {
		sw := kafka.NewWriter(brokers, cfg.TopicSettlements)
		writers = append(writers, sw)
		summaries = producer.NewKafkaPublisher(sw)
	}

	svc := service.New(service.Options{
		Currency:          cfg.DefaultCurrency,
		StartingBalance:   cfg.StartingBalance,
		SettlementWorkers: cfg.SettlementWorkers,
		Journal:           journal,
		Summaries:         summaries,
		Metrics:           m,
		Log:               log,
		Fanout:            fan,
	})
	svc.Hydrate(snap.Accounts, snap.Events, snap.Wagers)

	var wg sync.WaitGroup
	spawn := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	// Redis: relay entre nós + cache de odds
	var odds *sink.OddsCache
	if cfg.RedisAddr != "" {
		rc, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rc.Close()
		log.Info("redis connected")
		checks["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }

		spawn(sink.NewRedisRelay(fan, rc, cfg.RedisBroadcastChannel, log.Named("relay")).Run)
		spawn(sink.NewRedisSubscriber(fan, rc, cfg.RedisBroadcastChannel, log.Named("relay")).Run)
		odds = sink.NewOddsCache(fan, rc, cfg.OddsCacheTTL, log.Named("odds-cache"))
		spawn(odds.Run)
	}

	// Kafka: auditoria de apostas + intake de resultados/status
	if len(brokers) > 0 {
		aw := kafka.NewWriter(brokers, cfg.TopicWagerEvents)
		writers = append(writers, aw)
		audit := sink.NewKafkaAudit(fan, aw, log.Named("audit"))
		audit.OnError = func() { m.IntakeMessages.WithLabelValues(cfg.TopicWagerEvents, "error").Inc() }
		spawn(audit.Run)

		var dlq kafka.MessageWriter
		if cfg.TopicResultsDLQ != "" {
			dw := kafka.NewWriter(brokers, cfg.TopicResultsDLQ)
			writers = append(writers, dw)
			dlq = dw
		}
		intake := []struct {
			topic  string
			handle consumer.Handler
		}{
			{cfg.TopicResults, consumer.ResultHandler(svc, log.Named("results"))},
			{cfg.TopicEventStatus, consumer.StatusHandler(svc, log.Named("status"))},
		}
		for _, in := range intake {
			r := kafka.NewReader(brokers, in.topic, cfg.ServiceName)
			defer r.Close()
			topic := in.topic
			p := &consumer.Processor{
				Log:        log.Named("consumer"),
				Reader:     r,
				Topic:      topic,
				Handle:     in.handle,
				DLQ:        dlq,
				Retries:    3,
				Backoff:    300 * time.Millisecond,
				OnConsumed: func() { m.IntakeMessages.WithLabelValues(topic, "consumed").Inc() },
				OnError:    func(phase string) { m.IntakeMessages.WithLabelValues(topic, phase).Inc() },
			}
			spawn(func(ctx context.Context) { _ = p.Run(ctx) })
		}
		log.Info("kafka wired", zap.Strings("brokers", brokers),
			zap.String("results", cfg.TopicResults), zap.String("status", cfg.TopicEventStatus))
	}

	spawn(func(ctx context.Context) {
		heartbeat.Run(ctx, fan, cfg.HeartbeatInterval, nil)
	})

	resolver := identityResolver(cfg, log)
	hub := ws.NewHub(svc, resolver, log.Named("ws"), cfg.SessionBuffer, func(r *http.Request) bool {
		return cfg.OriginAllowed(r.Header.Get("Origin"))
	})
	hub.OnSessions(func(delta int) { m.FanoutSessions.Add(float64(delta)) })

	api := httpapi.NewServer(log.Named("http"), svc, resolver, hub)
	if odds != nil {
		api.WithOddsCache(odds)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("http server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, m.Registry, checks, func(err error) {
		log.Error("metrics server failed", zap.Error(err))
	})
	log.Info("metrics/health server starting", zap.String("addr", metricsSrv.Addr))

	<-ctx.Done()
	log.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(sctx)
	_ = metricsSrv.Shutdown(sctx)

	wg.Wait()
	for _, w := range writers {
		if err := w.Close(); err != nil {
			log.Warn("kafka writer close", zap.String("topic", w.Topic), zap.Error(err))
		}
	}

	jcancel()
	<-jdone
	log.Info("stopped", zap.Int("journalPending", journal.Pending()))
}

// openStore escolhe o repositório pelo STORE_DRIVER
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (store.Repository, func()) {
	if cfg.StoreDriver == "memory" {
		log.Warn("using in-memory store; state is lost on restart")
		return store.NewMemory(), func() {}
	}

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to connect postgres", zap.Error(err))
	}
	log.Info("postgres connected")

	if cfg.RunMigrations {
		v, err := db.MigrateUp(pg)
		if err != nil {
			log.Fatal("migrations failed", zap.Error(err))
		}
		log.Info("migrations applied", zap.Uint("version", v))
	}
	return store.NewPostgres(pg), func() { closeDB(pg, log) }
}

func closeDB(pg *sql.DB, log *zap.Logger) {
	if err := pg.Close(); err != nil {
		log.Warn("postgres close", zap.Error(err))
	}
}

// identityResolver: JWT quando há segredo; headers só no ambiente local
func identityResolver(cfg config.Config, log *zap.Logger) auth.Resolver {
	if cfg.JWTSecret != "" {
		return auth.JWT{Secret: []byte(cfg.JWTSecret)}
	}
	if cfg.Env != "local" {
		log.Fatal("JWT_SECRET is required outside local env")
	}
	log.Warn("JWT_SECRET empty: trusting X-User-ID/X-User-Role headers")
	return auth.Header{}
}

// scope reduz o canal ao prefixo (event, user, system, tap) para o label
func scope(channel string) string {
	if i := strings.IndexByte(channel, ':'); i > 0 {
		return channel[:i]
	}
	return channel
}
