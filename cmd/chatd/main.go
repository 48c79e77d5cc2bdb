package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/healme/healme-chat/internal/backend"
	"github.com/healme/healme-chat/internal/chat"
	"github.com/healme/healme-chat/internal/config"
	"github.com/healme/healme-chat/internal/db"
	"github.com/healme/healme-chat/internal/httpapi"
	"github.com/healme/healme-chat/internal/httpapi/handlers"
	"github.com/healme/healme-chat/internal/logging"
	"github.com/healme/healme-chat/internal/metrics"
	"github.com/healme/healme-chat/internal/store/rabbitmq"
	"github.com/healme/healme-chat/internal/store/redisstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	client := backend.NewFromConfig(cfg)

	var (
		sinks    []chat.EchoSink
		ledger   *chat.Repo
		viewport chat.Viewport
	)

	if cfg.DBDSN != "" {
		gdb, err := db.Connect(cfg.DBDSN)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		ledger = chat.NewRepo(gdb)
		if err := ledger.AutoMigrate(); err != nil {
			log.Fatal("db migrate", zap.Error(err))
		}
		// echoes carry a derived id, so this write and the worker's insert of
		// the outbox event land on the same row
		sinks = append(sinks, ledger)
	}

	if cfg.RedisAddr != "" {
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisChannelPrefix, log)
		defer rs.Close()
		pctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rs.Ping(pctx); err != nil {
			log.Warn("redis unreachable, view events may be lost", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		cancel()
		viewport = rs
	}

	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatal("rabbit publisher", zap.Error(err))
		}
		defer pub.Close()
		sinks = append(sinks, pub)
	}

	registry := chat.NewRegistry(func(key chat.ConversationKey, role chat.Role) *chat.Engine {
		return chat.NewEngine(chat.Options{
			Key:            key,
			Role:           role,
			Backend:        client,
			PollInterval:   cfg.PollInterval,
			RequestTimeout: cfg.RequestTimeout,
			Viewport:       viewport,
			Echoes:         sinks,
			Logger:         log,
		})
	}, log)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(promReg); err != nil {
		log.Fatal("metrics register", zap.Error(err))
	}

	h := handlers.NewHandler(cfg, registry, client, ledger, log)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h, promReg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("chatd listening", zap.String("addr", cfg.HTTPAddr), zap.String("backend", cfg.BackendBaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("chatd shutting down")
		registry.Close()

		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("chatd", zap.Error(err))
	}
}
