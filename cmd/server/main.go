// Command server is the disaster-feed instance binary: it wires the Event
// Log, Checkpoint Store, Event Bus, Job Queue, Source Registry, Ingest
// Scheduler/Worker, SSE Hub, and Query API together and serves HTTP until
// SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neuwcodebox/disaster-feed/internal/adapter"
	"github.com/neuwcodebox/disaster-feed/internal/api"
	"github.com/neuwcodebox/disaster-feed/internal/bus/redisbus"
	"github.com/neuwcodebox/disaster-feed/internal/config"
	"github.com/neuwcodebox/disaster-feed/internal/ingest"
	"github.com/neuwcodebox/disaster-feed/internal/queue"
	"github.com/neuwcodebox/disaster-feed/internal/queue/asynqqueue"
	"github.com/neuwcodebox/disaster-feed/internal/shutdown"
	"github.com/neuwcodebox/disaster-feed/internal/sse"
	"github.com/neuwcodebox/disaster-feed/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.NodeEnv == config.EnvDevelopment || cfg.NodeEnv == config.EnvTest {
		log.Println("server: verbose logging enabled (NODE_ENV=" + string(cfg.NodeEnv) + ")")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis url: %v", err)
	}
	busClient := redis.NewClient(redisOpt)
	b := redisbus.New(busClient)

	hub := sse.NewHub(db, b)
	if err := hub.Start(); err != nil {
		log.Printf("sse hub start failed, will not receive live updates: %v", err)
	}

	var q queue.Queue
	var registry *adapter.Registry
	var worker *ingest.Worker

	if cfg.IngestEnabled {
		asynqQ, err := asynqqueue.New(cfg.RedisURL)
		if err != nil {
			log.Fatalf("queue: %v", err)
		}
		q = asynqQ

		registry = adapter.New(cfg.KMAAPIKey)
		writer := ingest.NewWriter(db, b)
		worker = ingest.NewWorker(registry, db, writer)

		ingest.InstallSchedule(q, registry)

		go func() {
			if err := q.Run(ctx, worker.ProcessSource, ingest.OnJobFailure); err != nil {
				log.Printf("ingest: queue worker stopped: %v", err)
			}
		}()
	} else {
		log.Println("server: INGEST_ENABLED=0, running as a read-only replica")
	}

	srv := &http.Server{
		Addr: cfg.Host + ":" + cfg.Port,
		Handler: api.New(api.Deps{
			EventLog: db,
			Hub:      hub,
			CORS:     cfg.CORS,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams are long-lived
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("server: listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	<-sigCh
	log.Println("server: shutting down…")
	cancel()

	seq := shutdown.New(
		shutdown.Step{Name: "http server", Run: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		}},
		shutdown.Step{Name: "sse hub", Run: func(ctx context.Context) error {
			hub.Stop()
			return nil
		}},
		shutdown.Step{Name: "ingest worker", Run: func(ctx context.Context) error {
			if q != nil {
				return q.Close()
			}
			return nil
		}},
		shutdown.Step{Name: "bus subscriber", Run: func(ctx context.Context) error {
			return b.Close()
		}},
		shutdown.Step{Name: "bus client", Run: func(ctx context.Context) error {
			return busClient.Close()
		}},
		shutdown.Step{Name: "db pool", Run: func(ctx context.Context) error {
			return db.Close()
		}},
	)
	seq.Run()
	fmt.Println("server: exited cleanly")
}
