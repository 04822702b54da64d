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

	"mediaIndex/config"
	"mediaIndex/core"
	"mediaIndex/inference"
	"mediaIndex/pipeline"
	"mediaIndex/server"
	"mediaIndex/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !cfg.HasValidAPI() {
		config.PrintConfigInstructions()
	}

	if err := os.MkdirAll(core.DataRoot(), 0755); err != nil {
		log.Fatalf("create data root: %v", err)
	}

	providers := inference.Pick(cfg)

	ctx := context.Background()
	var store storage.Store
	if cfg.PostgresURL != "" {
		pg, err := storage.NewPgStore(ctx, cfg.PostgresURL, providers.Embedder.Dim())
		if err != nil {
			log.Fatalf("postgres store: %v", err)
		}
		defer pg.Close(context.Background())
		store = pg
		log.Printf("using postgres store")
	} else {
		store = storage.NewMemoryStore()
		log.Printf("using in-memory store")
	}

	var index storage.SearchIndex
	if os.Getenv("STORE") == "milvus" {
		mv, err := storage.NewMilvusIndex(ctx, providers.Embedder)
		if err != nil {
			log.Fatalf("milvus index: %v", err)
		}
		index = mv
		log.Printf("using milvus search index")
	} else {
		index = storage.NewLinearIndex(store, providers.Embedder)
	}

	hub := pipeline.NewHub()
	runner := pipeline.NewRunner(store, index, providers, hub)
	pool := pipeline.NewPool(cfg.Workers, cfg.QueueSize, runner, store)
	pool.Start()

	srv := server.New(store, index, pool, hub)
	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	httpServer := &http.Server{Addr: addr, Handler: srv.Router()}

	go func() {
		log.Printf("media index server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	pool.Shutdown()
}
