package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orchconsole/config"
	"orchconsole/engine"
	"orchconsole/logger"
	"orchconsole/messaging"
	"orchconsole/query"
	"orchconsole/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "orchconsole.yaml", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println("orchconsole", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()

	// Query cache backend
	var backend query.Backend
	switch cfg.Cache.Backend {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		rb, err := query.DialRedis(ctx, cfg.Cache.Redis.Address, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB, cfg.Cache.TTL)
		cancel()
		if err != nil {
			lg.Warnf("orchconsole: redis not available (%v), using in-memory cache", err)
		} else {
			lg.Infof("orchconsole: redis cache connected (%s)", cfg.Cache.Redis.Address)
			backend = rb
		}
	case "memory", "":
	default:
		lg.Warnf("orchconsole: unknown cache backend %q, using in-memory cache", cfg.Cache.Backend)
	}
	if backend == nil {
		backend = query.NewMemoryBackend()
	}
	cache := query.New(query.Config{
		Backend:    backend,
		StaleTime:  cfg.Cache.StaleTime,
		RetryDelay: cfg.Cache.RetryDelay,
		Logger:     lg.Named("query"),
	})
	defer cache.Close()

	// Messaging client (activity stream)
	msgClient := messaging.NewClient(cfg.Messaging)
	if err := msgClient.Connect(); err != nil {
		lg.Warnf("orchconsole: messaging connect failed (%v)", err)
	} else if msgClient.Enabled() {
		lg.Infof("orchconsole: messaging connected (%s)", msgClient.Backend())
	}
	defer msgClient.Close()

	// Engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		Cache:      cache,
		MsgClient:  msgClient,
		Logger:     lg,
	})
	eng.Start()
	defer eng.Stop()

	// Web server
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           www.NewRouter(eng),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Infof("orchconsole: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatalf("web server: %v", err)
		}
	}()

	lg.Infof("orchconsole: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	lg.Infof("orchconsole: shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warnf("orchconsole: web server shutdown: %v", err)
	}
}
