package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"station-recorder/work/blacklist"
	"station-recorder/work/cache"
	"station-recorder/work/capture"
	"station-recorder/work/client"
	"station-recorder/work/config"
	"station-recorder/work/database"
	"station-recorder/work/fetch"
	"station-recorder/work/handlers"
	"station-recorder/work/logger"
	"station-recorder/work/middleware"
	"station-recorder/work/registry"
	"station-recorder/work/sink"
	"station-recorder/work/titles"
)

var Version = "v0.1.0"

func main() {
	configPath := flag.String("config", "./station-recorder.json", "path to the configuration file")
	writeExample := flag.Bool("example-config", false, "write an example configuration file and exit")
	flag.Parse()

	if *writeExample {
		if err := config.CreateExampleConfig(*configPath); err != nil {
			log.Fatalf("Failed to write example config: %v", err)
		}
		log.Printf("Example configuration written to %s", *configPath)
		return
	}

	cfg := config.LoadConfig(*configPath)
	logger.SetLevel(cfg.LogLevel)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	reg, err := registry.NewRegistry(db)
	if err != nil {
		log.Fatalf("Failed to build station registry: %v", err)
	}
	reg.SeedFromConfig(cfg)

	gate, err := blacklist.NewGate(db)
	if err != nil {
		log.Fatalf("Failed to load blacklist: %v", err)
	}

	fileSink, err := sink.NewFileSink(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to prepare data directory: %v", err)
	}

	targets, err := cache.NewTargetCache(cfg.CacheDuration)
	if err != nil {
		log.Fatalf("Failed to build target cache: %v", err)
	}
	defer targets.Close()

	httpClient := client.NewStreamClient(cfg)
	fetcher := fetch.NewFetcher(httpClient, cfg)
	board := titles.NewBoard()

	manager, err := capture.NewManager(cfg, fetcher, reg, gate, fileSink, board, targets, db)
	if err != nil {
		log.Fatalf("Failed to build capture manager: %v", err)
	}
	defer manager.Shutdown()

	h := &handlers.Handlers{
		Manager:  manager,
		Registry: reg,
		Gate:     gate,
		Titles:   board,
		Settings: db,
		Config:   cfg,
	}

	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.Use(middleware.Gzip)

	api.HandleFunc("/captures", h.HandleListCaptures).Methods("GET")
	api.HandleFunc("/captures/{uuid}/start", h.HandleStartCapture).Methods("POST")
	api.HandleFunc("/captures/{uuid}/stop", h.HandleStopCapture).Methods("POST")

	api.HandleFunc("/stations", h.HandleListStations).Methods("GET")
	api.HandleFunc("/stations", h.HandleRegisterStation).Methods("POST")
	api.HandleFunc("/stations/{uuid}", h.HandleRemoveStation).Methods("DELETE")
	api.HandleFunc("/stations/{uuid}/title", h.HandlePublishTitle).Methods("POST")

	api.HandleFunc("/stations/{uuid}/blacklist", h.HandleListBlacklist).Methods("GET")
	api.HandleFunc("/stations/{uuid}/blacklist", h.HandleAddBlacklist).Methods("POST")
	api.HandleFunc("/stations/{uuid}/blacklist", h.HandleRemoveBlacklist).Methods("DELETE")

	api.HandleFunc("/settings", h.HandleGetSettings).Methods("GET")
	api.HandleFunc("/settings", h.HandleUpdateSettings).Methods("PUT")

	router.HandleFunc("/health", h.HandleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	logger.Info("{main} Starting Station Recorder %s", Version)
	logger.Info("{main}   - Listen address: %s", cfg.ListenAddr)
	logger.Info("{main}   - Data dir: %s", cfg.DataDir)
	logger.Info("{main}   - Database: %s", cfg.DatabasePath)
	logger.Info("{main}   - Stations: %d", len(reg.All()))
	logger.Info("{main}   - Blacklist entries: %d", gate.Len())
	logger.Info("{main}   - Worker threads: %d", cfg.WorkerThreads)
	logger.Info("{main}   - Base delay: %s", cfg.BaseDelay)
	logger.Info("{main}   - Store incomplete: %v", cfg.StoreIncomplete)
	logger.Info("{main}   - URL obfuscation: %v", cfg.ObfuscateUrls)

	server := &http.Server{Addr: cfg.ListenAddr, Handler: router}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		logger.Info("{main} Shutdown requested, stopping captures...")
		manager.Shutdown()
		server.Close()
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}
