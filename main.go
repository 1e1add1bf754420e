package main

import (
	"github.com/joho/godotenv"

	"github.com/wfunc/duelserver/config"
	"github.com/wfunc/duelserver/logger"
	"github.com/wfunc/duelserver/persistence"
	"github.com/wfunc/duelserver/server"
)

func main() {
	// Initialize logger
	logger.Init()

	// Local overrides, best-effort
	godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize persistence. The engine tolerates an unavailable store:
	// matches still run, records are simply not kept.
	store, err := newStore(cfg)
	if err != nil {
		logger.Log.Warnf("Persistence unavailable, running without match history: %v", err)
		store = nil
	} else {
		logger.Log.Info("Database connection successful.")
	}

	// Initialize Game Server
	gameServer := server.NewGameServer(cfg, store)

	// Start Server
	logger.Log.Infof("Starting duel server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}

func newStore(cfg *config.Config) (persistence.Store, error) {
	pg := cfg.Database.Postgres
	if cfg.Database.Driver == "pq" {
		return persistence.NewPostgresStore(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	}
	return persistence.NewGormStore(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
}
