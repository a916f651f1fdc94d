package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"lockvault/config"
	"lockvault/core/state"
	"lockvault/native/lockup"
	"lockvault/observability/logging"
	"lockvault/rpc"
	"lockvault/storage"
)

func main() {
	configFile := flag.String("config", "./lockd.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LOCKVAULT_ENV"))
	logger := logging.Setup("lockd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	admins, err := cfg.Admins()
	if err != nil {
		logger.Error("Failed to parse admin allow-list", slog.Any("error", err))
		os.Exit(1)
	}

	manager := state.NewManager(db)
	engine := lockup.NewEngine()
	engine.SetState(manager)
	engine.SetAdmins(admins)

	logger.Info("lockd starting",
		slog.String("network", cfg.NetworkName),
		slog.String("dataDir", cfg.DataDir),
		slog.Int("admins", len(admins)),
	)

	server := rpc.NewServer(engine, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
