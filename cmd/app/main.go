package main

import (
	"flag"
	"log"
	"os"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/di"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s cache=%s bus=%s", cfg.Environment, cfg.Cache.Backend, cfg.Bus.Type)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
