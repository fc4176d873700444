package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/fatih/color"

	"github.com/lazarus-engine/lazarus/config"
	"github.com/lazarus-engine/lazarus/log"
)

var (
	bannerStyle = color.New(color.FgGreen, color.Bold)
	errorStyle  = color.New(color.FgRed)
)

func fatal(msg string, args ...interface{}) {
	fmt.Printf(errorStyle.Sprint(msg)+"\n", args...)
	os.Exit(1)
}

func main() {
	var configPath, addr string
	flag.StringVar(&configPath, "config", "", "Path to a YAML or JSON configuration file")
	flag.StringVar(&addr, "addr", "", "Listen address (overrides configuration)")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.ParseFile(configPath)
		if err != nil {
			fatal("Error loading configuration: %s", err)
		}
		cfg = loaded
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	logger := log.New(log.LevelFromString(cfg.LogLevel))

	server, err := newServer(cfg, logger)
	if err != nil {
		fatal("Error initializing server: %s", err)
	}

	bannerStyle.Println("Lazarus Resurrection Engine")
	logger.Info("server listening", "addr", cfg.Server.Addr, "provider", cfg.LLM.Provider)
	if err := http.ListenAndServe(cfg.Server.Addr, server); err != nil {
		fatal("Server error: %s", err)
	}
}
