package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/detectd/pkg/nnload"
	"github.com/cyclopcam/detectd/server"
	"github.com/cyclopcam/logs"
)

func main() {
	parser := argparse.NewParser("detectd", "Object detection server")
	configFile := parser.String("c", "config", &argparse.Options{Help: "JSON configuration file", Default: "detectd.json"})
	hotReloadWWW := parser.Flag("", "hot", &argparse.Options{Help: "Hot reload www instead of embedding into binary", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg := server.NewConfig()
	if _, err := os.Stat(*configFile); err == nil {
		cfg, err = server.LoadConfig(*configFile)
		if err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		logger.Infof("Loaded config from %v", *configFile)
	} else {
		logger.Infof("Config file %v not found. Using defaults", *configFile)
	}

	model, err := nnload.LoadModel(logger, cfg.Weights, cfg.ModelSetup())
	if err != nil {
		logger.Errorf("Failed to load model: %v", err)
		os.Exit(1)
	}
	defer model.Close()

	srv, err := server.NewServer(logger, cfg, model, *hotReloadWWW)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	srv.ListenForKillSignals()

	// Tell systemd that we're alive.
	// We might also want to implement a watchdog.
	daemon.SdNotify(false, daemon.SdNotifyReady)

	if err := srv.ListenHTTP(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("%v", err)
		model.Close()
		os.Exit(1)
	}
	logger.Infof("Exiting")
}
