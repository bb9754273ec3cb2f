// pokerd is the multi-table Texas Hold'em server daemon.
package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"holdem-server/ledger"
	"holdem-server/server"
)

type CLI struct {
	Listen         string `kong:"default=':40888',help='TCP listen address for the line protocol'"`
	WSListen       string `kong:"name='ws-listen',help='Optional websocket listen address'"`
	MetricsListen  string `kong:"name='metrics-listen',help='Optional Prometheus /metrics listen address'"`
	Config         string `kong:"default='pokerd.hcl',help='Optional HCL config file'"`
	LogLevel       string `kong:"default='info',help='Log level (debug, info, warn, error)'"`
	AdminPassword  string `kong:"name='admin-password',help='Password for AUTH; empty disables administration'"`
	ArchiveExpire  int    `kong:"name='conarchive-expire',default='900',help='Seconds a disconnected uuid binding survives'"`
	TickIntervalMs int    `kong:"name='tick-interval-ms',default='100',help='Central loop tick interval'"`
	Seed           *int64 `kong:"help='Deterministic RNG seed (optional)'"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("pokerd"),
		kong.Description("Multi-table Texas Hold'em server"),
		kong.UsageOnError(),
	)

	level, err := log.ParseLevel(cli.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "pokerd",
	})

	fileCfg, err := LoadFileConfig(cli.Config)
	if err != nil {
		logger.Fatal("config file", "err", err)
	}
	if fileCfg.Server.Listen != "" && cli.Listen == ":40888" {
		cli.Listen = fileCfg.Server.Listen
	}
	if fileCfg.Server.WSListen != "" && cli.WSListen == "" {
		cli.WSListen = fileCfg.Server.WSListen
	}
	if fileCfg.Server.MetricsListen != "" && cli.MetricsListen == "" {
		cli.MetricsListen = fileCfg.Server.MetricsListen
	}
	if fileCfg.Server.AdminPassword != "" && cli.AdminPassword == "" {
		cli.AdminPassword = fileCfg.Server.AdminPassword
	}
	if fileCfg.Server.ArchiveExpire > 0 && cli.ArchiveExpire == 900 {
		cli.ArchiveExpire = fileCfg.Server.ArchiveExpire
	}
	if fileCfg.Server.LogLevel != "" && cli.LogLevel == "info" {
		if fileLevel, err := log.ParseLevel(fileCfg.Server.LogLevel); err == nil {
			logger.SetLevel(fileLevel)
		}
	}

	seed := time.Now().UnixNano()
	if cli.Seed != nil {
		seed = *cli.Seed
	}
	rng := rand.New(rand.NewSource(seed))

	ledgerSvc, mode, err := ledger.NewServiceFromEnv()
	if err != nil {
		logger.Warn("ledger disabled", "mode", mode, "err", err)
		ledgerSvc = ledger.NewNoop()
	} else {
		logger.Info("ledger ready", "mode", mode)
	}
	defer ledgerSvc.Close()

	srv := server.New(server.Config{
		ListenAddr:    cli.Listen,
		WSListenAddr:  cli.WSListen,
		MetricsAddr:   cli.MetricsListen,
		AdminPassword: cli.AdminPassword,
		ArchiveExpire: time.Duration(cli.ArchiveExpire) * time.Second,
		TickInterval:  time.Duration(cli.TickIntervalMs) * time.Millisecond,
		Seed:          seed,
	}, logger, quartz.NewReal(), rng, ledgerSvc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	go func() {
		if err := srv.ServeTCP(cli.Listen); err != nil {
			logger.Error("tcp listener failed", "err", err)
			cancel()
		}
	}()
	if cli.WSListen != "" {
		go func() {
			if err := srv.ServeWS(cli.WSListen); err != nil {
				logger.Error("ws listener failed", "err", err)
			}
		}()
	}
	if cli.MetricsListen != "" {
		go func() {
			if err := srv.ServeMetrics(cli.MetricsListen); err != nil {
				logger.Error("metrics listener failed", "err", err)
			}
		}()
	}

	err = srv.Run(ctx)
	if err != nil && err != context.Canceled {
		kctx.FatalIfErrorf(err)
	}
}
