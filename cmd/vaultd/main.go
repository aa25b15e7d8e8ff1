// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/stakevault/core/api"
	"github.com/stakevault/core/config"
	"github.com/stakevault/core/eventdb"
	"github.com/stakevault/core/log"
	"github.com/stakevault/core/lvldb"
	"github.com/stakevault/core/metrics"
	"github.com/stakevault/core/runtime"
	"github.com/stakevault/core/state"
	"github.com/stakevault/core/vault"
	"github.com/stakevault/core/xenv"
)

var (
	version   string
	gitCommit string
	logger    = log.WithContext("pkg", "vaultd")
)

func fullVersion() string {
	if gitCommit == "" {
		return version + "-dev"
	}
	return fmt.Sprintf("%s-%s", version, gitCommit)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "vaultd",
		Usage:     "StakeVault accounting and governance daemon",
		Copyright: "2026 The StakeVault developers",
		Flags: []cli.Flag{
			configFlag,
			dataDirFlag,
			memFlag,
			adminFlag,
			apiAddrFlag,
			apiCorsFlag,
			metricsAddrFlag,
			verbosityFlag,
		},
		Action: defaultAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	initLogger(cfg.Verbosity)

	if cfg.MetricsAddr != "" {
		metrics.InitializePrometheusMetrics()
	}

	mainDB, eventDB, err := openDatabases(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing main database..."); mainDB.Close() }()
	defer func() { logger.Info("closing event database..."); eventDB.Close() }()

	rt := runtime.New(state.New(mainDB))
	if err := bootstrap(ctx, rt, cfg); err != nil {
		return err
	}

	apiSrv := startHTTPServer(cfg.API.Addr, api.New(rt, eventDB, api.Options{
		AllowedOrigins: cfg.API.AllowedOrigins,
		EnableMetrics:  cfg.MetricsAddr != "",
		LogsLimit:      cfg.API.LogsLimit,
	}))
	defer shutdown(apiSrv, "API server")

	if cfg.MetricsAddr != "" {
		metricsSrv := startHTTPServer(cfg.MetricsAddr, metrics.HTTPHandler().ServeHTTP)
		defer shutdown(metricsSrv, "metrics server")
	}

	logger.Info("vaultd started",
		"version", fullVersion(),
		"api", cfg.API.Addr,
		"metrics", cfg.MetricsAddr,
	)

	<-handleExitSignal()
	return nil
}

// loadConfig merges the config file, built-in defaults and command line
// flags, flags winning.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := ctx.String(configFlag.Name); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.DataDir = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(apiAddrFlag.Name) {
		cfg.API.Addr = ctx.String(apiAddrFlag.Name)
	}
	if ctx.IsSet(apiCorsFlag.Name) {
		cfg.API.AllowedOrigins = ctx.String(apiCorsFlag.Name)
	}
	if ctx.IsSet(metricsAddrFlag.Name) {
		cfg.MetricsAddr = ctx.String(metricsAddrFlag.Name)
	}
	if ctx.IsSet(verbosityFlag.Name) {
		cfg.Verbosity = ctx.Int(verbosityFlag.Name)
	}
	return cfg, nil
}

func initLogger(verbosity int) {
	var level slog.Level
	switch {
	case verbosity <= 1:
		level = log.LevelError
	case verbosity == 2:
		level = log.LevelWarn
	case verbosity == 3:
		level = log.LevelInfo
	case verbosity == 4:
		level = log.LevelDebug
	default:
		level = log.LevelTrace
	}

	var lvl slog.LevelVar
	lvl.Set(level)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetDefaultHandler(log.LogfmtHandlerWithLevel(os.Stderr, &lvl))
	} else {
		log.SetDefaultHandler(log.JSONHandlerWithLevel(os.Stderr, &lvl))
	}
}

func openDatabases(ctx *cli.Context, cfg *config.Config) (*lvldb.LevelDB, *eventdb.EventDB, error) {
	if ctx.Bool(memFlag.Name) {
		mainDB, err := lvldb.NewMem()
		if err != nil {
			return nil, nil, err
		}
		eventDB, err := eventdb.NewMem()
		if err != nil {
			mainDB.Close()
			return nil, nil, err
		}
		return mainDB, eventDB, nil
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, nil, err
	}
	mainDB, err := lvldb.New(filepath.Join(cfg.DataDir, "main.db"), lvldb.Options{
		CacheSize:              128,
		OpenFilesCacheCapacity: 512,
	})
	if err != nil {
		return nil, nil, err
	}
	eventDB, err := eventdb.New(filepath.Join(cfg.DataDir, "events.db"))
	if err != nil {
		mainDB.Close()
		return nil, nil, err
	}
	return mainDB, eventDB, nil
}

// bootstrap runs genesis on a fresh database. An already bootstrapped
// database is left as is.
func bootstrap(ctx *cli.Context, rt *runtime.Runtime, cfg *config.Config) error {
	executor, err := rt.Params.Executor()
	if err != nil {
		return err
	}
	if !executor.IsZero() {
		logger.Debug("state already bootstrapped")
		return nil
	}

	admin, err := vault.ParseAddress(ctx.String(adminFlag.Name))
	if err != nil {
		return errors.Wrapf(err, "--%s is required on first run", adminFlag.Name)
	}
	overrides, err := cfg.ParamOverrides()
	if err != nil {
		return err
	}

	_, err = rt.Call(*admin, uint64(time.Now().Unix()), func(env *xenv.Environment) error {
		return rt.Bootstrap(env,
			big.NewInt(cfg.Pool.RewardRate),
			big.NewInt(cfg.Pool.DistributionRate),
			big.NewInt(cfg.Pool.MinimumStake),
			overrides,
		)
	})
	if err != nil {
		return err
	}
	logger.Info("bootstrapped fresh state", "admin", admin)
	return nil
}

func startHTTPServer(addr string, handler http.HandlerFunc) *http.Server {
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped", "addr", addr, "error", err)
		}
	}()
	return srv
}

func shutdown(srv *http.Server, name string) {
	logger.Info("stopping " + name + "...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func handleExitSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}
