// Command watcherd is the watcher agent's process-level entry point:
// load configuration, wire up a single AgentCore, run the supervisor to
// completion, and translate its terminal result into an exit code.
//
// Split into main/watcherdMain the way lnd.go splits main/lndMain, so
// deferred cleanup (log flush, store close) still runs on every exit
// path, including the one taken when os.Exit is reserved for the
// top-level wrapper only.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/crosslink-network/watcher/adapter/mock"
	"github.com/crosslink-network/watcher/chain"
	"github.com/crosslink-network/watcher/config"
	"github.com/crosslink-network/watcher/indexer"
	wlog "github.com/crosslink-network/watcher/log"
	"github.com/crosslink-network/watcher/metrics"
	"github.com/crosslink-network/watcher/signer"
	"github.com/crosslink-network/watcher/store"
	"github.com/crosslink-network/watcher/watcher"
)

var daemonLog = wlog.NewSubsystem(wlog.TagConfig)

func watcherdMain() (*watcher.FanOutResult, error) {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return nil, err
	}

	if err := wlog.InitLogRotator(cfg.LogFilePath(), int64(cfg.MaxLogFileSize), cfg.MaxLogFiles); err != nil {
		return nil, fmt.Errorf("init log rotator: %w", err)
	}
	defer wlog.Flush()

	if err := wlog.SetLevels(cfg.DebugLevel); err != nil {
		return nil, fmt.Errorf("apply debuglevel: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	keyBytes, err := hex.DecodeString(cfg.SignerKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode signer key: %w", err)
	}
	sgnr := signer.New(keyBytes)

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	// No real chain adapter ships with this module (spec.md §6 treats
	// chain access as an external collaborator behind the chain.Common
	// interface); wire the same mock fixtures the test suite uses so the
	// daemon is runnable end to end against a simulated home/replica set.
	home := mock.NewHome(cfg.Home.Name, cfg.Home.Domain, chain.ZeroRoot)
	replicas := make(map[string]chain.Replica, len(cfg.Replicas))
	for _, r := range cfg.Replicas {
		replicas[r.Name] = mock.NewReplica(r.Name, r.Domain, chain.ZeroRoot)
	}

	connMgrs := make([]chain.ConnectionManager, 0, len(cfg.ConnectionManagers))
	for _, endpoint := range cfg.ConnectionManagers {
		connMgrs = append(connMgrs, mock.NewConnectionManager(endpoint))
	}

	idx := indexer.New(
		cfg.Home.Name,
		home.Contract,
		db.Scope(cfg.Home.Name),
		m.For(cfg.Home.Name),
		0, 1000,
		cfg.IntervalSeconds,
	)

	core := watcher.AgentCore{
		Home:     home,
		Replicas: replicas,
		Store:    db,
		Indexer:  idx,
		Metrics:  m,
	}

	w := watcher.New(sgnr, cfg.IntervalSeconds, connMgrs, core)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		daemonLog.Info("received shutdown signal")
		cancel()
	}()

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		daemonLog.Debugf("sd_notify unavailable: %v", err)
	} else if sent {
		daemonLog.Debug("sent systemd readiness notification")
	}

	return w.RunAll(ctx)
}

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	result, err := watcherdMain()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if result != nil {
			fmt.Fprintf(os.Stderr, "double_update outcomes: %+v\n", result.DoubleUpdateOutcomes)
			fmt.Fprintf(os.Stderr, "unenroll outcomes: %+v\n", result.UnenrollOutcomes)
		}
		os.Exit(1)
	}
}
