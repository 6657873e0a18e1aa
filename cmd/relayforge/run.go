// Copyright 2015 Matthew Holt and The Caddy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/KimMachineGun/automemlimit/automemlimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/relayforge/relayforge/config"
	"github.com/relayforge/relayforge/internal/adminserver"
	"github.com/relayforge/relayforge/internal/logging"
	"github.com/relayforge/relayforge/internal/metrics"
	"github.com/relayforge/relayforge/internal/proxyengine"
)

// cleanupInterval is how often expired content-cache entries are swept, to
// bound memory for sources whose tokens rotate often but are read rarely.
const cleanupInterval = time.Minute

// shutdownTimeout bounds how long "run" waits for in-flight requests to
// drain on SIGINT/SIGTERM before forcing the listeners closed.
const shutdownTimeout = 10 * time.Second

var runConfigPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the relayforge data plane and admin surface in the foreground",
	RunE:  runServe,
}

func init() {
	registerConfigFlag(runCmd.Flags(), &runConfigPath)
}

func runServe(cmd *cobra.Command, args []string) error {
	// The automemlimit import above sets GOMEMLIMIT from the container's
	// cgroup at package init; maxprocs.Set does the GOMAXPROCS
	// equivalent and must be called explicitly.
	if _, err := maxprocs.Set(maxprocs.Logger(func(string, ...any) {})); err != nil {
		fmt.Fprintf(os.Stderr, "automaxprocs: %v\n", err)
	}

	cfg, err := config.LoadFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	engine := proxyengine.New(logger, m)
	if err := engine.UpdateRules(cfg.ForwardingRules); err != nil {
		return fmt.Errorf("apply initial rules: %w", err)
	}

	admin := adminserver.New(engine, cfg, runConfigPath, logger, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := &config.Watcher{
		Path:   runConfigPath,
		Logger: logger,
		OnReload: func(newCfg *config.Config) {
			if err := engine.UpdateRules(newCfg.ForwardingRules); err != nil {
				logger.Error("config watcher: new rule set rejected, keeping prior rules", zap.Error(err))
				return
			}
			admin.SetConfig(newCfg)
		},
	}
	go watcher.Watch(ctx)
	go cleanupLoop(ctx, engine)

	dataAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	dataSrv := &http.Server{Addr: dataAddr, Handler: engine}

	adminAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.WebUIPort)
	adminSrv := &http.Server{Addr: adminAddr, Handler: admin}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("data plane listening", zap.String("addr", dataAddr))
		if err := dataSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("data plane: %w", err)
		}
	}()
	go func() {
		logger.Info("admin surface listening", zap.String("addr", adminAddr))
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("admin surface: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("server error, shutting down", zap.Error(err))
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	dataSrv.Shutdown(shutdownCtx)
	adminSrv.Shutdown(shutdownCtx)
	return nil
}

func cleanupLoop(ctx context.Context, engine *proxyengine.Engine) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			engine.Content.CleanupExpired()
		}
	}
}
