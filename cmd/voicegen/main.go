/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voice-studio/internal/config"
	grpcservice "github.com/loqalabs/loqa-voice-studio/internal/grpc"
	"github.com/loqalabs/loqa-voice-studio/internal/logging"
	"github.com/loqalabs/loqa-voice-studio/internal/messaging"
	"github.com/loqalabs/loqa-voice-studio/internal/server"
	"github.com/loqalabs/loqa-voice-studio/internal/storage"
	"github.com/loqalabs/loqa-voice-studio/internal/synth"
)

const healthRefreshInterval = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logging.InitializeWithConfig(logging.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()

	if err != nil {
		logging.LogError(err, "Voice studio stopped")
		logging.Close()
		os.Exit(1)
	}
	logging.Close()
}

// run serves until ctx is done or the HTTP server fails. Everything it
// opens is closed before it returns.
func run(ctx context.Context, cfg *config.Config) error {
	db, err := storage.NewDatabase(storage.DatabaseConfig{Path: cfg.Storage.DBPath})
	if err != nil {
		return fmt.Errorf("failed to open generation ledger: %w", err)
	}
	defer func() { _ = db.Close() }()
	ledger := storage.NewGenerationsStore(db)

	opts := server.Options{
		Recorder: ledger,
		Ledger:   ledger,
	}

	// Without a speech backend /generate answers "Model not initialized"
	if cfg.TTS.URL != "" {
		kokoro, err := synth.NewKokoroSynthesizer(cfg.TTS)
		if err != nil {
			logging.LogWarn("Speech backend unavailable, generation disabled",
				zap.String("tts_url", cfg.TTS.URL),
				zap.Error(err))
		} else {
			defer func() { _ = kokoro.Close() }()
			opts.Synthesizer = kokoro
		}
	} else {
		logging.LogWarn("TTS_URL not set, generation disabled")
	}

	if cfg.NATS.URL != "" {
		natsService, err := messaging.NewNATSService(cfg.NATS)
		if err == nil {
			err = natsService.Connect()
		}
		if err != nil {
			logging.LogWarn("Generation events will not be published", zap.Error(err))
		} else {
			defer natsService.Close()
			opts.Publisher = natsService
			opts.Events = natsService
		}
	}

	health := grpcservice.NewHealthService(func() bool {
		return opts.Synthesizer != nil && opts.Synthesizer.Ready()
	})
	grpcAddr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPCPort))
	if err := health.Start(grpcAddr); err != nil {
		return fmt.Errorf("failed to start gRPC health service: %w", err)
	}
	defer health.Stop()
	go health.Watch(ctx, healthRefreshInterval)

	srv, err := server.New(cfg, opts)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logging.Sugar.Infow("🚀 loqa-voice-studio starting",
		"http_port", cfg.Server.Port,
		"grpc_port", cfg.Server.GRPCPort,
		"db_path", cfg.Storage.DBPath,
		"output_dir", cfg.Storage.OutputDir,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := srv.Stop(); err != nil {
			logging.LogError(err, "Server shutdown failed")
		}
		return nil
	}
}
