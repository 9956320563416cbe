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

package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/loqalabs/loqa-voice-studio/internal/logging"
)

// GenerationService is the health service name reported for the generation backend
const GenerationService = "loqa.voicegen.Generation"

// HealthService exposes grpc.health.v1.Health for the generation backend
type HealthService struct {
	server *grpc.Server
	health *health.Server
	ready  func() bool
}

// NewHealthService creates a health service whose status follows ready.
// A nil ready reports NOT_SERVING.
func NewHealthService(ready func() bool) *HealthService {
	hs := &HealthService{
		server: grpc.NewServer(),
		health: health.NewServer(),
		ready:  ready,
	}
	healthpb.RegisterHealthServer(hs.server, hs.health)
	hs.Refresh()
	return hs
}

// Refresh re-evaluates readiness and updates the reported status
func (hs *HealthService) Refresh() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if hs.ready != nil && hs.ready() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	hs.health.SetServingStatus("", status)
	hs.health.SetServingStatus(GenerationService, status)
}

// Watch refreshes the status every interval until ctx is done
func (hs *HealthService) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hs.Refresh()
		}
	}
}

// Serve accepts connections on lis until Stop is called
func (hs *HealthService) Serve(lis net.Listener) error {
	logging.Sugar.Infow("gRPC health service listening", "addr", lis.Addr().String())
	if err := hs.server.Serve(lis); err != nil {
		return fmt.Errorf("gRPC server failed: %w", err)
	}
	return nil
}

// Start listens on addr and serves in the background
func (hs *HealthService) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	go func() {
		if err := hs.Serve(lis); err != nil {
			logging.LogError(err, "gRPC health service stopped", zap.String("addr", addr))
		}
	}()
	return nil
}

// Stop marks every service NOT_SERVING and stops the server gracefully
func (hs *HealthService) Stop() {
	hs.health.Shutdown()
	hs.server.GracefulStop()
}
