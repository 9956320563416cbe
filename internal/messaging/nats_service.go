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

package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voice-studio/internal/config"
	"github.com/loqalabs/loqa-voice-studio/internal/events"
	"github.com/loqalabs/loqa-voice-studio/internal/logging"
)

// NATSService publishes generation events to NATS
type NATSService struct {
	cfg  config.NATSConfig
	conn *nats.Conn
}

// NewNATSService creates a new NATS service instance
func NewNATSService(cfg config.NATSConfig) (*NATSService, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("NATS URL cannot be empty")
	}
	if cfg.Subject == "" {
		return nil, fmt.Errorf("NATS subject cannot be empty")
	}
	return &NATSService{cfg: cfg}, nil
}

// Connect establishes connection to NATS server
func (ns *NATSService) Connect() error {
	logging.LogNATSEvent(ns.cfg.Subject, "connect", zap.String("url", ns.cfg.URL))

	opts := []nats.Option{
		nats.Name("loqa-voice-studio"),
		nats.ReconnectWait(ns.cfg.ReconnectWait),
		nats.MaxReconnects(ns.cfg.MaxReconnect),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.LogWarn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.LogNATSEvent(ns.cfg.Subject, "reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logging.LogNATSEvent(ns.cfg.Subject, "closed")
		}),
	}

	conn, err := nats.Connect(ns.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	ns.conn = conn
	logging.LogNATSEvent(ns.cfg.Subject, "connected", zap.String("url", conn.ConnectedUrl()))
	return nil
}

// Subject returns the subject generation events are published on
func (ns *NATSService) Subject() string {
	return ns.cfg.Subject
}

// PublishGeneration publishes a completed generation event
func (ns *NATSService) PublishGeneration(event *events.GenerationEvent) error {
	if ns.conn == nil {
		return fmt.Errorf("NATS connection not established")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal generation event: %w", err)
	}

	if err := ns.conn.Publish(ns.cfg.Subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", ns.cfg.Subject, err)
	}

	logging.LogNATSEvent(ns.cfg.Subject, "publish",
		zap.String("uuid", event.UUID),
		zap.Bool("success", event.Success),
	)
	return nil
}

// Close closes the NATS connection
func (ns *NATSService) Close() {
	if ns.conn != nil {
		ns.conn.Close()
	}
}

// IsConnected returns true if connected to NATS
func (ns *NATSService) IsConnected() bool {
	return ns.conn != nil && ns.conn.IsConnected()
}
