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

package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voice-studio/internal/api"
	"github.com/loqalabs/loqa-voice-studio/internal/backend"
	"github.com/loqalabs/loqa-voice-studio/internal/config"
	"github.com/loqalabs/loqa-voice-studio/internal/logging"
	"github.com/loqalabs/loqa-voice-studio/internal/security"
	"github.com/loqalabs/loqa-voice-studio/internal/studio"
	"github.com/loqalabs/loqa-voice-studio/internal/synth"
	"github.com/loqalabs/loqa-voice-studio/internal/voicegen"
)

//go:embed templates/index.html
var templateFS embed.FS

// refreshSeconds is how often the page reloads while a generation is in flight
const refreshSeconds = 1

// EventsStatus reports whether generation events reach the message bus
type EventsStatus interface {
	IsConnected() bool
}

// Options holds the collaborators of the server. Every field may be left nil.
type Options struct {
	Synthesizer synth.Synthesizer
	Recorder    backend.Recorder
	Publisher   backend.Publisher
	Ledger      api.GenerationsStore
	Events      EventsStatus

	// HTTPClient is used by form sessions to reach /generate. nil means no timeout.
	HTTPClient *http.Client

	// ServiceOrigin is where form sessions POST /generate. Empty means the
	// server's own listener.
	ServiceOrigin string
}

// Server hosts the studio form and the generation service on one origin
type Server struct {
	cfg    *config.Config
	opts   Options
	mux    *http.ServeMux
	server *http.Server

	sessions    *sessionStore
	generation  *backend.Handler
	generations *api.GenerationsHandler
	page        *template.Template
}

// New creates a server for cfg
func New(cfg *config.Config, opts Options) (*Server, error) {
	origin := opts.ServiceOrigin
	if origin == "" {
		origin = listenerOrigin(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	}
	sessions, err := newSessionStore(cfg.Server.MaxSessions, sessionConfig{
		client:        opts.HTTPClient,
		serviceOrigin: origin,
		trustedHosts:  cfg.Server.TrustedHosts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	s := &Server{
		cfg:        cfg,
		opts:       opts,
		mux:        http.NewServeMux(),
		sessions:   sessions,
		generation: backend.NewHandler(opts.Synthesizer, cfg.Storage.OutputDir, opts.Recorder, opts.Publisher),
		page:       page,
	}
	if opts.Ledger != nil {
		s.generations = api.NewGenerationsHandler(opts.Ledger)
	}

	s.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      s.mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.routes()
	return s, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves HTTP until Stop is called
func (s *Server) Start() error {
	logging.Sugar.Infow("🚀 Voice studio starting",
		"addr", s.server.Addr,
		"synthesizer", s.opts.Synthesizer != nil,
		"ledger", s.opts.Ledger != nil)

	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	// Port 0 is only known once bound
	if s.opts.ServiceOrigin == "" {
		_, port, err := net.SplitHostPort(lis.Addr().String())
		if err == nil {
			s.sessions.setServiceOrigin(listenerOrigin(s.cfg.Server.Host, port))
		}
	}

	if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// listenerOrigin is the origin the server reaches itself on. Wildcard binds
// are dialed on loopback.
func listenerOrigin(host, port string) string {
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(strings.Trim(host, "[]"), port)
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	logging.Sugar.Infow("🛑 Shutting down voice studio")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logging.Sugar.Infow("✅ Voice studio shut down successfully")
	return nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)

	// Form
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/form", s.handleFormUpdate)
	s.mux.HandleFunc("/form/generate", s.handleFormGenerate)
	s.mux.HandleFunc("/api/form", s.handleAPIForm)
	s.mux.HandleFunc("/api/form/generate", s.handleAPIFormGenerate)

	// Generation service
	s.mux.HandleFunc(voicegen.GeneratePath, s.generation.HandleGenerate)
	s.mux.HandleFunc(backend.AudioRoute, s.generation.ServeAudio)

	if s.generations != nil {
		s.mux.HandleFunc(api.GenerationsRoute, s.generations.HandleGenerations)
		s.mux.HandleFunc(api.GenerationsRoute+"/", s.generations.HandleGenerationByID)
	}

	logging.Sugar.Infow("🌐 HTTP routes configured",
		"form_endpoint", "/",
		"generate_endpoint", voicegen.GeneratePath,
		"audio_endpoint", backend.AudioRoute,
		"ledger_endpoint", s.generations != nil)
}

// handleHealth reports backend readiness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ready := s.opts.Synthesizer != nil && s.opts.Synthesizer.Ready()
	status := "ok"
	if !ready {
		status = "degraded"
	}

	health := map[string]interface{}{
		"status":      status,
		"timestamp":   time.Now(),
		"synthesizer": ready,
		"ledger":      s.opts.Ledger != nil,
		"nats":        s.opts.Events != nil && s.opts.Events.IsConnected(),
		"sessions":    s.sessions.len(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := writeJSON(w, health); err != nil {
		logging.Sugar.Errorw("Failed to write health response", "error", err)
	}
}

// applyFields applies every draft field present in values. Values outside
// a field's domain are skipped.
func applyFields(c *studio.Controller, values map[string][]string) {
	for _, field := range studio.Fields {
		raw, ok := values[string(field)]
		if !ok || len(raw) == 0 {
			continue
		}
		if err := c.UpdateField(field, raw[0]); err != nil {
			logging.LogFormEvent(c.ID(), "update_rejected",
				zap.String("field", string(field)),
				zap.String("error", security.SanitizeLogInput(err.Error())))
		}
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) error {
	return json.NewEncoder(w).Encode(data)
}

func readJSON(r *http.Request, data interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	defer func() { _ = r.Body.Close() }()

	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, data)
}
