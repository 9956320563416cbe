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

// Package backend implements the generation endpoint the studio form posts to.
package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voice-studio/internal/events"
	"github.com/loqalabs/loqa-voice-studio/internal/logging"
	"github.com/loqalabs/loqa-voice-studio/internal/security"
	"github.com/loqalabs/loqa-voice-studio/internal/synth"
	"github.com/loqalabs/loqa-voice-studio/internal/voicegen"
)

const (
	// AudioRoute is the URL prefix generated files are served under
	AudioRoute = "/output/"

	successMessage = "Audio generated successfully"

	// maxRequestBody bounds the JSON body of a generation request
	maxRequestBody = 1 << 20
)

// Recorder persists generation attempts
type Recorder interface {
	Insert(event *events.GenerationEvent) error
}

// Publisher announces generation attempts to other services
type Publisher interface {
	PublishGeneration(event *events.GenerationEvent) error
}

// Handler serves POST /generate and the generated audio files
type Handler struct {
	synth     synth.Synthesizer
	outputDir string
	recorder  Recorder
	publisher Publisher
}

// NewHandler creates a generation handler. synthesizer, recorder and
// publisher may each be nil.
func NewHandler(synthesizer synth.Synthesizer, outputDir string, recorder Recorder, publisher Publisher) *Handler {
	return &Handler{
		synth:     synthesizer,
		outputDir: outputDir,
		recorder:  recorder,
		publisher: publisher,
	}
}

// HandleGenerate handles POST /generate
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := decodeRequest(r)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if h.synth == nil {
		writeDetail(w, http.StatusInternalServerError, "Model not initialized")
		return
	}

	event := events.NewGenerationEvent(req)
	audioPath, size, err := h.generate(r, req)
	if err != nil {
		event.SetError(err)
	} else {
		event.SetAudio(audioPath, size)
	}
	h.record(event)

	if err != nil {
		logging.LogError(err, "Audio generation failed",
			zap.String("component", "generation"),
			zap.String("uuid", event.UUID),
		)
		if errors.Is(err, synth.ErrModelNotInitialized) {
			writeDetail(w, http.StatusInternalServerError, "Model not initialized")
			return
		}
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	logging.LogGeneration("generated",
		zap.String("uuid", event.UUID),
		zap.String("audio_path", audioPath),
		zap.Int64("bytes", size),
		zap.Int64("processing_time_ms", event.ProcessingTime),
	)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(voicegen.Response{AudioPath: audioPath, Message: successMessage}); err != nil {
		logging.LogError(err, "Failed to write generation response")
	}
}

// generate synthesizes req into a new WAV file and returns its URL path
// relative to the service origin
func (h *Handler) generate(r *http.Request, req voicegen.Request) (string, int64, error) {
	if err := os.MkdirAll(h.outputDir, 0o750); err != nil {
		return "", 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	result, err := h.synth.Synthesize(r.Context(), req)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = result.Audio.Close() }()

	filename := uuid.NewString() + ".wav"
	filePath := filepath.Join(h.outputDir, filename)

	f, err := os.Create(filePath) //nolint:gosec // G304: name is a generated UUID
	if err != nil {
		return "", 0, fmt.Errorf("failed to create audio file: %w", err)
	}

	size, err := io.Copy(f, result.Audio)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(filePath)
		return "", 0, fmt.Errorf("failed to write audio file: %w", err)
	}

	return strings.TrimPrefix(AudioRoute, "/") + filename, size, nil
}

func (h *Handler) record(event *events.GenerationEvent) {
	if h.recorder != nil {
		if err := h.recorder.Insert(event); err != nil {
			logging.LogError(err, "Failed to record generation", zap.String("uuid", event.UUID))
		}
	}
	if h.publisher != nil {
		if err := h.publisher.PublishGeneration(event); err != nil {
			logging.LogWarn("Failed to publish generation event",
				zap.String("uuid", event.UUID),
				zap.Error(err),
			)
		}
	}
}

// ServeAudio handles GET /output/<file>
func (h *Handler) ServeAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, AudioRoute)
	if err := security.ValidateAudioFileName(name); err != nil {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(filepath.Join(h.outputDir, name)) //nolint:gosec // G304: name is validated above
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func decodeRequest(r *http.Request) (voicegen.Request, error) {
	var req voicegen.Request
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}

	if err := req.Validate(); err != nil {
		return req, err
	}

	pace, err := voicegen.NewPace(float64(req.Pace))
	if err != nil {
		return req, err
	}
	req.Pace = pace
	return req, nil
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(voicegen.ErrorResponse{Detail: detail})
}
