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

package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voice-studio/internal/config"
	"github.com/loqalabs/loqa-voice-studio/internal/logging"
	"github.com/loqalabs/loqa-voice-studio/internal/voicegen"
)

// KokoroRequest represents a request to an OpenAI-compatible speech API
type KokoroRequest struct {
	Model        string  `json:"model"`
	Input        string  `json:"input"`
	Voice        string  `json:"voice"`
	Format       string  `json:"response_format"`
	Speed        float64 `json:"speed"`
	Instructions string  `json:"instructions,omitempty"`
}

// KokoroVoicesResponse represents the response from the voices endpoint
type KokoroVoicesResponse struct {
	Voices []string `json:"voices"`
}

// KokoroSynthesizer implements Synthesizer for Kokoro-82M and other
// OpenAI-compatible /audio/speech services
type KokoroSynthesizer struct {
	baseURL   string
	client    *http.Client
	config    config.TTSConfig
	semaphore chan struct{} // Limits concurrent requests
	ready     atomic.Bool

	mu              sync.RWMutex
	cachedVoices    []string
	voicesCacheTime time.Time
}

// NewKokoroSynthesizer creates a synthesizer and checks the service once
func NewKokoroSynthesizer(cfg config.TTSConfig) (*KokoroSynthesizer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("TTS URL cannot be empty")
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}

	k := &KokoroSynthesizer{
		baseURL:   strings.TrimSuffix(cfg.URL, "/"),
		client:    &http.Client{Timeout: cfg.Timeout},
		config:    cfg,
		semaphore: make(chan struct{}, cfg.MaxConcurrent),
	}

	voices, err := k.GetAvailableVoices()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS service: %w", err)
	}
	k.ready.Store(true)

	if !containsVoice(voices, cfg.Voice) {
		logging.LogWarn("Configured voice not offered by TTS service",
			zap.String("voice", cfg.Voice),
			zap.Strings("available", voices),
		)
	}

	if logging.Sugar != nil {
		logging.Sugar.Infow("🔊 TTS synthesizer initialized",
			"url", cfg.URL,
			"voice", cfg.Voice,
			"max_concurrent", cfg.MaxConcurrent,
		)
	}

	return k, nil
}

// Synthesize converts text to WAV speech
func (k *KokoroSynthesizer) Synthesize(ctx context.Context, req voicegen.Request) (*Result, error) {
	if req.Text == "" {
		return nil, voicegen.ErrEmptyText
	}

	select {
	case k.semaphore <- struct{}{}:
		defer func() { <-k.semaphore }()
	case <-ctx.Done():
		return nil, fmt.Errorf("TTS synthesis queue wait aborted: %w", ctx.Err())
	}

	startTime := time.Now()

	payload := KokoroRequest{
		Model:        k.config.Model,
		Input:        req.Text,
		Voice:        k.config.Voice,
		Format:       "wav",
		Speed:        float64(req.Pace),
		Instructions: Instructions(req),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	logging.LogTTSOperation("synthesis_start",
		zap.String("voice", payload.Voice),
		zap.Int("text_length", len(req.Text)),
		zap.String("emotion", string(req.Emotion)),
		zap.String("tone", string(req.Tone)),
		zap.Float64("speed", payload.Speed),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/wav")

	resp, err := k.client.Do(httpReq)
	if err != nil {
		k.ready.Store(false)
		logging.LogError(err, "TTS HTTP request failed",
			zap.String("voice", payload.Voice),
			zap.Int("text_length", len(req.Text)),
		)
		return nil, fmt.Errorf("TTS HTTP request failed: %w", err)
	}
	k.ready.Store(true)

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
		logging.LogWarn("TTS request failed",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response_body", string(detail)),
		)
		return nil, fmt.Errorf("TTS request failed with status %d: %s", resp.StatusCode, string(detail))
	}

	logging.LogTTSOperation("synthesis_complete",
		zap.String("voice", payload.Voice),
		zap.Duration("processing_time", time.Since(startTime)),
		zap.String("content_type", resp.Header.Get("Content-Type")),
		zap.Int64("content_length", resp.ContentLength),
	)

	return &Result{
		Audio:       resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Length:      resp.ContentLength,
	}, nil
}

// Ready reports whether the last contact with the service succeeded
func (k *KokoroSynthesizer) Ready() bool {
	return k.ready.Load()
}

// GetAvailableVoices returns the voices offered by the service, cached for an hour
func (k *KokoroSynthesizer) GetAvailableVoices() ([]string, error) {
	k.mu.RLock()
	if len(k.cachedVoices) > 0 && time.Since(k.voicesCacheTime) < time.Hour {
		voices := make([]string, len(k.cachedVoices))
		copy(voices, k.cachedVoices)
		k.mu.RUnlock()
		return voices, nil
	}
	k.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.baseURL+"/audio/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create voices request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch voices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voices request failed with status %d", resp.StatusCode)
	}

	var voicesResponse KokoroVoicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&voicesResponse); err != nil {
		return nil, fmt.Errorf("failed to decode voices response: %w", err)
	}

	k.mu.Lock()
	k.cachedVoices = make([]string, len(voicesResponse.Voices))
	copy(k.cachedVoices, voicesResponse.Voices)
	k.voicesCacheTime = time.Now()
	k.mu.Unlock()

	return voicesResponse.Voices, nil
}

// Close cleans up resources
func (k *KokoroSynthesizer) Close() error {
	k.ready.Store(false)
	k.client.CloseIdleConnections()
	return nil
}

func containsVoice(voices []string, voice string) bool {
	for _, v := range voices {
		if v == voice {
			return true
		}
	}
	return false
}
