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

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/loqa-voice-studio/internal/events"
	"github.com/loqalabs/loqa-voice-studio/internal/synth"
	"github.com/loqalabs/loqa-voice-studio/internal/voicegen"
)

type fakeSynth struct {
	audio string
	err   error

	mu   sync.Mutex
	reqs []voicegen.Request
}

func (f *fakeSynth) Synthesize(ctx context.Context, req voicegen.Request) (*synth.Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &synth.Result{
		Audio:       io.NopCloser(strings.NewReader(f.audio)),
		ContentType: "audio/wav",
		Length:      int64(len(f.audio)),
	}, nil
}

func (f *fakeSynth) Ready() bool  { return true }
func (f *fakeSynth) Close() error { return nil }

type memoryRecorder struct {
	mu     sync.Mutex
	events []*events.GenerationEvent
}

func (m *memoryRecorder) Insert(event *events.GenerationEvent) error {
	if err := event.IsValid(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) PublishGeneration(*events.GenerationEvent) error {
	p.calls++
	return errors.New("nats down")
}

const validBody = `{"text":"Hello there","emotion":"happy","tone":"friendly","pace":1.0}`

func postGenerate(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, voicegen.GeneratePath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)
	return rec
}

func TestHandleGenerate_Success(t *testing.T) {
	dir := t.TempDir()
	fs := &fakeSynth{audio: "RIFF....WAVE"}
	recorder := &memoryRecorder{}
	h := NewHandler(fs, dir, recorder, nil)

	rec := postGenerate(h, validBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp voicegen.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Audio generated successfully", resp.Message)
	assert.True(t, strings.HasPrefix(resp.AudioPath, "output/"))
	assert.True(t, strings.HasSuffix(resp.AudioPath, ".wav"))

	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(resp.AudioPath, "output/")))
	require.NoError(t, err)
	assert.Equal(t, "RIFF....WAVE", string(data))

	require.Len(t, fs.reqs, 1)
	assert.Equal(t, voicegen.Request{Text: "Hello there", Emotion: voicegen.EmotionHappy, Tone: voicegen.ToneFriendly, Pace: 1.0}, fs.reqs[0])

	require.Len(t, recorder.events, 1)
	assert.True(t, recorder.events[0].Success)
	assert.Equal(t, resp.AudioPath, recorder.events[0].AudioPath)
	assert.Equal(t, int64(12), recorder.events[0].AudioBytes)
}

func TestHandleGenerate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"text":`},
		{name: "empty text", body: `{"text":"","emotion":"happy","tone":"formal","pace":1}`},
		{name: "unknown emotion", body: `{"text":"hi","emotion":"bored","tone":"formal","pace":1}`},
		{name: "unknown tone", body: `{"text":"hi","emotion":"happy","tone":"loud","pace":1}`},
		{name: "emotion is case sensitive", body: `{"text":"hi","emotion":"HAPPY","tone":"formal","pace":1}`},
		{name: "tone is case sensitive", body: `{"text":"hi","emotion":"happy","tone":"Formal","pace":1}`},
		{name: "pace too fast", body: `{"text":"hi","emotion":"happy","tone":"formal","pace":2.5}`},
		{name: "missing pace", body: `{"text":"hi","emotion":"happy","tone":"formal"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeSynth{audio: "x"}
			h := NewHandler(fs, t.TempDir(), nil, nil)

			rec := postGenerate(h, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

			var resp voicegen.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Detail)
			assert.Empty(t, fs.reqs)
		})
	}
}

func TestHandleGenerate_ModelNotInitialized(t *testing.T) {
	h := NewHandler(nil, t.TempDir(), nil, nil)

	rec := postGenerate(h, validBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Model not initialized"}`, rec.Body.String())
}

func TestHandleGenerate_SynthesisFailureIsRecorded(t *testing.T) {
	fs := &fakeSynth{err: errors.New("speech backend returned status 503")}
	recorder := &memoryRecorder{}
	publisher := &failingPublisher{}
	h := NewHandler(fs, t.TempDir(), recorder, publisher)

	rec := postGenerate(h, validBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "status 503")

	require.Len(t, recorder.events, 1)
	assert.False(t, recorder.events[0].Success)
	assert.Contains(t, recorder.events[0].ErrorMessage, "503")

	// Publish failures do not change the response
	assert.Equal(t, 1, publisher.calls)
}

func TestHandleGenerate_MethodNotAllowed(t *testing.T) {
	h := NewHandler(&fakeSynth{}, t.TempDir(), nil, nil)
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, httptest.NewRequest(http.MethodGet, voicegen.GeneratePath, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServeAudio(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.wav"), []byte("RIFF"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("secret"), 0o600))
	h := NewHandler(nil, dir, nil, nil)

	rec := httptest.NewRecorder()
	h.ServeAudio(rec, httptest.NewRequest(http.MethodGet, "/output/clip.wav", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Equal(t, "RIFF", rec.Body.String())

	for _, p := range []string{"/output/missing.wav", "/output/notes.txt", "/output/"} {
		rec := httptest.NewRecorder()
		h.ServeAudio(rec, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, p)
	}
}
