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
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/loqa-voice-studio/internal/config"
	"github.com/loqalabs/loqa-voice-studio/internal/voicegen"
)

func testConfig(url string) config.TTSConfig {
	return config.TTSConfig{
		URL:           url,
		Model:         "kokoro",
		Voice:         "af_bella",
		MaxConcurrent: 2,
		Timeout:       5 * time.Second,
	}
}

func TestNewKokoroSynthesizer_EmptyURL(t *testing.T) {
	_, err := NewKokoroSynthesizer(testConfig(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "URL cannot be empty")
}

func TestNewKokoroSynthesizer_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewKokoroSynthesizer(testConfig(url))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}

func TestKokoroSynthesizer_Synthesize(t *testing.T) {
	var got KokoroRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio/voices":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"voices": ["af_bella", "af_sky"]}`))
		case "/audio/speech":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Header().Set("Content-Type", "audio/wav")
			_, _ = w.Write([]byte("RIFF-fake-wav"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	k, err := NewKokoroSynthesizer(testConfig(server.URL + "/"))
	require.NoError(t, err)
	defer k.Close()
	assert.True(t, k.Ready())

	result, err := k.Synthesize(context.Background(), voicegen.Request{
		Text:    "Hello world",
		Emotion: voicegen.EmotionHappy,
		Tone:    voicegen.ToneCasual,
		Pace:    1.3,
	})
	require.NoError(t, err)
	defer result.Audio.Close()

	data, err := io.ReadAll(result.Audio)
	require.NoError(t, err)
	assert.Equal(t, "RIFF-fake-wav", string(data))
	assert.Equal(t, "audio/wav", result.ContentType)

	assert.Equal(t, "kokoro", got.Model)
	assert.Equal(t, "Hello world", got.Input)
	assert.Equal(t, "af_bella", got.Voice)
	assert.Equal(t, "wav", got.Format)
	assert.InDelta(t, 1.3, got.Speed, 1e-9)
	assert.Equal(t, "Speak with a happy emotion in a casual tone.", got.Instructions)
}

func TestKokoroSynthesizer_SynthesizeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/audio/voices" {
			_, _ = w.Write([]byte(`{"voices": ["af_bella"]}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("model crashed"))
	}))
	defer server.Close()

	k, err := NewKokoroSynthesizer(testConfig(server.URL))
	require.NoError(t, err)

	_, err = k.Synthesize(context.Background(), voicegen.Request{Text: "Hi", Emotion: "neutral", Tone: "casual", Pace: 1})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "status 502"))
	assert.Contains(t, err.Error(), "model crashed")
}

func TestKokoroSynthesizer_EmptyText(t *testing.T) {
	k := &KokoroSynthesizer{}

	_, err := k.Synthesize(context.Background(), voicegen.Request{})
	assert.ErrorIs(t, err, voicegen.ErrEmptyText)
}

func TestKokoroSynthesizer_VoicesAreCached(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"voices": ["af_bella"]}`))
	}))
	defer server.Close()

	k, err := NewKokoroSynthesizer(testConfig(server.URL))
	require.NoError(t, err)

	voices, err := k.GetAvailableVoices()
	require.NoError(t, err)
	assert.Equal(t, []string{"af_bella"}, voices)
	assert.Equal(t, 1, calls)
}

func TestInstructions(t *testing.T) {
	req := voicegen.Request{Emotion: voicegen.EmotionSad, Tone: voicegen.ToneFormal}
	assert.Equal(t, "Speak with a sad emotion in a formal tone.", Instructions(req))
}
