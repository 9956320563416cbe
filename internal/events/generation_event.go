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

package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loqalabs/loqa-voice-studio/internal/voicegen"
)

// GenerationEvent records one call to the generation endpoint
type GenerationEvent struct {
	UUID      string    `json:"uuid" db:"uuid"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`

	// Request parameters
	Text    string  `json:"text" db:"text"`
	Emotion string  `json:"emotion" db:"emotion"`
	Tone    string  `json:"tone" db:"tone"`
	Pace    float64 `json:"pace" db:"pace"`

	// Outcome
	AudioPath      string `json:"audio_path,omitempty" db:"audio_path"`
	AudioBytes     int64  `json:"audio_bytes" db:"audio_bytes"`
	ProcessingTime int64  `json:"processing_time_ms" db:"processing_time_ms"`
	Success        bool   `json:"success" db:"success"`
	ErrorMessage   string `json:"error_message,omitempty" db:"error_message"`
}

// NewGenerationEvent creates an event for req with a fresh UUID and the current time
func NewGenerationEvent(req voicegen.Request) *GenerationEvent {
	return &GenerationEvent{
		UUID:      uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Text:      req.Text,
		Emotion:   string(req.Emotion),
		Tone:      string(req.Tone),
		Pace:      float64(req.Pace),
	}
}

// SetAudio marks the event as successful with the produced file
func (ge *GenerationEvent) SetAudio(audioPath string, size int64) {
	ge.Success = true
	ge.AudioPath = audioPath
	ge.AudioBytes = size
	ge.ErrorMessage = ""
	ge.ProcessingTime = time.Since(ge.Timestamp).Milliseconds()
}

// SetError marks the event as failed with an error message
func (ge *GenerationEvent) SetError(err error) {
	ge.Success = false
	ge.AudioPath = ""
	ge.ErrorMessage = err.Error()
	ge.ProcessingTime = time.Since(ge.Timestamp).Milliseconds()
}

// GetUUID returns the event identifier
func (ge *GenerationEvent) GetUUID() string {
	return ge.UUID
}

// IsValid performs basic validation on the event
func (ge *GenerationEvent) IsValid() error {
	if ge.UUID == "" {
		return fmt.Errorf("UUID is required")
	}

	if ge.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}

	if ge.Success && ge.AudioPath == "" {
		return fmt.Errorf("successful event requires an audio path")
	}

	if !ge.Success && ge.ErrorMessage == "" {
		return fmt.Errorf("failed event requires an error message")
	}

	return nil
}

// String returns a human-readable representation of the event
func (ge *GenerationEvent) String() string {
	return fmt.Sprintf("GenerationEvent{UUID: %s, Emotion: %s, Tone: %s, Pace: %.1f, Success: %t, AudioPath: %q}",
		ge.UUID, ge.Emotion, ge.Tone, ge.Pace, ge.Success, ge.AudioPath)
}
