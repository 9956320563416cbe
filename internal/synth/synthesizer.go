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
	"errors"
	"fmt"
	"io"

	"github.com/loqalabs/loqa-voice-studio/internal/voicegen"
)

// ErrModelNotInitialized is returned when no speech backend is available
var ErrModelNotInitialized = errors.New("model not initialized")

// Result holds the result of text-to-speech synthesis
type Result struct {
	Audio       io.ReadCloser // WAV audio stream, closed by the caller
	ContentType string        // MIME type reported by the backend
	Length      int64         // Audio length in bytes (-1 if unknown)
}

// Synthesizer turns a generation request into WAV audio
type Synthesizer interface {
	// Synthesize converts the request text to speech
	Synthesize(ctx context.Context, req voicegen.Request) (*Result, error)

	// Ready reports whether the backend answered its last health check
	Ready() bool

	// Close cleans up resources
	Close() error
}

// Instructions renders emotion and tone as a style prompt for the speech model
func Instructions(req voicegen.Request) string {
	return fmt.Sprintf("Speak with a %s emotion in a %s tone.", req.Emotion, req.Tone)
}
