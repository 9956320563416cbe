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

package voicegen

import "errors"

// GeneratePath is the endpoint of the generation service, relative to its origin
const GeneratePath = "/generate"

// Request is the body POSTed to the generation endpoint
type Request struct {
	Text    string  `json:"text"`
	Emotion Emotion `json:"emotion"`
	Tone    Tone    `json:"tone"`
	Pace    Pace    `json:"pace"`
}

// Response is the success body returned by the generation endpoint
type Response struct {
	AudioPath string `json:"audio_path"`
	Message   string `json:"message"`
}

// ErrorResponse is the failure body returned by the generation endpoint
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Validate checks every field against its domain
func (r Request) Validate() error {
	var errs []error
	if r.Text == "" {
		errs = append(errs, ErrEmptyText)
	}
	if !r.Emotion.Valid() {
		errs = append(errs, ErrInvalidEmotion)
	}
	if !r.Tone.Valid() {
		errs = append(errs, ErrInvalidTone)
	}
	if !r.Pace.Valid() {
		errs = append(errs, ErrPaceOutOfRange)
	}
	return errors.Join(errs...)
}

// PlaybackURL is <origin>/<audio_path>, with audio_path taken verbatim
func PlaybackURL(origin, audioPath string) string {
	return origin + "/" + audioPath
}
