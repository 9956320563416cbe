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

// Package voicegen holds the generation parameters shared by the form,
// the generation service and the CLI.
package voicegen

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrEmptyText      = errors.New("text cannot be empty")
	ErrInvalidEmotion = errors.New("invalid emotion")
	ErrInvalidTone    = errors.New("invalid tone")
	ErrPaceOutOfRange = errors.New("pace out of range")
)

// Emotion is one of a closed set of emotions the voice can carry
type Emotion string

const (
	EmotionHappy   Emotion = "happy"
	EmotionSad     Emotion = "sad"
	EmotionAngry   Emotion = "angry"
	EmotionNeutral Emotion = "neutral"
	EmotionExcited Emotion = "excited"

	DefaultEmotion = EmotionNeutral
)

// Emotions lists every valid emotion in display order
var Emotions = []Emotion{EmotionHappy, EmotionSad, EmotionAngry, EmotionNeutral, EmotionExcited}

// ParseEmotion returns the emotion named exactly by s
func ParseEmotion(s string) (Emotion, error) {
	e := Emotion(s)
	if !e.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmotion, s)
	}
	return e, nil
}

// Valid reports whether e belongs to the closed set
func (e Emotion) Valid() bool {
	for _, known := range Emotions {
		if e == known {
			return true
		}
	}
	return false
}

// Label is the capitalized display name
func (e Emotion) Label() string {
	return capitalize(string(e))
}

// Tone is one of a closed set of speaking registers
type Tone string

const (
	ToneFormal       Tone = "formal"
	ToneCasual       Tone = "casual"
	ToneProfessional Tone = "professional"
	ToneFriendly     Tone = "friendly"

	DefaultTone = ToneCasual
)

// Tones lists every valid tone in display order
var Tones = []Tone{ToneFormal, ToneCasual, ToneProfessional, ToneFriendly}

// ParseTone returns the tone named exactly by s
func ParseTone(s string) (Tone, error) {
	t := Tone(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTone, s)
	}
	return t, nil
}

// Valid reports whether t belongs to the closed set
func (t Tone) Valid() bool {
	for _, known := range Tones {
		if t == known {
			return true
		}
	}
	return false
}

// Label is the capitalized display name
func (t Tone) Label() string {
	return capitalize(string(t))
}

// Pace is the speech speed multiplier
type Pace float64

const (
	MinPace     Pace = 0.5
	MaxPace     Pace = 2.0
	PaceStep    Pace = 0.1
	DefaultPace Pace = 1.0
)

// paceEpsilon absorbs float noise from slider values such as 0.30000000000000004
const paceEpsilon = 1e-9

// NewPace validates v against [MinPace, MaxPace] and snaps it to the 0.1 grid
func NewPace(v float64) (Pace, error) {
	if math.IsNaN(v) || v < float64(MinPace)-paceEpsilon || v > float64(MaxPace)+paceEpsilon {
		return 0, fmt.Errorf("%w: %v not in [%.1f, %.1f]", ErrPaceOutOfRange, v, float64(MinPace), float64(MaxPace))
	}
	snapped := math.Round(v/float64(PaceStep)) / 10
	return Pace(math.Min(math.Max(snapped, float64(MinPace)), float64(MaxPace))), nil
}

// ParsePace parses a decimal string into a Pace
func ParsePace(s string) (Pace, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrPaceOutOfRange, s)
	}
	return NewPace(v)
}

// Valid reports whether p lies in the allowed range
func (p Pace) Valid() bool {
	return !math.IsNaN(float64(p)) &&
		float64(p) >= float64(MinPace)-paceEpsilon &&
		float64(p) <= float64(MaxPace)+paceEpsilon
}

// Label formats the pace with one decimal and an "x" suffix, e.g. "1.0x"
func (p Pace) Label() string {
	return fmt.Sprintf("%.1fx", float64(p))
}

// String formats the pace as the slider value, e.g. "1.5"
func (p Pace) String() string {
	return strconv.FormatFloat(float64(p), 'f', 1, 64)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
