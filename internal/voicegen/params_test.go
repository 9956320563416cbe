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

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmotion(t *testing.T) {
	for _, e := range Emotions {
		got, err := ParseEmotion(string(e))
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}

	for _, bad := range []string{"", "bored", "calm", "neutral!", "Happy", " happy", "HAPPY"} {
		_, err := ParseEmotion(bad)
		assert.ErrorIs(t, err, ErrInvalidEmotion, "input %q", bad)
	}
}

func TestParseTone(t *testing.T) {
	for _, tone := range Tones {
		got, err := ParseTone(string(tone))
		require.NoError(t, err)
		assert.Equal(t, tone, got)
	}

	for _, bad := range []string{"", "urgent", "sarcastic", "Formal", "casual "} {
		_, err := ParseTone(bad)
		assert.ErrorIs(t, err, ErrInvalidTone, "input %q", bad)
	}
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, EmotionNeutral, DefaultEmotion)
	assert.Equal(t, ToneCasual, DefaultTone)
	assert.Equal(t, Pace(1.0), DefaultPace)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Happy", EmotionHappy.Label())
	assert.Equal(t, "Professional", ToneProfessional.Label())
}

func TestNewPace(t *testing.T) {
	tests := []struct {
		name    string
		input   float64
		want    Pace
		wantErr bool
	}{
		{name: "minimum", input: 0.5, want: 0.5},
		{name: "maximum", input: 2.0, want: 2.0},
		{name: "default", input: 1.0, want: 1.0},
		{name: "float noise snaps", input: 0.30000000000000004 + 0.4, want: 0.7},
		{name: "off grid snaps", input: 1.26, want: 1.3},
		{name: "below range", input: 0.4, wantErr: true},
		{name: "above range", input: 2.1, wantErr: true},
		{name: "zero", input: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewPace(tt.input)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrPaceOutOfRange))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, float64(tt.want), float64(got), 1e-9)
		})
	}
}

func TestPaceLabelForEveryStep(t *testing.T) {
	want := []string{
		"0.5x", "0.6x", "0.7x", "0.8x", "0.9x", "1.0x", "1.1x", "1.2x",
		"1.3x", "1.4x", "1.5x", "1.6x", "1.7x", "1.8x", "1.9x", "2.0x",
	}
	for i, label := range want {
		p, err := NewPace(0.5 + float64(i)*0.1)
		require.NoError(t, err)
		assert.Equal(t, label, p.Label())
	}
}

func TestParsePace(t *testing.T) {
	p, err := ParsePace("1.5")
	require.NoError(t, err)
	assert.Equal(t, "1.5", p.String())

	_, err = ParsePace("fast")
	assert.ErrorIs(t, err, ErrPaceOutOfRange)
}

func TestRequestValidate(t *testing.T) {
	valid := Request{Text: "hello", Emotion: EmotionHappy, Tone: ToneFriendly, Pace: 1.0}
	assert.NoError(t, valid.Validate())

	bad := Request{Emotion: "bored", Tone: "loud", Pace: 3}
	err := bad.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.ErrorIs(t, err, ErrInvalidEmotion)
	assert.ErrorIs(t, err, ErrInvalidTone)
	assert.ErrorIs(t, err, ErrPaceOutOfRange)
}

func TestPlaybackURL(t *testing.T) {
	assert.Equal(t, "http://host:8000/out/1.wav", PlaybackURL("http://host:8000", "out/1.wav"))
	assert.Equal(t, "http://host:8000//out/1.wav", PlaybackURL("http://host:8000", "/out/1.wav"))
}
