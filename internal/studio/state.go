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

// Package studio implements the generation form: an owned draft of voice
// parameters, a single-flight submission to the generation service and the
// resulting playback reference.
package studio

import (
	"fmt"

	"github.com/loqalabs/loqa-voice-studio/internal/voicegen"
)

// Field identifies one editable draft field
type Field string

const (
	FieldText    Field = "text"
	FieldEmotion Field = "emotion"
	FieldTone    Field = "tone"
	FieldPace    Field = "pace"
)

// Fields lists the draft fields in form order
var Fields = []Field{FieldText, FieldEmotion, FieldTone, FieldPace}

// Draft is the user-editable set of generation parameters
type Draft struct {
	Text    string           `json:"text"`
	Emotion voicegen.Emotion `json:"emotion"`
	Tone    voicegen.Tone    `json:"tone"`
	Pace    voicegen.Pace    `json:"pace"`
}

// NewDraft returns a draft holding the default parameters
func NewDraft() Draft {
	return Draft{
		Emotion: voicegen.DefaultEmotion,
		Tone:    voicegen.DefaultTone,
		Pace:    voicegen.DefaultPace,
	}
}

// Request snapshots the draft into a generation request
func (d Draft) Request() voicegen.Request {
	return voicegen.Request{
		Text:    d.Text,
		Emotion: d.Emotion,
		Tone:    d.Tone,
		Pace:    d.Pace,
	}
}

// State is the whole form: the draft plus the submission outcome.
// At most one of InFlight and a non-empty AudioURL holds.
type State struct {
	Draft    Draft  `json:"draft"`
	InFlight bool   `json:"in_flight"`
	AudioURL string `json:"audio_url,omitempty"`
}

// NewState returns the state of a fresh session
func NewState() State {
	return State{Draft: NewDraft()}
}

// Event is an input to State.Apply
type Event interface {
	event()
}

type (
	// TextChanged replaces the text field
	TextChanged struct{ Text string }
	// EmotionSelected replaces the emotion field
	EmotionSelected struct{ Emotion voicegen.Emotion }
	// ToneSelected replaces the tone field
	ToneSelected struct{ Tone voicegen.Tone }
	// PaceChanged replaces the pace field
	PaceChanged struct{ Pace voicegen.Pace }
	// SubmitRequested is the trigger press
	SubmitRequested struct{}
	// GenerationSucceeded carries the absolute playback URL of the new audio
	GenerationSucceeded struct{ AudioURL string }
	// GenerationFailed carries the reason a submission produced nothing
	GenerationFailed struct{ Err error }
)

func (TextChanged) event()         {}
func (EmotionSelected) event()     {}
func (ToneSelected) event()        {}
func (PaceChanged) event()         {}
func (SubmitRequested) event()     {}
func (GenerationSucceeded) event() {}
func (GenerationFailed) event()    {}

// ParseFieldEvent turns a raw field value from an input surface into the
// matching event. Values outside the field's domain are rejected.
func ParseFieldEvent(field Field, raw string) (Event, error) {
	switch field {
	case FieldText:
		return TextChanged{Text: raw}, nil
	case FieldEmotion:
		e, err := voicegen.ParseEmotion(raw)
		if err != nil {
			return nil, err
		}
		return EmotionSelected{Emotion: e}, nil
	case FieldTone:
		t, err := voicegen.ParseTone(raw)
		if err != nil {
			return nil, err
		}
		return ToneSelected{Tone: t}, nil
	case FieldPace:
		p, err := voicegen.ParsePace(raw)
		if err != nil {
			return nil, err
		}
		return PaceChanged{Pace: p}, nil
	default:
		return nil, fmt.Errorf("unknown field %q", field)
	}
}

// Apply returns the state after ev. When ev starts a submission the
// returned request is the snapshot to send; otherwise it is nil.
// Events that would leave a field outside its domain, submissions that
// fail the precondition and outcomes with nothing in flight leave the
// state unchanged.
func (s State) Apply(ev Event) (State, *voicegen.Request) {
	switch e := ev.(type) {
	case TextChanged:
		s.Draft.Text = e.Text
	case EmotionSelected:
		if e.Emotion.Valid() {
			s.Draft.Emotion = e.Emotion
		}
	case ToneSelected:
		if e.Tone.Valid() {
			s.Draft.Tone = e.Tone
		}
	case PaceChanged:
		if p, err := voicegen.NewPace(float64(e.Pace)); err == nil {
			s.Draft.Pace = p
		}
	case SubmitRequested:
		if !s.CanSubmit() {
			return s, nil
		}
		req := s.Draft.Request()
		s.InFlight = true
		s.AudioURL = ""
		return s, &req
	case GenerationSucceeded:
		if s.InFlight {
			s.InFlight = false
			s.AudioURL = e.AudioURL
		}
	case GenerationFailed:
		if s.InFlight {
			s.InFlight = false
			s.AudioURL = ""
		}
	}
	return s, nil
}

// CanSubmit reports whether the trigger is interactive
func (s State) CanSubmit() bool {
	return s.Draft.Text != "" && !s.InFlight
}

// ButtonDisabled is the disabled attribute of the trigger
func (s State) ButtonDisabled() bool {
	return !s.CanSubmit()
}

// ButtonLabel is the text shown on the trigger
func (s State) ButtonLabel() string {
	if s.InFlight {
		return "Generating..."
	}
	return "Generate Voice"
}

// PaceLabel is the pace shown next to the slider, e.g. "1.0x"
func (s State) PaceLabel() string {
	return s.Draft.Pace.Label()
}

// HasResult reports whether a playback element should be rendered
func (s State) HasResult() bool {
	return s.AudioURL != ""
}
