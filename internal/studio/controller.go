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

package studio

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voice-studio/internal/logging"
	"github.com/loqalabs/loqa-voice-studio/internal/voicegen"
)

// Generator performs one generation request and returns the absolute
// playback URL of the produced audio
type Generator interface {
	Generate(ctx context.Context, req voicegen.Request) (string, error)
}

// Controller owns the form state of one session
type Controller struct {
	id        string
	generator Generator

	mu    sync.Mutex
	state State
}

// NewController creates a controller with a default draft
func NewController(id string, generator Generator) *Controller {
	return &Controller{
		id:        id,
		generator: generator,
		state:     NewState(),
	}
}

// ID returns the session identifier the controller was created with
func (c *Controller) ID() string {
	return c.id
}

// State returns a copy of the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Update applies a field event. Submission and outcome events are ignored.
func (c *Controller) Update(ev Event) {
	switch ev.(type) {
	case TextChanged, EmotionSelected, ToneSelected, PaceChanged:
	default:
		return
	}

	c.mu.Lock()
	c.state, _ = c.state.Apply(ev)
	c.mu.Unlock()
}

// UpdateField parses raw for field and applies it. A value outside the
// field's domain is rejected and leaves the state unchanged.
func (c *Controller) UpdateField(field Field, raw string) error {
	ev, err := ParseFieldEvent(field, raw)
	if err != nil {
		return err
	}
	c.Update(ev)
	return nil
}

// Start begins a submission if the precondition holds. In-flight is set
// before Start returns; the request runs on its own goroutine and done is
// closed once the outcome has been applied. ok is false when the call was
// a no-op. Cancelling ctx does not abort the request.
func (c *Controller) Start(ctx context.Context) (done <-chan struct{}, ok bool) {
	c.mu.Lock()
	next, req := c.state.Apply(SubmitRequested{})
	if req == nil {
		c.mu.Unlock()
		return nil, false
	}
	c.state = next
	c.mu.Unlock()

	logging.LogFormEvent(c.id, "submit_started",
		zap.String("emotion", string(req.Emotion)),
		zap.String("tone", string(req.Tone)),
		zap.Float64("pace", float64(req.Pace)),
		zap.Int("text_length", len(req.Text)),
	)

	ch := make(chan struct{})
	go func() {
		defer close(ch)
		c.run(context.WithoutCancel(ctx), *req)
	}()
	return ch, true
}

// Submit is Start followed by waiting for the outcome. It reports whether
// a request was issued.
func (c *Controller) Submit(ctx context.Context) bool {
	done, ok := c.Start(ctx)
	if !ok {
		return false
	}
	<-done
	return true
}

func (c *Controller) run(ctx context.Context, req voicegen.Request) {
	startTime := time.Now()
	audioURL, err := c.generator.Generate(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state, _ = c.state.Apply(GenerationFailed{Err: err})
		logging.LogError(err, "Error generating audio",
			zap.String("component", "studio"),
			zap.String("session_id", c.id),
			zap.Duration("elapsed", time.Since(startTime)),
		)
		return
	}

	c.state, _ = c.state.Apply(GenerationSucceeded{AudioURL: audioURL})
	logging.LogFormEvent(c.id, "submit_succeeded",
		zap.String("audio_url", audioURL),
		zap.Duration("elapsed", time.Since(startTime)),
	)
}
