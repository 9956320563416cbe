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

package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voice-studio/internal/logging"
	"github.com/loqalabs/loqa-voice-studio/internal/security"
	"github.com/loqalabs/loqa-voice-studio/internal/studio"
	"github.com/loqalabs/loqa-voice-studio/internal/voicegen"
)

type option struct {
	Value    string
	Label    string
	Selected bool
}

// pageView is the data the form template renders
type pageView struct {
	studio.State

	Emotions       []option
	Tones          []option
	MinPace        voicegen.Pace
	MaxPace        voicegen.Pace
	PaceStep       voicegen.Pace
	RefreshSeconds int
}

func newPageView(st studio.State) pageView {
	v := pageView{
		State:          st,
		MinPace:        voicegen.MinPace,
		MaxPace:        voicegen.MaxPace,
		PaceStep:       voicegen.PaceStep,
		RefreshSeconds: refreshSeconds,
	}
	for _, e := range voicegen.Emotions {
		v.Emotions = append(v.Emotions, option{Value: string(e), Label: e.Label(), Selected: e == st.Draft.Emotion})
	}
	for _, t := range voicegen.Tones {
		v.Tones = append(v.Tones, option{Value: string(t), Label: t.Label(), Selected: t == st.Draft.Tone})
	}
	return v
}

// formView is the JSON rendition of the form
type formView struct {
	studio.State

	CanSubmit      bool   `json:"can_submit"`
	ButtonLabel    string `json:"button_label"`
	ButtonDisabled bool   `json:"button_disabled"`
	PaceLabel      string `json:"pace_label"`
	Started        *bool  `json:"started,omitempty"`
}

func newFormView(st studio.State) formView {
	return formView{
		State:          st,
		CanSubmit:      st.CanSubmit(),
		ButtonLabel:    st.ButtonLabel(),
		ButtonDisabled: st.ButtonDisabled(),
		PaceLabel:      st.PaceLabel(),
	}
}

// formUpdate carries the fields a JSON client wants to change
type formUpdate struct {
	Text    *string  `json:"text"`
	Emotion *string  `json:"emotion"`
	Tone    *string  `json:"tone"`
	Pace    *float64 `json:"pace"`
}

// events parses every present field. Nothing is returned unless all of
// them lie in their domains.
func (u formUpdate) events() ([]studio.Event, error) {
	var evs []studio.Event
	var errs []error

	if u.Text != nil {
		evs = append(evs, studio.TextChanged{Text: *u.Text})
	}
	if u.Emotion != nil {
		if ev, err := studio.ParseFieldEvent(studio.FieldEmotion, *u.Emotion); err != nil {
			errs = append(errs, err)
		} else {
			evs = append(evs, ev)
		}
	}
	if u.Tone != nil {
		if ev, err := studio.ParseFieldEvent(studio.FieldTone, *u.Tone); err != nil {
			errs = append(errs, err)
		} else {
			evs = append(evs, ev)
		}
	}
	if u.Pace != nil {
		if p, err := voicegen.NewPace(*u.Pace); err != nil {
			errs = append(errs, err)
		} else {
			evs = append(evs, studio.PaceChanged{Pace: p})
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return evs, nil
}

// handleIndex renders the form of the caller's session
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c, ok := s.controller(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.page.Execute(w, newPageView(c.State())); err != nil {
		logging.LogError(err, "Failed to render form", zap.String("session_id", c.ID()))
	}
}

// handleFormUpdate handles POST /form
func (s *Server) handleFormUpdate(w http.ResponseWriter, r *http.Request) {
	c, ok := s.postedForm(w, r)
	if !ok {
		return
	}
	applyFields(c, r.PostForm)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleFormGenerate handles POST /form/generate
func (s *Server) handleFormGenerate(w http.ResponseWriter, r *http.Request) {
	c, ok := s.postedForm(w, r)
	if !ok {
		return
	}
	applyFields(c, r.PostForm)
	c.Start(r.Context())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) postedForm(w http.ResponseWriter, r *http.Request) (*studio.Controller, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return nil, false
	}
	return s.controller(w, r)
}

// handleAPIForm handles GET /api/form and POST /api/form
func (s *Server) handleAPIForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c, ok := s.controller(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodPost {
		if !s.applyJSONUpdate(w, r, c) {
			return
		}
	}

	s.writeForm(w, http.StatusOK, newFormView(c.State()))
}

// handleAPIFormGenerate handles POST /api/form/generate. With ?wait=true
// the response is sent once the outcome is known, unless the client goes
// away or the wait limit passes first; the view is then still in flight
// and the status is 202.
func (s *Server) handleAPIFormGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	if !s.applyJSONUpdate(w, r, c) {
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	done, started := c.Start(r.Context())
	status := http.StatusOK
	if started && !(wait && s.waitFor(r.Context(), done)) {
		status = http.StatusAccepted
	}

	view := newFormView(c.State())
	view.Started = &started
	s.writeForm(w, status, view)
}

// waitFor blocks until done is closed, ctx ends or the wait limit passes.
// It reports whether the outcome arrived.
func (s *Server) waitFor(ctx context.Context, done <-chan struct{}) bool {
	if limit := s.waitLimit(); limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// waitLimit keeps a waiting response inside the server's write timeout
func (s *Server) waitLimit() time.Duration {
	timeout := s.cfg.Server.WriteTimeout
	if timeout <= 0 {
		return 0
	}
	return timeout - timeout/10
}

// applyJSONUpdate applies an optional JSON field update. It reports false
// after writing an error response.
func (s *Server) applyJSONUpdate(w http.ResponseWriter, r *http.Request, c *studio.Controller) bool {
	if r.ContentLength == 0 {
		return true
	}

	var update formUpdate
	if err := readJSON(r, &update); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}

	evs, err := update.events()
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = writeJSON(w, voicegen.ErrorResponse{Detail: err.Error()})
		return false
	}

	for _, ev := range evs {
		c.Update(ev)
	}
	return true
}

func (s *Server) writeForm(w http.ResponseWriter, status int, view formView) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := writeJSON(w, view); err != nil {
		logging.Sugar.Errorw("Failed to write form response", "error", err)
	}
}

// controller resolves the caller's session, writing a 500 on failure
func (s *Server) controller(w http.ResponseWriter, r *http.Request) (*studio.Controller, bool) {
	c, err := s.sessions.session(w, r)
	if err != nil {
		logging.LogError(err, "Failed to create form session", zap.String("host", security.SanitizeLogInput(r.Host)))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return c, true
}
