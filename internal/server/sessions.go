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
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voice-studio/internal/logging"
	"github.com/loqalabs/loqa-voice-studio/internal/security"
	"github.com/loqalabs/loqa-voice-studio/internal/studio"
)

// SessionCookie names the cookie that binds a browser to its form controller
const SessionCookie = "voicegen_session"

// sessionConfig describes how new sessions reach the generation service
type sessionConfig struct {
	client        *http.Client
	serviceOrigin string
	trustedHosts  []string
}

// sessionStore keeps one form controller per browser session. The oldest
// session is evicted once the store is full.
type sessionStore struct {
	mu            sync.Mutex
	cache         *lru.Cache[string, *studio.Controller]
	client        *http.Client
	serviceOrigin string
	trusted       map[string]bool
}

func newSessionStore(size int, cfg sessionConfig) (*sessionStore, error) {
	cache, err := lru.NewWithEvict(size, func(id string, _ *studio.Controller) {
		logging.LogFormEvent(id, "session_evicted")
	})
	if err != nil {
		return nil, err
	}

	trusted := make(map[string]bool, len(cfg.trustedHosts))
	for _, host := range cfg.trustedHosts {
		trusted[strings.ToLower(host)] = true
	}

	return &sessionStore{
		cache:         cache,
		client:        cfg.client,
		serviceOrigin: cfg.serviceOrigin,
		trusted:       trusted,
	}, nil
}

func (ss *sessionStore) setServiceOrigin(origin string) {
	ss.mu.Lock()
	ss.serviceOrigin = origin
	ss.mu.Unlock()
}

// lookup returns the controller bound to the request's session cookie
func (ss *sessionStore) lookup(r *http.Request) (*studio.Controller, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	return ss.cache.Get(cookie.Value)
}

// session returns the request's controller, creating one when the browser
// has none. Generation always goes to the service origin; only the playback
// URL follows the page's origin.
func (ss *sessionStore) session(w http.ResponseWriter, r *http.Request) (*studio.Controller, error) {
	if c, ok := ss.lookup(r); ok {
		return c, nil
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	// A concurrent request may have created it meanwhile
	if c, ok := ss.lookup(r); ok {
		return c, nil
	}

	service, err := studio.NewServiceClient(ss.serviceOrigin, ss.client)
	if err != nil {
		return nil, err
	}

	client := service
	if origin, ok := ss.pageOrigin(r); ok {
		if withPage, err := service.WithPlaybackOrigin(origin); err == nil {
			client = withPage
		}
	}

	id := uuid.NewString()
	c := studio.NewController(id, client)
	ss.cache.Add(id, c)

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   strings.HasPrefix(client.PlaybackOrigin(), "https://"),
	})

	logging.LogFormEvent(id, "session_created",
		zap.String("service_origin", client.Origin()),
		zap.String("playback_origin", security.SanitizeLogInput(client.PlaybackOrigin())))
	return c, nil
}

func (ss *sessionStore) len() int {
	return ss.cache.Len()
}

// pageOrigin is the scheme and host the page was loaded from. With trusted
// hosts configured, other hosts are refused and X-Forwarded-Proto is honoured
// for the listed ones.
func (ss *sessionStore) pageOrigin(r *http.Request) (string, bool) {
	host := strings.ToLower(r.Host)
	if host == "" {
		return "", false
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	if len(ss.trusted) > 0 {
		if !ss.trusted[host] {
			return "", false
		}
		proto := strings.Split(r.Header.Get("X-Forwarded-Proto"), ",")[0]
		switch proto = strings.ToLower(strings.TrimSpace(proto)); proto {
		case "http", "https":
			scheme = proto
		}
	}

	return scheme + "://" + host, true
}
