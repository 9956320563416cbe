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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/loqalabs/loqa-voice-studio/internal/voicegen"
)

// maxErrorBody bounds how much of a failed response is kept for the diagnostic
const maxErrorBody = 4 << 10

// ServiceClient sends generation requests to the service at origin. Playback
// URLs are built against the playback origin, which defaults to origin.
type ServiceClient struct {
	origin   string
	playback string
	client   *http.Client
}

// NewServiceClient creates a client for the generation service at origin
// (scheme://host[:port]). A nil httpClient gets a client without timeout.
func NewServiceClient(origin string, httpClient *http.Client) (*ServiceClient, error) {
	normalized, err := normalizeOrigin(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid service origin %q: %w", origin, err)
	}

	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &ServiceClient{
		origin:   normalized,
		playback: normalized,
		client:   httpClient,
	}, nil
}

// WithPlaybackOrigin returns a copy of the client whose playback URLs use
// origin instead of the service origin. Requests still go to the service.
func (c *ServiceClient) WithPlaybackOrigin(origin string) (*ServiceClient, error) {
	normalized, err := normalizeOrigin(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid playback origin %q: %w", origin, err)
	}
	dup := *c
	dup.playback = normalized
	return &dup, nil
}

// Origin returns the normalized service origin
func (c *ServiceClient) Origin() string {
	return c.origin
}

// PlaybackOrigin returns the origin playback URLs are built against
func (c *ServiceClient) PlaybackOrigin() string {
	return c.playback
}

func normalizeOrigin(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host")
	}
	return strings.TrimSuffix(u.Scheme+"://"+u.Host, "/"), nil
}

// Generate POSTs req to <origin>/generate and returns <playback origin>/<audio_path>
func (c *ServiceClient) Generate(ctx context.Context, req voicegen.Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.origin+voicegen.GeneratePath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("generation request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var out voicegen.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}
	if out.AudioPath == "" {
		return "", fmt.Errorf("generation response missing audio_path")
	}

	return voicegen.PlaybackURL(c.playback, out.AudioPath), nil
}
