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

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voice-studio/internal/events"
	"github.com/loqalabs/loqa-voice-studio/internal/logging"
	"github.com/loqalabs/loqa-voice-studio/internal/storage"
)

const (
	// GenerationsRoute lists the generation ledger
	GenerationsRoute = "/api/generations"

	defaultPageSize = 20
	maxPageSize     = 100
)

// GenerationsStore is the subset of the ledger the API reads
type GenerationsStore interface {
	GetByUUID(uuid string) (*events.GenerationEvent, error)
	List(options storage.ListOptions) ([]*events.GenerationEvent, error)
	Count(options storage.ListOptions) (int64, error)
}

// GenerationsHandler handles HTTP requests for the generation ledger
type GenerationsHandler struct {
	store GenerationsStore
}

// NewGenerationsHandler creates a new generations handler
func NewGenerationsHandler(store GenerationsStore) *GenerationsHandler {
	return &GenerationsHandler{store: store}
}

// ListGenerationsResponse represents the response for listing generations
type ListGenerationsResponse struct {
	Generations []*events.GenerationEvent `json:"generations"`
	Total       int64                     `json:"total"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
	TotalPages  int                       `json:"total_pages"`
}

// HandleGenerations handles GET /api/generations
func (h *GenerationsHandler) HandleGenerations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.listGenerations(w, r)
}

// HandleGenerationByID handles GET /api/generations/{id}
func (h *GenerationsHandler) HandleGenerationByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.Split(strings.TrimPrefix(r.URL.Path, GenerationsRoute+"/"), "/")[0]
	if id == "" {
		http.Error(w, "Generation ID is required", http.StatusBadRequest)
		return
	}

	event, err := h.store.GetByUUID(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Generation not found", http.StatusNotFound)
			return
		}
		logging.LogError(err, "Failed to get generation", zap.String("uuid", id))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, event)
}

func (h *GenerationsHandler) listGenerations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page := parseIntParam(query.Get("page"), 1)
	pageSize := parseIntParam(query.Get("page_size"), defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if page < 1 {
		page = 1
	}

	options := storage.ListOptions{
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}
	if successStr := query.Get("success"); successStr != "" {
		if success, err := strconv.ParseBool(successStr); err == nil {
			options.Success = &success
		}
	}

	total, err := h.store.Count(options)
	if err != nil {
		logging.LogError(err, "Failed to count generations")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	generations, err := h.store.List(options)
	if err != nil {
		logging.LogError(err, "Failed to list generations")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if generations == nil {
		generations = []*events.GenerationEvent{}
	}

	logging.LogDatabaseOperation("list", "generations",
		zap.Int("page", page),
		zap.Int("page_size", pageSize),
		zap.Int64("total_results", total),
	)

	writeJSON(w, ListGenerationsResponse{
		Generations: generations,
		Total:       total,
		Page:        page,
		PageSize:    pageSize,
		TotalPages:  int((total + int64(pageSize) - 1) / int64(pageSize)),
	})
}

func parseIntParam(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return v
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.LogError(err, "Failed to write API response")
	}
}
