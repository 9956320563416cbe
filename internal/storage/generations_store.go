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

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voice-studio/internal/events"
	"github.com/loqalabs/loqa-voice-studio/internal/logging"
)

// ErrNotFound is returned when no generation matches the lookup
var ErrNotFound = errors.New("generation not found")

const generationColumns = `uuid, timestamp, text, emotion, tone, pace,
	audio_path, audio_bytes, processing_time_ms, success, error_message`

// GenerationsStore handles database operations for generation events
type GenerationsStore struct {
	db *Database
}

// NewGenerationsStore creates a new generations store
func NewGenerationsStore(db *Database) *GenerationsStore {
	return &GenerationsStore{db: db}
}

// ListOptions defines filtering and pagination options
type ListOptions struct {
	Success *bool // nil = all, true = success only, false = errors only

	Limit  int
	Offset int
}

// Insert stores a new generation event
func (s *GenerationsStore) Insert(event *events.GenerationEvent) error {
	if err := event.IsValid(); err != nil {
		return fmt.Errorf("invalid generation event: %w", err)
	}

	query := `INSERT INTO generations (` + generationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.DB().Exec(query,
		event.UUID, event.Timestamp, event.Text, event.Emotion, event.Tone, event.Pace,
		event.AudioPath, event.AudioBytes, event.ProcessingTime, event.Success, event.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation event: %w", err)
	}

	logging.LogDatabaseOperation("insert", "generations",
		zap.String("uuid", event.UUID),
		zap.Bool("success", event.Success),
	)
	return nil
}

// GetByUUID retrieves a generation event by its UUID
func (s *GenerationsStore) GetByUUID(uuid string) (*events.GenerationEvent, error) {
	row := s.db.DB().QueryRow(`SELECT `+generationColumns+` FROM generations WHERE uuid = ?`, uuid)
	event, err := scanGeneration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uuid)
	}
	return event, err
}

// List retrieves generation events, newest first
func (s *GenerationsStore) List(options ListOptions) ([]*events.GenerationEvent, error) {
	where, args := buildWhere(options)
	query := `SELECT ` + generationColumns + ` FROM generations` + where + ` ORDER BY timestamp DESC`

	if options.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, options.Limit, options.Offset)
	}

	rows, err := s.db.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var list []*events.GenerationEvent
	for rows.Next() {
		event, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		list = append(list, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating generations: %w", err)
	}

	return list, nil
}

// Count returns the number of generation events matching the filter
func (s *GenerationsStore) Count(options ListOptions) (int64, error) {
	where, args := buildWhere(options)

	var count int64
	if err := s.db.DB().QueryRow(`SELECT COUNT(*) FROM generations`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count generations: %w", err)
	}
	return count, nil
}

func buildWhere(options ListOptions) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if options.Success != nil {
		conditions = append(conditions, "success = ?")
		args = append(args, *options.Success)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGeneration(row rowScanner) (*events.GenerationEvent, error) {
	var event events.GenerationEvent
	err := row.Scan(
		&event.UUID, &event.Timestamp, &event.Text, &event.Emotion, &event.Tone, &event.Pace,
		&event.AudioPath, &event.AudioBytes, &event.ProcessingTime, &event.Success, &event.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}
