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
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/loqa-voice-studio/internal/events"
	"github.com/loqalabs/loqa-voice-studio/internal/voicegen"
)

func newTestStore(t *testing.T) *GenerationsStore {
	t.Helper()
	db, err := NewDatabase(DatabaseConfig{Path: filepath.Join(t.TempDir(), "nested", "ledger.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Ping())
	return NewGenerationsStore(db)
}

func newEvent(text string, ok bool, at time.Time) *events.GenerationEvent {
	ev := events.NewGenerationEvent(voicegen.Request{
		Text:    text,
		Emotion: voicegen.EmotionHappy,
		Tone:    voicegen.ToneCasual,
		Pace:    1.1,
	})
	ev.Timestamp = at
	if ok {
		ev.SetAudio("output/"+ev.UUID+".wav", 2048)
	} else {
		ev.SetError(errors.New("model crashed"))
	}
	return ev
}

func TestNewDatabase_EmptyPath(t *testing.T) {
	_, err := NewDatabase(DatabaseConfig{})
	assert.Error(t, err)
}

func TestNewDatabase_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	db, err := NewDatabase(DatabaseConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, NewGenerationsStore(db).Insert(newEvent("persist", true, time.Now())))
	require.NoError(t, db.Close())

	db, err = NewDatabase(DatabaseConfig{Path: path})
	require.NoError(t, err)
	defer db.Close()

	count, err := NewGenerationsStore(db).Count(ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, path, db.GetPath())
}

func TestNewDatabase_UsesWAL(t *testing.T) {
	db, err := NewDatabase(DatabaseConfig{Path: filepath.Join(t.TempDir(), "ledger.db")})
	require.NoError(t, err)
	defer db.Close()

	// journal_mode is stored in the file, so any pooled connection reports it
	var mode string
	require.NoError(t, db.DB().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestGenerationsStore_InsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ev := newEvent("Hello", true, time.Now().UTC().Truncate(time.Millisecond))

	require.NoError(t, store.Insert(ev))

	got, err := store.GetByUUID(ev.UUID)
	require.NoError(t, err)
	assert.Equal(t, ev.UUID, got.UUID)
	assert.Equal(t, "Hello", got.Text)
	assert.Equal(t, "happy", got.Emotion)
	assert.Equal(t, "casual", got.Tone)
	assert.InDelta(t, 1.1, got.Pace, 1e-9)
	assert.Equal(t, ev.AudioPath, got.AudioPath)
	assert.Equal(t, int64(2048), got.AudioBytes)
	assert.True(t, got.Success)
	assert.True(t, ev.Timestamp.Equal(got.Timestamp))
}

func TestGenerationsStore_InsertRejectsInvalid(t *testing.T) {
	store := newTestStore(t)

	err := store.Insert(&events.GenerationEvent{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid generation event")
}

func TestGenerationsStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetByUUID("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGenerationsStore_ListAndCount(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().UTC().Add(-time.Hour)

	first := newEvent("first", true, base)
	second := newEvent("second", false, base.Add(time.Minute))
	third := newEvent("third", true, base.Add(2*time.Minute))
	for _, ev := range []*events.GenerationEvent{first, second, third} {
		require.NoError(t, store.Insert(ev))
	}

	all, err := store.List(ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Text)
	assert.Equal(t, "first", all[2].Text)

	page, err := store.List(ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "second", page[0].Text)

	success := true
	ok, err := store.List(ListOptions{Success: &success})
	require.NoError(t, err)
	assert.Len(t, ok, 2)

	failed := false
	count, err := store.Count(ListOptions{Success: &failed})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	total, err := store.Count(ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}
