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

package security

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrInvalidAudioFile is returned when a requested audio file name is unsafe
	ErrInvalidAudioFile = errors.New("invalid audio file name")

	// audioFilePattern admits the flat file names the generation endpoint writes
	audioFilePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+\.wav$`)

	logReplacer = strings.NewReplacer("\n", "", "\r", "")
)

// SanitizeLogInput removes line breaks so user-controlled text cannot forge log lines
func SanitizeLogInput(input string) string {
	return logReplacer.Replace(input)
}

// ValidateAudioFileName ensures name is a single WAV file inside the output
// directory. Path separators and parent references are rejected.
func ValidateAudioFileName(name string) error {
	if name == "" {
		return ErrInvalidAudioFile
	}

	if strings.Contains(name, "/") || strings.Contains(name, "\\") || strings.Contains(name, "..") {
		return ErrInvalidAudioFile
	}

	if !audioFilePattern.MatchString(name) {
		return ErrInvalidAudioFile
	}

	return nil
}
