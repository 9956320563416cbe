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

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-voice-studio/internal/logging"
)

const defaultStudioURL = "http://localhost:8000"

// NewRootCmd builds the voicegen-cli command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "voicegen-cli",
		Short:         "Command line client for the Loqa voice studio",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			return logging.InitializeWithConfig(logging.LogConfig{Level: level, Format: "console"})
		},
	}

	rootCmd.PersistentFlags().String("url", defaultStudioURL, "origin of the voice studio service")
	rootCmd.PersistentFlags().Duration("timeout", 0, "give up after this long (0 waits for the service)")
	rootCmd.PersistentFlags().String("log-level", "error", "log level for diagnostics on stderr")

	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newHistoryCmd())
	return rootCmd
}

func main() {
	err := NewRootCmd().Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func httpTimeout(cmd *cobra.Command) time.Duration {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return timeout
}
