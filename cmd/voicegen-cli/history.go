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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-voice-studio/internal/api"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent generations recorded by the service",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	cmd.Flags().Int("limit", 20, "number of generations to show (max 100)")
	cmd.Flags().Int("page", 1, "page of results")
	cmd.Flags().String("status", "", "filter by outcome: success or failed")
	cmd.Flags().Bool("json", false, "print the raw JSON response")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	origin, _ := cmd.Flags().GetString("url")
	limit, _ := cmd.Flags().GetInt("limit")
	page, _ := cmd.Flags().GetInt("page")
	status, _ := cmd.Flags().GetString("status")
	asJSON, _ := cmd.Flags().GetBool("json")

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(limit))
	switch status {
	case "":
	case "success":
		query.Set("success", "true")
	case "failed":
		query.Set("success", "false")
	default:
		return fmt.Errorf("invalid --status %q: want success or failed", status)
	}

	client := &http.Client{Timeout: httpTimeout(cmd)}
	resp, err := client.Get(strings.TrimSuffix(origin, "/") + api.GenerationsRoute + "?" + query.Encode())
	if err != nil {
		return fmt.Errorf("failed to reach voice studio: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("history request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if asJSON {
		_, err := cmd.OutOrStdout().Write(body)
		return err
	}

	var list api.ListGenerationsResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(list.Generations) == 0 {
		fmt.Fprintln(out, "No generations recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEMOTION\tTONE\tPACE\tSTATUS\tRESULT\tTEXT")
	for _, g := range list.Generations {
		result := g.AudioPath
		outcome := "ok"
		if !g.Success {
			outcome = "failed"
			result = truncate(g.ErrorMessage, 40)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1fx\t%s\t%s\t%s\n",
			g.Timestamp.Local().Format("2006-01-02 15:04:05"),
			g.Emotion, g.Tone, g.Pace, outcome, result, truncate(g.Text, 40))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nPage %d of %d (%d total)\n", list.Page, list.TotalPages, list.Total)
	return nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
