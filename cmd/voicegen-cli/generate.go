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
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-voice-studio/internal/studio"
	"github.com/loqalabs/loqa-voice-studio/internal/voicegen"
)

var errGenerationFailed = errors.New("generation failed")

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate speech and print its playback URL",
		Args:  cobra.NoArgs,
		RunE:  runGenerate,
	}

	cmd.Flags().String("text", "", "text to speak (required)")
	cmd.Flags().String("emotion", string(voicegen.DefaultEmotion), "happy, sad, angry, neutral or excited")
	cmd.Flags().String("tone", string(voicegen.DefaultTone), "formal, casual, professional or friendly")
	cmd.Flags().Float64("pace", float64(voicegen.DefaultPace), "speech speed between 0.5 and 2.0")
	cmd.Flags().Bool("quiet", false, "do not show the progress spinner")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	origin, _ := cmd.Flags().GetString("url")
	quiet, _ := cmd.Flags().GetBool("quiet")

	client, err := studio.NewServiceClient(origin, &http.Client{Timeout: httpTimeout(cmd)})
	if err != nil {
		return err
	}

	text, _ := cmd.Flags().GetString("text")
	emotion, _ := cmd.Flags().GetString("emotion")
	tone, _ := cmd.Flags().GetString("tone")
	pace, _ := cmd.Flags().GetFloat64("pace")
	values := map[studio.Field]string{
		studio.FieldText:    text,
		studio.FieldEmotion: emotion,
		studio.FieldTone:    tone,
		studio.FieldPace:    strconv.FormatFloat(pace, 'f', -1, 64),
	}

	c := studio.NewController("cli", client)
	for _, field := range studio.Fields {
		if err := c.UpdateField(field, values[field]); err != nil {
			return fmt.Errorf("invalid --%s: %w", field, err)
		}
	}

	done, ok := c.Start(context.Background())
	if !ok {
		return errors.New("--text cannot be empty")
	}

	if quiet {
		<-done
	} else {
		waitWithSpinner(cmd, c, done)
	}

	state := c.State()
	if !state.HasResult() {
		return errGenerationFailed
	}

	fmt.Fprintln(cmd.OutOrStdout(), state.AudioURL)
	return nil
}

// waitWithSpinner shows the trigger label as a spinner until done is closed
func waitWithSpinner(cmd *cobra.Command, c *studio.Controller, done <-chan struct{}) {
	bar := progressbar.NewOptions64(
		-1,
		progressbar.OptionSetDescription(c.State().ButtonLabel()),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetWidth(10),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(cmd.ErrOrStderr(), "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			if c.State().HasResult() {
				bar.Describe("Done")
			} else {
				bar.Describe("Failed")
			}
			_ = bar.Finish()
			return
		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
}
