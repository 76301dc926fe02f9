package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"crawlchat/audio"
	"crawlchat/voice"
)

func newVoiceCmd(baseURL *string) *cobra.Command {
	var (
		input   string
		output  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "voice",
		Short: "Run one voice exchange from a recorded file",
		Long: "Streams a prerecorded audio file to the voice endpoint as if it were\n" +
			"captured live, prints the transcription and reply, and saves the\n" +
			"spoken reply to the output directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*baseURL)
			if err != nil {
				return err
			}
			client, err := newBackend(cfg)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(output, 0700); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			player := audio.NewFilePlayer(output)
			vc := voice.NewClient(client.VoiceURL(), audio.NewFileRecorder(input, cfg.FragmentMS), player)
			defer vc.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := runVoiceExchange(ctx, vc, cmd); err != nil {
				return err
			}
			for _, path := range player.Saved() {
				fmt.Fprintf(cmd.OutOrStdout(), "Reply audio: %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "audio file to send (required)")
	cmd.Flags().StringVarP(&output, "output", "o", ".", "directory for the spoken reply")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "give up after this long")
	cmd.MarkFlagRequired("input")
	return cmd
}

// runVoiceExchange drives one exchange to completion, printing transcript
// entries as they arrive.
func runVoiceExchange(ctx context.Context, vc *voice.Client, cmd *cobra.Command) error {
	seq, err := vc.Start(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("voice exchange timed out")
			}
			return ctx.Err()

		case u := <-vc.Updates():
			if u.Seq != seq {
				continue
			}
			if u.Err != nil {
				return u.Err
			}
			switch u.Role {
			case voice.RoleUser:
				fmt.Fprintf(out, "You: %s\n", u.Text)
			case voice.RoleAssistant:
				fmt.Fprintf(out, "Assistant: %s\n", u.Text)
			}
			if u.Phase == voice.PhaseIdle {
				return nil
			}
		}
	}
}
