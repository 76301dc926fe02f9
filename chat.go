package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"crawlchat/backend"
)

func newAskCmd(baseURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about crawled content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return fmt.Errorf("question must not be empty")
			}

			client, err := clientFromFlags(*baseURL)
			if err != nil {
				return err
			}

			answer, err := client.Ask(cmd.Context(), question)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
}

func newCrawlCmd(baseURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a web page into the backend's knowledge base",
		Long:  "Crawls the page at <url>. Addresses without a scheme are treated as https.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := backend.NormalizeURL(args[0])
			if target == "" {
				return fmt.Errorf("url must not be empty")
			}

			client, err := clientFromFlags(*baseURL)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Crawling URL: %s\n", target)
			msg, err := client.Crawl(cmd.Context(), target)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, msg)
			return nil
		},
	}
}

func newImageCmd(baseURL *string) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "image <prompt>",
		Short: "Generate an image from a text prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				return fmt.Errorf("prompt must not be empty")
			}

			client, err := clientFromFlags(*baseURL)
			if err != nil {
				return err
			}

			data, err := client.GenerateImage(cmd.Context(), prompt)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write image: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s\n", len(data), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "image.png", "file to write the PNG to")
	return cmd
}

func clientFromFlags(baseURL string) (*backend.Client, error) {
	cfg, err := loadConfig(baseURL)
	if err != nil {
		return nil, err
	}
	return newBackend(cfg)
}
