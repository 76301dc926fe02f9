package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"crawlchat/audio"
	"crawlchat/backend"
	"crawlchat/config"
	"crawlchat/model"
	"crawlchat/storage"
	"crawlchat/ui"
	"crawlchat/voice"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

func newRootCmd() *cobra.Command {
	var (
		baseURL string
		resume  string
	)

	cmd := &cobra.Command{
		Use:   "crawlchat",
		Short: "Terminal chat client for a crawl-and-answer backend",
		Long: "crawlchat asks questions about crawled web content, triggers new crawls\n" +
			"and holds spoken conversations with the backend's voice endpoint.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(baseURL, resume)
		},
	}

	cmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "backend base address (overrides config and "+config.EnvAPIBase+")")
	cmd.Flags().StringVar(&resume, "resume", "", "open a saved transcript by id (see history list)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newAskCmd(&baseURL))
	cmd.AddCommand(newCrawlCmd(&baseURL))
	cmd.AddCommand(newImageCmd(&baseURL))
	cmd.AddCommand(newVoiceCmd(&baseURL))
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newConfigCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crawlchat %s (%s)\n", Version, License)
		},
	}
}

// loadConfig reads configuration and applies the --base-url override.
func loadConfig(baseURL string) (*config.Config, error) {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	config.InitDebugLog(cfg.DataDir())
	return cfg, nil
}

func newBackend(cfg *config.Config) (*backend.Client, error) {
	client, err := backend.NewClient(cfg.BackendURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("invalid backend address: %w", err)
	}
	return client, nil
}

func runTUI(baseURL, resume string) error {
	cfg, err := loadConfig(baseURL)
	if err != nil {
		return showError("Configuration Error", err,
			"Check ~/.config/crawlchat/settings.toml and <data_directory>/config.toml.")
	}

	client, err := newBackend(cfg)
	if err != nil {
		return showError("Configuration Error", err,
			"The backend address must start with http:// or https://.")
	}

	voiceClient := voice.NewClient(
		client.VoiceURL(),
		audio.NewCommandRecorder(cfg.RecordCommand, cfg.FragmentMS),
		audio.NewCommandPlayer(cfg.PlayCommand),
	)
	defer voiceClient.Close()

	// Chat still works without an archive; saving is then disabled.
	var archive *storage.Archive
	if a, err := storage.NewArchive(cfg.DataDir()); err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("Warning: transcript archive unavailable: %v", err)
		}
	} else {
		archive = a
		defer archive.Close()
	}

	dataModel := model.NewModel(cfg, client, voiceClient, archive, Version, License)
	if resume != "" {
		if err := resumeTranscript(dataModel, resume); err != nil {
			return showError("Cannot Resume Transcript", err,
				"Run `crawlchat history list` to see saved transcript ids.")
		}
	}

	p := tea.NewProgram(
		ui.NewAppView(dataModel),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running crawlchat: %w", err)
	}
	return nil
}

// resumeTranscript loads an archived transcript into the model before the
// view starts.
func resumeTranscript(m *model.Model, id string) error {
	load := m.LoadTranscript(id)
	if load == nil {
		return fmt.Errorf("transcript archive unavailable")
	}

	msg, ok := load().(model.TranscriptLoadedMsg)
	if !ok {
		return fmt.Errorf("unexpected result loading transcript %s", id)
	}
	if msg.Err != nil {
		return fmt.Errorf("failed to load transcript %s: %w", id, msg.Err)
	}
	m.Apply(msg)
	return nil
}

// showError displays a startup failure in a modal and returns the error so
// the process exits non-zero.
func showError(title string, err error, hint string) error {
	p := tea.NewProgram(
		ui.NewErrorModal(title, err, hint),
		tea.WithAltScreen(),
	)
	if _, runErr := p.Run(); runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
	}
	return err
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
