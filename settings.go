package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"crawlchat/backend"
	"crawlchat/config"
)

// settingKeys lists the user config fields the config command can edit.
var settingKeys = []string{"base_url", "record_command", "play_command", "fragment_ms"}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change user settings",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "data_directory = %s\n", cfg.DataDir())
			fmt.Fprintf(out, "base_url       = %s\n", cfg.BaseURL)
			fmt.Fprintf(out, "record_command = %s\n", cfg.RecordCommand)
			fmt.Fprintf(out, "play_command   = %s\n", cfg.PlayCommand)
			fmt.Fprintf(out, "fragment_ms    = %d\n", cfg.FragmentMS)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting in the user config file",
		Long:  "Keys: " + strings.Join(settingKeys, ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}

			dataDir := cfg.DataDir()
			userCfg, err := config.LoadUserConfig(dataDir)
			if err != nil {
				return err
			}
			if err := applySetting(userCfg, args[0], args[1]); err != nil {
				return err
			}
			if err := config.SaveUserConfig(userCfg, dataDir); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
			return nil
		},
	}
}

func applySetting(cfg *config.UserConfig, key, value string) error {
	switch key {
	case "base_url":
		if _, err := backend.NewClient(value, nil); err != nil {
			return err
		}
		cfg.Backend.BaseURL = value
	case "record_command":
		cfg.Voice.RecordCommand = value
	case "play_command":
		cfg.Voice.PlayCommand = value
	case "fragment_ms":
		ms, err := strconv.Atoi(value)
		if err != nil || ms <= 0 {
			return fmt.Errorf("fragment_ms must be a positive integer, got %q", value)
		}
		cfg.Voice.FragmentMS = ms
	default:
		return fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(settingKeys, ", "))
	}
	return nil
}
