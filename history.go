package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"crawlchat/model"
	"crawlchat/storage"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage saved transcripts",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryExportCmd())
	cmd.AddCommand(newHistoryDeleteCmd())
	cmd.AddCommand(newHistorySearchCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved transcripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(func(a *storage.Archive) error {
				list, err := a.List()
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No saved transcripts.")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tMESSAGES\tUPDATED")
				for _, t := range list {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", t.ID, t.Name, t.MessageCount, t.UpdatedAt.Format(time.DateTime))
				}
				return w.Flush()
			})
		},
	}
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(func(a *storage.Archive) error {
				t, err := a.Load(args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\n\n", t.Name, t.BaseURL)
				fmt.Fprint(out, model.FormatPlain(model.FromStorage(t.Messages).Messages()))
				return nil
			})
		},
	}
}

func newHistoryExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a saved transcript as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(func(a *storage.Archive) error {
				path := output
				if path == "" {
					t, err := a.Load(args[0])
					if err != nil {
						return err
					}
					path = storage.GenerateExportPath(t.Name)
				}

				if err := a.ExportToJSON(args[0], path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file (default ~/Downloads/crawlchat-<name>-<time>.json)")
	return cmd
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(func(a *storage.Archive) error {
				if err := a.Delete(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newHistorySearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Fuzzy-search every saved transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(func(a *storage.Archive) error {
				matches, err := a.SearchAll(args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(matches) == 0 {
					fmt.Fprintln(out, "No matches.")
					return nil
				}
				for _, m := range matches {
					fmt.Fprintf(out, "%s  %s  [%s] %s\n", m.TranscriptID, m.TranscriptName, m.Role, m.Preview)
				}
				return nil
			})
		},
	}
}

func withArchive(fn func(*storage.Archive) error) error {
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}

	a, err := storage.NewArchive(cfg.DataDir())
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}
