package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/researchagent/internal/sessions"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect persisted chat sessions",
	}
	cmd.AddCommand(newSessionsListCmd(), newSessionsShowCmd(), newSessionsDeleteCmd())
	return cmd
}

// sessionsStore opens the file history store directly: the inspection
// commands read persisted snapshots only, never a live engine's state
// (spec §5 "Shared-resource policy").
func sessionsStore() (*sessions.FileHistoryStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return sessions.NewFileHistoryStore(cfg.DataBaseDir), nil
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List persisted sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sessionsStore()
			if err != nil {
				return err
			}
			summaries, err := store.Scan()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tRESPONSES\tUPDATED\tFIRST MESSAGE")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
					s.SessionID, s.ResponseCount,
					s.UpdatedAt.Format("2006-01-02 15:04"), s.FirstMessage)
			}
			return w.Flush()
		},
	}
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session_id>",
		Short: "Print a session's full response history as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sessionsStore()
			if err != nil {
				return err
			}
			history, err := store.Load(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(history)
		},
	}
}

func newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session_id>",
		Short: "Remove a session's persisted transcripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sessionsStore()
			if err != nil {
				return err
			}
			if err := store.Remove(args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}
}
