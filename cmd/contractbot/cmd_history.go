package main

import (
	"fmt"

	"contractbot/internal/store"

	"github.com/spf13/cobra"
)

var historyLimit int

// historyCmd prints a session's persisted turns
var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Show the turn log of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "Maximum turns to show")
	historyCmd.Flags().BoolVar(&outputJSON, "json", false, "Print JSON instead of a table")
}

func runHistory(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if !cfg.Store.TurnLogEnabled {
		fmt.Fprintln(out, "Turn log is disabled (store.turn_log_enabled: false).")
		return nil
	}

	log, err := store.OpenTurnLog(cfg.Store.Driver, cfg.ResolveTurnLogPath())
	if err != nil {
		return err
	}
	defer log.Close()

	records, err := log.History(cmdContext(cmd), args[0], historyLimit)
	if err != nil {
		return err
	}
	if outputJSON {
		return writeJSON(out, records)
	}
	if len(records) == 0 {
		fmt.Fprintf(out, "No turns recorded for session %s.\n", args[0])
		return nil
	}

	fmt.Fprintf(out, "%4s  %-8s  %-18s  %-13s  %-12s  %-5s  %s\n", "#", "TIME", "ROLE", "QUERY", "PHASE", "OK", "INPUT")
	for _, r := range records {
		fmt.Fprintf(out, "%4d  %-8s  %-18s  %-13s  %-12s  %-5v  %s\n",
			r.TurnNumber, r.CreatedAt.Format("15:04:05"), r.Role, r.QueryType, r.Phase, r.Success, truncate(r.Input, 60))
	}
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
