package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"contractbot/cmd/contractbot/chat"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	turnSession string
	turnUser    string
	outputJSON  bool
)

// classifyCmd classifies a single utterance
var classifyCmd = &cobra.Command{
	Use:   "classify [text]",
	Short: "Classify an utterance into query and action types",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

// extractCmd lists the entities found in an utterance
var extractCmd = &cobra.Command{
	Use:   "extract [text]",
	Short: "Extract entities from an utterance",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExtract,
}

// turnCmd processes one turn of a conversation. Sessions survive between
// invocations when snapshots are enabled.
var turnCmd = &cobra.Command{
	Use:   "turn [text]",
	Short: "Process one conversation turn",
	Long: `Process one conversation turn and print the response.

With store.snapshot_enabled, the session is restored before the turn and saved
after it, so a conversation can be carried across invocations:

  contractbot turn --session s1 create contract
  contractbot turn --session s1 1000585412,Acme,Title,Desc,Notes,no
  contractbot turn --session s1 yes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTurn,
}

func init() {
	for _, c := range []*cobra.Command{classifyCmd, extractCmd, turnCmd} {
		c.Flags().BoolVar(&outputJSON, "json", false, "Print JSON instead of formatted text")
	}
	turnCmd.Flags().StringVarP(&turnSession, "session", "s", "cli", "Session ID")
	turnCmd.Flags().StringVarP(&turnUser, "user", "u", "", "User ID")
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runClassify(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cfg, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	a := rt.manager.Analyze(joinArgs(args))
	out := cmd.OutOrStdout()
	if outputJSON {
		return writeJSON(out, a)
	}
	fmt.Fprintf(out, "Query:     %s\n", a.Classification.QueryType)
	fmt.Fprintf(out, "Action:    %s\n", a.Classification.ActionType)
	if a.Corrected {
		fmt.Fprintf(out, "Corrected: %s\n", a.Normalized)
	}
	for _, e := range a.Entities {
		fmt.Fprintf(out, "Entity:    %s\n", e)
	}
	return nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cfg, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	entities := rt.manager.ExtractEntities(joinArgs(args))
	out := cmd.OutOrStdout()
	if outputJSON {
		return writeJSON(out, entities)
	}
	if len(entities) == 0 {
		fmt.Fprintln(out, "No entities found.")
		return nil
	}
	for _, e := range entities {
		fmt.Fprintf(out, "%-20s %-8s %s\n", e.Attribute, e.Operation, e.Value)
	}
	return nil
}

func runTurn(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cfg, runtimeOptions{persist: true, publish: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("Failed to close runtime", zap.Error(err))
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	resp := rt.manager.ProcessTurn(ctx, joinArgs(args), turnSession, turnUser)

	out := cmd.OutOrStdout()
	if outputJSON {
		return writeJSON(out, resp)
	}
	md := chat.RenderMarkdown(resp)
	r, err := glamour.NewTermRenderer(glamour.WithStylePath("notty"), glamour.WithWordWrap(100))
	if err == nil {
		if rendered, err := r.Render(md); err == nil {
			md = rendered
		}
	}
	_, err = io.WriteString(out, md)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
