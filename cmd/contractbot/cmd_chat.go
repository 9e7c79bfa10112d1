package main

import (
	"fmt"
	"os"

	"contractbot/cmd/contractbot/chat"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	chatSession string
	chatUser    string
)

// chatCmd starts the interactive terminal chat
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat (default)",
	RunE:  runChat,
}

func init() {
	for _, c := range []*cobra.Command{chatCmd, rootCmd} {
		c.Flags().StringVarP(&chatSession, "session", "s", "", "Resume a session ID")
		c.Flags().StringVarP(&chatUser, "user", "u", os.Getenv("USER"), "User ID")
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cfg, runtimeOptions{persist: true, publish: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	m := chat.New(rt.manager, chatSession, chatUser, chat.DetectDark())
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmdContext(cmd)))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if fm, ok := final.(chat.Model); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s\n", fm.SessionID())
	}
	return nil
}
