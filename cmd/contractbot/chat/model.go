// Package chat provides the interactive terminal chat for contractbot.
package chat

import (
	"context"
	"strings"
	"time"

	"contractbot/internal/dialogue"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

// Engine processes one user turn.
type Engine interface {
	ProcessTurn(ctx context.Context, text, sessionID, userID string) *dialogue.Response
}

// Message is one line of the transcript.
type Message struct {
	Role    string // "user" or "bot"
	Content string // markdown for bot messages
	Time    time.Time
}

// turnMsg carries a finished turn back into Update.
type turnMsg struct {
	resp *dialogue.Response
}

// Model is the bubbletea model for the chat view.
type Model struct {
	engine    Engine
	sessionID string
	userID    string

	input    textinput.Model
	viewport viewport.Model
	renderer *glamour.TermRenderer
	styles   Styles

	messages []Message
	busy     bool
	ready    bool
	width    int
}

const welcome = "Ask about contracts, parts, customers or opportunities, or say **create contract**.\n\n" +
	"Commands: `/new` starts a fresh session, `/quit` exits."

// New builds a chat model over engine. An empty sessionID starts a new session.
func New(engine Engine, sessionID, userID string, dark bool) Model {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	styles := NewStyles(dark)

	ti := textinput.New()
	ti.Placeholder = "Type a request (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "| "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.PromptStyle = styles.Prompt
	ti.TextStyle = styles.UserInput

	vp := viewport.New(80, 20)

	m := Model{
		engine:    engine,
		sessionID: sessionID,
		userID:    userID,
		input:     ti,
		viewport:  vp,
		styles:    styles,
		width:     80,
		messages:  []Message{{Role: "bot", Content: welcome, Time: time.Now()}},
	}
	m.renderer = newRenderer(dark, m.width)
	m.refresh()
	return m
}

func newRenderer(dark bool, width int) *glamour.TermRenderer {
	style := "light"
	if dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		return nil
	}
	return r
}

// SessionID returns the active session.
func (m Model) SessionID() string { return m.sessionID }

// Messages returns the transcript.
func (m Model) Messages() []Message { return m.messages }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			switch text {
			case "":
				return m, nil
			case "/quit", "/exit":
				return m, tea.Quit
			case "/new":
				m.sessionID = uuid.NewString()
				m.messages = append(m.messages, Message{Role: "bot", Content: "_Started a new session._", Time: time.Now()})
				m.refresh()
				return m, nil
			}
			m.messages = append(m.messages, Message{Role: "user", Content: text, Time: time.Now()})
			m.busy = true
			m.refresh()
			return m, m.send(text)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - 4
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-4, 3)
		m.renderer = newRenderer(m.styles.IsDark, msg.Width)
		m.ready = true
		m.refresh()

	case turnMsg:
		m.busy = false
		m.messages = append(m.messages, Message{Role: "bot", Content: RenderMarkdown(msg.resp), Time: time.Now()})
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) send(text string) tea.Cmd {
	engine, sid, uid := m.engine, m.sessionID, m.userID
	return func() tea.Msg {
		return turnMsg{resp: engine.ProcessTurn(context.Background(), text, sid, uid)}
	}
}

func (m *Model) refresh() {
	var sb strings.Builder
	for _, msg := range m.messages {
		if msg.Role == "user" {
			sb.WriteString(m.styles.User.Render("you › "))
			sb.WriteString(msg.Content)
			sb.WriteString("\n\n")
			continue
		}
		sb.WriteString(m.styles.Bot.Render("bot ›"))
		sb.WriteString("\n")
		sb.WriteString(m.render(msg.Content))
		sb.WriteString("\n")
	}
	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func (m Model) render(md string) string {
	if m.renderer == nil {
		return md
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

// View implements tea.Model.
func (m Model) View() string {
	title := m.styles.Title.Render("contractbot") +
		m.styles.Status.Render("session "+shortID(m.sessionID))
	status := ""
	if m.busy {
		status = m.styles.Status.Render("thinking…")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.viewport.View(),
		status,
		m.input.View(),
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
