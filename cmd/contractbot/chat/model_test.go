package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"contractbot/internal/dialogue"
	"contractbot/internal/processors"
	"contractbot/internal/session"
	"contractbot/internal/task"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager() *dialogue.Manager {
	return dialogue.NewManager(session.NewMemoryStore(2, time.Minute), task.DefaultRegistry())
}

func typeText(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	next, cmd := next.(Model).Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func TestModel_TurnRoundTrip(t *testing.T) {
	m := New(newManager(), "chat-1", "u1", false)
	require.Len(t, m.Messages(), 1)

	m, cmd := typeText(t, m, "create contract")
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	require.Len(t, m.Messages(), 2)
	assert.Equal(t, "user", m.Messages()[1].Role)
	assert.Equal(t, "create contract", m.Messages()[1].Content)

	msg := cmd()
	tm, ok := msg.(turnMsg)
	require.True(t, ok)
	assert.Equal(t, "chat-1", tm.resp.SessionID)

	next, _ := m.Update(tm)
	m = next.(Model)
	assert.False(t, m.busy)
	require.Len(t, m.Messages(), 3)
	assert.Contains(t, m.Messages()[2].Content, "Let's start contract creation")
	assert.Contains(t, m.View(), "chat-1")
}

func TestModel_IgnoresInputWhileBusy(t *testing.T) {
	m := New(newManager(), "chat-1", "u1", false)
	m, _ = typeText(t, m, "show parts")
	require.True(t, m.busy)

	m, cmd := typeText(t, m, "show contracts")
	assert.Nil(t, cmd)
	assert.Len(t, m.Messages(), 2)
}

func TestModel_Commands(t *testing.T) {
	m := New(newManager(), "", "u1", false)
	first := m.SessionID()
	require.NotEmpty(t, first)

	m, cmd := typeText(t, m, "/new")
	assert.Nil(t, cmd)
	assert.NotEqual(t, first, m.SessionID())

	_, cmd = typeText(t, m, "/quit")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_WindowResize(t *testing.T) {
	m := New(newManager(), "chat-1", "u1", true)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	assert.True(t, m.ready)
	assert.Equal(t, 120, m.viewport.Width)
	assert.Equal(t, 36, m.viewport.Height)
}

func TestRenderMarkdown(t *testing.T) {
	assert.Empty(t, RenderMarkdown(nil))

	m := newManager()
	ctx := context.Background()

	r := m.ProcessTurn(ctx, "create contract", "s1", "u1")
	out := RenderMarkdown(r)
	assert.Contains(t, out, "Let's start contract creation")
	assert.Equal(t, 1, strings.Count(out, "Account Number"), "prompt is not repeated")

	r = m.ProcessTurn(ctx, "12345", "s1", "u1")
	out = RenderMarkdown(r)
	assert.Contains(t, out, "**"+processors.CodeValidation+"** (ACCOUNT_NUMBER)")

	r = m.ProcessTurn(ctx, "1000585412", "s1", "u1")
	out = RenderMarkdown(r)
	assert.Contains(t, out, "| ACCOUNT_NUMBER | 1000585412 |")
	assert.Contains(t, out, "Still needed:")

	r = m.ProcessTurn(ctx, "hello there", "s2", "u1")
	out = RenderMarkdown(r)
	for _, c := range dialogue.DefaultMenu {
		assert.Contains(t, out, c.Label)
	}
}
