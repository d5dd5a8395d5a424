package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/router-for-me/cursor-login/internal/auth/cursor"
	"github.com/router-for-me/cursor-login/internal/store"
	"github.com/router-for-me/cursor-login/internal/util"
	log "github.com/sirupsen/logrus"
)

const panelLogLines = 6

// Handshake is the login flow driven by the panel.
type Handshake interface {
	Start(ctx context.Context, existingCredential string) (*cursor.LoginSession, error)
	Poll(ctx context.Context, session *cursor.LoginSession, maxAttempts int) (*cursor.PollResult, error)
}

type slotLoadedMsg struct {
	value string
	err   error
}

type sessionStartedMsg struct {
	session *cursor.LoginSession
	err     error
}

type pollFinishedMsg struct {
	session *cursor.LoginSession
	result  *cursor.PollResult
	err     error
}

type copiedMsg struct{ err error }

type logLineMsg string

// panelModel holds one login session at a time. Starting again replaces it.
type panelModel struct {
	ctx         context.Context
	auth        Handshake
	slots       store.SlotStore
	hook        *LogHook
	maxAttempts int
	copyFn      func(string) error

	input   textinput.Model
	spinner spinner.Model

	session    *cursor.LoginSession
	result     *cursor.PollResult
	starting   bool
	polling    bool
	pollCancel context.CancelFunc
	status     string
	logs       []string
	width      int
}

func newPanelModel(ctx context.Context, auth Handshake, slots store.SlotStore, hook *LogHook, maxAttempts int) panelModel {
	ti := textinput.New()
	ti.Placeholder = "WorkosCursorSessionToken (optional)"
	ti.CharLimit = 4096
	ti.Width = 60
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	return panelModel{
		ctx:         ctx,
		auth:        auth,
		slots:       slots,
		hook:        hook,
		maxAttempts: maxAttempts,
		copyFn:      clipboard.WriteAll,
		input:       ti,
		spinner:     sp,
	}
}

func (m panelModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.loadSlot}
	if m.hook != nil {
		cmds = append(cmds, m.waitForLog)
	}
	return tea.Batch(cmds...)
}

func (m panelModel) loadSlot() tea.Msg {
	if m.slots == nil {
		return slotLoadedMsg{}
	}
	value, err := m.slots.Get(m.ctx, store.CredentialSlotKey)
	return slotLoadedMsg{value: value, err: err}
}

func (m panelModel) waitForLog() tea.Msg {
	line, ok := <-m.hook.Chan()
	if !ok {
		return nil
	}
	return logLineMsg(line)
}

func (m panelModel) startCmd(credential string) tea.Cmd {
	ctx, auth, slots := m.ctx, m.auth, m.slots
	return func() tea.Msg {
		session, err := auth.Start(ctx, credential)
		if err == nil && credential != "" && slots != nil {
			if errSet := slots.Set(ctx, store.CredentialSlotKey, credential); errSet != nil {
				log.Warnf("failed to store credential: %v", errSet)
			}
		}
		return sessionStartedMsg{session: session, err: err}
	}
}

func pollCmd(ctx context.Context, auth Handshake, session *cursor.LoginSession, maxAttempts int) tea.Cmd {
	return func() tea.Msg {
		result, err := auth.Poll(ctx, session, maxAttempts)
		return pollFinishedMsg{session: session, result: result, err: err}
	}
}

func (m panelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case slotLoadedMsg:
		if msg.err != nil {
			m.status = warningStyle.Render("stored credential unavailable: " + msg.err.Error())
		} else if msg.value != "" && m.input.Value() == "" {
			m.input.SetValue(msg.value)
		}
		return m, nil

	case logLineMsg:
		m.logs = append(m.logs, string(msg))
		if len(m.logs) > panelLogLines {
			m.logs = m.logs[len(m.logs)-panelLogLines:]
		}
		return m, m.waitForLog

	case sessionStartedMsg:
		m.starting = false
		if msg.err != nil {
			m.status = errorStyle.Render("✗ " + cursor.GetUserFriendlyMessage(msg.err))
			return m, nil
		}
		m.session = msg.session
		m.result = nil
		m.status = successStyle.Render("✓ login page opened, approve it then press p")
		return m, nil

	case pollFinishedMsg:
		if msg.session != m.session {
			return m, nil
		}
		m.polling = false
		m.pollCancel = nil
		if msg.err != nil {
			m.status = errorStyle.Render("✗ " + cursor.GetUserFriendlyMessage(msg.err))
			return m, nil
		}
		m.result = msg.result
		m.status = successStyle.Render("✓ login successful")
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = errorStyle.Render("✗ copy failed: " + msg.err.Error())
		} else {
			m.status = successStyle.Render("✓ access token copied")
		}
		return m, nil

	case spinner.TickMsg:
		if !m.polling && !m.starting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.input.Focused() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m panelModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.cancelPoll()
		return m, tea.Quit
	case "enter":
		return m.start()
	case "tab":
		if m.input.Focused() {
			m.input.Blur()
		} else {
			m.input.Focus()
		}
		return m, nil
	}

	if m.input.Focused() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "p":
		return m.poll()
	case "c":
		if m.result == nil || m.result.AccessToken == "" {
			return m, nil
		}
		token, copyFn := m.result.AccessToken, m.copyFn
		return m, func() tea.Msg { return copiedMsg{err: copyFn(token)} }
	case "q":
		m.cancelPoll()
		return m, tea.Quit
	}
	return m, nil
}

func (m panelModel) start() (tea.Model, tea.Cmd) {
	if m.starting {
		return m, nil
	}
	m.cancelPoll()
	m.polling = false
	m.session = nil
	m.result = nil
	m.starting = true
	m.input.Blur()
	m.status = "starting login..."
	return m, tea.Batch(m.startCmd(strings.TrimSpace(m.input.Value())), m.spinner.Tick)
}

// poll is a no-op while a poll is in flight or before a session exists.
func (m panelModel) poll() (tea.Model, tea.Cmd) {
	if m.polling || m.session == nil || m.result != nil {
		return m, nil
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.polling = true
	m.pollCancel = cancel
	m.status = "waiting for approval..."
	return m, tea.Batch(pollCmd(ctx, m.auth, m.session, m.maxAttempts), m.spinner.Tick)
}

func (m *panelModel) cancelPoll() {
	if m.pollCancel != nil {
		m.pollCancel()
		m.pollCancel = nil
	}
}

func (m panelModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Cursor Login"))
	sb.WriteString("\n")
	sb.WriteString(labelStyle.Render("Session token"))
	sb.WriteString(m.input.View())
	sb.WriteString("\n\n")

	if m.session != nil {
		sb.WriteString(labelStyle.Render("Session"))
		sb.WriteString(valueStyle.Render(m.session.UUID))
		sb.WriteString("\n")
		sb.WriteString(labelStyle.Render("Login URL"))
		sb.WriteString(valueStyle.Render(m.session.LoginURL))
		sb.WriteString("\n")
	}
	if m.result != nil {
		sb.WriteString(labelStyle.Render("User ID"))
		sb.WriteString(valueStyle.Render(m.result.UserID))
		sb.WriteString("\n")
		sb.WriteString(labelStyle.Render("Access token"))
		sb.WriteString(valueStyle.Render(util.HideAPIKey(m.result.AccessToken)))
		sb.WriteString("\n")
	}

	if m.status != "" {
		sb.WriteString("\n")
		if m.polling || m.starting {
			sb.WriteString(m.spinner.View())
			sb.WriteString(" ")
		}
		sb.WriteString(m.status)
		sb.WriteString("\n")
	}

	if len(m.logs) > 0 {
		sb.WriteString("\n")
		for _, line := range m.logs {
			sb.WriteString(logLevelStyle(levelOf(line)).Render(line))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render("enter: start • p: poll • c: copy token • tab: edit token • esc: close"))
	return panelStyle.Render(sb.String())
}

// levelOf extracts the level tag written by the log formatter.
func levelOf(line string) string {
	for _, level := range []string{"debug", "info", "warn", "warning", "error", "fatal", "panic"} {
		if strings.Contains(line, "["+level+"]") {
			return level
		}
	}
	return "info"
}

// Run shows the login panel until the user closes it. While it runs, log
// output is routed into the panel instead of the terminal.
func Run(ctx context.Context, auth Handshake, slots store.SlotStore, maxAttempts int, output io.Writer) error {
	if output == nil {
		output = os.Stdout
	}
	logger := log.StandardLogger()
	hook := NewLogHook(64)
	hooks := make(log.LevelHooks)
	for level, levelHooks := range logger.Hooks {
		hooks[level] = append([]log.Hook(nil), levelHooks...)
	}
	hooks.Add(hook)
	previousHooks := logger.ReplaceHooks(hooks)
	defer logger.ReplaceHooks(previousHooks)

	// Terminal log output would corrupt the alt screen; file output is kept.
	if previous := logger.Out; previous == os.Stdout || previous == os.Stderr {
		logger.SetOutput(io.Discard)
		defer logger.SetOutput(previous)
	}

	model := newPanelModel(ctx, auth, slots, hook, maxAttempts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithOutput(output))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	if pm, ok := final.(panelModel); ok && pm.result != nil {
		fmt.Fprintf(output, "User ID: %s\nAccess token: %s\n", pm.result.UserID, pm.result.AccessToken)
	}
	return nil
}
