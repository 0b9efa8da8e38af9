package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/iksnae/chef-chat/internal"
)

const (
	defaultPrompt = "Ask about chefs, menus or bookings..."
	helpText      = "enter send • esc stop • ctrl+n new chat • ctrl+c quit"
	updateBuffer  = 64
)

// Options configure the interactive chat
type Options struct {
	Session   *internal.ChatSession
	Notices   *ChannelNotifier
	Base      internal.TurnInput // context fields sent with every turn
	Style     string             // glamour style
	Input     io.Reader
	Output    io.Writer
	AltScreen bool
	LogOutput io.Writer // receives log lines while the chat runs; discarded when nil
}

// ChannelNotifier forwards session notifications to the chat view
type ChannelNotifier struct {
	ch chan noticeMsg
}

// NewChannelNotifier creates a notifier to pass to both the session and Run
func NewChannelNotifier() *ChannelNotifier {
	return &ChannelNotifier{ch: make(chan noticeMsg, 8)}
}

// Notify implements internal.Notifier. Notices are dropped when the view
// falls behind.
func (n *ChannelNotifier) Notify(level internal.NoticeLevel, message string) {
	select {
	case n.ch <- noticeMsg{level: level, text: message}:
	default:
		internal.LogDebug("Dropping notice: %s", message)
	}
}

type updateMsg internal.Update

type noticeMsg struct {
	level internal.NoticeLevel
	text  string
}

type turnDoneMsg struct{ err error }

type resetDoneMsg struct{ err error }

type model struct {
	ctx      context.Context
	session  *internal.ChatSession
	notices  *ChannelNotifier
	base     internal.TurnInput
	renderer *MarkdownRenderer

	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	updates  chan internal.Update
	unsub    func()

	state       internal.Update
	notice      string
	noticeLevel internal.NoticeLevel
	width       int
	height      int
	ready       bool
}

// Run starts the interactive chat and blocks until the user quits
func Run(ctx context.Context, opts Options) error {
	m := newModel(ctx, opts)
	defer m.unsub()
	defer redirectLog(opts.LogOutput)()

	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		programOpts = append(programOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}
	if opts.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}

	_, err := tea.NewProgram(m, programOpts...).Run()
	opts.Session.CancelTurn()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// redirectLog keeps log lines off the screen bubbletea draws on and
// returns a function restoring the previous output.
func redirectLog(w io.Writer) func() {
	if w == nil {
		w = io.Discard
	}
	prev := internal.SetLogOutput(w)
	return func() { internal.SetLogOutput(prev) }
}

func newModel(ctx context.Context, opts Options) *model {
	input := textinput.New()
	input.Placeholder = defaultPrompt
	input.Prompt = "› "
	input.CharLimit = 4000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = thinkingStyle

	notices := opts.Notices
	if notices == nil {
		notices = NewChannelNotifier()
	}

	m := &model{
		ctx:      ctx,
		session:  opts.Session,
		notices:  notices,
		base:     opts.Base,
		renderer: NewMarkdownRenderer(opts.Style),
		input:    input,
		spinner:  sp,
		viewport: viewport.New(80, 20),
		updates:  make(chan internal.Update, updateBuffer),
		width:    80,
		height:   24,
	}
	m.state = internal.Update{
		Messages: opts.Session.Messages(),
		Tools:    opts.Session.Tools(),
		Mode:     opts.Session.Mode(),
	}
	m.unsub = opts.Session.Subscribe(func(u internal.Update) {
		select {
		case m.updates <- u:
		default:
			// full snapshots: a dropped one is superseded by the next
		}
	})
	m.refreshViewport()
	return m
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForUpdate(), m.waitForNotice())
}

func (m *model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case u := <-m.updates:
			return updateMsg(u)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *model) waitForNotice() tea.Cmd {
	return func() tea.Msg {
		select {
		case n := <-m.notices.ch:
			return n
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *model) submit(text string) tea.Cmd {
	input := m.base
	input.Message = text
	return func() tea.Msg {
		return turnDoneMsg{err: m.session.SubmitTurn(m.ctx, input)}
	}
}

func (m *model) reset() tea.Cmd {
	return func() tea.Msg {
		return resetDoneMsg{err: m.session.ResetSession(m.ctx)}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(10, msg.Width-4)
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.session.CancelTurn()
			return m, tea.Quit

		case tea.KeyEsc:
			if m.state.Streaming {
				m.session.CancelTurn()
				m.setNotice(internal.NoticeInfo, "Stopped.")
			}
			return m, nil

		case tea.KeyCtrlN:
			m.setNotice(internal.NoticeInfo, "Starting a new chat...")
			return m, m.reset()

		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			if m.state.Streaming {
				m.setNotice(internal.NoticeWarning, "Wait for the reply or press esc to stop it.")
				return m, nil
			}
			m.input.Reset()
			m.notice = ""
			m.state.Streaming = true
			return m, m.submit(text)
		}

	case updateMsg:
		m.state = internal.Update(msg)
		m.refreshViewport()
		return m, m.waitForUpdate()

	case noticeMsg:
		m.setNotice(msg.level, msg.text)
		return m, m.waitForNotice()

	case turnDoneMsg:
		m.syncState()
		if errors.Is(msg.err, internal.ErrTurnInProgress) {
			m.setNotice(internal.NoticeWarning, "A reply is still streaming.")
		}
		return m, nil

	case resetDoneMsg:
		m.syncState()
		if msg.err == nil {
			m.setNotice(internal.NoticeInfo, "New chat started.")
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state.Streaming {
			m.refreshViewport()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// syncState reads the session directly, so the view is right even when an
// update snapshot was dropped
func (m *model) syncState() {
	m.state = internal.Update{
		Messages:  m.session.Messages(),
		Tools:     m.session.Tools(),
		Mode:      m.session.Mode(),
		Streaming: m.session.Streaming(),
	}
	m.refreshViewport()
}

func (m *model) setNotice(level internal.NoticeLevel, text string) {
	m.notice, m.noticeLevel = text, level
}

func (m *model) refreshViewport() {
	m.viewport.Width = m.width
	m.viewport.Height = max(3, m.height-5)
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *model) renderTranscript() string {
	if len(m.state.Messages) == 0 {
		return helpStyle.Render("Say hi to start a conversation.")
	}

	tools := make(map[string][]internal.ToolEvent)
	for _, t := range m.state.Tools {
		tools[t.TurnID] = append(tools[t.TurnID], t)
	}

	var b strings.Builder
	for _, msg := range m.state.Messages {
		if msg.Role == internal.RoleUser {
			b.WriteString(userRoleStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(lipgloss.NewStyle().Width(m.width - 2).Render(msg.Content))
			b.WriteString("\n\n")
			continue
		}

		b.WriteString(assistantRoleStyle.Render("Assistant"))
		b.WriteString("\n")
		for _, t := range tools[msg.ID] {
			b.WriteString(m.renderTool(t))
			b.WriteString("\n")
		}
		switch {
		case msg.Finalized:
			b.WriteString(m.renderer.Render(msg.Content, m.width-2))
		case msg.Content == "":
			b.WriteString(m.spinner.View() + thinkingStyle.Render(" Thinking..."))
		default:
			b.WriteString(lipgloss.NewStyle().Width(m.width - 2).Render(msg.Content))
			b.WriteString(" " + m.spinner.View())
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *model) renderTool(t internal.ToolEvent) string {
	if t.Status == internal.ToolRunning {
		return toolRunningStyle.Render(fmt.Sprintf("%s %s", m.spinner.View(), t.Name))
	}
	return toolDoneStyle.Render("✓ " + t.Name)
}

func (m *model) View() string {
	header := titleStyle.Render("chef-chat") + modeStyle.Render(string(m.state.Mode))

	notice := ""
	if m.notice != "" {
		style := infoNoticeStyle
		if m.noticeLevel != internal.NoticeInfo {
			style = errorNoticeStyle
		}
		notice = style.Render(m.notice)
	}

	return strings.Join([]string{
		header,
		m.viewport.View(),
		notice,
		m.input.View(),
		helpStyle.Render(helpText),
	}, "\n")
}
