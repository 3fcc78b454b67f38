package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragchat/internal/domain"
	"ragchat/internal/service"
)

// JobChangedMsg carries a controller event into the program. Wire it with
// Program.Send from the controller's change hook.
type JobChangedMsg struct{ Event service.JobEvent }

type restoredMsg struct{ err error }

type startedMsg struct{ err error }

type answeredMsg struct {
	out service.Outcome
	err error
}

type documentMsg struct {
	verb string
	doc  domain.Document
	err  error
}

// Model is the Bubble Tea model for the chat front-end.
type Model struct {
	session  *service.Session
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	status   string
	ready    bool
	asking   bool
	ticking  bool
	job      *domain.Job
}

// New creates a chat model over session. The session is restored by Init.
func New(session *service.Session) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /help"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{session: session, input: ti, viewport: vp, spinner: sp, status: "Connecting..."}
}

// Init starts the cursor blink and restores the session from the service.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, restore(m.session))
}

// Update handles key, window and session events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := conversationBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header, config line, status, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-ch)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.Type {
		case tea.KeyEnter:
			line := m.input.Value()
			m.input.Reset()
			return m.submit(line)
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case restoredMsg:
		m.syncJob()
		if msg.err != nil {
			m.status = "Could not restore session: " + msg.err.Error()
		} else {
			m.status = m.stateLine()
		}
		cmd := m.busyTick()
		return m, cmd

	case JobChangedMsg:
		m.job = msg.Event.Job
		if msg.Event.Err != nil {
			m.status = "Error: " + msg.Event.Err.Error()
		} else {
			m.status = m.stateLine()
		}
		cmd := m.busyTick()
		return m, cmd

	case startedMsg:
		if msg.err != nil {
			m.status = "Processing failed: " + msg.err.Error()
		}
		m.syncJob()
		cmd := m.busyTick()
		return m, cmd

	case answeredMsg:
		m.asking = false
		switch {
		case msg.err != nil:
			m.status = msg.err.Error()
		case msg.out.Discarded:
			m.status = "Answer dropped: conversation was cleared"
		case msg.out.Err != nil:
			m.status = "Question failed"
		default:
			m.status = m.stateLine()
		}
		m.refresh()
		return m, nil

	case documentMsg:
		m.syncJob()
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %s", msg.verb, msg.err)
		} else if msg.verb == "Upload" {
			m.status = fmt.Sprintf("Uploaded %s (%s). /process to build the index.", msg.doc.Name, msg.doc.Size)
		} else {
			m.status = m.stateLine()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			m.ticking = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the header, conversation, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("RAG Chat") + "  " + mutedStyle.Render(m.documentLine())
	cfg := mutedStyle.Render(configLine(m.session.Snapshot()))
	conversation := conversationBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := m.status
	if m.busy() {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + cfg + "\n" + conversation + "\n" + input + "\n" + statusStyle.Render(status)
}

func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(line)
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		return m.command(text)
	}
	if m.asking {
		m.status = service.ErrQueryPending.Error()
		return m, nil
	}
	m.asking = true
	m.status = "Thinking..."
	tick := m.busyTick()
	return m, tea.Batch(ask(m.session, line), tick)
}

func (m Model) command(text string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/help":
		m.status = "/process  /config key=value  /status  /resume  /upload <file.pdf>  /delete  /clear  /quit"
	case "/clear":
		m.session.Log.Clear()
		m.refresh()
		m.status = "Conversation cleared"
	case "/status":
		m.syncJob()
		m.status = m.stateLine()
	case "/config":
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			m.status = "usage: /config key=value"
			return m, nil
		}
		patch, err := domain.ParseSetting(key, strings.TrimSpace(value))
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		if _, err := m.session.Bundle.Set(patch); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = "Configuration updated"
	case "/process":
		m.status = "Starting processing..."
		return m, start(m.session)
	case "/resume":
		if err := m.session.Controller.Resume(); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.syncJob()
		m.status = m.stateLine()
		cmd := m.busyTick()
		return m, cmd
	case "/upload":
		if arg == "" {
			m.status = "usage: /upload <file.pdf>"
			return m, nil
		}
		m.status = "Uploading " + arg + "..."
		return m, upload(m.session, arg)
	case "/delete":
		return m, remove(m.session)
	default:
		m.status = fmt.Sprintf("unknown command %s (try /help)", name)
	}
	return m, nil
}

// busyTick starts the spinner if it is not already running.
func (m *Model) busyTick() tea.Cmd {
	if m.ticking || !m.busy() {
		return nil
	}
	m.ticking = true
	return m.spinner.Tick
}

func (m Model) busy() bool {
	return m.asking || (m.job != nil && m.job.State == domain.StateProcessing)
}

func (m *Model) syncJob() {
	if job, ok := m.session.Controller.Job(); ok {
		m.job = &job
	} else {
		m.job = nil
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderEntries(m.session.Log.All(), m.viewport.Width))
	m.viewport.GotoBottom()
}

func (m Model) documentLine() string {
	if m.job == nil {
		return "no document"
	}
	return fmt.Sprintf("%s (%s) | %s", m.job.Document.Name, m.job.Document.Size, m.job.State)
}

func (m Model) stateLine() string {
	if m.job == nil {
		return "No document uploaded. /upload <file.pdf> to begin."
	}
	switch m.job.State {
	case domain.StateProcessing:
		return "Processing " + m.job.Document.Name + ", this may take a few moments"
	case domain.StateReady:
		return "Ready. Ask a question about " + m.job.Document.Name + "."
	default:
		return "Not processed. Adjust with /config, then /process."
	}
}

func configLine(snap service.Snapshot) string {
	c := snap.Config
	parts := []string{string(c.ChunkingMethod) + " chunking"}
	if c.HybridSearch {
		parts = append(parts, "hybrid search")
	}
	if c.UseReranker {
		parts = append(parts, "reranking")
	}
	if c.QueryEnhancementMode.Rewrites() {
		parts = append(parts, "query "+string(c.QueryEnhancementMode))
	}
	line := strings.Join(parts, ", ")
	if snap.Frozen {
		line += " (locked)"
	}
	return line
}

func renderEntries(entries []domain.Entry, width int) string {
	if len(entries) == 0 {
		return mutedStyle.Render("No messages yet.")
	}
	wrap := lipgloss.NewStyle().Width(max(10, width))
	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		ts := mutedStyle.Render(e.Timestamp.Format("15:04:05"))
		var block string
		switch e.Kind {
		case domain.KindQuestion:
			block = questionStyle.Render("You") + " " + ts + "\n" + e.Content
		case domain.KindEnhancedQuery:
			block = enhancedStyle.Render(fmt.Sprintf("Enhanced query (%s)", e.Mode)) + "\n" + mutedStyle.Render(e.Content)
		case domain.KindAnswer:
			block = answerStyle.Render("Assistant") + " " + ts + "\n" + e.Content
			if e.HasContext() {
				block += "\n" + mutedStyle.Render("[source context available]")
			}
		case domain.KindError:
			block = errorStyle.Render("Error") + " " + ts + "\n" + e.Content
		}
		blocks = append(blocks, wrap.Render(block))
	}
	return strings.Join(blocks, "\n\n")
}

func restore(s *service.Session) tea.Cmd {
	return func() tea.Msg {
		return restoredMsg{err: s.Restore(context.Background())}
	}
}

func start(s *service.Session) tea.Cmd {
	return func() tea.Msg {
		return startedMsg{err: s.Controller.Start(context.Background())}
	}
}

func ask(s *service.Session, question string) tea.Cmd {
	return func() tea.Msg {
		out, err := s.Ask(context.Background(), question)
		return answeredMsg{out: out, err: err}
	}
}

func upload(s *service.Session, path string) tea.Cmd {
	return func() tea.Msg {
		doc, err := s.Controller.Upload(context.Background(), path)
		return documentMsg{verb: "Upload", doc: doc, err: err}
	}
}

func remove(s *service.Session) tea.Cmd {
	return func() tea.Msg {
		return documentMsg{verb: "Delete", err: s.Controller.Delete(context.Background())}
	}
}

var (
	conversationBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle          = lipgloss.NewStyle().Bold(true)
	mutedStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	enhancedStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Italic(true)
	answerStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)
