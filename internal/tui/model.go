package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragqa/internal/domain"
)

// AskTopK is the topK the ask view sends.
const AskTopK = 3

// API is the TUI-facing subset of the HTTP client.
type API interface {
	IngestRaw(ctx context.Context, body []byte) (domain.IngestResponse, error)
	Ask(ctx context.Context, question string, topK *int) (domain.AskResponse, error)
}

type view int

const (
	docsView view = iota
	askView
)

type ingestDoneMsg struct {
	resp domain.IngestResponse
	err  error
}

type askDoneMsg struct {
	question string
	resp     domain.AskResponse
	err      error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx      context.Context
	api      API
	view     view
	docs     textarea.Model
	input    textinput.Model
	viewport viewport.Model
	answer   *domain.AskResponse
	asked    string
	status   string
	busy     bool
	ready    bool
}

// New creates a new TUI model instance starting on the docs view.
func New(ctx context.Context, api API) Model {
	ta := textarea.New()
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetValue(SampleDocuments)
	ta.Focus()

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type your question..."
	ti.CharLimit = 0
	ti.SetValue(SampleQuestion)

	return Model{
		ctx:      ctx,
		api:      api,
		docs:     ta,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   "ctrl+s to ingest, tab to ask",
	}
}

// Init initializes the model (cursor blink).
func (m Model) Init() tea.Cmd { return textarea.Blink }

// Update handles key, window and request completion events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := boxStyle.GetFrameSize()
		width := max(20, msg.Width-4)
		m.docs.SetWidth(width)
		m.docs.SetHeight(max(3, msg.Height-bh-4))
		m.input.Width = width
		m.viewport.Width = width
		m.viewport.Height = max(3, msg.Height-2*bh-5)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case ingestDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Success. Documents: %d, Chunks: %d",
				msg.resp.IngestedDocuments, msg.resp.IngestedChunks)
		}
		return m, nil
	case askDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = nil
		} else {
			resp := msg.resp
			m.answer = &resp
			m.asked = msg.question
			m.status = fmt.Sprintf("Answered %q", msg.question)
		}
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch {
		case msg.Type == tea.KeyTab:
			return m.switchView(), nil
		case msg.Type == tea.KeyCtrlS && m.view == docsView:
			return m.submitDocuments()
		case msg.Type == tea.KeyEnter && m.view == askView:
			return m.submitQuestion()
		case (msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown) && m.view == askView:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	if m.view == docsView {
		m.docs, cmd = m.docs.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m Model) switchView() Model {
	if m.view == docsView {
		m.view = askView
		m.docs.Blur()
		m.input.Focus()
		m.status = "enter to ask, tab for docs"
	} else {
		m.view = docsView
		m.input.Blur()
		m.docs.Focus()
		m.status = "ctrl+s to ingest, tab to ask"
	}
	return m
}

func (m Model) submitDocuments() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	raw := m.docs.Value()
	if err := CheckDocuments(raw); err != nil {
		m.status = "Error: " + err.Error()
		return m, nil
	}
	m.busy = true
	m.status = "Ingesting..."
	api, ctx := m.api, m.ctx
	return m, func() tea.Msg {
		resp, err := api.IngestRaw(ctx, []byte(raw))
		return ingestDoneMsg{resp: resp, err: err}
	}
}

func (m Model) submitQuestion() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	q := strings.TrimSpace(m.input.Value())
	m.busy = true
	m.status = "Asking..."
	m.answer = nil
	m.viewport.SetContent(m.renderAnswer())
	api, ctx := m.api, m.ctx
	return m, func() tea.Msg {
		k := AskTopK
		resp, err := api.Ask(ctx, q, &k)
		return askDoneMsg{question: q, resp: resp, err: err}
	}
}

// View renders the active page and the status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	var b strings.Builder
	status := statusStyle.Render(m.status)
	if m.view == docsView {
		b.WriteString(titleStyle.Render("Docs Ingest") + "  " + hintStyle.Render("tab: Ask"))
		b.WriteString("\n" + boxStyle.Render(m.docs.View()))
	} else {
		b.WriteString(titleStyle.Render("Ask") + "  " + hintStyle.Render("tab: Docs"))
		b.WriteString("\n" + boxStyle.Render(m.input.View()))
		b.WriteString("\n" + boxStyle.Render(m.viewport.View()))
	}
	b.WriteString("\n" + status)
	return b.String()
}

func (m Model) renderAnswer() string {
	if m.answer == nil {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Answer") + "\n")
	b.WriteString(highlightTerms(m.answer.Answer, m.asked) + "\n\n")
	b.WriteString(titleStyle.Render("Sources") + "\n")
	if len(m.answer.Sources) == 0 {
		b.WriteString(hintStyle.Render("none"))
	}
	for _, s := range m.answer.Sources {
		b.WriteString("• " + s.Title + " " + hintStyle.Render("("+s.DocID+")") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle     = lipgloss.NewStyle().Bold(true)
	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// highlightTerms emphasizes the words of text that also occur in query.
func highlightTerms(text, query string) string {
	terms := toTokenSet(query)
	if len(terms) == 0 {
		return text
	}
	return unicodeWordRe.ReplaceAllStringFunc(text, func(w string) string {
		if _, ok := terms[strings.ToLower(w)]; ok && len([]rune(w)) > 3 {
			return highlightStyle.Render(w)
		}
		return w
	})
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}
