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

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	inputStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	viewportStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle   = lipgloss.NewStyle().Faint(true).Padding(0, 1)
)

// queryDone delivers the result of an asynchronous query back into the
// update loop.
type queryDone struct {
	answer *domain.Answer
	err    error
}

// Model is the Bubble Tea model for the query explorer.
type Model struct {
	ports      *Ports
	collection string
	ctx        context.Context

	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model

	answer  *domain.Answer
	status  string
	width   int
	waiting bool
	ready   bool
}

// New creates the explorer for one collection.
func New(ports *Ports, collection string) (*Model, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the document and press Enter"
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		ports:      ports,
		collection: collection,
		ctx:        context.Background(),
		input:      ti,
		spin:       sp,
		status:     "Type a question. Esc clears, q quits.",
	}, nil
}

// WithContext sets the context used for queries.
func (m *Model) WithContext(ctx context.Context) {
	m.ctx = ctx
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg)
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)

	case queryDone:
		m.waiting = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}
		m.answer = msg.answer
		m.viewport.SetContent(renderAnswer(msg.answer, m.viewport.Width))
		m.viewport.GotoTop()
		m.status = fmt.Sprintf("Answered from %d passages. Ask another question.", len(msg.answer.Passages))
		m.input.SetValue("")
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEsc:
		m.input.SetValue("")
		return m, nil

	case tea.KeyEnter:
		question := strings.TrimSpace(m.input.Value())
		if question == "" || m.waiting {
			return m, nil
		}
		m.waiting = true
		m.status = "Thinking..."
		return m, tea.Batch(m.spin.Tick, m.ask(question))

	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if msg.String() == "q" && m.input.Value() == "" {
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	header := headerStyle.Render("longdoc · " + m.collection)
	input := inputStyle.Render(m.input.View())

	var body string
	if m.waiting {
		body = viewportStyle.Render(m.spin.View() + " querying " + m.collection + "...")
	} else if m.ready {
		body = viewportStyle.Render(m.viewport.View())
	}

	status := statusStyle.Render(m.status)

	return lipgloss.JoinVertical(lipgloss.Left, header, input, body, status)
}

// resize fits the input and viewport to the terminal, measuring the
// surrounding chrome rather than hard-coding its height.
func (m *Model) resize(msg tea.WindowSizeMsg) {
	m.width = msg.Width

	frameW, frameH := viewportStyle.GetFrameSize()
	m.input.Width = msg.Width - frameW - len(m.input.Prompt) - 1

	headerHeight := lipgloss.Height(headerStyle.Render("x"))
	inputHeight := lipgloss.Height(inputStyle.Render(m.input.View()))
	statusHeight := lipgloss.Height(statusStyle.Render("x"))

	width := msg.Width - frameW
	height := msg.Height - headerHeight - inputHeight - statusHeight - frameH
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	if !m.ready {
		m.viewport = viewport.New(width, height)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = height
	}
	if m.answer != nil {
		m.viewport.SetContent(renderAnswer(m.answer, width))
	}
}

// ask runs the query off the update loop and reports back with a
// queryDone message.
func (m *Model) ask(question string) tea.Cmd {
	ctx := m.ctx
	svc := m.ports.Query
	collection := m.collection
	return func() tea.Msg {
		answer, err := svc.Ask(ctx, domain.QueryRequest{
			Collection: collection,
			Question:   question,
		})
		return queryDone{answer: answer, err: err}
	}
}

// renderAnswer lays out the answer text followed by its cited
// passages, wrapped to the viewport width.
func renderAnswer(a *domain.Answer, width int) string {
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	b.WriteString(a.Text)
	if len(a.Passages) > 0 {
		b.WriteString("\n\nSources:\n")
		for i, p := range a.Passages {
			fmt.Fprintf(&b, "[%d] chunk %d (%.2f)\n    %s\n",
				i+1, p.Metadata.ChunkIndex, p.Score, compact(p.Metadata.Text, 160))
		}
	}

	return lipgloss.NewStyle().Width(width).Render(b.String())
}

// compact collapses whitespace and trims text to max runes.
func compact(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
