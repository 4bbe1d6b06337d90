package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	answer  *domain.Answer
	lastReq domain.QueryRequest
	err     error
}

func (m *mockQueryService) Ask(
	_ context.Context,
	req domain.QueryRequest,
) (*domain.Answer, error) {
	m.lastReq = req
	return m.answer, m.err
}

func newTestModel(t *testing.T, svc *mockQueryService) *Model {
	t.Helper()
	model, err := New(&Ports{Query: svc}, "doc_test")
	require.NoError(t, err)
	return model
}

func sized(m *Model) *Model {
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(*Model)
}

func TestNew(t *testing.T) {
	t.Run("nil query service returns error", func(t *testing.T) {
		model, err := New(&Ports{}, "doc_test")
		require.Error(t, err)
		assert.Nil(t, model)
		assert.ErrorIs(t, err, ErrMissingQueryService)
	})

	t.Run("input starts focused", func(t *testing.T) {
		model := newTestModel(t, &mockQueryService{})
		assert.True(t, model.input.Focused())
		assert.Equal(t, "> ", model.input.Prompt)
	})
}

func TestModel_AskFlow(t *testing.T) {
	mockQuery := &mockQueryService{
		answer: &domain.Answer{
			Question: "what changed",
			Text:     "The API gained a batch endpoint.",
			Passages: []domain.ScoredChunk{
				{Metadata: domain.DocumentMetadata{ChunkIndex: 3, Text: "batch endpoint added"}, Score: 0.88},
				{Metadata: domain.DocumentMetadata{ChunkIndex: 9, Text: "older endpoint deprecated"}, Score: 0.71},
			},
		},
	}
	model := sized(newTestModel(t, mockQuery))

	model.input.SetValue("what changed")
	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = updated.(*Model)

	require.NotNil(t, cmd)
	assert.True(t, model.waiting)
	assert.Equal(t, "Thinking...", model.status)

	// Run the query the way the program runtime would, then deliver
	// its completion message.
	msg := model.ask("what changed")()
	done, ok := msg.(queryDone)
	require.True(t, ok)
	require.NoError(t, done.err)

	updated, _ = model.Update(done)
	model = updated.(*Model)

	assert.False(t, model.waiting)
	assert.Empty(t, model.input.Value())
	assert.Contains(t, model.status, "2 passages")
	assert.Equal(t, "doc_test", mockQuery.lastReq.Collection)
	assert.Equal(t, "what changed", mockQuery.lastReq.Question)

	view := model.View()
	assert.Contains(t, view, "The API gained a batch endpoint.")
	assert.Contains(t, view, "chunk 3")
}

func TestModel_QueryError(t *testing.T) {
	model := sized(newTestModel(t, &mockQueryService{}))
	model.waiting = true

	updated, _ := model.Update(queryDone{err: errors.New("collection holds no vectors")})
	model = updated.(*Model)

	assert.False(t, model.waiting)
	assert.Contains(t, model.status, "collection holds no vectors")
}

func TestModel_EnterIgnoredWhileWaiting(t *testing.T) {
	model := sized(newTestModel(t, &mockQueryService{}))
	model.waiting = true
	model.input.SetValue("another question")

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestModel_EnterIgnoredWhenEmpty(t *testing.T) {
	model := sized(newTestModel(t, &mockQueryService{}))

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, model.waiting)
}

func TestModel_QuitKeys(t *testing.T) {
	t.Run("ctrl+c quits", func(t *testing.T) {
		model := sized(newTestModel(t, &mockQueryService{}))
		_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	})

	t.Run("q with empty input quits", func(t *testing.T) {
		model := sized(newTestModel(t, &mockQueryService{}))
		_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	})

	t.Run("q while typing is just a character", func(t *testing.T) {
		model := sized(newTestModel(t, &mockQueryService{}))
		model.input.SetValue("que")
		updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
		model = updated.(*Model)
		assert.Equal(t, "queq", model.input.Value())
	})
}

func TestModel_EscClearsInput(t *testing.T) {
	model := sized(newTestModel(t, &mockQueryService{}))
	model.input.SetValue("half a question")

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	model = updated.(*Model)

	assert.Empty(t, model.input.Value())
}

func TestRenderAnswer(t *testing.T) {
	answer := &domain.Answer{
		Text: "Short answer.",
		Passages: []domain.ScoredChunk{
			{Metadata: domain.DocumentMetadata{ChunkIndex: 1, Text: "supporting   text\nhere"}, Score: 0.5},
		},
	}

	out := renderAnswer(answer, 60)
	assert.Contains(t, out, "Short answer.")
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "chunk 1")
	assert.Contains(t, out, "supporting text here")
}

func TestCompact(t *testing.T) {
	assert.Equal(t, "a b c", compact("a\n b\t c", 10))
	assert.Equal(t, "abcde...", compact("abcdefghij", 5))
	assert.Equal(t, "short", compact("short", 10))
}
