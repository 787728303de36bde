// Package tui provides an interactive BubbleTea interface for exercising the
// swipe decoder from a keyboard, without a real touchscreen: typing a word
// synthesizes a straight-line gesture across a built-in QWERTY layout and
// feeds it through the facade, showing the ranked candidate list as it would
// appear to the host. Layout, palette, and debounced-search flow are
// adapted from the teacher's internal/tui search view.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cleverkeys/swipedecoder/internal/rerank"
	"github.com/cleverkeys/swipedecoder/internal/swipe"
)

var (
	colorAccent  = lipgloss.Color("#7C6AF7")
	colorDim     = lipgloss.Color("#555555")
	colorMuted   = lipgloss.Color("#888888")
	colorText    = lipgloss.Color("#DDDDDD")
	colorSubdued = lipgloss.Color("#444444")
	colorScore   = lipgloss.Color("#5ECEF5")
	colorErr     = lipgloss.Color("#FF6B6B")

	sTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorText)
	sAccent  = lipgloss.NewStyle().Foreground(colorAccent)
	sDim     = lipgloss.NewStyle().Foreground(colorDim)
	sMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	sScore   = lipgloss.NewStyle().Foreground(colorScore).Bold(true)
	sWord    = lipgloss.NewStyle().Foreground(colorText)
	sErr     = lipgloss.NewStyle().Foreground(colorErr)
	sDivider = lipgloss.NewStyle().Foreground(colorSubdued)
	sHint    = lipgloss.NewStyle().Foreground(colorDim).Background(lipgloss.Color("#111111"))
)

type resultMsg struct {
	results []rerank.Result
	err     error
}

type debounceMsg struct {
	word string
	id   int
}

// Model is the BubbleTea application model.
type Model struct {
	facade     *swipe.Facade
	cfg        swipe.PredictConfig
	input      textinput.Model
	results    []rerank.Result
	err        error
	width      int
	height     int
	predicting bool
	debounceID int
	lastWord   string
}

// New creates a TUI model backed by an already-initialized facade.
func New(facade *swipe.Facade, cfg swipe.PredictConfig) Model {
	ti := textinput.New()
	ti.Placeholder = "type a word to synthesize a swipe…"
	ti.Focus()
	ti.CharLimit = 32
	ti.Width = 40
	ti.PromptStyle = sAccent
	ti.Prompt = "❯ "
	ti.TextStyle = lipgloss.NewStyle().Foreground(colorText)

	return Model{facade: facade, cfg: cfg, input: ti}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = m.width - 8
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+q", "esc":
			return m, tea.Quit
		}

	case debounceMsg:
		if msg.id == m.debounceID && msg.word == m.input.Value() {
			word := strings.TrimSpace(msg.word)
			if word == "" {
				m.predicting = false
				m.results = nil
				return m, nil
			}
			m.predicting = true
			m.lastWord = word
			return m, predictCmd(m.facade, word, m.cfg)
		}
		return m, nil

	case resultMsg:
		m.predicting = false
		m.results = msg.results
		m.err = msg.err
		return m, nil
	}

	prevVal := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != prevVal {
		m.debounceID++
		id := m.debounceID
		w := m.input.Value()
		return m, tea.Batch(cmd, debounceCmd(w, id, 200*time.Millisecond))
	}
	return m, cmd
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	var b strings.Builder
	w := clamp(m.width, 10, 200)
	divider := sDivider.Render(strings.Repeat("─", w-2))

	fmt.Fprintln(&b, "  "+sTitle.Render("swipedecoder")+"  "+sMuted.Render("gesture replay"))
	fmt.Fprintln(&b, "  "+m.input.View())
	fmt.Fprintln(&b, "  "+divider)

	switch {
	case m.err != nil:
		fmt.Fprintln(&b, sErr.Render("  error: "+m.err.Error()))
	case m.predicting:
		fmt.Fprintln(&b, "  "+sMuted.Render("predicting…"))
	case len(m.results) == 0 && m.input.Value() == "":
		fmt.Fprintln(&b, sMuted.Render("  type a word to see its synthesized swipe path scored."))
	case len(m.results) == 0:
		fmt.Fprintln(&b, sMuted.Render("  no candidates for ")+sAccent.Render("\""+m.lastWord+"\""))
	default:
		for i, r := range m.results {
			if i >= 10 {
				break
			}
			fmt.Fprintf(&b, "  %s  %s\n", sScore.Render(fmt.Sprintf("%6d", r.Score)), sWord.Render(r.Word))
		}
	}

	fmt.Fprintln(&b, "  "+divider)
	fmt.Fprint(&b, sHint.Render("  esc/^q quit"))
	return b.String()
}

func debounceCmd(word string, id int, delay time.Duration) tea.Cmd {
	return func() tea.Msg {
		time.Sleep(delay)
		return debounceMsg{word: word, id: id}
	}
}

func predictCmd(f *swipe.Facade, word string, cfg swipe.PredictConfig) tea.Cmd {
	return func() tea.Msg {
		g := SynthesizeGesture(word)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		results, err := f.Predict(ctx, g, cfg)
		if err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{results: results}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
