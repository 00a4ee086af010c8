// Package tui renders the lyric state stream in the terminal.
package tui

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"lyricsync/internal/ipc"
	"lyricsync/internal/synchronizer"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
)

const (
	fps = 60
	// entranceOffset is how many columns a new line slides in from.
	entranceOffset = 12.0
	settleEpsilon  = 0.05
)

var (
	activeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1DB954"))

	fadedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))
)

type (
	// StateMsg carries a new synchronizer state.
	StateMsg synchronizer.State

	// NoticeMsg replaces the lyric with a status text.
	NoticeMsg string

	// DisconnectedMsg ends the stream.
	DisconnectedMsg struct{ Err error }

	frameMsg struct{}
)

// Model is the Bubble Tea model for the lyric view.
type Model struct {
	source  <-chan tea.Msg
	spinner spinner.Model
	spring  harmonica.Spring

	state     synchronizer.State
	notice    string
	err       error
	offset    float64
	velocity  float64
	animating bool

	width  int
	height int
}

// NewModel renders messages read from source until it closes.
func NewModel(source <-chan tea.Msg) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = noticeStyle

	return Model{
		source:  source,
		spinner: sp,
		spring:  harmonica.NewSpring(harmonica.FPS(fps), 6.0, 0.5),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m Model) listen() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.source
		if !ok {
			return DisconnectedMsg{}
		}
		return msg
	}
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg {
		return frameMsg{}
	})
}

// isTransition reports whether next starts a new activation compared to
// prev. Continuations keep the same trigger time.
func isTransition(prev, next synchronizer.State) bool {
	t, ok := next.Trigger()
	if !ok {
		return false
	}
	pt, pok := prev.Trigger()
	return !pok || pt != t || prev.Line != next.Line
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}

	case StateMsg:
		st := synchronizer.State(msg)
		if isTransition(m.state, st) {
			m.offset, m.velocity = entranceOffset, 0
			if !m.animating {
				m.animating = true
				cmds = append(cmds, frame())
			}
		}
		m.state = st
		m.notice = ""
		cmds = append(cmds, m.listen())

	case NoticeMsg:
		m.notice = string(msg)
		cmds = append(cmds, m.listen())

	case DisconnectedMsg:
		m.err = msg.Err
		return m, tea.Quit

	case frameMsg:
		m.offset, m.velocity = m.spring.Update(m.offset, m.velocity, 0)
		if math.Abs(m.offset) < settleEpsilon && math.Abs(m.velocity) < settleEpsilon {
			m.offset, m.velocity = 0, 0
			m.animating = false
		} else {
			cmds = append(cmds, frame())
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	var body string
	switch {
	case m.err != nil:
		body = errorStyle.Render("Disconnected: " + m.err.Error())
	case m.notice != "":
		body = m.spinner.View() + " " + noticeStyle.Render(m.notice)
	case m.state.Active:
		pad := int(math.Round(m.offset))
		if pad < 0 {
			pad = 0
		}
		body = strings.Repeat(" ", pad) + activeStyle.Render(m.state.Line.Text)
	case m.state.Line.Text != "":
		body = fadedStyle.Render(m.state.Line.Text)
	default:
		body = fadedStyle.Render("♪")
	}

	view := lipgloss.JoinVertical(lipgloss.Center, body, "", helpStyle.Render("q: quit"))
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, view)
	}
	return view
}

// FromSocket streams messages from a running daemon. The returned close
// function disconnects and stops the reader.
func FromSocket(socketPath string) (<-chan tea.Msg, func() error, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		return nil, nil, err
	}
	out := make(chan tea.Msg, 1)
	done := make(chan struct{})
	var once sync.Once
	stop := func() error {
		once.Do(func() { close(done) })
		return client.Close()
	}

	send := func(msg tea.Msg) bool {
		select {
		case out <- msg:
			return true
		case <-done:
			return false
		}
	}
	go func() {
		defer close(out)
		for {
			msg, err := client.Next()
			if err != nil {
				send(DisconnectedMsg{Err: err})
				return
			}
			ok := true
			switch msg.Type {
			case ipc.TypeState:
				if msg.State != nil {
					ok = send(StateMsg(*msg.State))
				}
			case ipc.TypeNotice:
				ok = send(NoticeMsg(msg.Text))
			}
			if !ok {
				return
			}
		}
	}()
	return out, stop, nil
}

// FromSynchronizer streams a local synchronizer's states until ctx ends or
// the synchronizer is closed.
func FromSynchronizer(ctx context.Context, s *synchronizer.Synchronizer) <-chan tea.Msg {
	sub := s.Subscribe()
	out := make(chan tea.Msg)
	go func() {
		defer close(out)
		defer s.Unsubscribe(sub)
		for {
			select {
			case st, ok := <-sub.C:
				if !ok {
					return
				}
				select {
				case out <- StateMsg(st):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Run shows the view until the user quits or the source closes.
func Run(source <-chan tea.Msg) error {
	p := tea.NewProgram(NewModel(source), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
