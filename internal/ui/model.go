// Package ui renders the chat screen: presence sidebar, message thread,
// composer. All chat state lives in the presence tracker and the
// conversation store; this model only orchestrates.
package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"hirechat/internal/conversation"
	"hirechat/internal/events"
	"hirechat/internal/presence"
	"hirechat/internal/stomp"
	"hirechat/internal/transport"
)

type inboundEvent events.Event
type presenceEvent events.Event
type toastEvent string
type toastExpired struct{}
type refreshDone struct{ err error }
type historyDone struct{ err error }
type connectionLost struct{}

// Deps is everything the model needs injected; the connection object is
// owned by main and torn down there.
type Deps struct {
	Identity  transport.Identity
	Transport *transport.Client
	Tracker   *presence.Tracker
	Store     *conversation.Store
	Messages  <-chan events.Event
	Presence  <-chan events.Event
	Toasts    <-chan string
}

type Model struct {
	deps Deps

	width, height int
	peers         []presence.ConnectedUser
	selected      int
	// threadOpen mirrors the mobile "conversation visible" flag: it is
	// a view concern, independent of the data state.
	threadOpen bool
	input      string
	toast      string
	lost       bool
}

func New(deps Deps) Model {
	return Model{deps: deps}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.refreshCmd(),
		listen(m.deps.Messages, func(ev events.Event) tea.Msg { return inboundEvent(ev) }),
		listen(m.deps.Presence, func(ev events.Event) tea.Msg { return presenceEvent(ev) }),
		listenToasts(m.deps.Toasts),
		watchDone(m.deps.Transport),
	)
}

func listen(ch <-chan events.Event, wrap func(events.Event) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return wrap(ev)
	}
}

func listenToasts(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return toastEvent(s)
	}
}

func watchDone(t *transport.Client) tea.Cmd {
	return func() tea.Msg {
		<-t.Done()
		return connectionLost{}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, err := m.deps.Tracker.Refresh(ctx)
		return refreshDone{err: err}
	}
}

func (m Model) selectPeerCmd(id int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return historyDone{err: m.deps.Store.SelectPeer(ctx, id)}
	}
}

func expireToast() tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg { return toastExpired{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.FocusMsg:
		// Tab regained focus: re-fetch presence; the tracker drops the
		// trigger when the list is still fresh.
		return m, m.refreshCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case inboundEvent:
		if msg.Message != nil {
			m.deps.Tracker.ApplyMessage(msg.Message, m.deps.Store.ActivePeer())
			m.deps.Store.AppendRemote(msg.Message)
			m.peers = m.deps.Tracker.Peers()
		}
		return m, listen(m.deps.Messages, func(ev events.Event) tea.Msg { return inboundEvent(ev) })

	case presenceEvent:
		if msg.Presence != nil {
			m.deps.Tracker.ApplyPresence(msg.Presence)
			m.peers = m.deps.Tracker.Peers()
		}
		return m, listen(m.deps.Presence, func(ev events.Event) tea.Msg { return presenceEvent(ev) })

	case toastEvent:
		m.toast = string(msg)
		return m, tea.Batch(listenToasts(m.deps.Toasts), expireToast())

	case toastExpired:
		m.toast = ""
		return m, nil

	case refreshDone:
		if msg.err != nil {
			m.toast = "could not refresh contacts"
			return m, expireToast()
		}
		m.peers = m.deps.Tracker.Peers()
		m.clampSelection()
		return m, nil

	case historyDone:
		if msg.err != nil {
			m.toast = "could not load history"
			return m, expireToast()
		}
		return m, nil

	case connectionLost:
		m.lost = true
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.deps.Transport.Disconnect()
		return m, tea.Quit
	}

	if m.threadOpen {
		switch msg.Type {
		case tea.KeyEsc:
			// Explicit back action: hide the thread, deselect the peer.
			m.threadOpen = false
			m.input = ""
			return m, m.selectPeerCmd(0)
		case tea.KeyEnter:
			return m.sendCurrent()
		case tea.KeyBackspace:
			if len(m.input) > 0 {
				runes := []rune(m.input)
				m.input = string(runes[:len(runes)-1])
			}
			return m, nil
		case tea.KeySpace:
			m.input += " "
			return m, nil
		case tea.KeyRunes:
			m.input += string(msg.Runes)
			return m, nil
		}
		return m, nil
	}

	switch msg.String() {
	case "q":
		m.deps.Transport.Disconnect()
		return m, tea.Quit
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.peers)-1 {
			m.selected++
		}
	case "r":
		return m, m.refreshCmd()
	case "enter":
		if m.selected < len(m.peers) {
			m.threadOpen = true
			return m, m.selectPeerCmd(m.peers[m.selected].ID)
		}
	}
	return m, nil
}

func (m Model) sendCurrent() (tea.Model, tea.Cmd) {
	content := m.input
	if content == "" || m.lost {
		return m, nil
	}
	peerID := m.deps.Store.ActivePeer()
	if peerID == 0 {
		return m, nil
	}
	now := time.Now()
	if err := m.deps.Transport.SendChat(peerID, content, now); err != nil {
		m.toast = "send failed"
		return m, expireToast()
	}
	m.deps.Store.AppendLocal(content, now)
	m.input = ""
	return m, nil
}

func (m *Model) clampSelection() {
	if m.selected >= len(m.peers) {
		m.selected = len(m.peers) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func statusDot(s stomp.Status) string {
	if s == stomp.StatusOnline {
		return onlineDot
	}
	return offlineDot
}
