package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"hirechat/internal/conversation"
)

const sidebarWidth = 30

var (
	onlineDot  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
	offlineDot = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("○")

	sidebarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(lipgloss.Color("240")).
			Width(sidebarWidth).
			PaddingRight(1)

	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	previewStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sentStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	receivedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	timeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	toastStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	lostStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	composerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(lipgloss.Color("240"))
)

func (m Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	// Narrow terminal: sidebar and thread are alternate screens, the
	// same affordance as the mobile "conversation visible" flag.
	narrow := m.width < 60
	var body string
	switch {
	case narrow && m.threadOpen:
		body = m.threadView(m.width)
	case narrow:
		body = m.sidebarView()
	default:
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebarStyle.Render(m.sidebarView()), m.threadView(m.width-sidebarWidth-2))
	}

	header := selectedStyle.Render("hirechat") + previewStyle.Render(" · "+m.deps.Identity.Profile.Name)

	var footer []string
	if m.lost {
		footer = append(footer, lostStyle.Render("connection lost · restart to reconnect"))
	}
	if m.toast != "" {
		footer = append(footer, toastStyle.Render(m.toast))
	}
	footer = append(footer, m.composerView())

	return lipgloss.JoinVertical(lipgloss.Left, header, body, strings.Join(footer, "\n"))
}

func (m Model) sidebarView() string {
	if len(m.peers) == 0 {
		return previewStyle.Render("no contacts yet\npress r to refresh")
	}
	var b strings.Builder
	for i, p := range m.peers {
		line := fmt.Sprintf("%s %s", statusDot(p.Status), p.Name)
		if p.Company != nil && p.Company.Name != "" {
			line += previewStyle.Render(" · " + p.Company.Name)
		}
		if i == m.selected && !m.threadOpen {
			line = selectedStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
		if p.LastMessage != nil {
			b.WriteString("    " + previewStyle.Render(truncate(p.LastMessage.Content, sidebarWidth-6)) + "\n")
		}
	}
	return b.String()
}

func (m Model) threadView(width int) string {
	msgs := m.deps.Store.Messages()
	if m.deps.Store.ActivePeer() == 0 {
		return previewStyle.Render("select a contact to start chatting")
	}

	// Scroll-to-latest: show the newest messages that fit.
	rows := m.height - 4
	if rows < 1 {
		rows = 1
	}
	if len(msgs) > rows {
		msgs = msgs[len(msgs)-rows:]
	}

	var b strings.Builder
	for _, msg := range msgs {
		b.WriteString(renderMessage(msg, width) + "\n")
	}
	return b.String()
}

func renderMessage(msg conversation.Message, width int) string {
	stamp := timeStyle.Render(msg.Time)
	if msg.Direction == conversation.Sent {
		line := sentStyle.Render("you: "+msg.Content) + " " + stamp
		return lipgloss.NewStyle().Width(width).Align(lipgloss.Right).Render(line)
	}
	return receivedStyle.Render(msg.Content) + " " + stamp
}

func (m Model) composerView() string {
	prompt := "> "
	if !m.threadOpen {
		prompt = previewStyle.Render("↑/↓ select · enter open · r refresh · q quit")
		return composerStyle.Width(m.width).Render(prompt)
	}
	return composerStyle.Width(m.width).Render(prompt + m.input + "▌")
}

func truncate(s string, max int) string {
	if max < 1 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
