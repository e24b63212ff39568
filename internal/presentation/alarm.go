package presentation

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tazhate/remora/internal/domain"
)

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(1, 4).
			Align(lipgloss.Center)

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	timeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	descStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57")).
			Padding(0, 2)

	priorityHighStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	priorityMedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
	priorityLowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
)

// AlarmModel is the full-screen alarm view.
type AlarmModel struct {
	reminder  domain.Reminder
	width     int
	height    int
	dismissed bool
	quitting  bool
}

func NewAlarmModel(r domain.Reminder) AlarmModel {
	return AlarmModel{reminder: r}
}

// Dismissed reports whether the user chose "Dismiss & Complete".
func (m AlarmModel) Dismissed() bool {
	return m.dismissed
}

func (m AlarmModel) Init() tea.Cmd {
	return nil
}

func (m AlarmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "d":
			m.dismissed = true
			m.quitting = true
			return m, tea.Quit
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m AlarmModel) View() string {
	if m.quitting {
		return ""
	}

	r := m.reminder
	lines := []string{
		timeStyle.Render(r.DueDateTime.Format("15:04")),
		"",
		titleStyle.Render(r.Title),
	}
	if d := strings.TrimSpace(r.Description); d != "" {
		lines = append(lines, descStyle.Render(d))
	}
	lines = append(lines,
		"",
		priorityBadge(r.Priority),
		"",
		buttonStyle.Render("Dismiss & Complete"),
		hintStyle.Render("enter/d dismiss • q stop ringing"),
	)

	box := frameStyle.Render(lipgloss.JoinVertical(lipgloss.Center, lines...))
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func priorityBadge(p domain.Priority) string {
	label := fmt.Sprintf("%s %s", p.Emoji(), p)
	switch p {
	case domain.PriorityHigh:
		return priorityHighStyle.Render(label)
	case domain.PriorityMedium:
		return priorityMedStyle.Render(label)
	default:
		return priorityLowStyle.Render(label)
	}
}
