package sessionscmder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/reqvibe/reqvibe/pkg/chat"
	"github.com/reqvibe/reqvibe/pkg/session"
)

func init() {
	// Force TrueColor profile to fix lipgloss color detection issue
	// See: https://github.com/charmbracelet/lipgloss/issues/439
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.TrueColor))
	renderer.SetColorProfile(termenv.TrueColor)
	lipgloss.SetDefaultRenderer(renderer)
}

type browseView int

const (
	viewList browseView = iota
	viewDetail
)

type browseModel struct {
	user          string
	records       []session.Record
	view          browseView
	cursor        int
	messageCursor int
	width         int
	height        int
	keys          browseKeyMap
	help          help.Model
}

var (
	browseTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	browseMutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	browseDividerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	browseHighlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("235")).Background(lipgloss.Color("212")).Bold(true)
	browseRoleUserStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	browseRoleAsstStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type browseKeyMap struct {
	Up    key.Binding
	Down  key.Binding
	Enter key.Binding
	Back  key.Binding
	Quit  key.Binding
}

func (k browseKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.Enter, k.Back, k.Quit}
}

func (k browseKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Down, k.Up}, {k.Enter, k.Back, k.Quit}}
}

func defaultKeyMap() browseKeyMap {
	return browseKeyMap{
		Up:    key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down:  key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		Enter: key.NewBinding(key.WithKeys("enter", "l"), key.WithHelp("enter", "read")),
		Back:  key.NewBinding(key.WithKeys("h", "esc"), key.WithHelp("h", "back")),
		Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func runSessionsTUI(ctx context.Context, user string, records []session.Record) error {
	model := browseModel{
		user:    user,
		records: records,
		view:    viewList,
		keys:    defaultKeyMap(),
		help:    help.New(),
	}

	program := bubbletea.NewProgram(model,
		bubbletea.WithContext(ctx),
		bubbletea.WithAltScreen(),
	)
	_, err := program.Run()
	return err
}

func (m browseModel) Init() bubbletea.Cmd {
	return nil
}

func (m browseModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case bubbletea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m browseModel) View() string {
	switch m.view {
	case viewDetail:
		return m.viewDetail()
	default:
		return m.viewList()
	}
}

func (m browseModel) handleKey(msg bubbletea.KeyMsg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, bubbletea.Quit
	case "j", "down":
		return m.moveCursor(1), nil
	case "k", "up":
		return m.moveCursor(-1), nil
	case "l", "enter":
		if m.view == viewList && len(m.records) > 0 {
			m.view = viewDetail
			m.messageCursor = 0
		}
	case "h", "esc":
		if m.view == viewDetail {
			m.view = viewList
		}
	}

	return m, nil
}

func (m browseModel) moveCursor(delta int) browseModel {
	if m.view == viewList {
		m.cursor = clamp(m.cursor+delta, len(m.records)-1)
		return m
	}

	msgs := m.records[m.cursor].Messages
	if len(msgs) == 0 {
		return m
	}
	m.messageCursor = clamp(m.messageCursor+delta, len(msgs)-1)
	return m
}

func (m browseModel) viewList() string {
	headerLeft := browseTitleStyle.Render("reqvibe sessions")
	headerRight := browseMutedStyle.Render(fmt.Sprintf("%s · %d sessions", m.user, len(m.records)))
	lines := []string{renderHeaderLine(m.width, headerLeft, headerRight), renderRule(m.width), ""}

	lines = append(lines, browseMutedStyle.Render("  id        created           model           msgs  title"))
	for i, rec := range m.records {
		cursor := " "
		if i == m.cursor {
			cursor = ">"
		}

		model := rec.Model
		if model == "" {
			model = "-"
		}
		line := fmt.Sprintf("%s %-9s %-17s %-15s %4d  %s",
			cursor,
			shortID(rec.ID),
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			truncateText(model, 15),
			len(rec.Messages),
			truncateText(rec.Title, max(10, m.width-56)),
		)

		if i == m.cursor {
			line = browseHighlightStyle.Render(line)
		}
		lines = append(lines, line)
	}

	lines = append(lines, "", browseMutedStyle.Render(m.help.View(m.keys)))
	return strings.Join(lines, "\n")
}

func (m browseModel) viewDetail() string {
	rec := m.records[m.cursor]

	headerLeft := browseTitleStyle.Render("reqvibe sessions › " + truncateText(rec.Title, 40))
	headerRight := browseMutedStyle.Render(fmt.Sprintf("%s · %d messages", shortID(rec.ID), len(rec.Messages)))
	lines := []string{renderHeaderLine(m.width, headerLeft, headerRight), renderRule(m.width), ""}

	if len(rec.Messages) == 0 {
		lines = append(lines, browseMutedStyle.Render("no messages"))
		lines = append(lines, "", browseMutedStyle.Render(m.help.View(m.keys)))
		return strings.Join(lines, "\n")
	}

	screenHeight := m.height
	if screenHeight <= 0 {
		screenHeight = 40
	}
	maxVisible := max(screenHeight-len(lines)-3, 4)

	start, end := visibleRange(len(rec.Messages), m.messageCursor, maxVisible)
	width := m.width
	if width <= 0 {
		width = 80
	}

	for i := start; i < end; i++ {
		msg := rec.Messages[i]
		cursor := " "
		if i == m.messageCursor {
			cursor = ">"
		}

		text := strings.ReplaceAll(msg.Content, "\n", " ")
		line := fmt.Sprintf("%s %s %s",
			cursor,
			roleLabel(msg.Role),
			truncateText(text, max(20, width-18)),
		)
		if i == m.messageCursor {
			line = browseHighlightStyle.Render(line)
		}
		lines = append(lines, line)
	}

	selected := rec.Messages[m.messageCursor]
	lines = append(lines, "", renderRule(m.width))
	lines = append(lines, wrapText(selected.Content, max(20, width-2))...)

	lines = append(lines, "", browseMutedStyle.Render(m.help.View(m.keys)))
	return strings.Join(lines, "\n")
}

func roleLabel(role chat.Role) string {
	switch role {
	case chat.RoleAssistant:
		return browseRoleAsstStyle.Render("● assistant")
	case chat.RoleUser:
		return browseRoleUserStyle.Render("○ user     ")
	default:
		return browseMutedStyle.Render(fmt.Sprintf("%-11s", role))
	}
}

func clamp(value, upper int) int {
	if value < 0 {
		return 0
	}
	if value > upper {
		return upper
	}
	return value
}

func truncateText(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}

func renderHeaderLine(width int, left, right string) string {
	lineWidth := width
	if lineWidth <= 0 {
		lineWidth = 80
	}
	leftWidth := lipgloss.Width(left)
	rightWidth := lipgloss.Width(right)
	if leftWidth+rightWidth+1 >= lineWidth {
		return strings.TrimSpace(left + " " + right)
	}
	spacing := lineWidth - leftWidth - rightWidth
	return left + strings.Repeat(" ", spacing) + right
}

func renderRule(width int) string {
	lineWidth := width
	if lineWidth <= 0 {
		lineWidth = 80
	}
	return browseDividerStyle.Render(strings.Repeat("─", lineWidth))
}

func visibleRange(total, cursor, size int) (int, int) {
	if total <= 0 || size <= 0 {
		return 0, 0
	}
	if total <= size {
		return 0, total
	}
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= total {
		cursor = total - 1
	}
	start := max(cursor-(size/2), 0)
	end := start + size
	if end > total {
		end = total
		start = max(end-size, 0)
	}
	return start, end
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	lines := []string{}
	current := ""
	for _, word := range words {
		if current == "" {
			current = word
			continue
		}
		if lipgloss.Width(current)+1+lipgloss.Width(word) <= width {
			current = current + " " + word
			continue
		}
		lines = append(lines, current)
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}
