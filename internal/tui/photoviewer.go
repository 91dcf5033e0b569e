// Package tui holds the interactive terminal screens.
package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"flatconnect/internal/domain"
	"flatconnect/internal/workflow"
)

var (
	viewerTitle  = lipgloss.NewStyle().Bold(true)
	viewerURL    = lipgloss.NewStyle().Underline(true)
	viewerMuted  = lipgloss.NewStyle().Faint(true)
	thumbActive  = lipgloss.NewStyle().Bold(true).Reverse(true).Padding(0, 1)
	thumbDefault = lipgloss.NewStyle().Padding(0, 1)
)

// PhotoViewer is a bubbletea model over a completion photo carousel.
type PhotoViewer struct {
	title    string
	carousel *workflow.Carousel
	quitting bool
}

// NewPhotoViewer opens a viewer on an issue's completion photos.
func NewPhotoViewer(issue domain.Issue) (PhotoViewer, error) {
	c, err := workflow.OpenViewer(issue)
	if err != nil {
		return PhotoViewer{}, err
	}
	return PhotoViewer{title: issue.Title, carousel: c}, nil
}

func (m PhotoViewer) Init() tea.Cmd { return nil }

func (m PhotoViewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch s := key.String(); s {
	case "q", "esc", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "right", "l", "n", " ":
		m.carousel.Next()
	case "left", "h", "p":
		m.carousel.Prev()
	default:
		if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			_ = m.carousel.Select(int(s[0] - '1'))
		}
	}
	return m, nil
}

func (m PhotoViewer) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(viewerTitle.Render("Completion photos: "+m.title) + "\n\n")
	b.WriteString(viewerURL.Render(m.carousel.Current()) + "\n\n")
	thumbs := make([]string, 0, m.carousel.Len())
	for i := range m.carousel.Photos() {
		label := string(rune('1' + i))
		if i >= 9 {
			label = "·"
		}
		if i == m.carousel.Index() {
			thumbs = append(thumbs, thumbActive.Render(label))
		} else {
			thumbs = append(thumbs, thumbDefault.Render(label))
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, thumbs...) + "  " + viewerMuted.Render(m.carousel.Position()) + "\n\n")
	b.WriteString(viewerMuted.Render("←/→: browse   1-9: jump   q: quit") + "\n")
	return b.String()
}

// Index is the photo currently shown.
func (m PhotoViewer) Index() int { return m.carousel.Index() }

// RunPhotoViewer runs the viewer until the user quits.
func RunPhotoViewer(issue domain.Issue, opts ...tea.ProgramOption) error {
	m, err := NewPhotoViewer(issue)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, opts...).Run()
	return err
}
