package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"flatconnect/internal/domain"
)

const cardWidth = 64

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#c4c4c4", Dark: "#4a4a4a"}).
			Padding(0, 1).
			Width(cardWidth)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	actionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#0b5cad", Dark: "#6cb6ff"})
	badgeBase   = lipgloss.NewStyle().Padding(0, 1).Bold(true)
)

var badgeColors = map[domain.Status]lipgloss.AdaptiveColor{
	domain.StatusNew:        {Light: "#1f6feb", Dark: "#58a6ff"},
	domain.StatusAssigned:   {Light: "#9a6700", Dark: "#d29922"},
	domain.StatusInProgress: {Light: "#bc4c00", Dark: "#f0883e"},
	domain.StatusResolved:   {Light: "#1a7f37", Dark: "#3fb950"},
	domain.StatusClosed:     {Light: "#57606a", Dark: "#8b949e"},
}

// Badge renders the status label as a colored badge.
func Badge(s domain.Status) string {
	style := badgeBase
	if c, ok := badgeColors[s]; ok {
		style = style.Foreground(c)
	}
	return style.Render(StatusLabel(s))
}

// Card returns the rendered Complaint Card for issue as seen by role.
func Card(issue domain.Issue, role domain.Role) string {
	lines := []string{
		titleStyle.Render(issue.Title) + "  " + Badge(issue.Status),
		issue.Description,
		"",
		field("Category", CategoryLabel(issue)),
		field("Priority", PriorityLabel(issue.Priority)),
		field("Reported by", issue.ReporterName()),
	}
	if name := issue.AssigneeName(); name != "" {
		lines = append(lines, field("Assigned to", name))
	}
	lines = append(lines, field("Created", FormatDate(issue.CreatedAt)))
	resolved := ""
	if issue.ResolvedAt != nil {
		resolved = *issue.ResolvedAt
	}
	lines = append(lines, field("Resolved", FormatDate(resolved)))
	if issue.Latitude != nil && issue.Longitude != nil {
		lines = append(lines, field("Location", fmt.Sprintf("%s, %s", *issue.Latitude, *issue.Longitude)))
	}
	lines = append(lines, mutedStyle.Render("id "+issue.ID))

	switch a := ActionFor(issue, role).(type) {
	case NoAction:
	case TaskCompleted:
		lines = append(lines, "", actionStyle.Render(a.Label())+" "+mutedStyle.Render("on "+FormatDate(a.ResolvedAt)))
	case ViewPhotosAction:
		lines = append(lines, "", actionStyle.Render(fmt.Sprintf("%s (%d)", a.Label(), len(a.Photos))))
	default:
		lines = append(lines, "", actionStyle.Render(a.Label()))
	}
	return cardStyle.Render(strings.Join(lines, "\n"))
}

// RenderCard writes the card followed by a newline.
func RenderCard(w io.Writer, issue domain.Issue, role domain.Role) error {
	_, err := fmt.Fprintln(w, Card(issue, role))
	return err
}

func field(name, value string) string {
	return mutedStyle.Render(name+":") + " " + value
}
