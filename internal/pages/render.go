package pages

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"flatconnect/internal/domain"
	"flatconnect/internal/view"
)

// RenderOptions selects what Render prints.
type RenderOptions struct {
	Cards bool
}

// Render writes the page header, stats, issue table and optionally one card per issue.
func Render(w io.Writer, p Page, opts RenderOptions) error {
	if _, err := fmt.Fprintf(w, "%s\n\n", p.Title); err != nil {
		return err
	}
	RenderStats(w, p)
	if p.Kind == KindAdminAssignment {
		if _, err := fmt.Fprintf(w, "\nAwaiting assignment\n"); err != nil {
			return err
		}
		RenderIssues(w, p.Pending(), p.Role)
		if _, err := fmt.Fprintf(w, "\nWorkers\n"); err != nil {
			return err
		}
		RenderWorkers(w, p.Workers)
		if _, err := fmt.Fprintf(w, "\nAll issues\n"); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(w)
	}
	RenderIssues(w, p.Issues, p.Role)
	if !opts.Cards {
		return nil
	}
	for _, issue := range p.Issues {
		if err := view.RenderCard(w, issue, p.Role); err != nil {
			return err
		}
	}
	return nil
}

// RenderStats prints the stat cards as a one-row table.
func RenderStats(w io.Writer, p Page) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	c := p.Counts
	if p.Kind == KindDashboardHome {
		tw.AppendHeader(table.Row{"Total", "In Progress", "Resolved", "New"})
		tw.AppendRow(table.Row{c.Total, c.InProgress, c.Resolved, c.New})
	} else {
		tw.AppendHeader(table.Row{"Total", "New", "Assigned", "In Progress", "Resolved", "Closed"})
		tw.AppendRow(table.Row{c.Total, c.New, c.Assigned, c.InProgress, c.Resolved, c.Closed})
	}
	tw.Render()
}

// RenderIssues prints one row per issue with the viewer's action.
func RenderIssues(w io.Writer, issues []domain.Issue, role domain.Role) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Title", "Category", "Priority", "Status", "Reporter", "Assignee", "Created", "Action"})
	for _, i := range issues {
		tw.AppendRow(table.Row{
			i.ID,
			text.Trim(i.Title, 40),
			view.CategoryLabel(i),
			view.PriorityLabel(i.Priority),
			view.StatusLabel(i.Status),
			i.ReporterName(),
			i.AssigneeName(),
			view.FormatDate(i.CreatedAt),
			view.ActionFor(i, role).Label(),
		})
	}
	if len(issues) == 0 {
		tw.AppendRow(table.Row{"", "No complaints found"})
	}
	tw.Render()
}

// RenderWorkers prints the assignable workers.
func RenderWorkers(w io.Writer, workers []domain.Worker) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Name", "Username", "Role", "Phone", "Verified"})
	for _, wk := range workers {
		tw.AppendRow(table.Row{wk.ID, wk.DisplayName(), wk.Username, wk.Role, wk.PhoneNumber, wk.IsVerified})
	}
	tw.Render()
}

// RenderProfile prints a profile as a key/value table.
func RenderProfile(w io.Writer, p domain.Profile) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendRows([]table.Row{
		{"Name", p.FullName()},
		{"Email", p.Email},
		{"Role", p.Role},
		{"Flat", p.FlatNumber},
		{"Building/Block", p.BuildingBlock},
		{"Phone", p.PhoneNumber},
		{"Emergency contact", p.EmergencyContact},
		{"Date of birth", p.DateOfBirth},
		{"Specialization", p.Specialization},
		{"Verified", p.IsVerified},
	})
	tw.Render()
}
