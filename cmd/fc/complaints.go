package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"flatconnect/internal/app"
	"flatconnect/internal/domain"
	"flatconnect/internal/lifecycle"
	"flatconnect/internal/pages"
	"flatconnect/internal/tui"
	"flatconnect/internal/view"
	"flatconnect/internal/workflow"
	sdk "flatconnect/sdk/go"
)

func complaintsCmd() *cobra.Command {
	c := &cobra.Command{Use: "complaints", Short: "List complaints"}
	c.AddCommand(pageCmd("all", "Every complaint visible to you", pages.KindAllComplaints))
	c.AddCommand(pageCmd("mine", "Complaints you filed", pages.KindMyComplaints))
	return c
}

func dashboardCmd() *cobra.Command {
	return pageCmd("dashboard", "Dashboard summary", pages.KindDashboardHome)
}

func workerCmd() *cobra.Command {
	return pageCmd("worker", "Tasks assigned to you", pages.KindWorkerDashboard)
}

func assignmentsCmd() *cobra.Command {
	return pageCmd("assignments", "Complaints awaiting assignment and the worker roster", pages.KindAdminAssignment)
}

func pageCmd(use, short string, kind pages.Kind) *cobra.Command {
	var cards bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				l, err := a.Loader(ctx, kind)
				if err != nil {
					return err
				}
				if err := l.Refresh(ctx); err != nil {
					return err
				}
				return showPage(l.Page(), cards)
			})
		},
	}
	cmd.Flags().BoolVar(&cards, "cards", false, "print one card per complaint")
	return cmd
}

func showPage(p pages.Page, cards bool) error {
	if asJSON() {
		return printJSON(p)
	}
	return pages.Render(os.Stdout, p, pages.RenderOptions{Cards: cards})
}

// refreshAndShow reloads kind after a mutation and prints it.
func refreshAndShow(a *app.App, kind pages.Kind) workflow.RefreshFunc {
	return func(ctx context.Context) error {
		l, err := a.Loader(ctx, kind)
		if err != nil {
			return err
		}
		if err := l.Refresh(ctx); err != nil {
			return err
		}
		if asJSON() {
			return nil
		}
		fmt.Println()
		return showPage(l.Page(), false)
	}
}

func workersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workers",
		Short: "List users complaints can be assigned to",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := a.RequireSession(ctx); err != nil {
					return err
				}
				ws, err := a.Client.ListWorkers(ctx)
				if err != nil {
					return &workflow.OpError{Op: workflow.OpLoad, Err: err}
				}
				if asJSON() {
					return printJSON(ws)
				}
				pages.RenderWorkers(os.Stdout, ws)
				return nil
			})
		},
	}
}

func fileCmd() *cobra.Command {
	var form workflow.ComplaintForm
	var images []string
	var lat, lon float64
	cmd := &cobra.Command{
		Use:   "file",
		Short: "File a new complaint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := a.RequireSession(ctx); err != nil {
					return err
				}
				for _, path := range images {
					att, err := sdk.AttachmentFromFile(path)
					if err != nil {
						return &workflow.OpError{Op: workflow.OpSubmit, Err: err}
					}
					form.Files = append(form.Files, att)
				}
				if form.Category == "" {
					form.Category = a.Config.Complaints.DefaultCategory
				}
				if form.Priority == "" {
					form.Priority = a.Config.Complaints.DefaultPriority
				}
				var loc workflow.Locator = workflow.NoLocator{}
				if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon") {
					loc = workflow.FixedLocator{Latitude: lat, Longitude: lon}
				}
				res, err := a.Submitter(loc).Submit(ctx, form)
				if err != nil {
					return err
				}
				if res.Notice != "" {
					fmt.Fprintln(os.Stderr, res.Notice)
				}
				if asJSON() {
					return printJSON(res.Issue)
				}
				fmt.Println("Complaint submitted successfully!")
				return view.RenderCard(os.Stdout, res.Issue, domain.RoleMember)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&form.Title, "title", "", "short title")
	f.StringVar(&form.Category, "category", "", "category label from flatconnect.yml")
	f.StringVar(&form.Priority, "priority", "", "priority label from flatconnect.yml")
	f.StringVar(&form.Location, "location", "", "free-text location hint, kept locally")
	f.StringVar(&form.Description, "description", "", "what is wrong")
	f.StringSliceVar(&images, "image", nil, "image file to attach (repeatable)")
	f.BoolVar(&form.Consent, "consent", false, "consent to share the complaint with society staff")
	f.Float64Var(&lat, "lat", 0, "latitude of the device")
	f.Float64Var(&lon, "lon", 0, "longitude of the device")
	return cmd
}

func assignCmd() *cobra.Command {
	var workerID int64
	cmd := &cobra.Command{
		Use:   "assign <issue-id>",
		Short: "Assign a new complaint to a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				issue, err := a.FindIssue(ctx, args[0])
				if err != nil {
					return err
				}
				return runAssign(ctx, a, issue, workerID)
			})
		},
	}
	cmd.Flags().Int64Var(&workerID, "worker", 0, "worker id (see fc workers)")
	return cmd
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <issue-id>",
		Short: "Start work on an assigned task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				issue, err := a.FindIssue(ctx, args[0])
				if err != nil {
					return err
				}
				return runStart(ctx, a, issue)
			})
		},
	}
}

func completeCmd() *cobra.Command {
	var photos []string
	cmd := &cobra.Command{
		Use:   "complete <issue-id>",
		Short: "Resolve an in-progress task with photo evidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				issue, err := a.FindIssue(ctx, args[0])
				if err != nil {
					return err
				}
				return runComplete(ctx, a, issue, photos)
			})
		},
	}
	cmd.Flags().StringSliceVar(&photos, "photo", nil, "completion photo file (repeatable)")
	return cmd
}

// advanceCmd runs whatever the complaint card offers the caller's role.
func advanceCmd() *cobra.Command {
	var workerID int64
	var photos []string
	cmd := &cobra.Command{
		Use:   "advance <issue-id>",
		Short: "Take the next step the complaint card offers you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				s, err := a.RequireSession(ctx)
				if err != nil {
					return err
				}
				issue, err := a.FindIssue(ctx, args[0])
				if err != nil {
					return err
				}
				ev, err := nextStep(issue, s.Role)
				if err != nil {
					return err
				}
				switch ev {
				case lifecycle.EventAssign:
					return runAssign(ctx, a, issue, workerID)
				case lifecycle.EventStart:
					return runStart(ctx, a, issue)
				case lifecycle.EventComplete:
					return runComplete(ctx, a, issue, photos)
				}
				return fmt.Errorf("unsupported action %s", ev)
			})
		},
	}
	cmd.Flags().Int64Var(&workerID, "worker", 0, "worker id when the step is an assignment")
	cmd.Flags().StringSliceVar(&photos, "photo", nil, "completion photo file when the step is a completion (repeatable)")
	return cmd
}

// nextStep is the lifecycle event behind the card's action for role.
func nextStep(issue domain.Issue, role domain.Role) (lifecycle.Event, error) {
	action := view.ActionFor(issue, role)
	ev, ok := view.Event(action)
	if ok {
		return ev, nil
	}
	if action.Label() == "" {
		return "", fmt.Errorf("nothing to do on complaint %s (status %s)", issue.ID, view.StatusLabel(issue.Status))
	}
	return "", fmt.Errorf("complaint %s offers %q, which does not change its status", issue.ID, action.Label())
}

func runAssign(ctx context.Context, a *app.App, issue domain.Issue, workerID int64) error {
	asg := a.Assignment(refreshAndShow(a, pages.KindAdminAssignment))
	if err := asg.Open(issue); err != nil {
		return err
	}
	if err := asg.SelectWorker(workerID); err != nil {
		return err
	}
	res, err := asg.Confirm(ctx)
	if err != nil {
		return err
	}
	if asJSON() {
		return printJSON(res)
	}
	fmt.Printf("Task assigned successfully to %s.\n", res.AssignedTo.DisplayName())
	return nil
}

func runStart(ctx context.Context, a *app.App, issue domain.Issue) error {
	if err := a.Advance(refreshAndShow(a, pages.KindWorkerDashboard)).Start(ctx, issue); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Task started.")
	return nil
}

func runComplete(ctx context.Context, a *app.App, issue domain.Issue, paths []string) error {
	dlg, err := a.Advance(refreshAndShow(a, pages.KindWorkerDashboard)).OpenCompletion(issue)
	if err != nil {
		return err
	}
	defer dlg.Close()
	for _, path := range paths {
		att, err := sdk.AttachmentFromFile(path)
		if err != nil {
			return &workflow.OpError{Op: workflow.OpComplete, Err: err}
		}
		if err := dlg.AddPhoto(att); err != nil {
			return err
		}
	}
	if err := dlg.Submit(ctx); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Task marked as resolved.")
	return nil
}

func photosCmd() *cobra.Command {
	p := &cobra.Command{Use: "photos", Short: "Completion photos"}
	var list bool
	viewCmd := &cobra.Command{
		Use:   "view <issue-id>",
		Short: "Browse a resolved complaint's completion photos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				issue, err := a.FindIssue(ctx, args[0])
				if err != nil {
					return err
				}
				if list || asJSON() {
					c, err := workflow.OpenViewer(issue)
					if err != nil {
						return err
					}
					if asJSON() {
						return printJSON(c.Photos())
					}
					for _, u := range c.Photos() {
						fmt.Println(u)
					}
					return nil
				}
				return tui.RunPhotoViewer(issue)
			})
		},
	}
	viewCmd.Flags().BoolVar(&list, "list", false, "print photo URLs instead of opening the viewer")
	p.AddCommand(viewCmd)
	return p
}

func notificationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notifications",
		Short: "Show your notifications, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := a.RequireSession(ctx); err != nil {
					return err
				}
				ns, err := a.Client.Notifications(ctx)
				if err != nil {
					return &workflow.OpError{Op: workflow.OpLoad, Err: err}
				}
				if asJSON() {
					return printJSON(ns)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"When", "Issue", "Type", "Message"})
				for _, n := range ns {
					tw.AppendRow(table.Row{n.CreatedAt, n.IssueID, n.Type, n.Message})
				}
				tw.Render()
				return nil
			})
		},
	}
}
