package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"flatconnect/internal/domain"
	"flatconnect/internal/engine/auth"
	"flatconnect/internal/events"
	"flatconnect/internal/lifecycle"
	"flatconnect/internal/repo"
)

// CreateIssueInput carries the raw form fields of a new complaint.
type CreateIssueInput struct {
	Title       string
	Description string
	Category    string
	Priority    string
	Latitude    string
	Longitude   string
	Images      []Upload
}

// CreateResult is the created issue id and the images stored with it.
type CreateResult struct {
	Status         string              `json:"status"`
	IssueID        string              `json:"issue_id"`
	ImagesUploaded int                 `json:"images_uploaded"`
	UploadedImages []domain.IssueImage `json:"uploaded_images"`
}

// AssignResult answers a successful assignment.
type AssignResult struct {
	Status      string        `json:"status"`
	AssignedTo  domain.Worker `json:"assigned_to"`
	IssueStatus domain.Status `json:"issue_status"`
	IssueID     string        `json:"issue_id"`
}

func (e Engine) CreateIssue(ctx context.Context, p Principal, in CreateIssueInput) (CreateResult, error) {
	title := strings.TrimSpace(in.Title)
	desc := strings.TrimSpace(in.Description)
	if title == "" {
		return CreateResult{}, ValidationError{Field: "title", Message: "Title is required"}
	}
	if desc == "" {
		return CreateResult{}, ValidationError{Field: "description", Message: "Description is required"}
	}
	row := repo.IssueRow{
		ID:          uuid.NewString(),
		Title:       title,
		Description: desc,
		Priority:    domain.PriorityLow,
		Status:      domain.StatusNew,
		ReporterID:  p.UserID,
	}
	if c := strings.TrimSpace(in.Category); c != "" {
		id, err := strconv.Atoi(c)
		if err != nil {
			return CreateResult{}, ValidationError{Field: "category", Message: "Invalid category"}
		}
		ok, err := e.Repo.CategoryExists(ctx, id)
		if err != nil {
			return CreateResult{}, err
		}
		if !ok {
			return CreateResult{}, ValidationError{Field: "category", Message: "Invalid category"}
		}
		row.CategoryID = id
	}
	if pr := strings.TrimSpace(in.Priority); pr != "" {
		n, err := strconv.Atoi(pr)
		if err != nil || n < int(domain.PriorityLow) || n > int(domain.PriorityCritical) {
			return CreateResult{}, ValidationError{Field: "priority", Message: "Invalid priority"}
		}
		row.Priority = domain.Priority(n)
	}
	lat, lng := strings.TrimSpace(in.Latitude), strings.TrimSpace(in.Longitude)
	if lat != "" || lng != "" {
		if !validCoord(lat, 90) || !validCoord(lng, 180) {
			return CreateResult{}, ValidationError{Field: "latitude", Message: "Invalid coordinates"}
		}
		row.Latitude, row.Longitude = &lat, &lng
	}

	var saved []string
	for _, img := range in.Images {
		rel, err := e.Media.Save(row.ID, img)
		if err != nil {
			e.Media.Remove(saved...)
			return CreateResult{}, err
		}
		saved = append(saved, rel)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		e.Media.Remove(saved...)
		return CreateResult{}, err
	}
	defer tx.Rollback()
	now := e.stamp()
	row.CreatedAt, row.UpdatedAt = now, now
	if err := e.Repo.InsertIssue(ctx, tx, row); err != nil {
		e.Media.Remove(saved...)
		return CreateResult{}, wrapTx("insert issue", err)
	}
	res := CreateResult{Status: "Issue created", IssueID: row.ID, UploadedImages: []domain.IssueImage{}}
	for _, rel := range saved {
		id, err := e.Repo.InsertImage(ctx, tx, row.ID, repo.ImageReport, rel, now)
		if err != nil {
			e.Media.Remove(saved...)
			return CreateResult{}, wrapTx("insert image", err)
		}
		res.UploadedImages = append(res.UploadedImages, domain.IssueImage{ID: id, Image: e.Media.URL(rel), UploadedAt: now})
	}
	if err := tx.Commit(); err != nil {
		e.Media.Remove(saved...)
		return CreateResult{}, err
	}
	res.ImagesUploaded = len(saved)
	e.Log.Info().Str("issue_id", row.ID).Int64("reporter", p.UserID).Int("images", len(saved)).Msg("issue created")
	return res, nil
}

// Issue returns one issue if the caller may see it.
func (e Engine) Issue(ctx context.Context, p Principal, id string) (domain.Issue, error) {
	row, err := e.Repo.GetIssue(ctx, nil, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Issue{}, NotFoundError{What: "Issue"}
	}
	if err != nil {
		return domain.Issue{}, err
	}
	if !p.Allowed(auth.PermIssueListAll) && row.ReporterID != p.UserID && !heldBy(row, p.UserID) {
		return domain.Issue{}, auth.ForbiddenError{Permission: auth.PermIssueListAll, Message: "You do not have access to this issue"}
	}
	return e.hydrate(ctx, nil, row, map[int64]repo.User{})
}

// ListAll returns every issue to staff and only their own to everyone else.
func (e Engine) ListAll(ctx context.Context, p Principal) ([]domain.Issue, error) {
	f := repo.IssueFilters{}
	if !p.Allowed(auth.PermIssueListAll) {
		f.ReporterID = p.UserID
	}
	return e.list(ctx, f)
}

func (e Engine) ListMine(ctx context.Context, p Principal) ([]domain.Issue, error) {
	return e.list(ctx, repo.IssueFilters{ReporterID: p.UserID})
}

// ListAssigned returns issues held by the calling worker or admin.
func (e Engine) ListAssigned(ctx context.Context, p Principal) ([]domain.Issue, error) {
	if err := p.require(auth.PermIssueWork, "Only workers can view assigned issues"); err != nil {
		return nil, err
	}
	return e.list(ctx, repo.IssueFilters{AssigneeID: p.UserID})
}

func (e Engine) Workers(ctx context.Context, p Principal) ([]domain.Worker, error) {
	if err := p.require(auth.PermWorkerList, "Only admins and secretaries can view workers"); err != nil {
		return nil, err
	}
	return e.Repo.ListAssignable(ctx)
}

func (e Engine) Categories(ctx context.Context) ([]domain.Category, error) {
	return e.Repo.ListCategories(ctx)
}

func (e Engine) Notifications(ctx context.Context, p Principal) ([]domain.Notification, error) {
	return e.Repo.ListNotifications(ctx, p.UserID, 0)
}

// Assign hands a new issue to a worker or admin and notifies both parties.
func (e Engine) Assign(ctx context.Context, p Principal, issueID string, workerID int64, status string) (AssignResult, error) {
	if err := p.require(auth.PermIssueAssign, "Only admins and secretaries can assign issues"); err != nil {
		return AssignResult{}, err
	}
	if workerID <= 0 {
		return AssignResult{}, ValidationError{Field: "worker_id", Message: "worker_id is required"}
	}
	if status != "" && domain.Status(status) != domain.StatusAssigned {
		return AssignResult{}, ValidationError{Field: "status", Message: "Invalid status"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return AssignResult{}, err
	}
	defer tx.Rollback()
	row, err := e.Repo.GetIssue(ctx, tx, issueID)
	if errors.Is(err, repo.ErrNotFound) {
		return AssignResult{}, NotFoundError{What: "Issue"}
	}
	if err != nil {
		return AssignResult{}, err
	}
	next, err := lifecycle.Fire(row.Status, lifecycle.EventAssign, lifecycle.Guard{WorkerID: workerID})
	if err != nil {
		return AssignResult{}, err
	}
	worker, err := e.Repo.GetUser(ctx, tx, workerID)
	if errors.Is(err, repo.ErrNotFound) {
		return AssignResult{}, NotFoundError{What: "Worker"}
	}
	if err != nil {
		return AssignResult{}, err
	}
	wprof, err := e.Repo.GetProfile(ctx, tx, workerID)
	if errors.Is(err, repo.ErrNotFound) {
		return AssignResult{}, NotFoundError{What: "Worker profile"}
	}
	if err != nil {
		return AssignResult{}, err
	}
	if !wprof.Role.Assignable() {
		return AssignResult{}, ValidationError{Field: "worker_id", Message: "Can only assign to workers or admins"}
	}
	row.Status = next
	row.AssignedToID = &worker.ID
	row.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateIssueState(ctx, tx, row); err != nil {
		return AssignResult{}, wrapTx("update issue", err)
	}
	if err := e.Events.Append(ctx, tx, worker.ID, row.ID, events.TypeIssueAssigned,
		fmt.Sprintf("You have been assigned issue: %s", row.Title)); err != nil {
		return AssignResult{}, err
	}
	if err := e.Events.Append(ctx, tx, row.ReporterID, row.ID, events.TypeIssueAssigned,
		fmt.Sprintf("Your issue '%s' has been assigned to %s", row.Title, worker.FullName())); err != nil {
		return AssignResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return AssignResult{}, err
	}
	e.Log.Info().Str("issue_id", row.ID).Int64("worker", worker.ID).Int64("by", p.UserID).Msg("issue assigned")
	return AssignResult{
		Status: "Issue assigned successfully",
		AssignedTo: domain.Worker{
			ID:       worker.ID,
			Username: worker.Username,
			Email:    worker.Email,
			FullName: worker.FullName(),
			Role:     wprof.Role,
		},
		IssueStatus: next,
		IssueID:     row.ID,
	}, nil
}

// UpdateStatus moves an issue along the lifecycle. Resolving stores photos as
// completion evidence and needs at least one.
func (e Engine) UpdateStatus(ctx context.Context, p Principal, issueID, status string, photos []Upload) (string, error) {
	to := domain.Status(strings.TrimSpace(status))
	if !to.Known() {
		return "", ValidationError{Field: "status", Message: "Invalid status"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()
	row, err := e.Repo.GetIssue(ctx, tx, issueID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", NotFoundError{What: "Issue"}
	}
	if err != nil {
		return "", err
	}
	if !p.Allowed(auth.PermIssueAssign) && !(p.Allowed(auth.PermIssueWork) && heldBy(row, p.UserID)) {
		return "", auth.ForbiddenError{Permission: auth.PermIssueWork, Message: "You can only update issues assigned to you"}
	}
	ev, ok := lifecycle.EventFor(row.Status, to)
	if !ok {
		return "", lifecycle.TransitionError{From: row.Status, Event: eventGuess(to)}
	}
	if ev != lifecycle.EventComplete && len(photos) > 0 {
		return "", ValidationError{Field: "photos", Message: "Photos are only accepted when resolving an issue"}
	}
	existing, err := e.Repo.ListImages(ctx, tx, row.ID, repo.ImageCompletion)
	if err != nil {
		return "", err
	}
	guard := lifecycle.Guard{PhotoCount: len(existing) + len(photos)}
	if row.AssignedToID != nil {
		guard.WorkerID = *row.AssignedToID
	}
	next, err := lifecycle.Fire(row.Status, ev, guard)
	if err != nil {
		return "", err
	}
	var saved []string
	for _, ph := range photos {
		rel, err := e.Media.Save(row.ID, ph)
		if err != nil {
			e.Media.Remove(saved...)
			return "", err
		}
		saved = append(saved, rel)
	}
	now := e.stamp()
	for _, rel := range saved {
		if _, err := e.Repo.InsertImage(ctx, tx, row.ID, repo.ImageCompletion, rel, now); err != nil {
			e.Media.Remove(saved...)
			return "", wrapTx("insert photo", err)
		}
	}
	row.Status = next
	row.UpdatedAt = now
	if next == domain.StatusResolved {
		row.ResolvedAt = &now
	}
	if next == domain.StatusClosed {
		row.AssignedToID = nil
	}
	if err := e.Repo.UpdateIssueState(ctx, tx, row); err != nil {
		e.Media.Remove(saved...)
		return "", wrapTx("update issue", err)
	}
	if err := e.Events.Append(ctx, tx, row.ReporterID, row.ID, events.TypeForStatus(next),
		fmt.Sprintf("Your issue '%s' status changed to %s", row.Title, next)); err != nil {
		e.Media.Remove(saved...)
		return "", err
	}
	if err := tx.Commit(); err != nil {
		e.Media.Remove(saved...)
		return "", err
	}
	e.Log.Info().Str("issue_id", row.ID).Str("status", string(next)).Int("photos", len(saved)).Int64("by", p.UserID).Msg("issue status updated")
	return fmt.Sprintf("Issue status updated to %s", next), nil
}

func (e Engine) list(ctx context.Context, f repo.IssueFilters) ([]domain.Issue, error) {
	rows, err := e.Repo.ListIssues(ctx, f)
	if err != nil {
		return nil, err
	}
	users := map[int64]repo.User{}
	out := make([]domain.Issue, 0, len(rows))
	for _, row := range rows {
		issue, err := e.hydrate(ctx, nil, row, users)
		if err != nil {
			return nil, err
		}
		out = append(out, issue)
	}
	return out, nil
}

// hydrate expands user ids and image rows into the wire shape. users caches
// lookups across a list.
func (e Engine) hydrate(ctx context.Context, tx *sql.Tx, row repo.IssueRow, users map[int64]repo.User) (domain.Issue, error) {
	lookup := func(id int64) (repo.User, error) {
		if u, ok := users[id]; ok {
			return u, nil
		}
		u, err := e.Repo.GetUser(ctx, tx, id)
		if err != nil {
			return u, err
		}
		users[id] = u
		return u, nil
	}
	issue := domain.Issue{
		ID:               row.ID,
		Title:            row.Title,
		Description:      row.Description,
		Category:         row.CategoryID,
		CategoryName:     row.CategoryName,
		Priority:         row.Priority,
		Status:           row.Status,
		Latitude:         row.Latitude,
		Longitude:        row.Longitude,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
		ResolvedAt:       row.ResolvedAt,
		CompletionPhotos: []string{},
	}
	reporter, err := lookup(row.ReporterID)
	if err != nil {
		return issue, fmt.Errorf("reporter of %s: %w", row.ID, err)
	}
	issue.Reporter = userRef(reporter)
	if row.AssignedToID != nil {
		assignee, err := lookup(*row.AssignedToID)
		if err != nil {
			return issue, fmt.Errorf("assignee of %s: %w", row.ID, err)
		}
		issue.AssignedTo = userRef(assignee)
	}
	images, err := e.Repo.ListImages(ctx, tx, row.ID, repo.ImageReport)
	if err != nil {
		return issue, err
	}
	for i := range images {
		images[i].Image = e.Media.URL(images[i].Image)
	}
	issue.Images = images
	if row.Status != domain.StatusResolved {
		// evidence rows are kept; only resolved issues show them
		return issue, nil
	}
	photos, err := e.Repo.ListImages(ctx, tx, row.ID, repo.ImageCompletion)
	if err != nil {
		return issue, err
	}
	for _, ph := range photos {
		issue.CompletionPhotos = append(issue.CompletionPhotos, e.Media.URL(ph.Image))
	}
	return issue, nil
}

func heldBy(row repo.IssueRow, userID int64) bool {
	return row.AssignedToID != nil && *row.AssignedToID == userID
}

// eventGuess names the event that would normally lead to to, for error text.
func eventGuess(to domain.Status) lifecycle.Event {
	switch to {
	case domain.StatusAssigned:
		return lifecycle.EventAssign
	case domain.StatusInProgress:
		return lifecycle.EventStart
	case domain.StatusResolved:
		return lifecycle.EventComplete
	case domain.StatusClosed:
		return lifecycle.EventClose
	}
	return lifecycle.Event("move to " + string(to))
}

func validCoord(s string, limit float64) bool {
	v, err := strconv.ParseFloat(s, 64)
	return err == nil && v >= -limit && v <= limit
}
