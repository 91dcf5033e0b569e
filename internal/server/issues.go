package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"flatconnect/internal/domain"
	"flatconnect/internal/engine"
)

type issueListOutput struct {
	Body []domain.Issue `json:"body"`
}

// issuePageOutput is the {count, results} envelope.
type issuePageOutput struct {
	Body struct {
		Count   int            `json:"count"`
		Results []domain.Issue `json:"results"`
	} `json:"body"`
}

type issueIDInput struct {
	ID string `path:"id"`
}

type workersOutput struct {
	Body struct {
		Count   int             `json:"count"`
		Workers []domain.Worker `json:"workers"`
	} `json:"body"`
}

type assignInput struct {
	ID   string `path:"id"`
	Body struct {
		WorkerID int64  `json:"worker_id,omitempty"`
		Status   string `json:"status,omitempty"`
	}
}

type listFunc func(context.Context, engine.Principal) ([]domain.Issue, error)

func registerIssues(api huma.API, s *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "issues-list",
		Method:      http.MethodGet,
		Path:        "/issues/",
		Summary:     "Issues visible to the caller",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*issueListOutput, error) {
		p, herr := principalFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		issues, err := s.engine.ListAll(ctx, p)
		if err != nil {
			return nil, s.handleError(ctx, err)
		}
		return &issueListOutput{Body: issues}, nil
	})

	pages := []struct {
		id, path, summary string
		fn                listFunc
	}{
		{"issues-mine", "/issues/my/", "Issues the caller reported", s.engine.ListMine},
		{"issues-assigned", "/issues/assigned/", "Issues assigned to the caller", s.engine.ListAssigned},
	}
	for _, l := range pages {
		fn := l.fn
		huma.Register(api, huma.Operation{
			OperationID: l.id,
			Method:      http.MethodGet,
			Path:        l.path,
			Summary:     l.summary,
			Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
		}, func(ctx context.Context, _ *struct{}) (*issuePageOutput, error) {
			p, herr := principalFromContext(ctx)
			if herr != nil {
				return nil, herr
			}
			issues, err := fn(ctx, p)
			if err != nil {
				return nil, s.handleError(ctx, err)
			}
			out := &issuePageOutput{}
			out.Body.Count = len(issues)
			out.Body.Results = issues
			return out, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "workers-list",
		Method:      http.MethodGet,
		Path:        "/issues/workers/",
		Summary:     "Users an issue can be assigned to",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*workersOutput, error) {
		p, herr := principalFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		workers, err := s.engine.Workers(ctx, p)
		if err != nil {
			return nil, s.handleError(ctx, err)
		}
		out := &workersOutput{}
		out.Body.Count = len(workers)
		out.Body.Workers = workers
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "categories-list",
		Method:      http.MethodGet,
		Path:        "/issues/categories/",
		Summary:     "Issue categories",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Category `json:"body"`
	}, error) {
		cats, err := s.engine.Categories(ctx)
		if err != nil {
			return nil, s.handleError(ctx, err)
		}
		return &struct {
			Body []domain.Category `json:"body"`
		}{Body: cats}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "notifications-list",
		Method:      http.MethodGet,
		Path:        "/issues/notifications/",
		Summary:     "The caller's notifications, newest first",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Notification `json:"body"`
	}, error) {
		p, herr := principalFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		notes, err := s.engine.Notifications(ctx, p)
		if err != nil {
			return nil, s.handleError(ctx, err)
		}
		return &struct {
			Body []domain.Notification `json:"body"`
		}{Body: notes}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "issue-get",
		Method:      http.MethodGet,
		Path:        "/issues/{id}/",
		Summary:     "One issue",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, in *issueIDInput) (*struct {
		Body domain.Issue `json:"body"`
	}, error) {
		p, herr := principalFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		issue, err := s.engine.Issue(ctx, p, in.ID)
		if err != nil {
			return nil, s.handleError(ctx, err)
		}
		return &struct {
			Body domain.Issue `json:"body"`
		}{Body: issue}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "issue-assign",
		Method:      http.MethodPost,
		Path:        "/issues/{id}/assign/",
		Summary:     "Assign a new issue to a worker",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, in *assignInput) (*struct {
		Body engine.AssignResult `json:"body"`
	}, error) {
		p, herr := principalFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		res, err := s.engine.Assign(ctx, p, in.ID, in.Body.WorkerID, in.Body.Status)
		if err != nil {
			return nil, s.handleError(ctx, err)
		}
		return &struct {
			Body engine.AssignResult `json:"body"`
		}{Body: res}, nil
	})
}
