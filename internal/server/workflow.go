package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/engine"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/repo"
)

type entityBody struct {
	Body domain.Entity `json:"body"`
}

func (h handlers) registerMachines(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-machines",
		Method:      http.MethodGet,
		Path:        "/machines",
		Summary:     "List state machines",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []engine.MachineInfo `json:"body"`
	}, error) {
		return &struct {
			Body []engine.MachineInfo `json:"body"`
		}{Body: nonNilSlice(h.e.MachineInfos())}, nil
	})
}

func (h handlers) registerEntities(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-entity",
		Method:        http.MethodPost,
		Path:          "/entities",
		Summary:       "Create entity",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateEntityRequest `json:"body"`
	}) (*entityBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ent, err := h.e.CreateEntity(ctx, input.Body.options(actorID))
		if err != nil {
			return nil, h.handleError(err)
		}
		return &entityBody{Body: ent}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-entities",
		Method:      http.MethodGet,
		Path:        "/entities",
		Summary:     "List entities",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type      string `query:"type"`
		ProjectID string `query:"project_id"`
		Status    string `query:"status"`
		OwnerID   string `query:"owner_id"`
		Limit     int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.Entity `json:"body"`
	}, error) {
		items, err := h.e.ListEntities(ctx, repo.EntityFilters{
			Type:      domain.EntityType(input.Type),
			ProjectID: input.ProjectID,
			Status:    domain.Status(input.Status),
			OwnerID:   input.OwnerID,
			Limit:     normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body []domain.Entity `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-entity",
		Method:      http.MethodGet,
		Path:        "/entities/{id}",
		Summary:     "Get entity",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*entityBody, error) {
		ent, err := h.e.GetEntity(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &entityBody{Body: ent}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-entity-fields",
		Method:      http.MethodPatch,
		Path:        "/entities/{id}/fields",
		Summary:     "Merge entity fields",
		Description: "Keys set to null are removed. status is not writable here.",
		Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body map[string]any `json:"body" jsonschema:"type=object,additionalProperties=true"`
	}) (*entityBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ent, err := h.e.UpdateFields(ctx, input.ID, input.Body, actorID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &entityBody{Body: ent}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-entity",
		Method:      http.MethodPost,
		Path:        "/entities/{id}/transition",
		Summary:     "Change entity status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body TransitionRequest `json:"body"`
	}) (*entityBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		typ := domain.EntityType(input.Body.Type)
		if typ == "" {
			current, err := h.e.GetEntity(ctx, input.ID)
			if err != nil {
				return nil, h.handleError(err)
			}
			typ = current.Type
		}
		ent, err := h.e.Transition(ctx, typ, input.ID, domain.Status(input.Body.To), actorID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &entityBody{Body: ent}, nil
	})
}

func (h handlers) registerPlaybooks(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-playbooks",
		Method:      http.MethodGet,
		Path:        "/playbooks",
		Summary:     "List playbooks",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Playbook `json:"body"`
	}, error) {
		return &struct {
			Body []domain.Playbook `json:"body"`
		}{Body: nonNilSlice(h.e.Playbooks())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "apply-playbook",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/playbook",
		Summary:       "Apply a playbook to a project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      ApplyPlaybookRequest `json:"body"`
	}) (*struct {
		Body engine.PlaybookResult `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := h.e.ApplyPlaybook(ctx, input.ProjectID, input.Body.Playbook, actorID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body engine.PlaybookResult `json:"body"`
		}{Body: res}, nil
	})
}

func (h handlers) registerVersions(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-version",
		Method:        http.MethodPost,
		Path:          "/deliverables/{id}/versions",
		Summary:       "Submit a deliverable version for approval",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body SubmitVersionRequest `json:"body" required:"false"`
	}) (*struct {
		Body domain.DeliverableVersion `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		v, err := h.e.SubmitVersion(ctx, input.ID, input.Body.Description, actorID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body domain.DeliverableVersion `json:"body"`
		}{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-version",
		Method:      http.MethodPost,
		Path:        "/deliverables/{id}/versions/{code}/approve",
		Summary:     "Approve a deliverable version",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Code string `path:"code"`
	}) (*entityBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ent, err := h.e.ApproveVersion(ctx, input.ID, input.Code, actorID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &entityBody{Body: ent}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "request-revision",
		Method:      http.MethodPost,
		Path:        "/deliverables/{id}/versions/{code}/revision",
		Summary:     "Request a revision of a deliverable version",
		Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Code string          `path:"code"`
		Body RevisionRequest `json:"body"`
	}) (*entityBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ent, err := h.e.RequestRevision(ctx, input.ID, input.Code, input.Body.Reason, actorID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &entityBody{Body: ent}, nil
	})
}

func (h handlers) registerDecisions(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-decision-task",
		Method:        http.MethodPost,
		Path:          "/decisions/{id}/tasks",
		Summary:       "Create a task from a decision",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body DecisionTaskRequest `json:"body"`
	}) (*entityBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		task, err := h.e.CreateTaskFromDecision(ctx, input.ID, input.Body.fields(), actorID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &entityBody{Body: task}, nil
	})
}
