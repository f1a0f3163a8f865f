package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"meridian/internal/engine"
	"meridian/internal/rag"
	"meridian/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_configured"`
	Message string         `json:"message" example:"workstream has not been configured"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"field\":\"profile\"}"`
}

type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type bodyOutput[T any] struct {
	Body T `json:"body"`
}

func ok[T any](v T) *bodyOutput[T] { return &bodyOutput[T]{Body: v} }

// New returns an HTTP handler exposing the Meridian API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors are 400 bad_request.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestMetrics(cfg.Engine))
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	if cfg.Engine.Metrics != nil {
		router.Handle("/metrics", cfg.Engine.Metrics.Handler())
	}

	hcfg := huma.DefaultConfig("Meridian API", "0.1.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerWizard(group)
	registerWorkstreams(group, cfg.Engine)
	registerMilestones(group, cfg.Engine)
	registerSpend(group, cfg.Engine)
	registerBlockers(group, cfg.Engine)
	registerScores(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	var ce *rag.ConfigurationError
	if errors.As(err, &ce) {
		details := map[string]any{"field": ce.Field}
		if ce.Value != "" {
			details["value"] = ce.Value
		}
		return newAPIError(http.StatusUnprocessableEntity, "not_configured", err.Error(), details)
	}
	var ie *rag.InputError
	if errors.As(err, &ie) {
		return newAPIError(http.StatusUnprocessableEntity, "invalid_input", err.Error(), map[string]any{"field": ie.Field})
	}
	var ve *engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": ve.Field})
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newAPIError(http.StatusServiceUnavailable, "unavailable", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "invalid_input"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func requestMetrics(e engine.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			e.Metrics.RecordRequest(r.Method, strconv.Itoa(status))
		})
	}
}

func bodyBytes(ctx context.Context) []byte {
	if b, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return b
	}
	return nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"}},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join("/", basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Meridian API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

var commonErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusNotFound,
	http.StatusUnprocessableEntity,
	http.StatusInternalServerError,
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*bodyOutput[map[string]string], error) {
		return ok(map[string]string{"status": "ok"}), nil
	})
}

func registerWizard(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "wizard-questions",
		Method:      http.MethodGet,
		Path:        "/wizard",
		Summary:     "Scoring wizard questions and allowed answers",
	}, func(ctx context.Context, _ *struct{}) (*bodyOutput[[]QuestionResponse], error) {
		out := make([]QuestionResponse, 0, len(rag.Questions))
		for _, q := range rag.Questions {
			out = append(out, QuestionResponse{Field: q.Field, Choices: q.Choices})
		}
		return ok(out), nil
	})
}

type workstreamPath struct {
	WorkstreamID string `path:"workstream_id"`
}

func registerWorkstreams(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-workstream",
		Method:        http.MethodPost,
		Path:          "/workstreams",
		Summary:       "Create workstream",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateWorkstreamRequest `json:"body"`
	}) (*bodyOutput[WorkstreamResponse], error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.WorkstreamCreateOptions{
			Name:          input.Body.Name,
			Description:   deref(input.Body.Description),
			StartDate:     input.Body.StartDate,
			EndDate:       input.Body.EndDate,
			PlannedBudget: input.Body.PlannedBudget,
			ActorID:       actorID,
		}
		if input.Body.Profile != nil {
			p := input.Body.Profile.toProfile()
			opts.Profile = &p
		}
		w, err := e.CreateWorkstream(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(workstreamResponse(w)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-workstreams",
		Method:      http.MethodGet,
		Path:        "/workstreams",
		Summary:     "List workstreams",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		IncludeArchived bool   `query:"include_archived"`
		Phase           string `query:"phase"`
	}) (*bodyOutput[[]WorkstreamResponse], error) {
		items, err := e.Repo.ListWorkstreams(ctx, repo.WorkstreamFilters{IncludeArchived: input.IncludeArchived, Phase: input.Phase})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(mapWorkstreams(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-workstream",
		Method:      http.MethodGet,
		Path:        "/workstreams/{workstream_id}",
		Summary:     "Get workstream with its profile, score and inputs",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *workstreamPath) (*bodyOutput[engine.WorkstreamDetail], error) {
		d, err := e.DescribeWorkstream(ctx, input.WorkstreamID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(d), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-workstream",
		Method:      http.MethodPatch,
		Path:        "/workstreams/{workstream_id}",
		Summary:     "Update workstream",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		WorkstreamID string                  `path:"workstream_id"`
		Body         UpdateWorkstreamRequest `json:"body"`
	}) (*bodyOutput[WorkstreamResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		w, err := e.UpdateWorkstream(ctx, engine.WorkstreamUpdateOptions{
			ID:            input.WorkstreamID,
			Name:          input.Body.Name,
			Description:   input.Body.Description,
			StartDate:     input.Body.StartDate,
			EndDate:       input.Body.EndDate,
			PlannedBudget: input.Body.PlannedBudget,
			ClearBudget:   input.Body.ClearBudget,
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(workstreamResponse(w)), nil
	})

	for _, archived := range []bool{true, false} {
		op, summary := "archive-workstream", "Archive workstream"
		if !archived {
			op, summary = "restore-workstream", "Restore archived workstream"
		}
		huma.Register(api, huma.Operation{
			OperationID: op,
			Method:      http.MethodPost,
			Path:        "/workstreams/{workstream_id}/" + strings.TrimSuffix(op, "-workstream"),
			Summary:     summary,
			Errors:      []int{http.StatusNotFound},
		}, func(ctx context.Context, input *workstreamPath) (*bodyOutput[WorkstreamResponse], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			w, err := e.ArchiveWorkstream(ctx, input.WorkstreamID, archived, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(workstreamResponse(w)), nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "set-profile",
		Method:      http.MethodPut,
		Path:        "/workstreams/{workstream_id}/profile",
		Summary:     "Configure the scoring wizard answers",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		WorkstreamID string         `path:"workstream_id"`
		Body         ProfileRequest `json:"body"`
	}) (*bodyOutput[ProfileResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.SetProfile(ctx, input.WorkstreamID, input.Body.toProfile(), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(profileResponse(p)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-profile",
		Method:      http.MethodGet,
		Path:        "/workstreams/{workstream_id}/profile",
		Summary:     "Get the scoring wizard answers",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *workstreamPath) (*bodyOutput[ProfileResponse], error) {
		p, err := e.Repo.GetProfile(ctx, input.WorkstreamID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(profileResponse(p)), nil
	})
}

func registerMilestones(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-milestone",
		Method:        http.MethodPost,
		Path:          "/workstreams/{workstream_id}/milestones",
		Summary:       "Add milestone",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		WorkstreamID string                 `path:"workstream_id"`
		Body         CreateMilestoneRequest `json:"body"`
	}) (*bodyOutput[MilestoneResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.AddMilestone(ctx, engine.MilestoneCreateOptions{
			WorkstreamID: input.WorkstreamID,
			Name:         input.Body.Name,
			Status:       input.Body.Status,
			DueDate:      input.Body.DueDate,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(milestoneResponse(m)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-milestones",
		Method:      http.MethodGet,
		Path:        "/workstreams/{workstream_id}/milestones",
		Summary:     "List milestones",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *workstreamPath) (*bodyOutput[[]MilestoneResponse], error) {
		if _, err := e.Repo.GetWorkstream(ctx, input.WorkstreamID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListMilestones(ctx, input.WorkstreamID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]MilestoneResponse, 0, len(items))
		for _, m := range items {
			out = append(out, milestoneResponse(m))
		}
		return ok(out), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-milestone",
		Method:      http.MethodPatch,
		Path:        "/milestones/{milestone_id}",
		Summary:     "Update milestone",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		MilestoneID string                 `path:"milestone_id"`
		Body        UpdateMilestoneRequest `json:"body"`
	}) (*bodyOutput[MilestoneResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.UpdateMilestone(ctx, engine.MilestoneUpdateOptions{
			ID:      input.MilestoneID,
			Name:    input.Body.Name,
			Status:  input.Body.Status,
			DueDate: input.Body.DueDate,
			ActorID: actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(milestoneResponse(m)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-milestone",
		Method:        http.MethodDelete,
		Path:          "/milestones/{milestone_id}",
		Summary:       "Delete milestone",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MilestoneID string `path:"milestone_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteMilestone(ctx, input.MilestoneID, actorID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "overdue-milestones",
		Method:      http.MethodGet,
		Path:        "/milestones/overdue",
		Summary:     "Incomplete milestones past their due date",
	}, func(ctx context.Context, _ *struct{}) (*bodyOutput[[]OverdueMilestoneResponse], error) {
		items, err := e.Overdue(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]OverdueMilestoneResponse, 0, len(items))
		for _, o := range items {
			out = append(out, OverdueMilestoneResponse{
				Milestone:      milestoneResponse(o.Milestone),
				WorkstreamName: o.WorkstreamName,
				DaysOverdue:    o.DaysOverdue,
			})
		}
		return ok(out), nil
	})
}

func registerSpend(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-spend",
		Method:        http.MethodPost,
		Path:          "/workstreams/{workstream_id}/spend",
		Summary:       "Record spend",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		WorkstreamID string             `path:"workstream_id"`
		Body         CreateSpendRequest `json:"body"`
	}) (*bodyOutput[SpendResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.AddSpend(ctx, engine.SpendCreateOptions{
			WorkstreamID: input.WorkstreamID,
			Amount:       input.Body.Amount,
			SpentOn:      deref(input.Body.SpentOn),
			Note:         deref(input.Body.Note),
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(spendResponse(s)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-spend",
		Method:      http.MethodGet,
		Path:        "/workstreams/{workstream_id}/spend",
		Summary:     "List spend entries",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *workstreamPath) (*bodyOutput[[]SpendResponse], error) {
		if _, err := e.Repo.GetWorkstream(ctx, input.WorkstreamID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListSpend(ctx, input.WorkstreamID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]SpendResponse, 0, len(items))
		for _, s := range items {
			out = append(out, spendResponse(s))
		}
		return ok(out), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-spend",
		Method:        http.MethodDelete,
		Path:          "/spend/{spend_id}",
		Summary:       "Delete spend entry",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SpendID string `path:"spend_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteSpend(ctx, input.SpendID, actorID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerBlockers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "raise-blocker",
		Method:        http.MethodPost,
		Path:          "/workstreams/{workstream_id}/blockers",
		Summary:       "Raise blocker",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		WorkstreamID string               `path:"workstream_id"`
		Body         CreateBlockerRequest `json:"body"`
	}) (*bodyOutput[BlockerResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.RaiseBlocker(ctx, engine.BlockerCreateOptions{
			WorkstreamID: input.WorkstreamID,
			Description:  input.Body.Description,
			DateRaised:   deref(input.Body.DateRaised),
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(blockerResponse(b)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-blockers",
		Method:      http.MethodGet,
		Path:        "/workstreams/{workstream_id}/blockers",
		Summary:     "List blockers",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkstreamID string `path:"workstream_id"`
		Status       string `query:"status" enum:"open,resolved"`
	}) (*bodyOutput[[]BlockerResponse], error) {
		if _, err := e.Repo.GetWorkstream(ctx, input.WorkstreamID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListBlockers(ctx, input.WorkstreamID, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]BlockerResponse, 0, len(items))
		for _, b := range items {
			out = append(out, blockerResponse(b))
		}
		return ok(out), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-blocker",
		Method:      http.MethodPost,
		Path:        "/blockers/{blocker_id}/resolve",
		Summary:     "Resolve blocker",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		BlockerID string `path:"blocker_id"`
	}) (*bodyOutput[BlockerResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.ResolveBlocker(ctx, input.BlockerID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(blockerResponse(b)), nil
	})
}

func registerScores(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-score",
		Method:      http.MethodGet,
		Path:        "/workstreams/{workstream_id}/score",
		Summary:     "Current RAG score",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *workstreamPath) (*bodyOutput[ScoreResponse], error) {
		s, err := e.Repo.GetScore(ctx, input.WorkstreamID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(scoreResponse(s)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "recalculate-score",
		Method:      http.MethodPost,
		Path:        "/workstreams/{workstream_id}/score/recalculate",
		Summary:     "Recalculate the RAG score now",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *workstreamPath) (*bodyOutput[ScoreResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.Recalculate(ctx, input.WorkstreamID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(scoreResponse(s)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "score-history",
		Method:      http.MethodGet,
		Path:        "/workstreams/{workstream_id}/history",
		Summary:     "Score history, oldest first",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkstreamID string `path:"workstream_id"`
		Since        string `query:"since" doc:"YYYY-MM-DD"`
		Limit        int    `query:"limit" minimum:"0"`
	}) (*bodyOutput[[]SnapshotResponse], error) {
		items, err := e.History(ctx, input.WorkstreamID, input.Since, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]SnapshotResponse, 0, len(items))
		for _, s := range items {
			out = append(out, snapshotResponse(s))
		}
		return ok(out), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "portfolio",
		Method:      http.MethodGet,
		Path:        "/portfolio",
		Summary:     "Active workstreams, red first, with summary counts",
	}, func(ctx context.Context, _ *struct{}) (*bodyOutput[PortfolioResponse], error) {
		view, err := e.Portfolio(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(portfolioResponse(view)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sweep",
		Method:      http.MethodPost,
		Path:        "/sweep",
		Summary:     "Recalculate every active workstream",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*bodyOutput[engine.SweepResult], error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		res, err := e.Sweep(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(res), nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Latest audit events, newest first",
	}, func(ctx context.Context, input *struct {
		Limit        int    `query:"limit" minimum:"0" maximum:"500"`
		WorkstreamID string `query:"workstream_id"`
		Type         string `query:"type"`
	}) (*bodyOutput[[]EventResponse], error) {
		items, err := e.Repo.LatestEvents(ctx, input.Limit, input.WorkstreamID, input.Type)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]EventResponse, 0, len(items))
		for _, evt := range items {
			out = append(out, eventResponse(evt))
		}
		return ok(out), nil
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
