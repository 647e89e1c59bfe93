package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"controlroom/internal/analytics"
	"controlroom/internal/domain"
	"controlroom/internal/engine"
	"controlroom/internal/engine/auth"
	"controlroom/internal/repo"
	"controlroom/internal/scheduler"
)

// Refresher runs one refresh pass on demand.
type Refresher interface {
	RefreshNow(ctx context.Context) (scheduler.Outcome, error)
}

// Optimizer triggers a remote network optimization run.
type Optimizer interface {
	RunNetworkOptimization(ctx context.Context, objective string) (analytics.OptimizationResult, error)
}

// Config for the HTTP API handler.
type Config struct {
	Engine    engine.Engine
	Refresher Refresher
	Optimizer Optimizer
	BasePath  string
	Auth      AuthConfig
	Logger    *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"invalid decision transition proposed -> executing"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"from\":\"proposed\",\"to\":\"executing\"}"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type response[T any] struct {
	Body T
}

func reply[T any](v T) *response[T] {
	return &response[T]{Body: v}
}

// service carries what every operation needs.
type service struct {
	engine    engine.Engine
	perms     auth.Service
	refresher Refresher
	optimizer Optimizer
	authCfg   AuthConfig
	logger    *slog.Logger
}

// New returns an HTTP handler exposing the Control Room API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Request validation failures are client errors; 422 is reserved for blocked approvals.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, err := range errs {
				msgs = append(msgs, err.Error())
			}
			details = map[string]any{"errors": msgs}
		}
		return newAPIError(status, "", msg, details)
	}

	s := &service{
		engine:    cfg.Engine,
		perms:     auth.Service{Repo: cfg.Engine.Repo, Config: cfg.Engine.Config},
		refresher: cfg.Refresher,
		optimizer: cfg.Optimizer,
		authCfg:   cfg.Auth,
		logger:    logger,
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo, logger))
	hcfg := huma.DefaultConfig("Control Room API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	router.Handle("/metrics", promhttp.Handler())
	registerHealth(group)
	s.registerDecisions(group)
	s.registerAlerts(group)
	s.registerLog(group)
	s.registerOutcomes(group)
	s.registerOverview(group)
	s.registerRefresh(group)
	s.registerOptimizer(group)
	s.registerMe(group)
	s.registerAPIKeys(group)
	s.registerDevAuth(group)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)))
		})
	}
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

func (s *service) handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"permission": fe.Permission})
	}
	var be engine.BlockedError
	if errors.As(err, &be) {
		return newAPIError(http.StatusUnprocessableEntity, "blocked", err.Error(), map[string]any{
			"decision_id": be.DecisionID,
			"domains":     be.Domains,
		})
	}
	var te engine.TransitionError
	if errors.As(err, &te) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{"from": te.From, "to": te.To})
	}
	var ae *analytics.APIError
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, engine.ErrConflict), errors.Is(err, engine.ErrStale), errors.Is(err, engine.ErrNotAcknowledged):
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, domain.ErrUnknownValue):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	case errors.As(err, &ae):
		return newAPIError(http.StatusBadGateway, "upstream_error", err.Error(), map[string]any{"status": ae.StatusCode})
	}
	s.logger.Error("request failed", slog.Any("err", err))
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
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "blocked"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// require checks token-carried permissions first, then role grants stored for the actor.
// API keys resolve their roles at authentication and never widen past the key scope.
func (s *service) require(ctx context.Context, perm string) error {
	principal, authErr := principalFromRequest(ctx)
	if authErr != nil {
		return authErr
	}
	if auth.HasPermission(principal.Permissions, perm) {
		return nil
	}
	if len(principal.Roles) > 0 && s.perms.Config != nil {
		if auth.HasPermission(s.perms.Config.RolePermissions(principal.Roles), perm) {
			return nil
		}
	}
	if principal.Source == sourceAPIKey {
		return auth.ForbiddenError{Permission: perm}
	}
	return s.perms.Require(ctx, principal.ActorID, perm)
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil || oas.Components == nil || oas.Components.Schemas == nil {
		return
	}
	errSchema := oas.Components.Schemas.Schema(reflect.TypeOf(apiError{}), true, "ApiError")
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {Schema: errSchema},
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
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	public := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "auth/dev/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if public[route] {
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
    <title>Control Room API Docs</title>
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
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*response[map[string]string], error) {
		return reply(map[string]string{"status": "ok"}), nil
	})
}

var actionStatus = map[string]domain.Status{
	"simulate": domain.StatusSimulated,
	"approve":  domain.StatusApproved,
	"reject":   domain.StatusRejected,
	"execute":  domain.StatusExecuting,
	"complete": domain.StatusCompleted,
	"rollback": domain.StatusRolledBack,
}

var actionPermission = map[string]string{
	"simulate": auth.PermDecisionSimulate,
	"approve":  auth.PermDecisionApprove,
	"reject":   auth.PermDecisionApprove,
	"execute":  auth.PermDecisionExecute,
	"complete": auth.PermDecisionExecute,
	"rollback": auth.PermDecisionExecute,
}

func (s *service) registerDecisions(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-decisions",
		Method:      http.MethodGet,
		Path:        "/decisions",
		Summary:     "List decisions",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status" doc:"Comma-separated statuses"`
		Category string `query:"category"`
		Priority string `query:"priority"`
		Limit    int    `query:"limit" default:"50"`
		Offset   int    `query:"offset"`
	}) (*response[paginatedDecisions], error) {
		if err := s.require(ctx, auth.PermDecisionRead); err != nil {
			return nil, s.handleError(err)
		}
		var f repo.DecisionFilters
		for _, raw := range splitList(input.Status) {
			st, err := domain.ParseStatus(raw)
			if err != nil {
				return nil, s.handleError(err)
			}
			f.Statuses = append(f.Statuses, st)
		}
		if input.Category != "" {
			c, err := domain.ParseCategory(input.Category)
			if err != nil {
				return nil, s.handleError(err)
			}
			f.Category = c
		}
		if input.Priority != "" {
			p, err := domain.ParsePriority(input.Priority)
			if err != nil {
				return nil, s.handleError(err)
			}
			f.Priority = p
		}
		if input.Offset < 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "offset must be non-negative", nil)
		}
		limit := normalizeLimit(input.Limit)
		f.Limit = limit + 1
		f.Offset = input.Offset
		items, err := s.engine.ListDecisions(ctx, f)
		if err != nil {
			return nil, s.handleError(err)
		}
		resp := paginatedDecisions{Items: nonNilSlice(items)}
		if len(items) > limit {
			next := input.Offset + limit
			resp.NextOffset = &next
			resp.Items = items[:limit]
		}
		return reply(resp), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-decision",
		Method:      http.MethodGet,
		Path:        "/decisions/{id}",
		Summary:     "Get decision",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*response[domain.Decision], error) {
		if err := s.require(ctx, auth.PermDecisionRead); err != nil {
			return nil, s.handleError(err)
		}
		d, err := s.engine.GetDecision(ctx, input.ID)
		if err != nil {
			return nil, s.handleError(err)
		}
		return reply(d), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-decision",
		Method:      http.MethodPost,
		Path:        "/decisions/{id}/{action}",
		Summary:     "Move a decision through its lifecycle",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID     string             `path:"id"`
		Action string             `path:"action" enum:"simulate,approve,reject,execute,complete,rollback"`
		Body   *TransitionRequest `required:"false"`
	}) (*response[domain.Decision], error) {
		to, ok := actionStatus[input.Action]
		if !ok {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "unknown action", map[string]any{"action": input.Action})
		}
		if err := s.require(ctx, actionPermission[input.Action]); err != nil {
			return nil, s.handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.TransitionOptions{DecisionID: input.ID, To: to, ActorID: actorID}
		if input.Body != nil {
			opts.Version = input.Body.Version
			opts.Note = input.Body.Note
		}
		d, err := s.engine.Transition(ctx, opts)
		if err != nil {
			return nil, s.handleError(err)
		}
		return reply(d), nil
	})
}

var alertActionPermission = map[domain.AlertActionType]string{
	domain.ActionApprove:  auth.PermDecisionApprove,
	domain.ActionReject:   auth.PermDecisionApprove,
	domain.ActionSimulate: auth.PermDecisionSimulate,
}

func (s *service) registerAlerts(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-alerts",
		Method:      http.MethodGet,
		Path:        "/alerts",
		Summary:     "List alerts",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Severity         string `query:"severity" doc:"critical, warning or info"`
		IncludeDismissed bool   `query:"include_dismissed"`
	}) (*response[[]domain.Alert], error) {
		if err := s.require(ctx, auth.PermDecisionRead); err != nil {
			return nil, s.handleError(err)
		}
		f := repo.AlertFilters{IncludeDismissed: input.IncludeDismissed}
		if input.Severity != "" {
			sev, err := domain.ParseAlertSeverity(input.Severity)
			if err != nil {
				return nil, s.handleError(err)
			}
			f.Severity = sev
		}
		items, err := s.engine.ListAlerts(ctx, f)
		if err != nil {
			return nil, s.handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "acknowledge-alert",
		Method:      http.MethodPost,
		Path:        "/alerts/{id}/acknowledge",
		Summary:     "Acknowledge alert",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*response[domain.Alert], error) {
		if err := s.require(ctx, auth.PermAlertManage); err != nil {
			return nil, s.handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := s.engine.AcknowledgeAlert(ctx, input.ID, actorID)
		if err != nil {
			return nil, s.handleError(err)
		}
		return reply(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "act-on-alert",
		Method:      http.MethodPost,
		Path:        "/alerts/{id}/actions",
		Summary:     "Run an alert action",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body AlertActionRequest
	}) (*response[engine.AlertActionResult], error) {
		if err := s.require(ctx, auth.PermAlertManage); err != nil {
			return nil, s.handleError(err)
		}
		if perm, ok := alertActionPermission[input.Body.Type]; ok {
			if err := s.require(ctx, perm); err != nil {
				return nil, s.handleError(err)
			}
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := s.engine.ActOnAlert(ctx, input.ID, input.Body.Type, actorID)
		if err != nil {
			return nil, s.handleError(err)
		}
		if res.RefreshRequested && s.refresher != nil && s.require(ctx, auth.PermRefreshRun) == nil {
			if _, err := s.refresher.RefreshNow(ctx); err != nil {
				s.logger.Warn("alert-triggered refresh failed", slog.String("alert", input.ID), slog.Any("err", err))
			}
		}
		return reply(res), nil
	})
}

func (s *service) registerLog(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-log",
		Method:      http.MethodGet,
		Path:        "/log",
		Summary:     "Decision log, newest first",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		DecisionID string `query:"decision_id"`
		Type       string `query:"type"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*response[paginatedLog], error) {
		if err := s.require(ctx, auth.PermDecisionRead); err != nil {
			return nil, s.handleError(err)
		}
		typ := domain.LogType(input.Type)
		if typ != "" && !typ.Valid() {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "unknown log type", map[string]any{"type": input.Type})
		}
		limit := normalizeLimit(input.Limit)
		f := repo.LogFilters{DecisionID: input.DecisionID, Type: typ, Limit: limit + 1}
		if input.Cursor != "" {
			before, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			f.Before = before
		}
		items, err := s.engine.Log(ctx, f)
		if err != nil {
			return nil, s.handleError(err)
		}
		resp := paginatedLog{Items: nonNilSlice(items)}
		if len(items) > limit {
			resp.Items = items[:limit]
			resp.NextCursor = strconv.FormatInt(items[limit-1].Seq, 10)
		}
		return reply(resp), nil
	})
}

func (s *service) registerOutcomes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-outcomes",
		Method:      http.MethodGet,
		Path:        "/outcomes",
		Summary:     "Tracked outcomes",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
	}) (*response[[]domain.TrackedOutcome], error) {
		if err := s.require(ctx, auth.PermDecisionRead); err != nil {
			return nil, s.handleError(err)
		}
		status := domain.OutcomeStatus(input.Status)
		if status != "" && !status.Valid() {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "unknown outcome status", map[string]any{"status": input.Status})
		}
		items, err := s.engine.Outcomes(ctx, status)
		if err != nil {
			return nil, s.handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "outcome-accuracy",
		Method:      http.MethodGet,
		Path:        "/outcomes/accuracy",
		Summary:     "Prediction accuracy over settled outcomes",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*response[AccuracyResponse], error) {
		if err := s.require(ctx, auth.PermDecisionRead); err != nil {
			return nil, s.handleError(err)
		}
		score, ok, err := s.engine.Accuracy(ctx)
		if err != nil {
			return nil, s.handleError(err)
		}
		tracking, err := s.engine.Outcomes(ctx, domain.OutcomeTracking)
		if err != nil {
			return nil, s.handleError(err)
		}
		return reply(AccuracyResponse{Score: score, Settled: ok, Tracking: len(tracking)}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-actual",
		Method:      http.MethodPost,
		Path:        "/outcomes/{decision_id}/actual",
		Summary:     "Record the realized impact of an executed decision",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		DecisionID string `path:"decision_id"`
		Body       RecordActualRequest
	}) (*response[domain.TrackedOutcome], error) {
		if err := s.require(ctx, auth.PermOutcomeRecord); err != nil {
			return nil, s.handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, err := s.engine.RecordActual(ctx, input.DecisionID, domain.Impact{
			RevenueImpact: input.Body.RevenueImpact,
			RASMImpact:    input.Body.RASMImpact,
		}, actorID)
		if err != nil {
			return nil, s.handleError(err)
		}
		return reply(o), nil
	})
}

func (s *service) registerOverview(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "summary",
		Method:      http.MethodGet,
		Path:        "/summary",
		Summary:     "Pending decision totals and network RASM",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*response[domain.Summary], error) {
		if err := s.require(ctx, auth.PermDecisionRead); err != nil {
			return nil, s.handleError(err)
		}
		sum, err := s.engine.Summary(ctx)
		if err != nil {
			return nil, s.handleError(err)
		}
		return reply(sum), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "constraint-status",
		Method:      http.MethodGet,
		Path:        "/constraints",
		Summary:     "Constraint status per domain",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*response[[]domain.DomainStatus], error) {
		if err := s.require(ctx, auth.PermDecisionRead); err != nil {
			return nil, s.handleError(err)
		}
		items, err := s.engine.ConstraintStatus(ctx)
		if err != nil {
			return nil, s.handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "feeds",
		Method:      http.MethodGet,
		Path:        "/feeds",
		Summary:     "Feed health",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*response[FeedsResponse], error) {
		if err := s.require(ctx, auth.PermDecisionRead); err != nil {
			return nil, s.handleError(err)
		}
		feeds, err := s.engine.Feeds(ctx)
		if err != nil {
			return nil, s.handleError(err)
		}
		opt, err := s.engine.Optimizer(ctx)
		if err != nil {
			return nil, s.handleError(err)
		}
		return reply(FeedsResponse{Feeds: nonNilSlice(feeds), Optimizer: opt}), nil
	})
}

func (s *service) registerRefresh(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "refresh",
		Method:      http.MethodPost,
		Path:        "/refresh",
		Summary:     "Run a refresh pass now",
		Errors:      []int{http.StatusForbidden, http.StatusServiceUnavailable},
	}, func(ctx context.Context, _ *struct{}) (*response[RefreshResponse], error) {
		if err := s.require(ctx, auth.PermRefreshRun); err != nil {
			return nil, s.handleError(err)
		}
		if s.refresher == nil {
			return nil, newAPIError(http.StatusServiceUnavailable, "", "refresh not configured", nil)
		}
		out, err := s.refresher.RefreshNow(ctx)
		if err != nil {
			return nil, s.handleError(err)
		}
		return reply(refreshResponse(out)), nil
	})
}

func (s *service) registerOptimizer(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "run-optimizer",
		Method:      http.MethodPost,
		Path:        "/optimizer/run",
		Summary:     "Trigger a network optimization run",
		Errors:      []int{http.StatusForbidden, http.StatusBadGateway, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		Body *OptimizerRunRequest `required:"false"`
	}) (*response[analytics.OptimizationResult], error) {
		if err := s.require(ctx, auth.PermOptimizerRun); err != nil {
			return nil, s.handleError(err)
		}
		if s.optimizer == nil {
			return nil, newAPIError(http.StatusServiceUnavailable, "", "optimizer not configured", nil)
		}
		objective := "rasm"
		if input.Body != nil && strings.TrimSpace(input.Body.Objective) != "" {
			objective = strings.TrimSpace(input.Body.Objective)
		}
		res, err := s.optimizer.RunNetworkOptimization(ctx, objective)
		if err != nil {
			return nil, s.handleError(err)
		}
		return reply(res), nil
	})
}

func (s *service) registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*response[WhoAmIResponse], error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		roles := principal.Roles
		perms := principal.Permissions
		if len(roles) == 0 && principal.Source != sourceAPIKey {
			if stored, err := s.perms.Roles(ctx, principal.ActorID); err == nil {
				roles = stored
			}
		}
		if len(perms) == 0 && s.perms.Config != nil {
			perms = s.perms.Config.RolePermissions(roles)
		}
		return reply(WhoAmIResponse{
			ActorID:     principal.ActorID,
			Roles:       nonNilSlice(roles),
			Permissions: nonNilSlice(perms),
		}), nil
	})
}

func (s *service) registerAPIKeys(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/api-keys",
		Summary:       "Create an API key for an actor",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest
	}) (*response[CreateAPIKeyResponse], error) {
		if err := s.require(ctx, auth.PermAPIKeyManage); err != nil {
			return nil, s.handleError(err)
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		if err := s.perms.CheckRoles(input.Body.Roles...); err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		key, err := CreateAPIKey(ctx, s.engine.Repo, actor, input.Body.Name, input.Body.Roles)
		if err != nil {
			return nil, s.handleError(err)
		}
		return reply(key), nil
	})
}

// CreateAPIKey generates a random key, stores its hash and returns the plain key once.
// A non-empty roles list scopes the key to those of the actor's roles.
func CreateAPIKey(ctx context.Context, r repo.Repo, actorID, name string, roles []string) (CreateAPIKeyResponse, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return CreateAPIKeyResponse{}, err
	}
	plain := "cr_" + hex.EncodeToString(buf)
	id := uuid.NewString()
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return CreateAPIKeyResponse{}, err
	}
	defer tx.Rollback()
	now := time.Now().UTC().Format(time.RFC3339)
	if err := r.EnsureActor(ctx, tx, actorID, now); err != nil {
		return CreateAPIKeyResponse{}, err
	}
	if err := r.InsertAPIKey(ctx, tx, domain.APIKey{
		ID:        id,
		ActorID:   actorID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plain),
		Roles:     roles,
		CreatedAt: now,
	}); err != nil {
		return CreateAPIKeyResponse{}, err
	}
	if err := tx.Commit(); err != nil {
		return CreateAPIKeyResponse{}, err
	}
	return CreateAPIKeyResponse{ID: id, ActorID: actorID, Roles: roles, Key: plain}, nil
}

func (s *service) registerDevAuth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest
	}) (*response[DevLoginResponse], error) {
		if !s.authCfg.AllowActorHeader {
			return nil, newAPIError(http.StatusNotFound, "not_found", "dev login disabled", nil)
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(s.authCfg.JWTSecret, actor, input.Body.Roles, input.Body.Permissions, s.authCfg.TokenTTL)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		return reply(DevLoginResponse{Token: token}), nil
	})
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
