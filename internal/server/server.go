package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"inductionlog/internal/domain"
	"inductionlog/internal/engine"
	"inductionlog/internal/metrics"
	"inductionlog/internal/persist"
	"inductionlog/internal/policy"
	"inductionlog/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Metrics  *metrics.Metrics
	// TargetID is the id and name of the hidden input on the host page.
	TargetID string
	Logger   *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"forbidden"`
	Message string         `json:"message" example:"role \"mentor\" may not edit coverPage.inductee"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"section\":\"coverPage\",\"field\":\"inductee\"}"`
}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type api struct {
	e        engine.Engine
	basePath string
	targetID string
	log      *zap.Logger
}

// New returns an HTTP handler exposing the induction log API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	targetID := cfg.TargetID
	if targetID == "" {
		targetID = persist.DefaultTargetID
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the requested envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(cfg.Metrics.Middleware)
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine))
	hcfg := huma.DefaultConfig("Induction Log API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	hapi := humachi.New(router, hcfg)
	group := huma.NewGroup(hapi, basePath)

	a := api{e: cfg.Engine, basePath: basePath, targetID: targetID, log: logger}
	registerDocs(router, basePath)
	router.Handle("/metrics", cfg.Metrics.Handler())
	registerHealth(group)
	registerMe(group)
	if cfg.Auth.AllowDevHeaders {
		registerDevAuth(group, cfg.Auth)
	}
	a.registerLogs(group)
	a.registerFields(group)
	a.registerEntries(group)
	a.registerPolicy(group)
	a.registerEvents(group)
	a.registerAPIKeys(group)
	a.registerHost(router)
	registerOpenAPI(router, hapi, basePath)

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
	var fe policy.ForbiddenFieldError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{
			"role": string(fe.Role), "section": fe.Section, "field": fe.Field,
		})
	}
	var ve engine.ViolationError
	if errors.As(err, &ve) {
		fields := make([]string, 0, len(ve.Fields))
		for _, f := range ve.Fields {
			fields = append(fields, f.String())
		}
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{
			"role": string(ve.Role), "fields": fields,
		})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	for _, target := range []error{
		domain.ErrUnknownSection,
		domain.ErrFixedSection,
		domain.ErrStaticField,
		domain.ErrUnknownField,
		domain.ErrIndexOutOfRange,
		engine.ErrInvalidDate,
		engine.ErrInvalidDocument,
		engine.ErrFixedLength,
		engine.ErrUnknownRole,
		engine.ErrActorRequired,
	} {
		if errors.Is(err, target) {
			return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
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
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func requireRole(ctx context.Context, roles ...domain.Role) (Principal, error) {
	p, authErr := principalFromRequest(ctx)
	if authErr != nil {
		return Principal{}, authErr
	}
	for _, r := range roles {
		if p.Role == r {
			return p, nil
		}
	}
	return Principal{}, newAPIError(http.StatusForbidden, "forbidden", fmt.Sprintf("role %q may not perform this operation", p.Role), nil)
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	// Built on first request, once every operation is registered.
	spec := sync.OnceValue(func() []byte {
		oas := api.OpenAPI()
		ensureDefaultErrorResponses(oas)
		applyAuthSecurity(oas, basePath)
		b, _ := json.Marshal(oas)
		return b
	})
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec())
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
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
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
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
	security := []map[string][]string{{"bearerAuth": {}}, {"apiKeyAuth": {}}}
	oas.Security = security
	public := map[string]bool{
		path.Join("/", basePath, "health"):         true,
		path.Join("/", basePath, "auth/dev/login"): true,
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
    <title>Induction Log API Docs</title>
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
      Authenticate with Authorization: Bearer &lt;token&gt; carrying a role claim, or with X-Api-Key.
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
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{ActorID: p.ActorID, Role: string(p.Role), Source: p.Source}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := SignToken(authCfg.JWTSecret, actor, domain.ParseRole(input.Body.Role), 12*time.Hour)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

type logPath struct {
	LogID string `path:"log_id"`
}

func (a api) registerLogs(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-logs",
		Method:      http.MethodGet,
		Path:        "/logs",
		Summary:     "List induction logs",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Inductee string `query:"inductee"`
		Building string `query:"building"`
		Limit    int    `query:"limit" default:"50"`
	}) (*struct {
		Body paginatedLogs `json:"body"`
	}, error) {
		if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
			return nil, handleError(err)
		}
		items, err := a.e.ListLogs(ctx, repo.LogFilters{
			Inductee: input.Inductee,
			Building: input.Building,
			Limit:    normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body paginatedLogs `json:"body"`
		}{Body: paginatedLogs{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-log",
		Method:        http.MethodPost,
		Path:          "/logs",
		Summary:       "Create an induction log",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateLogRequest `json:"body"`
	}) (*struct {
		Body LogResponse `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, handleError(err)
		}
		l, err := a.e.CreateLog(ctx, engine.CreateLogOptions{ID: input.Body.ID, Data: input.Body.Data, ActorID: p.ActorID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LogResponse `json:"body"`
		}{Body: logResponse(l)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-log",
		Method:      http.MethodGet,
		Path:        "/logs/{log_id}",
		Summary:     "Form configuration of a log for the caller",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *logPath) (*struct {
		Body domain.FormConfig `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cfg, err := a.e.LoadForm(ctx, input.LogID, p.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.FormConfig `json:"body"`
		}{Body: cfg}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-log",
		Method:        http.MethodDelete,
		Path:          "/logs/{log_id}",
		Summary:       "Delete a log",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *logPath) (*struct{}, error) {
		p, err := requireRole(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, handleError(err)
		}
		if err := a.e.DeleteLog(ctx, input.LogID, p.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func (a api) registerFields(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "set-field",
		Method:      http.MethodPatch,
		Path:        "/logs/{log_id}/fields",
		Summary:     "Set one field of a log",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		LogID string          `path:"log_id"`
		Body  SetFieldRequest `json:"body"`
	}) (*struct {
		Body LogResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		l, err := a.e.SetField(ctx, engine.FieldUpdate{
			LogID:   input.LogID,
			Ref:     domain.FieldRef{Section: input.Body.Section, Index: input.Body.Index, Field: input.Body.Field},
			Value:   input.Body.Value,
			Role:    p.Role,
			ActorID: p.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LogResponse `json:"body"`
		}{Body: logResponse(l)}, nil
	})
}

func parseSection(id string) (domain.SectionKind, error) {
	k, ok := domain.ParseSectionKind(id)
	if !ok {
		return 0, fmt.Errorf("%s: %w", id, domain.ErrUnknownSection)
	}
	return k, nil
}

func (a api) registerEntries(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-entry",
		Method:        http.MethodPost,
		Path:          "/logs/{log_id}/sections/{section}/entries",
		Summary:       "Append a blank row to a section",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		LogID   string `path:"log_id"`
		Section string `path:"section"`
	}) (*struct {
		Body LogResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		k, err := parseSection(input.Section)
		if err != nil {
			return nil, handleError(err)
		}
		l, err := a.e.AddEntry(ctx, input.LogID, k, p.Role, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LogResponse `json:"body"`
		}{Body: logResponse(l)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-entry",
		Method:      http.MethodDelete,
		Path:        "/logs/{log_id}/sections/{section}/entries/{index}",
		Summary:     "Remove a row from a section",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		LogID   string `path:"log_id"`
		Section string `path:"section"`
		Index   int    `path:"index"`
	}) (*struct {
		Body LogResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		k, err := parseSection(input.Section)
		if err != nil {
			return nil, handleError(err)
		}
		l, err := a.e.RemoveEntry(ctx, input.LogID, k, input.Index, p.Role, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LogResponse `json:"body"`
		}{Body: logResponse(l)}, nil
	})
}

func (a api) registerPolicy(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "can-edit",
		Method:      http.MethodGet,
		Path:        "/policy/can-edit",
		Summary:     "Whether a role may edit a field",
	}, func(ctx context.Context, input *struct {
		Section string `query:"section"`
		Field   string `query:"field"`
		Role    string `query:"role" doc:"defaults to the caller's role"`
	}) (*struct {
		Body CanEditResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		role := p.Role
		if input.Role != "" {
			role = domain.ParseRole(input.Role)
		}
		return &struct {
			Body CanEditResponse `json:"body"`
		}{Body: CanEditResponse{
			Role:    string(role),
			Section: input.Section,
			Field:   input.Field,
			Allowed: policy.CanEdit(role, input.Section, input.Field),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sections",
		Method:      http.MethodGet,
		Path:        "/sections",
		Summary:     "Activity section layout",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Section `json:"body"`
	}, error) {
		return &struct {
			Body []domain.Section `json:"body"`
		}{Body: domain.Sections()}, nil
	})
}

func (a api) registerEvents(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/logs/{log_id}/events",
		Summary:     "List recent events of a log",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		LogID  string `path:"log_id"`
		Type   string `query:"type"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleMentor, domain.RoleMentee); err != nil {
			return nil, handleError(err)
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := a.e.ListEvents(ctx, repo.EventFilters{LogID: input.LogID, Type: input.Type, Cursor: cursorID, Limit: limit + 1})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
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

func (a api) registerAPIKeys(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/api-keys",
		Summary:       "Mint an API key for an actor and role",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body CreateAPIKeyResponse `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, handleError(err)
		}
		plain, key, err := a.e.CreateAPIKey(ctx, input.Body.ActorID, domain.Role(input.Body.Role), input.Body.Name, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CreateAPIKeyResponse `json:"body"`
		}{Body: CreateAPIKeyResponse{Key: plain, APIKey: key}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/api-keys",
		Summary:     "List API keys",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ActorID string `query:"actor_id"`
	}) (*struct {
		Body paginatedAPIKeys `json:"body"`
	}, error) {
		if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
			return nil, handleError(err)
		}
		keys, err := a.e.ListAPIKeys(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body paginatedAPIKeys `json:"body"`
		}{Body: paginatedAPIKeys{Items: nonNilSlice(keys)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "revoke-api-key",
		Method:        http.MethodDelete,
		Path:          "/api-keys/{key_id}",
		Summary:       "Revoke an API key",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		KeyID string `path:"key_id"`
	}) (*struct{}, error) {
		p, err := requireRole(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, handleError(err)
		}
		if err := a.e.RevokeAPIKey(ctx, input.KeyID, p.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
