package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"jurify/internal/docx"
	"jurify/internal/domain"
	"jurify/internal/engine"
	"jurify/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine    engine.Engine
	BasePath  string
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Logger    *logrus.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"already_generated"`
	Message string         `json:"message" example:"documento já foi gerado para esta petição"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Jurify API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = log
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(log))
	router.Use(newRateLimiter(cfg.RateLimit).middleware)
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Jurify API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerDocuments(group, cfg.Engine)
	registerTemplates(group, cfg.Engine)
	registerProcessing(group, cfg.Engine)
	registerResponses(group, cfg.Engine)
	registerDiagnostics(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).Round(time.Microsecond).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Info("http request")
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

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, engine.ErrAlreadyGenerated):
		return newAPIError(http.StatusConflict, "already_generated", msg, nil)
	case errors.Is(err, engine.ErrNotGenerated):
		return newAPIError(http.StatusConflict, "not_generated", msg, nil)
	case errors.Is(err, engine.ErrInvalid):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	case errors.Is(err, docx.ErrEncoding):
		return newAPIError(http.StatusInternalServerError, "encoding_failed", docx.ErrEncoding.Error(), map[string]any{"error": msg})
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
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
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
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
		doc  []byte
	)
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			doc, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
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
    <title>Jurify API Docs</title>
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

func registerDocuments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-document",
		Method:        http.MethodPost,
		Path:          "/documents",
		Summary:       "Create legal document",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateDocumentRequest `json:"body"`
	}) (*struct {
		Body domain.LegalDocument `json:"body"`
	}, error) {
		b := input.Body
		d, err := e.CreateDocument(ctx, engine.DocumentCreateOptions{
			ID:           deref(b.ID),
			Title:        b.Title,
			Content:      b.Content,
			ActionType:   b.ActionType,
			Plaintiff:    b.Plaintiff,
			Defendant:    b.Defendant,
			Facts:        b.Facts,
			LegalBasis:   b.LegalBasis,
			Request:      b.Request,
			DocumentType: domain.DocumentType(b.DocumentType),
			Status:       domain.DocumentStatus(b.Status),
			WordCount:    b.WordCount,
			PagesCount:   b.PagesCount,
			TemplateID:   deref(b.TemplateID),
			ActorID:      actorIDFromContext(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.LegalDocument `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-documents",
		Method:      http.MethodGet,
		Path:        "/documents",
		Summary:     "List legal documents",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50"`
	}) (*struct {
		Body DocumentList `json:"body"`
	}, error) {
		items, err := e.ListDocuments(ctx, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocumentList `json:"body"`
		}{Body: DocumentList{Items: orEmpty(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-document",
		Method:      http.MethodGet,
		Path:        "/documents/{id}",
		Summary:     "Get legal document",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.LegalDocument `json:"body"`
	}, error) {
		d, err := e.GetDocument(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.LegalDocument `json:"body"`
		}{Body: d}, nil
	})
}

func registerTemplates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-template",
		Method:        http.MethodPost,
		Path:          "/templates",
		Summary:       "Create template",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateTemplateRequest `json:"body"`
	}) (*struct {
		Body domain.Template `json:"body"`
	}, error) {
		b := input.Body
		t, err := e.CreateTemplate(ctx, engine.TemplateCreateOptions{
			ID:              deref(b.ID),
			Name:            b.Name,
			Description:     b.Description,
			DocumentType:    domain.DocumentType(b.DocumentType),
			TemplateContent: b.TemplateContent,
			Variables:       b.Variables,
			ActorID:         actorIDFromContext(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Template `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/templates",
		Summary:     "List templates",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body TemplateList `json:"body"`
	}, error) {
		items, err := e.ListTemplates(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TemplateList `json:"body"`
		}{Body: TemplateList{Items: orEmpty(items)}}, nil
	})
}

func registerProcessing(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "process-document",
		Method:      http.MethodPost,
		Path:        "/documents/{id}/process",
		Summary:     "Submit a document for AI processing",
		Description: "Delivery failures are reported in the result notice; the document is kept either way.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body *ProcessRequest `json:"body,omitempty" required:"false"`
	}) (*struct {
		Status int
		Body   ProcessResponse `json:"body"`
	}, error) {
		var req ProcessRequest
		if input.Body != nil {
			req = *input.Body
		}
		opts := engine.ProcessOptions{DocumentID: input.ID, TemplateID: deref(req.TemplateID), ActorID: actorIDFromContext(ctx)}
		if req.Detached {
			task, err := e.ProcessDetached(ctx, opts)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Status int
				Body   ProcessResponse `json:"body"`
			}{Status: http.StatusAccepted, Body: ProcessResponse{ProcessResult: engine.ProcessResult{DocumentID: input.ID}, Task: task}}, nil
		}
		res, err := e.Process(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Status int
			Body   ProcessResponse `json:"body"`
		}{Status: http.StatusOK, Body: ProcessResponse{ProcessResult: res}}, nil
	})
}

func registerResponses(api huma.API, e engine.Engine) {
	type responseOutput struct {
		Body domain.WebhookResponse `json:"body"`
	}
	type responsePath struct {
		ID string `path:"id"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-document-responses",
		Method:      http.MethodGet,
		Path:        "/documents/{id}/responses",
		Summary:     "List webhook responses of a document",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *responsePath) (*struct {
		Body ResponseList `json:"body"`
	}, error) {
		items, err := e.ListDocumentResponses(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ResponseList `json:"body"`
		}{Body: ResponseList{Items: orEmpty(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-responses",
		Method:      http.MethodGet,
		Path:        "/responses",
		Summary:     "List webhook responses",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50"`
	}) (*struct {
		Body ResponseList `json:"body"`
	}, error) {
		items, err := e.ListResponses(ctx, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ResponseList `json:"body"`
		}{Body: ResponseList{Items: orEmpty(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-response",
		Method:      http.MethodGet,
		Path:        "/responses/{id}",
		Summary:     "Get webhook response",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *responsePath) (*responseOutput, error) {
		rec, err := e.GetResponse(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &responseOutput{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "generate-response",
		Method:      http.MethodPost,
		Path:        "/responses/{id}/generate",
		Summary:     "Render the petition for a response",
		Description: "A response can be generated once; later calls return 409 already_generated.",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *responsePath) (*responseOutput, error) {
		rec, err := e.Generate(ctx, input.ID, actorIDFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &responseOutput{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "validate-response",
		Method:      http.MethodGet,
		Path:        "/responses/{id}/validation",
		Summary:     "Report missing case fields",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *responsePath) (*struct {
		Body ValidationResponse `json:"body"`
	}, error) {
		v, err := e.Validate(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ValidationResponse `json:"body"`
		}{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-response-docx",
		Method:      http.MethodGet,
		Path:        "/responses/{id}/docx",
		Summary:     "Download the generated petition as .docx",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *responsePath) (*struct {
		ContentType        string `header:"Content-Type"`
		ContentDisposition string `header:"Content-Disposition"`
		Body               []byte
	}, error) {
		out, err := e.ExportWord(ctx, input.ID, actorIDFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			ContentType        string `header:"Content-Type"`
			ContentDisposition string `header:"Content-Disposition"`
			Body               []byte
		}{
			ContentType:        out.ContentType,
			ContentDisposition: mime.FormatMediaType("attachment", map[string]string{"filename": out.Filename}),
			Body:               out.Data,
		}, nil
	})
}

func registerDiagnostics(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-failed-webhooks",
		Method:      http.MethodGet,
		Path:        "/diagnostics/failed-webhooks",
		Summary:     "List recent failed webhook submissions",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body FailedWebhookList `json:"body"`
	}, error) {
		items, err := e.FailedWebhooks(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body FailedWebhookList `json:"body"`
		}{Body: FailedWebhookList{Items: orEmpty(items)}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
	}, func(ctx context.Context, input *struct {
		Type     string `query:"type"`
		EntityID string `query:"entity_id"`
		Limit    int    `query:"limit" default:"50"`
	}) (*struct {
		Body EventList `json:"body"`
	}, error) {
		items, err := e.LatestEvents(ctx, normalizeLimit(input.Limit), input.Type, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventList `json:"body"`
		}{Body: EventList{Items: orEmpty(items)}}, nil
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
