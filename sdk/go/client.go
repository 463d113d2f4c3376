package jurifysdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Jurify HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. Processing waits on the AI
// webhook, so the timeout is above the server's 75s webhook deadline.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "v1",
		Timeout:  90 * time.Second,
	}
}

// Document represents the API legal document model.
type Document struct {
	ID           string  `json:"id,omitempty"`
	Title        string  `json:"title"`
	Content      string  `json:"content,omitempty"`
	ActionType   string  `json:"action_type,omitempty"`
	Plaintiff    string  `json:"plaintiff,omitempty"`
	Defendant    string  `json:"defendant,omitempty"`
	Facts        string  `json:"facts,omitempty"`
	LegalBasis   string  `json:"legal_basis,omitempty"`
	Request      string  `json:"request,omitempty"`
	DocumentType string  `json:"document_type,omitempty"`
	Status       string  `json:"status,omitempty"`
	WordCount    int     `json:"word_count,omitempty"`
	PagesCount   int     `json:"pages_count,omitempty"`
	TemplateID   *string `json:"template_id,omitempty"`
	CreatedAt    string  `json:"created_at,omitempty"`
}

// Response is a stored AI answer for a document.
type Response struct {
	ID                     string  `json:"id"`
	LegalDocumentID        string  `json:"legal_document_id"`
	DocumentType           string  `json:"document_type"`
	WebhookResponseContent string  `json:"webhook_response_content"`
	Gerado                 bool    `json:"gerado"`
	DocumentoFormatado     *string `json:"documento_formatado,omitempty"`
	DataGeracao            *string `json:"data_geracao,omitempty"`
	CreatedAt              string  `json:"created_at"`
	UpdatedAt              string  `json:"updated_at"`
}

// ProcessResult reports how a submission ended.
type ProcessResult struct {
	DocumentID string    `json:"document_id"`
	Notice     string    `json:"notice"`
	Message    string    `json:"message"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Response   *Response `json:"response,omitempty"`
	Task       string    `json:"task,omitempty"`
}

// Validation lists case fields missing from a response.
type Validation struct {
	Valido        bool     `json:"valido"`
	MissingFields []string `json:"missing_fields"`
}

// FailedWebhook is one entry of the diagnostic log.
type FailedWebhook struct {
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
}

// Event represents a log entry.
type Event struct {
	ID         string `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// File is a downloaded attachment.
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateDocument stores a new legal document.
func (c *Client) CreateDocument(ctx context.Context, d Document) (Document, error) {
	var resp Document
	err := c.do(ctx, http.MethodPost, c.path("documents"), d, &resp)
	return resp, err
}

// GetDocument fetches a document by id.
func (c *Client) GetDocument(ctx context.Context, id string) (Document, error) {
	var resp Document
	err := c.do(ctx, http.MethodGet, c.path("documents/"+url.PathEscape(id)), nil, &resp)
	return resp, err
}

// Process submits a document to the AI webhook. With detached set the call
// returns immediately and only Task is filled.
func (c *Client) Process(ctx context.Context, documentID, templateID string, detached bool) (ProcessResult, error) {
	body := map[string]any{"detached": detached}
	if templateID != "" {
		body["template_id"] = templateID
	}
	var resp ProcessResult
	err := c.do(ctx, http.MethodPost, c.path(fmt.Sprintf("documents/%s/process", url.PathEscape(documentID))), body, &resp)
	return resp, err
}

// DocumentResponses lists stored answers for a document.
func (c *Client) DocumentResponses(ctx context.Context, documentID string) ([]Response, error) {
	var resp struct {
		Items []Response `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, c.path(fmt.Sprintf("documents/%s/responses", url.PathEscape(documentID))), nil, &resp)
	return resp.Items, err
}

// Generate renders the petition for a response. A second call fails with
// code already_generated.
func (c *Client) Generate(ctx context.Context, responseID string) (Response, error) {
	var resp Response
	err := c.do(ctx, http.MethodPost, c.path(fmt.Sprintf("responses/%s/generate", url.PathEscape(responseID))), nil, &resp)
	return resp, err
}

// Validate reports missing case fields.
func (c *Client) Validate(ctx context.Context, responseID string) (Validation, error) {
	var resp Validation
	err := c.do(ctx, http.MethodGet, c.path(fmt.Sprintf("responses/%s/validation", url.PathEscape(responseID))), nil, &resp)
	return resp, err
}

// DownloadDocx fetches the generated petition as a Word file.
func (c *Client) DownloadDocx(ctx context.Context, responseID string) (File, error) {
	resp, err := c.send(ctx, http.MethodGet, c.path(fmt.Sprintf("responses/%s/docx", url.PathEscape(responseID))), nil)
	if err != nil {
		return File{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return File{}, err
	}
	f := File{ContentType: resp.Header.Get("Content-Type"), Data: data}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		f.Filename = params["filename"]
	}
	return f, nil
}

// FailedWebhooks returns the diagnostic log, oldest first.
func (c *Client) FailedWebhooks(ctx context.Context) ([]FailedWebhook, error) {
	var resp struct {
		Items []FailedWebhook `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, c.path("diagnostics/failed-webhooks"), nil, &resp)
	return resp.Items, err
}

// Events returns recent events, optionally filtered by type.
func (c *Client) Events(ctx context.Context, limit int, evtType string) ([]Event, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if evtType != "" {
		q.Set("type", evtType)
	}
	endpoint := c.path("events")
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []Event `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	resp, err := c.send(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return nil, apiErr
	}
	return resp, nil
}

func (c *Client) path(p string) string {
	base := strings.Trim(c.BasePath, "/")
	if base == "" {
		return strings.TrimLeft(p, "/")
	}
	return base + "/" + strings.TrimLeft(p, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
