package engine

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"jurify/internal/config"
	"jurify/internal/db"
	"jurify/internal/diagnostics"
	"jurify/internal/domain"
	"jurify/internal/events"
	"jurify/internal/normalize"
	"jurify/internal/petition"
	"jurify/internal/repo"
	"jurify/internal/webhook"
)

var (
	ErrAlreadyGenerated = repo.ErrAlreadyGenerated
	ErrNotGenerated     = errors.New("documento ainda não foi gerado para esta resposta")
	ErrInvalid          = errors.New("invalid input")
)

func invalid(msg string) error {
	return errors.Mark(errors.New(msg), ErrInvalid)
}

// Submitter delivers a payload to the processing endpoint.
type Submitter interface {
	Submit(ctx context.Context, p webhook.Payload) webhook.Response
}

type Engine struct {
	DB         *sql.DB
	Repo       repo.Repo
	Events     events.Writer
	Config     *config.Config
	Webhook    Submitter
	Failures   diagnostics.Sink
	Normalizer normalize.Normalizer
	Formatter  petition.Formatter
	Log        *logrus.Logger
	Now        func() time.Time

	tasks *sync.WaitGroup
}

func New(conn *sql.DB, dialect db.Dialect, cfg *config.Config, sub Submitter, sink diagnostics.Sink, log *logrus.Logger) Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return Engine{
		DB:       conn,
		Repo:     repo.Repo{DB: conn, Dialect: dialect},
		Events:   events.Writer{DB: conn, Dialect: dialect},
		Config:   cfg,
		Webhook:  sub,
		Failures: sink,
		Log:      log,
		Now:      time.Now,
		tasks:    &sync.WaitGroup{},
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339Nano)
}

func (e Engine) logger() *logrus.Logger {
	if e.Log != nil {
		return e.Log
	}
	return logrus.StandardLogger()
}

// DocumentCreateOptions are parameters for creating a legal document.
type DocumentCreateOptions struct {
	ID           string
	Title        string
	Content      string
	ActionType   string
	Plaintiff    string
	Defendant    string
	Facts        string
	LegalBasis   string
	Request      string
	DocumentType domain.DocumentType
	Status       domain.DocumentStatus
	WordCount    int
	PagesCount   int
	TemplateID   string
	ActorID      string
}

func (e Engine) CreateDocument(ctx context.Context, opts DocumentCreateOptions) (domain.LegalDocument, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.LegalDocument{}, invalid("title is required")
	}
	if opts.DocumentType == "" {
		opts.DocumentType = domain.DocumentPeticion
	}
	if !opts.DocumentType.Valid() {
		return domain.LegalDocument{}, invalid("invalid document_type " + string(opts.DocumentType))
	}
	if opts.Status == "" {
		opts.Status = domain.StatusDraft
	}
	if !opts.Status.Valid() {
		return domain.LegalDocument{}, invalid("invalid status " + string(opts.Status))
	}
	if opts.WordCount < 0 || opts.PagesCount < 0 {
		return domain.LegalDocument{}, invalid("word_count and pages_count must not be negative")
	}
	d := domain.LegalDocument{
		ID:           opts.ID,
		Title:        opts.Title,
		Content:      opts.Content,
		ActionType:   opts.ActionType,
		Plaintiff:    opts.Plaintiff,
		Defendant:    opts.Defendant,
		Facts:        opts.Facts,
		LegalBasis:   opts.LegalBasis,
		Request:      opts.Request,
		DocumentType: opts.DocumentType,
		Status:       opts.Status,
		WordCount:    opts.WordCount,
		PagesCount:   opts.PagesCount,
		CreatedAt:    e.stamp(),
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.WordCount == 0 {
		d.WordCount = domain.EstimateWordCount(d.Content)
	}
	if d.PagesCount == 0 {
		d.PagesCount = domain.EstimatePageCount(d.Content)
	}
	if opts.TemplateID != "" {
		if _, err := e.Repo.GetTemplate(ctx, opts.TemplateID); err != nil {
			return domain.LegalDocument{}, errors.Wrapf(err, "template %s", opts.TemplateID)
		}
		id := opts.TemplateID
		d.TemplateID = &id
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.LegalDocument{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertDocument(ctx, tx, d); err != nil {
		return domain.LegalDocument{}, errors.Wrap(err, "insert document")
	}
	if err := e.Events.Append(ctx, tx, events.DocumentCreated, "document", d.ID, opts.ActorID, events.EventPayload{
		"document_type": d.DocumentType, "status": d.Status,
	}); err != nil {
		return domain.LegalDocument{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.LegalDocument{}, err
	}
	return d, nil
}

// TemplateCreateOptions are parameters for creating a template.
type TemplateCreateOptions struct {
	ID              string
	Name            string
	Description     string
	DocumentType    domain.DocumentType
	TemplateContent string
	Variables       map[string]any
	ActorID         string
}

func (e Engine) CreateTemplate(ctx context.Context, opts TemplateCreateOptions) (domain.Template, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Template{}, invalid("name is required")
	}
	if opts.DocumentType == "" {
		opts.DocumentType = domain.DocumentPeticion
	}
	if !opts.DocumentType.Valid() {
		return domain.Template{}, invalid("invalid document_type " + string(opts.DocumentType))
	}
	t := domain.Template{
		ID:              opts.ID,
		Name:            opts.Name,
		Description:     opts.Description,
		DocumentType:    opts.DocumentType,
		TemplateContent: opts.TemplateContent,
		Variables:       opts.Variables,
		CreatedAt:       e.stamp(),
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Template{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTemplate(ctx, tx, t); err != nil {
		return domain.Template{}, errors.Wrap(err, "insert template")
	}
	if err := e.Events.Append(ctx, tx, events.TemplateCreated, "template", t.ID, opts.ActorID, events.EventPayload{"name": t.Name}); err != nil {
		return domain.Template{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Template{}, err
	}
	return t, nil
}

func (e Engine) GetDocument(ctx context.Context, id string) (domain.LegalDocument, error) {
	return e.Repo.GetDocument(ctx, id)
}

func (e Engine) ListDocuments(ctx context.Context, limit int) ([]domain.LegalDocument, error) {
	return e.Repo.ListDocuments(ctx, limit)
}

func (e Engine) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	return e.Repo.ListTemplates(ctx)
}

func (e Engine) GetResponse(ctx context.Context, id string) (domain.WebhookResponse, error) {
	return e.Repo.GetResponse(ctx, id)
}

func (e Engine) ListResponses(ctx context.Context, limit int) ([]domain.WebhookResponse, error) {
	return e.Repo.ListResponses(ctx, limit)
}

// ListDocumentResponses returns the responses of one document, newest first.
func (e Engine) ListDocumentResponses(ctx context.Context, documentID string) ([]domain.WebhookResponse, error) {
	if _, err := e.Repo.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return e.Repo.ListResponsesByDocument(ctx, documentID)
}

func (e Engine) LatestEvents(ctx context.Context, limit int, evtType, entityID string) ([]domain.Event, error) {
	return e.Repo.LatestEvents(ctx, limit, evtType, entityID)
}

// FailedWebhooks returns the diagnostic log, oldest entry first.
func (e Engine) FailedWebhooks(ctx context.Context) ([]diagnostics.Entry, error) {
	if e.Failures == nil {
		return nil, nil
	}
	return e.Failures.List(ctx)
}
