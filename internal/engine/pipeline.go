package engine

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"jurify/internal/config"
	"jurify/internal/diagnostics"
	"jurify/internal/docx"
	"jurify/internal/domain"
	"jurify/internal/events"
	"jurify/internal/petition"
	"jurify/internal/repo"
	"jurify/internal/webhook"
)

// Notice tells the user how a submission ended. Only NoticeProcessed means a
// response was stored; the document itself is kept in every case.
type Notice string

const (
	NoticeProcessed         Notice = "processed"
	NoticeSavedNotProcessed Notice = "saved_not_processed"
	NoticeTimedOut          Notice = "timed_out"
	NoticeBlockedByServer   Notice = "blocked_by_server"
)

func noticeFor(kind webhook.ErrorKind) Notice {
	switch kind {
	case webhook.KindTimeout:
		return NoticeTimedOut
	case webhook.KindCORS:
		return NoticeBlockedByServer
	default:
		return NoticeSavedNotProcessed
	}
}

type ProcessOptions struct {
	DocumentID string
	TemplateID string
	ActorID    string
}

type ProcessResult struct {
	DocumentID string                  `json:"document_id"`
	Notice     Notice                  `json:"notice"`
	Message    string                  `json:"message"`
	ErrorKind  webhook.ErrorKind       `json:"error_kind,omitempty"`
	Response   *domain.WebhookResponse `json:"response,omitempty"`
}

func (e Engine) metadata() (string, string) {
	cfg := e.Config
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg.Webhook.Source, cfg.Webhook.Version
}

func (e Engine) preparePayload(ctx context.Context, opts ProcessOptions) (webhook.Payload, error) {
	doc, err := e.Repo.GetDocument(ctx, opts.DocumentID)
	if err != nil {
		return webhook.Payload{}, errors.Wrapf(err, "document %s", opts.DocumentID)
	}
	templateID := opts.TemplateID
	if templateID == "" && doc.TemplateID != nil {
		templateID = *doc.TemplateID
	}
	var tmpl *domain.Template
	if templateID != "" {
		t, err := e.Repo.GetTemplate(ctx, templateID)
		if err != nil {
			return webhook.Payload{}, errors.Wrapf(err, "template %s", templateID)
		}
		tmpl = &t
	}
	source, version := e.metadata()
	return webhook.PreparePayload(doc, tmpl, source, version, e.now()), nil
}

// Process submits a document for AI processing and stores the normalized
// response. Delivery failures are reported in the result, not as errors.
func (e Engine) Process(ctx context.Context, opts ProcessOptions) (ProcessResult, error) {
	if e.Webhook == nil {
		return ProcessResult{}, errors.New("webhook transport not configured")
	}
	payload, err := e.preparePayload(ctx, opts)
	if err != nil {
		return ProcessResult{}, err
	}
	return e.deliver(ctx, payload, opts.ActorID)
}

func (e Engine) deliver(ctx context.Context, payload webhook.Payload, actorID string) (ProcessResult, error) {
	docID := payload.Document.ID
	res := e.Webhook.Submit(ctx, payload)
	if !res.Success {
		e.recordFailure(ctx, payload, res, actorID)
		return ProcessResult{DocumentID: docID, Notice: noticeFor(res.ErrorKind), Message: res.Message, ErrorKind: res.ErrorKind}, nil
	}

	content := e.Normalizer.Normalize(res.Data)
	now := e.stamp()
	rec := domain.WebhookResponse{
		ID:                     uuid.NewString(),
		LegalDocumentID:        docID,
		DocumentType:           payload.Document.DocumentType,
		WebhookResponseContent: content.Content,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if actorID != "" {
		a := actorID
		rec.UserID = &a
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ProcessResult{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.CreateResponse(ctx, tx, rec); err != nil {
		return ProcessResult{}, errors.Wrap(err, "store webhook response")
	}
	if err := e.Events.Append(ctx, tx, events.WebhookProcessed, "webhook_response", rec.ID, actorID, events.EventPayload{
		"document_id": docID, "request_key": webhook.RequestKey(payload),
	}); err != nil {
		return ProcessResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return ProcessResult{}, err
	}
	e.logger().WithFields(logrus.Fields{"document_id": docID, "response_id": rec.ID}).Info("webhook response stored")
	return ProcessResult{DocumentID: docID, Notice: NoticeProcessed, Message: res.Message, Response: &rec}, nil
}

// recordFailure appends to the diagnostic log. Its own failures are only logged.
func (e Engine) recordFailure(ctx context.Context, payload webhook.Payload, res webhook.Response, actorID string) {
	log := e.logger().WithFields(logrus.Fields{
		"document_id": payload.Document.ID,
		"request_key": webhook.RequestKey(payload),
		"error_kind":  res.ErrorKind,
	})
	if e.Failures != nil {
		if err := e.Failures.Append(ctx, diagnostics.NewEntry(e.now(), payload, res.Message)); err != nil {
			log.WithError(err).Error("failed to record failed webhook")
		}
	}
	if err := e.Events.Append(ctx, nil, events.WebhookFailed, "document", payload.Document.ID, actorID, events.EventPayload{
		"error_kind": res.ErrorKind, "message": res.Message,
	}); err != nil {
		log.WithError(err).Error("failed to append webhook.failed event")
	}
	log.Warn("webhook processing failed; document kept")
}

// ProcessDetached starts processing in the background and returns its task
// name. The outcome is only visible through stored responses and the
// diagnostic log. Wait joins outstanding tasks.
func (e Engine) ProcessDetached(ctx context.Context, opts ProcessOptions) (string, error) {
	if e.Webhook == nil {
		return "", errors.New("webhook transport not configured")
	}
	payload, err := e.preparePayload(ctx, opts)
	if err != nil {
		return "", err
	}
	name := "webhook:" + webhook.RequestKey(payload)
	bg := context.WithoutCancel(ctx)
	e.tasks.Add(1)
	go func() {
		defer e.tasks.Done()
		if _, err := e.deliver(bg, payload, opts.ActorID); err != nil {
			e.logger().WithError(err).WithField("task", name).Error("detached processing failed")
			e.recordFailure(bg, payload, webhook.Response{Message: err.Error(), ErrorKind: webhook.KindUnknown}, opts.ActorID)
		}
	}()
	return name, nil
}

// Wait blocks until every detached task has finished.
func (e Engine) Wait() {
	if e.tasks != nil {
		e.tasks.Wait()
	}
}

// Generate renders the petition for a stored response. A response is
// generated at most once; later calls fail with ErrAlreadyGenerated.
func (e Engine) Generate(ctx context.Context, responseID, actorID string) (domain.WebhookResponse, error) {
	rec, err := e.Repo.GetResponse(ctx, responseID)
	if err != nil {
		return domain.WebhookResponse{}, err
	}
	if rec.Gerado {
		return domain.WebhookResponse{}, ErrAlreadyGenerated
	}
	gen, err := e.Formatter.Format(rec.WebhookResponseContent)
	if err != nil {
		return domain.WebhookResponse{}, errors.Wrapf(err, "format response %s", responseID)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WebhookResponse{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.MarkGenerated(ctx, tx, rec.ID, gen.Conteudo, gen.DataGeracao); err != nil {
		return domain.WebhookResponse{}, err
	}
	if err := e.Events.Append(ctx, tx, events.ResponseGenerated, "webhook_response", rec.ID, actorID, events.EventPayload{
		"document_id": rec.LegalDocumentID,
	}); err != nil {
		return domain.WebhookResponse{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WebhookResponse{}, err
	}
	return e.Repo.GetResponse(ctx, rec.ID)
}

// Validate reports which case fields are missing from a stored response.
func (e Engine) Validate(ctx context.Context, responseID string) (petition.Validation, error) {
	rec, err := e.Repo.GetResponse(ctx, responseID)
	if err != nil {
		return petition.Validation{}, err
	}
	return petition.Validate(rec.WebhookResponseContent), nil
}

type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportWord encodes the generated petition of a response as a .docx file.
func (e Engine) ExportWord(ctx context.Context, responseID, actorID string) (Export, error) {
	rec, err := e.Repo.GetResponse(ctx, responseID)
	if err != nil {
		return Export{}, err
	}
	if !rec.Gerado || rec.DocumentoFormatado == nil {
		return Export{}, ErrNotGenerated
	}
	data, err := docx.Encode(*rec.DocumentoFormatado, "Petição Jurídica - "+rec.LegalDocumentID)
	if err != nil {
		return Export{}, err
	}
	out := Export{
		Filename:    docx.Filename("peticao_formatada_" + rec.LegalDocumentID),
		ContentType: docx.ContentType,
		Data:        data,
	}
	if err := e.Events.Append(ctx, nil, events.ResponseExported, "webhook_response", rec.ID, actorID, events.EventPayload{
		"filename": out.Filename, "size": units.HumanSize(float64(len(data))),
	}); err != nil {
		e.logger().WithError(err).Warn("failed to append response.exported event")
	}
	return out, nil
}

// IsNotFound reports whether err means a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}
