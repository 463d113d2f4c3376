package webhook

import (
	"time"

	"jurify/internal/domain"
)

type DocumentPayload struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	ActionType   string `json:"action_type"`
	Plaintiff    string `json:"plaintiff"`
	Defendant    string `json:"defendant"`
	Facts        string `json:"facts"`
	LegalBasis   string `json:"legal_basis"`
	Request      string `json:"request"`
	DocumentType string `json:"document_type"`
	Status       string `json:"status"`
	WordCount    int    `json:"word_count"`
	PagesCount   int    `json:"pages_count"`
	CreatedAt    string `json:"created_at"`
}

type TemplatePayload struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	DocumentType    string         `json:"document_type"`
	TemplateContent string         `json:"template_content,omitempty"`
	Variables       map[string]any `json:"variables,omitempty"`
}

type Metadata struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	Version   string `json:"version"`
}

// Payload is the envelope posted to the processing endpoint. It is built fresh
// for every submission and not mutated afterwards.
type Payload struct {
	Document DocumentPayload  `json:"document"`
	Template *TemplatePayload `json:"template,omitempty"`
	Metadata Metadata         `json:"metadata"`
}

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// PreparePayload builds the wire envelope for doc and the optional template.
func PreparePayload(doc domain.LegalDocument, tmpl *domain.Template, source, version string, now time.Time) Payload {
	ts := now.UTC().Format(TimestampLayout)
	createdAt := doc.CreatedAt
	if createdAt == "" {
		createdAt = ts
	}
	p := Payload{
		Document: DocumentPayload{
			ID:           doc.ID,
			Title:        doc.Title,
			Content:      doc.Content,
			ActionType:   doc.ActionType,
			Plaintiff:    doc.Plaintiff,
			Defendant:    doc.Defendant,
			Facts:        doc.Facts,
			LegalBasis:   doc.LegalBasis,
			Request:      doc.Request,
			DocumentType: string(doc.DocumentType),
			Status:       string(doc.Status),
			WordCount:    doc.WordCount,
			PagesCount:   doc.PagesCount,
			CreatedAt:    createdAt,
		},
		Metadata: Metadata{Timestamp: ts, Source: source, Version: version},
	}
	if tmpl != nil {
		p.Template = &TemplatePayload{
			ID:              tmpl.ID,
			Name:            tmpl.Name,
			Description:     tmpl.Description,
			DocumentType:    string(tmpl.DocumentType),
			TemplateContent: tmpl.TemplateContent,
			Variables:       tmpl.Variables,
		}
	}
	return p
}

// RequestKey identifies a submission for deduplication.
func RequestKey(p Payload) string {
	return p.Document.ID + "-" + p.Metadata.Timestamp
}
