package server

import (
	"jurify/internal/diagnostics"
	"jurify/internal/domain"
	"jurify/internal/engine"
	"jurify/internal/petition"
)

// Request payloads

type CreateDocumentRequest struct {
	ID           *string `json:"id,omitempty"`
	Title        string  `json:"title" minLength:"1"`
	Content      string  `json:"content,omitempty"`
	ActionType   string  `json:"action_type,omitempty"`
	Plaintiff    string  `json:"plaintiff,omitempty"`
	Defendant    string  `json:"defendant,omitempty"`
	Facts        string  `json:"facts,omitempty"`
	LegalBasis   string  `json:"legal_basis,omitempty"`
	Request      string  `json:"request,omitempty"`
	DocumentType string  `json:"document_type,omitempty" enum:"peticion,contract,appeal,motion,brief,memorandum,other"`
	Status       string  `json:"status,omitempty" enum:"draft,review,approved,filed,archived"`
	WordCount    int     `json:"word_count,omitempty" minimum:"0"`
	PagesCount   int     `json:"pages_count,omitempty" minimum:"0"`
	TemplateID   *string `json:"template_id,omitempty"`
}

type CreateTemplateRequest struct {
	ID              *string        `json:"id,omitempty"`
	Name            string         `json:"name" minLength:"1"`
	Description     string         `json:"description,omitempty"`
	DocumentType    string         `json:"document_type,omitempty" enum:"peticion,contract,appeal,motion,brief,memorandum,other"`
	TemplateContent string         `json:"template_content,omitempty"`
	Variables       map[string]any `json:"variables,omitempty"`
}

type ProcessRequest struct {
	TemplateID *string `json:"template_id,omitempty"`
	Detached   bool    `json:"detached,omitempty"`
}

// Response payloads

type ProcessResponse struct {
	engine.ProcessResult
	Task string `json:"task,omitempty"`
}

type DocumentList struct {
	Items []domain.LegalDocument `json:"items"`
}

type TemplateList struct {
	Items []domain.Template `json:"items"`
}

type ResponseList struct {
	Items []domain.WebhookResponse `json:"items"`
}

type EventList struct {
	Items []domain.Event `json:"items"`
}

type FailedWebhookList struct {
	Items []diagnostics.Entry `json:"items"`
}

type ValidationResponse = petition.Validation

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
