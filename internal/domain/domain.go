package domain

import "strings"

// DocumentType enumerates the kinds of legal documents.
type DocumentType string

const (
	DocumentPeticion   DocumentType = "peticion"
	DocumentContract   DocumentType = "contract"
	DocumentAppeal     DocumentType = "appeal"
	DocumentMotion     DocumentType = "motion"
	DocumentBrief      DocumentType = "brief"
	DocumentMemorandum DocumentType = "memorandum"
	DocumentOther      DocumentType = "other"
)

var documentTypes = []DocumentType{
	DocumentPeticion, DocumentContract, DocumentAppeal, DocumentMotion,
	DocumentBrief, DocumentMemorandum, DocumentOther,
}

func (t DocumentType) Valid() bool {
	for _, v := range documentTypes {
		if v == t {
			return true
		}
	}
	return false
}

// DocumentStatus enumerates the review states of a legal document.
type DocumentStatus string

const (
	StatusDraft    DocumentStatus = "draft"
	StatusReview   DocumentStatus = "review"
	StatusApproved DocumentStatus = "approved"
	StatusFiled    DocumentStatus = "filed"
	StatusArchived DocumentStatus = "archived"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusReview, StatusApproved, StatusFiled, StatusArchived:
		return true
	}
	return false
}

type LegalDocument struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	ActionType   string         `json:"action_type"`
	Plaintiff    string         `json:"plaintiff"`
	Defendant    string         `json:"defendant"`
	Facts        string         `json:"facts"`
	LegalBasis   string         `json:"legal_basis"`
	Request      string         `json:"request"`
	DocumentType DocumentType   `json:"document_type" enum:"peticion,contract,appeal,motion,brief,memorandum,other"`
	Status       DocumentStatus `json:"status" enum:"draft,review,approved,filed,archived"`
	WordCount    int            `json:"word_count"`
	PagesCount   int            `json:"pages_count"`
	TemplateID   *string        `json:"template_id,omitempty"`
	CreatedAt    string         `json:"created_at" format:"date-time"`
}

type Template struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	DocumentType    DocumentType   `json:"document_type"`
	TemplateContent string         `json:"template_content,omitempty"`
	Variables       map[string]any `json:"variables,omitempty"`
	CreatedAt       string         `json:"created_at" format:"date-time"`
}

// WebhookResponse is one persisted AI-processing result and its generation state.
type WebhookResponse struct {
	ID                     string  `json:"id"`
	LegalDocumentID        string  `json:"legal_document_id"`
	DocumentType           string  `json:"document_type"`
	WebhookResponseContent string  `json:"webhook_response_content"`
	Gerado                 bool    `json:"gerado"`
	DocumentoFormatado     *string `json:"documento_formatado,omitempty"`
	DataGeracao            *string `json:"data_geracao,omitempty" format:"date-time"`
	UserID                 *string `json:"user_id,omitempty"`
	CreatedAt              string  `json:"created_at" format:"date-time"`
	UpdatedAt              string  `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         string `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

const wordsPerPage = 250

// EstimateWordCount counts whitespace separated tokens.
func EstimateWordCount(text string) int {
	return len(strings.Fields(text))
}

// EstimatePageCount assumes roughly 250 words per page, never less than one page.
func EstimatePageCount(text string) int {
	words := EstimateWordCount(text)
	pages := (words + wordsPerPage - 1) / wordsPerPage
	if pages < 1 {
		return 1
	}
	return pages
}
