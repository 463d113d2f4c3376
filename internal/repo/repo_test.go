package repo

import (
	"context"
	"database/sql"
	"testing"

	"github.com/cockroachdb/errors"

	"jurify/internal/db"
	"jurify/internal/domain"
	"jurify/internal/events"
	"jurify/internal/migrate"
)

func setupRepo(t *testing.T) Repo {
	t.Helper()
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn, dialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return Repo{DB: conn, Dialect: dialect}
}

func seedDocument(t *testing.T, r Repo, id string) domain.LegalDocument {
	t.Helper()
	d := domain.LegalDocument{
		ID:           id,
		Title:        "Ação de danos morais",
		Content:      "conteudo",
		Plaintiff:    "Maria",
		Defendant:    "Banco X",
		DocumentType: domain.DocumentPeticion,
		Status:       domain.StatusDraft,
		WordCount:    1,
		PagesCount:   1,
		CreatedAt:    "2025-01-01T00:00:00Z",
	}
	if err := r.InsertDocument(context.Background(), nil, d); err != nil {
		t.Fatalf("insert document: %v", err)
	}
	return d
}

func TestDocumentRoundTrip(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	tmpl := domain.Template{
		ID:           "tpl-1",
		Name:         "Petição padrão",
		DocumentType: domain.DocumentPeticion,
		Variables:    map[string]any{"comarca": "São Paulo"},
		CreatedAt:    "2025-01-01T00:00:00Z",
	}
	if err := r.InsertTemplate(ctx, nil, tmpl); err != nil {
		t.Fatalf("insert template: %v", err)
	}
	d := seedDocument(t, r, "doc-1")
	got, err := r.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got.Title != d.Title || got.Plaintiff != "Maria" || got.TemplateID != nil {
		t.Fatalf("unexpected document: %+v", got)
	}
	gotTmpl, err := r.GetTemplate(ctx, "tpl-1")
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if gotTmpl.Variables["comarca"] != "São Paulo" {
		t.Fatalf("variables lost: %+v", gotTmpl.Variables)
	}
	if _, err := r.GetDocument(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	docs, err := r.ListDocuments(ctx, 0)
	if err != nil || len(docs) != 1 {
		t.Fatalf("list documents: %v %d", err, len(docs))
	}
}

func TestMarkGeneratedOnlyOnce(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	seedDocument(t, r, "doc-1")
	rec := domain.WebhookResponse{
		ID:                     "resp-1",
		LegalDocumentID:        "doc-1",
		DocumentType:           "peticion",
		WebhookResponseContent: `{"peticao_inicial":{"autor":"Maria"}}`,
		Gerado:                 true,
		CreatedAt:              "2025-01-01T00:00:00Z",
		UpdatedAt:              "2025-01-01T00:00:00Z",
	}
	if err := r.CreateResponse(ctx, nil, rec); err != nil {
		t.Fatalf("create response: %v", err)
	}
	got, err := r.GetResponse(ctx, "resp-1")
	if err != nil {
		t.Fatalf("get response: %v", err)
	}
	if got.Gerado || got.DocumentoFormatado != nil {
		t.Fatalf("new response must not be generated: %+v", got)
	}

	if err := r.MarkGenerated(ctx, nil, "resp-1", "texto", "2025-01-02T00:00:00Z"); err != nil {
		t.Fatalf("mark generated: %v", err)
	}
	if err := r.MarkGenerated(ctx, nil, "resp-1", "outro", "2025-01-03T00:00:00Z"); !errors.Is(err, ErrAlreadyGenerated) {
		t.Fatalf("expected ErrAlreadyGenerated, got %v", err)
	}
	if err := r.MarkGenerated(ctx, nil, "missing", "x", "2025-01-03T00:00:00Z"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	got, err = r.GetResponse(ctx, "resp-1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Gerado || got.DocumentoFormatado == nil || *got.DocumentoFormatado != "texto" {
		t.Fatalf("unexpected generated state: %+v", got)
	}
	if got.DataGeracao == nil || *got.DataGeracao != "2025-01-02T00:00:00Z" {
		t.Fatalf("data_geracao = %v", got.DataGeracao)
	}

	byDoc, err := r.ListResponsesByDocument(ctx, "doc-1")
	if err != nil || len(byDoc) != 1 {
		t.Fatalf("list by document: %v %d", err, len(byDoc))
	}
}

type rowsResult struct {
	n   int64
	err error
}

func (r rowsResult) LastInsertId() (int64, error) { return 0, nil }
func (r rowsResult) RowsAffected() (int64, error) { return r.n, r.err }

var _ sql.Result = rowsResult{}

func TestAppliedReportsRowsAffectedError(t *testing.T) {
	driverErr := errors.New("rows affected not supported")
	ok, err := applied(rowsResult{err: driverErr})
	if ok || !errors.Is(err, driverErr) {
		t.Fatalf("applied = %v, %v; want false and the driver error", ok, err)
	}
	if ok, err := applied(rowsResult{n: 1}); !ok || err != nil {
		t.Fatalf("applied(1 row) = %v, %v", ok, err)
	}
	if ok, err := applied(rowsResult{}); ok || err != nil {
		t.Fatalf("applied(0 rows) = %v, %v", ok, err)
	}
}

func TestLatestEventsFilters(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	w := events.Writer{DB: r.DB, Dialect: r.Dialect}
	if err := w.Append(ctx, nil, events.DocumentCreated, "document", "doc-1", "local-user", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Append(ctx, nil, events.WebhookFailed, "document", "doc-2", "local-user", events.EventPayload{"kind": "timeout"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	all, err := r.LatestEvents(ctx, 10, "", "")
	if err != nil || len(all) != 2 {
		t.Fatalf("latest: %v %d", err, len(all))
	}
	failed, err := r.LatestEvents(ctx, 10, events.WebhookFailed, "")
	if err != nil || len(failed) != 1 || failed[0].EntityID != "doc-2" {
		t.Fatalf("filtered: %v %+v", err, failed)
	}
}
