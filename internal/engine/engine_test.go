package engine_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"jurify/internal/config"
	"jurify/internal/db"
	"jurify/internal/diagnostics"
	"jurify/internal/domain"
	"jurify/internal/engine"
	"jurify/internal/events"
	"jurify/internal/logging"
	"jurify/internal/migrate"
	"jurify/internal/webhook"
)

type stubSubmitter struct {
	mu       sync.Mutex
	res      webhook.Response
	payloads []webhook.Payload
}

func (s *stubSubmitter) Submit(ctx context.Context, p webhook.Payload) webhook.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, p)
	return s.res
}

type testEnv struct {
	Engine engine.Engine
	Sink   *diagnostics.FileSink
	Ctx    context.Context
}

func newTestEnv(t *testing.T, sub engine.Submitter) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, dialect, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn, dialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sink := diagnostics.NewFileSink(db.StateDir(dir), 0)
	eng := engine.New(conn, dialect, config.Default(), sub, sink, logging.Discard())
	eng.Now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return testEnv{Engine: eng, Sink: sink, Ctx: context.Background()}
}

func (env testEnv) document(t *testing.T) domain.LegalDocument {
	t.Helper()
	d, err := env.Engine.CreateDocument(env.Ctx, engine.DocumentCreateOptions{
		Title:     "Indenização por danos morais",
		Content:   strings.Repeat("palavra ", 300),
		Plaintiff: "Maria Silva",
		Defendant: "Banco Y",
		ActorID:   "tester",
	})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	return d
}

func successResponse() webhook.Response {
	return webhook.Response{
		Success: true,
		Message: "Dados enviados com sucesso",
		Data:    json.RawMessage(`{"content":"{\"peticao_inicial\":{\"autor\":\"Maria Silva\",\"reu\":\"Banco Y\"},\"valor_da_causa\":\"R$ 5.000,00\"}"}`),
	}
}

func TestCreateDocumentDefaultsAndEstimates(t *testing.T) {
	env := newTestEnv(t, &stubSubmitter{})
	d := env.document(t)
	if d.DocumentType != domain.DocumentPeticion || d.Status != domain.StatusDraft {
		t.Fatalf("defaults not applied: %+v", d)
	}
	if d.WordCount != 300 || d.PagesCount != 2 {
		t.Fatalf("estimates = %d words / %d pages", d.WordCount, d.PagesCount)
	}
	_, err := env.Engine.CreateDocument(env.Ctx, engine.DocumentCreateOptions{Title: "x", DocumentType: "poem"})
	if !errors.Is(err, engine.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	_, err = env.Engine.CreateDocument(env.Ctx, engine.DocumentCreateOptions{Title: "x", TemplateID: "missing"})
	if !engine.IsNotFound(err) {
		t.Fatalf("expected not found template, got %v", err)
	}
}

func TestProcessGenerateExport(t *testing.T) {
	sub := &stubSubmitter{res: successResponse()}
	env := newTestEnv(t, sub)
	tmpl, err := env.Engine.CreateTemplate(env.Ctx, engine.TemplateCreateOptions{Name: "Padrão", Variables: map[string]any{"uf": "SP"}})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	d := env.document(t)

	res, err := env.Engine.Process(env.Ctx, engine.ProcessOptions{DocumentID: d.ID, TemplateID: tmpl.ID, ActorID: "tester"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Notice != engine.NoticeProcessed || res.Response == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if p := sub.payloads[0]; p.Template == nil || p.Template.ID != tmpl.ID || p.Metadata.Source != "jurify-app" {
		t.Fatalf("payload not prepared: %+v", p)
	}
	rec := res.Response
	if rec.Gerado || !strings.Contains(rec.WebhookResponseContent, `"autor":"Maria Silva"`) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if _, err := env.Engine.ExportWord(env.Ctx, rec.ID, "tester"); !errors.Is(err, engine.ErrNotGenerated) {
		t.Fatalf("expected ErrNotGenerated, got %v", err)
	}
	v, err := env.Engine.Validate(env.Ctx, rec.ID)
	if err != nil || !v.Valido {
		t.Fatalf("validate: %v %+v", err, v)
	}

	gen, err := env.Engine.Generate(env.Ctx, rec.ID, "tester")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !gen.Gerado || gen.DocumentoFormatado == nil || !strings.Contains(*gen.DocumentoFormatado, "Autor: Maria Silva") {
		t.Fatalf("generation not stored: %+v", gen)
	}
	if _, err := env.Engine.Generate(env.Ctx, rec.ID, "tester"); !errors.Is(err, engine.ErrAlreadyGenerated) {
		t.Fatalf("expected ErrAlreadyGenerated, got %v", err)
	}
	again, err := env.Engine.GetResponse(env.Ctx, rec.ID)
	if err != nil || *again.DocumentoFormatado != *gen.DocumentoFormatado {
		t.Fatalf("documento_formatado changed after second generate")
	}

	out, err := env.Engine.ExportWord(env.Ctx, rec.ID, "tester")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out.Filename != "peticao_formatada_"+d.ID+".docx" || len(out.Data) == 0 {
		t.Fatalf("unexpected export: %s (%d bytes)", out.Filename, len(out.Data))
	}

	evts, err := env.Engine.LatestEvents(env.Ctx, 0, "", "")
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, e := range evts {
		seen[e.Type] = true
	}
	for _, typ := range []string{events.DocumentCreated, events.TemplateCreated, events.WebhookProcessed, events.ResponseGenerated, events.ResponseExported} {
		if !seen[typ] {
			t.Fatalf("missing event %s", typ)
		}
	}
}

func TestProcessFailureIsLoggedNotReturned(t *testing.T) {
	cases := []struct {
		kind   webhook.ErrorKind
		notice engine.Notice
	}{
		{webhook.KindTimeout, engine.NoticeTimedOut},
		{webhook.KindCORS, engine.NoticeBlockedByServer},
		{webhook.KindHTTP, engine.NoticeSavedNotProcessed},
		{webhook.KindNetwork, engine.NoticeSavedNotProcessed},
	}
	sub := &stubSubmitter{}
	env := newTestEnv(t, sub)
	d := env.document(t)
	for i, tc := range cases {
		sub.res = webhook.Response{Message: "falhou " + string(tc.kind), ErrorKind: tc.kind}
		res, err := env.Engine.Process(env.Ctx, engine.ProcessOptions{DocumentID: d.ID, ActorID: "tester"})
		if err != nil {
			t.Fatalf("%s: process returned error: %v", tc.kind, err)
		}
		if res.Notice != tc.notice || res.Response != nil {
			t.Fatalf("%s: unexpected result %+v", tc.kind, res)
		}
		entries, err := env.Engine.FailedWebhooks(env.Ctx)
		if err != nil || len(entries) != i+1 {
			t.Fatalf("failed log: %v %d", err, len(entries))
		}
		if entries[i].Error != sub.res.Message || entries[i].Payload.Document.ID != d.ID {
			t.Fatalf("unexpected entry %+v", entries[i])
		}
	}
	if _, err := env.Engine.GetDocument(env.Ctx, d.ID); err != nil {
		t.Fatalf("document must survive failures: %v", err)
	}
	responses, err := env.Engine.ListDocumentResponses(env.Ctx, d.ID)
	if err != nil || len(responses) != 0 {
		t.Fatalf("no response should be stored: %v %d", err, len(responses))
	}
}

func TestProcessUnknownDocument(t *testing.T) {
	env := newTestEnv(t, &stubSubmitter{res: successResponse()})
	if _, err := env.Engine.Process(env.Ctx, engine.ProcessOptions{DocumentID: "nope"}); !engine.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProcessDetachedThroughTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":"Linha 1\\nLinha 2"}`))
	}))
	defer srv.Close()
	tr := webhook.New(webhook.Options{URL: srv.URL, Logger: logging.Discard()})
	env := newTestEnv(t, tr)
	d := env.document(t)

	name, err := env.Engine.ProcessDetached(env.Ctx, engine.ProcessOptions{DocumentID: d.ID, ActorID: "tester"})
	if err != nil {
		t.Fatalf("detached: %v", err)
	}
	if !strings.HasPrefix(name, "webhook:"+d.ID+"-") {
		t.Fatalf("task name = %s", name)
	}
	env.Engine.Wait()

	responses, err := env.Engine.ListDocumentResponses(env.Ctx, d.ID)
	if err != nil || len(responses) != 1 {
		t.Fatalf("responses: %v %d", err, len(responses))
	}
	if responses[0].WebhookResponseContent != "Linha 1\nLinha 2" {
		t.Fatalf("content = %q", responses[0].WebhookResponseContent)
	}
}
