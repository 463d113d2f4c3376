package jurifysdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProcessSendsBodyAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/documents/doc-1/process" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body["template_id"] != "tpl-1" || body["detached"] != false {
			t.Errorf("body = %v", body)
		}
		io.WriteString(w, `{"document_id":"doc-1","notice":"processed","message":"Dados enviados com sucesso","response":{"id":"r-1","gerado":false}}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.BearerToken = "tok"
	res, err := c.Process(context.Background(), "doc-1", "tpl-1", false)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Notice != "processed" || res.Response == nil || res.Response.ID != "r-1" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAPIErrorDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error":{"code":"already_generated","message":"documento já foi gerado para esta petição"}}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Generate(context.Background(), "r-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Code != "already_generated" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestDownloadDocxReadsFilename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
		w.Header().Set("Content-Disposition", `attachment; filename=peticao_formatada_doc-1.docx`)
		io.WriteString(w, "PK")
	}))
	defer srv.Close()

	f, err := New(srv.URL).DownloadDocx(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if f.Filename != "peticao_formatada_doc-1.docx" || string(f.Data) != "PK" {
		t.Fatalf("unexpected file %+v", f)
	}
}
