package repo

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"jurify/internal/domain"
)

const responseColumns = `id,legal_document_id,document_type,webhook_response_content,gerado,documento_formatado,data_geracao,user_id,created_at,updated_at`

func scanResponse(row scanner) (domain.WebhookResponse, error) {
	var w domain.WebhookResponse
	var formatted, generatedAt, userID sql.NullString
	err := row.Scan(&w.ID, &w.LegalDocumentID, &w.DocumentType, &w.WebhookResponseContent, &w.Gerado,
		&formatted, &generatedAt, &userID, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	w.DocumentoFormatado = ptrFromNull(formatted)
	w.DataGeracao = ptrFromNull(generatedAt)
	w.UserID = ptrFromNull(userID)
	return w, err
}

// CreateResponse stores a freshly normalized webhook response. Gerado is always stored as false.
func (r Repo) CreateResponse(ctx context.Context, tx *sql.Tx, w domain.WebhookResponse) error {
	_, err := r.exec(ctx, tx, `INSERT INTO webhook_responses(id,legal_document_id,document_type,webhook_response_content,gerado,user_id,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		w.ID, w.LegalDocumentID, w.DocumentType, w.WebhookResponseContent, boolToInt(false), nullableStringPtr(w.UserID), w.CreatedAt, w.UpdatedAt)
	return err
}

func (r Repo) GetResponse(ctx context.Context, id string) (domain.WebhookResponse, error) {
	return scanResponse(r.DB.QueryRowContext(ctx, r.q(`SELECT `+responseColumns+` FROM webhook_responses WHERE id=?`), id))
}

// MarkGenerated records the formatted document. The update only applies while
// gerado is false, so a record is generated at most once even under concurrent callers.
func (r Repo) MarkGenerated(ctx context.Context, tx *sql.Tx, id, formatted, generatedAt string) error {
	res, err := r.exec(ctx, tx, `UPDATE webhook_responses SET gerado=?, documento_formatado=?, data_geracao=?, updated_at=? WHERE id=? AND gerado=?`,
		boolToInt(true), formatted, generatedAt, generatedAt, id, boolToInt(false))
	if err != nil {
		return err
	}
	if ok, err := applied(res); err != nil || ok {
		return err
	}
	var gerado bool
	query := r.q(`SELECT gerado FROM webhook_responses WHERE id=?`)
	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, query, id)
	} else {
		row = r.DB.QueryRowContext(ctx, query, id)
	}
	if err := row.Scan(&gerado); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	return ErrAlreadyGenerated
}

// applied reports whether an update touched any row.
func applied(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

func (r Repo) ListResponsesByDocument(ctx context.Context, documentID string) ([]domain.WebhookResponse, error) {
	return r.listResponses(ctx, `SELECT `+responseColumns+` FROM webhook_responses WHERE legal_document_id=? ORDER BY created_at DESC, id DESC`, documentID)
}

// ListResponses returns the newest responses first; limit <= 0 returns all.
func (r Repo) ListResponses(ctx context.Context, limit int) ([]domain.WebhookResponse, error) {
	query := `SELECT ` + responseColumns + ` FROM webhook_responses ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		return r.listResponses(ctx, query+` LIMIT ?`, limit)
	}
	return r.listResponses(ctx, query)
}

func (r Repo) listResponses(ctx context.Context, query string, args ...any) ([]domain.WebhookResponse, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WebhookResponse
	for rows.Next() {
		w, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}
