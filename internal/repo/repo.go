package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"

	"jurify/internal/db"
	"jurify/internal/domain"
)

// Repo is the SQL-backed persistence gateway.
type Repo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyGenerated = errors.New("documento já foi gerado para esta petição")
)

func (r Repo) q(query string) string {
	return db.Rebind(r.Dialect, query)
}

func (r Repo) exec(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	if tx != nil {
		return tx.ExecContext(ctx, r.q(query), args...)
	}
	return r.DB.ExecContext(ctx, r.q(query), args...)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return nullable(*v)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func ptrFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

const documentColumns = `id,title,COALESCE(content,''),COALESCE(action_type,''),COALESCE(plaintiff,''),COALESCE(defendant,''),COALESCE(facts,''),COALESCE(legal_basis,''),COALESCE(request,''),document_type,status,word_count,pages_count,template_id,created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (domain.LegalDocument, error) {
	var d domain.LegalDocument
	var templateID sql.NullString
	err := row.Scan(&d.ID, &d.Title, &d.Content, &d.ActionType, &d.Plaintiff, &d.Defendant, &d.Facts,
		&d.LegalBasis, &d.Request, &d.DocumentType, &d.Status, &d.WordCount, &d.PagesCount, &templateID, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	d.TemplateID = ptrFromNull(templateID)
	return d, err
}

func (r Repo) InsertDocument(ctx context.Context, tx *sql.Tx, d domain.LegalDocument) error {
	_, err := r.exec(ctx, tx, `INSERT INTO legal_documents(id,title,content,action_type,plaintiff,defendant,facts,legal_basis,request,document_type,status,word_count,pages_count,template_id,created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.Title, nullable(d.Content), nullable(d.ActionType), nullable(d.Plaintiff), nullable(d.Defendant),
		nullable(d.Facts), nullable(d.LegalBasis), nullable(d.Request), string(d.DocumentType), string(d.Status),
		d.WordCount, d.PagesCount, nullableStringPtr(d.TemplateID), d.CreatedAt)
	return err
}

func (r Repo) GetDocument(ctx context.Context, id string) (domain.LegalDocument, error) {
	return scanDocument(r.DB.QueryRowContext(ctx, r.q(`SELECT `+documentColumns+` FROM legal_documents WHERE id=?`), id))
}

func (r Repo) ListDocuments(ctx context.Context, limit int) ([]domain.LegalDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM legal_documents ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.LegalDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func scanTemplate(row scanner) (domain.Template, error) {
	var t domain.Template
	var vars string
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.DocumentType, &t.TemplateContent, &vars, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if strings.TrimSpace(vars) != "" {
		if err := json.Unmarshal([]byte(vars), &t.Variables); err != nil {
			return t, errors.Wrapf(err, "template %s variables", t.ID)
		}
	}
	return t, nil
}

const templateColumns = `id,name,COALESCE(description,''),document_type,COALESCE(template_content,''),COALESCE(variables_json,''),created_at`

func (r Repo) InsertTemplate(ctx context.Context, tx *sql.Tx, t domain.Template) error {
	var vars any
	if len(t.Variables) > 0 {
		b, err := json.Marshal(t.Variables)
		if err != nil {
			return errors.Wrap(err, "marshal template variables")
		}
		vars = string(b)
	}
	_, err := r.exec(ctx, tx, `INSERT INTO templates(id,name,description,document_type,template_content,variables_json,created_at) VALUES (?,?,?,?,?,?,?)`,
		t.ID, t.Name, nullable(t.Description), string(t.DocumentType), nullable(t.TemplateContent), vars, t.CreatedAt)
	return err
}

func (r Repo) GetTemplate(ctx context.Context, id string) (domain.Template, error) {
	return scanTemplate(r.DB.QueryRowContext(ctx, r.q(`SELECT `+templateColumns+` FROM templates WHERE id=?`), id))
}

func (r Repo) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+templateColumns+` FROM templates ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// LatestEvents returns the newest events first, optionally filtered.
func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityID string) ([]domain.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY ts DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
