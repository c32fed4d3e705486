package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/mohammad-safakhou/researcher/internal/knowledge"
)

func TestPostgresCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Postgres{DB: db}
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO agents (id, name, revision, created_at) VALUES ($1,$2,$3,$4)`)).
		WithArgs(sqlmock.AnyArg(), "Scout", int64(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO agent_records (agent_id, scope, name, text, tokens) VALUES ($1,$2,$3,$4,$5)`)).
		WithArgs(sqlmock.AnyArg(), "files", "a.pdf", "alpha", 5).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	a, err := st.Create(context.Background(), "Scout", []knowledge.Record{{Name: "a.pdf", Text: "alpha", Tokens: 5}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := uuid.Parse(a.ID); err != nil {
		t.Fatalf("expected uuid id, got %q", a.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Postgres{DB: db}
	id := uuid.NewString()
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name, messages, revision, created_at FROM agents WHERE id=$1`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"name", "messages", "revision", "created_at"}).
			AddRow("Scout", "{hello,\"second question\"}", int64(3), now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT scope, name, text, tokens FROM agent_records WHERE agent_id=$1 ORDER BY seq`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"scope", "name", "text", "tokens"}).
			AddRow("files", "a.pdf", "alpha", 5).
			AddRow("websites", "https://x.example", "site", 7).
			AddRow("files", "b.docx", "beta", 2))

	a, err := st.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a.Name != "Scout" || a.Revision != 3 {
		t.Fatalf("unexpected agent %#v", a)
	}
	if len(a.Messages) != 2 || a.Messages[1] != "second question" {
		t.Fatalf("unexpected messages %#v", a.Messages)
	}
	if len(a.Files) != 2 || a.Files[1].Name != "b.docx" || len(a.Websites) != 1 {
		t.Fatalf("unexpected records %#v / %#v", a.Files, a.Websites)
	}
	if a.TotalTokens() != 14 {
		t.Fatalf("unexpected total %d", a.TotalTokens())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Postgres{DB: db}
	id := uuid.NewString()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name, messages, revision, created_at FROM agents WHERE id=$1`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"name", "messages", "revision", "created_at"}))

	if _, err := st.Get(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresInvalidIDSkipsQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Postgres{DB: db}
	var invalid *ErrInvalidIdentifier
	if _, err := st.Get(context.Background(), "nope"); !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
	if err := st.Delete(context.Background(), "nope"); !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresAppendFiles(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Postgres{DB: db}
	id := uuid.NewString()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE agents SET revision = revision + 1 WHERE id=$1 AND revision=$2`)).
		WithArgs(id, int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	insert := regexp.QuoteMeta(`INSERT INTO agent_records (agent_id, scope, name, text, tokens) VALUES ($1,$2,$3,$4,$5)`)
	mock.ExpectExec(insert).WithArgs(id, "files", "a.pdf", "alpha", 5).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insert).WithArgs(id, "files", "b.pdf", "beta", 6).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	records := []knowledge.Record{{Name: "a.pdf", Text: "alpha", Tokens: 5}, {Name: "b.pdf", Text: "beta", Tokens: 6}}
	if err := st.AppendFiles(context.Background(), id, records, 2); err != nil {
		t.Fatalf("AppendFiles: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresAppendWebsitesStaleRevision(t *testing.T) {
	cases := []struct {
		name   string
		exists bool
		want   error
	}{
		{"conflict", true, ErrConflict},
		{"missing", false, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("sqlmock.New: %v", err)
			}
			defer db.Close()

			st := &Postgres{DB: db}
			id := uuid.NewString()
			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta(`UPDATE agents SET revision = revision + 1 WHERE id=$1 AND revision=$2`)).
				WithArgs(id, int64(1)).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM agents WHERE id=$1)`)).
				WithArgs(id).
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tc.exists))
			mock.ExpectRollback()

			err = st.AppendWebsites(context.Background(), id, []knowledge.Record{{Name: "https://x", Text: "x", Tokens: 1}}, 1)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("expectations: %v", err)
			}
		})
	}
}

func TestPostgresAppendMessage(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Postgres{DB: db}
	id := uuid.NewString()
	query := regexp.QuoteMeta(`UPDATE agents SET messages = array_append(messages, $2) WHERE id=$1`)
	mock.ExpectExec(query).WithArgs(id, "what is new?").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs(id, "again").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := st.AppendMessage(context.Background(), id, "what is new?"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := st.AppendMessage(context.Background(), id, "again"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Postgres{DB: db}
	id := uuid.NewString()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM agents WHERE id=$1`)).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := st.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
