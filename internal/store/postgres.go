package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mohammad-safakhou/researcher/internal/knowledge"
)

// Postgres stores agents in two tables: agents and agent_records. Record order
// within a scope follows the agent_records sequence.
type Postgres struct {
	DB *sql.DB
}

// OpenPostgres connects and pings the database.
func OpenPostgres(ctx context.Context, dsn string, timeout time.Duration) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{DB: db}, nil
}

func (p *Postgres) Close() error { return p.DB.Close() }

func (p *Postgres) Create(ctx context.Context, name string, files []knowledge.Record) (Agent, error) {
	a := newAgent(name, files)
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return Agent{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO agents (id, name, revision, created_at) VALUES ($1,$2,$3,$4)`,
		a.ID, a.Name, a.Revision, a.CreatedAt)
	if err != nil {
		return Agent{}, fmt.Errorf("insert agent: %w", err)
	}
	if err := insertRecords(ctx, tx, a.ID, knowledge.ScopeFiles, files); err != nil {
		return Agent{}, err
	}
	if err := tx.Commit(); err != nil {
		return Agent{}, fmt.Errorf("commit: %w", err)
	}
	return a, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (Agent, error) {
	if err := ValidateID(id); err != nil {
		return Agent{}, err
	}
	a := Agent{ID: id, Files: []knowledge.Record{}, Websites: []knowledge.Record{}}
	var messages pq.StringArray
	err := p.DB.QueryRowContext(ctx, `SELECT name, messages, revision, created_at FROM agents WHERE id=$1`, id).
		Scan(&a.Name, &messages, &a.Revision, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	if err != nil {
		return Agent{}, fmt.Errorf("select agent: %w", err)
	}
	a.Messages = append([]string{}, messages...)

	rows, err := p.DB.QueryContext(ctx, `SELECT scope, name, text, tokens FROM agent_records WHERE agent_id=$1 ORDER BY seq`, id)
	if err != nil {
		return Agent{}, fmt.Errorf("select records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			scope string
			r     knowledge.Record
		)
		if err := rows.Scan(&scope, &r.Name, &r.Text, &r.Tokens); err != nil {
			return Agent{}, fmt.Errorf("scan record: %w", err)
		}
		switch knowledge.Scope(scope) {
		case knowledge.ScopeFiles:
			a.Files = append(a.Files, r)
		case knowledge.ScopeWebsites:
			a.Websites = append(a.Websites, r)
		}
	}
	if err := rows.Err(); err != nil {
		return Agent{}, fmt.Errorf("iterate records: %w", err)
	}
	return a, nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if _, err := p.DB.ExecContext(ctx, `DELETE FROM agents WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	return nil
}

func (p *Postgres) AppendFiles(ctx context.Context, id string, records []knowledge.Record, expectedRevision int64) error {
	return p.appendRecords(ctx, id, knowledge.ScopeFiles, records, expectedRevision)
}

func (p *Postgres) AppendWebsites(ctx context.Context, id string, records []knowledge.Record, expectedRevision int64) error {
	return p.appendRecords(ctx, id, knowledge.ScopeWebsites, records, expectedRevision)
}

func (p *Postgres) AppendMessage(ctx context.Context, id string, text string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	res, err := p.DB.ExecContext(ctx, `UPDATE agents SET messages = array_append(messages, $2) WHERE id=$1`, id, text)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// appendRecords bumps the revision guarded by the expected value, which also
// locks the agent row until the records are inserted.
func (p *Postgres) appendRecords(ctx context.Context, id string, scope knowledge.Scope, records []knowledge.Record, expectedRevision int64) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE agents SET revision = revision + 1 WHERE id=$1 AND revision=$2`, id, expectedRevision)
	if err != nil {
		return fmt.Errorf("bump revision: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump revision: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM agents WHERE id=$1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check agent: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	if err := insertRecords(ctx, tx, id, scope, records); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, id string, scope knowledge.Scope, records []knowledge.Record) error {
	for _, r := range records {
		_, err := tx.ExecContext(ctx, `INSERT INTO agent_records (agent_id, scope, name, text, tokens) VALUES ($1,$2,$3,$4,$5)`,
			id, string(scope), r.Name, r.Text, r.Tokens)
		if err != nil {
			return fmt.Errorf("insert %s record %s: %w", scope, r.Name, err)
		}
	}
	return nil
}
