package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// pq error code for unique_violation.
const uniqueViolation = "23505"

type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects and verifies the connection. tls toggles
// sslmode=require on the DSN.
func OpenPostgres(host string, port int, user, password, dbname string, tls bool) (*Postgres, error) {
	sslmode := "disable"
	if tls {
		sslmode = "require"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			identity     TEXT PRIMARY KEY,
			digest       TEXT NOT NULL,
			profile_blob TEXT NOT NULL DEFAULT '',
			job_blob     TEXT NOT NULL DEFAULT '',
			goals_blob   TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS interactions (
			sequence      BIGSERIAL PRIMARY KEY,
			identity      TEXT NOT NULL REFERENCES users (identity),
			session_group TEXT NOT NULL,
			query         TEXT NOT NULL,
			response      TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		// Columns that arrived after the first schema version; no-ops on a
		// fresh database.
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS goals_blob TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE interactions ADD COLUMN IF NOT EXISTS session_group TEXT NOT NULL DEFAULT ''`,
		`CREATE INDEX IF NOT EXISTS interactions_identity_group_idx
			ON interactions (identity, session_group, sequence)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) CreateUser(ctx context.Context, identity, digest string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO users (identity, digest) VALUES ($1, $2)`, identity, digest)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateIdentity
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (p *Postgres) Authenticate(ctx context.Context, identity, digest string) (UserRecord, error) {
	rec := UserRecord{Identity: identity}
	err := p.db.QueryRowContext(ctx,
		`SELECT profile_blob, job_blob, goals_blob FROM users WHERE identity = $1 AND digest = $2`,
		identity, digest,
	).Scan(&rec.Profile, &rec.Job, &rec.Goals)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, ErrInvalidCredential
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("authenticate: %w", err)
	}
	return rec, nil
}

func (p *Postgres) UpdateProfile(ctx context.Context, identity, blob string) error {
	return p.updateBlob(ctx, "profile_blob", identity, blob)
}

func (p *Postgres) UpdateJob(ctx context.Context, identity, blob string) error {
	return p.updateBlob(ctx, "job_blob", identity, blob)
}

func (p *Postgres) UpdateGoals(ctx context.Context, identity, blob string) error {
	return p.updateBlob(ctx, "goals_blob", identity, blob)
}

func (p *Postgres) updateBlob(ctx context.Context, column, identity, blob string) error {
	// column comes from the three fixed callers above, never from input.
	q := fmt.Sprintf(`UPDATE users SET %s = $2 WHERE identity = $1`, column)
	if _, err := p.db.ExecContext(ctx, q, identity, blob); err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	return nil
}

func (p *Postgres) AppendInteraction(ctx context.Context, identity, group, query, response string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO interactions (identity, session_group, query, response) VALUES ($1, $2, $3, $4)`,
		identity, group, query, response)
	if err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	return nil
}

func (p *Postgres) ListSessionGroups(ctx context.Context, identity string) ([]SessionGroup, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT session_group, query, created_at FROM (
			SELECT session_group, query, created_at,
			       ROW_NUMBER() OVER (PARTITION BY session_group ORDER BY sequence ASC) AS rn
			FROM interactions WHERE identity = $1
		) t WHERE rn = 1
		ORDER BY created_at DESC`, identity)
	if err != nil {
		return nil, fmt.Errorf("list session groups: %w", err)
	}
	defer rows.Close()

	var groups []SessionGroup
	for rows.Next() {
		var g SessionGroup
		if err := rows.Scan(&g.Group, &g.FirstQuery, &g.StartedAt); err != nil {
			return nil, fmt.Errorf("scan session group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list session groups: %w", err)
	}
	return groups, nil
}

func (p *Postgres) LoadSession(ctx context.Context, identity, group string) ([]Interaction, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT sequence, query, response, created_at
		 FROM interactions WHERE identity = $1 AND session_group = $2
		 ORDER BY sequence ASC`, identity, group)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	defer rows.Close()

	var turns []Interaction
	for rows.Next() {
		it := Interaction{Identity: identity, Group: group}
		if err := rows.Scan(&it.Sequence, &it.Query, &it.Response, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		turns = append(turns, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return turns, nil
}

func (p *Postgres) CountInteractionsSince(ctx context.Context, since time.Time) (int, int, error) {
	var turns, users int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT identity) FROM interactions WHERE created_at >= $1`,
		since,
	).Scan(&turns, &users)
	if err != nil {
		return 0, 0, fmt.Errorf("count interactions: %w", err)
	}
	return turns, users, nil
}

func (p *Postgres) Close() error { return p.db.Close() }
