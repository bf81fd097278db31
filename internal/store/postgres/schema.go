package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS queue_ledgers (
	visit_date          TEXT NOT NULL,
	queue_type          TEXT NOT NULL,
	last_issued_number  INTEGER NOT NULL DEFAULT 0,
	current_number      INTEGER NOT NULL DEFAULT 0,
	avg_service_minutes DOUBLE PRECISION NOT NULL,
	queue_status        TEXT NOT NULL DEFAULT 'OPEN',
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL,
	updated_by          TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (visit_date, queue_type)
);

CREATE TABLE IF NOT EXISTS tickets (
	visit_date    TEXT NOT NULL,
	queue_type    TEXT NOT NULL,
	ticket_number INTEGER NOT NULL,
	ticket_code   TEXT NOT NULL,
	status        TEXT NOT NULL,
	issued_at     TIMESTAMPTZ NOT NULL,
	called_at     TIMESTAMPTZ,
	completed_at  TIMESTAMPTZ,
	missed_at     TIMESTAMPTZ,
	cancelled_at  TIMESTAMPTZ,
	user_id       TEXT NOT NULL,
	patient_name  TEXT NOT NULL,
	patient_phone TEXT NOT NULL,
	national_id   TEXT,
	reissue_count INTEGER NOT NULL DEFAULT 0,
	reissued_from TEXT,
	notes         TEXT,
	PRIMARY KEY (visit_date, queue_type, ticket_number)
);

CREATE INDEX IF NOT EXISTS tickets_user_date_idx ON tickets (user_id, visit_date);

CREATE TABLE IF NOT EXISTS patients (
	user_id      TEXT PRIMARY KEY,
	full_name    TEXT NOT NULL,
	phone_number TEXT NOT NULL,
	national_id  TEXT,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	audit_id      TEXT PRIMARY KEY,
	action        TEXT NOT NULL,
	actor_id      TEXT NOT NULL,
	queue_id      TEXT NOT NULL,
	ticket_number INTEGER,
	details_json  JSONB,
	created_at    TIMESTAMPTZ NOT NULL,
	prev_hash     TEXT NOT NULL DEFAULT '',
	hash          TEXT NOT NULL DEFAULT ''
);
`

// EnsureSchema creates the tables and indexes if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
