package postgres

import (
	"context"
	"database/sql"
)

// ddl mirrors the SQLite schema with native Postgres types. Idempotent so the
// integration suite and fresh deployments can apply it directly.
const ddl = `
CREATE TABLE IF NOT EXISTS collectables (
    id              BIGSERIAL PRIMARY KEY,
    kind            TEXT NOT NULL,
    title           TEXT NOT NULL,
    subtitle        TEXT,
    description     TEXT,
    primary_creator TEXT,
    creators        JSONB NOT NULL DEFAULT '[]',
    publishers      JSONB NOT NULL DEFAULT '[]',
    release_year    INT,
    formats         JSONB NOT NULL DEFAULT '[]',
    tags            JSONB NOT NULL DEFAULT '[]',
    identifiers     JSONB NOT NULL DEFAULT '{}',
    images          JSONB NOT NULL DEFAULT '[]',
    cover_url       TEXT,
    cover_path      TEXT,
    sources         JSONB NOT NULL DEFAULT '[]',
    exact_fp        TEXT UNIQUE,
    light_fp        TEXT NOT NULL,
    fuzzy_fps       JSONB NOT NULL DEFAULT '[]',
    external_id     TEXT,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_collectables_light_fp ON collectables (light_fp);
CREATE INDEX IF NOT EXISTS idx_collectables_kind ON collectables (kind);

CREATE TABLE IF NOT EXISTS event_aggregates (
    aggregate_id  TEXT PRIMARY KEY,
    owner_id      TEXT NOT NULL,
    context_id    TEXT,
    kind          TEXT NOT NULL,
    visibility    TEXT NOT NULL DEFAULT 'public',
    window_start  TIMESTAMPTZ NOT NULL,
    window_end    TIMESTAMPTZ NOT NULL,
    item_count    INT NOT NULL DEFAULT 0,
    previews      JSONB NOT NULL DEFAULT '[]',
    last_activity TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_aggregates_key
    ON event_aggregates (owner_id, context_id, kind, window_end DESC);
CREATE INDEX IF NOT EXISTS idx_aggregates_activity
    ON event_aggregates (last_activity DESC);

CREATE TABLE IF NOT EXISTS event_log (
    entry_id     TEXT PRIMARY KEY,
    owner_id     TEXT,
    context_id   TEXT,
    kind         TEXT NOT NULL,
    aggregate_id TEXT,
    payload      JSONB,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_event_log_aggregate ON event_log (aggregate_id);

CREATE TABLE IF NOT EXISTS aggregate_likes (
    aggregate_id TEXT NOT NULL,
    owner_id     TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (aggregate_id, owner_id)
);

CREATE TABLE IF NOT EXISTS aggregate_comments (
    comment_id   TEXT PRIMARY KEY,
    aggregate_id TEXT NOT NULL,
    owner_id     TEXT NOT NULL,
    body         TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_comments_aggregate
    ON aggregate_comments (aggregate_id, created_at DESC);

CREATE TABLE IF NOT EXISTS friendships (
    owner_id   TEXT NOT NULL,
    friend_id  TEXT NOT NULL,
    status     TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (owner_id, friend_id)
);

CREATE TABLE IF NOT EXISTS discovery_seen (
    viewer_id TEXT NOT NULL,
    item_id   TEXT NOT NULL,
    seen_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (viewer_id, item_id)
);
`

// EnsureSchema applies the schema to db.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, ddl)
	return err
}

// Bootstrap verifies Postgres is reachable and the schema exists.
func Bootstrap(ctx context.Context, dsn string) error {
	if dsn == "" {
		return nil
	}
	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return EnsureSchema(ctx, db)
}
