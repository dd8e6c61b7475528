package sqlite

import (
	"context"
	"database/sql"
)

// ddl is the full schema, idempotent so local mode can apply it at startup.
const ddl = `
CREATE TABLE IF NOT EXISTS collectables (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    kind            TEXT NOT NULL,
    title           TEXT NOT NULL,
    subtitle        TEXT,
    description     TEXT,
    primary_creator TEXT,
    creators        TEXT NOT NULL DEFAULT '[]',
    publishers      TEXT NOT NULL DEFAULT '[]',
    release_year    INTEGER,
    formats         TEXT NOT NULL DEFAULT '[]',
    tags            TEXT NOT NULL DEFAULT '[]',
    identifiers     TEXT NOT NULL DEFAULT '{}',
    images          TEXT NOT NULL DEFAULT '[]',
    cover_url       TEXT,
    cover_path      TEXT,
    sources         TEXT NOT NULL DEFAULT '[]',
    exact_fp        TEXT UNIQUE,
    light_fp        TEXT NOT NULL,
    fuzzy_fps       TEXT NOT NULL DEFAULT '[]',
    external_id     TEXT,
    created_at      TIMESTAMP NOT NULL,
    updated_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_collectables_light_fp ON collectables(light_fp);
CREATE INDEX IF NOT EXISTS idx_collectables_kind ON collectables(kind);

CREATE TABLE IF NOT EXISTS event_aggregates (
    aggregate_id  TEXT PRIMARY KEY,
    owner_id      TEXT NOT NULL,
    context_id    TEXT,
    kind          TEXT NOT NULL,
    visibility    TEXT NOT NULL DEFAULT 'public',
    window_start  TIMESTAMP NOT NULL,
    window_end    TIMESTAMP NOT NULL,
    item_count    INTEGER NOT NULL DEFAULT 0,
    previews      TEXT NOT NULL DEFAULT '[]',
    last_activity TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_aggregates_key
    ON event_aggregates(owner_id, context_id, kind, window_end);
CREATE INDEX IF NOT EXISTS idx_aggregates_activity
    ON event_aggregates(last_activity);

CREATE TABLE IF NOT EXISTS event_log (
    entry_id     TEXT PRIMARY KEY,
    owner_id     TEXT,
    context_id   TEXT,
    kind         TEXT NOT NULL,
    aggregate_id TEXT,
    payload      TEXT,
    created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_event_log_aggregate ON event_log(aggregate_id);

CREATE TABLE IF NOT EXISTS aggregate_likes (
    aggregate_id TEXT NOT NULL,
    owner_id     TEXT NOT NULL,
    created_at   TIMESTAMP NOT NULL,
    PRIMARY KEY (aggregate_id, owner_id)
);

CREATE TABLE IF NOT EXISTS aggregate_comments (
    comment_id   TEXT PRIMARY KEY,
    aggregate_id TEXT NOT NULL,
    owner_id     TEXT NOT NULL,
    body         TEXT NOT NULL,
    created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comments_aggregate
    ON aggregate_comments(aggregate_id, created_at);

CREATE TABLE IF NOT EXISTS friendships (
    owner_id   TEXT NOT NULL,
    friend_id  TEXT NOT NULL,
    status     TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (owner_id, friend_id)
);

CREATE TABLE IF NOT EXISTS discovery_seen (
    viewer_id TEXT NOT NULL,
    item_id   TEXT NOT NULL,
    seen_at   TIMESTAMP NOT NULL,
    PRIMARY KEY (viewer_id, item_id)
);
`

// EnsureSchema applies the schema to db.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, ddl)
	return err
}
