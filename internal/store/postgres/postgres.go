// Package postgres implements store.Store on PostgreSQL via the pgx stdlib
// driver. The aggregate write path locks the newest key row with
// SELECT ... FOR UPDATE so concurrent recorders for the same
// (owner, context, kind) serialize on the row lock.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/fTr0ut/shelvesai/internal/model"
	"github.com/fTr0ut/shelvesai/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies
// connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Collectables() store.Collectables { return &collectables{db: s.db} }
func (s *pgStore) Aggregates() store.Aggregates     { return &aggregates{db: s.db} }
func (s *pgStore) Events() store.Events             { return &events{db: s.db} }
func (s *pgStore) Social() store.Social             { return &social{db: s.db} }
func (s *pgStore) Friends() store.Friends           { return &friends{db: s.db} }
func (s *pgStore) Discovery() store.Discovery       { return &discovery{db: s.db} }

// HealthPing implements health.Pinger.
func (s *pgStore) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

// wrapConflict maps unique-constraint violations (SQLSTATE 23505) onto
// model.ErrConflict so callers can retry a racing insert as a merge-update.
func wrapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %v", model.ErrConflict, err)
	}
	return err
}

func jsonStrings(v []string) []byte {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return b
}

func jsonMap(v map[string]string) []byte {
	if v == nil {
		v = map[string]string{}
	}
	b, _ := json.Marshal(v)
	return b
}

func jsonSources(v []model.SourceRef) []byte {
	if v == nil {
		v = []model.SourceRef{}
	}
	b, _ := json.Marshal(v)
	return b
}

func jsonRaws(v []json.RawMessage) []byte {
	if v == nil {
		v = []json.RawMessage{}
	}
	b, _ := json.Marshal(v)
	return b
}

// --- Collectables ---

type collectables struct{ db *sql.DB }

const collectableCols = `id, kind, title, subtitle, description, primary_creator,
    creators, publishers, release_year, formats, tags, identifiers, images,
    cover_url, cover_path, sources, exact_fp, light_fp, fuzzy_fps, external_id,
    created_at, updated_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanCollectable(r rowScanner) (*model.Collectable, error) {
	var c model.Collectable
	var creators, publishers, formats, tags, identifiers, images, sources, fuzzy []byte
	if err := r.Scan(&c.ID, &c.Kind, &c.Title, &c.Subtitle, &c.Description, &c.PrimaryCreator,
		&creators, &publishers, &c.Year, &formats, &tags, &identifiers, &images,
		&c.CoverURL, &c.CoverPath, &sources, &c.ExactFingerprint, &c.LightFingerprint,
		&fuzzy, &c.ExternalID, &c.CreationTime, &c.UpdateTime); err != nil {
		return nil, err
	}
	if err := firstErr(
		json.Unmarshal(creators, &c.Creators),
		json.Unmarshal(publishers, &c.Publishers),
		json.Unmarshal(formats, &c.Formats),
		json.Unmarshal(tags, &c.Tags),
		json.Unmarshal(images, &c.Images),
		json.Unmarshal(fuzzy, &c.FuzzyFingerprints),
		json.Unmarshal(identifiers, &c.Identifiers),
		json.Unmarshal(sources, &c.Sources),
	); err != nil {
		return nil, fmt.Errorf("collectable %d: %w", c.ID, err)
	}
	return &c, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (cs *collectables) GetByID(ctx context.Context, id int64) (*model.Collectable, error) {
	row := cs.db.QueryRowContext(ctx, `SELECT `+collectableCols+` FROM collectables WHERE id = $1`, id)
	c, err := scanCollectable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return c, err
}

func (cs *collectables) findOne(ctx context.Context, where string, args ...any) (*model.Collectable, error) {
	row := cs.db.QueryRowContext(ctx, `SELECT `+collectableCols+` FROM collectables WHERE `+where+` ORDER BY id LIMIT 1`, args...)
	c, err := scanCollectable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (cs *collectables) FindByExactFingerprint(ctx context.Context, fp string) (*model.Collectable, error) {
	return cs.findOne(ctx, `exact_fp = $1`, fp)
}

func (cs *collectables) FindByLightFingerprint(ctx context.Context, fp string) ([]*model.Collectable, error) {
	rows, err := cs.db.QueryContext(ctx, `SELECT `+collectableCols+` FROM collectables WHERE light_fp = $1 ORDER BY id`, fp)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Collectable
	for rows.Next() {
		c, err := scanCollectable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (cs *collectables) FindByFuzzyFingerprint(ctx context.Context, fp string) (*model.Collectable, error) {
	return cs.findOne(ctx, `fuzzy_fps @> to_jsonb(ARRAY[$1::text])`, fp)
}

func (cs *collectables) Insert(ctx context.Context, c *model.Collectable) (*model.Collectable, error) {
	out := *c
	row := cs.db.QueryRowContext(ctx, `
        INSERT INTO collectables (kind, title, subtitle, description, primary_creator,
            creators, publishers, release_year, formats, tags, identifiers, images,
            cover_url, cover_path, sources, exact_fp, light_fp, fuzzy_fps, external_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
        RETURNING id, created_at, updated_at`,
		c.Kind, c.Title, c.Subtitle, c.Description, c.PrimaryCreator,
		jsonStrings(c.Creators), jsonStrings(c.Publishers), c.Year,
		jsonStrings(c.Formats), jsonStrings(c.Tags), jsonMap(c.Identifiers),
		jsonStrings(c.Images), c.CoverURL, c.CoverPath, jsonSources(c.Sources),
		c.ExactFingerprint, c.LightFingerprint, jsonStrings(c.FuzzyFingerprints),
		c.ExternalID)
	if err := row.Scan(&out.ID, &out.CreationTime, &out.UpdateTime); err != nil {
		return nil, wrapConflict(err)
	}
	return &out, nil
}

func (cs *collectables) Update(ctx context.Context, c *model.Collectable) (*model.Collectable, error) {
	out := *c
	row := cs.db.QueryRowContext(ctx, `
        UPDATE collectables SET kind=$1, title=$2, subtitle=$3, description=$4,
            primary_creator=$5, creators=$6, publishers=$7, release_year=$8,
            formats=$9, tags=$10, identifiers=$11, images=$12, cover_url=$13,
            cover_path=$14, sources=$15, exact_fp=$16, light_fp=$17, fuzzy_fps=$18,
            external_id=$19, updated_at=now()
        WHERE id=$20
        RETURNING updated_at`,
		c.Kind, c.Title, c.Subtitle, c.Description, c.PrimaryCreator,
		jsonStrings(c.Creators), jsonStrings(c.Publishers), c.Year,
		jsonStrings(c.Formats), jsonStrings(c.Tags), jsonMap(c.Identifiers),
		jsonStrings(c.Images), c.CoverURL, c.CoverPath, jsonSources(c.Sources),
		c.ExactFingerprint, c.LightFingerprint, jsonStrings(c.FuzzyFingerprints),
		c.ExternalID, c.ID)
	if err := row.Scan(&out.UpdateTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, wrapConflict(err)
	}
	return &out, nil
}

func (cs *collectables) AddFuzzyFingerprint(ctx context.Context, id int64, fp string) error {
	// Append only when absent; the containment check keeps the call idempotent.
	res, err := cs.db.ExecContext(ctx, `
        UPDATE collectables
        SET fuzzy_fps = fuzzy_fps || to_jsonb(ARRAY[$2::text]), updated_at = now()
        WHERE id = $1 AND NOT fuzzy_fps @> to_jsonb(ARRAY[$2::text])`, id, fp)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var exists bool
		if err := cs.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM collectables WHERE id=$1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return model.ErrNotFound
		}
	}
	return nil
}

func (cs *collectables) AppendSource(ctx context.Context, id int64, src model.SourceRef) error {
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	res, err := cs.db.ExecContext(ctx, `
        UPDATE collectables SET sources = sources || $2::jsonb, updated_at = now()
        WHERE id = $1`, id, b)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (cs *collectables) SetCoverPath(ctx context.Context, id int64, path string) error {
	_, err := cs.db.ExecContext(ctx, `UPDATE collectables SET cover_path=$2, updated_at=now() WHERE id=$1`, id, path)
	return err
}

func (cs *collectables) ListCandidates(ctx context.Context, kind string, limit int) ([]*model.Collectable, error) {
	if limit <= 0 {
		limit = 500
	}
	q := `SELECT ` + collectableCols + ` FROM collectables`
	args := []any{}
	if kind != "" {
		q += ` WHERE kind = $1 ORDER BY id LIMIT $2`
		args = append(args, kind, limit)
	} else {
		q += ` ORDER BY id LIMIT $1`
		args = append(args, limit)
	}

	rows, err := cs.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Collectable
	for rows.Next() {
		c, err := scanCollectable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Aggregates ---

type aggregates struct{ db *sql.DB }

const aggregateCols = `aggregate_id, owner_id, context_id, kind, visibility,
    window_start, window_end, item_count, previews, last_activity`

func scanAggregate(r rowScanner) (*model.EventAggregate, error) {
	var a model.EventAggregate
	var previews []byte
	if err := r.Scan(&a.AggregateID, &a.OwnerID, &a.ContextID, &a.Kind, &a.Visibility,
		&a.WindowStart, &a.WindowEnd, &a.ItemCount, &previews, &a.LastActivity); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(previews, &a.Previews); err != nil {
		return nil, fmt.Errorf("aggregate %s previews: %w", a.AggregateID, err)
	}
	return &a, nil
}

func (as *aggregates) RecordEvent(ctx context.Context, p store.RecordEventParams) (*model.EventAggregate, *model.EventLogEntry, error) {
	tx, err := as.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	ev := p.Event

	// Lock the newest row for the key before deciding. A concurrent recorder
	// for the same key blocks here until this transaction commits, then
	// re-evaluates the window against the committed state.
	row := tx.QueryRowContext(ctx, `
        SELECT `+aggregateCols+` FROM event_aggregates
        WHERE owner_id = $1 AND context_id IS NOT DISTINCT FROM $2 AND kind = $3
        ORDER BY window_end DESC LIMIT 1
        FOR UPDATE`,
		ev.OwnerID, ev.ContextID, ev.Kind)
	agg, err := scanAggregate(row)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, err
	}

	if agg == nil || !agg.Open(now) {
		agg = &model.EventAggregate{
			AggregateID:  uuid.New().String(),
			OwnerID:      ev.OwnerID,
			ContextID:    ev.ContextID,
			Kind:         ev.Kind,
			Visibility:   ev.Visibility,
			WindowStart:  now,
			WindowEnd:    now.Add(p.Window),
			LastActivity: now,
		}
		if agg.Visibility == "" {
			agg.Visibility = model.VisibilityPublic
		}
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO event_aggregates (`+aggregateCols+`)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			agg.AggregateID, agg.OwnerID, agg.ContextID, agg.Kind, agg.Visibility,
			agg.WindowStart, agg.WindowEnd, 0, []byte("[]"), agg.LastActivity); err != nil {
			return nil, nil, err
		}
	}

	agg.ItemCount += p.ItemCount
	agg.LastActivity = now
	if len(ev.Payload) > 0 && len(agg.Previews) < p.PreviewCap {
		agg.Previews = append(agg.Previews, ev.Payload)
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE event_aggregates SET item_count=$2, previews=$3, last_activity=$4
        WHERE aggregate_id=$1`,
		agg.AggregateID, agg.ItemCount, jsonRaws(agg.Previews), agg.LastActivity); err != nil {
		return nil, nil, err
	}

	entry := &model.EventLogEntry{
		EntryID:      uuid.New().String(),
		OwnerID:      &ev.OwnerID,
		ContextID:    ev.ContextID,
		Kind:         ev.Kind,
		AggregateID:  &agg.AggregateID,
		Payload:      ev.Payload,
		CreationTime: now,
	}
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO event_log (entry_id, owner_id, context_id, kind, aggregate_id, payload, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		entry.EntryID, entry.OwnerID, entry.ContextID, entry.Kind, entry.AggregateID,
		nullableRaw(entry.Payload), entry.CreationTime); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return agg, entry, nil
}

func nullableRaw(p json.RawMessage) any {
	if len(p) == 0 {
		return nil
	}
	return []byte(p)
}

func (as *aggregates) GetByID(ctx context.Context, aggregateID string) (*model.EventAggregate, error) {
	row := as.db.QueryRowContext(ctx, `SELECT `+aggregateCols+` FROM event_aggregates WHERE aggregate_id = $1`, aggregateID)
	a, err := scanAggregate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return a, err
}

func (as *aggregates) ListVisible(ctx context.Context, q model.FeedQuery) ([]*model.EventAggregate, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	var where string
	switch q.Scope {
	case model.ScopeSelf:
		where = `owner_id = $1`
	case model.ScopeGlobal:
		where = `visibility = 'public' AND owner_id <> $1`
	case model.ScopeFriends:
		where = `owner_id <> $1 AND visibility IN ('public','friends') AND EXISTS (
            SELECT 1 FROM friendships f
            WHERE f.status = 'accepted'
              AND ((f.owner_id = $1 AND f.friend_id = event_aggregates.owner_id)
                OR (f.owner_id = event_aggregates.owner_id AND f.friend_id = $1)))`
	default: // ScopeAll
		where = `(owner_id = $1
            OR visibility = 'public'
            OR (visibility = 'friends' AND EXISTS (
                SELECT 1 FROM friendships f
                WHERE f.status = 'accepted'
                  AND ((f.owner_id = $1 AND f.friend_id = event_aggregates.owner_id)
                    OR (f.owner_id = event_aggregates.owner_id AND f.friend_id = $1)))))`
	}

	rows, err := as.db.QueryContext(ctx, `
        SELECT `+aggregateCols+` FROM event_aggregates
        WHERE `+where+`
        ORDER BY last_activity DESC, aggregate_id
        LIMIT $2 OFFSET $3`, q.ViewerID, limit, q.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.EventAggregate
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- Events ---

type events struct{ db *sql.DB }

func (es *events) Insert(ctx context.Context, e *model.EventLogEntry) (*model.EventLogEntry, error) {
	out := *e
	if out.EntryID == "" {
		out.EntryID = uuid.New().String()
	}
	row := es.db.QueryRowContext(ctx, `
        INSERT INTO event_log (entry_id, owner_id, context_id, kind, aggregate_id, payload, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,now())
        RETURNING created_at`,
		out.EntryID, out.OwnerID, out.ContextID, out.Kind, out.AggregateID, nullableRaw(out.Payload))
	if err := row.Scan(&out.CreationTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (es *events) ListByAggregate(ctx context.Context, aggregateID string) ([]*model.EventLogEntry, error) {
	rows, err := es.db.QueryContext(ctx, `
        SELECT entry_id, owner_id, context_id, kind, aggregate_id, payload, created_at
        FROM event_log WHERE aggregate_id = $1 ORDER BY created_at`, aggregateID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.EventLogEntry
	for rows.Next() {
		var e model.EventLogEntry
		var payload []byte
		if err := rows.Scan(&e.EntryID, &e.OwnerID, &e.ContextID, &e.Kind, &e.AggregateID, &payload, &e.CreationTime); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			e.Payload = json.RawMessage(payload)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// --- Social ---

type social struct{ db *sql.DB }

func (so *social) Like(ctx context.Context, aggregateID, ownerID string) error {
	_, err := so.db.ExecContext(ctx, `
        INSERT INTO aggregate_likes (aggregate_id, owner_id) VALUES ($1,$2)
        ON CONFLICT (aggregate_id, owner_id) DO NOTHING`, aggregateID, ownerID)
	return err
}

func (so *social) Unlike(ctx context.Context, aggregateID, ownerID string) error {
	_, err := so.db.ExecContext(ctx, `DELETE FROM aggregate_likes WHERE aggregate_id=$1 AND owner_id=$2`,
		aggregateID, ownerID)
	return err
}

func (so *social) AddComment(ctx context.Context, c *model.Comment) (*model.Comment, error) {
	out := *c
	if out.CommentID == "" {
		out.CommentID = uuid.New().String()
	}
	row := so.db.QueryRowContext(ctx, `
        INSERT INTO aggregate_comments (comment_id, aggregate_id, owner_id, body)
        VALUES ($1,$2,$3,$4)
        RETURNING created_at`,
		out.CommentID, out.AggregateID, out.OwnerID, out.Body)
	if err := row.Scan(&out.CreationTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (so *social) CountsFor(ctx context.Context, aggregateIDs []string, viewerID string) (map[string]*model.SocialCounters, error) {
	out := make(map[string]*model.SocialCounters, len(aggregateIDs))
	for _, id := range aggregateIDs {
		sc := &model.SocialCounters{}
		if err := so.db.QueryRowContext(ctx, `
            SELECT
                (SELECT COUNT(*) FROM aggregate_likes WHERE aggregate_id = $1),
                (SELECT COUNT(*) FROM aggregate_comments WHERE aggregate_id = $1),
                EXISTS (SELECT 1 FROM aggregate_likes WHERE aggregate_id = $1 AND owner_id = $2)`,
			id, viewerID).Scan(&sc.LikeCount, &sc.CommentCount, &sc.ViewerLiked); err != nil {
			return nil, err
		}
		var c model.Comment
		err := so.db.QueryRowContext(ctx, `
            SELECT comment_id, aggregate_id, owner_id, body, created_at
            FROM aggregate_comments WHERE aggregate_id = $1
            ORDER BY created_at DESC, comment_id LIMIT 1`, id).
			Scan(&c.CommentID, &c.AggregateID, &c.OwnerID, &c.Body, &c.CreationTime)
		switch {
		case err == nil:
			sc.LatestComment = &c
		case errors.Is(err, sql.ErrNoRows):
		default:
			return nil, err
		}
		out[id] = sc
	}
	return out, nil
}

// --- Friends ---

type friends struct{ db *sql.DB }

func (fr *friends) Upsert(ctx context.Context, f *model.Friendship) error {
	_, err := fr.db.ExecContext(ctx, `
        INSERT INTO friendships (owner_id, friend_id, status) VALUES ($1,$2,$3)
        ON CONFLICT (owner_id, friend_id) DO UPDATE SET status = EXCLUDED.status`,
		f.OwnerID, f.FriendID, f.Status)
	return err
}

func (fr *friends) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var ok bool
	err := fr.db.QueryRowContext(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM friendships
            WHERE status = 'accepted'
              AND ((owner_id = $1 AND friend_id = $2) OR (owner_id = $2 AND friend_id = $1)))`,
		a, b).Scan(&ok)
	return ok, err
}

// --- Discovery ---

type discovery struct{ db *sql.DB }

func (d *discovery) MarkSeen(ctx context.Context, viewerID string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	for _, id := range itemIDs {
		if _, err := d.db.ExecContext(ctx, `
            INSERT INTO discovery_seen (viewer_id, item_id) VALUES ($1,$2)
            ON CONFLICT (viewer_id, item_id) DO NOTHING`, viewerID, id); err != nil {
			return err
		}
	}
	return nil
}

func (d *discovery) Seen(ctx context.Context, viewerID string) (map[string]bool, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT item_id FROM discovery_seen WHERE viewer_id = $1`, viewerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}
