// Package sqlite implements store.Store on modernc.org/sqlite for local mode
// and in-process tests. SQLite serializes writers at the database level, so
// the lock-then-decide sequence in RecordEvent relies on immediate write
// transactions instead of row locks.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fTr0ut/shelvesai/internal/model"
	"github.com/fTr0ut/shelvesai/internal/store"
)

// New constructs a SQLite-backed store over an open connection.
func New(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Collectables() store.Collectables { return &collectables{db: s.db} }
func (s *sqliteStore) Aggregates() store.Aggregates     { return &aggregates{db: s.db} }
func (s *sqliteStore) Events() store.Events             { return &events{db: s.db} }
func (s *sqliteStore) Social() store.Social             { return &social{db: s.db} }
func (s *sqliteStore) Friends() store.Friends           { return &friends{db: s.db} }
func (s *sqliteStore) Discovery() store.Discovery       { return &discovery{db: s.db} }

// HealthPing implements health.Pinger.
func (s *sqliteStore) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

func wrapConflict(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", model.ErrConflict, err)
	}
	return err
}

// --- JSON column mapping ---

func jsonStrings(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func jsonMap(v map[string]string) string {
	if v == nil {
		v = map[string]string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func jsonSources(v []model.SourceRef) string {
	if v == nil {
		v = []model.SourceRef{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func jsonRaws(v []json.RawMessage) string {
	if v == nil {
		v = []json.RawMessage{}
	}
	b, _ := json.Marshal(v)
	return string(b)
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
	var creators, publishers, formats, tags, identifiers, images, sources, fuzzy string
	if err := r.Scan(&c.ID, &c.Kind, &c.Title, &c.Subtitle, &c.Description, &c.PrimaryCreator,
		&creators, &publishers, &c.Year, &formats, &tags, &identifiers, &images,
		&c.CoverURL, &c.CoverPath, &sources, &c.ExactFingerprint, &c.LightFingerprint,
		&fuzzy, &c.ExternalID, &c.CreationTime, &c.UpdateTime); err != nil {
		return nil, err
	}
	if err := firstErr(
		json.Unmarshal([]byte(creators), &c.Creators),
		json.Unmarshal([]byte(publishers), &c.Publishers),
		json.Unmarshal([]byte(formats), &c.Formats),
		json.Unmarshal([]byte(tags), &c.Tags),
		json.Unmarshal([]byte(images), &c.Images),
		json.Unmarshal([]byte(fuzzy), &c.FuzzyFingerprints),
		json.Unmarshal([]byte(identifiers), &c.Identifiers),
		json.Unmarshal([]byte(sources), &c.Sources),
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
	row := cs.db.QueryRowContext(ctx, `SELECT `+collectableCols+` FROM collectables WHERE id = ?`, id)
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
	return cs.findOne(ctx, `exact_fp = ?`, fp)
}

func (cs *collectables) FindByLightFingerprint(ctx context.Context, fp string) ([]*model.Collectable, error) {
	rows, err := cs.db.QueryContext(ctx, `SELECT `+collectableCols+` FROM collectables WHERE light_fp = ? ORDER BY id`, fp)
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
	// fuzzy_fps is a JSON array; match against the quoted element.
	return cs.findOne(ctx, `instr(fuzzy_fps, ?) > 0`, `"`+fp+`"`)
}

func (cs *collectables) Insert(ctx context.Context, c *model.Collectable) (*model.Collectable, error) {
	now := time.Now().UTC()
	res, err := cs.db.ExecContext(ctx, `
        INSERT INTO collectables (kind, title, subtitle, description, primary_creator,
            creators, publishers, release_year, formats, tags, identifiers, images,
            cover_url, cover_path, sources, exact_fp, light_fp, fuzzy_fps, external_id,
            created_at, updated_at)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.Kind, c.Title, c.Subtitle, c.Description, c.PrimaryCreator,
		jsonStrings(c.Creators), jsonStrings(c.Publishers), c.Year,
		jsonStrings(c.Formats), jsonStrings(c.Tags), jsonMap(c.Identifiers),
		jsonStrings(c.Images), c.CoverURL, c.CoverPath, jsonSources(c.Sources),
		c.ExactFingerprint, c.LightFingerprint, jsonStrings(c.FuzzyFingerprints),
		c.ExternalID, now, now)
	if err != nil {
		return nil, wrapConflict(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	out := *c
	out.ID = id
	out.CreationTime = now
	out.UpdateTime = now
	return &out, nil
}

func (cs *collectables) Update(ctx context.Context, c *model.Collectable) (*model.Collectable, error) {
	now := time.Now().UTC()
	_, err := cs.db.ExecContext(ctx, `
        UPDATE collectables SET kind=?, title=?, subtitle=?, description=?,
            primary_creator=?, creators=?, publishers=?, release_year=?, formats=?,
            tags=?, identifiers=?, images=?, cover_url=?, cover_path=?, sources=?,
            exact_fp=?, light_fp=?, fuzzy_fps=?, external_id=?, updated_at=?
        WHERE id=?`,
		c.Kind, c.Title, c.Subtitle, c.Description, c.PrimaryCreator,
		jsonStrings(c.Creators), jsonStrings(c.Publishers), c.Year,
		jsonStrings(c.Formats), jsonStrings(c.Tags), jsonMap(c.Identifiers),
		jsonStrings(c.Images), c.CoverURL, c.CoverPath, jsonSources(c.Sources),
		c.ExactFingerprint, c.LightFingerprint, jsonStrings(c.FuzzyFingerprints),
		c.ExternalID, now, c.ID)
	if err != nil {
		return nil, wrapConflict(err)
	}
	out := *c
	out.UpdateTime = now
	return &out, nil
}

func (cs *collectables) AddFuzzyFingerprint(ctx context.Context, id int64, fp string) error {
	tx, err := cs.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT fuzzy_fps FROM collectables WHERE id=?`, id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrNotFound
		}
		return err
	}
	var fps []string
	if err := json.Unmarshal([]byte(raw), &fps); err != nil {
		return err
	}
	for _, existing := range fps {
		if existing == fp {
			return nil // already present
		}
	}
	fps = append(fps, fp)
	if _, err := tx.ExecContext(ctx, `UPDATE collectables SET fuzzy_fps=?, updated_at=? WHERE id=?`,
		jsonStrings(fps), time.Now().UTC(), id); err != nil {
		return err
	}
	return tx.Commit()
}

func (cs *collectables) AppendSource(ctx context.Context, id int64, src model.SourceRef) error {
	tx, err := cs.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT sources FROM collectables WHERE id=?`, id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrNotFound
		}
		return err
	}
	var sources []model.SourceRef
	if err := json.Unmarshal([]byte(raw), &sources); err != nil {
		return err
	}
	sources = append(sources, src)
	if _, err := tx.ExecContext(ctx, `UPDATE collectables SET sources=?, updated_at=? WHERE id=?`,
		jsonSources(sources), time.Now().UTC(), id); err != nil {
		return err
	}
	return tx.Commit()
}

func (cs *collectables) SetCoverPath(ctx context.Context, id int64, path string) error {
	_, err := cs.db.ExecContext(ctx, `UPDATE collectables SET cover_path=?, updated_at=? WHERE id=?`,
		path, time.Now().UTC(), id)
	return err
}

func (cs *collectables) ListCandidates(ctx context.Context, kind string, limit int) ([]*model.Collectable, error) {
	if limit <= 0 {
		limit = 500
	}
	q := `SELECT ` + collectableCols + ` FROM collectables`
	args := []any{}
	if kind != "" {
		q += ` WHERE kind = ?`
		args = append(args, kind)
	}
	q += ` ORDER BY id LIMIT ?`
	args = append(args, limit)

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
	var previews string
	if err := r.Scan(&a.AggregateID, &a.OwnerID, &a.ContextID, &a.Kind, &a.Visibility,
		&a.WindowStart, &a.WindowEnd, &a.ItemCount, &previews, &a.LastActivity); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(previews), &a.Previews); err != nil {
		return nil, fmt.Errorf("aggregate %s previews: %w", a.AggregateID, err)
	}
	return &a, nil
}

func (as *aggregates) RecordEvent(ctx context.Context, p store.RecordEventParams) (*model.EventAggregate, *model.EventLogEntry, error) {
	// _txlock=immediate takes the write lock at BeginTx, which is the SQLite
	// equivalent of locking the candidate row before deciding.
	tx, err := as.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	ev := p.Event

	row := tx.QueryRowContext(ctx, `
        SELECT `+aggregateCols+` FROM event_aggregates
        WHERE owner_id = ? AND context_id IS ? AND kind = ?
        ORDER BY window_end DESC LIMIT 1`,
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
            VALUES (?,?,?,?,?,?,?,?,?,?)`,
			agg.AggregateID, agg.OwnerID, agg.ContextID, agg.Kind, agg.Visibility,
			agg.WindowStart, agg.WindowEnd, 0, "[]", agg.LastActivity); err != nil {
			return nil, nil, err
		}
	}

	agg.ItemCount += p.ItemCount
	agg.LastActivity = now
	if len(ev.Payload) > 0 && len(agg.Previews) < p.PreviewCap {
		agg.Previews = append(agg.Previews, ev.Payload)
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE event_aggregates SET item_count=?, previews=?, last_activity=?
        WHERE aggregate_id=?`,
		agg.ItemCount, jsonRaws(agg.Previews), agg.LastActivity, agg.AggregateID); err != nil {
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
        VALUES (?,?,?,?,?,?,?)`,
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
	return string(p)
}

func (as *aggregates) GetByID(ctx context.Context, aggregateID string) (*model.EventAggregate, error) {
	row := as.db.QueryRowContext(ctx, `SELECT `+aggregateCols+` FROM event_aggregates WHERE aggregate_id = ?`, aggregateID)
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
	args := []any{}
	switch q.Scope {
	case model.ScopeSelf:
		where = `owner_id = ?`
		args = append(args, q.ViewerID)
	case model.ScopeGlobal:
		where = `visibility = 'public' AND owner_id <> ?`
		args = append(args, q.ViewerID)
	case model.ScopeFriends:
		where = `owner_id <> ? AND visibility IN ('public','friends') AND EXISTS (
            SELECT 1 FROM friendships f
            WHERE f.status = 'accepted'
              AND ((f.owner_id = ? AND f.friend_id = event_aggregates.owner_id)
                OR (f.owner_id = event_aggregates.owner_id AND f.friend_id = ?)))`
		args = append(args, q.ViewerID, q.ViewerID, q.ViewerID)
	default: // ScopeAll
		where = `(owner_id = ?
            OR visibility = 'public'
            OR (visibility = 'friends' AND EXISTS (
                SELECT 1 FROM friendships f
                WHERE f.status = 'accepted'
                  AND ((f.owner_id = ? AND f.friend_id = event_aggregates.owner_id)
                    OR (f.owner_id = event_aggregates.owner_id AND f.friend_id = ?)))))`
		args = append(args, q.ViewerID, q.ViewerID, q.ViewerID)
	}

	args = append(args, limit, q.Offset)
	rows, err := as.db.QueryContext(ctx, `
        SELECT `+aggregateCols+` FROM event_aggregates
        WHERE `+where+`
        ORDER BY last_activity DESC, aggregate_id
        LIMIT ? OFFSET ?`, args...)
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
	out.CreationTime = time.Now().UTC()
	_, err := es.db.ExecContext(ctx, `
        INSERT INTO event_log (entry_id, owner_id, context_id, kind, aggregate_id, payload, created_at)
        VALUES (?,?,?,?,?,?,?)`,
		out.EntryID, out.OwnerID, out.ContextID, out.Kind, out.AggregateID,
		nullableRaw(out.Payload), out.CreationTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (es *events) ListByAggregate(ctx context.Context, aggregateID string) ([]*model.EventLogEntry, error) {
	rows, err := es.db.QueryContext(ctx, `
        SELECT entry_id, owner_id, context_id, kind, aggregate_id, payload, created_at
        FROM event_log WHERE aggregate_id = ? ORDER BY created_at`, aggregateID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.EventLogEntry
	for rows.Next() {
		var e model.EventLogEntry
		var payload *string
		if err := rows.Scan(&e.EntryID, &e.OwnerID, &e.ContextID, &e.Kind, &e.AggregateID, &payload, &e.CreationTime); err != nil {
			return nil, err
		}
		if payload != nil {
			e.Payload = json.RawMessage(*payload)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// --- Social ---

type social struct{ db *sql.DB }

func (so *social) Like(ctx context.Context, aggregateID, ownerID string) error {
	_, err := so.db.ExecContext(ctx, `
        INSERT INTO aggregate_likes (aggregate_id, owner_id, created_at) VALUES (?,?,?)
        ON CONFLICT (aggregate_id, owner_id) DO NOTHING`,
		aggregateID, ownerID, time.Now().UTC())
	return err
}

func (so *social) Unlike(ctx context.Context, aggregateID, ownerID string) error {
	_, err := so.db.ExecContext(ctx, `DELETE FROM aggregate_likes WHERE aggregate_id=? AND owner_id=?`,
		aggregateID, ownerID)
	return err
}

func (so *social) AddComment(ctx context.Context, c *model.Comment) (*model.Comment, error) {
	out := *c
	if out.CommentID == "" {
		out.CommentID = uuid.New().String()
	}
	out.CreationTime = time.Now().UTC()
	_, err := so.db.ExecContext(ctx, `
        INSERT INTO aggregate_comments (comment_id, aggregate_id, owner_id, body, created_at)
        VALUES (?,?,?,?,?)`,
		out.CommentID, out.AggregateID, out.OwnerID, out.Body, out.CreationTime)
	if err != nil {
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
                (SELECT COUNT(*) FROM aggregate_likes WHERE aggregate_id = ?1),
                (SELECT COUNT(*) FROM aggregate_comments WHERE aggregate_id = ?1),
                EXISTS (SELECT 1 FROM aggregate_likes WHERE aggregate_id = ?1 AND owner_id = ?2)`,
			id, viewerID).Scan(&sc.LikeCount, &sc.CommentCount, &sc.ViewerLiked); err != nil {
			return nil, err
		}
		var c model.Comment
		err := so.db.QueryRowContext(ctx, `
            SELECT comment_id, aggregate_id, owner_id, body, created_at
            FROM aggregate_comments WHERE aggregate_id = ?
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
        INSERT INTO friendships (owner_id, friend_id, status, created_at) VALUES (?,?,?,?)
        ON CONFLICT (owner_id, friend_id) DO UPDATE SET status = excluded.status`,
		f.OwnerID, f.FriendID, f.Status, time.Now().UTC())
	return err
}

func (fr *friends) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var ok bool
	err := fr.db.QueryRowContext(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM friendships
            WHERE status = 'accepted'
              AND ((owner_id = ?1 AND friend_id = ?2) OR (owner_id = ?2 AND friend_id = ?1)))`,
		a, b).Scan(&ok)
	return ok, err
}

// --- Discovery ---

type discovery struct{ db *sql.DB }

func (d *discovery) MarkSeen(ctx context.Context, viewerID string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, id := range itemIDs {
		if _, err := d.db.ExecContext(ctx, `
            INSERT INTO discovery_seen (viewer_id, item_id, seen_at) VALUES (?,?,?)
            ON CONFLICT (viewer_id, item_id) DO NOTHING`, viewerID, id, now); err != nil {
			return err
		}
	}
	return nil
}

func (d *discovery) Seen(ctx context.Context, viewerID string) (map[string]bool, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT item_id FROM discovery_seen WHERE viewer_id = ?`, viewerID)
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
