package store

import (
	"context"
	"time"

	"github.com/fTr0ut/shelvesai/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
//
// Miss semantics: Find* lookups return (nil, nil) when nothing matches;
// Get* lookups return model.ErrNotFound. Duplicate exact-fingerprint inserts
// return an error wrapping model.ErrConflict so callers can convert the race
// into a merge-update.
type Store interface {
	Collectables() Collectables
	Aggregates() Aggregates
	Events() Events
	Social() Social
	Friends() Friends
	Discovery() Discovery
}

type Collectables interface {
	GetByID(ctx context.Context, id int64) (*model.Collectable, error)
	FindByExactFingerprint(ctx context.Context, fp string) (*model.Collectable, error)
	FindByLightFingerprint(ctx context.Context, fp string) ([]*model.Collectable, error)
	FindByFuzzyFingerprint(ctx context.Context, fp string) (*model.Collectable, error)
	Insert(ctx context.Context, c *model.Collectable) (*model.Collectable, error)
	Update(ctx context.Context, c *model.Collectable) (*model.Collectable, error)
	// AddFuzzyFingerprint is an idempotent append; a fingerprint already on
	// the record is a no-op.
	AddFuzzyFingerprint(ctx context.Context, id int64, fp string) error
	// AppendSource appends a provenance entry. Sources are never removed.
	AppendSource(ctx context.Context, id int64, src model.SourceRef) error
	SetCoverPath(ctx context.Context, id int64, path string) error
	// ListCandidates returns fuzzy-match candidates, optionally restricted to
	// a kind (empty string means all kinds), in natural id order.
	ListCandidates(ctx context.Context, kind string, limit int) ([]*model.Collectable, error)
}

// RecordEventParams carries one windowed event into the transactional
// lock-then-decide sequence.
type RecordEventParams struct {
	Event      model.Event
	ItemCount  int
	Window     time.Duration
	PreviewCap int
}

type Aggregates interface {
	// RecordEvent runs a single transaction that locks the newest aggregate
	// row for (owner, context, kind), extends it while its window is open or
	// creates a fresh one, inserts the linked log entry and bumps
	// count/last-activity. Concurrent calls for the same key serialize on the
	// row lock; a timed-out lock acquisition rolls the whole transaction back.
	RecordEvent(ctx context.Context, p RecordEventParams) (*model.EventAggregate, *model.EventLogEntry, error)
	GetByID(ctx context.Context, aggregateID string) (*model.EventAggregate, error)
	// ListVisible returns aggregates the viewer may see under the requested
	// scope, newest activity first.
	ListVisible(ctx context.Context, q model.FeedQuery) ([]*model.EventAggregate, error)
}

type Events interface {
	// Insert writes a standalone immutable log entry with no aggregate link.
	Insert(ctx context.Context, e *model.EventLogEntry) (*model.EventLogEntry, error)
	ListByAggregate(ctx context.Context, aggregateID string) ([]*model.EventLogEntry, error)
}

type Social interface {
	Like(ctx context.Context, aggregateID, ownerID string) error
	Unlike(ctx context.Context, aggregateID, ownerID string) error
	AddComment(ctx context.Context, c *model.Comment) (*model.Comment, error)
	// CountsFor batches like/comment counters, the viewer's own like state and
	// the most recent comment for each aggregate id.
	CountsFor(ctx context.Context, aggregateIDs []string, viewerID string) (map[string]*model.SocialCounters, error)
}

type Friends interface {
	Upsert(ctx context.Context, f *model.Friendship) error
	// AreFriends reports an accepted friendship in either direction.
	AreFriends(ctx context.Context, a, b string) (bool, error)
}

type Discovery interface {
	// MarkSeen records shown discovery items for a viewer; re-marking is a
	// no-op.
	MarkSeen(ctx context.Context, viewerID string, itemIDs []string) error
	Seen(ctx context.Context, viewerID string) (map[string]bool, error)
}
