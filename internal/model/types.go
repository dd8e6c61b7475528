package model

import (
	"encoding/json"
	"time"
)

// Collectable is a canonical catalog entry shared across users. It is created
// on first successful upsert and mutated in place by field-level merge on every
// subsequent upsert matching its exact fingerprint.
type Collectable struct {
	ID                int64             `json:"id"`
	Kind              string            `json:"kind"`
	Title             string            `json:"title"`
	Subtitle          *string           `json:"subtitle,omitempty"`
	Description       *string           `json:"description,omitempty"`
	PrimaryCreator    *string           `json:"primaryCreator,omitempty"`
	Creators          []string          `json:"creators,omitempty"`
	Publishers        []string          `json:"publishers,omitempty"`
	Year              *int              `json:"year,omitempty"`
	Formats           []string          `json:"formats,omitempty"`
	Tags              []string          `json:"tags,omitempty"`
	Identifiers       map[string]string `json:"identifiers,omitempty"`
	Images            []string          `json:"images,omitempty"`
	CoverURL          *string           `json:"coverUrl,omitempty"`
	CoverPath         *string           `json:"coverPath,omitempty"`
	Sources           []SourceRef       `json:"sources,omitempty"`
	ExactFingerprint  *string           `json:"exactFingerprint,omitempty"`
	LightFingerprint  string            `json:"lightFingerprint"`
	FuzzyFingerprints []string          `json:"fuzzyFingerprints,omitempty"`
	ExternalID        *string           `json:"externalId,omitempty"`
	CreationTime      time.Time         `json:"creationTime"`
	UpdateTime        time.Time         `json:"updateTime"`
}

// SourceRef records which external provider contributed or re-confirmed a
// collectable's data. Sources are append-only.
type SourceRef struct {
	Provider     string    `json:"provider"`
	URL          string    `json:"url,omitempty"`
	DiscoveredAt time.Time `json:"discoveredAt"`
}

// Visibility levels for event aggregates.
const (
	VisibilityPublic  = "public"
	VisibilityFriends = "friends"
	VisibilityPrivate = "private"
)

// EventAggregate rolls up one owner's actions of one kind within one context
// inside a bounded time window. At most one open aggregate exists per
// (owner, context, kind) at any instant.
type EventAggregate struct {
	AggregateID  string            `json:"aggregateId"`
	OwnerID      string            `json:"ownerId"`
	ContextID    *string           `json:"contextId,omitempty"`
	Kind         string            `json:"kind"`
	Visibility   string            `json:"visibility"`
	WindowStart  time.Time         `json:"windowStart"`
	WindowEnd    time.Time         `json:"windowEnd"`
	ItemCount    int               `json:"itemCount"`
	Previews     []json.RawMessage `json:"previews,omitempty"`
	LastActivity time.Time         `json:"lastActivity"`
}

// Open reports whether the aggregate's window has not yet elapsed.
func (a *EventAggregate) Open(now time.Time) bool { return !now.After(a.WindowEnd) }

// EventLogEntry is one immutable record per raw action. AggregateID is nil for
// context-less (system/anonymous) actions that bypass windowing.
type EventLogEntry struct {
	EntryID      string          `json:"entryId"`
	OwnerID      *string         `json:"ownerId,omitempty"`
	ContextID    *string         `json:"contextId,omitempty"`
	Kind         string          `json:"kind"`
	AggregateID  *string         `json:"aggregateId,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	CreationTime time.Time       `json:"creationTime"`
}

// Event is a discrete user action submitted for aggregation.
type Event struct {
	OwnerID    string          `json:"ownerId"`
	ContextID  *string         `json:"contextId,omitempty"`
	Kind       string          `json:"kind"`
	Visibility string          `json:"visibility,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// SocialCounters carries per-aggregate social state joined into feed entries.
type SocialCounters struct {
	LikeCount     int      `json:"likeCount"`
	CommentCount  int      `json:"commentCount"`
	ViewerLiked   bool     `json:"viewerLiked"`
	LatestComment *Comment `json:"latestComment,omitempty"`
}

// Comment is a user comment on an aggregate.
type Comment struct {
	CommentID    string    `json:"commentId"`
	AggregateID  string    `json:"aggregateId"`
	OwnerID      string    `json:"ownerId"`
	Body         string    `json:"body"`
	CreationTime time.Time `json:"creationTime"`
}

// Friendship states.
const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
)

// Friendship is a directed relation; an accepted row in either direction
// satisfies friends-only visibility.
type Friendship struct {
	OwnerID      string    `json:"ownerId"`
	FriendID     string    `json:"friendId"`
	Status       string    `json:"status"`
	CreationTime time.Time `json:"creationTime"`
}

// DiscoveryItem is the normalized record produced by an external catalog
// adapter. The core is provider-agnostic past this boundary.
type DiscoveryItem struct {
	Title          string            `json:"title"`
	Subtitle       *string           `json:"subtitle,omitempty"`
	Description    *string           `json:"description,omitempty"`
	Kind           string            `json:"kind"`
	PrimaryCreator *string           `json:"primaryCreator,omitempty"`
	Creators       []string          `json:"creators,omitempty"`
	Publishers     []string          `json:"publishers,omitempty"`
	Year           *int              `json:"year,omitempty"`
	Formats        []string          `json:"formats,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	Identifiers    map[string]string `json:"identifiers,omitempty"`
	CoverURL       *string           `json:"coverUrl,omitempty"`
	ExternalID     *string           `json:"externalId,omitempty"`
	SourceURL      *string           `json:"sourceUrl,omitempty"`
}

// RecommendedItem is one entry produced by the external recommendation source
// consumed by the feed composer.
type RecommendedItem struct {
	ItemID        string  `json:"itemId"`
	CollectableID *int64  `json:"collectableId,omitempty"`
	Category      string  `json:"category"`
	Title         string  `json:"title"`
	CoverURL      *string `json:"coverUrl,omitempty"`
	Score         float64 `json:"score"`
}

// FeedScope selects whose aggregates a feed read considers.
type FeedScope string

const (
	ScopeSelf    FeedScope = "self"
	ScopeFriends FeedScope = "friends"
	ScopeGlobal  FeedScope = "global"
	ScopeAll     FeedScope = "all"
)

// FeedQuery captures a feed read request.
type FeedQuery struct {
	ViewerID string
	Scope    FeedScope
	Limit    int
	Offset   int
}

// RefKind discriminates feed-entry identifiers. Explicit prefixes replace the
// legacy all-digits heuristic, which misclassified UUIDs starting with digits.
type RefKind string

const (
	RefAggregate   RefKind = "agg"
	RefLegacyShelf RefKind = "shelf"
	RefDiscovery   RefKind = "disc"
)

// FeedRef is a discriminated feed-entry identifier.
type FeedRef struct {
	Kind RefKind `json:"kind"`
	ID   string  `json:"id"`
}

func (r FeedRef) String() string { return string(r.Kind) + ":" + r.ID }

// DisplayHints tells clients how to render a feed entry for a given kind.
type DisplayHints struct {
	ShowCard     bool   `json:"showCard"`
	SectionTitle string `json:"sectionTitle,omitempty"`
	ItemMode     string `json:"itemMode,omitempty"`
}

// FeedEntry is one composed feed line: either an organic aggregate (with
// social counters and previews) or an interleaved discovery item.
type FeedEntry struct {
	Ref          FeedRef           `json:"ref"`
	EntryType    string            `json:"entryType"` // "aggregate" | "discovery"
	Kind         string            `json:"kind,omitempty"`
	OwnerID      string            `json:"ownerId,omitempty"`
	ContextID    *string           `json:"contextId,omitempty"`
	WindowStart  *time.Time        `json:"windowStart,omitempty"`
	LastActivity *time.Time        `json:"lastActivity,omitempty"`
	ItemCount    int               `json:"itemCount,omitempty"`
	Previews     []json.RawMessage `json:"previews,omitempty"`
	Social       *SocialCounters   `json:"social,omitempty"`
	Discovery    *RecommendedItem  `json:"discovery,omitempty"`
	Hints        DisplayHints      `json:"displayHints"`
}

// FeedPage is the paginated feed response.
type FeedPage struct {
	Entries    []FeedEntry `json:"entries"`
	NextOffset int         `json:"nextOffset"`
	HasMore    bool        `json:"hasMore"`
}
