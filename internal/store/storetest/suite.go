package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fTr0ut/shelvesai/internal/model"
	"github.com/fTr0ut/shelvesai/internal/store"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// Run exercises a compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	// Unique per run so the suite can rerun against a persistent database.
	run := uuid.New().String()[:8]
	alice := "alice-" + run
	bob := "bob-" + run
	carol := "carol-" + run

	// --- Collectables ---
	c1, err := s.Collectables().Insert(ctx, &model.Collectable{
		Kind:             "book",
		Title:            "The Hobbit",
		PrimaryCreator:   strPtr("J.R.R. Tolkien"),
		Year:             intPtr(1937),
		Tags:             []string{"adventure"},
		Identifiers:      map[string]string{"isbn": "9780261103344"},
		ExactFingerprint: strPtr("exact-hobbit-" + run),
		LightFingerprint: "light-hobbit-" + run,
		Sources:          []model.SourceRef{{Provider: "nyt", DiscoveredAt: time.Now().UTC()}},
	})
	if err != nil {
		t.Fatalf("InsertCollectable: %v", err)
	}
	if c1.ID == 0 {
		t.Fatalf("InsertCollectable: zero id")
	}

	if got, err := s.Collectables().GetByID(ctx, c1.ID); err != nil || got.Title != "The Hobbit" {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if _, err := s.Collectables().GetByID(ctx, 999999); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetByID missing: want ErrNotFound, got %v", err)
	}

	// Exact fingerprint is unique; a second insert must surface ErrConflict.
	if _, err := s.Collectables().Insert(ctx, &model.Collectable{
		Kind: "book", Title: "The Hobbit (dup)",
		ExactFingerprint: strPtr("exact-hobbit-" + run), LightFingerprint: "light-hobbit-" + run,
	}); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate exact fp: want ErrConflict, got %v", err)
	}

	if got, err := s.Collectables().FindByExactFingerprint(ctx, "exact-hobbit-" + run); err != nil || got == nil || got.ID != c1.ID {
		t.Fatalf("FindByExactFingerprint: got=%v err=%v", got, err)
	}
	if got, err := s.Collectables().FindByExactFingerprint(ctx, "no-such"); err != nil || got != nil {
		t.Fatalf("FindByExactFingerprint miss: got=%v err=%v", got, err)
	}
	if lst, err := s.Collectables().FindByLightFingerprint(ctx, "light-hobbit-" + run); err != nil || len(lst) != 1 {
		t.Fatalf("FindByLightFingerprint: n=%d err=%v", len(lst), err)
	}

	// Fuzzy fingerprints accumulate idempotently.
	if err := s.Collectables().AddFuzzyFingerprint(ctx, c1.ID, "fz-" + run); err != nil {
		t.Fatalf("AddFuzzyFingerprint: %v", err)
	}
	if err := s.Collectables().AddFuzzyFingerprint(ctx, c1.ID, "fz-" + run); err != nil {
		t.Fatalf("AddFuzzyFingerprint repeat: %v", err)
	}
	if got, err := s.Collectables().GetByID(ctx, c1.ID); err != nil || len(got.FuzzyFingerprints) != 1 {
		t.Fatalf("fuzzy fps after repeat add: got=%v err=%v", got, err)
	}
	if got, err := s.Collectables().FindByFuzzyFingerprint(ctx, "fz-" + run); err != nil || got == nil || got.ID != c1.ID {
		t.Fatalf("FindByFuzzyFingerprint: got=%v err=%v", got, err)
	}

	// Sources append-only.
	if err := s.Collectables().AppendSource(ctx, c1.ID, model.SourceRef{Provider: "tmdb", DiscoveredAt: time.Now().UTC()}); err != nil {
		t.Fatalf("AppendSource: %v", err)
	}
	if got, _ := s.Collectables().GetByID(ctx, c1.ID); len(got.Sources) != 2 {
		t.Fatalf("sources after append: n=%d", len(got.Sources))
	}

	// Update round-trips merged fields.
	c1.Tags = []string{"adventure", "sci-fi"}
	c1.Identifiers["upc"] = "12345"
	if _, err := s.Collectables().Update(ctx, c1); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got, _ := s.Collectables().GetByID(ctx, c1.ID); len(got.Tags) != 2 || got.Identifiers["upc"] != "12345" {
		t.Fatalf("after update: tags=%v ids=%v", got.Tags, got.Identifiers)
	}

	if err := s.Collectables().SetCoverPath(ctx, c1.ID, "/cache/ab/cd.jpg"); err != nil {
		t.Fatalf("SetCoverPath: %v", err)
	}

	lst, err := s.Collectables().ListCandidates(ctx, "book", 100)
	if err != nil {
		t.Fatalf("ListCandidates book: %v", err)
	}
	found := false
	for _, c := range lst {
		if c.ID == c1.ID {
			found = true
		}
		if c.Kind != "book" {
			t.Fatalf("ListCandidates book returned kind %q", c.Kind)
		}
	}
	if !found {
		t.Fatalf("ListCandidates book: %d rows, c1 missing", len(lst))
	}

	// --- Aggregates: extend within window, roll over after expiry ---
	shelf := "shelf-1"
	ev := model.Event{
		OwnerID:    alice,
		ContextID:  &shelf,
		Kind:       "item_added",
		Visibility: model.VisibilityPublic,
		Payload:    json.RawMessage(`{"title":"The Hobbit"}`),
	}
	p := store.RecordEventParams{Event: ev, ItemCount: 1, Window: time.Hour, PreviewCap: 2}

	a1, e1, err := s.Aggregates().RecordEvent(ctx, p)
	if err != nil {
		t.Fatalf("RecordEvent 1: %v", err)
	}
	if e1.AggregateID == nil || *e1.AggregateID != a1.AggregateID {
		t.Fatalf("log entry not linked: %v", e1.AggregateID)
	}

	a2, _, err := s.Aggregates().RecordEvent(ctx, p)
	if err != nil {
		t.Fatalf("RecordEvent 2: %v", err)
	}
	if a2.AggregateID != a1.AggregateID {
		t.Fatalf("window exclusivity: got second aggregate %s within open window", a2.AggregateID)
	}
	if a2.ItemCount != 2 {
		t.Fatalf("item count: want 2 got %d", a2.ItemCount)
	}

	// Preview ring is capped while the count keeps growing.
	a3, _, err := s.Aggregates().RecordEvent(ctx, p)
	if err != nil {
		t.Fatalf("RecordEvent 3: %v", err)
	}
	if len(a3.Previews) != 2 || a3.ItemCount != 3 {
		t.Fatalf("preview cap: previews=%d count=%d", len(a3.Previews), a3.ItemCount)
	}

	// Rollover: an elapsed window forces a distinct aggregate for the same key.
	short := p
	short.Window = 10 * time.Millisecond
	short.Event.Kind = "rated"
	b1, _, err := s.Aggregates().RecordEvent(ctx, short)
	if err != nil {
		t.Fatalf("RecordEvent short 1: %v", err)
	}
	time.Sleep(25 * time.Millisecond)
	b2, _, err := s.Aggregates().RecordEvent(ctx, short)
	if err != nil {
		t.Fatalf("RecordEvent short 2: %v", err)
	}
	if b1.AggregateID == b2.AggregateID {
		t.Fatalf("rollover: expected distinct aggregate after window elapsed")
	}
	if b2.ItemCount != 1 {
		t.Fatalf("rollover count: want 1 got %d", b2.ItemCount)
	}

	if got, err := s.Aggregates().GetByID(ctx, a1.AggregateID); err != nil || got.ItemCount != 3 {
		t.Fatalf("GetByID aggregate: got=%v err=%v", got, err)
	}
	if entries, err := s.Events().ListByAggregate(ctx, a1.AggregateID); err != nil || len(entries) != 3 {
		t.Fatalf("ListByAggregate: n=%d err=%v", len(entries), err)
	}

	// Standalone log entry with no aggregate link.
	if e, err := s.Events().Insert(ctx, &model.EventLogEntry{Kind: "system_notice"}); err != nil || e.EntryID == "" || e.AggregateID != nil {
		t.Fatalf("standalone entry: got=%v err=%v", e, err)
	}

	// --- Social ---
	if err := s.Social().Like(ctx, a1.AggregateID, bob); err != nil {
		t.Fatalf("Like: %v", err)
	}
	if err := s.Social().Like(ctx, a1.AggregateID, bob); err != nil {
		t.Fatalf("Like repeat: %v", err)
	}
	if _, err := s.Social().AddComment(ctx, &model.Comment{AggregateID: a1.AggregateID, OwnerID: bob, Body: "nice shelf"}); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	counts, err := s.Social().CountsFor(ctx, []string{a1.AggregateID}, bob)
	if err != nil {
		t.Fatalf("CountsFor: %v", err)
	}
	sc := counts[a1.AggregateID]
	if sc == nil || sc.LikeCount != 1 || sc.CommentCount != 1 || !sc.ViewerLiked || sc.LatestComment == nil {
		t.Fatalf("social counters: %+v", sc)
	}
	if err := s.Social().Unlike(ctx, a1.AggregateID, bob); err != nil {
		t.Fatalf("Unlike: %v", err)
	}

	// --- Friends + visibility ---
	privShelf := "shelf-private"
	priv := store.RecordEventParams{Event: model.Event{
		OwnerID: alice, ContextID: &privShelf, Kind: "item_added",
		Visibility: model.VisibilityPrivate,
	}, ItemCount: 1, Window: time.Hour, PreviewCap: 2}
	if _, _, err := s.Aggregates().RecordEvent(ctx, priv); err != nil {
		t.Fatalf("RecordEvent private: %v", err)
	}
	frShelf := "shelf-friends"
	fronly := store.RecordEventParams{Event: model.Event{
		OwnerID: alice, ContextID: &frShelf, Kind: "item_added",
		Visibility: model.VisibilityFriends,
	}, ItemCount: 1, Window: time.Hour, PreviewCap: 2}
	if _, _, err := s.Aggregates().RecordEvent(ctx, fronly); err != nil {
		t.Fatalf("RecordEvent friends-only: %v", err)
	}

	// Stranger sees only public aggregates.
	visible, err := s.Aggregates().ListVisible(ctx, model.FeedQuery{ViewerID: carol, Scope: model.ScopeAll, Limit: 50})
	if err != nil {
		t.Fatalf("ListVisible stranger: %v", err)
	}
	for _, a := range visible {
		if a.Visibility != model.VisibilityPublic {
			t.Fatalf("stranger saw %s aggregate %s", a.Visibility, a.AggregateID)
		}
	}

	// Accepted friendship (reverse direction) unlocks friends-only.
	if err := s.Friends().Upsert(ctx, &model.Friendship{OwnerID: carol, FriendID: alice, Status: model.FriendshipAccepted}); err != nil {
		t.Fatalf("Friends.Upsert: %v", err)
	}
	if ok, err := s.Friends().AreFriends(ctx, alice, carol); err != nil || !ok {
		t.Fatalf("AreFriends: ok=%v err=%v", ok, err)
	}
	visible, err = s.Aggregates().ListVisible(ctx, model.FeedQuery{ViewerID: carol, Scope: model.ScopeAll, Limit: 50})
	if err != nil {
		t.Fatalf("ListVisible friend: %v", err)
	}
	sawFriendsOnly := false
	for _, a := range visible {
		if a.Visibility == model.VisibilityPrivate && a.OwnerID != carol {
			t.Fatalf("friend saw private aggregate %s", a.AggregateID)
		}
		if a.Visibility == model.VisibilityFriends {
			sawFriendsOnly = true
		}
	}
	if !sawFriendsOnly {
		t.Fatalf("friend did not see friends-only aggregate")
	}

	// Owner's self scope includes everything of their own.
	selfVisible, err := s.Aggregates().ListVisible(ctx, model.FeedQuery{ViewerID: alice, Scope: model.ScopeSelf, Limit: 50})
	if err != nil || len(selfVisible) < 4 {
		t.Fatalf("ListVisible self: n=%d err=%v", len(selfVisible), err)
	}

	// --- Discovery seen marks ---
	if err := s.Discovery().MarkSeen(ctx, carol, []string{"d1-" + run, "d2-" + run}); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if err := s.Discovery().MarkSeen(ctx, carol, []string{"d1-" + run}); err != nil {
		t.Fatalf("MarkSeen repeat: %v", err)
	}
	seen, err := s.Discovery().Seen(ctx, carol)
	if err != nil || len(seen) != 2 || !seen["d1-" + run] {
		t.Fatalf("Seen: got=%v err=%v", seen, err)
	}
}
