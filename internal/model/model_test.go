package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseFeedRef(t *testing.T) {
	ref, err := ParseFeedRef("agg:4f2c")
	require.NoError(t, err)
	require.Equal(t, FeedRef{Kind: RefAggregate, ID: "4f2c"}, ref)

	ref, err = ParseFeedRef("shelf:123")
	require.NoError(t, err)
	require.Equal(t, RefLegacyShelf, ref.Kind)

	ref, err = ParseFeedRef("disc:rec-9")
	require.NoError(t, err)
	require.Equal(t, RefDiscovery, ref.Kind)
}

func TestParseFeedRefRejectsBareIDs(t *testing.T) {
	// Bare ids are ambiguous: "123" could be a shelf, "4f2c..." an aggregate
	// UUID. Both are rejected instead of guessed at.
	for _, s := range []string{"123", "4f2c9a", "", "agg:", "unknown:1"} {
		_, err := ParseFeedRef(s)
		require.ErrorIs(t, err, ErrValidation, "input %q", s)
	}
}

func TestFeedRefString(t *testing.T) {
	require.Equal(t, "agg:a1", FeedRef{Kind: RefAggregate, ID: "a1"}.String())
}

func TestAggregateOpen(t *testing.T) {
	now := time.Now()
	a := &EventAggregate{WindowEnd: now.Add(time.Minute)}
	require.True(t, a.Open(now))
	require.True(t, a.Open(now.Add(time.Minute))) // boundary is inclusive
	require.False(t, a.Open(now.Add(time.Minute+time.Nanosecond)))
}
