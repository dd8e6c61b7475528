package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveDefaultsDerivesDriver(t *testing.T) {
	cfg := NewForTesting()
	cfg.DBDriver = "auto"
	require.NoError(t, cfg.ResolveDefaults())
	require.Equal(t, "sqlite", cfg.DBDriver)

	cfg = NewForTesting()
	cfg.BuildTarget = "cloud"
	cfg.DBDriver = "auto"
	cfg.PostgresDSN = "postgres://localhost/shelves"
	require.NoError(t, cfg.ResolveDefaults())
	require.Equal(t, "postgres", cfg.DBDriver)
}

func TestResolveDefaultsRejectsBadValues(t *testing.T) {
	cfg := NewForTesting()
	cfg.BuildTarget = "mainframe"
	require.Error(t, cfg.ResolveDefaults())

	cfg = NewForTesting()
	cfg.DBDriver = "oracle"
	require.Error(t, cfg.ResolveDefaults())

	cfg = NewForTesting()
	cfg.BuildTarget = "cloud"
	cfg.DBDriver = "postgres"
	cfg.PostgresDSN = ""
	require.Error(t, cfg.ResolveDefaults())

	cfg = NewForTesting()
	cfg.FuzzyThreshold = 1.5
	require.Error(t, cfg.ResolveDefaults())

	cfg = NewForTesting()
	cfg.AggregateWindow = -time.Minute
	require.Error(t, cfg.ResolveDefaults())
}

func TestParseRSSFeeds(t *testing.T) {
	cfg := NewForTesting()
	cfg.RSSFeeds = "pubfeed|https://pub.example.com/rss|book, label|https://label.example.com/atom|album"
	feeds, err := cfg.ParseRSSFeeds()
	require.NoError(t, err)
	require.Equal(t, []RSSFeed{
		{Provider: "pubfeed", URL: "https://pub.example.com/rss", Kind: "book"},
		{Provider: "label", URL: "https://label.example.com/atom", Kind: "album"},
	}, feeds)

	cfg.RSSFeeds = "missing-parts|http://x"
	_, err = cfg.ParseRSSFeeds()
	require.Error(t, err)

	cfg.RSSFeeds = ""
	feeds, err = cfg.ParseRSSFeeds()
	require.NoError(t, err)
	require.Nil(t, feeds)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SHELVES_HTTP_PORT", "9102")
	t.Setenv("SHELVES_AGGREGATE_WINDOW", "30m")
	t.Setenv("SHELVES_DISCOVERY_STRIDE", "3")

	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, 9102, cfg.HTTPPort)
	require.Equal(t, 30*time.Minute, cfg.AggregateWindow)
	require.Equal(t, 3, cfg.DiscoveryStride)
}

func TestAggregateWindowDefault(t *testing.T) {
	t.Setenv("SHELVES_AGGREGATE_WINDOW", "")
	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, cfg.AggregateWindow)
}
