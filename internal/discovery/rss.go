package discovery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/fTr0ut/shelvesai/internal/model"
)

// RSSAdapter normalizes RSS/Atom release feeds (publisher announcements,
// label catalogs) into discovery items of a fixed kind.
type RSSAdapter struct {
	name   string
	url    string
	kind   string
	client *http.Client
	parser *gofeed.Parser
}

func NewRSSAdapter(name, url, kind string) *RSSAdapter {
	return &RSSAdapter{
		name:   name,
		url:    url,
		kind:   kind,
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
	}
}

func (r *RSSAdapter) Provider() string { return r.name }

func (r *RSSAdapter) Fetch(ctx context.Context) ([]model.DiscoveryItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create rss request %s: %w", r.name, err)
	}
	req.Header.Set("User-Agent", "shelvesai/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rss %s: %w", r.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss %s status %d", r.name, resp.StatusCode)
	}

	parsed, err := r.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse rss %s: %w", r.name, err)
	}

	items := make([]model.DiscoveryItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		item := model.DiscoveryItem{
			Title: entry.Title,
			Kind:  r.kind,
			Tags:  entry.Categories,
		}
		if entry.Description != "" {
			desc := truncate(entry.Description, 500)
			item.Description = &desc
		}
		if entry.Author != nil && entry.Author.Name != "" {
			creator := entry.Author.Name
			item.PrimaryCreator = &creator
		}
		if entry.GUID != "" {
			guid := entry.GUID
			item.ExternalID = &guid
		}
		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}
		if link != "" {
			item.SourceURL = &link
		}
		if entry.Image != nil && entry.Image.URL != "" {
			cover := entry.Image.URL
			item.CoverURL = &cover
		}
		if entry.PublishedParsed != nil {
			year := entry.PublishedParsed.UTC().Year()
			item.Year = &year
		}
		items = append(items, item)
	}
	return items, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
