package collectables

import (
	"strings"

	"github.com/fTr0ut/shelvesai/internal/model"
)

// merge folds candidate facts into existing without losing anything an earlier
// adapter contributed: incoming non-null scalars win, list fields union with
// order preserved, identifier keys union with incoming winning conflicts, and
// sources only ever append. existing is mutated and returned.
func merge(existing, candidate *model.Collectable) *model.Collectable {
	if candidate.Title != "" {
		existing.Title = candidate.Title
	}
	if candidate.Kind != "" {
		existing.Kind = candidate.Kind
	}
	if candidate.Subtitle != nil {
		existing.Subtitle = candidate.Subtitle
	}
	if candidate.Description != nil {
		existing.Description = candidate.Description
	}
	if candidate.PrimaryCreator != nil {
		existing.PrimaryCreator = candidate.PrimaryCreator
	}
	if candidate.Year != nil {
		existing.Year = candidate.Year
	}
	if candidate.CoverURL != nil {
		existing.CoverURL = candidate.CoverURL
	}
	if candidate.ExternalID != nil {
		existing.ExternalID = candidate.ExternalID
	}
	if candidate.ExactFingerprint != nil {
		existing.ExactFingerprint = candidate.ExactFingerprint
	}
	if candidate.LightFingerprint != "" {
		existing.LightFingerprint = candidate.LightFingerprint
	}

	existing.Creators = unionStrings(existing.Creators, candidate.Creators)
	existing.Publishers = unionStrings(existing.Publishers, candidate.Publishers)
	existing.Formats = unionStrings(existing.Formats, candidate.Formats)
	existing.Tags = unionStrings(existing.Tags, candidate.Tags)
	existing.Images = unionStrings(existing.Images, candidate.Images)
	existing.FuzzyFingerprints = unionStrings(existing.FuzzyFingerprints, candidate.FuzzyFingerprints)

	if len(candidate.Identifiers) > 0 {
		if existing.Identifiers == nil {
			existing.Identifiers = map[string]string{}
		}
		for k, v := range candidate.Identifiers {
			existing.Identifiers[k] = v
		}
	}

	existing.Sources = append(existing.Sources, candidate.Sources...)
	return existing
}

// unionStrings appends items of b missing from a, order-preserving with
// case-insensitive dedup. The first-seen spelling is kept.
func unionStrings(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, lst := range [][]string{a, b} {
		for _, v := range lst {
			key := strings.ToLower(strings.TrimSpace(v))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
