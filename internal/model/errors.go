package model

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
)

// ParseFeedRef parses a discriminated "kind:id" feed reference. It rejects
// bare ids outright rather than guessing from digit shape.
func ParseFeedRef(s string) (FeedRef, error) {
	for _, k := range []RefKind{RefAggregate, RefLegacyShelf, RefDiscovery} {
		prefix := string(k) + ":"
		if len(s) > len(prefix) && s[:len(prefix)] == prefix {
			return FeedRef{Kind: k, ID: s[len(prefix):]}, nil
		}
	}
	return FeedRef{}, ErrValidation
}
