package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"The Hobbit", "the hobbit"},
		{"THE HOBBIT.", "the hobbit"},
		{"  The   Hobbit ", "the hobbit"},
		{"Dune: Messiah!", "dune messiah"},
		{"---", ""},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Normalize(c.in), "input %q", c.in)
	}
}

func TestExactStableAcrossNoise(t *testing.T) {
	a, ok := Exact("The Hobbit", "J.R.R. Tolkien", 1937, "book")
	require.True(t, ok)
	b, ok := Exact("THE HOBBIT.", "j r r tolkien", 1937, "BOOK")
	require.True(t, ok)
	assert.Equal(t, a, b)

	// Repeated calls are referentially stable.
	c, _ := Exact("The Hobbit", "J.R.R. Tolkien", 1937, "book")
	assert.Equal(t, a, c)
}

func TestExactEmptyTitle(t *testing.T) {
	_, ok := Exact("", "Tolkien", 1937, "book")
	assert.False(t, ok)
	_, ok = Exact(" .!? ", "Tolkien", 1937, "book")
	assert.False(t, ok)
}

func TestExactDiscriminates(t *testing.T) {
	a, _ := Exact("The Hobbit", "Tolkien", 1937, "book")
	b, _ := Exact("The Hobbit", "Tolkien", 1937, "movie")
	c, _ := Exact("The Hobbit", "Tolkien", 2012, "book")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestLightIgnoresCreator(t *testing.T) {
	assert.Equal(t, Light("The Hobbit", "book"), Light("the hobbit!", "book"))
	assert.NotEqual(t, Light("The Hobbit", "book"), Light("The Hobbit", "movie"))
}

func TestFuzzyTokenOrderInsensitive(t *testing.T) {
	assert.Equal(t, Fuzzy("Hobbit The", "Tolkien"), Fuzzy("The Hobbit", "Tolkien"))
	assert.NotEqual(t, Fuzzy("The Hobbit", "Tolkien"), Fuzzy("The Silmarillion", "Tolkien"))
}
