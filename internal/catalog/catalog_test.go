package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	c := New()

	t.Run("seed ids are unique and ordered", func(t *testing.T) {
		seen := make(map[string]bool)
		previous := -1
		for _, category := range c.Categories() {
			for _, b := range category.Boundaries {
				require.False(t, seen[string(b.ID)], "duplicate boundary id %s", b.ID)
				seen[string(b.ID)] = true
				idx := c.OrderIndex(b.ID)
				assert.Greater(t, idx, previous, "catalog order is strictly increasing")
				previous = idx
			}
		}
		assert.Equal(t, len(seen), c.Size())
	})

	t.Run("lookups", func(t *testing.T) {
		assert.True(t, c.Exists("hand-holding"))
		b, ok := c.Get("hand-holding")
		require.True(t, ok)
		assert.Equal(t, "Holding hands", b.Label)
		assert.Equal(t, "affection", b.Category)

		assert.False(t, c.Exists("no-such-boundary"))
		assert.Equal(t, c.Size(), c.OrderIndex("no-such-boundary"), "unknown ids sort last")
	})
}
