package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupIndustry(t *testing.T) {
	t.Parallel()

	t.Run("returns the named configuration", func(t *testing.T) {
		t.Parallel()

		config := LookupIndustry("manufacturing")
		assert.Equal(t, "manufacturing", config.Name)
		assert.Equal(t, "production_capacity", config.KeyParameters[0])
		assert.Len(t, config.ImpactAreas, 4)
	})

	t.Run("unknown industry falls back to generic", func(t *testing.T) {
		t.Parallel()

		config := LookupIndustry("aviation")
		assert.Equal(t, DefaultIndustry, config.Name)
	})

	t.Run("empty industry falls back to generic", func(t *testing.T) {
		t.Parallel()

		config := LookupIndustry("")
		assert.Equal(t, DefaultIndustry, config.Name)
	})
}

func TestIndustries(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		[]string{"generic", "healthcare", "manufacturing", "restaurant", "retail"},
		Industries())
}
