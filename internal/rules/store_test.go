package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Add(t *testing.T) {
	t.Parallel()

	t.Run("assigns an id when missing", func(t *testing.T) {
		t.Parallel()

		s := NewStore()
		stored, err := s.Add(Rule{Name: "Free delivery"})
		require.NoError(t, err)
		assert.Equal(t, "BR001", stored.RuleID)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("keeps insertion order", func(t *testing.T) {
		t.Parallel()

		s := NewStore()
		_, err := s.Add(Rule{RuleID: "BR001", Name: "First"})
		require.NoError(t, err)
		_, err = s.Add(Rule{RuleID: "BR002", Name: "Second"})
		require.NoError(t, err)

		list := s.List()
		require.Len(t, list, 2)
		assert.Equal(t, "First", list[0].Name)
		assert.Equal(t, "Second", list[1].Name)
	})

	t.Run("rejects a duplicate id", func(t *testing.T) {
		t.Parallel()

		s := NewStore()
		_, err := s.Add(Rule{RuleID: "BR001", Name: "First"})
		require.NoError(t, err)

		_, err = s.Add(Rule{RuleID: "BR001", Name: "Second"})
		require.ErrorIs(t, err, ErrDuplicateID)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("generated ids never collide", func(t *testing.T) {
		t.Parallel()

		s := NewStore()
		for _, name := range []string{"A", "B", "A", "C", "A"} {
			_, err := s.Add(Rule{Name: name})
			require.NoError(t, err)
		}

		seen := map[string]bool{}
		for _, r := range s.List() {
			assert.False(t, seen[r.RuleID], "duplicate id %s", r.RuleID)
			seen[r.RuleID] = true
		}
	})
}

func TestStore_Replace(t *testing.T) {
	t.Parallel()

	t.Run("swaps the rule in place", func(t *testing.T) {
		t.Parallel()

		s := NewStore()
		_, err := s.Add(Rule{RuleID: "BR001", Name: "First"})
		require.NoError(t, err)
		_, err = s.Add(Rule{RuleID: "BR002", Name: "Second"})
		require.NoError(t, err)

		require.NoError(t, s.Replace(Rule{RuleID: "BR001", Name: "First, revised"}))

		list := s.List()
		assert.Equal(t, "First, revised", list[0].Name)
		assert.Equal(t, "Second", list[1].Name)
	})

	t.Run("unknown id is an error", func(t *testing.T) {
		t.Parallel()

		s := NewStore()
		err := s.Replace(Rule{RuleID: "BR404", Name: "Ghost"})
		require.ErrorIs(t, err, ErrRuleNotFound)
	})
}

func TestStore_FindByID(t *testing.T) {
	t.Parallel()

	s := NewStore()
	_, err := s.Add(Rule{RuleID: "BR001", Name: "First"})
	require.NoError(t, err)

	got, ok := s.FindByID("BR001")
	require.True(t, ok)
	assert.Equal(t, "First", got.Name)

	_, ok = s.FindByID("BR404")
	assert.False(t, ok)
}

func TestStore_List(t *testing.T) {
	t.Parallel()

	t.Run("returns a copy", func(t *testing.T) {
		t.Parallel()

		s := NewStore()
		_, err := s.Add(Rule{RuleID: "BR001", Name: "First"})
		require.NoError(t, err)

		list := s.List()
		list[0].Name = "Mutated"

		got, ok := s.FindByID("BR001")
		require.True(t, ok)
		assert.Equal(t, "First", got.Name)
	})

	t.Run("empty store lists nothing", func(t *testing.T) {
		t.Parallel()

		s := NewStore()
		assert.Empty(t, s.List())
	})
}

func TestStore_SetAll(t *testing.T) {
	t.Parallel()

	s := NewStore()
	_, err := s.Add(Rule{RuleID: "BR001", Name: "Old"})
	require.NoError(t, err)

	hydrated := []Rule{
		{RuleID: "BR010", Name: "Restored one"},
		{RuleID: "BR011", Name: "Restored two"},
	}
	s.SetAll(hydrated)

	assert.Equal(t, 2, s.Len())
	_, ok := s.FindByID("BR001")
	assert.False(t, ok)

	hydrated[0].Name = "Mutated"
	got, ok := s.FindByID("BR010")
	require.True(t, ok)
	assert.Equal(t, "Restored one", got.Name)
}
