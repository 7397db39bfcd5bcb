package achievement

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

func simpleAchievement(id string, prereqs ...string) Achievement {
	return Achievement{
		ID:          id,
		Name:        id,
		Description: id,
		Category:    CategorySocial,
		Difficulty:  DifficultyBronze,
		Requirements: []Requirement{
			{Type: "messages_count", Target: 1},
		},
		Prerequisites: prereqs,
	}
}

func TestNewCatalogValid(t *testing.T) {
	catalog, err := NewCatalog([]Achievement{
		simpleAchievement("a"),
		simpleAchievement("b", "a"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, catalog.Size())

	a, ok := catalog.Get("a")
	require.True(t, ok)
	assert.Equal(t, 100, a.MaxProgress) // default scale

	_, ok = catalog.Get("missing")
	assert.False(t, ok)
}

func TestNewCatalogRejectsDuplicateIDs(t *testing.T) {
	_, err := NewCatalog([]Achievement{
		simpleAchievement("a"),
		simpleAchievement("a"),
	})
	assert.True(t, errors.Is(err, shared.ErrAlreadyExists))
}

func TestNewCatalogRejectsUnknownPrerequisite(t *testing.T) {
	_, err := NewCatalog([]Achievement{
		simpleAchievement("a", "ghost"),
	})
	assert.True(t, errors.Is(err, shared.ErrInvalidEntity))
}

func TestNewCatalogRejectsPrerequisiteCycle(t *testing.T) {
	_, err := NewCatalog([]Achievement{
		simpleAchievement("a", "b"),
		simpleAchievement("b", "a"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrPrerequisiteCycle))
}

func TestNewCatalogRejectsSelfPrerequisite(t *testing.T) {
	_, err := NewCatalog([]Achievement{
		simpleAchievement("a", "a"),
	})
	assert.True(t, errors.Is(err, shared.ErrPrerequisiteCycle))
}

func TestNewCatalogRejectsLongCycle(t *testing.T) {
	_, err := NewCatalog([]Achievement{
		simpleAchievement("a", "c"),
		simpleAchievement("b", "a"),
		simpleAchievement("c", "b"),
	})
	assert.True(t, errors.Is(err, shared.ErrPrerequisiteCycle))
}

func TestCatalogDependents(t *testing.T) {
	catalog, err := NewCatalog([]Achievement{
		simpleAchievement("root"),
		simpleAchievement("child1", "root"),
		simpleAchievement("child2", "root"),
		simpleAchievement("grandchild", "child1"),
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"child1", "child2"}, catalog.Dependents("root"))
	assert.Equal(t, []string{"grandchild"}, catalog.Dependents("child1"))
	assert.Empty(t, catalog.Dependents("grandchild"))
}

func TestCatalogByCategory(t *testing.T) {
	social := simpleAchievement("social1")
	game := simpleAchievement("game1")
	game.Category = CategoryGameProgress

	catalog, err := NewCatalog([]Achievement{social, game})
	require.NoError(t, err)

	found := catalog.ByCategory(CategoryGameProgress)
	require.Len(t, found, 1)
	assert.Equal(t, "game1", found[0].ID)
}

func TestSystemCatalogLoads(t *testing.T) {
	catalog, err := NewSystemCatalog()
	require.NoError(t, err)
	assert.Equal(t, 6, catalog.Size())

	// player_bound gates trophy_hunter, passport_created gates player_bound.
	trophy, ok := catalog.Get("trophy_hunter")
	require.True(t, ok)
	assert.Equal(t, []string{"player_bound"}, trophy.Prerequisites)

	bound, ok := catalog.Get("player_bound")
	require.True(t, ok)
	assert.Equal(t, []string{"passport_created"}, bound.Prerequisites)
}
