package leaderboard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, MetricTotalPoints, m)

	m, err = ParseMetric("level")
	require.NoError(t, err)
	assert.Equal(t, MetricLevel, m)

	_, err = ParseMetric("karma")
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestAssignRanksOrdersByScoreDescending(t *testing.T) {
	entries := AssignRanks([]Entry{
		{UserID: 1, Score: 10},
		{UserID: 2, Score: 30},
		{UserID: 3, Score: 20},
	})

	require.Len(t, entries, 3)
	assert.Equal(t, shared.UserID(2), entries[0].UserID)
	assert.Equal(t, shared.UserID(3), entries[1].UserID)
	assert.Equal(t, shared.UserID(1), entries[2].UserID)
	assert.Equal(t, shared.Rank(1), entries[0].Rank)
	assert.Equal(t, shared.Rank(2), entries[1].Rank)
	assert.Equal(t, shared.Rank(3), entries[2].Rank)
}

func TestAssignRanksBreaksTiesByLevel(t *testing.T) {
	entries := AssignRanks([]Entry{
		{UserID: 1, Score: 100, Level: 2},
		{UserID: 2, Score: 100, Level: 7},
	})

	assert.Equal(t, shared.UserID(2), entries[0].UserID)
	assert.Equal(t, shared.Rank(1), entries[0].Rank)
	assert.Equal(t, shared.Rank(2), entries[1].Rank)
}

func TestAssignRanksSharesRankOnFullTies(t *testing.T) {
	entries := AssignRanks([]Entry{
		{UserID: 1, Score: 100, Level: 5},
		{UserID: 2, Score: 100, Level: 5},
		{UserID: 3, Score: 90, Level: 1},
	})

	// Tied on both score and level: a shared rank, and the next distinct
	// entry follows without a gap.
	assert.Equal(t, shared.Rank(1), entries[0].Rank)
	assert.Equal(t, shared.Rank(1), entries[1].Rank)
	assert.Equal(t, shared.Rank(2), entries[2].Rank)
}
