package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clanhub/achievement-engine/internal/domain/achievement"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

func testKey() shared.ProgressKey {
	return shared.ProgressKey{UserID: 7, GroupID: -1001}
}

func systemEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	catalog, err := achievement.NewSystemCatalog()
	require.NoError(t, err)
	return New(catalog)
}

func TestCandidatesIntersectInfluenceSet(t *testing.T) {
	e := systemEvaluator(t)

	candidates := e.Candidates(shared.EventMessageSent)
	ids := make([]string, 0, len(candidates))
	for _, a := range candidates {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []string{"first_message", "active_chatter"}, ids)

	candidates = e.Candidates(shared.EventPlayerStatsUpdated)
	require.Len(t, candidates, 1)
	assert.Equal(t, "trophy_hunter", candidates[0].ID)

	// The synthetic completion event influences nothing directly.
	assert.Empty(t, e.Candidates(shared.EventAchievementCompleted))
}

func TestEvaluateCounterIncrementsOncePerEvent(t *testing.T) {
	e := systemEvaluator(t)
	a, _ := e.Catalog().Get("active_chatter")
	p := achievement.NewProgress(testKey(), a.ID)

	for i := 0; i < 5; i++ {
		updated := e.Evaluate(p, a, shared.EventMessageSent, map[string]interface{}{
			"messages_count": 1,
		})
		assert.True(t, updated)
	}

	assert.Equal(t, float64(5), p.Value("messages_count"))
	assert.Equal(t, achievement.StatusInProgress, p.Status)
}

func TestEvaluateSnapshotOverwrites(t *testing.T) {
	e := systemEvaluator(t)
	a, _ := e.Catalog().Get("trophy_hunter")
	p := achievement.NewProgress(testKey(), a.ID)

	e.Evaluate(p, a, shared.EventPlayerStatsUpdated, map[string]interface{}{"trophies": 2500})
	e.Evaluate(p, a, shared.EventPlayerStatsUpdated, map[string]interface{}{"trophies": 2100})

	// Last write wins: trophies are a snapshot, not a running sum.
	assert.Equal(t, float64(2100), p.Value("trophies"))
}

func TestEvaluateIgnoresMissingFields(t *testing.T) {
	e := systemEvaluator(t)
	a, _ := e.Catalog().Get("trophy_hunter")
	p := achievement.NewProgress(testKey(), a.ID)

	updated := e.Evaluate(p, a, shared.EventPlayerStatsUpdated, map[string]interface{}{
		"player_level": 120,
	})
	assert.False(t, updated)
	assert.Equal(t, achievement.StatusLocked, p.Status)
}

func TestEvaluateCoercesBooleanFlags(t *testing.T) {
	e := systemEvaluator(t)
	a, _ := e.Catalog().Get("passport_created")
	p := achievement.NewProgress(testKey(), a.ID)

	updated := e.Evaluate(p, a, shared.EventPassportCreated, map[string]interface{}{
		"passport_created": true,
	})
	require.True(t, updated)
	assert.Equal(t, float64(1), p.Value("passport_created"))
	assert.True(t, e.CheckCompletion(p, a, nil))
}

func TestEvaluateNeverTouchesCompletedRecords(t *testing.T) {
	e := systemEvaluator(t)
	a, _ := e.Catalog().Get("first_message")
	p := achievement.NewProgress(testKey(), a.ID)
	require.NoError(t, p.Complete())

	updated := e.Evaluate(p, a, shared.EventMessageSent, map[string]interface{}{"messages_count": 1})
	assert.False(t, updated)
}

func TestCheckCompletionRequiresAllRequirements(t *testing.T) {
	e := systemEvaluator(t)
	a, _ := e.Catalog().Get("active_chatter")
	p := achievement.NewProgress(testKey(), a.ID)

	p.SetValue("messages_count", 99)
	assert.False(t, e.CheckCompletion(p, a, nil))

	p.SetValue("messages_count", 100)
	assert.True(t, e.CheckCompletion(p, a, nil))
}

func TestCheckCompletionGatesOnPrerequisites(t *testing.T) {
	e := systemEvaluator(t)
	a, _ := e.Catalog().Get("trophy_hunter")
	p := achievement.NewProgress(testKey(), a.ID)
	p.SetValue("trophies", 5000)

	// Own requirements satisfied, prerequisite not completed.
	assert.False(t, e.CheckCompletion(p, a, map[string]achievement.Status{
		"player_bound": achievement.StatusInProgress,
	}))

	// Missing prerequisite record counts as LOCKED.
	assert.False(t, e.CheckCompletion(p, a, map[string]achievement.Status{}))

	assert.True(t, e.CheckCompletion(p, a, map[string]achievement.Status{
		"player_bound": achievement.StatusCompleted,
	}))
	assert.True(t, e.CheckCompletion(p, a, map[string]achievement.Status{
		"player_bound": achievement.StatusClaimed,
	}))
}
