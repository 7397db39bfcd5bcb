package messaging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false, EnableMetrics: true})
}

func TestBusDeliversToTypedAndGlobalHandlers(t *testing.T) {
	bus := syncBus()

	typed, global := 0, 0
	require.NoError(t, bus.Subscribe(shared.EventAchievementCompleted, func(shared.Event) error {
		typed++
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		global++
		return nil
	}))

	key := shared.ProgressKey{UserID: 1, GroupID: -1}
	require.NoError(t, bus.Publish(shared.NewAchievementCompletedEvent(key, "first_message", "Первые шаги")))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent(key, 1, 2)))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, global)
}

func TestBusHandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus := syncBus()

	delivered := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		return errors.New("boom")
	}))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		delivered++
		return nil
	}))

	key := shared.ProgressKey{UserID: 1, GroupID: -1}
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent(key, 1, 2)))
	assert.Equal(t, 1, delivered)

	snapshot := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snapshot.TotalHandlerExecs)
	assert.InDelta(t, 0.5, snapshot.HandlerSuccessRate, 0.001)
}

func TestBusRejectsUseAfterClose(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())

	key := shared.ProgressKey{UserID: 1, GroupID: -1}
	assert.ErrorIs(t, bus.Publish(shared.NewLevelUpEvent(key, 1, 2)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventMessageSent, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.NoError(t, bus.Close())
}
