package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clanhub/achievement-engine/internal/application/evaluator"
	"github.com/clanhub/achievement-engine/internal/domain/achievement"
	"github.com/clanhub/achievement-engine/internal/domain/profile"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeProgressRepo struct {
	mu      sync.Mutex
	records map[string]*achievement.Progress
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{records: make(map[string]*achievement.Progress)}
}

func progressMapKey(key shared.ProgressKey, achievementID string) string {
	return key.String() + "/" + achievementID
}

func (r *fakeProgressRepo) Find(_ context.Context, key shared.ProgressKey, achievementID string) (*achievement.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[progressMapKey(key, achievementID)]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return p, nil
}

func (r *fakeProgressRepo) FindOrCreate(_ context.Context, key shared.ProgressKey, achievementID string) (*achievement.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := progressMapKey(key, achievementID)
	if p, ok := r.records[id]; ok {
		return p, nil
	}
	p := achievement.NewProgress(key, achievementID)
	r.records[id] = p
	return p, nil
}

func (r *fakeProgressRepo) FindAll(_ context.Context, key shared.ProgressKey) (map[string]*achievement.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make(map[string]*achievement.Progress)
	for _, p := range r.records {
		if p.Key == key {
			result[p.AchievementID] = p
		}
	}
	return result, nil
}

func (r *fakeProgressRepo) Save(_ context.Context, p *achievement.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[progressMapKey(p.Key, p.AchievementID)] = p
	return nil
}

func (r *fakeProgressRepo) Claim(_ context.Context, key shared.ProgressKey, achievementID string, claimedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[progressMapKey(key, achievementID)]
	if !ok {
		return shared.ErrProgressNotFound
	}
	switch p.Status {
	case achievement.StatusClaimed:
		return shared.ErrAlreadyClaimed
	case achievement.StatusCompleted:
		p.Status = achievement.StatusClaimed
		p.ClaimedAt = &claimedAt
		p.UpdatedAt = claimedAt
		return nil
	default:
		return shared.ErrNotCompleted
	}
}

func (r *fakeProgressRepo) StatusOf(_ context.Context, key shared.ProgressKey, achievementIDs []string) (map[string]achievement.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make(map[string]achievement.Status, len(achievementIDs))
	for _, id := range achievementIDs {
		if p, ok := r.records[progressMapKey(key, id)]; ok {
			result[id] = p.Status
		} else {
			result[id] = achievement.StatusLocked
		}
	}
	return result, nil
}

func (r *fakeProgressRepo) CountByStatus(_ context.Context, key shared.ProgressKey) (map[achievement.Status]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make(map[achievement.Status]int)
	for _, p := range r.records {
		if p.Key == key {
			result[p.Status]++
		}
	}
	return result, nil
}

type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*profile.Profile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[string]*profile.Profile)}
}

func (r *fakeProfileRepo) Find(_ context.Context, key shared.ProgressKey) (*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[key.String()]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return p, nil
}

func (r *fakeProfileRepo) FindOrCreate(_ context.Context, key shared.ProgressKey) (*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.profiles[key.String()]; ok {
		return p, nil
	}
	p := profile.NewProfile(key)
	r.profiles[key.String()] = p
	return p, nil
}

func (r *fakeProfileRepo) Save(_ context.Context, p *profile.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.Key.String()] = p
	return nil
}

func (r *fakeProfileRepo) Top(_ context.Context, _ shared.GroupID, _ string, _ int) ([]*profile.Profile, error) {
	return nil, nil
}

type fakeEventLog struct {
	mu      sync.Mutex
	entries []shared.Envelope
	failing bool
}

func (l *fakeEventLog) Append(_ context.Context, envelope shared.Envelope) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failing {
		return shared.ErrStorage
	}
	l.entries = append(l.entries, envelope)
	return nil
}

func (l *fakeEventLog) ListRecent(_ context.Context, key shared.ProgressKey, limit int) ([]shared.Envelope, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var result []shared.Envelope
	for i := len(l.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if l.entries[i].Key() == key {
			result = append(result, l.entries[i])
		}
	}
	return result, nil
}

func (l *fakeEventLog) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURE
// ══════════════════════════════════════════════════════════════════════════════

type dispatcherFixture struct {
	dispatcher *Dispatcher
	queue      *Queue
	progress   *fakeProgressRepo
	profiles   *fakeProfileRepo
	eventLog   *fakeEventLog
	bus        *InMemoryEventBus
	key        shared.ProgressKey
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()

	catalog, err := achievement.NewSystemCatalog()
	require.NoError(t, err)

	queue := NewQueue(QueueConfig{Capacity: 64, DedupWindow: time.Millisecond, DedupTTL: time.Minute})
	progressRepo := newFakeProgressRepo()
	profileRepo := newFakeProfileRepo()
	eventLog := &fakeEventLog{}
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})

	d := NewDispatcher(DispatcherConfig{
		Queue:        queue,
		Evaluator:    evaluator.New(catalog),
		Bus:          bus,
		ProgressRepo: progressRepo,
		ProfileRepo:  profileRepo,
		EventLog:     eventLog,
	})

	return &dispatcherFixture{
		dispatcher: d,
		queue:      queue,
		progress:   progressRepo,
		profiles:   profileRepo,
		eventLog:   eventLog,
		bus:        bus,
		key:        shared.ProgressKey{UserID: 42, GroupID: -100500},
	}
}

// feed processes one event plus every synthetic event it cascades into.
func (f *dispatcherFixture) feed(t *testing.T, eventType shared.EventType, data map[string]interface{}) {
	t.Helper()
	ctx := context.Background()

	f.dispatcher.process(ctx, shared.NewEnvelope(f.key.UserID, f.key.GroupID, eventType, data))
	for f.queue.Len() > 0 {
		envelope, ok := f.queue.Dequeue(make(chan struct{}), 10*time.Millisecond)
		if !ok {
			break
		}
		f.dispatcher.process(ctx, envelope)
	}
}

func (f *dispatcherFixture) statusOf(t *testing.T, achievementID string) achievement.Status {
	t.Helper()
	statuses, err := f.progress.StatusOf(context.Background(), f.key, []string{achievementID})
	require.NoError(t, err)
	return statuses[achievementID]
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestProcessCompletesSingleRequirementAchievement(t *testing.T) {
	f := newDispatcherFixture(t)

	f.feed(t, shared.EventMessageSent, map[string]interface{}{"message_id": 1})

	assert.Equal(t, achievement.StatusCompleted, f.statusOf(t, "first_message"))
	assert.Equal(t, achievement.StatusInProgress, f.statusOf(t, "active_chatter"))

	prof, err := f.profiles.Find(context.Background(), f.key)
	require.NoError(t, err)
	assert.Equal(t, 1, prof.AchievementsCompleted)
	// Points are granted on claim, never on completion.
	assert.Equal(t, 0, prof.TotalPoints.Int())
}

func TestProcessAccumulatesCounterProgress(t *testing.T) {
	f := newDispatcherFixture(t)

	for i := 0; i < 3; i++ {
		f.feed(t, shared.EventMessageSent, map[string]interface{}{"message_id": i})
	}

	p, err := f.progress.Find(context.Background(), f.key, "active_chatter")
	require.NoError(t, err)
	assert.Equal(t, float64(3), p.Value("messages_count"))
	assert.Equal(t, float64(3), p.Percentage)
}

func TestProcessHoldsBackGatedAchievement(t *testing.T) {
	f := newDispatcherFixture(t)

	// player_bound requires passport_created to be completed first.
	f.feed(t, shared.EventPlayerBound, map[string]interface{}{"player_tag": "#ABC123"})

	p, err := f.progress.Find(context.Background(), f.key, "player_bound")
	require.NoError(t, err)
	assert.Equal(t, achievement.StatusInProgress, p.Status)
	assert.Equal(t, float64(1), p.Value("player_bound"))
}

func TestProcessCascadesCompletionThroughPrerequisites(t *testing.T) {
	f := newDispatcherFixture(t)

	// Requirements for player_bound are met, but its prerequisite is not.
	f.feed(t, shared.EventPlayerBound, map[string]interface{}{"player_tag": "#ABC123"})
	require.Equal(t, achievement.StatusInProgress, f.statusOf(t, "player_bound"))

	// Completing the prerequisite re-injects a synthetic completion event,
	// and the cascade unlocks the dependent in the same pass.
	f.feed(t, shared.EventPassportCreated, nil)

	assert.Equal(t, achievement.StatusCompleted, f.statusOf(t, "passport_created"))
	assert.Equal(t, achievement.StatusCompleted, f.statusOf(t, "player_bound"))
}

func TestProcessDeepPrerequisiteChain(t *testing.T) {
	f := newDispatcherFixture(t)

	// trophy_hunter needs 3000 trophies and a completed player_bound,
	// which itself needs a completed passport_created.
	f.feed(t, shared.EventPlayerStatsUpdated, map[string]interface{}{"trophies": 3200})
	require.Equal(t, achievement.StatusInProgress, f.statusOf(t, "trophy_hunter"))

	f.feed(t, shared.EventPlayerBound, map[string]interface{}{"player_tag": "#ABC123"})
	f.feed(t, shared.EventPassportCreated, nil)

	// One passport event resolves the whole chain through two cascades.
	assert.Equal(t, achievement.StatusCompleted, f.statusOf(t, "passport_created"))
	assert.Equal(t, achievement.StatusCompleted, f.statusOf(t, "player_bound"))
	assert.Equal(t, achievement.StatusCompleted, f.statusOf(t, "trophy_hunter"))
}

func TestProcessPublishesCompletionEvents(t *testing.T) {
	f := newDispatcherFixture(t)

	var mu sync.Mutex
	var completed []string
	err := f.bus.Subscribe(shared.EventAchievementCompleted, func(event shared.Event) error {
		mu.Lock()
		defer mu.Unlock()
		completed = append(completed, event.Payload()["achievement_id"].(string))
		return nil
	})
	require.NoError(t, err)

	f.feed(t, shared.EventMessageSent, map[string]interface{}{"message_id": 1})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first_message"}, completed)
}

func TestProcessAppliesEnrichmentBonusPoints(t *testing.T) {
	f := newDispatcherFixture(t)

	f.feed(t, shared.EventPlayerVerified, nil)

	prof, err := f.profiles.Find(context.Background(), f.key)
	require.NoError(t, err)
	assert.Equal(t, verificationBonus, prof.TotalPoints.Int())
	assert.Equal(t, verificationBonus, prof.ExperiencePoints)
}

func TestProcessSurvivesEventLogFailure(t *testing.T) {
	f := newDispatcherFixture(t)
	f.eventLog.failing = true

	f.feed(t, shared.EventMessageSent, map[string]interface{}{"message_id": 1})

	// Audit log failures never block evaluation.
	assert.Equal(t, achievement.StatusCompleted, f.statusOf(t, "first_message"))
	assert.Equal(t, 0, f.eventLog.size())
}

func TestProcessAppendsEveryEventToLog(t *testing.T) {
	f := newDispatcherFixture(t)

	f.feed(t, shared.EventMessageSent, map[string]interface{}{"message_id": 1})

	// The behavioral event plus the synthetic completion event.
	assert.Equal(t, 2, f.eventLog.size())
}

func TestProcessIgnoresDuplicateEnqueuedOnce(t *testing.T) {
	f := newDispatcherFixture(t)
	data := map[string]interface{}{"message_id": 9}

	env := shared.NewEnvelope(f.key.UserID, f.key.GroupID, shared.EventMessageSent, data)
	require.NoError(t, f.queue.Enqueue(env))
	dup := shared.NewEnvelope(f.key.UserID, f.key.GroupID, shared.EventMessageSent, data)
	require.NoError(t, f.queue.Enqueue(dup))
	require.Equal(t, 1, f.queue.Len())

	envelope, ok := f.queue.Dequeue(make(chan struct{}), time.Second)
	require.True(t, ok)
	f.dispatcher.process(context.Background(), envelope)

	p, err := f.progress.Find(context.Background(), f.key, "active_chatter")
	require.NoError(t, err)
	// Deduplication means the counter moved exactly once.
	assert.Equal(t, float64(1), p.Value("messages_count"))
}

func TestRunDrainsQueueUntilCancelled(t *testing.T) {
	f := newDispatcherFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	f.dispatcher.dequeueWait = 10 * time.Millisecond
	f.dispatcher.Start(ctx)

	require.NoError(t, f.queue.Enqueue(shared.NewEnvelope(f.key.UserID, f.key.GroupID, shared.EventMessageSent, map[string]interface{}{"message_id": 1})))

	assert.Eventually(t, func() bool {
		return f.statusOf(t, "first_message") == achievement.StatusCompleted
	}, time.Second, 5*time.Millisecond)

	cancel()
	f.dispatcher.Wait()
}
