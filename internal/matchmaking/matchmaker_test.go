package matchmaking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Alexander-D-Karpov/tandem/internal/observability"
	"github.com/Alexander-D-Karpov/tandem/internal/profiles"
	"github.com/Alexander-D-Karpov/tandem/internal/session"
	"github.com/Alexander-D-Karpov/tandem/internal/transport"
	"github.com/Alexander-D-Karpov/tandem/internal/transport/transporttest"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type brokenStore struct{}

func (brokenStore) Get(context.Context, int64) (*profiles.Profile, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) Save(context.Context, *profiles.Profile) error { return nil }

func setup(t *testing.T) (*Matchmaker, *session.Registry, *transporttest.Recorder, *profiles.MemoryStore) {
	t.Helper()
	reg := session.NewRegistry()
	rec := transporttest.NewRecorder()
	store := profiles.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &profiles.Profile{ParticipantID: 1, Name: "Ann", Age: 25, Interests: "books"}))
	require.NoError(t, store.Save(ctx, &profiles.Profile{ParticipantID: 2, Name: "Bo", Age: 31, Interests: "surfing"}))
	return New(reg, store, rec, WithAnnounceDelay(0)), reg, rec, store
}

func TestConnect_FirstParticipantWaits(t *testing.T) {
	m, reg, rec, _ := setup(t)

	_, ok := m.Connect(context.Background(), 3)

	assert.False(t, ok)
	assert.Equal(t, session.Waiting, reg.Status(3).Kind)
	assert.Empty(t, rec.All())
}

func TestConnect_SecondParticipantPairsAndAnnounces(t *testing.T) {
	m, reg, rec, _ := setup(t)
	ctx := context.Background()

	m.Connect(ctx, 1)
	pair, ok := m.Connect(ctx, 2)
	require.True(t, ok)
	assert.Equal(t, session.Pair{A: 1, B: 2}, pair)
	assert.Equal(t, map[int64]int64{1: 2, 2: 1}, reg.Snapshot().Pairs)

	assert.Equal(t, []string{"🔗 Connected!\n👤 Bo, 31 y/o\n🎯 Interests: surfing"}, rec.Texts(1))
	assert.Equal(t, []string{"🔗 Connected!\n👤 Ann, 25 y/o\n🎯 Interests: books"}, rec.Texts(2))

	for _, id := range []int64{1, 2} {
		got := rec.To(id)
		require.Len(t, got, 2)
		assert.Equal(t, transport.OpSendActivity, got[0].Op, "typing indicator precedes announcement")
		assert.Equal(t, transport.ActivityTyping, got[0].Activity)
	}
}

func TestConnect_IdempotentForWaitingParticipant(t *testing.T) {
	m, reg, rec, _ := setup(t)
	ctx := context.Background()

	m.Connect(ctx, 1)
	_, ok := m.Connect(ctx, 1)

	assert.False(t, ok)
	assert.Equal(t, []int64{1}, reg.Snapshot().Queue)
	assert.Empty(t, rec.All())
}

func TestConnect_DeliveryFailureDoesNotAffectOtherSide(t *testing.T) {
	reg := session.NewRegistry()
	rec := transporttest.NewRecorder()
	rec.FailFor(1)
	promReg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(zap.NewNop(), promReg)
	m := New(reg, profiles.NewMemoryStore(), rec, WithAnnounceDelay(0), WithMetrics(metrics))
	ctx := context.Background()

	m.Connect(ctx, 1)
	_, ok := m.Connect(ctx, 2)
	require.True(t, ok)

	assert.Len(t, rec.Texts(2), 1)
	assert.Equal(t, session.State{Kind: session.Paired, Partner: 2}, reg.Status(1), "pairing is not rolled back")

	expected := `
# HELP tandem_delivery_failures_total Transport deliveries that failed, by operation
# TYPE tandem_delivery_failures_total counter
tandem_delivery_failures_total{op="send_activity"} 1
tandem_delivery_failures_total{op="send_text"} 1
`
	assert.NoError(t, promtest.GatherAndCompare(promReg, strings.NewReader(expected), "tandem_delivery_failures_total"))
}

func TestConnect_MissingOrFailingProfileAnnouncesAnonymously(t *testing.T) {
	reg := session.NewRegistry()
	rec := transporttest.NewRecorder()
	m := New(reg, brokenStore{}, rec, WithAnnounceDelay(0))
	ctx := context.Background()

	m.Connect(ctx, 10)
	m.Connect(ctx, 11)

	assert.Equal(t, []string{RenderAnnouncement(nil)}, rec.Texts(10))
	assert.Equal(t, []string{RenderAnnouncement(nil)}, rec.Texts(11))
}

func TestConnect_ConcurrentParticipantsAllPaired(t *testing.T) {
	reg := session.NewRegistry()
	rec := transporttest.NewRecorder()
	m := New(reg, profiles.NewMemoryStore(), rec, WithAnnounceDelay(0))

	const n = 101
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			m.Connect(context.Background(), id)
		}(int64(i))
	}
	wg.Wait()

	require.NoError(t, reg.CheckInvariants())
	assert.Equal(t, n/2, reg.PairCount())
	assert.Equal(t, 1, reg.QueueLen())

	announced := 0
	for i := 1; i <= n; i++ {
		texts := rec.Texts(int64(i))
		assert.LessOrEqual(t, len(texts), 1, "participant %d announced twice", i)
		announced += len(texts)
	}
	assert.Equal(t, n-1, announced)
}

func TestConnect_AnnouncementOutlivesCancelledContext(t *testing.T) {
	m, _, rec, _ := setup(t)
	m.announceDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	m.Connect(ctx, 1)

	done := make(chan struct{})
	go func() {
		m.Connect(ctx, 2)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("announcement pause ignored cancellation")
	}
	assert.Len(t, rec.Texts(1), 1)
	assert.Len(t, rec.Texts(2), 1)
}

func TestConnect_DisconnectDuringLeadInSuppressesAnnouncement(t *testing.T) {
	m, reg, rec, _ := setup(t)
	m.announceDelay = 200 * time.Millisecond
	ctx := context.Background()

	m.Connect(ctx, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := m.Connect(ctx, 2)
		assert.True(t, ok)
	}()

	require.Eventually(t, func() bool {
		return len(rec.To(1)) == 1 && len(rec.To(2)) == 1
	}, 5*time.Second, time.Millisecond, "typing indicators sent to both sides")
	partner, ok := reg.Disconnect(1)
	require.True(t, ok)
	require.Equal(t, int64(2), partner)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("connect did not return")
	}

	assert.Empty(t, rec.Texts(1))
	assert.Empty(t, rec.Texts(2))
	assert.Equal(t, session.Idle, reg.Status(1).Kind)
	assert.Equal(t, session.Idle, reg.Status(2).Kind)
}

func TestConnect_PartnerRepairedDuringLeadInIsNotAnnounced(t *testing.T) {
	m, reg, rec, _ := setup(t)
	m.announceDelay = 200 * time.Millisecond
	ctx := context.Background()

	m.Connect(ctx, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Connect(ctx, 2)
	}()

	require.Eventually(t, func() bool {
		return len(rec.To(1)) == 1 && len(rec.To(2)) == 1
	}, 5*time.Second, time.Millisecond)

	// 2 moves on and waits again before the lead-in ends; 1 stays behind.
	reg.Disconnect(2)
	reg.EnqueueAndMatch(2)
	<-done

	assert.Empty(t, rec.Texts(1))
	assert.Empty(t, rec.Texts(2))
	assert.Equal(t, session.Waiting, reg.Status(2).Kind)
}

func TestRenderAnnouncement(t *testing.T) {
	assert.Equal(t,
		"🔗 Connected!\n👤 Eve, 40 y/o\n🎯 Interests: —",
		RenderAnnouncement(&profiles.Profile{Name: "Eve", Age: 40}),
	)
	assert.Contains(t, RenderAnnouncement(nil), "Anonymous")
}
