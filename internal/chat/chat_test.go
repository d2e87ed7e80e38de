package chat

import (
	"context"
	"testing"
	"time"

	"github.com/Alexander-D-Karpov/tandem/internal/matchmaking"
	"github.com/Alexander-D-Karpov/tandem/internal/observability"
	"github.com/Alexander-D-Karpov/tandem/internal/profiles"
	"github.com/Alexander-D-Karpov/tandem/internal/session"
	"github.com/Alexander-D-Karpov/tandem/internal/transport"
	"github.com/Alexander-D-Karpov/tandem/internal/transport/transporttest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	registry   *session.Registry
	recorder   *transporttest.Recorder
	controller *Controller
	relay      *Relay
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithDelays(t, 0, 0)
}

func newFixtureWithDelays(t *testing.T, announceDelay, typingDelay time.Duration) *fixture {
	t.Helper()
	reg := session.NewRegistry()
	rec := transporttest.NewRecorder()
	metrics := observability.NewMetrics(zap.NewNop(), prometheus.NewRegistry())
	store := profiles.NewMemoryStore()
	mm := matchmaking.New(reg, store, rec, matchmaking.WithAnnounceDelay(announceDelay), matchmaking.WithMetrics(metrics))
	return &fixture{
		registry:   reg,
		recorder:   rec,
		controller: NewController(reg, mm, rec, metrics),
		relay:      NewRelay(reg, rec, metrics, typingDelay),
	}
}

// sawActivity reports whether id has been shown an activity indicator.
func (f *fixture) sawActivity(id int64) bool {
	for _, d := range f.recorder.To(id) {
		if d.Op == transport.OpSendActivity {
			return true
		}
	}
	return false
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("operation did not return")
	}
}

// pair connects a and b and clears the recorder.
func (f *fixture) pair(t *testing.T, a, b int64) {
	t.Helper()
	ctx := context.Background()
	f.controller.Next(ctx, a)
	_, ok := f.controller.Next(ctx, b)
	require.True(t, ok)
	f.recorder.Reset()
}

func TestNext_FirstWaitsSecondPairs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, ok := f.controller.Next(ctx, 1)
	assert.False(t, ok)
	assert.Equal(t, []int64{1}, f.registry.Snapshot().Queue)
	assert.Equal(t, []string{MsgSearching}, f.recorder.Texts(1))

	pair, ok := f.controller.Next(ctx, 2)
	require.True(t, ok)
	assert.Equal(t, session.Pair{A: 1, B: 2}, pair)
	assert.Equal(t, map[int64]int64{1: 2, 2: 1}, f.registry.Snapshot().Pairs)
	assert.Len(t, f.recorder.Texts(1), 2)
	assert.Equal(t, MsgSearching, f.recorder.Texts(2)[0])
	assert.Len(t, f.recorder.Texts(2), 2)
}

func TestNext_EmptyQueueSendsNoAnnouncement(t *testing.T) {
	f := newFixture(t)

	f.controller.Next(context.Background(), 3)

	assert.Equal(t, session.State{Kind: session.Waiting}, f.registry.Status(3))
	assert.Equal(t, []string{MsgSearching}, f.recorder.Texts(3))
	assert.Len(t, f.recorder.All(), 1)
}

func TestNext_WhilePairedNotifiesPartnerAndRequeues(t *testing.T) {
	f := newFixture(t)
	f.pair(t, 1, 2)

	_, ok := f.controller.Next(context.Background(), 1)

	assert.False(t, ok)
	assert.Equal(t, []string{MsgPartnerLeft}, f.recorder.Texts(2))
	assert.Equal(t, session.State{Kind: session.Idle}, f.registry.Status(2))
	assert.Equal(t, session.State{Kind: session.Waiting}, f.registry.Status(1))
	require.NoError(t, f.registry.CheckInvariants())
}

func TestNext_WhilePairedMatchesWaitingParticipant(t *testing.T) {
	f := newFixture(t)
	f.pair(t, 1, 2)
	ctx := context.Background()
	f.controller.Next(ctx, 3)

	pair, ok := f.controller.Next(ctx, 1)

	require.True(t, ok)
	assert.Equal(t, session.Pair{A: 3, B: 1}, pair)
	assert.Equal(t, session.State{Kind: session.Idle}, f.registry.Status(2))
	assert.Equal(t, []string{MsgPartnerLeft}, f.recorder.Texts(2))
}

func TestNext_WhileWaitingKeepsSingleQueueEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.controller.Next(ctx, 1)
	f.controller.Next(ctx, 1)

	assert.Equal(t, []int64{1}, f.registry.Snapshot().Queue)
}

func TestStop_PairedNotifiesPartner(t *testing.T) {
	f := newFixture(t)
	f.pair(t, 1, 2)

	f.controller.Stop(context.Background(), 1)

	assert.Equal(t, session.State{Kind: session.Idle}, f.registry.Status(1))
	assert.Equal(t, session.State{Kind: session.Idle}, f.registry.Status(2))
	assert.Empty(t, f.registry.Snapshot().Pairs)
	assert.Equal(t, []string{MsgLeft}, f.recorder.Texts(1))
	assert.Equal(t, []string{MsgPartnerLeft}, f.recorder.Texts(2))
}

func TestStop_WaitingLeavesQueueSilently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.controller.Next(ctx, 1)
	f.recorder.Reset()

	f.controller.Stop(ctx, 1)

	assert.Empty(t, f.registry.Snapshot().Queue)
	assert.Equal(t, []string{MsgLeft}, f.recorder.Texts(1))
	assert.Len(t, f.recorder.All(), 1)
}

func TestStop_IdleTwiceChangesNothing(t *testing.T) {
	f := newFixture(t)
	f.pair(t, 7, 8)
	ctx := context.Background()

	f.controller.Stop(ctx, 1)
	f.controller.Stop(ctx, 1)

	assert.Equal(t, session.State{Kind: session.Idle}, f.registry.Status(1))
	assert.Equal(t, map[int64]int64{7: 8, 8: 7}, f.registry.Snapshot().Pairs)
	for _, d := range f.recorder.All() {
		assert.Equal(t, int64(1), d.To, "only the caller hears about its own stop")
	}
}

func TestStop_PartnerDeliveryFailureStillDisconnects(t *testing.T) {
	f := newFixture(t)
	f.pair(t, 1, 2)
	f.recorder.FailFor(2)

	f.controller.Stop(context.Background(), 1)

	assert.Empty(t, f.registry.Snapshot().Pairs)
	assert.Equal(t, []string{MsgLeft}, f.recorder.Texts(1))
}

func TestRelay_TextReachesOnlyPartner(t *testing.T) {
	f := newFixture(t)
	f.pair(t, 1, 2)
	f.pair(t, 3, 4)

	ok := f.relay.Relay(context.Background(), 1, transport.Content{Kind: transport.ContentText, Text: "hello"})

	require.True(t, ok)
	assert.Equal(t, []string{"hello"}, f.recorder.Texts(2))
	for _, d := range f.recorder.All() {
		assert.Equal(t, int64(2), d.To)
	}
	got := f.recorder.To(2)
	require.Len(t, got, 2)
	assert.Equal(t, transport.ActivityTyping, got[0].Activity)
}

func TestRelay_UnpairedSenderGetsNotice(t *testing.T) {
	f := newFixture(t)
	f.pair(t, 1, 2)

	ok := f.relay.Relay(context.Background(), 5, transport.Content{Kind: transport.ContentText, Text: "anyone?"})

	assert.False(t, ok)
	assert.Equal(t, []string{MsgNotConnected}, f.recorder.Texts(5))
	assert.Len(t, f.recorder.All(), 1)
}

func TestRelay_WaitingSenderGetsNotice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.controller.Next(ctx, 5)
	f.recorder.Reset()

	f.relay.Relay(ctx, 5, transport.Content{Kind: transport.ContentPhoto, MessageID: 9})

	assert.Equal(t, []string{MsgNotConnected}, f.recorder.Texts(5))
}

func TestRelay_MediaIsForwardedWithMatchingActivity(t *testing.T) {
	tests := []struct {
		name     string
		kind     transport.ContentKind
		activity transport.Activity
	}{
		{"photo", transport.ContentPhoto, transport.ActivityUploadPhoto},
		{"sticker", transport.ContentSticker, transport.ActivityChooseSticker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.pair(t, 1, 2)
			content := transport.Content{Kind: tt.kind, MessageID: 42, FileID: "file-1"}

			require.True(t, f.relay.Relay(context.Background(), 1, content))

			got := f.recorder.To(2)
			require.Len(t, got, 2)
			assert.Equal(t, tt.activity, got[0].Activity)
			assert.Equal(t, transport.OpForward, got[1].Op)
			assert.Equal(t, int64(1), got[1].From)
			assert.Equal(t, content, got[1].Content)
		})
	}
}

func TestRelay_DeliveryFailureIsDropped(t *testing.T) {
	f := newFixture(t)
	f.pair(t, 1, 2)
	f.recorder.FailFor(2)

	ok := f.relay.Relay(context.Background(), 1, transport.Content{Kind: transport.ContentText, Text: "hi"})

	assert.False(t, ok)
	assert.Empty(t, f.recorder.Texts(1), "sender is not told about failures")
	assert.Equal(t, session.State{Kind: session.Paired, Partner: 2}, f.registry.Status(1))
}

func TestStop_DuringAnnouncementLeadIn(t *testing.T) {
	f := newFixtureWithDelays(t, 200*time.Millisecond, 0)
	ctx := context.Background()

	f.controller.Next(ctx, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.controller.Next(ctx, 2)
	}()

	require.Eventually(t, func() bool { return f.sawActivity(1) && f.sawActivity(2) },
		5*time.Second, time.Millisecond)
	f.controller.Stop(ctx, 1)
	waitDone(t, done)

	assert.Equal(t, []string{MsgSearching, MsgLeft}, f.recorder.Texts(1))
	assert.Equal(t, []string{MsgSearching, MsgPartnerLeft}, f.recorder.Texts(2))
	assert.Equal(t, session.Idle, f.registry.Status(1).Kind)
	assert.Equal(t, session.Idle, f.registry.Status(2).Kind)
}

func TestRelay_PairingEndsDuringTypingDelay(t *testing.T) {
	f := newFixtureWithDelays(t, 0, 200*time.Millisecond)
	ctx := context.Background()
	f.pair(t, 1, 2)

	var delivered bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		delivered = f.relay.Relay(ctx, 1, transport.Content{Kind: transport.ContentText, Text: "hello"})
	}()

	require.Eventually(t, func() bool { return f.sawActivity(2) }, 5*time.Second, time.Millisecond)
	f.controller.Stop(ctx, 2)
	waitDone(t, done)

	assert.False(t, delivered)
	assert.Equal(t, []string{MsgLeft}, f.recorder.Texts(2))
	assert.Equal(t, []string{MsgPartnerLeft}, f.recorder.Texts(1))
}

func TestRelay_PartnerMovesOnDuringTypingDelay(t *testing.T) {
	f := newFixtureWithDelays(t, 0, 200*time.Millisecond)
	ctx := context.Background()
	f.pair(t, 1, 2)
	f.controller.Next(ctx, 3)
	f.recorder.Reset()

	var delivered bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		delivered = f.relay.Relay(ctx, 1, transport.Content{Kind: transport.ContentText, Text: "hello"})
	}()

	require.Eventually(t, func() bool { return f.sawActivity(2) }, 5*time.Second, time.Millisecond)
	_, ok := f.controller.Next(ctx, 2)
	require.True(t, ok)
	waitDone(t, done)

	assert.False(t, delivered)
	for _, id := range []int64{2, 3} {
		assert.NotContains(t, f.recorder.Texts(id), "hello", "participant %d", id)
	}
	assert.Equal(t, session.State{Kind: session.Paired, Partner: 3}, f.registry.Status(2))
}
