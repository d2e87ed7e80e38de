package matchmaking

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperr "github.com/Alexander-D-Karpov/tandem/internal/common/errors"
	"github.com/Alexander-D-Karpov/tandem/internal/common/logging"
	"github.com/Alexander-D-Karpov/tandem/internal/observability"
	"github.com/Alexander-D-Karpov/tandem/internal/profiles"
	"github.com/Alexander-D-Karpov/tandem/internal/session"
	"github.com/Alexander-D-Karpov/tandem/internal/transport"
	"go.uber.org/zap"
)

const DefaultAnnounceDelay = time.Second

type Matchmaker struct {
	registry      *session.Registry
	profiles      profiles.Store
	sender        transport.Sender
	metrics       *observability.Metrics
	announceDelay time.Duration
}

type Option func(*Matchmaker)

func WithMetrics(m *observability.Metrics) Option {
	return func(mm *Matchmaker) { mm.metrics = m }
}

// WithAnnounceDelay sets how long the typing indicator is shown before an
// announcement.
func WithAnnounceDelay(d time.Duration) Option {
	return func(mm *Matchmaker) { mm.announceDelay = d }
}

func New(registry *session.Registry, store profiles.Store, sender transport.Sender, opts ...Option) *Matchmaker {
	m := &Matchmaker{
		registry:      registry,
		profiles:      store,
		sender:        sender,
		announceDelay: DefaultAnnounceDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect puts id in the waiting queue and, when that completes a pair,
// announces the pairing to both participants. The pairing decision is made
// by the registry before any I/O starts; announcement failures never undo it.
func (m *Matchmaker) Connect(ctx context.Context, id int64) (session.Pair, bool) {
	logger := logging.FromContext(ctx)

	pair, ok := m.registry.EnqueueAndMatch(id)
	if !ok {
		logger.Debug("participant waiting for a partner", zap.Int64("participant_id", id))
		return session.Pair{}, false
	}

	m.metrics.RecordPairing()
	logger.Info("participants paired", zap.Int64("a", pair.A), zap.Int64("b", pair.B))

	m.announce(ctx, pair)
	return pair, true
}

func (m *Matchmaker) announce(ctx context.Context, pair session.Pair) {
	var wg sync.WaitGroup
	for _, side := range pair.Members() {
		recipient, other := side[0], side[1]
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.announceTo(ctx, recipient, other)
		}()
	}
	wg.Wait()
}

func (m *Matchmaker) announceTo(ctx context.Context, recipient, other int64) {
	profile, err := m.profiles.Get(ctx, other)
	if err != nil {
		if !apperr.IsNotFound(err) {
			logging.FromContext(ctx).Warn("failed to load partner profile",
				zap.Int64("participant_id", other), zap.Error(err))
		}
		profile = nil
	}

	// Deliveries are fire-and-forget and outlive the inbound update.
	sendCtx := context.WithoutCancel(ctx)

	if err := m.sender.SendActivity(sendCtx, recipient, transport.ActivityTyping); err != nil {
		transport.ReportFailure(ctx, m.metrics, err)
	}
	pause(ctx, m.announceDelay)

	// Either side may have left while the indicator was showing.
	if m.registry.Status(recipient) != (session.State{Kind: session.Paired, Partner: other}) {
		logging.FromContext(ctx).Debug("dropping announcement for dissolved pairing",
			zap.Int64("participant_id", recipient), zap.Int64("partner_id", other))
		return
	}

	if err := m.sender.SendText(sendCtx, recipient, RenderAnnouncement(profile)); err != nil {
		transport.ReportFailure(ctx, m.metrics, err)
	}
}

// RenderAnnouncement describes a new partner. A nil profile renders an
// anonymous placeholder.
func RenderAnnouncement(p *profiles.Profile) string {
	if p == nil {
		return "🔗 Connected!\n👤 Anonymous stranger\nSay hi!"
	}

	interests := p.Interests
	if interests == "" {
		interests = "—"
	}
	return fmt.Sprintf("🔗 Connected!\n👤 %s, %d y/o\n🎯 Interests: %s", p.Name, p.Age, interests)
}

// pause waits for d or until ctx is done, whichever comes first.
func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
