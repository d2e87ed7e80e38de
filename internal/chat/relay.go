package chat

import (
	"context"
	"time"

	"github.com/Alexander-D-Karpov/tandem/internal/common/logging"
	"github.com/Alexander-D-Karpov/tandem/internal/observability"
	"github.com/Alexander-D-Karpov/tandem/internal/session"
	"github.com/Alexander-D-Karpov/tandem/internal/transport"
	"go.uber.org/zap"
)

const DefaultTypingDelay = 500 * time.Millisecond

// Relay routes content from a participant to their current partner.
type Relay struct {
	registry    *session.Registry
	sender      transport.Sender
	metrics     *observability.Metrics
	typingDelay time.Duration
}

func NewRelay(registry *session.Registry, sender transport.Sender, metrics *observability.Metrics, typingDelay time.Duration) *Relay {
	return &Relay{
		registry:    registry,
		sender:      sender,
		metrics:     metrics,
		typingDelay: typingDelay,
	}
}

// Relay forwards content from sender to their partner and reports whether
// it was handed to the transport. An unpaired sender gets a notice instead.
func (r *Relay) Relay(ctx context.Context, from int64, content transport.Content) bool {
	logger := logging.FromContext(ctx)
	sendCtx := context.WithoutCancel(ctx)

	state := r.registry.Status(from)
	if !state.IsPaired() {
		if err := r.sender.SendText(sendCtx, from, MsgNotConnected); err != nil {
			transport.ReportFailure(ctx, r.metrics, err)
		}
		return false
	}
	partner := state.Partner

	if err := r.sender.SendActivity(sendCtx, partner, content.Kind.Activity()); err != nil {
		transport.ReportFailure(ctx, r.metrics, err)
	}

	if content.Kind == transport.ContentText {
		wait(ctx, r.typingDelay)
		// The pairing may have ended while the indicator was showing.
		if r.registry.Status(from) != state {
			logger.Debug("dropping relay to former partner",
				zap.Int64("participant_id", from), zap.Int64("partner_id", partner))
			return false
		}
	}

	var err error
	if content.Kind == transport.ContentText {
		err = r.sender.SendText(sendCtx, partner, content.Text)
	} else {
		err = r.sender.Forward(sendCtx, partner, from, content)
	}

	r.metrics.RecordRelay(content.Kind.String(), err == nil)
	if err != nil {
		transport.ReportFailure(ctx, r.metrics, err)
		return false
	}
	return true
}

func wait(ctx context.Context, d time.Duration) {
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
