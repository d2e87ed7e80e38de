// Package chat implements the participant-facing session commands (next and
// stop) and the relay of content between paired participants.
package chat

import (
	"context"

	"github.com/Alexander-D-Karpov/tandem/internal/common/logging"
	"github.com/Alexander-D-Karpov/tandem/internal/matchmaking"
	"github.com/Alexander-D-Karpov/tandem/internal/observability"
	"github.com/Alexander-D-Karpov/tandem/internal/session"
	"github.com/Alexander-D-Karpov/tandem/internal/transport"
	"go.uber.org/zap"
)

const (
	ReasonNext = "next"
	ReasonStop = "stop"
)

type Controller struct {
	registry   *session.Registry
	matchmaker *matchmaking.Matchmaker
	sender     transport.Sender
	metrics    *observability.Metrics
}

func NewController(registry *session.Registry, matchmaker *matchmaking.Matchmaker, sender transport.Sender, metrics *observability.Metrics) *Controller {
	return &Controller{
		registry:   registry,
		matchmaker: matchmaker,
		sender:     sender,
		metrics:    metrics,
	}
}

// Next tears down whatever session id has and starts a new search. The
// returned pair is set when the search matched immediately.
func (c *Controller) Next(ctx context.Context, id int64) (session.Pair, bool) {
	c.leave(ctx, id, ReasonNext)
	c.send(ctx, id, MsgSearching)
	return c.matchmaker.Connect(ctx, id)
}

// Stop returns id to idle without starting a search. Stopping an idle
// participant changes nothing and notifies nobody but id.
func (c *Controller) Stop(ctx context.Context, id int64) {
	c.leave(ctx, id, ReasonStop)
	c.send(ctx, id, MsgLeft)
}

func (c *Controller) leave(ctx context.Context, id int64, reason string) {
	partner, ok := c.registry.Disconnect(id)
	if !ok {
		return
	}

	c.metrics.RecordDisconnect(reason)
	logging.FromContext(ctx).Info("pairing dissolved",
		zap.Int64("participant_id", id),
		zap.Int64("partner_id", partner),
		zap.String("reason", reason),
	)
	c.send(ctx, partner, MsgPartnerLeft)
}

func (c *Controller) send(ctx context.Context, to int64, text string) {
	if err := c.sender.SendText(context.WithoutCancel(ctx), to, text); err != nil {
		transport.ReportFailure(ctx, c.metrics, err)
	}
}
