// Package bot maps inbound updates onto the chat core: commands go to the
// session controller or the profile flow, content goes to the relay.
package bot

import (
	"context"
	"time"

	"github.com/Alexander-D-Karpov/tandem/internal/chat"
	apperr "github.com/Alexander-D-Karpov/tandem/internal/common/errors"
	"github.com/Alexander-D-Karpov/tandem/internal/common/logging"
	"github.com/Alexander-D-Karpov/tandem/internal/middleware"
	"github.com/Alexander-D-Karpov/tandem/internal/observability"
	"github.com/Alexander-D-Karpov/tandem/internal/profiles"
	"github.com/Alexander-D-Karpov/tandem/internal/transport"
	"go.uber.org/zap"
)

type Router struct {
	controller *chat.Controller
	relay      *chat.Relay
	onboarding *profiles.Onboarding
	profiles   profiles.Store
	sender     transport.Sender
	metrics    *observability.Metrics
}

func NewRouter(
	controller *chat.Controller,
	relay *chat.Relay,
	onboarding *profiles.Onboarding,
	store profiles.Store,
	sender transport.Sender,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		controller: controller,
		relay:      relay,
		onboarding: onboarding,
		profiles:   store,
		sender:     sender,
		metrics:    metrics,
	}
}

func (r *Router) Handle(ctx context.Context, in transport.Inbound) {
	if in.IsCommand() {
		r.handleCommand(ctx, in)
		return
	}

	if in.Content.Kind == transport.ContentText && r.onboarding.Active(in.From) {
		r.handleProfileAnswer(ctx, in)
		return
	}

	r.relay.Relay(ctx, in.From, in.Content)
}

func (r *Router) handleCommand(ctx context.Context, in transport.Inbound) {
	switch in.Command {
	case CommandStart:
		r.handleStart(ctx, in.From)
	case CommandHelp:
		r.reply(ctx, in.From, MsgHelp)
	case CommandNext:
		r.onboarding.Cancel(in.From)
		r.controller.Next(ctx, in.From)
	case CommandStop:
		r.onboarding.Cancel(in.From)
		r.controller.Stop(ctx, in.From)
	default:
		r.reply(ctx, in.From, MsgUnknownCommand)
	}
}

func (r *Router) handleStart(ctx context.Context, id int64) {
	_, err := r.profiles.Get(ctx, id)
	switch {
	case err == nil:
		r.onboarding.Cancel(id)
		r.reply(ctx, id, MsgWelcomeBack)
	case apperr.IsNotFound(err):
		r.reply(ctx, id, r.onboarding.Begin(id))
	default:
		logging.FromContext(ctx).Error("failed to load profile", zap.Error(err))
		r.reply(ctx, id, MsgTryAgain)
	}
}

func (r *Router) handleProfileAnswer(ctx context.Context, in transport.Inbound) {
	reply, err := r.onboarding.Submit(ctx, in.From, in.Content.Text)
	switch {
	case err == nil, apperr.IsValidation(err):
		r.reply(ctx, in.From, reply)
	case apperr.IsNotFound(err):
		// The flow was cancelled concurrently; treat the text as chat.
		r.relay.Relay(ctx, in.From, in.Content)
	default:
		logging.FromContext(ctx).Error("failed to save profile", zap.Error(err))
		r.reply(ctx, in.From, MsgTryAgain)
	}
}

func (r *Router) reply(ctx context.Context, to int64, text string) {
	if err := r.sender.SendText(context.WithoutCancel(ctx), to, text); err != nil {
		transport.ReportFailure(ctx, r.metrics, err)
	}
}

// Label names an update for metrics: known commands by name, everything
// else by a fixed bucket.
func Label(in transport.Inbound) string {
	if !in.IsCommand() {
		return in.Content.Kind.String()
	}
	switch in.Command {
	case CommandStart, CommandHelp, CommandNext, CommandStop:
		return in.Command
	default:
		return "unknown"
	}
}

// Pipeline wraps the router with the standard inbound middleware chain.
func (r *Router) Pipeline(logger *zap.Logger, timeout time.Duration) transport.Handler {
	return middleware.Chain(r,
		middleware.RequestID(logger),
		middleware.Recovery(r.metrics),
		middleware.Validation(),
		middleware.Metrics(r.metrics, Label),
		middleware.Timeout(timeout),
	)
}
