// Package transporttest provides an in-memory transport.Sender that records
// every delivery, for tests.
package transporttest

import (
	"context"
	"errors"
	"sync"

	apperr "github.com/Alexander-D-Karpov/tandem/internal/common/errors"
	"github.com/Alexander-D-Karpov/tandem/internal/transport"
)

var ErrUnreachable = errors.New("recipient unreachable")

type Delivery struct {
	Op       string
	To       int64
	From     int64
	Text     string
	Activity transport.Activity
	Content  transport.Content
}

type Recorder struct {
	mu          sync.Mutex
	deliveries  []Delivery
	unreachable map[int64]bool
}

func NewRecorder() *Recorder {
	return &Recorder{unreachable: make(map[int64]bool)}
}

// FailFor makes every delivery to id fail with a DeliveryError. Failed
// deliveries are still recorded.
func (r *Recorder) FailFor(ids ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.unreachable[id] = true
	}
}

func (r *Recorder) SendText(_ context.Context, to int64, text string) error {
	return r.record(Delivery{Op: transport.OpSendText, To: to, Text: text})
}

func (r *Recorder) SendActivity(_ context.Context, to int64, activity transport.Activity) error {
	return r.record(Delivery{Op: transport.OpSendActivity, To: to, Activity: activity})
}

func (r *Recorder) Forward(_ context.Context, to, from int64, content transport.Content) error {
	return r.record(Delivery{Op: transport.OpForward, To: to, From: from, Content: content})
}

func (r *Recorder) record(d Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
	if r.unreachable[d.To] {
		return apperr.Delivery(d.Op, d.To, ErrUnreachable)
	}
	return nil
}

func (r *Recorder) All() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// To returns the deliveries addressed to id, in order.
func (r *Recorder) To(id int64) []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Delivery
	for _, d := range r.deliveries {
		if d.To == id {
			out = append(out, d)
		}
	}
	return out
}

// Texts returns the text messages sent to id, in order.
func (r *Recorder) Texts(id int64) []string {
	var out []string
	for _, d := range r.To(id) {
		if d.Op == transport.OpSendText {
			out = append(out, d.Text)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = nil
}
