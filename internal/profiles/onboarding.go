package profiles

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	apperr "github.com/Alexander-D-Karpov/tandem/internal/common/errors"
)

const (
	PromptName      = "👋 Welcome! Let's set up your profile.\nWhat's your name?"
	PromptAge       = "🎂 Age?"
	PromptInterests = "🎯 Interests? (comma separated)"
	PromptBadName   = "⚠️ Please send your name as text."
	PromptBadAge    = "⚠️ Enter a valid number."
	PromptSaved     = "✅ Profile saved!\nUse /next to meet someone new."

	maxNameLength      = 255
	maxInterestsLength = 1000
)

type Step int

const (
	StepName Step = iota
	StepAge
	StepInterests
)

type draft struct {
	step Step
	name string
	age  int
}

// Onboarding runs the linear profile collection flow: name, age, interests,
// then save. Drafts live in memory only.
type Onboarding struct {
	mu     sync.Mutex
	drafts map[int64]*draft
	store  Store
}

func NewOnboarding(store Store) *Onboarding {
	return &Onboarding{
		drafts: make(map[int64]*draft),
		store:  store,
	}
}

// Begin starts, or restarts, the flow and returns the first prompt.
func (o *Onboarding) Begin(participantID int64) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.drafts[participantID] = &draft{step: StepName}
	return PromptName
}

func (o *Onboarding) Active(participantID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.drafts[participantID]
	return ok
}

func (o *Onboarding) Cancel(participantID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.drafts, participantID)
}

// Submit consumes one answer and returns the text to send back. Malformed
// input yields a validation error together with the re-prompt; the step
// does not advance.
func (o *Onboarding) Submit(ctx context.Context, participantID int64, input string) (string, error) {
	input = strings.TrimSpace(input)

	o.mu.Lock()
	d, ok := o.drafts[participantID]
	if !ok {
		o.mu.Unlock()
		return "", apperr.NotFound("no profile setup in progress")
	}

	switch d.step {
	case StepName:
		if input == "" {
			o.mu.Unlock()
			return PromptBadName, apperr.Validation("empty name")
		}
		d.name = truncate(input, maxNameLength)
		d.step = StepAge
		o.mu.Unlock()
		return PromptAge, nil

	case StepAge:
		age, err := parseAge(input)
		if err != nil {
			o.mu.Unlock()
			return PromptBadAge, err
		}
		d.age = age
		d.step = StepInterests
		o.mu.Unlock()
		return PromptInterests, nil
	}

	profile := &Profile{
		ParticipantID: participantID,
		Name:          d.name,
		Age:           d.age,
		Interests:     truncate(input, maxInterestsLength),
	}
	delete(o.drafts, participantID)
	o.mu.Unlock()

	if err := o.store.Save(ctx, profile); err != nil {
		o.mu.Lock()
		if _, restarted := o.drafts[participantID]; !restarted {
			o.drafts[participantID] = d
		}
		o.mu.Unlock()
		return "", fmt.Errorf("save profile: %w", err)
	}
	return PromptSaved, nil
}

func parseAge(input string) (int, error) {
	if input == "" || len(input) > 3 {
		return 0, apperr.Validation("age must be a number")
	}
	for _, r := range input {
		if r < '0' || r > '9' {
			return 0, apperr.Validation("age must be a number")
		}
	}
	return strconv.Atoi(input)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
