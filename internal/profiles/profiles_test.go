package profiles

import (
	"context"
	"errors"
	"strings"
	"testing"

	apperr "github.com/Alexander-D-Karpov/tandem/internal/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	*MemoryStore
	err error
}

func (f *failingStore) Save(ctx context.Context, p *Profile) error {
	if f.err != nil {
		return f.err
	}
	return f.MemoryStore.Save(ctx, p)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), 1)
	assert.True(t, apperr.IsNotFound(err))
}

func TestMemoryStore_SaveUpserts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &Profile{ParticipantID: 1, Name: "Ann", Age: 30, Interests: "chess"}))
	first, err := s.Get(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, &Profile{ParticipantID: 1, Name: "Anna", Age: 31, Interests: "go"}))
	second, err := s.Get(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, "Anna", second.Name)
	assert.Equal(t, 31, second.Age)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestOnboarding_HappyPath(t *testing.T) {
	store := NewMemoryStore()
	o := NewOnboarding(store)
	ctx := context.Background()

	assert.Equal(t, PromptName, o.Begin(7))
	assert.True(t, o.Active(7))

	reply, err := o.Submit(ctx, 7, "  Mira ")
	require.NoError(t, err)
	assert.Equal(t, PromptAge, reply)

	reply, err = o.Submit(ctx, 7, "27")
	require.NoError(t, err)
	assert.Equal(t, PromptInterests, reply)

	reply, err = o.Submit(ctx, 7, "hiking, jazz")
	require.NoError(t, err)
	assert.Equal(t, PromptSaved, reply)
	assert.False(t, o.Active(7))

	p, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, Profile{ParticipantID: 7, Name: "Mira", Age: 27, Interests: "hiking, jazz",
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}, *p)
}

func TestOnboarding_InvalidAgeRepromptsSameStep(t *testing.T) {
	o := NewOnboarding(NewMemoryStore())
	ctx := context.Background()
	o.Begin(1)
	_, err := o.Submit(ctx, 1, "Lee")
	require.NoError(t, err)

	for _, bad := range []string{"twenty", "-5", "2.5", "", "12345"} {
		reply, err := o.Submit(ctx, 1, bad)
		assert.True(t, apperr.IsValidation(err), "input %q", bad)
		assert.Equal(t, PromptBadAge, reply)
	}

	reply, err := o.Submit(ctx, 1, "40")
	require.NoError(t, err)
	assert.Equal(t, PromptInterests, reply)
}

func TestOnboarding_EmptyName(t *testing.T) {
	o := NewOnboarding(NewMemoryStore())
	o.Begin(1)

	reply, err := o.Submit(context.Background(), 1, "   ")
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, PromptBadName, reply)
}

func TestOnboarding_SubmitWithoutBegin(t *testing.T) {
	o := NewOnboarding(NewMemoryStore())

	_, err := o.Submit(context.Background(), 1, "hello")
	assert.True(t, apperr.IsNotFound(err))
}

func TestOnboarding_BeginRestarts(t *testing.T) {
	o := NewOnboarding(NewMemoryStore())
	ctx := context.Background()
	o.Begin(1)
	_, _ = o.Submit(ctx, 1, "Sam")

	o.Begin(1)
	reply, err := o.Submit(ctx, 1, "Samuel")
	require.NoError(t, err)
	assert.Equal(t, PromptAge, reply)
}

func TestOnboarding_SaveFailureKeepsDraft(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), err: errors.New("db down")}
	o := NewOnboarding(store)
	ctx := context.Background()
	o.Begin(1)
	_, _ = o.Submit(ctx, 1, "Kim")
	_, _ = o.Submit(ctx, 1, "22")

	_, err := o.Submit(ctx, 1, "films")
	require.Error(t, err)
	assert.True(t, o.Active(1))

	store.err = nil
	reply, err := o.Submit(ctx, 1, "films")
	require.NoError(t, err)
	assert.Equal(t, PromptSaved, reply)
}

func TestOnboarding_TruncatesLongAnswers(t *testing.T) {
	store := NewMemoryStore()
	o := NewOnboarding(store)
	ctx := context.Background()
	o.Begin(1)
	_, _ = o.Submit(ctx, 1, strings.Repeat("я", 300))
	_, _ = o.Submit(ctx, 1, "19")
	_, err := o.Submit(ctx, 1, "x")
	require.NoError(t, err)

	p, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, maxNameLength, len([]rune(p.Name)))
}
