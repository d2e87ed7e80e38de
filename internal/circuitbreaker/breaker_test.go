package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := New("test", 2, time.Minute, nil)

	assert.ErrorIs(t, cb.Call(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Call(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_HalfOpenProbeCloses(t *testing.T) {
	now := time.Now()
	cb := New("test", 1, time.Second, nil)
	cb.now = func() time.Time { return now }

	_ = cb.Call(func() error { return errBoom })
	assert.Equal(t, StateOpen, cb.GetState())

	now = now.Add(2 * time.Second)
	assert.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	now := time.Now()
	cb := New("test", 3, time.Second, nil)
	cb.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_ = cb.Call(func() error { return errBoom })
	}
	now = now.Add(2 * time.Second)

	assert.ErrorIs(t, cb.Call(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestBreaker_Reset(t *testing.T) {
	cb := New("test", 1, time.Hour, nil)
	_ = cb.Call(func() error { return errBoom })
	cb.Reset()

	assert.Equal(t, StateClosed, cb.GetState())
	assert.NoError(t, cb.Call(func() error { return nil }))
}
