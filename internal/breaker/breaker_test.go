package breaker_test

import (
	"errors"
	"testing"

	cb "github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/marketfeed/internal/breaker"
)

func TestExecutePassesThroughSuccess(t *testing.T) {
	b := breaker.New("test-ok")
	v, err := b.Execute(func() (any, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestExecuteTripsAfterConsecutiveFailures(t *testing.T) {
	b := breaker.New("test-trip")
	failing := func() (any, error) { return nil, errors.New("boom") }

	for i := 0; i < 3; i++ {
		_, err := b.Execute(failing)
		require.Error(t, err)
	}

	assert.Equal(t, cb.StateOpen, b.State())

	_, err := b.Execute(func() (any, error) { return "unreached", nil })
	assert.ErrorIs(t, err, cb.ErrOpenState)
}
