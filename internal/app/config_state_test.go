package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mgmtd/internal/domain"
)

func TestConfigStateReloadOutcome(t *testing.T) {
	state := NewConfigState(domain.Config{Parameters: map[string]any{"a": 1}})
	require.NoError(t, state.Check(context.Background()))
	assert.Equal(t, map[string]any{"a": 1}, state.Parameters())

	state.Failed(errors.New("bad yaml"))
	err := state.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad yaml")
	assert.Equal(t, map[string]any{"a": 1}, state.Parameters())

	state.Update(domain.Config{})
	require.NoError(t, state.Check(context.Background()))
	assert.Equal(t, map[string]any{}, state.Parameters())
}
