package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/printfleet/core/model"
)

func TestMemoryStore_DefaultConfig(t *testing.T) {
	s := NewMemoryStore()
	cfg := s.Get(1)
	assert.True(t, cfg.UseDefault)
	assert.False(t, cfg.AutoConfigured)
	assert.Empty(t, cfg.ManualMappings)
	assert.Empty(t, s.Printers())
}

func TestMemoryStore_SetManual(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SetManual(1, 2, 5))
	cfg := s.Get(1)
	assert.False(t, cfg.UseDefault)
	assert.Equal(t, map[int]int{2: 5}, cfg.ManualMappings)
	assert.True(t, s.Get(2).UseDefault, "other printers untouched")
}

func TestMemoryStore_SetManualRejectsUnconstrainedSlot(t *testing.T) {
	s := NewMemoryStore()
	assert.ErrorIs(t, s.SetManual(1, 0, 5), ErrInvalidSlot)
	assert.ErrorIs(t, s.SetManual(1, -1, 5), ErrInvalidSlot)
	assert.True(t, s.Get(1).UseDefault)
}

func TestMemoryStore_ClearLastPinRestoresDefault(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SetManual(1, 1, 3))
	require.NoError(t, s.SetManual(1, 2, 4))
	s.ClearManual(1, 1)
	assert.False(t, s.Get(1).UseDefault)
	s.ClearManual(1, 2)
	assert.True(t, s.Get(1).UseDefault)
}

func TestMemoryStore_ApplyAuto(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SetManual(1, 3, 9))
	s.ApplyAuto(1, map[int]int{1: 5, 2: 4, 0: 1})
	cfg := s.Get(1)
	assert.True(t, cfg.AutoConfigured)
	assert.False(t, cfg.UseDefault)
	assert.Equal(t, map[int]int{1: 5, 2: 4}, cfg.ManualMappings)

	require.NoError(t, s.SetManual(1, 1, 6))
	assert.False(t, s.Get(1).AutoConfigured, "manual edit clears auto flag")
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SetManual(1, 1, 3))
	cfg := s.Get(1)
	cfg.ManualMappings[1] = 99
	assert.Equal(t, 3, s.Get(1).ManualMappings[1])

	snap := s.Snapshot()
	snap[1].ManualMappings[1] = 42
	assert.Equal(t, 3, s.Get(1).ManualMappings[1])
}

func TestMemoryStore_UseDefaultAndClear(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SetManual(1, 1, 3))
	require.NoError(t, s.SetManual(2, 1, 3))
	s.UseDefault(1)
	assert.Equal(t, model.DefaultMappingConfig(), s.Get(1))
	assert.Equal(t, []int{1, 2}, s.Printers())

	s.Clear()
	assert.Empty(t, s.Snapshot())
}
