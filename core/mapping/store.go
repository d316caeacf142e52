// Package mapping keeps the per-printer filament mapping choices made during
// one job configuration session. Nothing is persisted: Clear drops every
// printer's configuration when the session ends.
package mapping

import (
	"errors"
	"sort"
	"sync"

	"github.com/kilianp07/printfleet/core/model"
)

// ErrInvalidSlot is returned when pinning an unconstrained slot.
var ErrInvalidSlot = errors.New("mapping: slot id must be positive")

// Store holds one MappingConfig per printer. Every update replaces the
// printer's config with a fresh copy so readers never observe a partially
// applied change and other printers are untouched.
type Store interface {
	Get(printerID int) model.MappingConfig
	SetManual(printerID, slotID, trayID int) error
	ClearManual(printerID, slotID int)
	UseDefault(printerID int)
	ApplyAuto(printerID int, assignments map[int]int)
	Snapshot() map[int]model.MappingConfig
	Clear()
}

// MemoryStore is the in-process Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[int]model.MappingConfig
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[int]model.MappingConfig{}}
}

// Get returns a copy of the printer's config, or the default config when the
// printer was never touched.
func (s *MemoryStore) Get(printerID int) model.MappingConfig {
	s.mu.RLock()
	cfg, ok := s.data[printerID]
	s.mu.RUnlock()
	if !ok {
		return model.DefaultMappingConfig()
	}
	return cfg.Clone()
}

// SetManual pins slotID to trayID. The printer leaves default mode and is no
// longer marked auto-configured.
func (s *MemoryStore) SetManual(printerID, slotID, trayID int) error {
	if slotID <= 0 {
		return ErrInvalidSlot
	}
	s.update(printerID, func(cfg *model.MappingConfig) {
		cfg.ManualMappings[slotID] = trayID
		cfg.UseDefault = false
		cfg.AutoConfigured = false
	})
	return nil
}

// ClearManual removes the pin for slotID. Removing the last pin returns the
// printer to default mode.
func (s *MemoryStore) ClearManual(printerID, slotID int) {
	s.update(printerID, func(cfg *model.MappingConfig) {
		delete(cfg.ManualMappings, slotID)
		cfg.AutoConfigured = false
		if len(cfg.ManualMappings) == 0 {
			cfg.UseDefault = true
		}
	})
}

// UseDefault discards all pins for the printer.
func (s *MemoryStore) UseDefault(printerID int) {
	s.mu.Lock()
	s.data[printerID] = model.DefaultMappingConfig()
	s.mu.Unlock()
}

// ApplyAuto replaces the printer's pins with the given assignments and marks
// the config as auto-configured.
func (s *MemoryStore) ApplyAuto(printerID int, assignments map[int]int) {
	cfg := model.MappingConfig{ManualMappings: make(map[int]int, len(assignments)), AutoConfigured: true}
	for slot, tray := range assignments {
		if slot > 0 {
			cfg.ManualMappings[slot] = tray
		}
	}
	s.mu.Lock()
	s.data[printerID] = cfg
	s.mu.Unlock()
}

// Snapshot returns copies of every touched printer's config.
func (s *MemoryStore) Snapshot() map[int]model.MappingConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]model.MappingConfig, len(s.data))
	for id, cfg := range s.data {
		out[id] = cfg.Clone()
	}
	return out
}

// Printers lists the ids of touched printers in ascending order.
func (s *MemoryStore) Printers() []int {
	s.mu.RLock()
	ids := make([]int, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Ints(ids)
	return ids
}

// Clear drops every printer's config.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.data = map[int]model.MappingConfig{}
	s.mu.Unlock()
}

func (s *MemoryStore) update(printerID int, fn func(*model.MappingConfig)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.data[printerID]
	if !ok {
		cfg = model.DefaultMappingConfig()
	}
	next := cfg.Clone()
	fn(&next)
	s.data[printerID] = next
}
