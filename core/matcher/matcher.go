// Package matcher assigns loaded spools to the filament requirements of a
// print job for a single printer.
package matcher

import (
	"strings"

	"github.com/kilianp07/printfleet/core/color"
	"github.com/kilianp07/printfleet/core/model"
)

type tier int

const (
	tierExact tier = iota
	tierSimilar
	tierTypeOnly
)

// Matcher resolves requirements against a printer's trays. The zero value
// uses the default colour comparer.
type Matcher struct {
	Colors color.Comparer
}

// New returns a Matcher using the given similarity threshold.
func New(threshold float64) Matcher {
	return Matcher{Colors: color.Comparer{Threshold: threshold}}
}

// Match resolves every requirement in order. Earlier requirements get first
// pick of scarce trays; a tray consumed by a manual pin or an earlier
// requirement is not offered again within the same pass.
func (m Matcher) Match(reqs []model.FilamentRequirement, loaded []model.LoadedFilament, cfg model.MappingConfig) []model.SlotMatch {
	used := make(map[int]bool, len(reqs))
	for _, r := range reqs {
		if tray, ok := cfg.Pin(r.SlotID); ok {
			used[tray] = true
		}
	}

	out := make([]model.SlotMatch, 0, len(reqs))
	for _, r := range reqs {
		if tray, ok := cfg.Pin(r.SlotID); ok {
			out = append(out, m.pinned(r, tray, loaded))
			continue
		}
		idx, found := m.search(r, loaded, used)
		if !found {
			out = append(out, model.SlotMatch{Requirement: r, Status: model.SlotMismatch})
			continue
		}
		lf := loaded[idx]
		used[lf.GlobalTrayID] = true
		out = append(out, model.SlotMatch{Requirement: r, Loaded: &lf, Status: m.status(r, lf)})
	}
	return out
}

// Evaluate matches requirements and aggregates the outcome for printerID.
func (m Matcher) Evaluate(printerID int, reqs []model.FilamentRequirement, loaded []model.LoadedFilament, cfg model.MappingConfig) model.PrinterMatchResult {
	slots := m.Match(reqs, loaded, cfg)
	exact, status := model.AggregateMatchStatus(slots)
	snapshot := make([]model.LoadedFilament, len(loaded))
	copy(snapshot, loaded)
	return model.PrinterMatchResult{
		PrinterID:       printerID,
		Config:          cfg.Clone(),
		LoadedFilaments: snapshot,
		Slots:           slots,
		ExactMatches:    exact,
		TotalSlots:      len(reqs),
		MatchStatus:     status,
	}
}

// AutoConfigure runs matching with no manual pins and returns the resulting
// slot to tray assignments. Unconstrained and unresolved requirements are
// left out since they cannot be pinned.
func (m Matcher) AutoConfigure(reqs []model.FilamentRequirement, loaded []model.LoadedFilament) map[int]int {
	out := make(map[int]int)
	for _, s := range m.Match(reqs, loaded, model.DefaultMappingConfig()) {
		if s.Requirement.Unconstrained() || s.Loaded == nil {
			continue
		}
		if _, taken := out[s.Requirement.SlotID]; taken {
			continue
		}
		out[s.Requirement.SlotID] = s.Loaded.GlobalTrayID
	}
	return out
}

// pinned resolves a manually mapped requirement. The status is derived for
// display only; no search takes place. A pin to a tray missing from the
// snapshot stays unresolved.
func (m Matcher) pinned(r model.FilamentRequirement, tray int, loaded []model.LoadedFilament) model.SlotMatch {
	for i := range loaded {
		if loaded[i].GlobalTrayID != tray {
			continue
		}
		lf := loaded[i]
		return model.SlotMatch{Requirement: r, Loaded: &lf, Status: m.status(r, lf), IsManual: true}
	}
	return model.SlotMatch{Requirement: r, Status: model.SlotMismatch, IsManual: true}
}

func (m Matcher) search(r model.FilamentRequirement, loaded []model.LoadedFilament, used map[int]bool) (int, bool) {
	for t := tierExact; t <= tierTypeOnly; t++ {
		for i, lf := range loaded {
			if lf.Empty() || used[lf.GlobalTrayID] {
				continue
			}
			if m.satisfies(t, r, lf) {
				return i, true
			}
		}
	}
	return 0, false
}

func (m Matcher) satisfies(t tier, r model.FilamentRequirement, lf model.LoadedFilament) bool {
	if !SameMaterial(r.MaterialType, lf.MaterialType) {
		return false
	}
	switch t {
	case tierExact:
		return color.Equal(r.Color, lf.Color)
	case tierSimilar:
		return m.Colors.AreSimilar(r.Color, lf.Color)
	default:
		return true
	}
}

func (m Matcher) status(r model.FilamentRequirement, lf model.LoadedFilament) model.SlotStatus {
	if !SameMaterial(r.MaterialType, lf.MaterialType) {
		return model.SlotMismatch
	}
	if color.Equal(r.Color, lf.Color) || m.Colors.AreSimilar(r.Color, lf.Color) {
		return model.SlotExact
	}
	return model.SlotTypeOnly
}

// SameMaterial compares material types ignoring case and surrounding space.
// An empty type never matches.
func SameMaterial(a, b string) bool {
	na, nb := NormalizeMaterial(a), NormalizeMaterial(b)
	return na != "" && na == nb
}

// NormalizeMaterial upper-cases and trims a material type.
func NormalizeMaterial(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
