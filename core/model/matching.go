package model

// SlotStatus is the per-requirement outcome of filament matching.
type SlotStatus string

const (
	SlotExact    SlotStatus = "match"
	SlotTypeOnly SlotStatus = "type_only"
	SlotMismatch SlotStatus = "mismatch"
)

// MatchStatus aggregates slot outcomes for one printer.
type MatchStatus string

const (
	MatchFull    MatchStatus = "full"
	MatchPartial MatchStatus = "partial"
	MatchNone    MatchStatus = "none"
)

// MappingConfig holds the per-printer overrides chosen in the current session.
// ManualMappings maps a requirement slot id to a global tray id.
type MappingConfig struct {
	UseDefault     bool        `json:"use_default"`
	ManualMappings map[int]int `json:"manual_mappings"`
	AutoConfigured bool        `json:"auto_configured"`
}

// DefaultMappingConfig returns the configuration of a printer nobody touched.
func DefaultMappingConfig() MappingConfig {
	return MappingConfig{UseDefault: true, ManualMappings: map[int]int{}}
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (c MappingConfig) Clone() MappingConfig {
	out := c
	out.ManualMappings = make(map[int]int, len(c.ManualMappings))
	for k, v := range c.ManualMappings {
		out.ManualMappings[k] = v
	}
	return out
}

// Pin returns the tray pinned for slot, if any. Unconstrained slots and
// configs in default mode never have pins.
func (c MappingConfig) Pin(slot int) (int, bool) {
	if c.UseDefault || slot <= 0 {
		return 0, false
	}
	tray, ok := c.ManualMappings[slot]
	return tray, ok
}

// SlotMatch is the resolution of one requirement on one printer.
type SlotMatch struct {
	Requirement FilamentRequirement `json:"requirement"`
	Loaded      *LoadedFilament     `json:"loaded,omitempty"`
	Status      SlotStatus          `json:"status"`
	IsManual    bool                `json:"is_manual"`
}

// Resolved reports whether a tray was found for the requirement.
func (m SlotMatch) Resolved() bool { return m.Loaded != nil }

// PrinterMatchResult summarises matching for one printer.
type PrinterMatchResult struct {
	PrinterID       int              `json:"printer_id"`
	Config          MappingConfig    `json:"config"`
	LoadedFilaments []LoadedFilament `json:"loaded_filaments"`
	Slots           []SlotMatch      `json:"slots"`
	ExactMatches    int              `json:"exact_matches"`
	TotalSlots      int              `json:"total_slots"`
	MatchStatus     MatchStatus      `json:"match_status"`
	IsLoading       bool             `json:"is_loading"`
}

// AggregateMatchStatus derives the printer status from slot outcomes.
func AggregateMatchStatus(slots []SlotMatch) (exact int, status MatchStatus) {
	unresolved := false
	for _, s := range slots {
		if !s.Resolved() {
			unresolved = true
			continue
		}
		if s.Status == SlotExact {
			exact++
		}
	}
	switch {
	case unresolved:
		return exact, MatchNone
	case exact == len(slots):
		return exact, MatchFull
	default:
		return exact, MatchPartial
	}
}
