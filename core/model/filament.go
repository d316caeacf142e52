package model

import "strings"

// Global tray ids with a fixed meaning on every printer.
const (
	TrayEmpty    = 255
	TrayExternal = 254
)

// FilamentRequirement is one filament demand declared by a sliced print job.
type FilamentRequirement struct {
	SlotID       int     `json:"slot_id"`
	MaterialType string  `json:"type"`
	Color        string  `json:"color"`
	MassGrams    float64 `json:"used_grams"`
}

// Unconstrained reports whether the requirement may be served from any slot.
// Such requirements are auto-matched but never manually pinned.
func (r FilamentRequirement) Unconstrained() bool { return r.SlotID <= 0 }

// LoadedFilament describes the spool currently sitting in one printer tray.
type LoadedFilament struct {
	GlobalTrayID int    `json:"global_tray_id"`
	MaterialType string `json:"type"`
	Color        string `json:"color"`
	Label        string `json:"label"`
}

// Empty reports whether the tray holds no usable spool.
func (l LoadedFilament) Empty() bool {
	return l.GlobalTrayID == TrayEmpty || strings.TrimSpace(l.MaterialType) == ""
}

// External reports whether the spool hangs on the external holder.
func (l LoadedFilament) External() bool { return l.GlobalTrayID == TrayExternal }

// Printer is the inventory view of one printer.
type Printer struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Model string `json:"model"`
}

// PrintJob is the sliced file a user wants to send to the fleet.
type PrintJob struct {
	FileID       int                   `json:"file_id"`
	Name         string                `json:"name"`
	SlicerModel  string                `json:"printer_model,omitempty"`
	Requirements []FilamentRequirement `json:"filaments"`
}
