// Package color compares filament colours as reported by slicers and printers.
//
// Colours arrive in several forms: "#RRGGBB" from slicer metadata,
// "RRGGBBAA" from printer trays, short "#RGB" codes and plain names typed by
// users. Normalize reduces all of them to a canonical "#rrggbb" string and
// AreSimilar tolerates the small drift between a spool's nominal colour and
// what the printer's sensor reports.
package color
