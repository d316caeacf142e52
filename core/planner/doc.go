// Package planner decides which printers a print job targets and how ready
// each of them is to print it.
//
// In specific-printer mode the user picks concrete printers; every selected
// printer is matched against the job's filament requirements and the results
// aggregate into a fleet readiness signal. Poor readiness only warns, it
// never blocks a dispatch. In model mode the job is bound later by the
// backend to the first idle printer of a model, so the planner only
// validates the model choice.
package planner
