// Package printerapi talks to the printer management backend over REST. The
// Client implements the collaborator contracts of core/fleet and the Poller
// turns the background dispatch status endpoint into an event stream.
package printerapi
