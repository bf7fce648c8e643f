// Package writer coordinates persisting a photo's final keyword set to the
// requested destinations. Destinations succeed or fail independently; a
// failure in one never blocks the other, and nothing here aborts a batch.
package writer

import (
	"log/slog"

	"github.com/phototools/autotag/internal/source"
	"github.com/phototools/autotag/internal/transform"
)

// Outcome is the per-destination result for one photo. Always a value,
// never an exception: unreachable stores are an expected state of the world.
type Outcome string

const (
	Written        Outcome = "written"
	AlreadyPresent Outcome = "skipped-already-present"
	Unreachable    Outcome = "skipped-unreachable"
	Failed         Outcome = "failed"
)

// Destination names the closed set of keyword stores.
type Destination string

const (
	DestCatalog Destination = "catalog"
	DestSidecar Destination = "sidecar"
)

// Result maps each requested destination to its outcome.
type Result map[Destination]Outcome

// Processed reports whether the photo counts as processed: at least one
// requested destination actually holds the keywords (written now or already
// present). A destination skipped for an unreachable original does not, on
// its own, fail the photo.
func (r Result) Processed() bool {
	for _, o := range r {
		if o == Written || o == AlreadyPresent {
			return true
		}
	}
	return false
}

// DestinationWriter is one keyword store behind the common write contract.
type DestinationWriter interface {
	Name() Destination
	Write(p source.Photo, ks transform.KeywordSet) Outcome
}

// Coordinator fans a keyword set out to every requested destination and
// collects per-destination outcomes.
type Coordinator struct {
	dests []DestinationWriter
}

func NewCoordinator(dests ...DestinationWriter) *Coordinator {
	return &Coordinator{dests: dests}
}

// Destinations returns the requested destination names.
func (c *Coordinator) Destinations() []Destination {
	names := make([]Destination, 0, len(c.dests))
	for _, d := range c.dests {
		names = append(names, d.Name())
	}
	return names
}

// Write persists the keyword set everywhere it was requested. Every
// destination is attempted regardless of what happened to the others.
func (c *Coordinator) Write(p source.Photo, ks transform.KeywordSet) Result {
	result := make(Result, len(c.dests))
	for _, d := range c.dests {
		outcome := d.Write(p, ks)
		result[d.Name()] = outcome
		if outcome == Failed {
			slog.Error("Destination write failed", "destination", d.Name(), "photo", p.FileName)
		}
	}
	return result
}
