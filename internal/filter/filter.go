// Package filter decides which raw events are handed to the processor.
//
// A single filter matches an event when every field it specifies equals the
// event's field exactly. A set of filters matches when any filter matches.
// An empty set, or a filter with no fields, matches everything. Transactions
// are never filtered.
package filter

import (
	"fmt"

	"github.com/longcipher/sui-indexer/pkg/config"
	"github.com/longcipher/sui-indexer/pkg/types"
)

// Engine evaluates a fixed set of filters. It is immutable and safe for concurrent use.
type Engine struct {
	filters  []config.EventFilter
	matchAll bool
}

// New precomputes an engine for filters.
func New(filters []config.EventFilter) *Engine {
	e := &Engine{
		filters:  make([]config.EventFilter, len(filters)),
		matchAll: len(filters) == 0,
	}
	copy(e.filters, filters)

	for _, f := range filters {
		if f.IsEmpty() {
			e.matchAll = true
			break
		}
	}

	return e
}

// Matches reports whether ev passes the filter set.
func (e *Engine) Matches(ev types.RawEvent) bool {
	if e.matchAll {
		return true
	}

	for _, f := range e.filters {
		if matchOne(f, ev) {
			return true
		}
	}
	return false
}

// Apply returns the matching events in their original order.
func (e *Engine) Apply(events []types.RawEvent) []types.RawEvent {
	if e.matchAll {
		return events
	}

	out := make([]types.RawEvent, 0, len(events))
	for _, ev := range events {
		if e.Matches(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Len returns the number of configured filters.
func (e *Engine) Len() int {
	return len(e.filters)
}

// Stats counts how many filters constrain each field.
type Stats struct {
	Total     int
	Package   int
	Module    int
	EventType int
	Sender    int
}

// Stats summarizes the configured filters.
func (e *Engine) Stats() Stats {
	s := Stats{Total: len(e.filters)}
	for _, f := range e.filters {
		if f.Package != "" {
			s.Package++
		}
		if f.Module != "" {
			s.Module++
		}
		if f.EventType != "" {
			s.EventType++
		}
		if f.Sender != "" {
			s.Sender++
		}
	}
	return s
}

func matchOne(f config.EventFilter, ev types.RawEvent) bool {
	if f.Package != "" && f.Package != ev.PackageID {
		return false
	}
	if f.Module != "" && f.Module != ev.ModuleName {
		return false
	}
	if f.EventType != "" && f.EventType != ev.EventType {
		return false
	}
	if f.Sender != "" && f.Sender != ev.Sender {
		return false
	}
	return true
}

// PackageEvents matches every event emitted by a package.
func PackageEvents(packageID string) config.EventFilter {
	return config.EventFilter{Package: packageID}
}

// ModuleEvents matches every event emitted by one module of a package.
func ModuleEvents(packageID, module string) config.EventFilter {
	return config.EventFilter{Package: packageID, Module: module}
}

// EventTypeFilter matches one fully qualified event type, pkg::module::Name.
func EventTypeFilter(packageID, module, name string) config.EventFilter {
	return config.EventFilter{EventType: fmt.Sprintf("%s::%s::%s", packageID, module, name)}
}

// SenderEvents matches every event from transactions sent by address.
func SenderEvents(address string) config.EventFilter {
	return config.EventFilter{Sender: address}
}
