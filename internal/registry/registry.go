// Package registry provides the retriever type registry.
//
// Instead of hard-coded switch statements, source adapters register their
// constructors by type string. This allows new upstream systems to be added
// without modifying the pipeline code. Built-in adapters (zendesk_tickets,
// zendesk_articles, jira) register automatically at startup via init().
//
// Unknown types do not resolve: configurations naming a type nobody
// registered skip that source with a log line rather than aborting the run.
package registry

import (
	"sort"
	"sync"

	"github.com/pullsync/runtime/internal/retrievers"
)

// Constructor is a function that creates a retriever from run parameters.
// Returns an error if the parameters are invalid for the adapter.
type Constructor func(p retrievers.Params) (retrievers.Retriever, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Constructor)
)

// Register registers a retriever constructor by type string.
// Calling Register with an already registered type will overwrite the
// previous constructor.
//
// This function is safe for concurrent use and is typically called from
// init() functions in adapter packages.
func Register(sourceType string, constructor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	registry[sourceType] = constructor
}

// Get returns the constructor registered for sourceType, or nil if the
// type is unknown.
func Get(sourceType string) Constructor {
	mu.RLock()
	defer mu.RUnlock()
	return registry[sourceType]
}

// ListTypes returns all registered type strings, sorted.
func ListTypes() []string {
	mu.RLock()
	defer mu.RUnlock()

	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
