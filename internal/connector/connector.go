// Package connector implements the funding-data source connectors. Each
// connector fetches raw records from one upstream system for a date window and
// maps them into canonical events.
package connector

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-harvester/internal/canonical"
)

// FetchResult is the output of one connector fetch: the mapped canonical
// events plus the raw response pages they came from, kept for the audit trail.
type FetchResult struct {
	Events   []canonical.Event
	RawPages [][]byte
}

// Connector fetches funding records from one upstream source.
type Connector interface {
	// Name is the stable source key recorded on events and ingest runs.
	Name() string
	// Fetch retrieves all records whose funding date falls in [start, end].
	Fetch(ctx context.Context, start, end time.Time) (*FetchResult, error)
}

// Registry holds the configured connectors by name.
type Registry struct {
	connectors map[string]Connector
}

// NewRegistry creates an empty connector registry.
func NewRegistry() *Registry {
	return &Registry{connectors: map[string]Connector{}}
}

// Register adds a connector. Registering the same name twice replaces the
// earlier one.
func (r *Registry) Register(c Connector) {
	r.connectors[c.Name()] = c
}

// Get returns the named connector.
func (r *Registry) Get(name string) (Connector, error) {
	c, ok := r.connectors[name]
	if !ok {
		return nil, eris.Errorf("connector: unknown source %q", name)
	}
	return c, nil
}

// Names returns the registered source names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
