package filter

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/Hellseher/go-shellquote"
)

// Presets holds named filters, typically loaded from the configuration.
// Names are matched without regard to case.
type Presets struct {
	registry *Registry
	sources  map[string]string
	mu       sync.RWMutex
}

// NewPresets creates an empty preset table for a registry.
func NewPresets(r *Registry) *Presets {
	return &Presets{
		registry: r,
		sources:  make(map[string]string),
	}
}

// ParseLine splits a filter line the way a shell would and parses the
// resulting arguments with ParseArgs.
func (r *Registry) ParseLine(line string) (Matcher, error) {
	args, err := shellquote.Split(line)
	if err != nil {
		return nil, &ParseError{Expression: line, Reason: err.Error(), Err: ErrMalformed}
	}
	return r.ParseArgs(args...)
}

// Register validates expression and stores it under name, replacing any
// previous preset of that name.
func (p *Presets) Register(name, expression string) error {
	if _, err := p.registry.ParseLine(expression); err != nil {
		return fmt.Errorf("failed to parse preset '%s': %w", name, err)
	}

	p.mu.Lock()
	p.sources[strings.ToLower(name)] = expression
	p.mu.Unlock()

	return nil
}

// RegisterAll registers every preset and stops at the first error.
func (p *Presets) RegisterAll(presets map[string]string) error {
	for _, name := range slices.Sorted(maps.Keys(presets)) {
		if err := p.Register(name, presets[name]); err != nil {
			return err
		}
	}
	return nil
}

// Expression returns the source text of a preset.
func (p *Presets) Expression(name string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.sources[strings.ToLower(name)]
	return s, ok
}

// Names lists the registered presets in order.
func (p *Presets) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return slices.Sorted(maps.Keys(p.sources))
}
