// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/clishell/clishell/internal/plugin"
)

// ErrUnknownProperty is returned when reading a property that is not set.
var ErrUnknownProperty = errors.New("unknown property")

// Properties is the process-wide name/value store behind set-property and
// get-properties. It is safe for concurrent use.
type Properties struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewProperties creates an empty store.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]string)}
}

// Set assigns a property.
func (p *Properties) Set(name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[name] = value
}

// Get returns a property.
func (p *Properties) Get(name string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[name]
	return v, ok
}

// Snapshot returns a copy of every property.
func (p *Properties) Snapshot() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Names returns property names in sorted order.
func (p *Properties) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.values))
	for k := range p.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Load merges properties from a TOML file. Non-string values are stored in
// their TOML text form.
func (p *Properties) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			p.values[k] = v
		case map[string]any, []any:
			return fmt.Errorf("property %q in %s: nested values are not supported", k, path)
		default:
			p.values[k] = fmt.Sprint(v)
		}
	}
	return nil
}

// Save writes every property to a TOML file.
func (p *Properties) Save(path string) error {
	data, err := toml.Marshal(p.Snapshot())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (p *Plugin) setProperty(_ context.Context, inv *plugin.Invocation) error {
	if len(inv.Args) != 2 {
		return inv.Usage("<name> <value>", "expected two arguments")
	}
	p.props.Set(inv.Args[0], inv.Args[1])
	return nil
}

func (p *Plugin) getProperties(_ context.Context, inv *plugin.Invocation) error {
	filters := make([]*regexp.Regexp, 0, len(inv.Args))
	for _, f := range inv.Args {
		re, err := regexp.Compile("^(?:" + f + ")")
		if err != nil {
			return inv.Usage("[<filter>...]", "invalid filter %q: %v", f, err)
		}
		filters = append(filters, re)
	}

	values := p.props.Snapshot()
	for _, name := range p.props.Names() {
		if !matchesAny(filters, name) {
			continue
		}
		fmt.Fprintf(inv.Stdout, "%s=%s\n", name, values[name])
	}
	return nil
}

func (p *Plugin) loadProperties(_ context.Context, inv *plugin.Invocation) error {
	if len(inv.Args) != 1 {
		return inv.Usage("<file.toml>", "expected one file")
	}
	return p.props.Load(inv.Args[0])
}

func (p *Plugin) saveProperties(_ context.Context, inv *plugin.Invocation) error {
	if len(inv.Args) != 1 {
		return inv.Usage("<file.toml>", "expected one file")
	}
	return p.props.Save(inv.Args[0])
}

func matchesAny(filters []*regexp.Regexp, s string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, re := range filters {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
