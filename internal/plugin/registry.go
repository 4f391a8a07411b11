// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

type (
	// Registry maps plugin names and command names to their providers.
	// It is safe for concurrent use.
	Registry struct {
		mu       sync.RWMutex
		plugins  map[string]*entry
		commands map[string]*Handler
	}

	// Handler is a resolved command: the command and the plugin owning it.
	Handler struct {
		Plugin  string
		Command Command
	}

	// Info summarizes a registered plugin.
	Info struct {
		Name     string
		Version  string
		Commands []string
		// Methods lists instance methods; empty when the plugin exposes no instance.
		Methods []string
	}

	entry struct {
		plugin   Plugin
		instance Instance
		commands []Command
	}
)

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins:  make(map[string]*entry),
		commands: make(map[string]*Handler),
	}
}

// Register adds a plugin and all of its command names. Registration is
// all-or-nothing: on any name conflict nothing is added.
//
// If the plugin implements Initializer, Init runs after the names are
// reserved and outside the registry lock, so it may itself use the registry.
// A failing Init rolls the registration back.
func (r *Registry) Register(ctx context.Context, p Plugin) error {
	name := p.Name()
	if name == "" {
		return fmt.Errorf("%w: empty plugin name", ErrInvalidPlugin)
	}
	cmds := p.Commands()

	if err := r.reserve(name, p, cmds); err != nil {
		return err
	}

	if initializer, ok := p.(Initializer); ok {
		if err := initializer.Init(ctx); err != nil {
			r.release(name)
			return fmt.Errorf("init plugin %s: %w", name, err)
		}
	}
	return nil
}

func (r *Registry) reserve(name string, p Plugin, cmds []Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[name]; exists {
		return &DuplicateNameError{Kind: "plugin", Name: name, Owner: name}
	}

	seen := make(map[string]bool)
	for _, c := range cmds {
		if len(c.Names) == 0 || c.Run == nil {
			return fmt.Errorf("%w: plugin %s has a command without name or handler", ErrInvalidPlugin, name)
		}
		for _, cn := range c.Names {
			if cn == "" {
				return fmt.Errorf("%w: plugin %s has an empty command name", ErrInvalidPlugin, name)
			}
			if h, exists := r.commands[cn]; exists {
				return &DuplicateNameError{Kind: "command", Name: cn, Owner: h.Plugin}
			}
			if seen[cn] {
				return &DuplicateNameError{Kind: "command", Name: cn, Owner: name}
			}
			seen[cn] = true
		}
	}

	e := &entry{plugin: p, commands: cmds}
	if ip, ok := p.(InstanceProvider); ok {
		e.instance = ip.Instance()
	}
	r.plugins[name] = e
	for _, c := range cmds {
		h := &Handler{Plugin: name, Command: c}
		for _, cn := range c.Names {
			r.commands[cn] = h
		}
	}
	return nil
}

// release removes a plugin's entries and returns it, or nil if absent.
func (r *Registry) release(name string) Plugin {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.plugins[name]
	if !ok {
		return nil
	}
	for _, c := range e.commands {
		for _, cn := range c.Names {
			delete(r.commands, cn)
		}
	}
	delete(r.plugins, name)
	return e.plugin
}

// Unregister removes a plugin and all of its command names. If the plugin
// implements Finalizer, Close is called after removal.
func (r *Registry) Unregister(name string) error {
	p := r.release(name)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}
	if fin, ok := p.(Finalizer); ok {
		if err := fin.Close(); err != nil {
			return fmt.Errorf("close plugin %s: %w", name, err)
		}
	}
	return nil
}

// Close unregisters every plugin, joining any finalizer errors.
func (r *Registry) Close() error {
	var errs []error
	for _, name := range r.Names() {
		if err := r.Unregister(name); err != nil && !errors.Is(err, ErrUnknownPlugin) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Resolve returns the handler registered for a command name.
func (r *Registry) Resolve(name string) (*Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.commands[name]
	if !ok {
		return nil, &UnknownCommandError{Name: name}
	}
	return h, nil
}

// Instance returns the queryable instance of a plugin. The second result is
// false when the plugin is not registered or exposes no instance.
func (r *Registry) Instance(name string) (Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.plugins[name]
	if !ok || e.instance == nil {
		return nil, false
	}
	return e.instance, true
}

// Names returns the registered plugin names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info describes a registered plugin.
func (r *Registry) Info(name string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.plugins[name]
	if !ok {
		return Info{}, false
	}
	info := Info{Name: name, Version: e.plugin.Version()}
	for _, c := range e.commands {
		info.Commands = append(info.Commands, c.Primary())
	}
	if e.instance != nil {
		info.Methods = e.instance.Methods()
	}
	return info, true
}

// Handlers returns one handler per command (aliases collapsed), sorted by
// primary name.
func (r *Registry) Handlers() []*Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[*Handler]bool)
	out := make([]*Handler, 0, len(r.commands))
	for _, h := range r.commands {
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Command.Primary() < out[j].Command.Primary()
	})
	return out
}
