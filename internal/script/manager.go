// SPDX-License-Identifier: MPL-2.0

package script

import (
	"sort"
	"sync"

	"github.com/clishell/clishell/internal/metrics"
)

type (
	// Manager owns the retained environments of one session, keyed by handle.
	// It is safe for concurrent use.
	Manager struct {
		mu      sync.Mutex
		envs    map[string]*Environment
		metrics *metrics.Metrics
	}

	// ManagerOption configures a Manager.
	ManagerOption func(*Manager)
)

// WithManagerMetrics tracks the number of retained environments in m.
func WithManagerMetrics(m *metrics.Metrics) ManagerOption {
	return func(mgr *Manager) { mgr.metrics = m }
}

// NewManager creates an empty Manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{envs: make(map[string]*Environment)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Retain returns the retained environment for handle, creating it if needed.
func (m *Manager) Retain(handle string) (*Environment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if env, ok := m.envs[handle]; ok {
		return env, nil
	}
	env, err := newEnvironment(handle, true)
	if err != nil {
		return nil, err
	}
	m.envs[handle] = env
	m.metrics.AddEnvironments(1)
	return env, nil
}

// Lookup returns the retained environment for handle, if any.
func (m *Manager) Lookup(handle string) (*Environment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	env, ok := m.envs[handle]
	return env, ok
}

// Drop discards the retained environment for handle and reports whether one
// existed. A script still executing in it runs to completion.
func (m *Manager) Drop(handle string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.envs[handle]; !ok {
		return false
	}
	delete(m.envs, handle)
	m.metrics.AddEnvironments(-1)
	return true
}

// Handles returns the handles of all retained environments in sorted order.
func (m *Manager) Handles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	handles := make([]string, 0, len(m.envs))
	for h := range m.envs {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return handles
}

// Close drops every retained environment.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics.AddEnvironments(-len(m.envs))
	clear(m.envs)
}
