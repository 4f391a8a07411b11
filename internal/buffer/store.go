// SPDX-License-Identifier: MPL-2.0

package buffer

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownBuffer is returned when reading a buffer that was never captured.
	ErrUnknownBuffer = errors.New("unknown buffer")
	// ErrCaptureAlreadyActive is returned when a capture is started on a name
	// that is already capturing.
	ErrCaptureAlreadyActive = errors.New("capture already active")
	// ErrNoActiveCapture is returned when appending to or ending a capture
	// that was never started.
	ErrNoActiveCapture = errors.New("no active capture")
)

type (
	// UnknownBufferError reports a read of a missing buffer.
	UnknownBufferError struct {
		Name string
	}

	// CaptureError reports a capture lifecycle violation for a buffer name.
	// It wraps either ErrCaptureAlreadyActive or ErrNoActiveCapture.
	CaptureError struct {
		Name string
		Err  error
	}

	// Store is the set of named buffers owned by one session.
	// It is safe for concurrent use.
	Store struct {
		mu        sync.Mutex
		committed map[string]string
		pending   map[string]*strings.Builder
	}

	// Info describes a buffer for listings.
	Info struct {
		Name      string
		Size      int
		Capturing bool
	}
)

// Error implements the error interface.
func (e *UnknownBufferError) Error() string {
	return fmt.Sprintf("buffer %q not found", e.Name)
}

// Unwrap returns ErrUnknownBuffer for errors.Is compatibility.
func (e *UnknownBufferError) Unwrap() error { return ErrUnknownBuffer }

// Error implements the error interface.
func (e *CaptureError) Error() string {
	return fmt.Sprintf("buffer %q: %v", e.Name, e.Err)
}

// Unwrap returns the underlying sentinel.
func (e *CaptureError) Unwrap() error { return e.Err }

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		committed: make(map[string]string),
		pending:   make(map[string]*strings.Builder),
	}
}

// StartCapture begins accumulating into name. The previous content (if any)
// stays readable until EndCapture replaces it.
func (s *Store) StartCapture(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, active := s.pending[name]; active {
		return &CaptureError{Name: name, Err: ErrCaptureAlreadyActive}
	}
	s.pending[name] = &strings.Builder{}
	return nil
}

// Append adds text to the active capture for name.
func (s *Store) Append(name, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, active := s.pending[name]
	if !active {
		return &CaptureError{Name: name, Err: ErrNoActiveCapture}
	}
	b.WriteString(text)
	return nil
}

// EndCapture finalizes the capture for name, replacing its readable content.
func (s *Store) EndCapture(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, active := s.pending[name]
	if !active {
		return &CaptureError{Name: name, Err: ErrNoActiveCapture}
	}
	delete(s.pending, name)
	s.committed[name] = b.String()
	return nil
}

// Read returns the content of the most recent completed capture into name.
func (s *Store) Read(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, ok := s.committed[name]
	if !ok {
		return "", &UnknownBufferError{Name: name}
	}
	return content, nil
}

// Set replaces the content of name directly, as if a capture had produced it.
func (s *Store) Set(name, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.committed[name] = content
}

// Delete removes name and reports whether it existed.
// A capture in progress on name is not affected.
func (s *Store) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.committed[name]
	delete(s.committed, name)
	return ok
}

// Names returns the readable buffer names in sorted order.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.committed))
	for name := range s.committed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stat describes name. The second result is false if the buffer is neither
// readable nor capturing.
func (s *Store) Stat(name string) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, readable := s.committed[name]
	_, capturing := s.pending[name]
	if !readable && !capturing {
		return Info{Name: name}, false
	}
	return Info{Name: name, Size: len(content), Capturing: capturing}, true
}
