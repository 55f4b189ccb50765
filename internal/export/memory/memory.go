package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"conti/internal/core"
)

// Store is an in-memory snapshot exporter used by tests and local runs
// without Google credentials.
type Store struct {
	mu    sync.Mutex
	items []core.Statement
}

func New() *Store {
	return &Store{}
}

// ExportSnapshot stores the statement and returns a synthetic reference.
func (s *Store) ExportSnapshot(_ context.Context, stmt *core.Statement) (string, error) {
	if stmt == nil {
		return "", errors.New("nil statement")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, *stmt)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Exported returns a copy of everything exported so far.
func (s *Store) Exported() []core.Statement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Statement(nil), s.items...)
}
