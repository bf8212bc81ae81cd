package index

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	ofdberrors "github.com/magdaddy/openfairdb/internal/errors"
	"github.com/magdaddy/openfairdb/internal/entity"
)

// SearchEngine is the single shared handle to an index.
//
// Every operation, query or mutation, holds the same exclusive lock. A panic
// inside an operation is logged and turned into an error; the lock is still
// released and later operations keep using the index.
type SearchEngine struct {
	mu     sync.Mutex
	engine Engine
}

// NewSearchEngine wraps an engine. The engine must not be used directly
// afterwards.
func NewSearchEngine(engine Engine) *SearchEngine {
	return &SearchEngine{engine: engine}
}

// Upsert implements Indexer.
func (s *SearchEngine) Upsert(e *entity.Entry, rating entity.AvgRatingValue) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer recoverInto("upsert", &err)
	return s.engine.Upsert(e, rating)
}

// Remove implements Indexer.
func (s *SearchEngine) Remove(id string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer recoverInto("remove", &err)
	return s.engine.Remove(id)
}

// Commit implements Indexer.
func (s *SearchEngine) Commit() (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer recoverInto("commit", &err)
	return s.engine.Commit()
}

// Search implements Searcher.
func (s *SearchEngine) Search(ctx context.Context, entries EntryGateway, q Query, limit int) (results []Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer recoverInto("search", &err)
	return s.engine.Search(ctx, entries, q, limit)
}

// Count returns the number of committed documents.
func (s *SearchEngine) Count() (n uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer recoverInto("count", &err)
	return s.engine.Count()
}

// IDs returns the ids of all committed documents.
func (s *SearchEngine) IDs(ctx context.Context) (ids []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer recoverInto("ids", &err)
	return s.engine.IDs(ctx)
}

// Pending returns the number of uncommitted operations.
func (s *SearchEngine) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Pending()
}

// Close closes the wrapped engine.
func (s *SearchEngine) Close() (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer recoverInto("close", &err)
	return s.engine.Close()
}

// recoverInto converts a panic of the running operation into *err.
func recoverInto(op string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	slog.Error("index_operation_panicked",
		slog.String("op", op),
		slog.String("panic", fmt.Sprint(r)),
		slog.String("stack", string(debug.Stack())))
	*err = ofdberrors.InternalError(fmt.Sprintf("index %s failed", op), fmt.Errorf("panic: %v", r))
}
