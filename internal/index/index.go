package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/gofrs/flock"

	ofdberrors "github.com/magdaddy/openfairdb/internal/errors"
	"github.com/magdaddy/openfairdb/internal/entity"
)

// EntryIndex is the bleve-backed entry index.
//
// Mutations are collected in a pending batch and applied on Commit.
// EntryIndex is not safe for concurrent use; wrap it in a SearchEngine.
type EntryIndex struct {
	index    bleve.Index
	batch    *bleve.Batch
	path     string
	lock     *flock.Flock
	texts    *textQueryCache
	recorder Recorder
	closed   bool
}

// NewInMemory creates an index that lives in memory only.
func NewInMemory(opts Options) (*EntryIndex, error) {
	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, ofdberrors.InternalError("failed to create index mapping", err)
	}
	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, ofdberrors.New(ofdberrors.ErrCodeIndexOpen, "failed to create in-memory index", err)
	}
	slog.Warn("index_in_memory", slog.String("reason", "no index path configured, index is rebuilt on every start"))
	return newEntryIndex(idx, "", nil, opts)
}

// Open opens the index stored at dir, creating it if needed.
//
// A missing or empty directory gets a fresh index. A directory holding an
// index is reopened. Any other non-empty directory is rejected, as is a
// directory already owned by another process. An empty dir means NewInMemory.
func Open(dir string, opts Options) (*EntryIndex, error) {
	if dir == "" {
		return NewInMemory(opts)
	}
	dir = filepath.Clean(dir)

	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, ofdberrors.IOError(fmt.Sprintf("failed to create directory %s", parent), err)
	}

	lock, err := acquireLock(dir)
	if err != nil {
		return nil, err
	}

	idx, err := openOrCreate(dir)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	ei, err := newEntryIndex(idx, dir, lock, opts)
	if err != nil {
		_ = idx.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return ei, nil
}

func newEntryIndex(idx bleve.Index, path string, lock *flock.Flock, opts Options) (*EntryIndex, error) {
	texts, err := newTextQueryCache(opts.TextQueryCacheSize)
	if err != nil {
		return nil, ofdberrors.InternalError("failed to create text query cache", err)
	}
	return &EntryIndex{
		index:    idx,
		batch:    idx.NewBatch(),
		path:     path,
		lock:     lock,
		texts:    texts,
		recorder: opts.Recorder,
	}, nil
}

// acquireLock takes the advisory lock next to the index directory.
func acquireLock(dir string) (*flock.Flock, error) {
	lock := flock.New(dir + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, ofdberrors.IOError(fmt.Sprintf("failed to lock index %s", dir), err)
	}
	if !ok {
		return nil, ofdberrors.New(ofdberrors.ErrCodeIndexLocked,
			fmt.Sprintf("index %s is in use by another process", dir), nil).
			WithSuggestion("Stop the other process or configure a different index path")
	}
	return lock, nil
}

type dirState int

const (
	dirMissing dirState = iota
	dirEmpty
	dirIndex
	dirForeign
)

func inspectDir(dir string) (dirState, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return dirMissing, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return dirForeign, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return dirEmpty, nil
	}
	if validIndexMeta(dir) {
		return dirIndex, nil
	}
	return dirForeign, nil
}

// validIndexMeta reports whether dir has a parseable, non-empty index_meta.json.
func validIndexMeta(dir string) bool {
	data, err := os.ReadFile(filepath.Join(dir, "index_meta.json"))
	if err != nil || len(data) == 0 {
		return false
	}
	var meta map[string]interface{}
	return json.Unmarshal(data, &meta) == nil
}

func openOrCreate(dir string) (bleve.Index, error) {
	state, err := inspectDir(dir)
	if err != nil {
		return nil, ofdberrors.IOError(fmt.Sprintf("failed to inspect index directory %s", dir), err)
	}

	switch state {
	case dirIndex:
		idx, err := bleve.Open(dir)
		if err != nil {
			return nil, ofdberrors.New(ofdberrors.ErrCodeCorruptIndex,
				fmt.Sprintf("failed to open index %s", dir), err).
				WithSuggestion("Remove the index directory and run 'ofdb-search reindex'")
		}
		slog.Info("index_opened", slog.String("path", dir))
		return idx, nil

	case dirForeign:
		return nil, ofdberrors.New(ofdberrors.ErrCodeCorruptIndex,
			fmt.Sprintf("%s exists but does not contain an index", dir), nil).
			WithSuggestion("Choose an empty or non-existent index path")

	case dirEmpty:
		// bleve refuses to create an index in an existing directory.
		if err := os.Remove(dir); err != nil {
			return nil, ofdberrors.IOError(fmt.Sprintf("failed to prepare index directory %s", dir), err)
		}
	}

	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, ofdberrors.InternalError("failed to create index mapping", err)
	}
	idx, err := bleve.New(dir, indexMapping)
	if err != nil {
		return nil, ofdberrors.New(ofdberrors.ErrCodeIndexOpen, fmt.Sprintf("failed to create index %s", dir), err)
	}
	slog.Info("index_created", slog.String("path", dir))
	return idx, nil
}

// Path returns the index directory, empty for in-memory indexes.
func (x *EntryIndex) Path() string {
	return x.path
}

// Upsert replaces any document of the entry with its current projection.
// Panics if rating is out of range.
func (x *EntryIndex) Upsert(e *entity.Entry, rating entity.AvgRatingValue) error {
	if x.closed {
		return errIndexClosed()
	}
	doc, err := newEntryDocument(e, rating)
	if err != nil {
		return err
	}
	x.batch.Delete(doc.ID)
	if err := x.batch.Index(doc.ID, doc); err != nil {
		return ofdberrors.New(ofdberrors.ErrCodeIndexWrite, fmt.Sprintf("failed to stage entry %s", doc.ID), err)
	}
	return nil
}

// Remove deletes the document for id. Unknown ids are not an error.
func (x *EntryIndex) Remove(id string) error {
	if x.closed {
		return errIndexClosed()
	}
	if id == "" {
		return ofdberrors.ValidationError("entry id is empty", nil)
	}
	x.batch.Delete(id)
	return nil
}

// Commit makes all pending mutations visible to queries.
// On failure the pending mutations are kept.
func (x *EntryIndex) Commit() error {
	if x.closed {
		return errIndexClosed()
	}
	ops := x.batch.Size()
	if ops == 0 {
		return nil
	}
	if err := x.index.Batch(x.batch); err != nil {
		return ofdberrors.New(ofdberrors.ErrCodeIndexWrite, "failed to commit index", err)
	}
	x.batch.Reset()
	slog.Debug("index_committed", slog.Int("operations", ops))
	return nil
}

// Pending returns the number of uncommitted operations.
func (x *EntryIndex) Pending() int {
	if x.closed {
		return 0
	}
	return x.batch.Size()
}

// Count returns the number of committed documents.
func (x *EntryIndex) Count() (uint64, error) {
	if x.closed {
		return 0, errIndexClosed()
	}
	n, err := x.index.DocCount()
	if err != nil {
		return 0, ofdberrors.IOError("failed to count documents", err)
	}
	return n, nil
}

// idPageSize is the number of document ids read per search page by IDs.
const idPageSize = 1000

// IDs returns the ids of all committed documents in ascending order.
func (x *EntryIndex) IDs(ctx context.Context) ([]string, error) {
	if x.closed {
		return nil, errIndexClosed()
	}
	var ids []string
	for from := 0; ; from += idPageSize {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), idPageSize, from, false)
		req.SortBy([]string{"_id"})
		res, err := x.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, ofdberrors.New(ofdberrors.ErrCodeSearchFailed, "failed to list document ids", err)
		}
		for _, hit := range res.Hits {
			ids = append(ids, hit.ID)
		}
		if len(res.Hits) < idPageSize {
			return ids, nil
		}
	}
}

// Close releases the index and its directory lock.
// Uncommitted mutations are discarded.
func (x *EntryIndex) Close() error {
	if x.closed {
		return nil
	}
	x.closed = true
	if dropped := x.batch.Size(); dropped > 0 {
		slog.Warn("index_uncommitted_dropped", slog.Int("operations", dropped))
	}

	err := x.index.Close()
	if x.lock != nil {
		if unlockErr := x.lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}
	if err != nil {
		return ofdberrors.IOError("failed to close index", err)
	}
	return nil
}

func errIndexClosed() error {
	return ofdberrors.New(ofdberrors.ErrCodeIndexClosed, "index is closed", nil)
}

func (x *EntryIndex) degraded(reason string) {
	if x.recorder != nil {
		x.recorder.RecordDegraded(reason)
	}
}
