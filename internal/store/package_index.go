package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"

	"github.com/kariantti/NuGetGallery/internal/errors"
)

const (
	indexMetaFile  = "index_meta.json"
	writeBatchSize = 1000
)

// PackageIndex is the on-disk bleve index of SearchableDocuments. Searches
// open a fresh read-only reader per call; Write rebuilds under an exclusive
// file lock that makes readers report ErrIndexUnavailable.
type PackageIndex struct {
	path string
	lock *FileLock
}

// NewPackageIndex returns a handle for the index directory at path. Nothing
// is opened or created until OpenReader or Write.
func NewPackageIndex(path string) *PackageIndex {
	return &PackageIndex{
		path: path,
		lock: NewFileLock(path + ".lock"),
	}
}

// Path returns the index directory.
func (p *PackageIndex) Path() string {
	return p.path
}

// LockPath returns the rebuild lock file.
func (p *PackageIndex) LockPath() string {
	return p.lock.Path()
}

// Exists reports whether a complete index is present.
func (p *PackageIndex) Exists() bool {
	return validateIndexIntegrity(p.path) == nil
}

// validateIndexIntegrity checks that path holds a bleve index with a
// readable index_meta.json.
func validateIndexIntegrity(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}

	data, err := os.ReadFile(filepath.Join(path, indexMetaFile))
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", indexMetaFile, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("%s is empty", indexMetaFile)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("%s is corrupt: %w", indexMetaFile, err)
	}
	return nil
}

// OpenReader opens the index read-only under a shared lock. It returns
// ErrIndexUnavailable when the index is missing or a rebuild holds the lock.
// The caller must Close the reader.
func (p *PackageIndex) OpenReader() (IndexReader, error) {
	if err := validateIndexIntegrity(p.path); err != nil {
		slog.Debug("index_unavailable",
			slog.String("path", p.path),
			slog.String("reason", err.Error()))
		return nil, ErrIndexUnavailable
	}

	lock := NewFileLock(p.lock.Path())
	ok, err := lock.TryRLock()
	if err != nil {
		return nil, errors.New(errors.ErrCodeIndexFailed, "cannot lock package index", err).
			WithDetail("path", p.path)
	}
	if !ok {
		slog.Debug("index_unavailable",
			slog.String("path", p.path),
			slog.String("reason", "rebuild in progress"))
		return nil, ErrIndexUnavailable
	}

	idx, err := bleve.OpenUsing(p.path, map[string]interface{}{"read_only": true})
	if err != nil {
		_ = lock.Unlock()
		if stderrors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			return nil, ErrIndexUnavailable
		}
		return nil, errors.New(errors.ErrCodeIndexFailed, "cannot open package index", err).
			WithDetail("path", p.path)
	}

	return &indexReader{index: idx, lock: lock}, nil
}

// Write adds or replaces docs in the index, creating it if needed. Readers
// see the index as unavailable until Write returns.
func (p *PackageIndex) Write(ctx context.Context, docs []*SearchableDocument) error {
	if err := p.lock.LockContext(ctx); err != nil {
		return errors.New(errors.ErrCodeIndexLocked, "cannot lock package index for writing", err).
			WithDetail("path", p.path)
	}
	defer func() { _ = p.lock.Unlock() }()

	idx, err := p.openWritable()
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	for start := 0; start < len(docs); start += writeBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+writeBatchSize, len(docs))

		batch := idx.NewBatch()
		for _, doc := range docs[start:end] {
			if err := batch.Index(doc.DocID(), doc.fields()); err != nil {
				return errors.New(errors.ErrCodeIndexFailed, "cannot index package "+doc.ID, err)
			}
		}
		if err := idx.Batch(batch); err != nil {
			return errors.New(errors.ErrCodeIndexFailed, "cannot write index batch", err)
		}
	}

	slog.Info("index_written",
		slog.String("path", p.path),
		slog.Int("documents", len(docs)))
	return nil
}

func (p *PackageIndex) openWritable() (bleve.Index, error) {
	if validErr := validateIndexIntegrity(p.path); validErr == nil {
		idx, err := bleve.Open(p.path)
		if err != nil {
			return nil, errors.New(errors.ErrCodeIndexFailed, "cannot open package index", err)
		}
		return idx, nil
	} else if !os.IsNotExist(validErr) {
		slog.Warn("index_corrupted",
			slog.String("path", p.path),
			slog.String("error", validErr.Error()))
		if err := os.RemoveAll(p.path); err != nil {
			return nil, errors.New(errors.ErrCodeIndexFailed, "cannot clear corrupted package index", err)
		}
	}

	im, err := IndexMapping()
	if err != nil {
		return nil, errors.InternalError("cannot build index mapping", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return nil, errors.New(errors.ErrCodeIndexFailed, "cannot create index directory", err)
	}
	idx, err := bleve.New(p.path, im)
	if err != nil {
		return nil, errors.New(errors.ErrCodeIndexFailed, "cannot create package index", err)
	}
	return idx, nil
}

// indexReader releases its shared lock on Close.
type indexReader struct {
	index bleve.Index
	lock  *FileLock
}

func (r *indexReader) SearchInContext(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	return r.index.SearchInContext(ctx, req)
}

func (r *indexReader) Close() error {
	err := r.index.Close()
	if unlockErr := r.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}

var _ IndexReader = (*indexReader)(nil)
