package canon

import (
	"context"
	"sync"

	"github.com/solewatch/releasecore/errs"
	"github.com/solewatch/releasecore/internal/schema"
)

// Row is a stored canonical release plus its version for CAS writes.
type Row struct {
	Release schema.CanonicalRelease
	Version uint64
}

// Store is the persistence contract the Canonicalizer writes through.
// A Postgres-backed implementation lives in internal/storage; MemoryStore
// here backs unit tests and single-process deployments.
type Store interface {
	Get(ctx context.Context, releaseID string) (Row, error)
	CompareAndSwap(ctx context.Context, releaseID string, prevVersion uint64, release schema.CanonicalRelease) (Row, error)
	Insert(ctx context.Context, release schema.CanonicalRelease) (Row, error)
}

// MemoryStore is an in-process CAS-protected store, grounded on the
// version-counter and row-scoped-mutex pattern used for canonical
// snapshots elsewhere in this codebase's ancestry.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]*rowEntry
}

type rowEntry struct {
	mu  sync.Mutex
	row Row
}

// NewMemoryStore builds an empty in-memory canonical release store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*rowEntry)}
}

func (s *MemoryStore) entryFor(releaseID string) (*rowEntry, bool) {
	s.mu.RLock()
	e, ok := s.rows[releaseID]
	s.mu.RUnlock()
	return e, ok
}

// Get returns the current row for releaseID.
func (s *MemoryStore) Get(_ context.Context, releaseID string) (Row, error) {
	e, ok := s.entryFor(releaseID)
	if !ok {
		return Row{}, errs.New("canon", errs.KindCanonicalizerContention, errs.WithCode(errs.CodeNotFound),
			errs.WithMessage("canonical row not found"), errs.WithField("release_id", releaseID))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneRow(e.row), nil
}

// Insert creates the first row for a release_id that has never been seen.
func (s *MemoryStore) Insert(_ context.Context, release schema.CanonicalRelease) (Row, error) {
	s.mu.Lock()
	e, exists := s.rows[release.ReleaseID]
	if !exists {
		e = &rowEntry{}
		s.rows[release.ReleaseID] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.row.Version != 0 {
		return Row{}, errs.New("canon", errs.KindCanonicalizerContention, errs.WithCode(errs.CodeConflict),
			errs.WithMessage("row already exists"), errs.WithField("release_id", release.ReleaseID))
	}
	e.row = Row{Release: release, Version: 1}
	return cloneRow(e.row), nil
}

// CompareAndSwap replaces the row if prevVersion matches the stored
// version, per the row-scoped write lock contract in SPEC §4.3.
func (s *MemoryStore) CompareAndSwap(_ context.Context, releaseID string, prevVersion uint64, release schema.CanonicalRelease) (Row, error) {
	e, ok := s.entryFor(releaseID)
	if !ok {
		return Row{}, errs.New("canon", errs.KindCanonicalizerContention, errs.WithCode(errs.CodeNotFound),
			errs.WithMessage("canonical row not found"), errs.WithField("release_id", releaseID))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.row.Version != prevVersion {
		return Row{}, errs.New("canon", errs.KindCanonicalizerContention, errs.WithCode(errs.CodeConflict),
			errs.WithMessage("version mismatch"), errs.WithField("release_id", releaseID))
	}
	e.row = Row{Release: release, Version: prevVersion + 1}
	return cloneRow(e.row), nil
}

func cloneRow(r Row) Row {
	return Row{Release: r.Release.Clone(), Version: r.Version}
}
