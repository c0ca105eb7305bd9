// Package document implements attendance.Repository on top of a versioned
// document store. The whole aggregate is read and written as one JSON document.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/attendance"
	"github.com/exportstafft-ui/intern-attendance/internal/domain/shared"
	"github.com/exportstafft-ui/intern-attendance/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config configures the repository.
type Config struct {
	// Path is the document path in both the remote and the fallback store.
	Path string

	// Clock returns the office-local time used in commit messages.
	Clock func() time.Time

	Logger *slog.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceRepository owns the in-memory aggregate.
//
// Writers are serialized by writeMu for the whole read-modify-write cycle.
// Readers take mu only long enough to copy the aggregate. inFlight is set
// while a document is being written so the refresh job can stand aside.
type AttendanceRepository struct {
	store    attendance.DocumentStore
	fallback attendance.FallbackStore
	path     string
	clock    func() time.Time
	logger   *slog.Logger

	writeMu  sync.Mutex
	inFlight atomic.Bool

	mu       sync.RWMutex
	data     *attendance.Data
	loaded   bool
	source   attendance.Source
	revision string
	remote   attendance.FetchStatus
	loadedAt time.Time
}

var _ attendance.Repository = (*AttendanceRepository)(nil)

// NewAttendanceRepository creates a repository. Call Load before anything else.
func NewAttendanceRepository(store attendance.DocumentStore, fallback attendance.FallbackStore, cfg Config) *AttendanceRepository {
	if cfg.Path == "" {
		cfg.Path = attendance.DocumentPath
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &AttendanceRepository{
		store:    store,
		fallback: fallback,
		path:     cfg.Path,
		clock:    cfg.Clock,
		logger:   cfg.Logger.With("component", "attendance_repository"),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Load & Refresh
// ─────────────────────────────────────────────────────────────────────────────

// Load fetches the document and adopts it as the current state.
// Remote copy first, then the fallback copy, then the empty default.
// Once state is loaded, an unreachable remote keeps it and returns an error.
func (r *AttendanceRepository) Load(ctx context.Context) (*attendance.Data, attendance.Source, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.load(ctx)
}

// Refresh reloads state unless a write is pending or running.
func (r *AttendanceRepository) Refresh(ctx context.Context) (bool, error) {
	if r.inFlight.Load() {
		return true, nil
	}
	if !r.writeMu.TryLock() {
		return true, nil
	}
	defer r.writeMu.Unlock()

	_, _, err := r.load(ctx)
	return false, err
}

// fetched is the document chosen by fetch.
type fetched struct {
	data     *attendance.Data
	source   attendance.Source
	revision string
	remote   attendance.FetchStatus
}

// load must be called with writeMu held.
func (r *AttendanceRepository) load(ctx context.Context) (*attendance.Data, attendance.Source, error) {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()

	f, err := r.fetch(ctx, loaded)

	// A cancelled load must not replace good state with the empty default.
	if cerr := ctx.Err(); cerr != nil {
		return nil, "", fmt.Errorf("load attendance: %w", cerr)
	}
	if err != nil {
		r.mu.Lock()
		r.remote = attendance.FetchFailed
		r.mu.Unlock()
		return nil, "", err
	}

	r.mu.Lock()
	r.data = f.data
	r.source = f.source
	r.revision = f.revision
	r.remote = f.remote
	r.loaded = true
	r.loadedAt = time.Now()
	r.mu.Unlock()

	r.logger.Debug("attendance loaded",
		"source", string(f.source),
		"remote", f.remote.String(),
		"interns", len(f.data.Interns),
		"records", len(f.data.Records),
	)
	return f.data.Clone(), f.source, nil
}

// fetch picks the document to adopt. The fallback chain runs on the first
// load and whenever the remote document is missing. A remote that cannot be
// read never replaces loaded state: the next write would overwrite the
// remote document with whatever the chain produced.
func (r *AttendanceRepository) fetch(ctx context.Context, loaded bool) (fetched, error) {
	res := r.store.Get(ctx, r.path)
	out := fetched{remote: res.Status}
	cause := res.Err

	switch res.Status {
	case attendance.FetchFound:
		data, err := decode(res.Content)
		if err == nil {
			out.data, out.source, out.revision = data, attendance.SourceRemote, res.Revision
			return out, nil
		}
		r.logger.Error("remote document is not valid attendance data", "path", r.path, "error", err)
		out.remote, cause = attendance.FetchFailed, err
	case attendance.FetchNotFound:
		r.logger.Info("remote document not found", "path", r.path)
	case attendance.FetchFailed:
		r.logger.Warn("remote document unavailable", "path", r.path, "error", res.Err)
	}

	if loaded && out.remote == attendance.FetchFailed {
		return fetched{}, shared.WrapError("attendance", "Load", shared.ErrServiceUnavailable,
			"remote document unavailable, keeping current state", cause)
	}

	if data, ok := r.loadFallback(ctx); ok {
		out.data, out.source = data, attendance.SourceFallback
		return out, nil
	}
	out.data, out.source = attendance.NewData(), attendance.SourceDefault
	return out, nil
}

func (r *AttendanceRepository) loadFallback(ctx context.Context) (*attendance.Data, bool) {
	if r.fallback == nil {
		return nil, false
	}

	raw, err := r.fallback.Load(ctx, r.path)
	if err != nil {
		if !errors.Is(err, attendance.ErrFallbackMiss) {
			r.logger.Warn("fallback load failed", "path", r.path, "error", err)
		}
		return nil, false
	}

	data, err := decode(raw)
	if err != nil {
		r.logger.Error("fallback document is not valid attendance data", "path", r.path, "error", err)
		return nil, false
	}
	return data, true
}

func decode(raw []byte) (*attendance.Data, error) {
	var data attendance.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	data.Normalize()
	return &data, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

// UpsertRecord replaces any record for the same intern and date and persists.
func (r *AttendanceRepository) UpsertRecord(ctx context.Context, rec attendance.Record) (attendance.PersistOutcome, error) {
	return r.Mutate(ctx, func(d *attendance.Data) (string, error) {
		d.Upsert(rec)
		return attendance.RecordsCommitMessage(r.clock()), nil
	})
}

// Mutate applies fn to a copy of the aggregate, writes it, and adopts it.
// The in-memory state changes only when fn succeeds and the document landed
// in either store.
func (r *AttendanceRepository) Mutate(ctx context.Context, fn attendance.MutateFunc) (attendance.PersistOutcome, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	working, err := r.snapshot()
	if err != nil {
		return attendance.PersistOutcome{}, err
	}

	message, err := fn(working)
	if err != nil {
		return attendance.PersistOutcome{}, err
	}

	return r.persist(ctx, working, message)
}

// Persist writes the current aggregate unchanged.
func (r *AttendanceRepository) Persist(ctx context.Context, message string) (attendance.PersistOutcome, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	working, err := r.snapshot()
	if err != nil {
		return attendance.PersistOutcome{}, err
	}
	return r.persist(ctx, working, message)
}

// persist must be called with writeMu held.
func (r *AttendanceRepository) persist(ctx context.Context, data *attendance.Data, message string) (attendance.PersistOutcome, error) {
	r.inFlight.Store(true)
	defer r.inFlight.Store(false)

	data.Normalize()
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return attendance.PersistOutcome{}, fmt.Errorf("encode attendance: %w", err)
	}

	put, err := r.store.Put(ctx, r.path, content, message)
	if err != nil {
		r.logger.Error("attendance write lost", "message", message, "error", err)
		return attendance.PersistOutcome{}, err
	}

	outcome := attendance.PersistOutcome{Source: attendance.SourceRemote, Revision: put.Revision}
	if put.Fallback {
		outcome = attendance.PersistOutcome{Source: attendance.SourceFallback}
	}

	r.mu.Lock()
	r.data = data
	r.source = outcome.Source
	if !put.Fallback {
		r.revision = put.Revision
	}
	r.mu.Unlock()

	r.logger.Info("attendance saved", "message", message, "saved_to", string(outcome.Source))
	return outcome, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// Snapshot returns a deep copy of the current aggregate.
func (r *AttendanceRepository) Snapshot() (*attendance.Data, error) {
	return r.snapshot()
}

func (r *AttendanceRepository) snapshot() (*attendance.Data, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.loaded {
		return nil, shared.ErrAttendanceNotRead
	}
	return r.data.Clone(), nil
}

// WriteInFlight reports whether a document write is running.
func (r *AttendanceRepository) WriteInFlight() bool {
	return r.inFlight.Load()
}

// State describes where the current aggregate came from.
type State struct {
	Loaded   bool
	Source   attendance.Source
	Revision string

	// Remote is the outcome of the last remote read.
	Remote attendance.FetchStatus

	LoadedAt time.Time
}

// Seedable reports whether it is safe to write an initial roster. When the
// remote read failed, the real roster may still be sitting in the remote store.
func (s State) Seedable() bool {
	return s.Loaded && s.Remote != attendance.FetchFailed
}

// State returns load metadata for health output.
func (r *AttendanceRepository) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return State{
		Loaded:   r.loaded,
		Source:   r.source,
		Revision: r.revision,
		Remote:   r.remote,
		LoadedAt: r.loadedAt,
	}
}

// Path returns the document path.
func (r *AttendanceRepository) Path() string {
	return r.path
}
