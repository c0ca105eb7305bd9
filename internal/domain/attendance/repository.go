package attendance

import (
	"context"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE CONTRACTS
// Эти интерфейсы определяют контракт для работы с хранилищами документа.
// Реализации находятся в infrastructure.
// ══════════════════════════════════════════════════════════════════════════════

// Source says where a document was read from or written to.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
	SourceDefault  Source = "default"
)

// FetchStatus distinguishes the three outcomes of a remote read.
type FetchStatus int

const (
	FetchFound FetchStatus = iota
	FetchNotFound
	FetchFailed
)

// String returns a log-friendly name.
func (s FetchStatus) String() string {
	switch s {
	case FetchFound:
		return "found"
	case FetchNotFound:
		return "not_found"
	case FetchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FetchResult is the outcome of DocumentStore.Get.
// Content and Revision are set only for FetchFound; Err only for FetchFailed.
type FetchResult struct {
	Status   FetchStatus
	Content  []byte
	Revision string
	Err      error
}

// Found builds a FetchFound result.
func Found(content []byte, revision string) FetchResult {
	return FetchResult{Status: FetchFound, Content: content, Revision: revision}
}

// NotFound builds a FetchNotFound result.
func NotFound() FetchResult {
	return FetchResult{Status: FetchNotFound}
}

// Failed builds a FetchFailed result.
func Failed(err error) FetchResult {
	return FetchResult{Status: FetchFailed, Err: err}
}

// PutOutcome is the outcome of DocumentStore.Put.
type PutOutcome struct {
	// Revision is the new remote revision. Empty when Fallback is set.
	Revision string
	// Fallback is true when the document landed in the local fallback store.
	Fallback bool
}

// DocumentStore is a versioned blob store addressed by path.
type DocumentStore interface {
	// Get возвращает текущую ревизию документа.
	Get(ctx context.Context, path string) FetchResult

	// Put записывает документ целиком. Перед записью перечитывает ревизию.
	// Ошибка транспорта не возвращается: документ уходит в FallbackStore
	// и результат помечается Fallback. Ошибка возвращается только если
	// резервное хранилище тоже недоступно.
	Put(ctx context.Context, path string, content []byte, message string) (PutOutcome, error)
}

// ErrFallbackMiss is returned by FallbackStore.Load when nothing is stored under the key.
var ErrFallbackMiss = shared.NewDomainError("storage", "FallbackLoad", shared.ErrNotFound, "no fallback copy stored")

// FallbackStore is the local key-value store used when the remote store is down.
// There is no revisioning. The last write wins.
type FallbackStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Ping(ctx context.Context) error
}

// PersistOutcome is reported to the caller after every write so a degraded
// save can be surfaced to the user.
type PersistOutcome struct {
	Source   Source `json:"saved_to"`
	Revision string `json:"revision,omitempty"`
}

// Degraded reports whether the write missed the remote store.
func (o PersistOutcome) Degraded() bool {
	return o.Source != SourceRemote
}

// MutateFunc changes the aggregate in place and returns the commit message
// for the write. Returning an error aborts the mutation and leaves the
// in-memory state untouched.
type MutateFunc func(d *Data) (message string, err error)

// Repository owns the in-memory aggregate.
type Repository interface {
	// Load establishes state. Must be called before any mutation.
	Load(ctx context.Context) (*Data, Source, error)

	// UpsertRecord replaces the (internId, date) record and persists.
	UpsertRecord(ctx context.Context, rec Record) (PersistOutcome, error)

	// Persist writes the current aggregate with the given commit message.
	Persist(ctx context.Context, message string) (PersistOutcome, error)

	// Mutate runs fn on a copy of the aggregate and persists the result.
	// Writes are serialized.
	Mutate(ctx context.Context, fn MutateFunc) (PersistOutcome, error)

	// Snapshot returns a deep copy of the current aggregate.
	Snapshot() (*Data, error)

	// WriteInFlight reports whether a persist is running.
	WriteInFlight() bool

	// Refresh reloads state unless a write is in flight.
	Refresh(ctx context.Context) (skipped bool, err error)
}
