package document

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/attendance"
	"github.com/exportstafft-ui/intern-attendance/internal/domain/shared"
	"github.com/exportstafft-ui/intern-attendance/internal/infrastructure/persistence/file"
	"github.com/exportstafft-ui/intern-attendance/internal/infrastructure/service"
)

// memStore is an in-memory DocumentStore.
type memStore struct {
	mu       sync.Mutex
	content  []byte
	revision int
	getErr   error
	fallback bool // next Put reports a fallback write
	putErr   error
	messages []string
	puts     int

	// block, when set, is received from inside Put so a test can hold a write open.
	block   chan struct{}
	entered chan struct{}
}

func (m *memStore) Get(ctx context.Context, path string) attendance.FetchResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return attendance.Failed(m.getErr)
	}
	if m.content == nil {
		return attendance.NotFound()
	}
	return attendance.Found(append([]byte(nil), m.content...), revisionName(m.revision))
}

func (m *memStore) Put(ctx context.Context, path string, content []byte, message string) (attendance.PutOutcome, error) {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.messages = append(m.messages, message)
	if m.putErr != nil {
		return attendance.PutOutcome{}, m.putErr
	}
	if m.fallback {
		return attendance.PutOutcome{Fallback: true}, nil
	}
	m.content = append([]byte(nil), content...)
	m.revision++
	return attendance.PutOutcome{Revision: revisionName(m.revision)}, nil
}

func (m *memStore) decoded(t *testing.T) attendance.Data {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var d attendance.Data
	require.NoError(t, json.Unmarshal(m.content, &d))
	return d
}

func revisionName(n int) string {
	return "rev-" + string(rune('0'+n))
}

var fixedNow = time.Date(2024, 3, 4, 9, 3, 0, 0, time.UTC)

func newRepo(t *testing.T, store *memStore) (*AttendanceRepository, *file.FallbackStore) {
	t.Helper()
	fb, err := file.NewFallbackStore(t.TempDir())
	require.NoError(t, err)
	repo := NewAttendanceRepository(store, fb, Config{
		Clock: func() time.Time { return fixedNow },
	})
	return repo, fb
}

func record(internID int, date, status string) attendance.Record {
	return attendance.Record{
		ID:         time.Now().UnixNano(),
		InternID:   internID,
		InternName: "Intern",
		Date:       date,
		Time:       "09:00",
		Status:     attendance.Status(status),
		Remarks:    "On time",
	}
}

func TestLoad_AdoptsRemote(t *testing.T) {
	store := &memStore{content: []byte(`{"records":[],"interns":[{"id":1,"name":"Alex"}]}`), revision: 1}
	repo, _ := newRepo(t, store)

	data, source, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, attendance.SourceRemote, source)
	require.Len(t, data.Interns, 1)
	assert.Equal(t, "Alex", data.Interns[0].Name)
	assert.Equal(t, "rev-1", repo.State().Revision)
}

func TestLoad_NotFoundUsesFallbackThenDefault(t *testing.T) {
	ctx := context.Background()

	t.Run("empty default", func(t *testing.T) {
		repo, _ := newRepo(t, &memStore{})
		data, source, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, attendance.SourceDefault, source)
		assert.NotNil(t, data.Records)
		assert.NotNil(t, data.Interns)
		assert.Empty(t, data.Interns)
	})

	t.Run("fallback copy", func(t *testing.T) {
		repo, fb := newRepo(t, &memStore{})
		require.NoError(t, fb.Save(ctx, attendance.DocumentPath, []byte(`{"records":[],"interns":[{"id":7,"name":"Kim"}]}`)))

		data, source, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, attendance.SourceFallback, source)
		require.Len(t, data.Interns, 1)
		assert.Equal(t, 7, data.Interns[0].ID)
	})
}

func TestLoad_TransportFailureUsesFallback(t *testing.T) {
	ctx := context.Background()
	store := &memStore{getErr: shared.ErrTransport}
	repo, fb := newRepo(t, store)
	require.NoError(t, fb.Save(ctx, attendance.DocumentPath, []byte(`{"records":[{"id":1,"internId":1,"internName":"A","date":"2024-03-04","time":"09:00","status":"Present","remarks":"On time","timestamp":"x"}],"interns":[]}`)))

	data, source, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, attendance.SourceFallback, source)
	assert.Len(t, data.Records, 1)
}

func TestLoad_CorruptRemoteFallsThrough(t *testing.T) {
	repo, _ := newRepo(t, &memStore{content: []byte(`not json`), revision: 1})

	_, source, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, attendance.SourceDefault, source)
}

func TestLoad_CancelledKeepsState(t *testing.T) {
	store := &memStore{content: []byte(`{"records":[],"interns":[{"id":1,"name":"Alex"}]}`), revision: 1}
	repo, _ := newRepo(t, store)
	_, _, err := repo.Load(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = repo.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	snap, err := repo.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Interns, 1)
}

func TestMutationsBeforeLoad(t *testing.T) {
	repo, _ := newRepo(t, &memStore{})
	ctx := context.Background()

	_, err := repo.UpsertRecord(ctx, record(1, "2024-03-04", "Present"))
	assert.True(t, shared.IsNotLoaded(err))

	_, err = repo.Persist(ctx, "m")
	assert.True(t, shared.IsNotLoaded(err))

	_, err = repo.Snapshot()
	assert.ErrorIs(t, err, shared.ErrAttendanceNotRead)
}

func TestUpsertRecord_OnePerInternPerDay(t *testing.T) {
	store := &memStore{}
	repo, _ := newRepo(t, store)
	ctx := context.Background()
	_, _, err := repo.Load(ctx)
	require.NoError(t, err)

	_, err = repo.UpsertRecord(ctx, record(1, "2024-03-04", "Late"))
	require.NoError(t, err)
	out, err := repo.UpsertRecord(ctx, record(1, "2024-03-04", "Absent"))
	require.NoError(t, err)
	_, err = repo.UpsertRecord(ctx, record(1, "2024-03-05", "Present"))
	require.NoError(t, err)

	assert.Equal(t, attendance.SourceRemote, out.Source)
	assert.Equal(t, "rev-2", out.Revision)

	doc := store.decoded(t)
	require.Len(t, doc.Records, 2)
	var day []attendance.Record
	for _, r := range doc.Records {
		if r.Date == "2024-03-04" {
			day = append(day, r)
		}
	}
	require.Len(t, day, 1)
	assert.Equal(t, attendance.StatusAbsent, day[0].Status)

	assert.Equal(t, attendance.RecordsCommitMessage(fixedNow), store.messages[0])
	assert.Contains(t, store.messages[0], "Update attendance records - ")
}

func TestPersist_IndentedJSON(t *testing.T) {
	store := &memStore{}
	repo, _ := newRepo(t, store)
	ctx := context.Background()
	_, _, err := repo.Load(ctx)
	require.NoError(t, err)

	_, err = repo.Persist(ctx, "initial")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"records\": [],\n  \"interns\": []\n}", string(store.content))
}

func TestMutate_FallbackOutcomeStillAdopted(t *testing.T) {
	store := &memStore{fallback: true}
	repo, _ := newRepo(t, store)
	ctx := context.Background()
	_, _, err := repo.Load(ctx)
	require.NoError(t, err)

	out, err := repo.Mutate(ctx, func(d *attendance.Data) (string, error) {
		_, err := d.AddIntern("Kim")
		return "Added intern: Kim", err
	})
	require.NoError(t, err)
	assert.Equal(t, attendance.SourceFallback, out.Source)
	assert.True(t, out.Degraded())

	snap, err := repo.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Interns, 1)
	assert.Equal(t, attendance.SourceFallback, repo.State().Source)
}

func TestMutate_ErrorLeavesStateUntouched(t *testing.T) {
	store := &memStore{}
	repo, _ := newRepo(t, store)
	ctx := context.Background()
	_, _, err := repo.Load(ctx)
	require.NoError(t, err)

	_, err = repo.Mutate(ctx, func(d *attendance.Data) (string, error) {
		d.Interns = append(d.Interns, attendance.Intern{ID: 99, Name: "ghost"})
		_, err := d.RemoveIntern(42)
		return "", err
	})
	assert.True(t, shared.IsNotFound(err))
	assert.Zero(t, store.puts)

	snap, err := repo.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.Interns)
}

func TestMutate_LostWriteLeavesStateUntouched(t *testing.T) {
	store := &memStore{putErr: shared.NewDomainError("storage", "Put", shared.ErrServiceUnavailable, "both down")}
	repo, _ := newRepo(t, store)
	ctx := context.Background()
	_, _, err := repo.Load(ctx)
	require.NoError(t, err)

	_, err = repo.UpsertRecord(ctx, record(1, "2024-03-04", "Present"))
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)

	snap, err := repo.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.Records)
}

func TestSnapshot_IsACopy(t *testing.T) {
	repo, _ := newRepo(t, &memStore{content: []byte(`{"records":[],"interns":[{"id":1,"name":"Alex"}]}`), revision: 1})
	_, _, err := repo.Load(context.Background())
	require.NoError(t, err)

	snap, err := repo.Snapshot()
	require.NoError(t, err)
	snap.Interns[0].Name = "changed"

	again, err := repo.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "Alex", again.Interns[0].Name)
}

func TestRefresh_SkippedWhileWriteInFlight(t *testing.T) {
	store := &memStore{
		content:  []byte(`{"records":[],"interns":[]}`),
		revision: 1,
		block:    make(chan struct{}),
		entered:  make(chan struct{}, 1),
	}
	repo, _ := newRepo(t, store)
	ctx := context.Background()
	_, _, err := repo.Load(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := repo.UpsertRecord(ctx, record(1, "2024-03-04", "Present"))
		done <- err
	}()

	<-store.entered
	assert.True(t, repo.WriteInFlight())

	skipped, err := repo.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, skipped)

	close(store.block)
	require.NoError(t, <-done)
	assert.False(t, repo.WriteInFlight())

	skipped, err = repo.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, skipped)

	snap, err := repo.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Records, 1)
}

func TestRefresh_PicksUpRemoteChanges(t *testing.T) {
	store := &memStore{content: []byte(`{"records":[],"interns":[]}`), revision: 1}
	repo, _ := newRepo(t, store)
	ctx := context.Background()
	_, _, err := repo.Load(ctx)
	require.NoError(t, err)

	store.mu.Lock()
	store.content = []byte(`{"records":[],"interns":[{"id":3,"name":"Remote"}]}`)
	store.revision = 2
	store.mu.Unlock()

	skipped, err := repo.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, skipped)

	snap, err := repo.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Interns, 1)
	assert.Equal(t, "Remote", snap.Interns[0].Name)
	assert.Equal(t, "rev-2", repo.State().Revision)
}

func TestRefresh_ErrorsDoNotPanicWithoutFallback(t *testing.T) {
	repo := NewAttendanceRepository(&memStore{getErr: errors.New("down")}, nil, Config{})
	_, source, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, attendance.SourceDefault, source)
	assert.Equal(t, attendance.DocumentPath, repo.Path())
}

func TestRefresh_OutageKeepsLoadedState(t *testing.T) {
	store := &memStore{
		content:  []byte(`{"records":[{"id":1,"internId":1,"internName":"A","date":"2024-03-04","time":"09:00","status":"Present","remarks":"On time","timestamp":"x"}],"interns":[{"id":1,"name":"A"},{"id":2,"name":"B"}]}`),
		revision: 1,
	}
	repo, fb := newRepo(t, store)
	ctx := context.Background()
	require.NoError(t, fb.Save(ctx, attendance.DocumentPath, []byte(`{"records":[],"interns":[]}`)))
	_, _, err := repo.Load(ctx)
	require.NoError(t, err)

	store.mu.Lock()
	store.getErr = errors.New("github 502")
	store.mu.Unlock()

	skipped, err := repo.Refresh(ctx)
	assert.False(t, skipped)
	require.Error(t, err)
	assert.True(t, shared.IsExternalService(err))

	_, _, err = repo.Load(ctx)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)

	snap, err := repo.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Interns, 2)
	assert.Len(t, snap.Records, 1)
	assert.Equal(t, attendance.SourceRemote, repo.State().Source)
	assert.Equal(t, attendance.FetchFailed, repo.State().Remote)

	store.mu.Lock()
	store.getErr = nil
	store.mu.Unlock()

	_, err = repo.Mutate(ctx, func(d *attendance.Data) (string, error) {
		_, err := d.AddIntern("C")
		return "Added intern: C", err
	})
	require.NoError(t, err)

	doc := store.decoded(t)
	assert.Len(t, doc.Interns, 3)
	assert.Len(t, doc.Records, 1)
}

func TestRefresh_CorruptRemoteKeepsLoadedState(t *testing.T) {
	store := &memStore{content: []byte(`{"records":[],"interns":[{"id":1,"name":"Alex"}]}`), revision: 1}
	repo, _ := newRepo(t, store)
	ctx := context.Background()
	_, _, err := repo.Load(ctx)
	require.NoError(t, err)

	store.mu.Lock()
	store.content = []byte(`<html>`)
	store.mu.Unlock()

	_, err = repo.Refresh(ctx)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)

	snap, err := repo.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Interns, 1)
}

func TestRefresh_MissingRemoteUsesFallback(t *testing.T) {
	store := &memStore{content: []byte(`{"records":[],"interns":[{"id":1,"name":"Alex"}]}`), revision: 1}
	repo, fb := newRepo(t, store)
	ctx := context.Background()
	_, _, err := repo.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, fb.Save(ctx, attendance.DocumentPath, []byte(`{"records":[],"interns":[{"id":4,"name":"Local"}]}`)))
	store.mu.Lock()
	store.content = nil
	store.mu.Unlock()

	_, err = repo.Refresh(ctx)
	require.NoError(t, err)

	snap, err := repo.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Interns, 1)
	assert.Equal(t, "Local", snap.Interns[0].Name)
	assert.Equal(t, attendance.SourceFallback, repo.State().Source)
}

func TestState_Seedable(t *testing.T) {
	ctx := context.Background()

	notLoaded, _ := newRepo(t, &memStore{})
	assert.False(t, notLoaded.State().Seedable())

	missing, _ := newRepo(t, &memStore{})
	_, _, err := missing.Load(ctx)
	require.NoError(t, err)
	assert.True(t, missing.State().Seedable())

	found, _ := newRepo(t, &memStore{content: []byte(`{"records":[],"interns":[]}`), revision: 1})
	_, _, err = found.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found.State().Seedable())

	down, _ := newRepo(t, &memStore{getErr: errors.New("github 502")})
	_, source, err := down.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, attendance.SourceDefault, source)
	assert.False(t, down.State().Seedable())
}

func TestFallbackRoundTrip_OfflineStore(t *testing.T) {
	ctx := context.Background()
	fb, err := file.NewFallbackStore(t.TempDir())
	require.NoError(t, err)
	store := service.NewDocumentStoreAdapter(service.OfflineContentsClient{}, fb, service.DefaultDocumentStoreConfig())

	first := NewAttendanceRepository(store, fb, Config{Clock: func() time.Time { return fixedNow }})
	_, source, err := first.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, attendance.SourceDefault, source)

	_, err = first.Mutate(ctx, func(d *attendance.Data) (string, error) {
		d.Interns = attendance.DefaultRoster()
		return "Initialize default interns", nil
	})
	require.NoError(t, err)
	_, err = first.UpsertRecord(ctx, record(2, "2024-03-04", "Late"))
	require.NoError(t, err)

	out, err := first.Persist(ctx, "Update attendance records")
	require.NoError(t, err)
	assert.Equal(t, attendance.SourceFallback, out.Source)

	written, err := first.Snapshot()
	require.NoError(t, err)

	second := NewAttendanceRepository(store, fb, Config{})
	reloaded, source, err := second.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, attendance.SourceFallback, source)
	assert.Equal(t, written, reloaded)
	assert.True(t, second.State().Seedable())
}
