package command

import (
	"context"
	"sync"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/attendance"
	"github.com/exportstafft-ui/intern-attendance/internal/domain/shared"
)

// fakeRepo is an in-memory attendance.Repository that records commit messages.
type fakeRepo struct {
	mu       sync.Mutex
	data     *attendance.Data
	source   attendance.Source
	messages []string
	putErr   error

	// beforeMutate runs on the stored aggregate once the writer lock is held,
	// standing in for a write that committed just before this one.
	beforeMutate func(d *attendance.Data)
}

func newFakeRepo(interns ...attendance.Intern) *fakeRepo {
	d := attendance.NewData()
	d.Interns = append(d.Interns, interns...)
	return &fakeRepo{data: d, source: attendance.SourceRemote}
}

func (f *fakeRepo) Load(ctx context.Context) (*attendance.Data, attendance.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = attendance.NewData()
	}
	return f.data.Clone(), f.source, nil
}

func (f *fakeRepo) UpsertRecord(ctx context.Context, rec attendance.Record) (attendance.PersistOutcome, error) {
	return f.Mutate(ctx, func(d *attendance.Data) (string, error) {
		d.Upsert(rec)
		return "Update attendance records", nil
	})
}

func (f *fakeRepo) Persist(ctx context.Context, message string) (attendance.PersistOutcome, error) {
	return f.Mutate(ctx, func(d *attendance.Data) (string, error) { return message, nil })
}

func (f *fakeRepo) Mutate(ctx context.Context, fn attendance.MutateFunc) (attendance.PersistOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		return attendance.PersistOutcome{}, shared.ErrAttendanceNotRead
	}
	if f.beforeMutate != nil {
		f.beforeMutate(f.data)
	}

	working := f.data.Clone()
	msg, err := fn(working)
	if err != nil {
		return attendance.PersistOutcome{}, err
	}
	if f.putErr != nil {
		return attendance.PersistOutcome{}, f.putErr
	}
	f.data = working
	f.messages = append(f.messages, msg)
	return attendance.PersistOutcome{Source: f.source, Revision: "rev"}, nil
}

func (f *fakeRepo) Snapshot() (*attendance.Data, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		return nil, shared.ErrAttendanceNotRead
	}
	return f.data.Clone(), nil
}

func (f *fakeRepo) WriteInFlight() bool { return false }

func (f *fakeRepo) Refresh(ctx context.Context) (bool, error) { return false, nil }
