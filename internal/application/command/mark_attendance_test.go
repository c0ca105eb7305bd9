package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/attendance"
	"github.com/exportstafft-ui/intern-attendance/internal/domain/shared"
	"github.com/exportstafft-ui/intern-attendance/pkg/timeutil"
)

func useUTC(t *testing.T) {
	t.Helper()
	prev := timeutil.Location()
	timeutil.SetLocation(time.UTC)
	t.Cleanup(func() { timeutil.SetLocation(prev) })
}

func newMarkHandler(repo attendance.Repository) *MarkAttendanceHandler {
	return NewMarkAttendanceHandler(repo, MarkAttendanceHandlerConfig{})
}

func TestMarkAttendance_Validation(t *testing.T) {
	h := newMarkHandler(newFakeRepo())

	_, err := h.MarkPresent(context.Background(), 0)
	assert.True(t, shared.IsValidation(err))
	assert.ErrorIs(t, err, shared.ErrNoInternSelected)

	_, err = h.Handle(context.Background(), MarkAttendanceCommand{InternID: 1, Kind: "dance"})
	assert.True(t, shared.IsValidation(err))
}

func TestMarkAttendance_UnknownIntern(t *testing.T) {
	repo := newFakeRepo(attendance.Intern{ID: 1, Name: "Alex"})
	h := newMarkHandler(repo)

	_, err := h.MarkPresent(context.Background(), 9)
	assert.True(t, shared.IsNotFound(err))
	assert.Empty(t, repo.messages)
}

func TestMarkAttendance_InternRemovedConcurrently(t *testing.T) {
	repo := newFakeRepo(attendance.Intern{ID: 1, Name: "Alex"}, attendance.Intern{ID: 2, Name: "Kim"})
	repo.beforeMutate = func(d *attendance.Data) {
		_, _ = d.RemoveIntern(1)
	}
	h := newMarkHandler(repo)

	_, err := h.MarkPresent(context.Background(), 1)
	assert.True(t, shared.IsNotFound(err))
	assert.ErrorIs(t, err, shared.ErrInternNotFound)
	assert.Empty(t, repo.messages)

	snap, err := repo.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.Records)
}

func TestMarkAttendance_NotLoaded(t *testing.T) {
	h := newMarkHandler(&fakeRepo{})

	_, err := h.MarkPresent(context.Background(), 1)
	assert.True(t, shared.IsNotLoaded(err))
}

func TestMarkAttendance_Classification(t *testing.T) {
	useUTC(t)

	tests := []struct {
		name    string
		at      time.Time
		status  attendance.Status
		remarks string
	}{
		{"early", time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC), attendance.StatusPresent, "On time"},
		{"on threshold", time.Date(2024, 3, 4, 9, 5, 59, 0, time.UTC), attendance.StatusPresent, "On time"},
		{"one minute late", time.Date(2024, 3, 4, 9, 6, 0, 0, time.UTC), attendance.StatusLate, "Arrived at 09:06"},
		{"afternoon", time.Date(2024, 3, 4, 14, 0, 0, 0, time.UTC), attendance.StatusLate, "Arrived at 14:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo(attendance.Intern{ID: 1, Name: "Alex"})
			h := newMarkHandler(repo)

			res, err := h.Handle(context.Background(), MarkAttendanceCommand{InternID: 1, Kind: MarkCheckIn, At: tt.at})
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.Record.Status)
			assert.Equal(t, tt.remarks, res.Record.Remarks)
			assert.Equal(t, "2024-03-04", res.Record.Date)
			assert.Equal(t, "Alex", res.Record.InternName)
			assert.Equal(t, attendance.SourceRemote, res.Outcome.Source)
		})
	}
}

func TestMarkAttendance_LeaveReplacesCheckIn(t *testing.T) {
	useUTC(t)
	repo := newFakeRepo(attendance.Intern{ID: 2, Name: "Maria"})
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	h := NewMarkAttendanceHandler(repo, MarkAttendanceHandlerConfig{Clock: func() time.Time { return now }})
	ctx := context.Background()

	res, err := h.MarkPresent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusLate, res.Record.Status)

	now = now.Add(time.Hour)
	res, err = h.MarkLeave(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusAbsent, res.Record.Status)
	assert.Equal(t, attendance.NoTime, res.Record.Time)
	assert.Equal(t, "On leave", res.Record.Remarks)

	snap, err := repo.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, attendance.StatusAbsent, snap.Records[0].Status)
}

func TestMarkAttendance_CustomPolicy(t *testing.T) {
	useUTC(t)
	policy, err := attendance.ParsePolicy("10:00")
	require.NoError(t, err)

	repo := newFakeRepo(attendance.Intern{ID: 1, Name: "Alex"})
	h := NewMarkAttendanceHandler(repo, MarkAttendanceHandlerConfig{Policy: policy})
	assert.Equal(t, "10:00", h.Policy().String())

	res, err := h.Handle(context.Background(), MarkAttendanceCommand{
		InternID: 1,
		Kind:     MarkCheckIn,
		At:       time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, res.Record.Status)
}

func TestMarkAttendance_OfficeTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	prev := timeutil.Location()
	timeutil.SetLocation(loc)
	t.Cleanup(func() { timeutil.SetLocation(prev) })

	repo := newFakeRepo(attendance.Intern{ID: 1, Name: "Alex"})
	h := newMarkHandler(repo)

	// 03:30 UTC is 08:30 in the office.
	res, err := h.Handle(context.Background(), MarkAttendanceCommand{
		InternID: 1,
		Kind:     MarkCheckIn,
		At:       time.Date(2024, 3, 4, 3, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, res.Record.Status)
	assert.Equal(t, "08:30", res.Record.Time)
}
