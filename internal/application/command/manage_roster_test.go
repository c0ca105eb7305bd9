package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/attendance"
	"github.com/exportstafft-ui/intern-attendance/internal/domain/shared"
)

func TestAddIntern(t *testing.T) {
	repo := newFakeRepo(attendance.Intern{ID: 1, Name: "A"}, attendance.Intern{ID: 3, Name: "C"})
	h := NewRosterHandler(repo, nil)

	res, err := h.AddIntern(context.Background(), "  Kim Lee ")
	require.NoError(t, err)
	assert.Equal(t, 4, res.Intern.ID)
	assert.Equal(t, "Kim Lee", res.Intern.Name)
	assert.Equal(t, []string{"Added intern: Kim Lee"}, repo.messages)
}

func TestAddIntern_EmptyName(t *testing.T) {
	repo := newFakeRepo()
	h := NewRosterHandler(repo, nil)

	_, err := h.AddIntern(context.Background(), "   ")
	assert.True(t, shared.IsValidation(err))
	assert.Empty(t, repo.messages)
}

func TestAddIntern_FirstIDIsOne(t *testing.T) {
	h := NewRosterHandler(newFakeRepo(), nil)

	res, err := h.AddIntern(context.Background(), "First")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Intern.ID)
}

func TestRemoveIntern(t *testing.T) {
	repo := newFakeRepo(attendance.Intern{ID: 1, Name: "A"}, attendance.Intern{ID: 2, Name: "B"})
	_, err := repo.UpsertRecord(context.Background(), attendance.Record{ID: 1, InternID: 2, InternName: "B", Date: "2024-03-04"})
	require.NoError(t, err)
	h := NewRosterHandler(repo, nil)

	res, err := h.RemoveIntern(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "B", res.Intern.Name)
	assert.Equal(t, "Removed intern: B", repo.messages[len(repo.messages)-1])

	snap, err := repo.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Interns, 1)
	assert.Len(t, snap.Records, 1, "records of removed interns stay")
}

func TestRemoveIntern_Unknown(t *testing.T) {
	repo := newFakeRepo(attendance.Intern{ID: 1, Name: "A"})
	h := NewRosterHandler(repo, nil)

	_, err := h.RemoveIntern(context.Background(), 5)
	assert.True(t, shared.IsNotFound(err))
	assert.Empty(t, repo.messages)

	_, err = h.RemoveIntern(context.Background(), 0)
	assert.True(t, shared.IsValidation(err))
}

func TestSeedDefaults(t *testing.T) {
	repo := newFakeRepo()
	h := NewRosterHandler(repo, nil)
	ctx := context.Background()

	seeded, err := h.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)

	snap, err := repo.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, attendance.DefaultRoster(), snap.Interns)

	seeded, err = h.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Len(t, repo.messages, 1)
}

func TestRosterHandler_DegradedOutcome(t *testing.T) {
	repo := newFakeRepo()
	repo.source = attendance.SourceFallback
	h := NewRosterHandler(repo, nil)

	res, err := h.AddIntern(context.Background(), "Kim")
	require.NoError(t, err)
	assert.True(t, res.Outcome.Degraded())
}
