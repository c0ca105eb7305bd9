package command

import (
	"context"
	"errors"
	"log/slog"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/attendance"
	"github.com/exportstafft-ui/intern-attendance/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MANAGE ROSTER COMMANDS
// Add and remove interns. Removing an intern keeps their records.
// ══════════════════════════════════════════════════════════════════════════════

// RosterResult contains the affected intern and where the roster was saved.
type RosterResult struct {
	Intern  attendance.Intern
	Outcome attendance.PersistOutcome
}

// RosterHandler handles roster commands.
type RosterHandler struct {
	repo   attendance.Repository
	logger *slog.Logger
}

// NewRosterHandler creates a new RosterHandler.
func NewRosterHandler(repo attendance.Repository, logger *slog.Logger) *RosterHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RosterHandler{repo: repo, logger: logger}
}

// AddIntern appends an intern with the next free id.
func (h *RosterHandler) AddIntern(ctx context.Context, name string) (*RosterResult, error) {
	var added attendance.Intern
	outcome, err := h.repo.Mutate(ctx, func(d *attendance.Data) (string, error) {
		in, err := d.AddIntern(name)
		if err != nil {
			return "", err
		}
		added = in
		return "Added intern: " + in.Name, nil
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("intern added", "intern_id", added.ID, "name", added.Name, "saved_to", string(outcome.Source))
	return &RosterResult{Intern: added, Outcome: outcome}, nil
}

// RemoveIntern drops an intern from the roster. An unknown id is a not-found
// error and nothing is written.
func (h *RosterHandler) RemoveIntern(ctx context.Context, id int) (*RosterResult, error) {
	if id <= 0 {
		return nil, shared.NewDomainError("roster", "RemoveIntern", shared.ErrInvalidID, "intern id must be positive")
	}

	var removed attendance.Intern
	outcome, err := h.repo.Mutate(ctx, func(d *attendance.Data) (string, error) {
		in, err := d.RemoveIntern(id)
		if err != nil {
			return "", err
		}
		removed = in
		return "Removed intern: " + in.Name, nil
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("intern removed", "intern_id", removed.ID, "name", removed.Name, "saved_to", string(outcome.Source))
	return &RosterResult{Intern: removed, Outcome: outcome}, nil
}

var errRosterNotEmpty = errors.New("roster is not empty")

// SeedDefaults installs the default roster when the roster is empty.
// It reports whether anything was written.
func (h *RosterHandler) SeedDefaults(ctx context.Context) (bool, error) {
	outcome, err := h.repo.Mutate(ctx, func(d *attendance.Data) (string, error) {
		if len(d.Interns) > 0 {
			return "", errRosterNotEmpty
		}
		d.Interns = attendance.DefaultRoster()
		return "Initialize default interns", nil
	})
	if errors.Is(err, errRosterNotEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	h.logger.Info("default roster seeded", "saved_to", string(outcome.Source))
	return true, nil
}
