// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/attendance"
	"github.com/exportstafft-ui/intern-attendance/internal/domain/shared"
	"github.com/exportstafft-ui/intern-attendance/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MARK ATTENDANCE COMMAND
// Records a check-in or a leave for one intern on the current office day.
// The last action of the day wins: a leave after a check-in replaces it.
// ══════════════════════════════════════════════════════════════════════════════

// MarkKind selects what is being recorded.
type MarkKind string

const (
	// MarkCheckIn classifies the arrival time as Present or Late.
	MarkCheckIn MarkKind = "check_in"

	// MarkLeave records the intern as Absent on leave.
	MarkLeave MarkKind = "leave"
)

// MarkAttendanceCommand contains the data to mark attendance.
type MarkAttendanceCommand struct {
	// InternID is the roster id. Zero means nothing was selected.
	InternID int

	Kind MarkKind

	// At is when the action happened (defaults to the handler clock).
	At time.Time
}

// Validate validates the command.
func (c MarkAttendanceCommand) Validate() error {
	if c.InternID == 0 {
		return shared.ErrNoInternSelected
	}
	switch c.Kind {
	case MarkCheckIn, MarkLeave:
		return nil
	default:
		return shared.NewDomainError("attendance", "Mark", shared.ErrValidation,
			fmt.Sprintf("unknown attendance action %q", c.Kind))
	}
}

// MarkAttendanceResult contains the stored record and where it was saved.
type MarkAttendanceResult struct {
	Record  attendance.Record
	Outcome attendance.PersistOutcome
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// MarkAttendanceHandlerConfig contains configuration for the handler.
type MarkAttendanceHandlerConfig struct {
	Policy attendance.Policy

	// Clock returns the current time. Defaults to timeutil.Now.
	Clock func() time.Time

	Logger *slog.Logger
}

// MarkAttendanceHandler handles MarkAttendanceCommand.
type MarkAttendanceHandler struct {
	repo   attendance.Repository
	policy attendance.Policy
	clock  func() time.Time
	logger *slog.Logger
}

// NewMarkAttendanceHandler creates a new MarkAttendanceHandler.
func NewMarkAttendanceHandler(repo attendance.Repository, config MarkAttendanceHandlerConfig) *MarkAttendanceHandler {
	if config.Policy == (attendance.Policy{}) {
		config.Policy = attendance.DefaultPolicy()
	}
	if config.Clock == nil {
		config.Clock = timeutil.Now
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &MarkAttendanceHandler{
		repo:   repo,
		policy: config.Policy,
		clock:  config.Clock,
		logger: config.Logger,
	}
}

// Handle executes the mark attendance command.
func (h *MarkAttendanceHandler) Handle(ctx context.Context, cmd MarkAttendanceCommand) (*MarkAttendanceResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	at := cmd.At
	if at.IsZero() {
		at = h.clock()
	}
	now := timeutil.ToLocal(at)

	var c attendance.Classification
	switch cmd.Kind {
	case MarkLeave:
		c = attendance.ClassifyLeave()
	default:
		c = h.policy.ClassifyCheckIn(now)
	}

	// The roster lookup runs under the writer lock so a concurrent removal
	// cannot slip in between the lookup and the write.
	var rec attendance.Record
	outcome, err := h.repo.Mutate(ctx, func(d *attendance.Data) (string, error) {
		intern, ok := d.FindIntern(cmd.InternID)
		if !ok {
			return "", shared.WrapError("attendance", "Mark", shared.ErrNotFound,
				fmt.Sprintf("intern %d is not on the roster", cmd.InternID), shared.ErrInternNotFound)
		}
		rec = attendance.NewRecord(intern, now, c)
		d.Upsert(rec)
		return attendance.RecordsCommitMessage(now), nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark_attendance: %w", err)
	}

	h.logger.Info("attendance marked",
		"intern_id", rec.InternID,
		"kind", string(cmd.Kind),
		"status", string(rec.Status),
		"date", rec.Date,
		"saved_to", string(outcome.Source),
	)

	return &MarkAttendanceResult{Record: rec, Outcome: outcome}, nil
}

// MarkPresent checks the intern in at the current time.
func (h *MarkAttendanceHandler) MarkPresent(ctx context.Context, internID int) (*MarkAttendanceResult, error) {
	return h.Handle(ctx, MarkAttendanceCommand{InternID: internID, Kind: MarkCheckIn})
}

// MarkLeave records the intern as on leave for today.
func (h *MarkAttendanceHandler) MarkLeave(ctx context.Context, internID int) (*MarkAttendanceResult, error) {
	return h.Handle(ctx, MarkAttendanceCommand{InternID: internID, Kind: MarkLeave})
}

// Policy returns the late threshold in use.
func (h *MarkAttendanceHandler) Policy() attendance.Policy {
	return h.policy
}
