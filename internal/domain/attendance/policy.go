package attendance

import (
	"fmt"
	"time"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/shared"
	"github.com/exportstafft-ui/intern-attendance/pkg/timeutil"
)

const (
	remarksOnTime  = "On time"
	remarksOnLeave = "On leave"
)

// Policy holds the late threshold. A check-in is late when it happens after
// LateAfterHour:LateAfterMinute, compared at minute precision, so 09:05:59 is
// still on time with the default policy.
type Policy struct {
	LateAfterHour   int
	LateAfterMinute int
}

// DefaultPolicy returns the 09:05 threshold.
func DefaultPolicy() Policy {
	return Policy{LateAfterHour: 9, LateAfterMinute: 5}
}

// ParsePolicy parses a "HH:MM" threshold.
func ParsePolicy(threshold string) (Policy, error) {
	t, err := time.Parse(timeutil.FormatTime, threshold)
	if err != nil {
		return Policy{}, shared.WrapError("attendance", "ParsePolicy", shared.ErrValidation,
			fmt.Sprintf("late threshold %q must be HH:MM", threshold), err)
	}
	return Policy{LateAfterHour: t.Hour(), LateAfterMinute: t.Minute()}, nil
}

// String renders the threshold as HH:MM.
func (p Policy) String() string {
	return fmt.Sprintf("%02d:%02d", p.LateAfterHour, p.LateAfterMinute)
}

// Classification is the outcome of a check-in or leave request.
type Classification struct {
	Status  Status
	Time    string
	Remarks string
}

// ClassifyCheckIn classifies a check-in by the wall-clock time of now.
// now must already be in the office timezone.
func (p Policy) ClassifyCheckIn(now time.Time) Classification {
	hour, minute := now.Hour(), now.Minute()
	clock := now.Format(timeutil.FormatTime)

	if hour > p.LateAfterHour || (hour == p.LateAfterHour && minute > p.LateAfterMinute) {
		return Classification{
			Status:  StatusLate,
			Time:    clock,
			Remarks: "Arrived at " + clock,
		}
	}
	return Classification{
		Status:  StatusPresent,
		Time:    clock,
		Remarks: remarksOnTime,
	}
}

// ClassifyLeave returns the fixed leave classification.
func ClassifyLeave() Classification {
	return Classification{
		Status:  StatusAbsent,
		Time:    NoTime,
		Remarks: remarksOnLeave,
	}
}

// RecordsCommitMessage is the commit message of record writes.
func RecordsCommitMessage(now time.Time) string {
	return "Update attendance records - " + timeutil.HumanTimestamp(now)
}

// NewRecord builds a record for intern at now with classification c.
// The id is the creation time in unix milliseconds.
func NewRecord(intern Intern, now time.Time, c Classification) Record {
	return Record{
		ID:         now.UnixMilli(),
		InternID:   intern.ID,
		InternName: intern.Name,
		Date:       now.Format(timeutil.FormatDate),
		Time:       c.Time,
		Status:     c.Status,
		Remarks:    c.Remarks,
		Timestamp:  timeutil.ISOTimestamp(now),
	}
}
