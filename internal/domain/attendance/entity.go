package attendance

import (
	"sort"
	"strings"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

// DocumentPath is the default storage path of the attendance document.
const DocumentPath = "data/attendance.json"

// Status is the classification of a day's attendance mark.
type Status string

const (
	StatusPresent Status = "Present"
	StatusLate    Status = "Late"
	StatusAbsent  Status = "Absent"
)

// IsValid checks if the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent:
		return true
	}
	return false
}

// NoTime is written to Record.Time for leave records.
const NoTime = "-"

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Intern is a roster entry. It is created and deleted, never edited.
type Intern struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Record is one attendance mark for one intern on one date.
// InternName is a snapshot taken when the record was created.
type Record struct {
	ID         int64  `json:"id"`
	InternID   int    `json:"internId"`
	InternName string `json:"internName"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Status     Status `json:"status"`
	Remarks    string `json:"remarks"`
	Timestamp  string `json:"timestamp"`
}

// Data is the root aggregate persisted as a single document.
type Data struct {
	Records []Record `json:"records"`
	Interns []Intern `json:"interns"`
}

// NewData returns the empty default aggregate.
func NewData() *Data {
	return &Data{
		Records: []Record{},
		Interns: []Intern{},
	}
}

// Normalize replaces nil slices so the aggregate always encodes as
// {"records": [], "interns": []}.
func (d *Data) Normalize() {
	if d.Records == nil {
		d.Records = []Record{}
	}
	if d.Interns == nil {
		d.Interns = []Intern{}
	}
}

// Clone returns a deep copy.
func (d *Data) Clone() *Data {
	if d == nil {
		return nil
	}
	out := &Data{
		Records: make([]Record, len(d.Records)),
		Interns: make([]Intern, len(d.Interns)),
	}
	copy(out.Records, d.Records)
	copy(out.Interns, d.Interns)
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Records
// ─────────────────────────────────────────────────────────────────────────────

// Upsert removes any record with the same (InternID, Date) and appends rec.
// Every record write must go through here.
func (d *Data) Upsert(rec Record) {
	kept := d.Records[:0:0]
	for _, r := range d.Records {
		if r.InternID == rec.InternID && r.Date == rec.Date {
			continue
		}
		kept = append(kept, r)
	}
	d.Records = append(kept, rec)
}

// RecordsForDate returns the records of a date sorted by intern name.
func (d *Data) RecordsForDate(date string) []Record {
	out := make([]Record, 0)
	for _, r := range d.Records {
		if r.Date == date {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].InternName < out[j].InternName
	})
	return out
}

// Stats counts statuses in a set of records.
type Stats struct {
	Present int `json:"present"`
	Late    int `json:"late"`
	Absent  int `json:"absent"`
}

// Total returns the number of counted records.
func (s Stats) Total() int {
	return s.Present + s.Late + s.Absent
}

// ComputeStats counts Present/Late/Absent records.
func ComputeStats(records []Record) Stats {
	var s Stats
	for _, r := range records {
		switch r.Status {
		case StatusPresent:
			s.Present++
		case StatusLate:
			s.Late++
		case StatusAbsent:
			s.Absent++
		}
	}
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Roster
// ─────────────────────────────────────────────────────────────────────────────

// FindIntern looks an intern up by id.
func (d *Data) FindIntern(id int) (Intern, bool) {
	for _, in := range d.Interns {
		if in.ID == id {
			return in, true
		}
	}
	return Intern{}, false
}

// NextInternID returns max(existing ids)+1, or 1 for an empty roster.
// It is not a persistent counter; ids of removed interns at the top can be reused.
func (d *Data) NextInternID() int {
	maxID := 0
	for _, in := range d.Interns {
		if in.ID > maxID {
			maxID = in.ID
		}
	}
	return maxID + 1
}

// AddIntern appends a new intern with a trimmed name.
func (d *Data) AddIntern(name string) (Intern, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Intern{}, shared.ErrEmptyInternName
	}
	in := Intern{ID: d.NextInternID(), Name: name}
	d.Interns = append(d.Interns, in)
	return in, nil
}

// RemoveIntern drops the intern from the roster. Records that reference it
// are left untouched.
func (d *Data) RemoveIntern(id int) (Intern, error) {
	for i, in := range d.Interns {
		if in.ID == id {
			d.Interns = append(d.Interns[:i:i], d.Interns[i+1:]...)
			return in, nil
		}
	}
	return Intern{}, shared.WrapError("roster", "RemoveIntern", shared.ErrNotFound, "intern not found", shared.ErrInternNotFound)
}

// DefaultRoster is installed on first start when seeding is enabled.
func DefaultRoster() []Intern {
	return []Intern{
		{ID: 1, Name: "Alex Johnson"},
		{ID: 2, Name: "Maria Garcia"},
		{ID: 3, Name: "David Smith"},
		{ID: 4, Name: "Sarah Williams"},
	}
}
