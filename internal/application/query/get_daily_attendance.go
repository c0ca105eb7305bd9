// Package query contains read operations (CQRS - Queries).
package query

import (
	"strings"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/attendance"
	"github.com/exportstafft-ui/intern-attendance/internal/domain/shared"
	"github.com/exportstafft-ui/intern-attendance/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DAILY ATTENDANCE QUERY
// Получает отметки за день, отсортированные по имени стажёра,
// и сводку по статусам. Используется и главной страницей, и админкой.
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotReader отдаёт копию текущего агрегата.
type SnapshotReader interface {
	Snapshot() (*attendance.Data, error)
}

// DailyAttendanceResult - отметки за дату и сводка.
type DailyAttendanceResult struct {
	Date    string              `json:"date"`
	Records []attendance.Record `json:"records"`
	Stats   attendance.Stats    `json:"stats"`
}

// GetDailyAttendanceHandler обрабатывает запросы на чтение посещаемости.
type GetDailyAttendanceHandler struct {
	repo  SnapshotReader
	today func() string
}

// NewGetDailyAttendanceHandler создаёт обработчик.
func NewGetDailyAttendanceHandler(repo SnapshotReader) *GetDailyAttendanceHandler {
	return &GetDailyAttendanceHandler{repo: repo, today: timeutil.Today}
}

// DailyAttendance возвращает отметки за дату. Пустая дата означает сегодня.
func (h *GetDailyAttendanceHandler) DailyAttendance(date string) (*DailyAttendanceResult, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		date = h.today()
	}
	return h.forDate(date)
}

// History возвращает отметки за прошедшую дату для админки.
// Дата обязательна.
func (h *GetDailyAttendanceHandler) History(date string) (*DailyAttendanceResult, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return nil, shared.ErrInvalidDate
	}
	return h.forDate(date)
}

func (h *GetDailyAttendanceHandler) forDate(date string) (*DailyAttendanceResult, error) {
	if _, err := timeutil.ParseDate(date); err != nil {
		return nil, shared.WrapError("attendance", "History", shared.ErrValidation, "date must be YYYY-MM-DD", err)
	}

	data, err := h.repo.Snapshot()
	if err != nil {
		return nil, err
	}

	records := data.RecordsForDate(date)
	return &DailyAttendanceResult{
		Date:    date,
		Records: records,
		Stats:   attendance.ComputeStats(records),
	}, nil
}

// ListInterns возвращает ростер в порядке хранения.
func (h *GetDailyAttendanceHandler) ListInterns() ([]attendance.Intern, error) {
	data, err := h.repo.Snapshot()
	if err != nil {
		return nil, err
	}
	return data.Interns, nil
}
