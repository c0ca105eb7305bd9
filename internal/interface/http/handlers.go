package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/attendance"
	"github.com/exportstafft-ui/intern-attendance/internal/domain/shared"
	"github.com/exportstafft-ui/intern-attendance/internal/infrastructure/scheduler"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"name":    "Intern Attendance API",
		"version": "v1",
		"endpoints": map[string]string{
			"health":     "/health",
			"interns":    "/api/v1/interns",
			"attendance": "/api/v1/attendance",
			"check_in":   "/api/v1/attendance/check-in",
			"leave":      "/api/v1/attendance/leave",
			"history":    "/api/v1/attendance/history",
			"jobs":       "/api/v1/jobs",
		},
	})
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"uptime": s.Uptime().String(),
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type markRequest struct {
	InternID int `json:"internId"`
}

type markResponse struct {
	Record attendance.Record `json:"record"`
	attendance.PersistOutcome
}

// handleCheckIn handles POST /api/v1/attendance/check-in
func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req markRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	res, err := s.deps.MarkAttendance.MarkPresent(r.Context(), req.InternID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, markResponse{Record: res.Record, PersistOutcome: res.Outcome})
}

// handleLeave handles POST /api/v1/attendance/leave
func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req markRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	res, err := s.deps.MarkAttendance.MarkLeave(r.Context(), req.InternID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, markResponse{Record: res.Record, PersistOutcome: res.Outcome})
}

// handleGetAttendance handles GET /api/v1/attendance?date=YYYY-MM-DD
func (s *Server) handleGetAttendance(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Attendance.DailyAttendance(r.URL.Query().Get("date"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleHistory handles GET /api/v1/attendance/history?date=YYYY-MM-DD
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Attendance.History(r.URL.Query().Get("date"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleReload handles POST /api/v1/attendance/reload
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	data, source, err := s.deps.Loader.Load(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"source":  source,
		"interns": len(data.Interns),
		"records": len(data.Records),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type addInternRequest struct {
	Name string `json:"name"`
}

type rosterResponse struct {
	Intern attendance.Intern `json:"intern"`
	attendance.PersistOutcome
}

// handleListInterns handles GET /api/v1/interns
func (s *Server) handleListInterns(w http.ResponseWriter, r *http.Request) {
	interns, err := s.deps.Attendance.ListInterns()
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"interns": interns})
}

// handleAddIntern handles POST /api/v1/interns
func (s *Server) handleAddIntern(w http.ResponseWriter, r *http.Request) {
	var req addInternRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	res, err := s.deps.Roster.AddIntern(r.Context(), req.Name)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, rosterResponse{Intern: res.Intern, PersistOutcome: res.Outcome})
}

// handleRemoveIntern handles DELETE /api/v1/interns/{id}
func (s *Server) handleRemoveIntern(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, shared.WrapError("roster", "RemoveIntern", shared.ErrInvalidID, "intern id must be a number", err))
		return
	}

	res, err := s.deps.Roster.RemoveIntern(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rosterResponse{Intern: res.Intern, PersistOutcome: res.Outcome})
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// jobRunResponse is a JSON-friendly scheduler.JobResult.
type jobRunResponse struct {
	Job         string    `json:"job"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Duration    string    `json:"duration"`
	Success     bool      `json:"success"`
	Manual      bool      `json:"manual"`
	Error       string    `json:"error,omitempty"`
}

func newJobRunResponse(res scheduler.JobResult) jobRunResponse {
	out := jobRunResponse{
		Job:         res.JobName,
		StartedAt:   res.StartedAt,
		CompletedAt: res.CompletedAt,
		Duration:    res.Duration.String(),
		Success:     res.Success,
		Manual:      res.Manual,
	}
	if res.Error != nil {
		out.Error = res.Error.Error()
	}
	return out
}

// jobError turns an unknown job name into a not-found error.
func jobError(name string, err error) error {
	if errors.Is(err, scheduler.ErrJobNotFound) {
		return shared.WrapError("jobs", "Find", shared.ErrNotFound, fmt.Sprintf("job %q is not registered", name), err)
	}
	return err
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	history := s.deps.Jobs.GetHistory(jobHistoryLimit)
	runs := make([]jobRunResponse, 0, len(history))
	for _, res := range history {
		runs = append(runs, newJobRunResponse(res))
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"jobs":    s.deps.Jobs.ListJobs(),
		"history": runs,
	})
}

const jobHistoryLimit = 20

// handleGetJob handles GET /api/v1/jobs/{name}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	info, err := s.deps.Jobs.GetJobInfo(name)
	if err != nil {
		s.writeDomainError(w, r, jobError(name, err))
		return
	}
	writeJSON(w, r, http.StatusOK, info)
}

// handleRunJob handles POST /api/v1/jobs/{name}/run
// Runs the job right away, outside its schedule.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	res, err := s.deps.Jobs.RunNow(r.Context(), name)
	if err != nil {
		s.writeDomainError(w, r, jobError(name, err))
		return
	}
	writeJSON(w, r, http.StatusOK, newJobRunResponse(*res))
}

// handleEnableJob handles POST /api/v1/jobs/{name}/enable
func (s *Server) handleEnableJob(w http.ResponseWriter, r *http.Request) {
	s.toggleJob(w, r, s.deps.Jobs.EnableJob)
}

// handleDisableJob handles POST /api/v1/jobs/{name}/disable
func (s *Server) handleDisableJob(w http.ResponseWriter, r *http.Request) {
	s.toggleJob(w, r, s.deps.Jobs.DisableJob)
}

func (s *Server) toggleJob(w http.ResponseWriter, r *http.Request, toggle func(string) error) {
	name := r.PathValue("name")
	if err := toggle(name); err != nil {
		s.writeDomainError(w, r, jobError(name, err))
		return
	}
	info, err := s.deps.Jobs.GetJobInfo(name)
	if err != nil {
		s.writeDomainError(w, r, jobError(name, err))
		return
	}
	writeJSON(w, r, http.StatusOK, info)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes a JSON body into dst and writes a 400 on failure.
// An empty body decodes as the zero value.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSONError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
		return false
	}
	writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON")
	return false
}
