package adminapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aatumaykin/cmsjobs/internal/backgroundjobs"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/version"
	"github.com/aatumaykin/cmsjobs/internal/workers"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JobInfo describes one hosted service.
type JobInfo struct {
	Name        string     `json:"name"`
	Period      string     `json:"period"`
	Delay       string     `json:"delay"`
	ServerRoles []string   `json:"server_roles"`
	State       string     `json:"state"`
	LastOutcome string     `json:"last_outcome"`
	LastRun     *time.Time `json:"last_run,omitempty"`
}

// ExecuteResponse is returned by a manual tick.
type ExecuteResponse struct {
	Job     string `json:"job"`
	Outcome string `json:"outcome"`
}

func (s *Server) health(c echo.Context) error {
	if s.deps.Health != nil {
		if err := s.deps.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) listJobs(c echo.Context) error {
	entries := s.deps.Jobs.Services()
	out := make([]JobInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, describe(e.Service))
	}
	return c.JSON(http.StatusOK, out)
}

func describe(svc *backgroundjobs.HostedService) JobInfo {
	job := svc.Job()
	roles := make([]string, 0, len(job.ServerRoles()))
	for _, r := range job.ServerRoles() {
		roles = append(roles, r.String())
	}
	info := JobInfo{
		Name:        job.Name(),
		Period:      svc.Period().String(),
		Delay:       job.Delay().String(),
		ServerRoles: roles,
		State:       svc.State().String(),
		LastOutcome: svc.LastOutcome().String(),
	}
	if last := svc.LastRun(); !last.IsZero() {
		info.LastRun = &last
	}
	return info
}

func (s *Server) executeJob(c echo.Context) error {
	name := c.Param("name")
	svc, err := s.deps.Jobs.Service(name)
	if errors.Is(err, backgroundjobs.ErrJobNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    http.StatusNotFound,
			Message: "job not found: " + name,
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "failed to look up job",
		})
	}

	if !s.limiter.Allow(name) {
		return c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Code:    http.StatusTooManyRequests,
			Message: "manual trigger rate exceeded for " + name,
		})
	}

	s.logger.Info("manual job execution requested", logger.Field{Key: "job", Value: name})
	outcome := svc.PerformExecute(c.Request().Context())
	return c.JSON(http.StatusOK, ExecuteResponse{Job: name, Outcome: outcome.String()})
}

func (s *Server) refreshPublicAccess(c echo.Context) error {
	if s.deps.RefreshPublicAccess == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Code:    http.StatusServiceUnavailable,
			Message: "delivery api index is disabled",
		})
	}
	if err := s.deps.RefreshPublicAccess(c.Request().Context()); err != nil {
		s.logger.Error("public access refresh not queued", err)
		status := http.StatusInternalServerError
		if errors.Is(err, workers.ErrQueueFull) {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, ErrorResponse{
			Code:    status,
			Message: "failed to queue refresh: " + err.Error(),
		})
	}
	return c.NoContent(http.StatusAccepted)
}
