package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"clientcomms/internal/prompt"
	"clientcomms/internal/store"
	"clientcomms/internal/tools"
)

// multipartOverhead is the allowance for boundaries and headers on top of
// the configured file size.
const multipartOverhead = 64 << 10

type requestError struct {
	status int
	detail string
}

func (e *requestError) Error() string {
	return e.detail
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "running",
		"message": "Client communication API is operational",
		"project": "Client Communication Guru",
		"version": "1.0.0",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	for name, check := range s.checks {
		if err := check.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "detail": fmt.Sprintf("%s: %v", name, err)})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleAgents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": s.svc.AgentInfo()})
}

func (s *Server) handleProcessFile(c *gin.Context) {
	name, text, task, err := s.readCase(c)
	if err != nil {
		writeRequestError(c, err)
		return
	}
	report := s.svc.ProcessCase(c.Request.Context(), name, text, task)
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleSubmitJob(c *gin.Context) {
	name, text, task, err := s.readCase(c)
	if err != nil {
		writeRequestError(c, err)
		return
	}
	id, err := s.svc.SubmitJob(c.Request.Context(), name, text, task)
	if err != nil {
		if errors.Is(err, tools.ErrJobsDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"detail": err.Error()})
			return
		}
		s.logger.Error("submit job failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Error queueing case file"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": id, "status": store.JobQueued})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.svc.GetJob(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, job)
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Job not found"})
	case errors.Is(err, tools.ErrJobsDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": err.Error()})
	default:
		s.logger.Error("get job failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Error loading job"})
	}
}

// readCase validates the uploaded case file and the optional task field.
func (s *Server) readCase(c *gin.Context) (string, string, prompt.Task, error) {
	maxBytes := s.cfg.Upload.MaxBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			return "", "", prompt.Task{}, &requestError{status: http.StatusRequestEntityTooLarge, detail: "File exceeds upload limit"}
		}
		return "", "", prompt.Task{}, &requestError{status: http.StatusBadRequest, detail: "A file upload is required"}
	}
	if !strings.HasSuffix(fh.Filename, ".txt") {
		return "", "", prompt.Task{}, &requestError{status: http.StatusBadRequest, detail: "Only .txt files are supported"}
	}
	if fh.Size > maxBytes {
		return "", "", prompt.Task{}, &requestError{status: http.StatusRequestEntityTooLarge, detail: "File exceeds upload limit"}
	}

	f, err := fh.Open()
	if err != nil {
		return "", "", prompt.Task{}, &requestError{status: http.StatusBadRequest, detail: "Unable to read uploaded file"}
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return "", "", prompt.Task{}, &requestError{status: http.StatusBadRequest, detail: "Unable to read uploaded file"}
	}
	if int64(len(data)) > maxBytes {
		return "", "", prompt.Task{}, &requestError{status: http.StatusRequestEntityTooLarge, detail: "File exceeds upload limit"}
	}
	if !utf8.Valid(data) {
		return "", "", prompt.Task{}, &requestError{status: http.StatusBadRequest, detail: "File must be valid UTF-8 encoded text"}
	}

	task := prompt.DefaultTask()
	if raw := strings.TrimSpace(c.PostForm("task")); raw != "" {
		parsed, err := prompt.ParseTask([]byte(raw))
		if err != nil {
			return "", "", prompt.Task{}, &requestError{status: http.StatusBadRequest, detail: "Task must be a JSON object"}
		}
		if !parsed.IsEmpty() {
			task = parsed
		}
	}
	return fh.Filename, string(data), task, nil
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

func writeRequestError(c *gin.Context, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		c.JSON(reqErr.status, gin.H{"detail": reqErr.detail})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "Error processing file: " + err.Error()})
}
