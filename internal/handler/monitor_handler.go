package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examsecure/internal/middleware"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/response"
	"github.com/stemsi/examsecure/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
	snapshotLimit     = 100
)

// MonitorHandler serves the live proctoring view of an exam.
type MonitorHandler struct {
	examService    *service.ExamService
	attemptService *service.AttemptService
	monitorService *service.MonitorService
	log            zerolog.Logger
}

func NewMonitorHandler(
	examService *service.ExamService,
	attemptService *service.AttemptService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		examService:    examService,
		attemptService: attemptService,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorSnapshot is the first event of a monitor stream.
type MonitorSnapshot struct {
	Exam            *model.Exam            `json:"exam"`
	Submitted       []model.AttemptSummary `json:"submitted"`
	ViolationCounts map[int]int64          `json:"violation_counts"`
	LiveWarnings    map[int]int            `json:"live_warnings"`
	TotalViolations int64                  `json:"total_violations"`
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:id/monitor
// Streams a snapshot, then every violation reported for the exam, with a
// periodic progress refresh.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	reqCtx := c.Request.Context()
	exam, err := h.examService.GetOwned(reqCtx, claims.UserID, examID)
	if err != nil {
		failWithError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	snapshot, err := h.snapshot(reqCtx, claims.UserID, exam)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Monitor snapshot incomplete")
	}
	c.SSEvent("snapshot", snapshot)
	c.Writer.Flush()

	events, detach := h.monitorService.Watch(reqCtx, examID)
	defer detach()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Skip refreshes until the first event proves someone is taking the exam.
	active := len(snapshot.LiveWarnings) > 0 || len(snapshot.Submitted) > 0

	h.log.Info().Str("exam_id", examID.String()).Msg("Admin attached to live monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin disconnected from live monitor SSE")
			return

		case msg, ok := <-events:
			if !ok {
				return
			}
			// Forward raw JSON, no need to decode.
			c.Writer.Write([]byte("event: violation\ndata: "))
			c.Writer.Write(msg)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
			active = true

		case <-refreshTicker.C:
			if !active {
				continue
			}
			h.sendProgress(c, reqCtx, examID)

		case <-keepAliveTicker.C:
			c.SSEvent("ping", gin.H{"type": "ping"})
			c.Writer.Flush()
		}
	}
}

// snapshot gathers submitted attempts and violation progress. Partial data is
// returned with the first error.
func (h *MonitorHandler) snapshot(ctx context.Context, ownerID int, exam *model.Exam) (*MonitorSnapshot, error) {
	out := &MonitorSnapshot{
		Exam:            exam,
		Submitted:       []model.AttemptSummary{},
		ViolationCounts: map[int]int64{},
		LiveWarnings:    map[int]int{},
	}

	fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	results, _, err := h.attemptService.OwnerResults(fetchCtx, ownerID, &exam.ID, 1, snapshotLimit)
	if err != nil {
		return out, err
	}
	out.Submitted = results

	progress, err := h.monitorService.GetProgress(fetchCtx, exam.ID)
	if err != nil {
		return out, err
	}
	out.ViolationCounts = progress.ViolationCounts
	out.LiveWarnings = progress.LiveWarnings
	out.TotalViolations = progress.TotalViolations
	return out, nil
}

func (h *MonitorHandler) sendProgress(c *gin.Context, ctx context.Context, examID uuid.UUID) {
	fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	progress, err := h.monitorService.GetProgress(fetchCtx, examID)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Monitor refresh failed")
		return
	}
	c.SSEvent("progress", gin.H{
		"violation_counts": progress.ViolationCounts,
		"live_warnings":    progress.LiveWarnings,
		"total_violations": progress.TotalViolations,
	})
	c.Writer.Flush()
}
