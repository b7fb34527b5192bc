package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examsecure/internal/middleware"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/response"
	"github.com/stemsi/examsecure/internal/service"
	"github.com/stemsi/examsecure/internal/validator"
)

// StudentPortalHandler handles student-facing endpoints: join-code lookup,
// submission and result review.
type StudentPortalHandler struct {
	examService    *service.ExamService
	attemptService *service.AttemptService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(examService *service.ExamService, attemptService *service.AttemptService) *StudentPortalHandler {
	return &StudentPortalHandler{
		examService:    examService,
		attemptService: attemptService,
	}
}

// LookupExam godoc
// POST /api/v1/student/exams/lookup
// Returns the exam behind a join code, without correct answers, when the
// student is assigned to it. The availability field tells the client whether
// the exam may be started now.
func (h *StudentPortalHandler) LookupExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.LookupExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.FetchByCode(c.Request.Context(), req.ExamCode, claims.Email)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, exam)
}

// SubmitAttempt godoc
// POST /api/v1/student/attempts
// Scores the submitted answers against the stored questions and persists one
// completed attempt. The client-reported score is never trusted.
func (h *StudentPortalHandler) SubmitAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.attemptService.Submit(c.Request.Context(), claims.UserID, claims.Email, &req)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, result)
}

// ListAttempts godoc
// GET /api/v1/student/attempts
func (h *StudentPortalHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attempts, err := h.attemptService.StudentResults(c.Request.Context(), claims.UserID)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// GetAttempt godoc
// GET /api/v1/student/attempts/:id
func (h *StudentPortalHandler) GetAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	result, err := h.attemptService.DetailedResult(c.Request.Context(), id, claims.UserID)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}
