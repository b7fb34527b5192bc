package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examsecure/internal/middleware"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/response"
	"github.com/stemsi/examsecure/internal/service"
	"github.com/stemsi/examsecure/internal/validator"
)

// RosterHandler manages the admin's allowed-student list.
type RosterHandler struct {
	rosterService *service.RosterService
}

func NewRosterHandler(rosterService *service.RosterService) *RosterHandler {
	return &RosterHandler{rosterService: rosterService}
}

// List godoc
// GET /api/v1/admin/roster
func (h *RosterHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	students, err := h.rosterService.List(c.Request.Context(), claims.UserID)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"students": students})
}

// Add godoc
// POST /api/v1/admin/roster
func (h *RosterHandler) Add(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.AddAllowedStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	entry, err := h.rosterService.Add(c.Request.Context(), claims.UserID, req.Email)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"student": entry})
}

// Check godoc
// GET /api/v1/admin/roster/check?email=
func (h *RosterHandler) Check(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"email": "email is required"})
		return
	}

	allowed, err := h.rosterService.IsAllowed(c.Request.Context(), claims.UserID, email)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"email": email, "allowed": allowed})
}

// Remove godoc
// DELETE /api/v1/admin/roster/:id
func (h *RosterHandler) Remove(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	if err := h.rosterService.Remove(c.Request.Context(), claims.UserID, id); err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// StudentAssignments godoc
// GET /api/v1/admin/roster/assignments?email=
func (h *RosterHandler) StudentAssignments(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"email": "email is required"})
		return
	}

	assignments, err := h.rosterService.StudentAssignments(c.Request.Context(), claims.UserID, email)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"assignments": assignments})
}

// ReplaceStudentAssignments godoc
// PUT /api/v1/admin/roster/assignments
// Sets exactly which of the admin's exams one student may open.
func (h *RosterHandler) ReplaceStudentAssignments(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.AssignExamsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	assignments, err := h.rosterService.AssignExamsToStudent(c.Request.Context(), claims.UserID, req.Email, req.ExamIDs)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"assignments": assignments})
}
