package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examsecure/internal/response"
	"github.com/stemsi/examsecure/internal/service"
)

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestFailWithError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   response.ErrCode
	}{
		{service.ErrExamNotFound, http.StatusNotFound, response.ErrExamNotFound},
		{service.ErrNotExamOwner, http.StatusForbidden, response.ErrNotExamOwner},
		{service.ErrNotAssigned, http.StatusForbidden, response.ErrNotAssigned},
		{fmt.Errorf("submit: %w", service.ErrAlreadySubmitted), http.StatusConflict, response.ErrAttemptAlreadySubmitted},
		{service.ErrStudentMismatch, http.StatusForbidden, response.ErrForbidden},
		{service.ErrSubmissionFailed, http.StatusInternalServerError, response.ErrSubmissionFailed},
		{service.ErrAlreadyExists, http.StatusConflict, response.ErrAlreadyExists},
		{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
		{service.ErrWrongPassword, http.StatusBadRequest, response.ErrWrongPassword},
		{&service.ValidationError{Fields: map[string]string{"title": "Title is required"}}, http.StatusBadRequest, response.ErrValidation},
		{errors.New("connection reset"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			failWithError(c, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			env := decodeEnvelope(t, rec)
			if env.Error == nil || env.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", env.Error, tt.wantCode)
			}
		})
	}
}

func TestValidationFieldsAreReturned(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	failWithError(c, &service.ValidationError{Fields: map[string]string{"questions": "Cannot save an exam without at least one question"}})

	env := decodeEnvelope(t, rec)
	if env.Error == nil || env.Error.Fields["questions"] == "" {
		t.Fatalf("fields missing: %+v", env.Error)
	}
}
