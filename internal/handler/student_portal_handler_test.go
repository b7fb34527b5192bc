package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/response"
)

func newPortalRouter(svc *services) *gin.Engine {
	h := NewStudentPortalHandler(svc.exams, svc.attempts)
	r := gin.New()
	g := r.Group("/api/v1/student", withClaims(studentClaims()))
	g.POST("/exams/lookup", h.LookupExam)
	g.POST("/attempts", h.SubmitAttempt)
	g.GET("/attempts", h.ListAttempts)
	g.GET("/attempts/:id", h.GetAttempt)
	return r
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	buf, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestLookupExamHidesAnswers(t *testing.T) {
	svc := newServices()
	exam, _ := svc.seedExam("student@example.com")
	r := newPortalRouter(svc)

	rec := postJSON(r, "/api/v1/student/exams/lookup", model.LookupExamRequest{ExamCode: "abcd1234"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("correct_answer")) {
		t.Error("student payload leaked correct answers")
	}

	env := decodeEnvelope(t, rec)
	var got model.ExamForStudent
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.ExamID != exam.ID || len(got.Questions) != 2 {
		t.Errorf("payload = %+v", got)
	}
	if got.Availability != model.AvailabilityOpen {
		t.Errorf("availability = %s, want open for an unbounded window", got.Availability)
	}
}

func TestLookupExamRequiresAssignment(t *testing.T) {
	svc := newServices()
	svc.seedExam("someone-else@example.com")
	r := newPortalRouter(svc)

	rec := postJSON(r, "/api/v1/student/exams/lookup", model.LookupExamRequest{ExamCode: "ABCD1234"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Error.Code != response.ErrNotAssigned {
		t.Errorf("code = %s", env.Error.Code)
	}
}

func TestSubmitAttemptScoresOnServer(t *testing.T) {
	svc := newServices()
	exam, qs := svc.seedExam("student@example.com")
	r := newPortalRouter(svc)

	req := model.SubmitAttemptRequest{
		ExamID: exam.ID,
		Answers: map[string]string{
			qs[0].ID.String(): "B",
			qs[1].ID.String(): "paris",
		},
		ViolationCount: 2,
	}
	rec := postJSON(r, "/api/v1/student/attempts", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var got model.SubmitAttemptResponse
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Score != 1 || got.TotalPoints != 4 || got.Percentage != 25 {
		t.Errorf("result = %d/%d %.2f, want 1/4 25.00", got.Score, got.TotalPoints, got.Percentage)
	}
	if got.Attempt == nil || got.Attempt.StudentID != 42 || got.Attempt.ViolationCount != 2 {
		t.Errorf("attempt = %+v", got.Attempt)
	}

	// A second submission is rejected under the default policy.
	rec = postJSON(r, "/api/v1/student/attempts", req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Error.Code != response.ErrAttemptAlreadySubmitted {
		t.Errorf("code = %s", env.Error.Code)
	}
}

func TestSubmitAttemptRejectsForeignStudentID(t *testing.T) {
	svc := newServices()
	exam, _ := svc.seedExam("student@example.com")
	r := newPortalRouter(svc)

	rec := postJSON(r, "/api/v1/student/attempts", model.SubmitAttemptRequest{ExamID: exam.ID, StudentID: 7})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestSubmitAttemptRequiresAssignment(t *testing.T) {
	svc := newServices()
	exam, qs := svc.seedExam("someone-else@example.com")
	r := newPortalRouter(svc)

	rec := postJSON(r, "/api/v1/student/attempts", model.SubmitAttemptRequest{
		ExamID:  exam.ID,
		Answers: map[string]string{qs[0].ID.String(): "B"},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 (%s)", rec.Code, rec.Body.String())
	}
	if env := decodeEnvelope(t, rec); env.Error.Code != response.ErrNotAssigned {
		t.Errorf("code = %s", env.Error.Code)
	}
}

func TestSubmitAttemptValidatesBody(t *testing.T) {
	r := newPortalRouter(newServices())

	rec := postJSON(r, "/api/v1/student/attempts", map[string]any{"answers": map[string]string{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error.Code != response.ErrValidation || env.Error.Fields["exam_id"] == "" {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestGetAttemptDetail(t *testing.T) {
	svc := newServices()
	exam, qs := svc.seedExam("student@example.com")
	r := newPortalRouter(svc)

	rec := postJSON(r, "/api/v1/student/attempts", model.SubmitAttemptRequest{
		ExamID:  exam.ID,
		Answers: map[string]string{qs[1].ID.String(): "Paris"},
	})
	var submitted model.SubmitAttemptResponse
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &submitted); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/student/attempts/"+submitted.Attempt.ID.String(), nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var detail model.DetailedResult
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &detail); err != nil {
		t.Fatal(err)
	}
	if detail.ExamTitle != "Quiz" || len(detail.Questions) != 2 {
		t.Fatalf("detail = %+v", detail)
	}
	if detail.Questions[0].IsCorrect || !detail.Questions[1].IsCorrect {
		t.Errorf("per-question correctness = %v, %v", detail.Questions[0].IsCorrect, detail.Questions[1].IsCorrect)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/student/attempts/not-a-uuid", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}
