package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	ws "github.com/stemsi/examsecure/internal/websocket"
)

func dialStream(t *testing.T, svc *services, examID uuid.UUID) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	h := NewWSHandler(svc.exams, svc.monitor, zerolog.Nop(), nil)
	r := gin.New()
	r.GET("/ws/v1/student/exams/:id/stream", withClaims(studentClaims()), h.ExamStream)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/student/exams/" + examID.String() + "/stream"
	return websocket.DefaultDialer.Dial(url, nil)
}

func readEvent(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(v); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestExamStreamRecordsViolations(t *testing.T) {
	svc := newServices()
	exam, _ := svc.seedExam("student@example.com")

	conn, _, err := dialStream(t, svc, exam.ID)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	err = conn.WriteJSON(ws.ViolationRequest{
		Action:   ws.ActionViolation,
		Kind:     "focus_lost",
		Reason:   "window lost focus",
		Warnings: 1,
		State:    "warned",
	})
	if err != nil {
		t.Fatal(err)
	}
	var recorded ws.RecordedResponse
	readEvent(t, conn, &recorded)
	if recorded.Event != ws.EventRecorded || recorded.Warnings != 1 {
		t.Errorf("reply = %+v", recorded)
	}
	if n := svc.store.queuedCount(); n != 1 {
		t.Errorf("queued = %d, want 1", n)
	}

	if err := conn.WriteJSON(ws.PingRequest{Action: ws.ActionPing}); err != nil {
		t.Fatal(err)
	}
	var pong ws.PongResponse
	readEvent(t, conn, &pong)
	if pong.Event != ws.EventPong {
		t.Errorf("reply = %+v, want pong", pong)
	}

	if err := conn.WriteJSON(ws.ViolationRequest{Action: ws.ActionViolation, Kind: "teleported"}); err != nil {
		t.Fatal(err)
	}
	var rejected ws.ErrorResponse
	readEvent(t, conn, &rejected)
	if rejected.Event != ws.EventError {
		t.Errorf("reply = %+v, want error", rejected)
	}
	if n := svc.store.queuedCount(); n != 1 {
		t.Errorf("queued after unknown kind = %d, want 1", n)
	}
}

func TestExamStreamRequiresAssignment(t *testing.T) {
	svc := newServices()
	exam, _ := svc.seedExam("other@example.com")

	_, resp, err := dialStream(t, svc, exam.ID)
	if err == nil {
		t.Fatal("dial succeeded for an unassigned student")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("resp = %v, want 403", resp)
	}
}
