package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/examsecure/internal/session"
	ws "github.com/stemsi/examsecure/internal/websocket"
)

const auditBuffer = 64

// closeGrace bounds the wait for the server's close echo once the stream ends.
var closeGrace = ws.CloseGracePeriod

// AuditStream forwards monitor transitions to the server over a websocket.
// Record never blocks; when the buffer is full the transition is dropped and
// logged. The server treats these events as untrusted hints.
type AuditStream struct {
	conn    *websocket.Conn
	queue   chan session.Transition
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	log     zerolog.Logger
	dropped int
	mu      sync.Mutex
}

// DialAudit opens the exam stream for examID.
func DialAudit(ctx context.Context, baseURL string, examID uuid.UUID, token string, log zerolog.Logger) (*AuditStream, error) {
	u, err := streamURL(baseURL, examID, token)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: ws.WriteWait}
	conn, resp, err := dialer.DialContext(ctx, u, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial exam stream: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial exam stream: %w", err)
	}
	return newAuditStream(conn, log), nil
}

func newAuditStream(conn *websocket.Conn, log zerolog.Logger) *AuditStream {
	a := &AuditStream{
		conn:  conn,
		queue: make(chan session.Transition, auditBuffer),
		done:  make(chan struct{}),
		log:   log.With().Str("component", "audit_stream").Logger(),
	}
	a.wg.Add(2)
	go a.writeLoop()
	go a.readLoop()
	return a
}

// Record implements session.AuditSink.
func (a *AuditStream) Record(_ context.Context, t session.Transition) {
	select {
	case <-a.done:
		return
	default:
	}
	select {
	case a.queue <- t:
	default:
		a.mu.Lock()
		a.dropped++
		a.mu.Unlock()
		a.log.Warn().Str("kind", string(t.Kind)).Msg("Audit buffer full, dropping transition")
	}
}

// Close flushes queued transitions and closes the connection.
func (a *AuditStream) Close() error {
	a.once.Do(func() { close(a.done) })
	a.wg.Wait()
	return a.conn.Close()
}

func (a *AuditStream) writeLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(ws.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case t := <-a.queue:
			a.send(t)
		case <-ticker.C:
			if err := ws.WriteTyped(a.conn, ws.PingRequest{Action: ws.ActionPing}); err != nil {
				a.log.Debug().Err(err).Msg("Ping failed")
			}
		case <-a.done:
			for {
				select {
				case t := <-a.queue:
					a.send(t)
				default:
					ws.CloseNormal(a.conn, "session over")
					_ = a.conn.SetReadDeadline(time.Now().Add(closeGrace))
					return
				}
			}
		}
	}
}

func (a *AuditStream) send(t session.Transition) {
	err := ws.WriteTyped(a.conn, ws.ViolationRequest{
		Action:   ws.ActionViolation,
		Kind:     string(t.Kind),
		Reason:   t.Reason,
		Warnings: t.Warnings,
		State:    t.State.String(),
	})
	if err != nil {
		a.log.Warn().Err(err).Str("kind", string(t.Kind)).Msg("Failed to send transition")
	}
}

// readLoop drains server replies so control frames are processed.
func (a *AuditStream) readLoop() {
	defer a.wg.Done()
	for {
		var msg map[string]interface{}
		if err := a.conn.ReadJSON(&msg); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				select {
				case <-a.done:
				default:
					a.log.Debug().Err(err).Msg("Exam stream read ended")
				}
			}
			return
		}
		if msg["event"] == string(ws.EventError) {
			a.log.Warn().Interface("error", msg["error"]).Msg("Server rejected transition")
		}
	}
}

func streamURL(baseURL string, examID uuid.UUID, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = fmt.Sprintf("/ws/v1/student/exams/%s/stream", examID)
	q := url.Values{}
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
