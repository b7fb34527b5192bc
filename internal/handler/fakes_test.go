package handler

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examsecure/internal/config"
	"github.com/stemsi/examsecure/internal/metrics"
	"github.com/stemsi/examsecure/internal/middleware"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/repository"
	"github.com/stemsi/examsecure/internal/service"
	"github.com/stemsi/examsecure/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

// memStore backs every service the handlers need with in-memory maps.
type memStore struct {
	mu        sync.Mutex
	exams     map[uuid.UUID]*model.Exam
	questions map[uuid.UUID][]model.Question
	assigned  map[uuid.UUID][]string
	attempts  []*model.Attempt
	queued    [][]byte
	live      map[int]int
}

func newMemStore() *memStore {
	return &memStore{
		exams:     make(map[uuid.UUID]*model.Exam),
		questions: make(map[uuid.UUID][]model.Question),
		assigned:  make(map[uuid.UUID][]string),
		live:      make(map[int]int),
	}
}

func (m *memStore) SaveWithQuestions(_ context.Context, e *model.Exam, qs []model.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range qs {
		qs[i].ExamID = e.ID
		qs[i].QuestionOrder = i + 1
		if qs[i].ID == uuid.Nil {
			qs[i].ID = uuid.New()
		}
	}
	e.QuestionCount = len(qs)
	cp := *e
	m.exams[e.ID] = &cp
	m.questions[e.ID] = append([]model.Question(nil), qs...)
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) GetByCode(_ context.Context, code string) (*model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.exams {
		if e.ExamCode == code {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) ListByOwnerPaginated(_ context.Context, ownerID, _, _ int) ([]model.Exam, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Exam
	for _, e := range m.exams {
		if e.OwnerID == ownerID {
			out = append(out, *e)
		}
	}
	return out, len(out), nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID, ownerID int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok || e.OwnerID != ownerID {
		return "", repository.ErrNotFound
	}
	delete(m.exams, id)
	return e.ExamCode, nil
}

func (m *memStore) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Question(nil), m.questions[examID]...), nil
}

func (m *memStore) IsAssigned(_ context.Context, examID uuid.UUID, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.assigned[examID] {
		if e == email {
			return true, nil
		}
	}
	return false, nil
}

// memAttempts is the attempt table of a memStore.
type memAttempts struct {
	store *memStore
}

func (a *memAttempts) InsertCompleted(_ context.Context, at *model.Attempt, reject bool) error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	if reject {
		for _, prev := range a.store.attempts {
			if prev.ExamID == at.ExamID && prev.StudentID == at.StudentID {
				return repository.ErrAlreadySubmitted
			}
		}
	}
	at.ID = uuid.New()
	at.Status = model.AttemptStatusCompleted
	a.store.attempts = append(a.store.attempts, at)
	return nil
}

func (a *memAttempts) GetForStudent(_ context.Context, id uuid.UUID, studentID int) (*model.Attempt, string, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	for _, at := range a.store.attempts {
		if at.ID == id && at.StudentID == studentID {
			return at, a.store.exams[at.ExamID].Title, nil
		}
	}
	return nil, "", repository.ErrNotFound
}

func (a *memAttempts) ListByStudent(_ context.Context, studentID int) ([]model.AttemptSummary, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	var out []model.AttemptSummary
	for _, at := range a.store.attempts {
		if at.StudentID == studentID {
			out = append(out, model.AttemptSummary{ID: at.ID, ExamID: at.ExamID, StudentID: at.StudentID, Score: at.Score})
		}
	}
	return out, nil
}

func (a *memAttempts) ListByOwnerPaginated(context.Context, int, *uuid.UUID, int, int) ([]model.AttemptSummary, int, error) {
	return nil, 0, nil
}

func (m *memStore) GetViolationCounts(context.Context, uuid.UUID) (map[int]int64, error) {
	return map[int]int64{}, nil
}

func (m *memStore) ListViolations(context.Context, uuid.UUID, int) ([]model.ViolationEvent, error) {
	return nil, nil
}

func (m *memStore) SetLiveWarnings(_ context.Context, _ uuid.UUID, studentID, warnings int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live[studentID] = warnings
	return nil
}

func (m *memStore) GetLiveWarnings(context.Context, uuid.UUID) (map[int]int, error) {
	return map[int]int{}, nil
}

func (m *memStore) Publish(context.Context, uuid.UUID, []byte) error { return nil }

func (m *memStore) Enqueue(_ context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, payload)
	return nil
}

func (m *memStore) Subscribe(context.Context, uuid.UUID) (<-chan []byte, func() error) {
	ch := make(chan []byte)
	return ch, func() error { return nil }
}

func (m *memStore) queuedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queued)
}

// noCache always misses so lookups read through to memStore.
type noCache struct{}

func (noCache) Get(context.Context, string) (*model.ExamPayload, error) {
	return nil, repository.ErrCacheMiss
}
func (noCache) Set(context.Context, *model.ExamPayload) error { return nil }
func (noCache) Invalidate(context.Context, string) error      { return nil }

type services struct {
	store    *memStore
	exams    *service.ExamService
	attempts *service.AttemptService
	monitor  *service.MonitorService
}

func newServices() *services {
	store := newMemStore()
	m := metrics.New()
	return &services{
		store:    store,
		exams:    service.NewExamService(store, store, store, noCache{}, 8, zerolog.Nop()),
		attempts: service.NewAttemptService(&memAttempts{store: store}, store, store, store, config.DuplicatePolicyReject, m, zerolog.Nop()),
		monitor:  service.NewMonitorService(store, m, zerolog.Nop()),
	}
}

// seedExam stores a two-question exam owned by admin 1 and assigns email.
func (s *services) seedExam(email string) (*model.Exam, []model.Question) {
	exam := &model.Exam{ID: uuid.New(), OwnerID: 1, Title: "Quiz", DurationMinutes: 10, ExamCode: "ABCD1234"}
	qs := []model.Question{
		{QuestionText: "Pick B", QuestionType: model.QuestionTypeMultipleChoice, Options: []string{"A", "B"}, CorrectAnswer: "B", Points: 1},
		{QuestionText: "Capital?", QuestionType: model.QuestionTypeShortAnswer, CorrectAnswer: "Paris", Points: 3},
	}
	_ = s.store.SaveWithQuestions(context.Background(), exam, qs)
	if email != "" {
		s.store.assigned[exam.ID] = []string{email}
	}
	return exam, qs
}

// withClaims stands in for the JWT middleware.
func withClaims(claims *service.Claims) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, claims)
		c.Next()
	}
}

func studentClaims() *service.Claims {
	return &service.Claims{Role: model.RoleStudent, UserID: 42, Email: "student@example.com"}
}

func adminClaims() *service.Claims {
	return &service.Claims{Role: model.RoleAdmin, UserID: 1, Email: "admin@example.com", Permissions: model.PermissionsFor(model.RoleAdmin)}
}
